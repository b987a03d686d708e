package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/rs/zerolog/log"
)

// StartTLSPolicy controls whether SMTPRelay upgrades the connection.
type StartTLSPolicy string

const (
	// StartTLSOpportunistic upgrades when the relay advertises STARTTLS.
	StartTLSOpportunistic StartTLSPolicy = "opportunistic"
	// StartTLSAlways refuses to send over a connection that can't be
	// upgraded.
	StartTLSAlways StartTLSPolicy = "always"
	// StartTLSNever keeps the plaintext connection.
	StartTLSNever StartTLSPolicy = "never"
)

// ParseStartTLSPolicy validates a policy from user input. An empty string
// means StartTLSOpportunistic.
func ParseStartTLSPolicy(s string) (StartTLSPolicy, error) {
	switch p := StartTLSPolicy(s); p {
	case "":
		return StartTLSOpportunistic, nil
	case StartTLSOpportunistic, StartTLSAlways, StartTLSNever:
		return p, nil
	default:
		return "", fmt.Errorf("unknown STARTTLS policy %q", s)
	}
}

// ErrNoStartTLS is returned under StartTLSAlways when the relay doesn't
// offer STARTTLS.
var ErrNoStartTLS = errors.New("the relay does not support STARTTLS")

// defaultDialTimeout bounds connecting to the relay when the context has no
// deadline.
const defaultDialTimeout = time.Duration(30) * time.Second

// SMTPRelay sends mail through an SMTP server, one connection per message.
type SMTPRelay struct {
	// Addr is the host:port of the relay
	Addr string
	// AUTH PLAIN is only attempted if both are set
	Username string
	Password string
	StartTLS StartTLSPolicy
	// TLSConfig is used for STARTTLS. If nil, the relay's host name is
	// verified against the system roots.
	TLSConfig *tls.Config
	// LocalName is sent with EHLO. Defaults to "localhost".
	LocalName string
}

// Name implements Sender.
func (r *SMTPRelay) Name() string {
	return "smtp"
}

// Send implements Sender.
func (r *SMTPRelay) Send(ctx context.Context, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(r.Addr)
	if err != nil {
		return fmt.Errorf("invalid relay address %v: %w", r.Addr, err)
	}

	d := net.Dialer{Timeout: defaultDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", r.Addr)
	if err != nil {
		return fmt.Errorf("can't connect to the relay at %v: %w", r.Addr, err)
	}
	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("can't start an SMTP session with %v: %w", r.Addr, err)
	}
	defer c.Close()

	ln := r.LocalName
	if ln == "" {
		ln = "localhost"
	}
	if err := c.Hello(ln); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := r.startTLS(c, host); err != nil {
		return err
	}

	if r.Username != "" && r.Password != "" {
		if err := c.Auth(sasl.NewPlainClient("", r.Username, r.Password)); err != nil {
			return fmt.Errorf("can't authenticate to the relay: %w", err)
		}
	}

	if err := c.Mail(from, nil); err != nil {
		return fmt.Errorf("the relay rejected the sender %v: %w", from, err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("the relay rejected the recipient %v: %w", rcpt, err)
		}
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("the relay refused the message data: %w", err)
	}
	if _, err := wc.Write(msg); err != nil {
		wc.Close()
		return fmt.Errorf("can't write the message to the relay: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("the relay did not accept the message: %w", err)
	}

	// The message is accepted at this point, so a failed QUIT isn't worth
	// reporting as a failed send.
	if err := c.Quit(); err != nil {
		log.Debug().Err(err).Str("relay", r.Addr).Msg("QUIT failed")
	}
	return nil
}

func (r *SMTPRelay) startTLS(c *smtp.Client, host string) error {
	if r.StartTLS == StartTLSNever {
		return nil
	}

	if ok, _ := c.Extension("STARTTLS"); !ok {
		if r.StartTLS == StartTLSAlways {
			return ErrNoStartTLS
		}
		log.Debug().Str("relay", r.Addr).Msg("relay does not offer STARTTLS, staying in plaintext")
		return nil
	}

	var tc *tls.Config
	if r.TLSConfig != nil {
		tc = r.TLSConfig.Clone()
	} else {
		tc = &tls.Config{}
	}
	if tc.ServerName == "" {
		tc.ServerName = host
	}

	if err := c.StartTLS(tc); err != nil {
		return fmt.Errorf("STARTTLS failed: %w", err)
	}
	return nil
}
