package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/units"
	"github.com/emersion/go-message/mail"
	"github.com/ptgott/pgpmail/transport"
)

const (
	smtpScheme      string = "smtp://"
	defaultSMTPPort string = "25"
	defaultRelay    string = "localhost:" + defaultSMTPPort
)

// Names of the transports a user can pick
const (
	TransportSMTP   = "smtp"
	TransportSES    = "ses"
	TransportStdout = "stdout"
)

// UserConfig represents config options provided by
// the user. Not meant to be used directly for sending
// email without validation via CheckAndSetDefaults.
type UserConfig struct {
	FromAddress string
	// host:port of the SMTP relay
	RelayAddress         string
	Transport            string
	Username             string
	Password             string
	StartTLS             transport.StartTLSPolicy
	SkipCertVerification bool
	// Per file, in bytes. Zero means no limit.
	MaxAttachmentSize int64
	SESRegion         string
}

// UnmarshalYAML implements the yaml.Unmarshaler interface. Values are
// validated here, but required values are checked in CheckAndSetDefaults
// since the environment may still provide them.
func (uc *UserConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	v := make(map[string]string)
	err := unmarshal(&v)

	if err != nil {
		return fmt.Errorf("can't parse the email config: %v", err)
	}

	uc.FromAddress = v["fromAddress"]
	if uc.FromAddress != "" {
		if _, err := mail.ParseAddress(uc.FromAddress); err != nil {
			return fmt.Errorf("invalid fromAddress: %v", err)
		}
	}

	if ra, ok := v["relayAddress"]; ok {
		a, err := ParseRelayAddress(ra)
		if err != nil {
			return err
		}
		uc.RelayAddress = a
	}

	uc.Transport = v["transport"]
	switch uc.Transport {
	case "", TransportSMTP, TransportSES, TransportStdout:
	default:
		return fmt.Errorf("unknown transport %q", uc.Transport)
	}

	uc.Username = v["username"]
	uc.Password = v["password"]
	if (uc.Username == "") != (uc.Password == "") {
		return errors.New("must supply both a username and a password, or neither")
	}

	p, err := transport.ParseStartTLSPolicy(v["starttls"])
	if err != nil {
		return err
	}
	uc.StartTLS = p

	if s, ok := v["skipCertVerification"]; ok {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("skipCertVerification must be true or false: %v", err)
		}
		uc.SkipCertVerification = b
	}

	if s, ok := v["maxAttachmentSize"]; ok {
		n, err := units.ParseBase2Bytes(s)
		if err != nil {
			return fmt.Errorf("can't parse maxAttachmentSize as a size: %v", err)
		}
		if n < 0 {
			return errors.New("maxAttachmentSize can't be negative")
		}
		uc.MaxAttachmentSize = int64(n)
	}

	uc.SESRegion = v["sesRegion"]

	return nil
}

// ParseRelayAddress normalizes a relay address to host:port. The smtp://
// scheme is optional since it's self evident, and the port defaults to 25.
func ParseRelayAddress(s string) (string, error) {
	ra := strings.TrimSpace(s)
	if !strings.Contains(ra, "://") {
		ra = smtpScheme + ra
	}

	u, err := url.Parse(ra)
	if err != nil {
		return "", fmt.Errorf("can't parse the relay address: %v", err)
	}
	if u.Scheme+"://" != smtpScheme {
		return "", fmt.Errorf("the relay address must use the %v scheme, not %v", smtpScheme, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", errors.New("the relay address must include a host")
	}

	port := u.Port()
	if port == "" {
		port = defaultSMTPPort
	}
	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		return "", fmt.Errorf("invalid relay port %q", port)
	}

	return net.JoinHostPort(u.Hostname(), port), nil
}

// CheckAndSetDefaults validates uc and either returns a copy of uc with
// default settings applied or returns an error due to an invalid
// configuration
func (uc *UserConfig) CheckAndSetDefaults() (UserConfig, error) {
	c := *uc

	if c.FromAddress == "" {
		return UserConfig{}, errors.New("must supply a \"from\" address")
	}
	if _, err := mail.ParseAddress(c.FromAddress); err != nil {
		return UserConfig{}, fmt.Errorf("invalid \"from\" address: %v", err)
	}

	if c.RelayAddress == "" {
		c.RelayAddress = defaultRelay
	}
	if c.Transport == "" {
		c.Transport = TransportSMTP
	}
	if c.StartTLS == "" {
		c.StartTLS = transport.StartTLSOpportunistic
	}
	if c.Transport == TransportSES && c.SESRegion == "" {
		return UserConfig{}, errors.New("the ses transport needs a region")
	}

	return c, nil
}

// NewTransport returns the Sender the user asked for. Call it on a config
// returned by CheckAndSetDefaults.
func (uc *UserConfig) NewTransport(ctx context.Context) (transport.Sender, error) {
	switch uc.Transport {
	case TransportSMTP, "":
		return &transport.SMTPRelay{
			Addr:     uc.RelayAddress,
			Username: uc.Username,
			Password: uc.Password,
			StartTLS: uc.StartTLS,
			TLSConfig: &tls.Config{
				InsecureSkipVerify: uc.SkipCertVerification,
			},
		}, nil
	case TransportSES:
		return transport.NewSES(ctx, transport.SESConfig{
			Region: uc.SESRegion,
		})
	case TransportStdout:
		return transport.NewWriter(os.Stdout), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", uc.Transport)
	}
}
