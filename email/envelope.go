package email

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// Envelope is everything about a single transmission that isn't the content:
// who it's from, who it's to, and when.
type Envelope struct {
	From      string
	To        []string
	Subject   string
	Date      time.Time
	MessageID string // without angle brackets; generated if empty
}

// parsedAddresses validates the envelope and returns the sender and
// recipients as parsed addresses.
func (e *Envelope) parsedAddresses() (*mail.Address, []*mail.Address, error) {
	from, err := mail.ParseAddress(e.From)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid sender address %q: %w", e.From, err)
	}
	if len(e.To) == 0 {
		return nil, nil, errors.New("must supply at least one recipient")
	}
	to := make([]*mail.Address, len(e.To))
	for i, r := range e.To {
		to[i], err = mail.ParseAddress(r)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid recipient address %q: %w", r, err)
		}
	}
	return from, to, nil
}

// Recipients returns the bare addresses to use for RCPT TO.
func (e *Envelope) Recipients() ([]string, error) {
	_, to, err := e.parsedAddresses()
	if err != nil {
		return nil, err
	}
	r := make([]string, len(to))
	for i := range to {
		r[i] = to[i].Address
	}
	return r, nil
}

// Sender returns the bare address to use for MAIL FROM.
func (e *Envelope) Sender() (string, error) {
	from, _, err := e.parsedAddresses()
	if err != nil {
		return "", err
	}
	return from.Address, nil
}

// Header returns the top-level header fields for the envelope: From, To,
// Date, Subject and Message-ID. A Message-ID is generated and stored in e if
// it doesn't have one yet.
func (e *Envelope) Header() (mail.Header, error) {
	from, to, err := e.parsedAddresses()
	if err != nil {
		return mail.Header{}, err
	}

	if e.MessageID == "" {
		e.MessageID = newMessageID(from.Address)
	}
	d := e.Date
	if d.IsZero() {
		d = time.Now()
	}

	var h mail.Header
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", to)
	h.SetDate(d)
	h.SetSubject(e.Subject)
	h.SetMessageID(e.MessageID)
	return h, nil
}

// newMessageID returns a globally unique ID in the domain of the sender.
func newMessageID(from string) string {
	domain := "localhost"
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		domain = from[i+1:]
	}
	return uuid.NewString() + "@" + domain
}
