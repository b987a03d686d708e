package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message"
	"github.com/ptgott/pgpmail/pgp"
	"github.com/ptgott/pgpmail/storage"
	"github.com/ptgott/pgpmail/transport"
	"github.com/rs/zerolog/log"
)

// Encrypter encrypts a payload to the public key of a recipient.
// *pgp.Keyring implements it.
type Encrypter interface {
	Encrypt(plaintext []byte, recipient string) ([]byte, error)
}

// BodyWriter writes a MIME entity that carries the header fields in h.
type BodyWriter func(w io.Writer, h message.Header) error

// Mailer sends messages from a single sender. Create one with NewMailer.
type Mailer struct {
	from      string
	keyring   Encrypter
	transport transport.Sender
	db        storage.KeyValue
	maxSize   int64
	now       func() time.Time
}

// MailerOption configures optional Mailer behavior.
type MailerOption func(*Mailer)

// WithKeyring sets the keys used for encrypted messages. Without one,
// encrypted sends fail.
func WithKeyring(k Encrypter) MailerOption {
	return func(m *Mailer) { m.keyring = k }
}

// WithDeliveryLog records every successful transmission in db.
func WithDeliveryLog(db storage.KeyValue) MailerOption {
	return func(m *Mailer) { m.db = db }
}

// WithMaxAttachmentSize limits the size of each attached file in bytes.
func WithMaxAttachmentSize(n int64) MailerOption {
	return func(m *Mailer) { m.maxSize = n }
}

// WithClock overrides time.Now for Date headers and delivery records.
func WithClock(now func() time.Time) MailerOption {
	return func(m *Mailer) { m.now = now }
}

// NewMailer returns a Mailer that sends as from through t.
func NewMailer(from string, t transport.Sender, opts ...MailerOption) *Mailer {
	m := &Mailer{
		from:      from,
		transport: t,
		db:        &storage.NoOpDB{},
		now:       time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SendMail composes a message from text and the files at paths and sends
// it. See SendMessage for what happens next.
func (m *Mailer) SendMail(ctx context.Context, to []string, subject string, text string, paths []string, encrypted bool) error {
	if len(to) == 0 {
		return errors.New("must supply at least one recipient")
	}
	msg, err := Compose(subject, text, paths, m.maxSize)
	if err != nil {
		return err
	}
	return m.SendMessage(ctx, to, msg, encrypted)
}

// SendMessage sends msg to every recipient in to.
//
// Unencrypted, that's a single transmission addressed to all recipients.
// Encrypted, each recipient gets a separate transmission containing only
// their own encrypted copy. A recipient whose key can't be found is logged
// and skipped, and the others still get their copy. The returned error
// joins every per-recipient failure. A transport failure stops the loop,
// since the next recipient would most likely fail the same way.
func (m *Mailer) SendMessage(ctx context.Context, to []string, msg *Message, encrypted bool) error {
	// Catch bad addresses before anything goes out
	env := Envelope{From: m.from, To: to}
	if _, err := env.Sender(); err != nil {
		return err
	}
	addrs, err := env.Recipients()
	if err != nil {
		return err
	}

	if !encrypted {
		return m.SendMsg(ctx, to, msg.Subject, msg.WriteBody)
	}

	if m.keyring == nil {
		return errors.New("encryption was requested but there is no keyring")
	}

	// Every recipient gets the same plaintext entity, without envelope
	// header fields, so only the outer headers differ.
	var inner bytes.Buffer
	if err := msg.WriteBody(&inner, message.Header{}); err != nil {
		return err
	}

	var errs []error
	for i, rcpt := range to {
		ct, err := m.keyring.Encrypt(inner.Bytes(), addrs[i])
		if err != nil {
			if errors.Is(err, pgp.ErrNoPublicKey) {
				log.Error().
					Str("recipient", rcpt).
					Msg("public key not found in keyring; not sending to this recipient")
			} else {
				log.Error().
					Str("recipient", rcpt).
					Err(err).
					Msg("could not encrypt the message")
			}
			errs = append(errs, fmt.Errorf("%v: %w", rcpt, err))
			continue
		}

		err = m.SendMsg(ctx, []string{rcpt}, msg.Subject, func(w io.Writer, h message.Header) error {
			return WriteEncrypted(w, h, ct)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%v: %w", rcpt, err))
			return errors.Join(errs...)
		}
	}

	return errors.Join(errs...)
}

// SendMsg stamps From, To, Date, Subject and Message-ID onto the entity
// written by body and submits it to every recipient in to in a single
// transmission.
func (m *Mailer) SendMsg(ctx context.Context, to []string, subject string, body BodyWriter) error {
	env := Envelope{
		From:    m.from,
		To:      to,
		Subject: subject,
		Date:    m.now(),
	}
	h, err := env.Header()
	if err != nil {
		return err
	}
	from, err := env.Sender()
	if err != nil {
		return err
	}
	rcpts, err := env.Recipients()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := body(&buf, h.Header); err != nil {
		return err
	}

	if err := m.transport.Send(ctx, from, rcpts, buf.Bytes()); err != nil {
		return fmt.Errorf("could not send message %v: %w", env.MessageID, err)
	}

	log.Info().
		Str("messageId", env.MessageID).
		Strs("to", rcpts).
		Str("transport", m.transport.Name()).
		Int("bytes", buf.Len()).
		Msg("sent message")

	m.recordDelivery(env.MessageID, rcpts)
	return nil
}

// DeliveryKey is the delivery log key for a message and one of its
// recipients.
func DeliveryKey(messageID string, recipient string) []byte {
	return []byte(fmt.Sprintf("delivery/%v/%v", messageID, recipient))
}

// recordDelivery writes one delivery log entry per recipient. Failing to
// record a delivery doesn't fail the send, since the message is already out.
func (m *Mailer) recordDelivery(messageID string, rcpts []string) {
	v := []byte(fmt.Sprintf("%v %v", m.now().UTC().Format(time.RFC3339), m.transport.Name()))
	for _, r := range rcpts {
		err := m.db.Put(storage.KVEntry{
			Key:   DeliveryKey(messageID, r),
			Value: v,
		})
		if errors.Is(err, storage.ErrNoOp) {
			continue
		}
		if err != nil {
			log.Warn().
				Err(err).
				Str("messageId", messageID).
				Str("recipient", r).
				Msg("could not record the delivery")
		}
	}
}
