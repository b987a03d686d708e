package send

import (
	"context"
	"io"
	"os"

	"github.com/ptgott/pgpmail/email"
	"github.com/ptgott/pgpmail/pgp"
	"github.com/ptgott/pgpmail/storage"
	"github.com/ptgott/pgpmail/transport"
	"github.com/ptgott/pgpmail/userconfig"

	"github.com/docker/go-units"
	"github.com/rs/zerolog/log"
)

// Config is a single message to send along with runtime options that
// don't come from the config file.
type Config struct {
	To          []string
	Subject     string
	Text        string
	Attachments []string
	// Print the message to OutputWr instead of handing it to the transport.
	NoEmail bool
	// Where to print messages when NoEmail is set. Defaults to stdout.
	OutputWr io.Writer
}

// Run sends the message in sc according to the validated config c. It opens
// the keyring and the delivery log for the duration of the send only.
func Run(ctx context.Context, sc *Config, c *userconfig.Meta) error {
	var tr transport.Sender
	if sc.NoEmail {
		w := sc.OutputWr
		if w == nil {
			w = os.Stdout
		}
		tr = transport.NewWriter(w)
	} else {
		var err error
		tr, err = c.EmailSettings.NewTransport(ctx)
		if err != nil {
			return err
		}
	}

	opts := []email.MailerOption{
		email.WithMaxAttachmentSize(c.EmailSettings.MaxAttachmentSize),
	}

	encrypted := !c.PGP.DisableEncryption
	if encrypted {
		k, err := pgp.OpenKeyring(c.PGP.KeyringPath)
		if err != nil {
			return err
		}
		log.Debug().
			Str("keyring", c.PGP.KeyringPath).
			Int("keys", len(k.ListKeys())).
			Msg("loaded the keyring")
		opts = append(opts, email.WithKeyring(k))
	}

	var db storage.KeyValue = &storage.NoOpDB{}
	if c.Storage.Enabled() {
		bdb, err := storage.NewBadgerDB(&c.Storage)
		if err != nil {
			return err
		}
		db = bdb
	}
	defer func() {
		if err := db.Cleanup(); err != nil {
			log.Warn().Err(err).Msg("could not clean up the delivery log")
		}
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("could not close the delivery log")
		}
	}()
	opts = append(opts, email.WithDeliveryLog(db))

	m := email.NewMailer(c.EmailSettings.FromAddress, tr, opts...)

	l := log.Info().
		Strs("to", sc.To).
		Int("attachments", len(sc.Attachments)).
		Bool("encrypted", encrypted).
		Str("transport", tr.Name())
	if c.EmailSettings.MaxAttachmentSize > 0 {
		l = l.Str("maxAttachmentSize", units.BytesSize(float64(c.EmailSettings.MaxAttachmentSize)))
	}
	l.Msg("sending")

	return m.SendMail(ctx, sc.To, sc.Subject, sc.Text, sc.Attachments, encrypted)
}
