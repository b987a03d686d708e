package email

import (
	"fmt"
	"io"

	"github.com/emersion/go-message"
)

// Media types from RFC 3156 section 4
const (
	pgpEncryptedType = "application/pgp-encrypted"
	pgpVersionBody   = "Version: 1\r\n"
	ciphertextName   = "encrypted.asc"
)

// WriteEncrypted writes an RFC 3156 multipart/encrypted entity carrying
// ciphertext, an ASCII-armored OpenPGP message. h holds any other header
// fields the entity should carry and isn't modified.
func WriteEncrypted(w io.Writer, h message.Header, ciphertext []byte) error {
	h = h.Copy()
	h.SetContentType("multipart/encrypted", map[string]string{
		"protocol": pgpEncryptedType,
	})

	mw, err := message.CreateWriter(w, h)
	if err != nil {
		return fmt.Errorf("can't start the encrypted message: %w", err)
	}

	// The control part must come first
	var vh message.Header
	vh.SetContentType(pgpEncryptedType, nil)
	vh.Set("Content-Description", "PGP/MIME version identification")
	if err := writePart(mw, vh, []byte(pgpVersionBody)); err != nil {
		return fmt.Errorf("can't write the PGP/MIME version part: %w", err)
	}

	var ch message.Header
	ch.SetContentType("application/octet-stream", map[string]string{"name": ciphertextName})
	ch.Set("Content-Description", "OpenPGP encrypted message")
	ch.SetContentDisposition("inline", map[string]string{"filename": ciphertextName})
	if err := writePart(mw, ch, ciphertext); err != nil {
		return fmt.Errorf("can't write the encrypted part: %w", err)
	}

	return mw.Close()
}
