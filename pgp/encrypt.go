package pgp

import (
	"bytes"
	"fmt"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
)

// messageType is the armor block type of an encrypted message.
const messageType = "PGP MESSAGE"

// Encrypt encrypts plaintext to the public key of recipient and returns an
// ASCII-armored PGP message. The result is not signed.
func (k *Keyring) Encrypt(plaintext []byte, recipient string) ([]byte, error) {
	e, err := k.Lookup(recipient)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	aw, err := armor.Encode(&buf, messageType, nil)
	if err != nil {
		return nil, fmt.Errorf("can't start the armored message: %w", err)
	}

	pw, err := openpgp.Encrypt(aw, []*openpgp.Entity{e}, nil, &openpgp.FileHints{IsBinary: true}, nil)
	if err != nil {
		return nil, fmt.Errorf("can't encrypt to %v: %w", recipient, err)
	}

	if _, err := pw.Write(plaintext); err != nil {
		return nil, fmt.Errorf("can't encrypt to %v: %w", recipient, err)
	}

	// Closing order matters: the literal data packet, then the armor footer
	if err := pw.Close(); err != nil {
		return nil, fmt.Errorf("can't finish encrypting to %v: %w", recipient, err)
	}
	if err := aw.Close(); err != nil {
		return nil, fmt.Errorf("can't finish the armored message: %w", err)
	}

	return buf.Bytes(), nil
}
