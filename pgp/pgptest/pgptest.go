// Package pgptest generates throwaway OpenPGP keys for tests.
package pgptest

import (
	"bytes"
	"io"
	"testing"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
	"golang.org/x/crypto/openpgp/packet"
)

// Small keys keep the test suite fast. Don't use these for anything else.
var keyConfig = &packet.Config{RSABits: 1024}

// NewEntity generates a key pair with a single UID. The private key is
// unencrypted so tests can decrypt messages with it directly.
func NewEntity(t *testing.T, name string, email string) *openpgp.Entity {
	t.Helper()
	e, err := openpgp.NewEntity(name, "", email, keyConfig)
	if err != nil {
		t.Fatalf("can't generate a test key for %v: %v", email, err)
	}
	return e
}

// ArmoredPublicKeyring exports the public halves of es the way
// `gpg --export --armor` would.
func ArmoredPublicKeyring(t *testing.T, es ...*openpgp.Entity) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range es {
		if err := e.Serialize(w); err != nil {
			t.Fatalf("can't export the test key: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// BinaryPublicKeyring is ArmoredPublicKeyring without the armor.
func BinaryPublicKeyring(t *testing.T, es ...*openpgp.Entity) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, e := range es {
		if err := e.Serialize(&buf); err != nil {
			t.Fatalf("can't export the test key: %v", err)
		}
	}
	return buf.Bytes()
}

// Decrypt reverses pgp.Keyring.Encrypt using the private key of e.
func Decrypt(t *testing.T, e *openpgp.Entity, armored []byte) []byte {
	t.Helper()
	blk, err := armor.Decode(bytes.NewReader(armored))
	if err != nil {
		t.Fatalf("ciphertext is not armored: %v", err)
	}
	md, err := openpgp.ReadMessage(blk.Body, openpgp.EntityList{e}, nil, nil)
	if err != nil {
		t.Fatalf("can't decrypt the message: %v", err)
	}
	b, err := io.ReadAll(md.UnverifiedBody)
	if err != nil {
		t.Fatalf("can't read the decrypted message: %v", err)
	}
	return b
}
