package pgp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/openpgp"
)

// ErrNoPublicKey means that no key in the keyring belongs to a recipient.
var ErrNoPublicKey = errors.New("public key not found in keyring")

// Key summarizes a public key in the keyring, similar to a line of
// `gpg --list-keys`.
type Key struct {
	KeyID       string
	Fingerprint string
	UIDs        []string
}

// Keyring is a set of public keys that messages can be encrypted to. Create
// one with LoadKeyring or OpenKeyring.
type Keyring struct {
	entities openpgp.EntityList
}

// DefaultKeyringPath returns the location of the public keyring GnuPG uses
// when GNUPGHOME is unset. Modern GnuPG keeps keys in a keybox
// (pubring.kbx), which we can't read, so the path points to an exported
// keyring, e.g., the output of `gpg --export > ~/.gnupg/pubring.gpg`.
func DefaultKeyringPath() string {
	if h := os.Getenv("GNUPGHOME"); h != "" {
		return filepath.Join(h, "pubring.gpg")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".gnupg", "pubring.gpg")
}

// OpenKeyring reads the keyring file at path. An empty path means
// DefaultKeyringPath.
func OpenKeyring(path string) (*Keyring, error) {
	if path == "" {
		path = DefaultKeyringPath()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open the keyring: %w", err)
	}
	defer f.Close()

	return LoadKeyring(f)
}

// LoadKeyring parses an ASCII-armored or binary keyring from r.
func LoadKeyring(r io.Reader) (*Keyring, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("can't read the keyring: %w", err)
	}

	el, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(b))
	if err != nil {
		// Not armored, so try the binary format
		var berr error
		el, berr = openpgp.ReadKeyRing(bytes.NewReader(b))
		if berr != nil {
			return nil, fmt.Errorf("can't parse the keyring as armored (%v) or binary data: %w", err, berr)
		}
	}

	return &Keyring{entities: el}, nil
}

// ListKeys returns every key in the keyring in the order it was read. UIDs
// are sorted so the output is stable.
func (k *Keyring) ListKeys() []Key {
	keys := make([]Key, 0, len(k.entities))
	for _, e := range k.entities {
		keys = append(keys, Key{
			KeyID:       e.PrimaryKey.KeyIdString(),
			Fingerprint: fmt.Sprintf("%X", e.PrimaryKey.Fingerprint),
			UIDs:        uids(e),
		})
	}
	return keys
}

// CheckPubkey reports whether any UID in the keyring contains recipient. The
// match is a case-insensitive substring match, the same way gpg resolves a
// recipient by default.
func (k *Keyring) CheckPubkey(recipient string) bool {
	_, err := k.Lookup(recipient)
	return err == nil
}

// Lookup returns the key to encrypt to for recipient. A UID whose email
// equals recipient wins over one that merely contains it.
func (k *Keyring) Lookup(recipient string) (*openpgp.Entity, error) {
	r := strings.ToLower(strings.TrimSpace(recipient))
	if r == "" {
		return nil, fmt.Errorf("%w: empty recipient", ErrNoPublicKey)
	}

	var partial *openpgp.Entity
	for _, e := range k.entities {
		for _, id := range e.Identities {
			if id.UserId != nil && strings.ToLower(id.UserId.Email) == r {
				return e, nil
			}
			if partial == nil && strings.Contains(strings.ToLower(id.Name), r) {
				partial = e
			}
		}
	}
	if partial != nil {
		return partial, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrNoPublicKey, recipient)
}

func uids(e *openpgp.Entity) []string {
	u := make([]string, 0, len(e.Identities))
	for n := range e.Identities {
		u = append(u, n)
	}
	sort.Strings(u)
	return u
}
