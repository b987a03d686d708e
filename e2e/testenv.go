package e2e

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ptgott/pgpmail/pgp/pgptest"
	"github.com/ptgott/pgpmail/smtptest"

	"golang.org/x/crypto/openpgp"
)

// testEnvironmentConfig exposes options that should be available and
// perhaps changeable when spinning up a test environment. While they
// may not vary between tests, they shouldn't be buried inside
// functions.
type testEnvironmentConfig struct {
	// Recipients with a key in the test keyring
	recipients []string
	// Run the SMTP server with STARTTLS and required AUTH
	useTLS bool
}

// testEnvironment manages all dependencies required to simulate a "real"
// environment and run the e2e tests. Callers should create this via
// startTestEnvironment.
type testEnvironment struct {
	SMTPServer  smtptest.Server
	tempDirPath string
	keyringPath string
	// Private keys by recipient address, for reading what was sent
	keys map[string]*openpgp.Entity
}

// startTestEnvironment spins up dependencies. They're torn down when the
// test ends.
func startTestEnvironment(t *testing.T, c testEnvironmentConfig) (*testEnvironment, error) {
	te := &testEnvironment{
		tempDirPath: t.TempDir(),
		keys:        make(map[string]*openpgp.Entity),
	}

	es := make([]*openpgp.Entity, len(c.recipients))
	for i, r := range c.recipients {
		es[i] = pgptest.NewEntity(t, fmt.Sprintf("Recipient %v", i), r)
		te.keys[r] = es[i]
	}
	te.keyringPath = filepath.Join(te.tempDirPath, "pubring.asc")
	err := os.WriteFile(te.keyringPath, pgptest.ArmoredPublicKeyring(t, es...), 0600)
	if err != nil {
		return nil, fmt.Errorf("could not write the test keyring: %w", err)
	}

	var key, cert string
	if c.useTLS {
		key, cert, err = smtptest.GenerateTLSFiles(t)
		if err != nil {
			return nil, err
		}
	}
	ts := smtptest.NewInProcessServer(key, cert)
	te.SMTPServer = ts
	go ts.Start()
	t.Cleanup(te.tearDown)

	return te, nil
}

// storageDir returns a fresh directory for the delivery log.
func (te *testEnvironment) storageDir() string {
	return filepath.Join(te.tempDirPath, "db")
}

// tearDown returns the testEnvironment to its state prior to start.
func (te *testEnvironment) tearDown() {
	if te.SMTPServer != nil {
		te.SMTPServer.Close()
	}
}
