package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ptgott/pgpmail/pgp/pgptest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFlag(t *testing.T) {
	var l listFlag
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&l, "to", "")
	err := fs.Parse([]string{
		"-to", "alice@example.com, bob@example.com",
		"-to", "carol@example.com",
		"-to", ",",
	})
	require.NoError(t, err)
	assert.Equal(t, listFlag{"alice@example.com", "bob@example.com", "carol@example.com"}, l)
	assert.Equal(t, "alice@example.com,bob@example.com,carol@example.com", l.String())
}

func TestReadBody(t *testing.T) {
	p := filepath.Join(t.TempDir(), "body.txt")
	require.NoError(t, os.WriteFile(p, []byte("from a file"), 0600))

	testCases := []struct {
		description   string
		body          string
		bodyFile      string
		expected      string
		shouldBeError bool
	}{
		{
			description: "inline body",
			body:        "inline",
			expected:    "inline",
		},
		{
			description: "body file",
			bodyFile:    p,
			expected:    "from a file",
		},
		{
			description:   "both",
			body:          "inline",
			bodyFile:      p,
			shouldBeError: true,
		},
		{
			description:   "missing body file",
			bodyFile:      filepath.Join(t.TempDir(), "nope.txt"),
			shouldBeError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			b, err := readBody(tc.body, tc.bodyFile)
			if (err != nil) != tc.shouldBeError {
				t.Fatalf("unexpected error status: %v", err)
			}
			if !tc.shouldBeError {
				assert.Equal(t, tc.expected, b)
			}
		})
	}
}

func TestReadConfigMissingFile(t *testing.T) {
	m, err := readConfig(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Empty(t, m.EmailSettings.FromAddress)
}

func TestPrintKeys(t *testing.T) {
	e := pgptest.NewEntity(t, "Alice", "alice@example.com")
	p := filepath.Join(t.TempDir(), "pubring.gpg")
	require.NoError(t, os.WriteFile(p, pgptest.BinaryPublicKeyring(t, e), 0600))

	var buf bytes.Buffer
	require.NoError(t, printKeys(&buf, p))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Alice <alice@example.com>")
	assert.Contains(t, lines[0], e.PrimaryKey.KeyIdString())
}
