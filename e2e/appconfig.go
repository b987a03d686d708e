package e2e

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/ptgott/pgpmail/userconfig"
)

// appConfigOptions is used to fill in a config template with details unique to
// a specific test environment. Keep this as small as possible so the input
// remains as close to a "real" YAML document as we can make it. Also using
// YAML/JSON-compatible types only here.
//
// Fields are exported so we can use them in templates.
type appConfigOptions struct {
	RelayAddress      string
	Username          string
	Password          string
	StartTLS          string
	KeyringPath       string
	DisableEncryption bool
	StorageDir        string
}

const configTemplate = `---
email:
  fromAddress: mynewsletter@example.com
  relayAddress: {{ .RelayAddress }}
{{- if .Username }}
  username: {{ .Username }}
  password: {{ .Password }}
{{- end }}
  starttls: {{ .StartTLS }}
  skipCertVerification: true
  maxAttachmentSize: 1MiB
pgp:
  keyring: {{ .KeyringPath }}
  disableEncryption: {{ .DisableEncryption }}
{{- if .StorageDir }}
storage:
  storageDir: {{ .StorageDir }}
  keyTTL: 1h
{{- end }}
`

// createAppConfig writes a configuration YAML doc to the given path.
func createAppConfig(path string, opts appConfigOptions) error {
	tmpl, err := template.New("conf").Parse(configTemplate)

	// This means the config template string was written incorrectly. Not
	// an issue with the application itself.
	if err != nil {
		return fmt.Errorf("couldn't parse the application config template: %v", err)
	}

	var config bytes.Buffer

	err = tmpl.Execute(&config, opts)

	// This is an issue with the test environment, not the application
	if err != nil {
		return fmt.Errorf("couldn't populate the application config template: %v", err)
	}

	if err := os.WriteFile(path, config.Bytes(), 0600); err != nil {
		return fmt.Errorf("couldn't write the config file: %v", err)
	}

	return nil
}

// createUserConfig writes a config file into dir and reads it back the way
// main does, returning a validated config.
func createUserConfig(dir string, opts appConfigOptions) (userconfig.Meta, error) {
	p := filepath.Join(dir, "config.yaml")
	if err := createAppConfig(p, opts); err != nil {
		return userconfig.Meta{}, err
	}

	f, err := os.Open(p)
	if err != nil {
		return userconfig.Meta{}, err
	}
	defer f.Close()

	m, err := userconfig.Parse(f)
	if err != nil {
		return userconfig.Meta{}, err
	}

	return m.CheckAndSetDefaults()
}
