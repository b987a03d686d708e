package userconfig

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ptgott/pgpmail/email"
	"github.com/ptgott/pgpmail/pgp"
	"github.com/ptgott/pgpmail/storage"
	"github.com/ptgott/pgpmail/transport"
	"github.com/rs/zerolog/log"

	yaml "gopkg.in/yaml.v2"
)

// Environment variables that override the config file
const (
	envFrom      = "PGPMAIL_FROM"
	envRelay     = "PGPMAIL_RELAY"
	envTransport = "PGPMAIL_TRANSPORT"
	envUsername  = "PGPMAIL_USERNAME"
	envPassword  = "PGPMAIL_PASSWORD"
	envStartTLS  = "PGPMAIL_STARTTLS"
	envKeyring   = "PGPMAIL_KEYRING"
	envSESRegion = "AWS_REGION"
)

// Meta represents all current config options that the application can use,
// i.e., after validation and parsing
type Meta struct {
	EmailSettings email.UserConfig `yaml:"email"`
	PGP           PGP              `yaml:"pgp"`
	Storage       storage.KVConfig `yaml:"storage"`
}

// PGP contains config options for encrypting messages
type PGP struct {
	// Path to an exported public keyring
	KeyringPath string
	// Send plaintext unless the user asks for encryption. Encryption is the
	// default.
	DisableEncryption bool
}

// UnmarshalYAML parses a user-provided YAML configuration, returning any
// parsing errors.
func (p *PGP) UnmarshalYAML(unmarshal func(interface{}) error) error {
	v := make(map[string]string)
	err := unmarshal(&v)

	if err != nil {
		return fmt.Errorf("can't parse the pgp config: %v", err)
	}

	p.KeyringPath = v["keyring"]

	if d, ok := v["disableEncryption"]; ok {
		b, err := strconv.ParseBool(d)
		if err != nil {
			return fmt.Errorf("disableEncryption must be true or false: %v", err)
		}
		p.DisableEncryption = b
	}

	return nil
}

// CheckAndSetDefaults validates p and either returns a copy of p with default
// settings applied or returns an error due to an invalid configuration
func (p *PGP) CheckAndSetDefaults() (PGP, error) {
	c := *p
	if c.KeyringPath == "" {
		c.KeyringPath = pgp.DefaultKeyringPath()
	}
	kp, err := expandHome(c.KeyringPath)
	if err != nil {
		return PGP{}, err
	}
	c.KeyringPath = kp
	return c, nil
}

// expandHome resolves a leading "~/" to the user's home directory.
func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	h, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("can't expand %v: %v", p, err)
	}
	return filepath.Join(h, strings.TrimPrefix(p, "~")), nil
}

// CheckAndSetDefaults validates m and either returns a copy of m with default
// settings applied or returns an error due to an invalid configuration
func (m *Meta) CheckAndSetDefaults() (Meta, error) {
	c := Meta{
		Storage: m.Storage,
	}

	e, err := m.EmailSettings.CheckAndSetDefaults()
	if err != nil {
		return Meta{}, err
	}
	c.EmailSettings = e

	p, err := m.PGP.CheckAndSetDefaults()
	if err != nil {
		return Meta{}, err
	}
	c.PGP = p

	return c, nil
}

// ApplyEnv overrides config values with any environment variables that are
// set. lookup is usually os.Getenv.
func (m *Meta) ApplyEnv(lookup func(string) string) error {
	if v := lookup(envFrom); v != "" {
		m.EmailSettings.FromAddress = v
	}
	if v := lookup(envRelay); v != "" {
		a, err := email.ParseRelayAddress(v)
		if err != nil {
			return fmt.Errorf("%v: %w", envRelay, err)
		}
		m.EmailSettings.RelayAddress = a
	}
	if v := lookup(envTransport); v != "" {
		m.EmailSettings.Transport = strings.ToLower(v)
	}
	if v := lookup(envUsername); v != "" {
		m.EmailSettings.Username = v
	}
	if v := lookup(envPassword); v != "" {
		m.EmailSettings.Password = v
	}
	if v := lookup(envStartTLS); v != "" {
		p, err := transport.ParseStartTLSPolicy(strings.ToLower(v))
		if err != nil {
			return fmt.Errorf("%v: %w", envStartTLS, err)
		}
		m.EmailSettings.StartTLS = p
	}
	if v := lookup(envKeyring); v != "" {
		m.PGP.KeyringPath = v
	}
	if v := lookup(envSESRegion); v != "" && m.EmailSettings.SESRegion == "" {
		m.EmailSettings.SESRegion = v
	}
	return nil
}

// LoadDotEnv adds the variables in the .env file at path to the environment,
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("can't load %v: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("loaded environment variables")
	return nil
}

// Parse generates usable configurations from possibly arbitrary user input.
// An error indicates a problem with parsing. The Reader r can be either JSON
// or YAML. Required values are checked later by CheckAndSetDefaults, after
// the environment has had a chance to supply them.
func Parse(r io.Reader) (*Meta, error) {
	var m Meta
	err := yaml.NewDecoder(r).Decode(&m)
	if err != nil && !errors.Is(err, io.EOF) {
		return &Meta{}, fmt.Errorf("can't read the config file as YAML: %v", err)
	}

	if !m.Storage.Enabled() {
		log.Debug().Msg(
			"no storage directory configured, so deliveries won't be recorded",
		)
	}

	return &m, nil
}
