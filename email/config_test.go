package email

import (
	"bytes"
	"context"
	"testing"

	"github.com/ptgott/pgpmail/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestUnmarshalYAML(t *testing.T) {
	testCases := []struct {
		description   string
		input         string
		shouldBeError bool
	}{
		{
			description: "valid case",
			input: `relayAddress: smtp://0.0.0.0:123
fromAddress: me@example.com
username: MyUser123
password: 123456-A_BCDE
starttls: always
skipCertVerification: true
maxAttachmentSize: 10MiB
`,
			shouldBeError: false,
		},
		{
			description:   "empty map",
			input:         `{}`,
			shouldBeError: false,
		},
		{
			description: "wrong scheme",
			input: `relayAddress: https://0.0.0.0:123
fromAddress: me@example.com
`,
			shouldBeError: true,
		},
		// We should allow this because smtp:// is self evident
		{
			description: "no scheme",
			input: `relayAddress: 0.0.0.0:123
fromAddress: me@example.com
`,
			shouldBeError: false,
		},
		{
			description:   "no port",
			input:         `relayAddress: smtp://0.0.0.0`,
			shouldBeError: false,
		},
		{
			description:   "bad port",
			input:         `relayAddress: smtp://0.0.0.0:99999`,
			shouldBeError: true,
		},
		{
			description: "username without a password",
			input: `fromAddress: me@example.com
username: MyUser123
`,
			shouldBeError: true,
		},
		{
			description: "password without a username",
			input: `fromAddress: me@example.com
password: 123456-A_BCDE
`,
			shouldBeError: true,
		},
		{
			description:   "bad from address",
			input:         `fromAddress: me`,
			shouldBeError: true,
		},
		{
			description:   "unknown transport",
			input:         `transport: pigeon`,
			shouldBeError: true,
		},
		{
			description:   "unknown starttls policy",
			input:         `starttls: sometimes`,
			shouldBeError: true,
		},
		{
			description:   "bad size",
			input:         `maxAttachmentSize: lots`,
			shouldBeError: true,
		},
		{
			description:   "bad bool",
			input:         `skipCertVerification: maybe`,
			shouldBeError: true,
		},
		{
			description:   "not a map[string]string",
			input:         `[]`,
			shouldBeError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			var uc UserConfig
			buf := bytes.NewBuffer([]byte(tc.input))
			dec := yaml.NewDecoder(buf)
			err := dec.Decode(&uc)
			if (err != nil) != tc.shouldBeError {
				t.Errorf(
					"%v: unexpected error status--wanted %v but got %v with error %v",
					tc.description,
					tc.shouldBeError,
					err != nil,
					err,
				)
			}
		})
	}
}

func TestUnmarshalYAMLValues(t *testing.T) {
	var uc UserConfig
	err := yaml.Unmarshal([]byte(`relayAddress: mail.example.com
fromAddress: me@example.com
transport: ses
sesRegion: eu-west-1
skipCertVerification: true
maxAttachmentSize: 10MiB
`), &uc)
	require.NoError(t, err)

	assert.Equal(t, "mail.example.com:25", uc.RelayAddress)
	assert.Equal(t, "me@example.com", uc.FromAddress)
	assert.Equal(t, TransportSES, uc.Transport)
	assert.Equal(t, "eu-west-1", uc.SESRegion)
	assert.True(t, uc.SkipCertVerification)
	assert.Equal(t, int64(10*1024*1024), uc.MaxAttachmentSize)
	assert.Equal(t, transport.StartTLSOpportunistic, uc.StartTLS)
}

func TestParseRelayAddress(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{input: "localhost", expected: "localhost:25"},
		{input: "smtp://smtp.example.com:587", expected: "smtp.example.com:587"},
		{input: "[::1]:2525", expected: "[::1]:2525"},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			a, err := ParseRelayAddress(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, a)
		})
	}
}

func TestCheckAndSetDefaults(t *testing.T) {
	testCases := []struct {
		description   string
		input         UserConfig
		shouldBeError bool
		expected      UserConfig
	}{
		{
			description: "defaults",
			input:       UserConfig{FromAddress: "me@example.com"},
			expected: UserConfig{
				FromAddress:  "me@example.com",
				RelayAddress: "localhost:25",
				Transport:    TransportSMTP,
				StartTLS:     transport.StartTLSOpportunistic,
			},
		},
		{
			description:   "no from address",
			input:         UserConfig{},
			shouldBeError: true,
		},
		{
			description:   "ses without a region",
			input:         UserConfig{FromAddress: "me@example.com", Transport: TransportSES},
			shouldBeError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			c, err := tc.input.CheckAndSetDefaults()
			if (err != nil) != tc.shouldBeError {
				t.Fatalf("wanted error status %v but got %v with error %v", tc.shouldBeError, err != nil, err)
			}
			if !tc.shouldBeError {
				assert.Equal(t, tc.expected, c)
			}
		})
	}
}

func TestNewTransport(t *testing.T) {
	testCases := []struct {
		description  string
		config       UserConfig
		expectedName string
	}{
		{
			description:  "smtp",
			config:       UserConfig{Transport: TransportSMTP, RelayAddress: "localhost:25"},
			expectedName: "smtp",
		},
		{
			description:  "stdout",
			config:       UserConfig{Transport: TransportStdout},
			expectedName: "stdout",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			tr, err := tc.config.NewTransport(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.expectedName, tr.Name())
		})
	}
}
