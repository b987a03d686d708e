package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"testing"
	"time"

	"github.com/ptgott/pgpmail/smtptest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMessage = "From: me@example.com\r\nTo: you@example.com\r\nSubject: hi\r\n\r\nHello this is my email body\r\n"

func TestParseStartTLSPolicy(t *testing.T) {
	testCases := []struct {
		description   string
		input         string
		expected      StartTLSPolicy
		shouldBeError bool
	}{
		{description: "empty means opportunistic", input: "", expected: StartTLSOpportunistic},
		{description: "always", input: "always", expected: StartTLSAlways},
		{description: "never", input: "never", expected: StartTLSNever},
		{description: "unknown", input: "sometimes", shouldBeError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			p, err := ParseStartTLSPolicy(tc.input)
			if (err != nil) != tc.shouldBeError {
				t.Fatalf("wanted error status %v but got %v with error %v", tc.shouldBeError, err != nil, err)
			}
			assert.Equal(t, tc.expected, p)
		})
	}
}

// TestSMTPRelaySend checks the minimal expected behavior of a plaintext,
// unauthenticated relay.
func TestSMTPRelaySend(t *testing.T) {
	srv := smtptest.NewInProcessServer("", "")
	go srv.Start()
	defer srv.Close()

	r := &SMTPRelay{Addr: srv.Address()}
	err := r.Send(
		context.Background(),
		"me@example.com",
		[]string{"you@example.com", "them@example.com"},
		[]byte(testMessage),
	)
	require.NoError(t, err)

	ms := srv.RetrieveMessages(0)
	require.Len(t, ms, 1)
	assert.Equal(t, "me@example.com", ms[0].From)
	assert.Equal(t, []string{"you@example.com", "them@example.com"}, ms[0].To)
	assert.Contains(t, ms[0].Body, "Hello this is my email body")
	assert.Empty(t, srv.Logins())
}

func TestSMTPRelaySendWithSTARTTLSAndAuth(t *testing.T) {
	k, c, err := smtptest.GenerateTLSFiles(t)
	require.NoError(t, err)
	srv := smtptest.NewInProcessServer(k, c)
	go srv.Start()
	defer srv.Close()

	r := &SMTPRelay{
		Addr:     srv.Address(),
		Username: "myuser",
		Password: "mypassword",
		StartTLS: StartTLSAlways,
		// since it's a self-signed cert
		TLSConfig: &tls.Config{InsecureSkipVerify: true},
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(10)*time.Second)
	defer cancel()

	require.NoError(t, r.Send(ctx, "me@example.com", []string{"you@example.com"}, []byte(testMessage)))

	assert.Equal(t, []string{"myuser"}, srv.Logins())
	ems, err := srv.RetrieveEmails(0)
	require.NoError(t, err)
	assert.Len(t, ems, 1)
}

func TestSMTPRelayRequiresSTARTTLS(t *testing.T) {
	srv := smtptest.NewInProcessServer("", "")
	go srv.Start()
	defer srv.Close()

	r := &SMTPRelay{Addr: srv.Address(), StartTLS: StartTLSAlways}
	err := r.Send(context.Background(), "me@example.com", []string{"you@example.com"}, []byte(testMessage))
	assert.True(t, errors.Is(err, ErrNoStartTLS), "expected ErrNoStartTLS but got %v", err)

	ems, _ := srv.RetrieveEmails(0)
	assert.Empty(t, ems)
}

func TestSMTPRelayAuthWithoutTLSFails(t *testing.T) {
	k, c, err := smtptest.GenerateTLSFiles(t)
	require.NoError(t, err)
	srv := smtptest.NewInProcessServer(k, c)
	go srv.Start()
	defer srv.Close()

	// The server only allows AUTH after STARTTLS
	r := &SMTPRelay{
		Addr:     srv.Address(),
		Username: "myuser",
		Password: "mypassword",
		StartTLS: StartTLSNever,
	}
	err = r.Send(context.Background(), "me@example.com", []string{"you@example.com"}, []byte(testMessage))
	assert.Error(t, err)
}

func TestSMTPRelayBadAddress(t *testing.T) {
	testCases := []struct {
		description string
		addr        string
	}{
		{description: "no port", addr: "localhost"},
		{description: "nothing listening", addr: "127.0.0.1:1"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			r := &SMTPRelay{Addr: tc.addr}
			err := r.Send(context.Background(), "me@example.com", []string{"you@example.com"}, []byte(testMessage))
			assert.Error(t, err)
		})
	}
}
