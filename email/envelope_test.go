package email

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeHeader(t *testing.T) {
	d := time.Date(2026, time.October, 15, 9, 30, 0, 0, time.UTC)
	env := Envelope{
		From:    "Me <me@example.com>",
		To:      []string{"you@example.com", "Them <them@example.org>"},
		Subject: "test",
		Date:    d,
	}

	h, err := env.Header()
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(env.MessageID, "@example.com"), "unexpected Message-ID %v", env.MessageID)
	id, err := h.MessageID()
	require.NoError(t, err)
	assert.Equal(t, env.MessageID, id)

	from, err := h.AddressList("From")
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, "me@example.com", from[0].Address)

	to, err := h.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 2)
	assert.Equal(t, "them@example.org", to[1].Address)
	assert.Contains(t, h.Get("To"), ", ")

	s, err := h.Subject()
	require.NoError(t, err)
	assert.Equal(t, "test", s)

	hd, err := h.Date()
	require.NoError(t, err)
	assert.True(t, d.Equal(hd))

	rcpts, err := env.Recipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"you@example.com", "them@example.org"}, rcpts)

	sender, err := env.Sender()
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", sender)
}

func TestEnvelopeKeepsMessageID(t *testing.T) {
	env := Envelope{From: "me@example.com", To: []string{"you@example.com"}, MessageID: "fixed@example.com"}
	_, err := env.Header()
	require.NoError(t, err)
	assert.Equal(t, "fixed@example.com", env.MessageID)
}

func TestEnvelopeValidation(t *testing.T) {
	testCases := []struct {
		description string
		env         Envelope
	}{
		{
			description: "no recipients",
			env:         Envelope{From: "me@example.com"},
		},
		{
			description: "bad recipient",
			env:         Envelope{From: "me@example.com", To: []string{"not an address"}},
		},
		{
			description: "bad sender",
			env:         Envelope{From: "me", To: []string{"you@example.com"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			_, err := tc.env.Header()
			assert.Error(t, err)
		})
	}
}

func TestNewMessageID(t *testing.T) {
	assert.True(t, strings.HasSuffix(newMessageID("me@example.com"), "@example.com"))
	assert.True(t, strings.HasSuffix(newMessageID("me@"), "@localhost"))
	assert.NotEqual(t, newMessageID("me@example.com"), newMessageID("me@example.com"))
}
