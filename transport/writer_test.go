package transport

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestWriterSend(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	err := w.Send(context.Background(), "me@example.com", []string{"you@example.com", "them@example.com"}, []byte(testMessage))
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, s := range []string{
		"MAIL FROM:<me@example.com>",
		"RCPT TO:<you@example.com>",
		"RCPT TO:<them@example.com>",
		"Hello this is my email body",
	} {
		if !strings.Contains(out, s) {
			t.Errorf("expected the output to contain %q but got:\n%v", s, out)
		}
	}
}
