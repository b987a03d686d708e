package transport

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Writer prints messages instead of sending them. It's what -noemail uses so
// users can check a message before it goes anywhere.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a Writer that prints to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Name implements Sender.
func (w *Writer) Name() string {
	return "stdout"
}

// Send implements Sender. The envelope is printed ahead of the message.
func (w *Writer) Send(_ context.Context, from string, to []string, msg []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var b strings.Builder
	b.WriteString("========================================\n")
	fmt.Fprintf(&b, "MAIL FROM:<%v>\n", from)
	for _, r := range to {
		fmt.Fprintf(&b, "RCPT TO:<%v>\n", r)
	}
	b.WriteString("========================================\n")
	b.Write(msg)
	if !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}

	_, err := io.WriteString(w.w, b.String())
	return err
}
