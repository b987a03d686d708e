package smtptest

import (
	"strings"

	"github.com/emersion/go-message"
	// Registers charset decoders so parsing doesn't fail on non-UTF-8 parts
	_ "github.com/emersion/go-message/charset"
)

// ParseEmail reads a raw message retrieved from the server into a MIME
// entity. Multipart bodies can be walked with MultipartReader.
func ParseEmail(body string) (*message.Entity, error) {
	return message.Read(strings.NewReader(body))
}
