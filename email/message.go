package email

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"
	"github.com/emersion/go-message"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Used when content detection can't name a type
const fallbackContentType = "application/octet-stream"

// Attachment is a file to send along with the text of a message.
type Attachment struct {
	Filename    string
	ContentType string
	Params      map[string]string // e.g., charset for text files
	Content     []byte
}

// NewAttachment reads the file at path and guesses its content type from
// its bytes. maxSize limits the file size in bytes. Zero means no limit.
func NewAttachment(path string, maxSize int64) (Attachment, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("can't attach %v: %w", path, err)
	}
	if fi.IsDir() {
		return Attachment{}, fmt.Errorf("can't attach %v: it is a directory", path)
	}
	if maxSize > 0 && fi.Size() > maxSize {
		return Attachment{}, fmt.Errorf(
			"can't attach %v: its size of %v exceeds the limit of %v",
			path,
			units.BytesSize(float64(fi.Size())),
			units.BytesSize(float64(maxSize)),
		)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("can't attach %v: %w", path, err)
	}

	ct, params := detectContentType(b)
	log.Debug().
		Str("path", path).
		Str("contentType", ct).
		Str("size", units.HumanSize(float64(len(b)))).
		Msg("attaching file")

	return Attachment{
		Filename:    filepath.Base(path),
		ContentType: ct,
		Params:      params,
		Content:     b,
	}, nil
}

// detectContentType splits the detected media type into a type/subtype and
// its parameters.
func detectContentType(b []byte) (string, map[string]string) {
	mt, params, err := mime.ParseMediaType(mimetype.Detect(b).String())
	if err != nil || !strings.Contains(mt, "/") {
		return fallbackContentType, nil
	}
	return mt, params
}

// Message is what the user wants to say, independent of who receives it.
type Message struct {
	Subject     string
	Text        string
	Attachments []Attachment
}

// Compose builds a Message from body text and the files at paths, attached in
// order. Any file that can't be read fails the whole message.
func Compose(subject string, text string, paths []string, maxAttachmentSize int64) (*Message, error) {
	m := &Message{
		Subject:     subject,
		Text:        text,
		Attachments: make([]Attachment, 0, len(paths)),
	}
	for _, p := range paths {
		a, err := NewAttachment(p, maxAttachmentSize)
		if err != nil {
			return nil, err
		}
		m.Attachments = append(m.Attachments, a)
	}
	return m, nil
}

// WriteBody writes m as a multipart/mixed entity: the text first, then one
// base64 part per attachment. h holds any other header fields the entity
// should carry and isn't modified.
func (m *Message) WriteBody(w io.Writer, h message.Header) error {
	h = h.Copy()
	h.SetContentType("multipart/mixed", nil)

	mw, err := message.CreateWriter(w, h)
	if err != nil {
		return fmt.Errorf("can't start the message body: %w", err)
	}

	var th message.Header
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	th.Set("Content-Transfer-Encoding", "quoted-printable")
	if err := writePart(mw, th, []byte(m.Text)); err != nil {
		return fmt.Errorf("can't write the message text: %w", err)
	}

	for _, a := range m.Attachments {
		var ah message.Header
		ah.SetContentType(a.ContentType, a.Params)
		ah.SetContentDisposition("attachment", map[string]string{"filename": a.Filename})
		ah.Set("Content-Transfer-Encoding", "base64")
		if err := writePart(mw, ah, a.Content); err != nil {
			return fmt.Errorf("can't attach %v: %w", a.Filename, err)
		}
	}

	return mw.Close()
}

func writePart(mw *message.Writer, h message.Header, b []byte) error {
	pw, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := pw.Write(b); err != nil {
		pw.Close()
		return err
	}
	return pw.Close()
}
