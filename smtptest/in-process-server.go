package smtptest

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/emersion/go-smtp"
)

// Message is a single mail transaction received by the server.
type Message struct {
	created time.Time
	From    string
	To      []string
	Body    string
}

// Backend implements smtp.Backend. It's a thin authentication wrapper
// for an InMemoryEmailStore.
type Backend struct {
	*InMemoryEmailStore
	requireAuth bool
}

// Login implements smtp.Backend. Any username/password is fine, since we
// don't want to couple this with specific test configurations.
func (be *Backend) Login(_ *smtp.ConnectionState, username string, password string) (smtp.Session, error) {
	if username != "" && password != "" {
		be.saveLogin(username)
		return &session{store: be.InMemoryEmailStore}, nil
	}
	return nil, errors.New("no username or password provided")
}

// AnonymousLogin implements smtp.Backend. Only allowed when the server runs
// without TLS, i.e., when it acts like a plaintext relay.
func (be *Backend) AnonymousLogin(_ *smtp.ConnectionState) (smtp.Session, error) {
	if be.requireAuth {
		return nil, smtp.ErrAuthUnsupported
	}
	return &session{store: be.InMemoryEmailStore}, nil
}

// session implements smtp.Session and holds the envelope of the transaction
// in progress. Each connection gets its own session.
type session struct {
	store *InMemoryEmailStore
	from  string
	to    []string
}

// Reset implements smtp.Session.
func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

// Logout implements smtp.Session. No-op here.
func (s *session) Logout() error { return nil }

// Mail implements smtp.Session.
func (s *session) Mail(from string, _ smtp.MailOptions) error {
	s.from = from
	return nil
}

// Rcpt implements smtp.Session.
func (s *session) Rcpt(to string) error {
	s.to = append(s.to, to)
	return nil
}

// Data implements smtp.Session. Stores the email data in memory for retrieval
// at the end of the test.
func (s *session) Data(r io.Reader) error {
	// doubtful we'll get an email this big, but we need a limit
	var maxEmailSize int64 = 100 * units.MiB
	buf, err := io.ReadAll(io.LimitReader(r, maxEmailSize))
	if err != nil {
		return err
	}

	str := &strings.Builder{}
	if _, err := str.Write(buf); err != nil {
		return err
	}
	s.store.saveEmail(s.from, s.to, str.String())
	return nil
}

// InMemoryEmailStore retains email bodies in memory for comparison against
// a test's expected output. Designed to be goroutine safe since we don't
// know how many goroutines will be hitting the server at once.
type InMemoryEmailStore struct {
	mu       *sync.Mutex
	messages []Message
	logins   []string
}

// InProcessServer is an SMTPServer that runs in the same process as the
// test suite, letting us inspect sent emails. You must initialize this
// via NewInProcessServer
type InProcessServer struct {
	*smtp.Server
	*InMemoryEmailStore
	listener net.Listener
}

// NewInProcessServer creates an InProcessServer, including configuring
// its SMTP server to store incoming messages in memory. The server listens on
// a random local port right away, so Address is valid before Start.
//
// With a key and cert, the server offers STARTTLS and requires AUTH, which it
// only allows after the connection is upgraded. With empty paths it behaves
// like a plaintext relay that accepts mail from anyone.
func NewInProcessServer(keypath string, certpath string) *InProcessServer {
	is := &InMemoryEmailStore{
		mu:       &sync.Mutex{},
		messages: []Message{},
	}

	useTLS := keypath != "" && certpath != ""
	srv := smtp.NewServer(&Backend{
		InMemoryEmailStore: is,
		requireAuth:        useTLS,
	})

	srv.Domain = "localhost"
	srv.AllowInsecureAuth = !useTLS
	srv.AuthDisabled = false
	// Strict is undocumented, but it looks like it enforces <address> syntax
	// in messages:
	// https://github.com/emersion/go-smtp/blob/f92bf7f1a25777bcdaa28a142b1cd1a54b74c8f4/conn.go#L321-L325
	srv.Strict = true

	if useTLS {
		cert, err := tls.LoadX509KeyPair(certpath, keypath)

		// No way to carry on without a cert, so we panic. We're in a test
		// suite, so this should be fine.
		if err != nil {
			panic(err)
		}

		srv.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
		}
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	srv.Addr = l.Addr().String()

	return &InProcessServer{
		Server:             srv,
		InMemoryEmailStore: is,
		listener:           l,
	}
}

// saveEmail stores the email body in memory along with a timestamp created
// just prior to saving
func (es *InMemoryEmailStore) saveEmail(from string, to []string, bod string) {
	es.mu.Lock()
	defer es.mu.Unlock()

	rcpts := make([]string, len(to))
	copy(rcpts, to)
	es.messages = append(es.messages, Message{
		created: time.Now(),
		From:    from,
		To:      rcpts,
		Body:    bod,
	})
}

func (es *InMemoryEmailStore) saveLogin(username string) {
	es.mu.Lock()
	defer es.mu.Unlock()

	es.logins = append(es.logins, username)
}

// Logins returns the usernames of every successful AUTH, in order.
func (es *InMemoryEmailStore) Logins() []string {
	es.mu.Lock()
	defer es.mu.Unlock()

	l := make([]string, len(es.logins))
	copy(l, es.logins)
	return l
}

// Start starts the test server. Blocking.
func (is *InProcessServer) Start() error {
	// Not using ServeTLS--the client should upgrade the connection
	// to TLS
	return is.Server.Serve(is.listener)
}

// Close shuts down the test server daemon. You must initialize a new
// InProcessServer instead of restarting this one.
func (is *InProcessServer) Close() {
	is.Server.Close()
}

// RetrieveEmails returns a slice of all message bodies (as strings)
// sent after epoch nanoseconds t
// Satisfies smtptest.Server but isn't expected to return an error.
func (es *InMemoryEmailStore) RetrieveEmails(t int64) ([]string, error) {
	ms := es.RetrieveMessages(t)
	r := make([]string, len(ms))
	for i := range ms {
		r[i] = ms[i].Body
	}
	return r, nil
}

// RetrieveMessages is RetrieveEmails with the SMTP envelope of each message.
func (es *InMemoryEmailStore) RetrieveMessages(t int64) []Message {
	es.mu.Lock()
	defer es.mu.Unlock()

	r := make([]Message, 0, len(es.messages))
	for _, m := range es.messages {
		if m.created.UnixNano() >= t {
			r = append(r, m)
		}
	}
	return r
}

// Address returns the host:port of the test SMTP server.
func (is *InProcessServer) Address() string {
	return is.listener.Addr().String()
}
