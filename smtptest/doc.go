package smtptest

// smtptest runs an SMTP server inside the test process so tests can inspect
// exactly what a relay would have received: the SMTP envelope as well as the
// raw message.
