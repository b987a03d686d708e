package email

// email builds MIME messages from a subject, a text body and files on disk,
// optionally wraps a separate encrypted copy for each recipient following
// RFC 3156 (PGP/MIME), and hands the result to a transport. It also holds the
// user-facing settings for reaching the relay.
