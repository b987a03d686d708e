package transport

// transport submits fully formed messages. It doesn't build or inspect
// message bodies: callers pass the envelope sender, the envelope recipients
// and the raw RFC 5322 message, and a Sender gets it to a relay, an API, or a
// writer.
