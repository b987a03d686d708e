package e2e

// e2e contains integration tests and utility code required to set up
// dependencies. Note that some e2e test dependencies are also used by unit
// tests--these dependencies are not included here. The tests drive the
// application from a YAML config, the same way main does, against an SMTP
// server running in the test process.
