package pgp

// pgp reads OpenPGP public keyrings and encrypts payloads to the key of a
// single recipient. It knows nothing about MIME: callers hand it a byte slice
// and get back an ASCII-armored PGP message. Keys are always trusted, so it is
// up to the operator to make sure the keyring only holds keys they have
// verified.
