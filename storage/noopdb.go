package storage

import "errors"

// ErrNoOp is returned by every read and write against a NoOpDB.
var ErrNoOp = errors.New("the no-op database stores nothing")

// NoOpDB is used when we need to avoid touching the storage layer while still
// preserving our interactions with an abstract database, e.g., when the user
// hasn't configured a delivery log. The strategy is to return whatever value
// will prevent the calling context from further interacting with the storage
// layer.
//
// For get and put operations, we always return ErrNoOp, so the caller knows
// that no actual data has been read or written.
//
// For database-wide operations, such as cleaning up or closing the database,
// we always return a nil error. This is because, since there is nothing to
// close or clean up, the operation is always successful.
type NoOpDB struct{}

// Put always returns an error so callers don't assume a new key has been
// written.
func (n *NoOpDB) Put(KVEntry) error {
	return ErrNoOp
}

// Read always returns an error so callers don't assume a key has been read.
func (n *NoOpDB) Read(key []byte) (KVEntry, error) {
	return KVEntry{}, ErrNoOp
}

// Cleanup always returns nil in order to prevent retries or panics.
func (n *NoOpDB) Cleanup() error {
	return nil
}

// Close is no-op
func (n *NoOpDB) Close() error {
	return nil
}
