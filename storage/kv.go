package storage

import (
	"errors"
	"fmt"
	"time"
)

// defaultKeyTTL is how long a delivery record survives when the user doesn't
// say otherwise: 30 days.
const defaultKeyTTL = time.Duration(720) * time.Hour

// KVConfig contains settings specific to BadgerDB connections
type KVConfig struct {
	StorageDirPath string        `yaml:"storageDir" json:"storageDir"`
	KeyTTLDuration time.Duration `yaml:"keyTTL" json:"keyTTL"`
}

// UnmarshalYAML implements yaml.Unmarshaler. A storage section must name a
// directory. The key TTL is optional.
func (c *KVConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	v := make(map[string]string)
	if err := unmarshal(&v); err != nil {
		return fmt.Errorf("can't parse the storage config: %v", err)
	}

	p, ok := v["storageDir"]
	if !ok || p == "" {
		return errors.New("the storage config must include a storageDir")
	}
	c.StorageDirPath = p

	ttl, ok := v["keyTTL"]
	if !ok {
		c.KeyTTLDuration = defaultKeyTTL
		return nil
	}
	d, err := time.ParseDuration(ttl)
	if err != nil {
		return fmt.Errorf("can't parse the key TTL as a duration: %v", err)
	}
	if d <= 0 {
		return errors.New("the key TTL must be positive")
	}
	c.KeyTTLDuration = d

	return nil
}

// Enabled reports whether the user configured a storage directory at all.
func (c KVConfig) Enabled() bool {
	return c.StorageDirPath != ""
}

// KeyValue exposes a common interface for performing CRUD operations on an
// underlying storage layer.
//
// Implentations need to include connection logic in code to initialize
// a Store.
type KeyValue interface {
	// Replace the value of an entry or create a new one if it doesn't exist
	Put(KVEntry) error
	// Return an entry given its key
	Read(key []byte) (KVEntry, error)
	// Cleanup performs routine deletion of old records. We assign
	// TTLs to KV pairs and delete them periodically.
	Cleanup() error
	// Drain/tear down the connection, or something analogous for
	// an embedded database
	Close() error
}

// KVEntry is what we'll write to and read from the KV store
type KVEntry struct {
	Key   []byte
	Value []byte
}
