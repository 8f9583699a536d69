package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store.Get when the key is absent or expired.
// It is not a store failure.
var ErrNotFound = errors.New("key not found")

// Store is the contract over the shared key-value store that holds session
// records. Every operation touches a single key and is assumed atomic at
// the store level; no multi-key transaction is relied upon.
//
// Infrastructure failures are returned as *api.StoreError and are never
// retried here: retry policy belongs to callers that know whether the
// operation is idempotent.
type Store interface {
	// Get returns the string stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set overwrites key. ttl <= 0 stores the value without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// HGetAll returns every field of the hash at key. A missing key yields
	// an empty map.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HSet merges fields into the hash at key and, when ttl > 0, renews the
	// key's expiry. The expiry is renewed even when fields is empty.
	HSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
}

// Swapper is implemented by stores that offer an atomic conditional write.
//
// CompareAndSwap reads key (treating an absent key as holding missing) and,
// if the value is one of expected, overwrites it with value and ttl. It
// returns the value it observed before any write and whether it wrote.
type Swapper interface {
	CompareAndSwap(ctx context.Context, key string, expected []string, missing, value string, ttl time.Duration) (observed string, swapped bool, err error)
}
