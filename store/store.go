// Package store defines the minimal key/value contract the session
// orchestrator uses for persistence, along with concrete stores: an
// in-memory store with optional TTL, an HTTP cookie backed store, and a
// no-op store which discards everything written to it.
//
// The orchestrator is constructed with two independent instances: a durable
// store holding long-lived session data (user, tokens) and a transient store
// holding single-use transaction data (nonce, max_age, state).
package store

import (
	"context"
)

// Store is a minimal key/value contract.  Implementations must be safe for
// use by a single request; safety across concurrent requests sharing the
// same instance is implementation defined (see Consumer).
type Store interface {
	// Get returns the value for key and whether the key was present.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any existing value.
	Set(ctx context.Context, key string, value string) error

	// Delete removes key.  Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Consumer is an optional interface a Store may implement to make the
// read-then-delete of a single-use value atomic.  When two requests race on
// the same key, at most one of them observes the value.
type Consumer interface {
	// GetDelete returns the value for key and removes it in one step.
	GetDelete(ctx context.Context, key string) (value string, ok bool, err error)
}

// GetDelete reads key from s and deletes it.  If s implements Consumer the
// read and delete are a single atomic step; otherwise they are two calls and
// a concurrent reader may observe the value before it is removed.
func GetDelete(ctx context.Context, s Store, key string) (string, bool, error) {
	if c, ok := s.(Consumer); ok {
		return c.GetDelete(ctx, key)
	}
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	if err := s.Delete(ctx, key); err != nil {
		return "", false, err
	}
	return v, true, nil
}
