package store

import "context"

// Noop is a Store that discards writes and reports every key absent.  It is
// useful when the caller handles persistence itself, or wants none.
type Noop struct{}

var _ Store = (*Noop)(nil)

// NewNoop creates a no-op store.
func NewNoop() *Noop { return &Noop{} }

func (n *Noop) Get(ctx context.Context, key string) (string, bool, error) { return "", false, nil }
func (n *Noop) Set(ctx context.Context, key string, value string) error   { return nil }
func (n *Noop) Delete(ctx context.Context, key string) error              { return nil }
