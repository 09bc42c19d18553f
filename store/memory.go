package store

import (
	"context"
	"sync"
	"time"
)

// Memory is a mutex guarded in-process Store with an optional TTL.  It
// implements Consumer, so single-use values read through GetDelete are
// consumed atomically: when two requests race on the same key at most one
// observes the value.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value   string
	expires time.Time // zero means no expiry
}

// ensure that Memory implements both interfaces
var (
	_ Store    = (*Memory)(nil)
	_ Consumer = (*Memory)(nil)
)

// NewMemory creates an empty in-memory store.
// Supported options: WithTTL, WithNow
func NewMemory(opt ...Option) *Memory {
	opts := getMemoryOpts(opt...)
	return &Memory{
		ttl:     opts.withTTL,
		now:     opts.withNow,
		entries: map[string]memoryEntry{},
	}
}

// Get implements Store.Get.  Expired entries are removed and reported
// absent.
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if m.expired(e) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Set implements Store.Set.
func (m *Memory) Set(ctx context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{value: value}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.entries[key] = e
	return nil
}

// Delete implements Store.Delete.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// GetDelete implements Consumer.GetDelete.  The read and delete happen under
// one lock acquisition.
func (m *Memory) GetDelete(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	delete(m.entries, key)
	if m.expired(e) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) expired(e memoryEntry) bool {
	return !e.expires.IsZero() && e.expires.Before(m.now())
}

// memoryOptions is the set of available options for Memory
type memoryOptions struct {
	withTTL time.Duration
	withNow func() time.Time
}

// memoryDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func memoryDefaults() memoryOptions {
	return memoryOptions{
		withNow: time.Now,
	}
}

// getMemoryOpts gets the defaults and applies the opt overrides passed in.
func getMemoryOpts(opt ...Option) memoryOptions {
	opts := memoryDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
