package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("set-get-delete", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		m := NewMemory()
		require.NoError(m.Set(ctx, "nonce", "n_123"))

		got, ok, err := m.Get(ctx, "nonce")
		require.NoError(err)
		require.True(ok)
		assert.Equal("n_123", got)

		require.NoError(m.Delete(ctx, "nonce"))
		_, ok, err = m.Get(ctx, "nonce")
		require.NoError(err)
		assert.False(ok)
	})
	t.Run("get-absent", func(t *testing.T) {
		require := require.New(t)
		m := NewMemory()
		_, ok, err := m.Get(ctx, "missing")
		require.NoError(err)
		require.False(ok)
	})
	t.Run("delete-absent-is-not-an-error", func(t *testing.T) {
		require := require.New(t)
		m := NewMemory()
		require.NoError(m.Delete(ctx, "missing"))
	})
	t.Run("overwrite", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		m := NewMemory()
		require.NoError(m.Set(ctx, "k", "one"))
		require.NoError(m.Set(ctx, "k", "two"))
		got, ok, err := m.Get(ctx, "k")
		require.NoError(err)
		require.True(ok)
		assert.Equal("two", got)
	})
	t.Run("ttl-expiry", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		now := time.Now()
		current := now
		m := NewMemory(WithTTL(time.Minute), WithNow(func() time.Time { return current }))
		require.NoError(m.Set(ctx, "nonce", "n_123"))

		_, ok, err := m.Get(ctx, "nonce")
		require.NoError(err)
		assert.True(ok)

		current = now.Add(2 * time.Minute)
		_, ok, err = m.Get(ctx, "nonce")
		require.NoError(err)
		assert.False(ok)
	})
	t.Run("get-delete-is-single-use", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		m := NewMemory()
		require.NoError(m.Set(ctx, "state", "st_123"))

		got, ok, err := m.GetDelete(ctx, "state")
		require.NoError(err)
		require.True(ok)
		assert.Equal("st_123", got)

		_, ok, err = m.GetDelete(ctx, "state")
		require.NoError(err)
		assert.False(ok)
	})
	t.Run("get-delete-race-admits-one-winner", func(t *testing.T) {
		require := require.New(t)
		m := NewMemory()
		require.NoError(m.Set(ctx, "state", "st_123"))

		const workers = 16
		wins := make(chan bool, workers)
		for i := 0; i < workers; i++ {
			go func() {
				_, ok, _ := m.GetDelete(ctx, "state")
				wins <- ok
			}()
		}
		var got int
		for i := 0; i < workers; i++ {
			if <-wins {
				got++
			}
		}
		require.Equal(1, got)
	})
}

func TestGetDelete_fallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	require := require.New(t)

	// Noop does not implement Consumer, so the helper falls back to
	// get-then-delete.
	_, ok, err := GetDelete(ctx, NewNoop(), "anything")
	require.NoError(err)
	require.False(ok)
}

func TestNoopBasic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	require := require.New(t)
	n := NewNoop()
	require.NoError(n.Set(ctx, "k", "v"))
	_, ok, err := n.Get(ctx, "k")
	require.NoError(err)
	require.False(ok)
	require.NoError(n.Delete(ctx, "k"))
}
