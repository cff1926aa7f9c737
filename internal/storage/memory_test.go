package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage(t *testing.T) {
	runStoreSuite(t, NewMemoryStorage(), func(d time.Duration) { time.Sleep(d) })
}

func TestMemoryStoragePurgeExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	require.NoError(t, store.Set(ctx, "a", "1", 10*time.Millisecond))
	require.NoError(t, store.Set(ctx, "b", "2", 0))
	time.Sleep(30 * time.Millisecond)

	n, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, err := store.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}
