package storage

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	runStoreSuite(t, store, func(d time.Duration) { time.Sleep(d) })
}

func TestSQLiteStoreSharedFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "login.db")

	first, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close() })

	second, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	_, existed, err := first.Swap(ctx, "session:code_lock", "d1")
	require.NoError(t, err)
	assert.False(t, existed)

	prev, existed, err := second.Swap(ctx, "session:code_lock", "d1")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, "d1", prev)
}

func TestSQLiteStoreSharedFileConcurrentSwap(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "login.db")

	stores := make([]*SQLiteStore, 2)
	for i := range stores {
		store, err := NewSQLiteStore(ctx, path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		stores[i] = store
	}

	var (
		wg      sync.WaitGroup
		swapped atomic.Int32
		created atomic.Int32
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(store *SQLiteStore) {
			defer wg.Done()
			_, existed, err := store.Swap(ctx, "session:code_lock", "d1")
			if !assert.NoError(t, err) {
				return
			}
			if !existed {
				swapped.Add(1)
			}

			value, ok, err := store.SetIfAbsent(ctx, "device:fingerprint", "fp")
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, "fp", value)
			if ok {
				created.Add(1)
			}
		}(stores[i%len(stores)])
	}
	wg.Wait()

	assert.Equal(t, int32(1), swapped.Load(), "exactly one swap sees no previous value")
	assert.Equal(t, int32(1), created.Load(), "exactly one insert wins")
}

func TestSQLiteStorePurgeExpired(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Set(ctx, "a", "1", 10*time.Millisecond))
	require.NoError(t, store.Set(ctx, "b", "2", 0))
	time.Sleep(30 * time.Millisecond)

	n, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
