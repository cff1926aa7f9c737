package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirestoreStoreConfig(t *testing.T) {
	t.Run("missing GCP project ID", func(t *testing.T) {
		_, err := NewFirestoreStore(context.Background(), "", "(default)", "test_collection")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "projectID is required")
	})
}

func TestDocID(t *testing.T) {
	assert.Equal(t, "session:code_lock", docID("session:code_lock"))
	assert.Equal(t, "a_b_c", docID("a/b/c"))
}

func TestKVDocLive(t *testing.T) {
	now := time.Now()
	assert.True(t, kvDoc{}.live(now))
	assert.True(t, kvDoc{ExpiresAt: now.Add(time.Minute)}.live(now))
	assert.False(t, kvDoc{ExpiresAt: now.Add(-time.Minute)}.live(now))
}

// Runs the shared suite against the Firestore emulator when one is available.
func TestFirestoreStoreEmulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	store, err := NewFirestoreStore(ctx, "login-front-test", "", "kv_"+time.Now().Format("150405.000000"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	runStoreSuite(t, store, func(d time.Duration) { time.Sleep(d) })
}
