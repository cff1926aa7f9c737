package device

import (
	"context"
	"sync"
	"testing"

	"github.com/dgellow/login-front/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintIsStable(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()

	first, err := NewProvisioner(store).Fingerprint(ctx)
	require.NoError(t, err)
	_, err = uuid.Parse(first)
	require.NoError(t, err)

	second, err := NewProvisioner(store).Fingerprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFingerprintConcurrentFirstUse(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()

	ids := make([]string, 8)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := NewProvisioner(store).Fingerprint(ctx)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}
