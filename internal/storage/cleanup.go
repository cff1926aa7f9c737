package storage

import (
	"context"
	"time"

	"github.com/dgellow/login-front/internal/log"
)

// CleanupManager periodically sweeps expired keys (abandoned login attempts,
// stale return points) from stores that don't expire keys on their own.
type CleanupManager struct {
	purger   Purger
	interval time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewCleanupManager returns nil when store needs no sweeping.
func NewCleanupManager(store Store, interval time.Duration) *CleanupManager {
	purger, ok := store.(Purger)
	if !ok || interval <= 0 {
		return nil
	}
	return &CleanupManager{
		purger:   purger,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the cleanup loop in a goroutine
func (cm *CleanupManager) Start(ctx context.Context) {
	log.LogDebugWithFields("cleanup", "Starting expired key cleanup", map[string]any{
		"interval": cm.interval.String(),
	})

	go cm.run(ctx)
}

// Stop gracefully stops the cleanup loop
func (cm *CleanupManager) Stop() {
	close(cm.stopChan)
	<-cm.doneChan
	log.LogDebug("Expired key cleanup stopped")
}

func (cm *CleanupManager) run(ctx context.Context) {
	defer close(cm.doneChan)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.cleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.cleanup(ctx)
		case <-cm.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (cm *CleanupManager) cleanup(ctx context.Context) {
	count, err := cm.purger.PurgeExpired(ctx)
	if err != nil {
		log.LogErrorWithFields("cleanup", "Failed to purge expired keys", map[string]any{
			"error": err.Error(),
		})
		return
	}

	if count > 0 {
		log.LogDebugWithFields("cleanup", "Purged expired keys", map[string]any{
			"count": count,
		})
	}
}
