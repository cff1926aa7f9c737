package auth

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dgellow/login-front/internal/crypto"
	"github.com/dgellow/login-front/internal/log"
	"github.com/dgellow/login-front/internal/storage"
)

// Guard admits at most one exchange per authorization code.
//
// The in-process flag blocks concurrent exchanges in one context. The code
// lock is shared through the store by every context and is swapped
// atomically before the network call, so of several contexts delivering
// the same code exactly one sees a different previous value.
type Guard struct {
	store    storage.Store
	inflight atomic.Bool
}

func NewGuard(store storage.Store) *Guard {
	return &Guard{store: store}
}

// Admit reports whether code may be exchanged now. A rejection returns
// false with a nil error. On true the caller must call Release when the
// exchange finishes.
func (g *Guard) Admit(ctx context.Context, code string) (bool, error) {
	if !g.inflight.CompareAndSwap(false, true) {
		log.LogDebugWithFields("guard", "Exchange skipped, another is in flight", nil)
		return false, nil
	}

	digest := crypto.CodeDigest(code)
	prev, existed, err := g.store.Swap(ctx, keyCodeLock, digest)
	if err != nil {
		g.inflight.Store(false)
		return false, fmt.Errorf("writing code lock: %w", err)
	}
	if existed && crypto.EqualTokens(prev, digest) {
		g.inflight.Store(false)
		log.LogDebugWithFields("guard", "Exchange skipped, code already submitted", map[string]any{
			"code_digest": digest[:12],
		})
		return false, nil
	}
	return true, nil
}

// Release clears the in-process flag.
func (g *Guard) Release() {
	g.inflight.Store(false)
}

// Consumed reports whether code is the last code submitted in this session.
// It does not take the lock.
func (g *Guard) Consumed(ctx context.Context, code string) bool {
	prev, err := g.store.Get(ctx, keyCodeLock)
	if err != nil {
		return false
	}
	return crypto.EqualTokens(prev, crypto.CodeDigest(code))
}
