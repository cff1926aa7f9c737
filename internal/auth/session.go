package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgellow/login-front/internal/backend"
	"github.com/dgellow/login-front/internal/log"
	"github.com/dgellow/login-front/internal/storage"
	"golang.org/x/sync/singleflight"
)

// sessionProbeTimeout bounds one backend session check.
const sessionProbeTimeout = 15 * time.Second

// Session holds the persisted session token and the resolved account id.
type Session struct {
	store    storage.Store
	backend  *backend.Client
	notifier Notifier

	probes singleflight.Group

	mu        sync.RWMutex
	accountID string
}

func newSession(store storage.Store, client *backend.Client, notifier Notifier) *Session {
	return &Session{store: store, backend: client, notifier: notifier}
}

// Token returns the persisted token, or "" when logged out.
func (s *Session) Token(ctx context.Context) string {
	token, err := s.store.Get(ctx, keyToken)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.LogWarnWithFields("session", "Reading session token failed", map[string]any{"error": err.Error()})
		}
		return ""
	}
	return token
}

// AccountID returns the account id resolved for the current session.
func (s *Session) AccountID(ctx context.Context) string {
	s.mu.RLock()
	id := s.accountID
	s.mu.RUnlock()
	if id != "" {
		return id
	}
	id, err := s.store.Get(ctx, keyAccountID)
	if err != nil {
		return ""
	}
	return id
}

func (s *Session) setAccountID(id string) {
	s.mu.Lock()
	s.accountID = id
	s.mu.Unlock()
}

// Check validates the persisted token against the backend. It only
// reports; it never starts a login. A token the backend rejects is cleared
// and the returned error matches ErrSessionInvalid. Transport failures and
// cancellation leave the session untouched.
func (s *Session) Check(ctx context.Context) (bool, error) {
	if s.Token(ctx) == "" {
		s.notifier.LoginStatusChanged(StatusLoggedOut)
		return false, nil
	}

	// The shared probe outlives any one caller's cancellation.
	detached := context.WithoutCancel(ctx)
	results := s.probes.DoChan("check", func() (any, error) {
		probeCtx, cancel := context.WithTimeout(detached, sessionProbeTimeout)
		defer cancel()
		return s.probe(probeCtx)
	})

	select {
	case res := <-results:
		if res.Shared {
			log.LogTraceWithFields("session", "Session probe shared with a concurrent check", nil)
		}
		if res.Err != nil {
			return false, res.Err
		}
		return res.Val != nil, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (s *Session) probe(ctx context.Context) (*backend.Player, error) {
	player, err := s.backend.Player(ctx)
	if err != nil {
		if !backend.IsRejected(err) {
			log.LogWarnWithFields("session", "Session probe did not reach the backend", map[string]any{
				"error": err.Error(),
			})
			return nil, fmt.Errorf("checking session: %w", err)
		}
		log.LogInfoWithFields("session", "Session rejected by the backend, clearing token", map[string]any{
			"error": err.Error(),
		})
		if clearErr := s.clear(ctx); clearErr != nil {
			log.LogErrorWithFields("session", "Clearing session failed", map[string]any{"error": clearErr.Error()})
		}
		s.notifier.LoginStatusChanged(StatusLoggedOut)
		return nil, &LoginError{Kind: ErrSessionInvalid, Reason: ReasonSessionInvalid, Err: err}
	}

	if player.AccountID != "" {
		s.setAccountID(player.AccountID)
		if err := s.store.Set(ctx, keyAccountID, player.AccountID, 0); err != nil {
			log.LogWarnWithFields("session", "Persisting account id failed", map[string]any{"error": err.Error()})
		}
	}
	log.LogInfoWithFields("session", "Session valid", map[string]any{"account_id": player.AccountID})
	s.notifier.LoginStatusChanged(StatusLoggedIn)
	if player.AccountID != "" {
		s.notifier.AccountResolved(player.AccountID)
	}
	return player, nil
}

// save persists a freshly redeemed session.
func (s *Session) save(ctx context.Context, res *backend.LoginResult) error {
	if err := s.store.Set(ctx, keyToken, res.Token, 0); err != nil {
		return fmt.Errorf("persisting session token: %w", err)
	}
	if res.AccountID != "" {
		if err := s.store.Set(ctx, keyAccountID, res.AccountID, 0); err != nil {
			return fmt.Errorf("persisting account id: %w", err)
		}
	}
	s.setAccountID(res.AccountID)
	return nil
}

// clear drops the token and account id.
func (s *Session) clear(ctx context.Context) error {
	s.setAccountID("")
	return s.store.Delete(ctx, keyToken, keyAccountID)
}

// Logout tears the session down: token, account id and all pending
// attempt state.
func (s *Session) Logout(ctx context.Context) error {
	s.setAccountID("")
	if err := s.store.Delete(ctx, logoutKeys...); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	log.LogInfoWithFields("session", "Logged out", nil)
	s.notifier.LoginStatusChanged(StatusLoggedOut)
	return nil
}

// tokenSource feeds the backend client's Authorization header.
func (s *Session) tokenSource() backend.TokenSource {
	return s.Token
}
