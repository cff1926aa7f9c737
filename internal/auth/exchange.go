package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgellow/login-front/internal/backend"
	"github.com/dgellow/login-front/internal/crypto"
	"github.com/dgellow/login-front/internal/log"
	"github.com/dgellow/login-front/internal/pkce"
	"github.com/dgellow/login-front/internal/storage"
)

// precheck runs the checks every delivery path shares before a code may
// reach the guard. A code already submitted is rejected silently so the
// second of two delivery paths does not report a stale-state error.
func (c *Context) precheck(ctx context.Context, code, state string) (bool, error) {
	if c.guard.Consumed(ctx, code) {
		log.LogDebugWithFields("auth", "Ignoring already submitted code", nil)
		return false, nil
	}
	if err := c.checkState(ctx, state); err != nil {
		// The other path may have finished between the two checks; the lock
		// is written before the state is cleared.
		if c.guard.Consumed(ctx, code) {
			return false, nil
		}
		return false, c.fail(ErrStateMismatch, ReasonStateMismatch, err)
	}
	return true, nil
}

// checkState compares the returned state with the pending attempt's. A
// missing or expired attempt is a mismatch.
func (c *Context) checkState(ctx context.Context, returned string) error {
	saved, err := c.store.Get(ctx, keyState)
	if errors.Is(err, storage.ErrNotFound) {
		return errors.New("no pending login attempt")
	}
	if err != nil {
		return fmt.Errorf("reading pending state: %w", err)
	}
	if returned == "" || !crypto.EqualTokens(saved, returned) {
		return errors.New("returned state does not match pending attempt")
	}
	if meta, ok := c.loadAttemptMeta(ctx); ok && time.Since(meta.StartedAt) > c.cfg.AttemptTTL {
		return errors.New("pending login attempt expired")
	}
	return nil
}

// acceptCode is the acceptance path for window polls and relayed messages.
// It reports whether an exchange was attempted.
func (c *Context) acceptCode(ctx context.Context, code, state string) (bool, error) {
	ok, err := c.precheck(ctx, code, state)
	if !ok {
		return false, err
	}
	return c.submit(ctx, code)
}

// submit runs the exchange if the guard admits code.
func (c *Context) submit(ctx context.Context, code string) (bool, error) {
	admitted, err := c.guard.Admit(ctx, code)
	if err != nil {
		return false, c.fail(ErrLoginFailed, ReasonLoginFailed, err)
	}
	if !admitted {
		return false, nil
	}
	defer c.guard.Release()
	return true, c.exchange(ctx, code)
}

// exchange redeems code at the backend. The verifier and pending state are
// discarded whatever the outcome.
func (c *Context) exchange(ctx context.Context, code string) error {
	verifier, err := c.store.Get(ctx, keyVerifier)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return c.fail(ErrLoginFailed, ReasonLoginFailed, fmt.Errorf("reading verifier: %w", err))
	}
	if !pkce.ValidVerifier(verifier) {
		c.finishAttempt(ctx)
		return c.fail(ErrLoginFailed, ReasonLoginFailed, errors.New("pending attempt has no usable code verifier"))
	}
	meta, _ := c.loadAttemptMeta(ctx)

	res, err := c.backend.Login(ctx, backend.LoginRequest{
		AuthorizationCode: code,
		RedirectURI:       c.provider.RedirectURI(),
		CodeVerifier:      verifier,
	})
	c.finishAttempt(ctx)

	if err != nil {
		if backend.IsGrantRevoked(err) {
			return c.recoverRevoked(ctx, meta, err)
		}
		return c.fail(ErrLoginFailed, ReasonLoginFailed, err)
	}

	if err := c.session.save(ctx, res); err != nil {
		return c.fail(ErrLoginFailed, ReasonLoginFailed, err)
	}

	log.LogInfoWithFields("auth", "Login succeeded", map[string]any{
		"account_id": res.AccountID,
		"token":      log.Redact(res.Token),
	})
	c.notifier.LoginSucceeded()
	c.notifier.LoginStatusChanged(StatusLoggedIn)
	if res.AccountID != "" {
		c.notifier.AccountResolved(res.AccountID)
	}
	return nil
}

func (c *Context) finishAttempt(ctx context.Context) {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	if err := c.store.Delete(ctx, pendingKeys...); err != nil {
		log.LogWarnWithFields("auth", "Clearing finished attempt failed", map[string]any{"error": err.Error()})
	}
}

// recoverRevoked clears the dead session and schedules one forced
// re-consent. An attempt that was itself such a restart does not restart
// again.
func (c *Context) recoverRevoked(ctx context.Context, meta attemptMeta, cause error) error {
	if err := c.session.clear(ctx); err != nil {
		log.LogErrorWithFields("auth", "Clearing revoked session failed", map[string]any{"error": err.Error()})
	}
	c.notifier.LoginStatusChanged(StatusLoggedOut)

	if meta.AutoRestart {
		return c.fail(ErrGrantRevoked, ReasonGrantRevoked, cause)
	}

	log.LogWarnWithFields("auth", "Provider grant revoked, restarting login with re-consent", map[string]any{
		"delay": c.cfg.RestartDelay.String(),
	})
	c.scheduleRestart()
	return &LoginError{Kind: ErrGrantRevoked, Reason: ReasonGrantRevoked, Err: cause}
}

func (c *Context) scheduleRestart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.restartTimer != nil || c.base.Err() != nil {
		return
	}

	c.wg.Add(1)
	c.restartTimer = time.AfterFunc(c.cfg.RestartDelay, func() {
		defer c.wg.Done()
		c.mu.Lock()
		c.restartTimer = nil
		c.mu.Unlock()
		if c.base.Err() != nil {
			return
		}
		if err := c.startLogin(c.base, true, true); err != nil {
			log.LogErrorWithFields("auth", "Automatic login restart failed", map[string]any{"error": err.Error()})
		}
	})
}
