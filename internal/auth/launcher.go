package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgellow/login-front/internal/browsing"
	"github.com/dgellow/login-front/internal/crypto"
	"github.com/dgellow/login-front/internal/log"
	"github.com/dgellow/login-front/internal/pkce"
	"github.com/dgellow/login-front/internal/storage"
)

// attemptMeta is persisted next to the state and verifier.
type attemptMeta struct {
	StartedAt   time.Time `json:"started_at"`
	Forced      bool      `json:"forced"`
	AutoRestart bool      `json:"auto_restart"`
}

// attempt is this context's view of the attempt it launched.
type attempt struct {
	state     string
	delivered atomic.Bool
}

// StartLogin launches a new authorization attempt. forceReauth asks the
// provider to prompt again even if it holds a live grant.
func (c *Context) StartLogin(ctx context.Context, forceReauth bool) error {
	return c.startLogin(ctx, forceReauth, false)
}

func (c *Context) startLogin(ctx context.Context, force, auto bool) error {
	state, err := crypto.GenerateSecureToken()
	if err != nil {
		return fmt.Errorf("generating state: %w", err)
	}
	pair := pkce.Generate()

	c.stopPoll()
	if err := c.persistAttempt(ctx, state, pair, attemptMeta{
		StartedAt:   time.Now().UTC(),
		Forced:      force,
		AutoRestart: auto,
	}); err != nil {
		return err
	}

	att := &attempt{state: state}
	c.mu.Lock()
	c.current = att
	c.mu.Unlock()

	target := c.provider.AuthURL(state, pair, force)
	log.LogInfoWithFields("auth", "Starting login", map[string]any{
		"provider": c.provider.Type(),
		"forced":   force,
		"auto":     auto,
	})

	if c.useFullNavigation() {
		c.saveReturnPoint(ctx)
		if err := c.page.Assign(ctx, target); err != nil {
			c.clearReturnPoint(ctx)
			return c.fail(ErrLoginFailed, ReasonLoginFailed, fmt.Errorf("navigating to provider: %w", err))
		}
		return nil
	}

	win, err := c.opener.Open(ctx, target, c.popupFeatures())
	if err != nil || win == nil {
		c.abandonPending(ctx, att)
		if err == nil {
			err = errors.New("window not opened")
		}
		return c.fail(ErrPopupBlocked, ReasonPopupBlocked, err)
	}

	pollCtx, cancel := context.WithCancel(c.base)
	c.mu.Lock()
	c.pollCancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go c.watchWindow(pollCtx, win, att)
	return nil
}

func (c *Context) persistAttempt(ctx context.Context, state string, pair pkce.Pair, meta attemptMeta) error {
	if err := c.store.Delete(ctx, pendingKeys...); err != nil {
		return fmt.Errorf("clearing previous attempt: %w", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding attempt: %w", err)
	}
	ttl := c.cfg.AttemptTTL
	for key, value := range map[string]string{
		keyState:    state,
		keyVerifier: pair.Verifier,
		keyAttempt:  string(metaJSON),
	} {
		if err := c.store.Set(ctx, key, value, ttl); err != nil {
			return fmt.Errorf("persisting attempt: %w", err)
		}
	}
	return nil
}

func (c *Context) loadAttemptMeta(ctx context.Context) (attemptMeta, bool) {
	raw, err := c.store.Get(ctx, keyAttempt)
	if err != nil {
		return attemptMeta{}, false
	}
	var meta attemptMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return attemptMeta{}, false
	}
	return meta, true
}

func (c *Context) useFullNavigation() bool {
	if c.cfg.FullNavigation || c.opener == nil {
		return true
	}
	return c.device != nil && c.device.IsTouch()
}

func (c *Context) popupFeatures() browsing.Features {
	if c.screen == nil {
		return browsing.Features{Width: c.cfg.PopupWidth, Height: c.cfg.PopupHeight}
	}
	w, h := c.screen.Size()
	return browsing.Centered(c.cfg.PopupWidth, c.cfg.PopupHeight, w, h)
}

// watchWindow polls a secondary window and feeds its result through the
// same acceptance path as a relayed message.
func (c *Context) watchWindow(ctx context.Context, win browsing.Window, att *attempt) {
	defer c.wg.Done()

	res := PollWindow(ctx, win, PollOptions{
		Interval:       c.cfg.PollInterval,
		Timeout:        c.cfg.PollTimeout,
		CallbackPrefix: c.provider.RedirectURI(),
	})
	log.LogDebugWithFields("auth", "Window poll finished", map[string]any{
		"outcome": res.Outcome.String(),
	})

	switch res.Outcome {
	case PollCode:
		att.delivered.Store(true)
		// Let the window's own relayed message win; the guard makes the
		// second delivery a no-op either way.
		if !sleepCtx(ctx, c.cfg.PollGrace) {
			win.Close()
			return
		}
		_ = c.acceptCode(ctx, res.Code, res.State)
		win.Close()

	case PollClosed:
		// A window that relayed its code closes itself right after.
		if !sleepCtx(ctx, c.cfg.PollGrace) || att.delivered.Load() {
			return
		}
		c.abandon(ctx, att)

	case PollTimeout:
		win.Close()
		if !att.delivered.Load() {
			c.abandon(ctx, att)
		}

	case PollCancelled:
	}
}

// abandon drops an attempt nobody completed and tells the host.
func (c *Context) abandon(ctx context.Context, att *attempt) {
	if !c.isCurrent(att) {
		return
	}
	c.abandonPending(ctx, att)
	c.fail(ErrAttemptAbandoned, ReasonLoginAbandoned, nil)
}

func (c *Context) abandonPending(ctx context.Context, att *attempt) {
	c.mu.Lock()
	if c.current == att {
		c.current = nil
	}
	c.mu.Unlock()
	// Only clear the store if no newer attempt replaced it.
	if state, err := c.store.Get(ctx, keyState); err == nil && state != att.state {
		return
	}
	if err := c.store.Delete(ctx, pendingKeys...); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.LogWarnWithFields("auth", "Clearing abandoned attempt failed", map[string]any{"error": err.Error()})
	}
}

func (c *Context) isCurrent(att *attempt) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == att
}

// markDelivered records that the current attempt's callback arrived.
func (c *Context) markDelivered(state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && crypto.EqualTokens(c.current.state, state) {
		c.current.delivered.Store(true)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
