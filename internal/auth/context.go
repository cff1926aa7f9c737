// Package auth is the OAuth2 authorization-code-with-PKCE login controller.
//
// A Context is one browsing context (main window, secondary window, tab or
// CLI process). Contexts sharing a storage.Store coordinate through it so
// that each authorization code is exchanged at most once.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgellow/login-front/internal/backend"
	"github.com/dgellow/login-front/internal/browsing"
	"github.com/dgellow/login-front/internal/device"
	"github.com/dgellow/login-front/internal/idp"
	"github.com/dgellow/login-front/internal/log"
	"github.com/dgellow/login-front/internal/storage"
)

// Config tunes a Context. Zero values take the defaults below.
type Config struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
	PollGrace    time.Duration
	RestartDelay time.Duration
	AttemptTTL   time.Duration

	// FullNavigation always uses the full-page flow.
	FullNavigation bool

	// AllowedOrigins extends the same-origin policy for Serve.
	AllowedOrigins []string

	DeviceHeader string

	PopupWidth  int
	PopupHeight int
}

const (
	defaultPollInterval = 400 * time.Millisecond
	defaultPollTimeout  = 5 * time.Minute
	defaultPollGrace    = 150 * time.Millisecond
	defaultRestartDelay = 100 * time.Millisecond
	defaultAttemptTTL   = 10 * time.Minute
	defaultPopupWidth   = 600
	defaultPopupHeight  = 700
)

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = defaultPollTimeout
	}
	if c.PollGrace <= 0 {
		c.PollGrace = defaultPollGrace
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = defaultRestartDelay
	}
	if c.AttemptTTL <= 0 {
		c.AttemptTTL = defaultAttemptTTL
	}
	if c.DeviceHeader == "" {
		c.DeviceHeader = device.DefaultHeader
	}
	if c.PopupWidth <= 0 {
		c.PopupWidth = defaultPopupWidth
	}
	if c.PopupHeight <= 0 {
		c.PopupHeight = defaultPopupHeight
	}
}

// Deps are the collaborators a Context drives.
type Deps struct {
	Store    storage.Store
	Provider idp.Provider
	Backend  *backend.Client
	Page     browsing.Page

	// Opener opens secondary windows. Nil forces the full-page flow.
	Opener browsing.Opener

	// Parent links a secondary window to its opener. Nil in main windows.
	Parent browsing.OpenerRef

	Device   browsing.Device
	Screen   browsing.Screen
	Notifier Notifier
}

// Context is one browsing context's login controller.
type Context struct {
	cfg      Config
	store    storage.Store
	provider idp.Provider
	backend  *backend.Client
	page     browsing.Page
	opener   browsing.Opener
	parent   browsing.OpenerRef
	device   browsing.Device
	screen   browsing.Screen
	notifier Notifier

	guard       *Guard
	session     *Session
	fingerprint string

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	current      *attempt
	pollCancel   context.CancelFunc
	restartTimer *time.Timer
}

// New builds a Context, provisioning the device fingerprint on first use.
func New(ctx context.Context, cfg Config, deps Deps) (*Context, error) {
	if deps.Store == nil {
		return nil, errors.New("auth: store is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("auth: provider is required")
	}
	if deps.Backend == nil {
		return nil, errors.New("auth: backend client is required")
	}
	if deps.Page == nil {
		return nil, errors.New("auth: page is required")
	}
	cfg.applyDefaults()

	notifier := deps.Notifier
	if notifier == nil {
		notifier = NotifierFuncs{}
	}

	fingerprint, err := device.NewProvisioner(deps.Store).Fingerprint(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	session := newSession(deps.Store, deps.Backend, notifier)
	deps.Backend.SetDeviceID(cfg.DeviceHeader, fingerprint)
	deps.Backend.SetTokenSource(session.tokenSource())

	base, cancel := context.WithCancel(context.Background())
	c := &Context{
		cfg:         cfg,
		store:       deps.Store,
		provider:    deps.Provider,
		backend:     deps.Backend,
		page:        deps.Page,
		opener:      deps.Opener,
		parent:      deps.Parent,
		device:      deps.Device,
		screen:      deps.Screen,
		notifier:    notifier,
		guard:       NewGuard(deps.Store),
		session:     session,
		fingerprint: fingerprint,
		base:        base,
		cancel:      cancel,
	}

	log.LogDebugWithFields("auth", "Context ready", map[string]any{
		"provider":  deps.Provider.Type(),
		"secondary": deps.Parent != nil,
	})
	return c, nil
}

// Session returns the session store.
func (c *Context) Session() *Session {
	return c.session
}

// Guard returns the code-exchange guard.
func (c *Context) Guard() *Guard {
	return c.guard
}

// Fingerprint returns the device fingerprint sent to the backend.
func (c *Context) Fingerprint() string {
	return c.fingerprint
}

// Logout stops any pending attempt and clears the session.
func (c *Context) Logout(ctx context.Context) error {
	c.stopPoll()
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	return c.session.Logout(ctx)
}

// Close stops background work and waits for it to finish.
func (c *Context) Close() {
	c.mu.Lock()
	if c.restartTimer != nil && c.restartTimer.Stop() {
		c.wg.Done()
	}
	c.restartTimer = nil
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Context) stopPoll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
}

// fail reports a failure to the host once and returns it as a *LoginError.
func (c *Context) fail(kind error, reason string, err error) *LoginError {
	fields := map[string]any{"reason": reason}
	if err != nil {
		fields["error"] = err.Error()
	}
	log.LogWarnWithFields("auth", kind.Error(), fields)
	c.notifier.LoginError(reason)
	return &LoginError{Kind: kind, Reason: reason, Err: err}
}

// pageOrigin is the origin messages must come from.
func (c *Context) pageOrigin() string {
	return browsing.Origin(c.page.Location())
}
