package auth

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgellow/login-front/internal/backend"
	"github.com/dgellow/login-front/internal/browsing"
	"github.com/dgellow/login-front/internal/idp"
	"github.com/dgellow/login-front/internal/storage"
	"github.com/dgellow/login-front/internal/testutil"
	"github.com/stretchr/testify/require"
)

const (
	testPageURL     = "https://game.example.com/play#lobby"
	testOrigin      = "https://game.example.com"
	testRedirectURI = "https://game.example.com/"
	testAuthURL     = "https://idp.example.com/oauth/authorize"
)

// recorder is a Notifier that keeps every event.
type recorder struct {
	mu        sync.Mutex
	statuses  []Status
	errors    []string
	successes int
	accounts  []string
}

func (r *recorder) LoginStatusChanged(status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *recorder) LoginSucceeded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes++
}

func (r *recorder) LoginError(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, reason)
}

func (r *recorder) AccountResolved(accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = append(r.accounts, accountID)
}

func (r *recorder) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...)
}

func (r *recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

func (r *recorder) Successes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.successes
}

func (r *recorder) Accounts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.accounts...)
}

type harness struct {
	store    storage.Store
	backend  *testutil.FakeBackend
	page     *testutil.FakePage
	opener   *testutil.FakeOpener
	notes    *recorder
	provider idp.Provider
	ctx      *Context
}

func testConfig() Config {
	return Config{
		PollInterval: 5 * time.Millisecond,
		PollTimeout:  5 * time.Second,
		PollGrace:    100 * time.Millisecond,
		RestartDelay: 10 * time.Millisecond,
		AttemptTTL:   time.Minute,
	}
}

func testProvider(t *testing.T) idp.Provider {
	t.Helper()
	p, err := idp.NewOAuth2Provider(context.Background(), idp.OAuth2Config{
		ProviderType:     "linkedin",
		AuthorizationURL: testAuthURL,
		ClientID:         "client-1",
		RedirectURI:      testRedirectURI,
	})
	require.NoError(t, err)
	return p
}

// newHarness builds a main-window Context over a memory store. mutate may
// adjust the config and deps before construction.
func newHarness(t *testing.T, mutate ...func(*Config, *Deps)) *harness {
	t.Helper()
	h := &harness{
		store:    storage.NewMemoryStorage(),
		backend:  testutil.NewFakeBackend(t),
		page:     testutil.NewFakePage(testPageURL),
		opener:   testutil.NewFakeOpener(),
		notes:    &recorder{},
		provider: testProvider(t),
	}
	cfg := testConfig()
	deps := Deps{
		Store:    h.store,
		Provider: h.provider,
		Backend:  backend.NewClient(h.backend.URL),
		Page:     h.page,
		Opener:   h.opener,
		Notifier: h.notes,
	}
	for _, m := range mutate {
		m(&cfg, &deps)
	}
	c, err := New(context.Background(), cfg, deps)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	h.ctx = c
	return h
}

// secondary builds a Context for a secondary window that shares h's store
// and relays to mb.
func (h *harness) secondary(t *testing.T, raw string, mb *browsing.Mailbox) (*Context, *testutil.FakePage) {
	t.Helper()
	page := testutil.NewFakePage(raw)
	c, err := New(context.Background(), testConfig(), Deps{
		Store:    h.store,
		Provider: h.provider,
		Backend:  backend.NewClient(h.backend.URL),
		Page:     page,
		Parent:   browsing.MailboxRef{Mailbox: mb, SenderOrigin: testOrigin},
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, page
}

// seedAttempt stores a pending attempt as if StartLogin had run.
// testVerifier is a well-formed verifier tied to state.
func testVerifier(state string) string {
	return "verifier-" + state + "-" + strings.Repeat("x", 43)
}

func (h *harness) seedAttempt(t *testing.T, state string, meta attemptMeta) {
	t.Helper()
	ctx := context.Background()
	if meta.StartedAt.IsZero() {
		meta.StartedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, h.store.Set(ctx, keyState, state, time.Minute))
	require.NoError(t, h.store.Set(ctx, keyVerifier, testVerifier(state), time.Minute))
	require.NoError(t, h.store.Set(ctx, keyAttempt, string(raw), time.Minute))
}

func (h *harness) get(t *testing.T, key string) (string, bool) {
	t.Helper()
	v, err := h.store.Get(context.Background(), key)
	if err != nil {
		require.ErrorIs(t, err, storage.ErrNotFound)
		return "", false
	}
	return v, true
}

func (h *harness) serve(t *testing.T) *browsing.Mailbox {
	t.Helper()
	mb := browsing.NewMailbox(testOrigin, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.ctx.Serve(ctx, mb)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return mb
}

func (h *harness) nextWindow(t *testing.T) *testutil.FakeWindow {
	t.Helper()
	select {
	case w := <-h.opener.Opened():
		return w
	case <-time.After(2 * time.Second):
		t.Fatal("no window opened")
		return nil
	}
}
