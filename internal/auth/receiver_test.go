package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dgellow/login-front/internal/browsing"
	"github.com/dgellow/login-front/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callbackURL(code, state string) string {
	return testRedirectURI + "?code=" + code + "&state=" + state
}

func TestHandleRedirect_LoginSucceeds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedAttempt(t, "s1", attemptMeta{})
	h.page.SetLocation(callbackURL("abc123", "s1"))

	outcome, err := h.ctx.HandleRedirect(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLoggedIn, outcome)

	logins := h.backend.Logins()
	require.Len(t, logins, 1)
	assert.Equal(t, testutil.LoginCall{
		AuthorizationCode: "abc123",
		RedirectURI:       testRedirectURI,
		CodeVerifier:      testVerifier("s1"),
		DeviceID:          h.ctx.Fingerprint(),
	}, logins[0])

	assert.Equal(t, "tok-1", h.ctx.Session().Token(ctx))
	assert.Equal(t, "p-42", h.ctx.Session().AccountID(ctx))
	assert.Equal(t, 1, h.notes.Successes())
	assert.Equal(t, []Status{StatusLoggedIn}, h.notes.Statuses())
	assert.Equal(t, []string{"p-42"}, h.notes.Accounts())
	assert.Empty(t, h.notes.Errors())

	assert.Equal(t, []string{"/"}, h.page.Replaced())
	assert.Empty(t, h.page.Location().RawQuery)
	for _, key := range pendingKeys {
		_, found := h.get(t, key)
		assert.False(t, found, key)
	}
}

func TestHandleRedirect_RedeliveryRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedAttempt(t, "s1", attemptMeta{})

	h.page.SetLocation(callbackURL("abc123", "s1"))
	outcome, err := h.ctx.HandleRedirect(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeLoggedIn, outcome)

	// A refresh or back navigation replays the same callback.
	h.page.SetLocation(callbackURL("abc123", "s1"))
	outcome, err = h.ctx.HandleRedirect(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome)

	assert.Equal(t, 1, h.backend.LoginCount())
	assert.Empty(t, h.notes.Errors())
	assert.Empty(t, h.page.Location().RawQuery)
}

func TestHandleRedirect_NoCallback(t *testing.T) {
	h := newHarness(t)

	outcome, err := h.ctx.HandleRedirect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNone, outcome)
	assert.Empty(t, h.page.Replaced())
	assert.Zero(t, h.backend.LoginCount())
}

func TestHandleRedirect_StateMismatch(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, h *harness)
		url   string
	}{
		{
			name:  "different state",
			setup: func(t *testing.T, h *harness) { h.seedAttempt(t, "s1", attemptMeta{}) },
			url:   callbackURL("abc123", "s2"),
		},
		{
			name:  "missing state",
			setup: func(t *testing.T, h *harness) { h.seedAttempt(t, "s1", attemptMeta{}) },
			url:   testRedirectURI + "?code=abc123",
		},
		{
			name:  "no pending attempt",
			setup: func(t *testing.T, h *harness) {},
			url:   callbackURL("abc123", "s1"),
		},
		{
			name: "expired attempt",
			setup: func(t *testing.T, h *harness) {
				h.seedAttempt(t, "s1", attemptMeta{StartedAt: time.Now().Add(-2 * time.Minute)})
			},
			url: callbackURL("abc123", "s1"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(t, h)
			h.page.SetLocation(tt.url)

			outcome, err := h.ctx.HandleRedirect(context.Background())
			assert.Equal(t, OutcomeFailed, outcome)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrStateMismatch)

			assert.Zero(t, h.backend.LoginCount(), "no exchange on a state mismatch")
			assert.Equal(t, []string{ReasonStateMismatch}, h.notes.Errors())
			assert.Empty(t, h.page.Location().RawQuery)
			assert.Empty(t, h.ctx.Session().Token(context.Background()))
		})
	}
}

func TestHandleRedirect_ProviderError(t *testing.T) {
	h := newHarness(t)
	h.seedAttempt(t, "s1", attemptMeta{})
	h.page.SetLocation(testRedirectURI + "?error=user_cancelled_login&error_description=The+user+cancelled&state=s1")

	outcome, err := h.ctx.HandleRedirect(context.Background())
	assert.Equal(t, OutcomeFailed, outcome)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderError)

	var loginErr *LoginError
	require.ErrorAs(t, err, &loginErr)
	assert.Equal(t, "user_cancelled_login", loginErr.Reason)
	assert.Contains(t, err.Error(), "The user cancelled")

	assert.Equal(t, []string{"user_cancelled_login"}, h.notes.Errors())
	assert.Zero(t, h.backend.LoginCount())
	_, found := h.get(t, keyState)
	assert.False(t, found, "the attempt is over")
	assert.Empty(t, h.page.Location().RawQuery)
}

func TestHandleRedirect_ExchangeFailureIsNotRetried(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.backend.RespondLogin(500, `{"error":"internal"}`)
	h.seedAttempt(t, "s1", attemptMeta{})
	h.page.SetLocation(callbackURL("abc123", "s1"))

	outcome, err := h.ctx.HandleRedirect(ctx)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, ErrLoginFailed)
	assert.Equal(t, []string{ReasonLoginFailed}, h.notes.Errors())
	assert.Empty(t, h.ctx.Session().Token(ctx))
	_, found := h.get(t, keyVerifier)
	assert.False(t, found, "the verifier is single use")

	h.page.SetLocation(callbackURL("abc123", "s1"))
	outcome, err = h.ctx.HandleRedirect(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome)
	assert.Equal(t, 1, h.backend.LoginCount())
}

func TestHandleRedirect_UnusableVerifierFailsWithoutExchange(t *testing.T) {
	for name, verifier := range map[string]string{
		"missing":   "",
		"too short": "abc",
		"bad chars": strings.Repeat("a", 42) + "/",
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			h.seedAttempt(t, "s1", attemptMeta{})
			if verifier == "" {
				require.NoError(t, h.store.Delete(ctx, keyVerifier))
			} else {
				require.NoError(t, h.store.Set(ctx, keyVerifier, verifier, time.Minute))
			}
			h.page.SetLocation(callbackURL("abc123", "s1"))

			outcome, err := h.ctx.HandleRedirect(ctx)
			assert.Equal(t, OutcomeFailed, outcome)
			assert.ErrorIs(t, err, ErrLoginFailed)
			assert.Equal(t, []string{ReasonLoginFailed}, h.notes.Errors())
			assert.Zero(t, h.backend.LoginCount())
			_, found := h.get(t, keyState)
			assert.False(t, found, "the broken attempt is discarded")
		})
	}
}

func TestHandleRedirect_EmptyTokenFails(t *testing.T) {
	h := newHarness(t)
	h.backend.RespondLogin(200, `{"player_id":"p-42"}`)
	h.seedAttempt(t, "s1", attemptMeta{})
	h.page.SetLocation(callbackURL("abc123", "s1"))

	outcome, err := h.ctx.HandleRedirect(context.Background())
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, ErrLoginFailed)
	assert.Zero(t, h.notes.Successes())
}

func TestDoubleDelivery_FullPageAndMessage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedAttempt(t, "s1", attemptMeta{})
	mb := h.serve(t)

	gate := make(chan struct{})
	h.backend.SetLoginGate(gate)

	msg := browsing.Message{Type: browsing.MessageTypeOAuthCode, Code: "abc123", State: "s1"}
	require.NoError(t, mb.Deliver(ctx, msg, testOrigin, testOrigin))
	require.Eventually(t, func() bool { return h.backend.LoginCount() == 1 }, time.Second, 5*time.Millisecond)

	// The same code lands on the page while the message's exchange is in flight.
	h.page.SetLocation(callbackURL("abc123", "s1"))
	outcome, err := h.ctx.HandleRedirect(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome)

	close(gate)
	require.Eventually(t, func() bool { return h.notes.Successes() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.backend.LoginCount())
	assert.Empty(t, h.notes.Errors())
}

func TestDoubleDelivery_Concurrent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedAttempt(t, "s1", attemptMeta{})
	mb := h.serve(t)

	h.page.SetLocation(callbackURL("abc123", "s1"))
	msg := browsing.Message{Type: browsing.MessageTypeOAuthCode, Code: "abc123", State: "s1"}

	done := make(chan Outcome, 1)
	go func() {
		outcome, err := h.ctx.HandleRedirect(ctx)
		assert.NoError(t, err)
		done <- outcome
	}()
	require.NoError(t, mb.Deliver(ctx, msg, testOrigin, testOrigin))

	outcome := <-done
	assert.Contains(t, []Outcome{OutcomeLoggedIn, OutcomeRejected}, outcome)
	require.Eventually(t, func() bool { return h.notes.Successes() == 1 }, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, h.backend.LoginCount())
	assert.Empty(t, h.notes.Errors())
}

func TestServe_RejectsForeignOrigin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedAttempt(t, "s1", attemptMeta{})
	mb := h.serve(t)

	msg := browsing.Message{Type: browsing.MessageTypeOAuthCode, Code: "abc123", State: "s1"}
	require.NoError(t, mb.Deliver(ctx, msg, "https://evil.example.com", testOrigin))
	require.NoError(t, mb.Deliver(ctx, browsing.Message{Type: "other", Code: "abc123", State: "s1"}, testOrigin, testOrigin))

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, h.backend.LoginCount())
	assert.Empty(t, h.notes.Errors())
	_, found := h.get(t, keyState)
	assert.True(t, found, "the pending attempt is untouched")
}

func TestServe_AllowedOrigin(t *testing.T) {
	h := newHarness(t, func(cfg *Config, _ *Deps) {
		cfg.AllowedOrigins = []string{"https://auth.example.com"}
	})
	h.seedAttempt(t, "s1", attemptMeta{})
	mb := h.serve(t)

	msg := browsing.Message{Type: browsing.MessageTypeOAuthCode, Code: "abc123", State: "s1"}
	require.NoError(t, mb.Deliver(context.Background(), msg, "https://auth.example.com", testOrigin))

	require.Eventually(t, func() bool { return h.notes.Successes() == 1 }, time.Second, 5*time.Millisecond)
}

func TestServe_StateMismatch(t *testing.T) {
	h := newHarness(t)
	h.seedAttempt(t, "s1", attemptMeta{})
	mb := h.serve(t)

	msg := browsing.Message{Type: browsing.MessageTypeOAuthCode, Code: "abc123", State: "s2"}
	require.NoError(t, mb.Deliver(context.Background(), msg, testOrigin, testOrigin))

	require.Eventually(t, func() bool { return len(h.notes.Errors()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{ReasonStateMismatch}, h.notes.Errors())
	assert.Zero(t, h.backend.LoginCount())
}

func TestSecondaryWindow_RelaysToOpener(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedAttempt(t, "s1", attemptMeta{})
	mb := browsing.NewMailbox(testOrigin, 1)

	popup, popupPage := h.secondary(t, callbackURL("abc123", "s1"), mb)
	outcome, err := popup.HandleRedirect(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelegated, outcome)
	assert.True(t, popupPage.Closed())
	assert.Empty(t, popupPage.Location().RawQuery)
	assert.Zero(t, h.backend.LoginCount(), "the opener owns the exchange")

	select {
	case msg := <-mb.Messages():
		assert.Equal(t, browsing.MessageTypeOAuthCode, msg.Type)
		assert.Equal(t, "abc123", msg.Code)
		assert.Equal(t, "s1", msg.State)
		assert.Equal(t, testOrigin, msg.Origin)
	default:
		t.Fatal("no message relayed")
	}
}

func TestSecondaryWindow_ExchangesWhenOpenerGone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedAttempt(t, "s1", attemptMeta{})
	mb := browsing.NewMailbox(testOrigin, 1)
	mb.Close()

	popup, popupPage := h.secondary(t, callbackURL("abc123", "s1"), mb)
	outcome, err := popup.HandleRedirect(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLoggedIn, outcome)
	assert.False(t, popupPage.Closed())
	assert.Equal(t, 1, h.backend.LoginCount())
	assert.Equal(t, "tok-1", h.ctx.Session().Token(ctx), "contexts share the session")
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "none", OutcomeNone.String())
	assert.Equal(t, "logged_in", OutcomeLoggedIn.String())
	assert.Equal(t, "delegated", OutcomeDelegated.String())
	assert.Equal(t, "rejected", OutcomeRejected.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
}
