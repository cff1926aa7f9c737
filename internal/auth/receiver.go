package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/dgellow/login-front/internal/browsing"
	"github.com/dgellow/login-front/internal/log"
)

// Outcome is what HandleRedirect did with the current URL.
type Outcome int

const (
	// OutcomeNone means the URL carried no callback.
	OutcomeNone Outcome = iota
	OutcomeLoggedIn
	// OutcomeDelegated means the code was relayed to the opener window.
	OutcomeDelegated
	// OutcomeRejected means the code was already submitted.
	OutcomeRejected
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeLoggedIn:
		return "logged_in"
	case OutcomeDelegated:
		return "delegated"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// HandleRedirect processes a provider callback in the current page URL.
// The query is always stripped with a history replace so a refresh cannot
// resubmit it.
func (c *Context) HandleRedirect(ctx context.Context) (Outcome, error) {
	loc := c.page.Location()
	if loc == nil {
		return OutcomeNone, nil
	}
	q := loc.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		c.stripQuery(loc)
		c.clearReturnPoint(ctx)
		c.finishAttempt(ctx)
		var detail error
		if desc := q.Get("error_description"); desc != "" {
			detail = errors.New(desc)
		}
		return OutcomeFailed, c.fail(ErrProviderError, providerErr, detail)
	}

	code := q.Get("code")
	if code == "" {
		return OutcomeNone, nil
	}
	state := q.Get("state")

	ok, err := c.precheck(ctx, code, state)
	if !ok {
		c.stripQuery(loc)
		if err != nil {
			c.clearReturnPoint(ctx)
			return OutcomeFailed, err
		}
		return OutcomeRejected, nil
	}

	if c.parent != nil && !c.parent.Closed() {
		return c.relay(loc, code, state)
	}

	admitted, err := c.submit(ctx, code)
	if err != nil {
		c.clearReturnPoint(ctx)
		c.stripQuery(loc)
		return OutcomeFailed, err
	}
	if !admitted {
		c.stripQuery(loc)
		return OutcomeRejected, nil
	}
	if !c.restoreReturnPoint(ctx) {
		c.stripQuery(loc)
	}
	return OutcomeLoggedIn, nil
}

// relay hands the code to the opener, which owns the session, and closes
// this window.
func (c *Context) relay(loc *url.URL, code, state string) (Outcome, error) {
	msg := browsing.Message{Type: browsing.MessageTypeOAuthCode, Code: code, State: state}
	err := c.parent.PostMessage(msg, browsing.Origin(loc))
	c.stripQuery(loc)
	c.page.CloseWindow()
	if err != nil {
		log.LogWarnWithFields("auth", "Relaying code to opener failed", map[string]any{"error": err.Error()})
		return OutcomeDelegated, fmt.Errorf("relaying code to opener: %w", err)
	}
	log.LogDebugWithFields("auth", "Relayed code to opener", nil)
	return OutcomeDelegated, nil
}

func (c *Context) stripQuery(loc *url.URL) {
	path := loc.Path
	if path == "" {
		path = "/"
	}
	if err := c.page.ReplaceURL(path); err != nil {
		log.LogWarnWithFields("auth", "Stripping callback query failed", map[string]any{"error": err.Error()})
	}
}

// Serve consumes cross-window messages until ctx ends or mb is closed.
// Only messages from the page origin (plus configured extra origins) are
// accepted.
func (c *Context) Serve(ctx context.Context, mb *browsing.Mailbox) error {
	policy := browsing.AllowOrigins(c.pageOrigin(), c.cfg.AllowedOrigins...)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-mb.Messages():
			if !ok {
				return nil
			}
			c.handleMessage(ctx, msg, policy)
		}
	}
}

func (c *Context) handleMessage(ctx context.Context, msg browsing.Message, policy browsing.OriginPolicy) {
	if !policy(msg.Origin) {
		log.LogWarnWithFields("auth", "Rejected message from foreign origin", map[string]any{
			"origin": msg.Origin,
		})
		return
	}
	if msg.Type != browsing.MessageTypeOAuthCode || msg.Code == "" {
		return
	}
	log.LogDebugWithFields("auth", "Received code from secondary window", nil)
	c.markDelivered(msg.State)
	_, _ = c.acceptCode(ctx, msg.Code, msg.State)
}
