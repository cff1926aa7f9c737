package auth

import (
	"context"
	"strings"
	"time"

	"github.com/dgellow/login-front/internal/browsing"
)

// PollOutcome is how a secondary-window poll ended.
type PollOutcome int

const (
	PollCode PollOutcome = iota
	PollClosed
	PollTimeout
	PollCancelled
)

func (o PollOutcome) String() string {
	switch o {
	case PollCode:
		return "code"
	case PollClosed:
		return "closed"
	case PollTimeout:
		return "timeout"
	case PollCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// PollResult is the terminal result of PollWindow.
type PollResult struct {
	Outcome PollOutcome
	Code    string
	State   string
}

// PollOptions configures PollWindow.
type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration

	// CallbackPrefix is the redirect URI the window must reach.
	CallbackPrefix string
}

func (o *PollOptions) applyDefaults() {
	if o.Interval <= 0 {
		o.Interval = defaultPollInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultPollTimeout
	}
}

// PollWindow watches win until it lands on the callback with a code, is
// closed, times out or ctx is cancelled. Cross-origin reads are expected
// while the provider's page is showing and are ignored. Zero Interval and
// Timeout take the Config defaults.
func PollWindow(ctx context.Context, win browsing.Window, opts PollOptions) PollResult {
	opts.applyDefaults()
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()
	deadline := time.NewTimer(opts.Timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return PollResult{Outcome: PollCancelled}
		case <-deadline.C:
			return PollResult{Outcome: PollTimeout}
		case <-ticker.C:
			if win.Closed() {
				return PollResult{Outcome: PollClosed}
			}
			loc, err := win.Location()
			if err != nil || loc == nil {
				continue
			}
			if !strings.HasPrefix(loc.String(), opts.CallbackPrefix) {
				continue
			}
			q := loc.Query()
			if code := q.Get("code"); code != "" {
				return PollResult{Outcome: PollCode, Code: code, State: q.Get("state")}
			}
		}
	}
}
