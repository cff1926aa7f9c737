package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgellow/login-front/internal/log"
	"github.com/dgellow/login-front/internal/storage"
)

// ReturnPoint is where the user was before a full-page login departure.
type ReturnPoint struct {
	Href      string    `json:"href"`
	Path      string    `json:"pathname"`
	Fragment  string    `json:"hash"`
	ScrollY   float64   `json:"scrollY"`
	Timestamp time.Time `json:"timestamp"`
}

// Target is the path plus fragment to restore.
func (rp ReturnPoint) Target() string {
	path := rp.Path
	if path == "" {
		path = "/"
	}
	if rp.Fragment != "" {
		return path + "#" + rp.Fragment
	}
	return path
}

func (c *Context) captureReturnPoint() ReturnPoint {
	loc := c.page.Location()
	rp := ReturnPoint{ScrollY: c.page.ScrollY(), Timestamp: time.Now().UTC()}
	if loc != nil {
		rp.Href = loc.String()
		rp.Path = loc.Path
		rp.Fragment = loc.Fragment
	}
	return rp
}

func (c *Context) saveReturnPoint(ctx context.Context) {
	data, err := json.Marshal(c.captureReturnPoint())
	if err == nil {
		err = c.store.Set(ctx, keyReturnPoint, string(data), c.cfg.AttemptTTL)
	}
	if err == nil {
		err = c.store.Set(ctx, keyReturnInflight, "1", c.cfg.AttemptTTL)
	}
	if err != nil {
		log.LogWarnWithFields("auth", "Could not save return point", map[string]any{
			"error": err.Error(),
		})
	}
}

// restoreReturnPoint puts the page back where the user left it. It reports
// false when no full-page round trip was in flight.
func (c *Context) restoreReturnPoint(ctx context.Context) bool {
	defer c.clearReturnPoint(ctx)

	inflight, err := c.store.Get(ctx, keyReturnInflight)
	if err != nil || inflight != "1" {
		return false
	}
	raw, err := c.store.Get(ctx, keyReturnPoint)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.LogWarnWithFields("auth", "Could not read return point", map[string]any{"error": err.Error()})
		}
		return false
	}
	var rp ReturnPoint
	if err := json.Unmarshal([]byte(raw), &rp); err != nil {
		return false
	}

	if err := c.page.ReplaceURL(rp.Target()); err != nil {
		log.LogWarnWithFields("auth", "Restoring return point failed", map[string]any{"error": err.Error()})
		return false
	}
	c.page.ScrollTo(rp.ScrollY)
	return true
}

func (c *Context) clearReturnPoint(ctx context.Context) {
	_ = c.store.Delete(ctx, keyReturnPoint, keyReturnInflight)
}
