package server

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/cli/browser"
	"github.com/dgellow/login-front/internal/browsing"
	"github.com/dgellow/login-front/internal/log"
)

// Page is the browsing.Page of a terminal process. Its location is the
// last callback the loopback server received; navigating away opens the
// system browser.
type Page struct {
	base *url.URL
	open func(url string) error

	mu  sync.Mutex
	loc *url.URL
}

var _ browsing.Page = (*Page)(nil)

// NewPage creates a page at base, normally the redirect URI. A nil open
// uses the system browser.
func NewPage(base string, open func(url string) error) (*Page, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid loopback base URL %q", base)
	}
	if open == nil {
		open = browser.OpenURL
	}
	root := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
	return &Page{base: root, open: open, loc: root}, nil
}

// Base is the scheme://host/ the page lives on.
func (p *Page) Base() *url.URL {
	u := *p.base
	return &u
}

func (p *Page) Location() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	u := *p.loc
	return &u
}

// Visit lands the page on the path and query of a received request.
func (p *Page) Visit(path, rawQuery string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loc = p.base.ResolveReference(&url.URL{Path: path, RawQuery: rawQuery})
}

func (p *Page) ReplaceURL(ref string) error {
	u, err := url.Parse(ref)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loc = p.loc.ResolveReference(u)
	return nil
}

func (p *Page) Assign(_ context.Context, target string) error {
	log.LogInfoWithFields("page", "Opening browser for login", map[string]any{
		"host": hostOf(target),
	})
	if err := p.open(target); err != nil {
		return fmt.Errorf("opening browser: %w", err)
	}
	return nil
}

// ScrollY is always zero: a terminal has no scroll position to restore.
func (p *Page) ScrollY() float64 { return 0 }

func (p *Page) ScrollTo(float64) {}

func (p *Page) CloseWindow() {}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
