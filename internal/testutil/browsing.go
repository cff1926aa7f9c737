package testutil

import (
	"context"
	"net/url"
	"sync"

	"github.com/dgellow/login-front/internal/browsing"
	"github.com/stretchr/testify/mock"
)

func mustParse(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// FakePage is an in-memory browsing.Page.
type FakePage struct {
	mu       sync.Mutex
	loc      *url.URL
	scrollY  float64
	replaced []string
	assigned []string
	closed   bool
}

var _ browsing.Page = (*FakePage)(nil)

func NewFakePage(raw string) *FakePage {
	return &FakePage{loc: mustParse(raw)}
}

func (p *FakePage) Location() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	u := *p.loc
	return &u
}

// SetLocation simulates arriving at raw.
func (p *FakePage) SetLocation(raw string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loc = mustParse(raw)
}

func (p *FakePage) ReplaceURL(ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loc = p.loc.ResolveReference(mustParse(ref))
	p.replaced = append(p.replaced, ref)
	return nil
}

func (p *FakePage) Assign(_ context.Context, target string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assigned = append(p.assigned, target)
	return nil
}

func (p *FakePage) ScrollY() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrollY
}

func (p *FakePage) ScrollTo(y float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrollY = y
}

func (p *FakePage) CloseWindow() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// Replaced returns every ReplaceURL argument in order.
func (p *FakePage) Replaced() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.replaced...)
}

// Assigned returns every navigation target in order.
func (p *FakePage) Assigned() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.assigned...)
}

func (p *FakePage) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// FakeWindow is a secondary window that starts on a foreign origin.
type FakeWindow struct {
	mu          sync.Mutex
	Target      string
	loc         *url.URL
	crossOrigin bool
	closed      bool
}

var _ browsing.Window = (*FakeWindow)(nil)

func NewFakeWindow(target string) *FakeWindow {
	return &FakeWindow{Target: target, crossOrigin: true}
}

// Navigate lands the window on a same-origin URL.
func (w *FakeWindow) Navigate(raw string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loc = mustParse(raw)
	w.crossOrigin = false
}

func (w *FakeWindow) Location() (*url.URL, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.crossOrigin || w.loc == nil {
		return nil, browsing.ErrCrossOrigin
	}
	u := *w.loc
	return &u, nil
}

func (w *FakeWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *FakeWindow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

// FakeOpener opens FakeWindows and publishes each on Opened.
type FakeOpener struct {
	mu      sync.Mutex
	Blocked bool
	windows []*FakeWindow
	opened  chan *FakeWindow
}

var _ browsing.Opener = (*FakeOpener)(nil)

func NewFakeOpener() *FakeOpener {
	return &FakeOpener{opened: make(chan *FakeWindow, 16)}
}

func (o *FakeOpener) Open(_ context.Context, target string, _ browsing.Features) (browsing.Window, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Blocked {
		return nil, nil
	}
	w := NewFakeWindow(target)
	o.windows = append(o.windows, w)
	o.opened <- w
	return w, nil
}

// Opened delivers windows as they are opened.
func (o *FakeOpener) Opened() <-chan *FakeWindow {
	return o.opened
}

func (o *FakeOpener) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.windows)
}

// MockOpener is a testify mock of browsing.Opener.
type MockOpener struct {
	mock.Mock
}

func (m *MockOpener) Open(ctx context.Context, target string, features browsing.Features) (browsing.Window, error) {
	args := m.Called(ctx, target, features)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(browsing.Window), args.Error(1)
}

// FixedScreen is a browsing.Screen of a fixed size.
type FixedScreen struct{ Width, Height int }

func (s FixedScreen) Size() (int, int) { return s.Width, s.Height }
