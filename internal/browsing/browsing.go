// Package browsing models the pieces of a browsing context the login
// controller drives: the current page, secondary windows, the opener link
// and cross-window messages. Hosts implement these for their environment;
// the loopback host implements them for a terminal plus system browser.
package browsing

import (
	"context"
	"errors"
	"net/url"
)

// ErrCrossOrigin is returned when a window's location cannot be read
// because it is on another origin (for example the provider's login page).
var ErrCrossOrigin = errors.New("cross-origin location not readable")

// Page is the current browsing context's document.
type Page interface {
	// Location returns the full current URL.
	Location() *url.URL

	// ReplaceURL rewrites the address bar without reloading or adding a
	// history entry. ref may be a path, path+fragment or absolute URL.
	ReplaceURL(ref string) error

	// Assign navigates the page away (full-page navigation).
	Assign(ctx context.Context, target string) error

	ScrollY() float64
	ScrollTo(y float64)

	// CloseWindow closes this context if it is a secondary window.
	CloseWindow()
}

// Window is a handle to a secondary window opened by this context.
type Window interface {
	// Location returns ErrCrossOrigin while the window is on a foreign origin.
	Location() (*url.URL, error)
	Closed() bool
	Close()
}

// Features are the placement hints for a new secondary window.
type Features struct {
	Width  int
	Height int
	Left   int
	Top    int
}

// Opener opens secondary windows. A nil Window with a nil error means the
// environment blocked the window.
type Opener interface {
	Open(ctx context.Context, target string, features Features) (Window, error)
}

// OpenerRef is the link from a secondary window back to the context that
// opened it.
type OpenerRef interface {
	// Closed reports whether the opener is gone.
	Closed() bool

	// PostMessage delivers msg to the opener if its origin matches
	// targetOrigin.
	PostMessage(msg Message, targetOrigin string) error
}

// Device describes the user agent.
type Device interface {
	// IsTouch reports a touch-first device, where secondary windows are
	// unreliable and the full-page flow is used instead.
	IsTouch() bool
}

// DeviceFunc adapts a func to Device.
type DeviceFunc func() bool

func (f DeviceFunc) IsTouch() bool { return f() }

// Screen gives the size used to centre secondary windows. Optional.
type Screen interface {
	Size() (width, height int)
}

// Centered returns features for a width x height window centred on a
// screen of the given size.
func Centered(width, height, screenWidth, screenHeight int) Features {
	left := (screenWidth - width) / 2
	top := (screenHeight - height) / 2
	if left < 0 {
		left = 0
	}
	if top < 0 {
		top = 0
	}
	return Features{Width: width, Height: height, Left: left, Top: top}
}

// Origin returns the scheme://host[:port] of u.
func Origin(u *url.URL) string {
	if u == nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
