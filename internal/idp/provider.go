// Package idp builds authorization URLs for the identity provider the user
// signs in with. The code exchange itself happens on the application
// backend, so providers here never see a client secret or a token.
package idp

import (
	"github.com/dgellow/login-front/internal/pkce"
)

// Provider abstracts identity provider operations.
type Provider interface {
	// Type returns the provider type identifier (e.g., "linkedin", "oauth2").
	Type() string

	// AuthURL generates the authorization URL for one login attempt. force
	// asks the provider to re-prompt even when it holds a live grant.
	AuthURL(state string, pair pkce.Pair, force bool) string

	// RedirectURI is the callback the provider sends the user back to. The
	// backend must present the same value when redeeming the code.
	RedirectURI() string
}
