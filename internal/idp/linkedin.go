package idp

import (
	"context"
)

// LinkedInAuthorizationURL is LinkedIn's OAuth 2.0 authorization endpoint.
const LinkedInAuthorizationURL = "https://www.linkedin.com/oauth/v2/authorization"

// NewLinkedInProvider creates the LinkedIn preset. LinkedIn issues OIDC
// scopes; the backend redeems the code with its own secret.
func NewLinkedInProvider(ctx context.Context, clientID, redirectURI string, scopes []string, forcePrompt string) (*OAuth2Provider, error) {
	if len(scopes) == 0 {
		scopes = []string{"openid", "profile", "email"}
	}
	return NewOAuth2Provider(ctx, OAuth2Config{
		ProviderType:     "linkedin",
		AuthorizationURL: LinkedInAuthorizationURL,
		ClientID:         clientID,
		RedirectURI:      redirectURI,
		Scopes:           scopes,
		ForcePrompt:      forcePrompt,
	})
}
