package idp

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/dgellow/login-front/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_LinkedIn(t *testing.T) {
	provider, err := NewProvider(context.Background(), config.ProviderConfig{
		Kind:        config.ProviderLinkedIn,
		ClientID:    "li-client",
		RedirectURI: "https://game.example.com/",
	})
	require.NoError(t, err)
	assert.Equal(t, "linkedin", provider.Type())

	raw := provider.AuthURL("s1", testPair, true)
	assert.True(t, strings.HasPrefix(raw, LinkedInAuthorizationURL+"?"))

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "li-client", q.Get("client_id"))
	assert.Equal(t, "openid profile email", q.Get("scope"))
	assert.Equal(t, "login", q.Get("prompt"))
}

func TestNewProvider_OAuth2(t *testing.T) {
	provider, err := NewProvider(context.Background(), config.ProviderConfig{
		Kind:             config.ProviderOAuth2,
		ClientID:         "c",
		RedirectURI:      "https://a.example.com/cb",
		AuthorizationURL: "https://idp.example.com/authorize",
	})
	require.NoError(t, err)
	assert.Equal(t, "oauth2", provider.Type())
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewProvider(context.Background(), config.ProviderConfig{Kind: "saml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider type")
}
