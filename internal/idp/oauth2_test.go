package idp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/dgellow/login-front/internal/pkce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPair = pkce.FromVerifier("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk")

func parseAuthURL(t *testing.T, raw string) (*url.URL, url.Values) {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u, u.Query()
}

func TestOAuth2Provider_AuthURL(t *testing.T) {
	provider, err := NewOAuth2Provider(context.Background(), OAuth2Config{
		AuthorizationURL: "https://idp.example.com/authorize",
		ClientID:         "client-id",
		RedirectURI:      "https://app.example.com/callback",
		Scopes:           []string{"openid", "profile"},
	})
	require.NoError(t, err)
	assert.Equal(t, "oauth2", provider.Type())
	assert.Equal(t, "https://app.example.com/callback", provider.RedirectURI())

	u, q := parseAuthURL(t, provider.AuthURL("s1", testPair, false))
	assert.Equal(t, "idp.example.com", u.Host)
	assert.Equal(t, "/authorize", u.Path)
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "https://app.example.com/callback", q.Get("redirect_uri"))
	assert.Equal(t, "openid profile", q.Get("scope"))
	assert.Equal(t, "s1", q.Get("state"))
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.False(t, q.Has("prompt"))
	assert.False(t, q.Has("client_secret"))
	assert.NotContains(t, u.String(), testPair.Verifier, "verifier never leaves the client")
}

func TestOAuth2Provider_ForcedPrompt(t *testing.T) {
	provider, err := NewOAuth2Provider(context.Background(), OAuth2Config{
		AuthorizationURL: "https://idp.example.com/authorize",
		ClientID:         "client-id",
		RedirectURI:      "https://app.example.com/callback",
	})
	require.NoError(t, err)

	_, q := parseAuthURL(t, provider.AuthURL("s2", testPair, true))
	assert.Equal(t, "login", q.Get("prompt"))

	provider.forcePrompt = "consent"
	_, q = parseAuthURL(t, provider.AuthURL("s2", testPair, true))
	assert.Equal(t, "consent", q.Get("prompt"))
}

func TestNewOAuth2Provider_WithDiscovery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(discoveryDocument{
			Issuer:                        "https://idp.example.com",
			AuthorizationEndpoint:         "https://idp.example.com/oauth/authorize",
			TokenEndpoint:                 "https://idp.example.com/oauth/token",
			CodeChallengeMethodsSupported: []string{"plain", "S256"},
		})
	}))
	defer server.Close()

	provider, err := NewOAuth2Provider(context.Background(), OAuth2Config{
		DiscoveryURL: server.URL,
		ClientID:     "client-id",
		RedirectURI:  "https://app.example.com/callback",
	})
	require.NoError(t, err)

	u, q := parseAuthURL(t, provider.AuthURL("s1", testPair, false))
	assert.Equal(t, "/oauth/authorize", u.Path)
	assert.Equal(t, "openid profile email", q.Get("scope"))
}

func TestNewOAuth2Provider_DiscoveryWithoutS256(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(discoveryDocument{
			AuthorizationEndpoint:         "https://idp.example.com/authorize",
			CodeChallengeMethodsSupported: []string{"plain"},
		})
	}))
	defer server.Close()

	_, err := NewOAuth2Provider(context.Background(), OAuth2Config{
		DiscoveryURL: server.URL,
		ClientID:     "client-id",
		RedirectURI:  "https://app.example.com/callback",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S256")
}

func TestNewOAuth2Provider_DiscoveryFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewOAuth2Provider(context.Background(), OAuth2Config{
		DiscoveryURL: server.URL,
		ClientID:     "client-id",
		RedirectURI:  "https://app.example.com/callback",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestNewOAuth2Provider_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		cfg     OAuth2Config
		wantErr string
	}{
		{
			name:    "no endpoint",
			cfg:     OAuth2Config{ClientID: "c", RedirectURI: "https://a/cb"},
			wantErr: "discoveryUrl or authorizationUrl",
		},
		{
			name:    "no client id",
			cfg:     OAuth2Config{AuthorizationURL: "https://idp/authorize", RedirectURI: "https://a/cb"},
			wantErr: "clientId is required",
		},
		{
			name:    "no redirect",
			cfg:     OAuth2Config{AuthorizationURL: "https://idp/authorize", ClientID: "c"},
			wantErr: "redirectUri is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOAuth2Provider(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
