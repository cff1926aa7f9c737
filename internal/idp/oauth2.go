package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dgellow/login-front/internal/pkce"
	"golang.org/x/oauth2"
)

// OAuth2Config configures a generic OAuth2 provider.
type OAuth2Config struct {
	// ProviderType identifies this provider (e.g., "oauth2", "linkedin").
	ProviderType string

	// Discovery URL for OIDC discovery (optional if AuthorizationURL is set).
	DiscoveryURL string

	// Direct endpoint configuration (used if DiscoveryURL is not set).
	AuthorizationURL string

	ClientID    string
	RedirectURI string
	Scopes      []string

	// ForcePrompt is sent as the prompt parameter on forced logins.
	ForcePrompt string

	// HTTPClient is used for discovery. Defaults to a 10s-timeout client.
	HTTPClient *http.Client
}

// OAuth2Provider implements Provider on top of x/oauth2. It is a public
// client: PKCE replaces the client secret.
type OAuth2Provider struct {
	providerType string
	config       oauth2.Config
	forcePrompt  string
}

var _ Provider = (*OAuth2Provider)(nil)

// discoveryDocument is the subset of the OIDC discovery document we read.
type discoveryDocument struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
}

// NewOAuth2Provider creates a provider, resolving endpoints through discovery
// when DiscoveryURL is set.
func NewOAuth2Provider(ctx context.Context, cfg OAuth2Config) (*OAuth2Provider, error) {
	authURL := cfg.AuthorizationURL
	tokenURL := ""

	if cfg.DiscoveryURL != "" {
		client := cfg.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: 10 * time.Second}
		}
		discovery, err := fetchDiscovery(ctx, client, cfg.DiscoveryURL)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch OIDC discovery: %w", err)
		}
		authURL = discovery.AuthorizationEndpoint
		tokenURL = discovery.TokenEndpoint
	}
	if authURL == "" {
		return nil, fmt.Errorf("either discoveryUrl or authorizationUrl must be provided")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("clientId is required")
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("redirectUri is required")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "profile", "email"}
	}

	providerType := cfg.ProviderType
	if providerType == "" {
		providerType = "oauth2"
	}

	forcePrompt := cfg.ForcePrompt
	if forcePrompt == "" {
		forcePrompt = "login"
	}

	return &OAuth2Provider{
		providerType: providerType,
		config: oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Scopes:      scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
		forcePrompt: forcePrompt,
	}, nil
}

func fetchDiscovery(ctx context.Context, client *http.Client, discoveryURL string) (*discoveryDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discovery document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("discovery endpoint returned status %d: %s", resp.StatusCode, body)
	}

	var discovery discoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&discovery); err != nil {
		return nil, fmt.Errorf("failed to decode discovery document: %w", err)
	}

	if discovery.AuthorizationEndpoint == "" {
		return nil, fmt.Errorf("discovery document missing authorization_endpoint")
	}
	if len(discovery.CodeChallengeMethodsSupported) > 0 && !supportsS256(discovery.CodeChallengeMethodsSupported) {
		return nil, fmt.Errorf("provider does not support the S256 code challenge method")
	}

	return &discovery, nil
}

func supportsS256(methods []string) bool {
	for _, m := range methods {
		if m == pkce.MethodS256 {
			return true
		}
	}
	return false
}

// Type returns the provider type.
func (p *OAuth2Provider) Type() string {
	return p.providerType
}

// RedirectURI returns the registered callback URL.
func (p *OAuth2Provider) RedirectURI() string {
	return p.config.RedirectURL
}

// AuthURL generates the authorization URL: response_type=code, client_id,
// redirect_uri, scope, state and the S256 challenge derived from the pair's
// verifier, plus prompt when forced.
func (p *OAuth2Provider) AuthURL(state string, pair pkce.Pair, force bool) string {
	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(pair.Verifier)}
	if force {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", p.forcePrompt))
	}
	return p.config.AuthCodeURL(state, opts...)
}
