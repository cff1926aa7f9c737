package idp

import (
	"context"
	"fmt"

	"github.com/dgellow/login-front/internal/config"
)

// NewProvider creates a Provider based on the ProviderConfig.
func NewProvider(ctx context.Context, cfg config.ProviderConfig) (Provider, error) {
	switch cfg.Kind {
	case config.ProviderLinkedIn, "":
		return NewLinkedInProvider(ctx, cfg.ClientID, cfg.RedirectURI, cfg.Scopes, cfg.ForcePrompt)

	case config.ProviderOAuth2:
		return NewOAuth2Provider(ctx, OAuth2Config{
			ProviderType:     string(config.ProviderOAuth2),
			DiscoveryURL:     cfg.DiscoveryURL,
			AuthorizationURL: cfg.AuthorizationURL,
			ClientID:         cfg.ClientID,
			RedirectURI:      cfg.RedirectURI,
			Scopes:           cfg.Scopes,
			ForcePrompt:      cfg.ForcePrompt,
		})

	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Kind)
	}
}
