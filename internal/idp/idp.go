// Package idp implements the identity providers behind the third resolution
// path: an external OpenID Connect provider and a local HS256 token issuer.
// Both keep their session under auth.ProviderSessionKey in the cookie location.
package idp

import (
	"context"
	"fmt"

	"github.com/mrlokans/espace-classe/internal/auth"
	"github.com/mrlokans/espace-classe/internal/config"
)

// New builds the provider selected by cfg.Mode. It returns nil for ProviderModeNone.
func New(ctx context.Context, cfg config.Provider) (auth.IdentityProvider, error) {
	switch cfg.Mode {
	case config.ProviderModeNone, "":
		return nil, nil
	case config.ProviderModeOIDC:
		p, err := NewOIDCProvider(ctx, OIDCConfig{
			DiscoveryURL: cfg.DiscoveryURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scope:        cfg.Scope,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.ProviderModeToken:
		p, err := NewTokenProvider(TokenConfig{
			Secret: cfg.TokenSecret,
			Issuer: cfg.TokenIssuer,
			TTL:    cfg.TokenTTL,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProviderMode, cfg.Mode)
	}
}
