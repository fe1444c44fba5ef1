package idp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/mrlokans/espace-classe/internal/auth"
)

// OIDCConfig holds the settings of an external OpenID Connect provider.
type OIDCConfig struct {
	DiscoveryURL string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	HTTPClient   *http.Client // Optional, defaults to a client with a 30s timeout
}

// OIDCProvider signs users in through the authorization-code flow and keeps
// the verified ID token in the provider session cookie.
type OIDCProvider struct {
	config     *oauth2.Config
	verifier   *gooidc.IDTokenVerifier
	httpClient *http.Client
}

// idTokenClaims are the claims read from a verified ID token.
type idTokenClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
}

// NewOIDCProvider runs discovery against the issuer and builds the provider.
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig) (*OIDCProvider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if cfg.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	issuer := strings.TrimSuffix(cfg.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(gooidc.ClientContext(ctx, httpClient), issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       scopes(cfg.Scope),
		Endpoint:     op.Endpoint(),
	}
	return newOIDCProvider(oauthCfg, op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}), httpClient), nil
}

func newOIDCProvider(cfg *oauth2.Config, verifier *gooidc.IDTokenVerifier, httpClient *http.Client) *OIDCProvider {
	return &OIDCProvider{config: cfg, verifier: verifier, httpClient: httpClient}
}

// scopes always includes openid, which the ID token requires.
func scopes(scope string) []string {
	fields := strings.Fields(scope)
	for _, f := range fields {
		if f == gooidc.ScopeOpenID {
			return fields
		}
	}
	return append([]string{gooidc.ScopeOpenID}, fields...)
}

func (p *OIDCProvider) clientContext(ctx context.Context) context.Context {
	return gooidc.ClientContext(ctx, p.httpClient)
}

// ErrNonceMismatch is returned when the ID token was not minted for this login.
var ErrNonceMismatch = errors.New("id_token nonce does not match")

// AuthCodeURL returns the authorization endpoint URL for state, asking the
// provider to echo nonce in the ID token.
func (p *OIDCProvider) AuthCodeURL(state, nonce string) string {
	return p.config.AuthCodeURL(state, gooidc.Nonce(nonce))
}

// Exchange trades an authorization code for an ID token and stores it.
func (p *OIDCProvider) Exchange(ctx context.Context, code, nonce string, cookies auth.SessionStore) (*auth.Principal, error) {
	if code == "" {
		return nil, errors.New("authorization code is required")
	}

	token, err := p.config.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("exchange code for token: %w", err)
	}
	rawID, ok := token.Extra("id_token").(string)
	if !ok || rawID == "" {
		return nil, errors.New("token response has no id_token")
	}

	principal, idToken, err := p.verify(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if nonce == "" || idToken.Nonce != nonce {
		return nil, ErrNonceMismatch
	}
	if err := cookies.Write(ctx, auth.ProviderSessionKey, rawID, time.Until(idToken.Expiry)); err != nil {
		return nil, fmt.Errorf("store provider session: %w", err)
	}
	return principal, nil
}

// CurrentPrincipal verifies the stored ID token. An invalid or expired token
// is cleared and reported as an error.
func (p *OIDCProvider) CurrentPrincipal(ctx context.Context, cookies auth.SessionStore) (*auth.Principal, error) {
	rawID, ok, err := cookies.Read(ctx, auth.ProviderSessionKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	principal, _, err := p.verify(ctx, rawID)
	if err != nil {
		_ = cookies.Clear(ctx, auth.ProviderSessionKey)
		return nil, err
	}
	return principal, nil
}

// SignOut drops the provider session cookie. The session at the provider itself is left alone.
func (p *OIDCProvider) SignOut(ctx context.Context, cookies auth.SessionStore) error {
	return cookies.Clear(ctx, auth.ProviderSessionKey)
}

// verify checks signature, issuer, audience and expiry. The nonce is only
// checked at exchange time.
func (p *OIDCProvider) verify(ctx context.Context, rawID string) (*auth.Principal, *gooidc.IDToken, error) {
	idToken, err := p.verifier.Verify(p.clientContext(ctx), rawID)
	if err != nil {
		return nil, nil, fmt.Errorf("verify id_token: %w", err)
	}
	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, nil, fmt.Errorf("parse id_token claims: %w", err)
	}
	if claims.Subject == "" {
		return nil, nil, errors.New("id_token has no subject")
	}
	return &auth.Principal{ID: claims.Subject, Email: claims.Email}, idToken, nil
}
