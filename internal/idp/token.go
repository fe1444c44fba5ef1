package idp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mrlokans/espace-classe/internal/auth"
)

// ErrMissingSecret is returned when a TokenProvider is built without a signing secret.
var ErrMissingSecret = errors.New("token secret is required")

// Claims is the payload of a locally issued provider token. The subject is a profile ID.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenConfig configures a TokenProvider.
type TokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// TokenProvider is a self-contained identity provider: it issues HS256 tokens
// for profiles and accepts them back as sign-ins.
type TokenProvider struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenProvider(cfg TokenConfig) (*TokenProvider, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &TokenProvider{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		now:    time.Now,
	}, nil
}

// Issue signs a token for the profile.
func (p *TokenProvider) Issue(profileID, email string) (string, error) {
	if profileID == "" {
		return "", errors.New("profile ID is required")
	}
	now := p.now().UTC()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profileID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

// Parse validates a token's signature, issuer and expiry.
func (p *TokenProvider) Parse(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// SignIn validates token and stores it as the provider session.
func (p *TokenProvider) SignIn(ctx context.Context, token string, cookies auth.SessionStore) (*auth.Principal, error) {
	claims, err := p.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("invalid provider token: %w", err)
	}
	maxAge := claims.ExpiresAt.Time.Sub(p.now())
	if err := cookies.Write(ctx, auth.ProviderSessionKey, token, maxAge); err != nil {
		return nil, fmt.Errorf("store provider session: %w", err)
	}
	return &auth.Principal{ID: claims.Subject, Email: claims.Email}, nil
}

func (p *TokenProvider) CurrentPrincipal(ctx context.Context, cookies auth.SessionStore) (*auth.Principal, error) {
	token, ok, err := cookies.Read(ctx, auth.ProviderSessionKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	claims, err := p.Parse(token)
	if err != nil {
		_ = cookies.Clear(ctx, auth.ProviderSessionKey)
		return nil, fmt.Errorf("provider session expired or invalid: %w", err)
	}
	return &auth.Principal{ID: claims.Subject, Email: claims.Email}, nil
}

func (p *TokenProvider) SignOut(ctx context.Context, cookies auth.SessionStore) error {
	return cookies.Clear(ctx, auth.ProviderSessionKey)
}
