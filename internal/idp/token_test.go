package idp

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/espace-classe/internal/auth"
	"github.com/mrlokans/espace-classe/internal/config"
)

func newTestTokenProvider(t *testing.T) *TokenProvider {
	t.Helper()
	p, err := NewTokenProvider(TokenConfig{Secret: "test-secret", Issuer: "espace-classe", TTL: time.Hour})
	require.NoError(t, err)
	return p
}

func TestTokenProvider_IssueAndParse(t *testing.T) {
	p := newTestTokenProvider(t)

	token, err := p.Issue("profile-1", "vs@example.fr")
	require.NoError(t, err)

	claims, err := p.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "profile-1", claims.Subject)
	assert.Equal(t, "vs@example.fr", claims.Email)
	assert.Equal(t, "espace-classe", claims.Issuer)
}

func TestTokenProvider_ParseRejects(t *testing.T) {
	p := newTestTokenProvider(t)
	good, err := p.Issue("profile-1", "")
	require.NoError(t, err)

	otherSecret, err := NewTokenProvider(TokenConfig{Secret: "other", Issuer: "espace-classe"})
	require.NoError(t, err)
	forged, err := otherSecret.Issue("profile-1", "")
	require.NoError(t, err)

	otherIssuer, err := NewTokenProvider(TokenConfig{Secret: "test-secret", Issuer: "someone"})
	require.NoError(t, err)
	wrongIssuer, err := otherIssuer.Issue("profile-1", "")
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "profile-1", "iss": "espace-classe", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = p.Parse(good)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	p.now = time.Now

	for name, token := range map[string]string{
		"wrong secret": forged,
		"wrong issuer": wrongIssuer,
		"none alg":     noneAlg,
		"garbage":      "abc.def.ghi",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Parse(token)
			assert.Error(t, err)
		})
	}
}

func TestTokenProvider_SignInAndCurrentPrincipal(t *testing.T) {
	p := newTestTokenProvider(t)
	cookies := auth.NewMemoryStore()
	ctx := context.Background()
	token, err := p.Issue("profile-1", "vs@example.fr")
	require.NoError(t, err)

	principal, err := p.SignIn(ctx, token, cookies)
	require.NoError(t, err)
	assert.Equal(t, "profile-1", principal.ID)

	current, err := p.CurrentPrincipal(ctx, cookies)
	require.NoError(t, err)
	assert.Equal(t, &auth.Principal{ID: "profile-1", Email: "vs@example.fr"}, current)

	require.NoError(t, p.SignOut(ctx, cookies))
	current, err = p.CurrentPrincipal(ctx, cookies)
	assert.NoError(t, err)
	assert.Nil(t, current)
}

func TestTokenProvider_SignInRejectsInvalid(t *testing.T) {
	p := newTestTokenProvider(t)
	cookies := auth.NewMemoryStore()

	_, err := p.SignIn(context.Background(), "nope", cookies)
	assert.Error(t, err)
	assert.False(t, cookies.Has(auth.ProviderSessionKey))
}

func TestTokenProvider_CurrentPrincipalClearsInvalid(t *testing.T) {
	p := newTestTokenProvider(t)
	cookies := auth.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, cookies.Write(ctx, auth.ProviderSessionKey, "tampered", 0))

	principal, err := p.CurrentPrincipal(ctx, cookies)
	assert.Error(t, err)
	assert.Nil(t, principal)
	assert.False(t, cookies.Has(auth.ProviderSessionKey))
}

func TestTokenProvider_MissingSecret(t *testing.T) {
	_, err := NewTokenProvider(TokenConfig{})
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestNew(t *testing.T) {
	p, err := New(context.Background(), config.Provider{Mode: config.ProviderModeNone})
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = New(context.Background(), config.Provider{Mode: config.ProviderModeToken, TokenSecret: "s"})
	require.NoError(t, err)
	assert.IsType(t, &TokenProvider{}, p)

	_, err = New(context.Background(), config.Provider{Mode: config.ProviderModeToken})
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = New(context.Background(), config.Provider{Mode: "saml"})
	assert.ErrorIs(t, err, config.ErrUnknownProviderMode)
}
