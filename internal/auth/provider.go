package auth

import (
	"context"

	"github.com/mrlokans/espace-classe/internal/entities"
)

// Principal is the subject an identity provider vouches for.
type Principal struct {
	ID    string
	Email string
}

// IdentityProvider exposes the provider-managed session. It keeps its own
// artifact in the cookie location.
type IdentityProvider interface {
	// CurrentPrincipal returns the signed-in principal, or nil when there is none.
	CurrentPrincipal(ctx context.Context, cookies SessionStore) (*Principal, error)
	SignOut(ctx context.Context, cookies SessionStore) error
}

// RedirectLogin is implemented by providers that sign users in through an
// authorization-code redirect.
type RedirectLogin interface {
	AuthCodeURL(state, nonce string) string
	// Exchange rejects an ID token that does not carry nonce.
	Exchange(ctx context.Context, code, nonce string, cookies SessionStore) (*Principal, error)
}

// TokenLogin is implemented by providers that sign users in from a token
// they issued themselves.
type TokenLogin interface {
	SignIn(ctx context.Context, token string, cookies SessionStore) (*Principal, error)
}

// ProfileStore loads the profile mapped to a provider principal.
type ProfileStore interface {
	GetProfileByID(ctx context.Context, id string) (*entities.Profile, error)
}

// EstablishmentFinder resolves tenants by code.
type EstablishmentFinder interface {
	GetByCode(ctx context.Context, code string) (*entities.Establishment, error)
}
