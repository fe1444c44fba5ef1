package auth

import (
	"github.com/mrlokans/espace-classe/internal/entities"
)

// AuthType records which resolution path produced a user. It is kept for
// auditing only and never drives authorization.
type AuthType string

const (
	AuthTypeLocal    AuthType = "local-credential"
	AuthTypeAdmin    AuthType = "admin-bypass"
	AuthTypeProvider AuthType = "identity-provider"
)

// Session artifact keys.
const (
	UnifiedSessionKey  = "user_session"
	AdminSessionKey    = "admin_session"
	ProviderSessionKey = "idp_session" // Owned by the identity provider
)

// AuthUser is the identity every resolution path converges on.
type AuthUser struct {
	ID              string        `json:"id"`
	EstablishmentID string        `json:"establishment_id"`
	Role            entities.Role `json:"role"`
	AuthType        AuthType      `json:"auth_type"`
	Username        string        `json:"username,omitempty"`
	FirstName       string        `json:"first_name,omitempty"`
	LastName        string        `json:"last_name,omitempty"`
	Email           string        `json:"email,omitempty"`
}

// HasRole reports whether the user carries one of the given roles.
func (u *AuthUser) HasRole(roles ...entities.Role) bool {
	if u == nil {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// SessionRecord is the serialized form of a local-credential session, stored
// under UnifiedSessionKey. Role stays a plain string so that records carrying
// an unknown role still decode and can be rejected structurally.
type SessionRecord struct {
	ID                string `json:"id"`
	EstablishmentID   string `json:"establishment_id"`
	EstablishmentCode string `json:"establishment_code,omitempty"`
	EstablishmentName string `json:"establishment_name,omitempty"`
	Role              string `json:"role"`
	Username          string `json:"username,omitempty"`
	FirstName         string `json:"first_name,omitempty"`
	LastName          string `json:"last_name,omitempty"`
	Email             string `json:"email,omitempty"`
}

// valid reports whether the record carries everything a resolved user needs.
func (r *SessionRecord) valid() bool {
	return r.ID != "" && r.EstablishmentID != "" && entities.Role(r.Role).Valid()
}

func (r *SessionRecord) user() *AuthUser {
	return &AuthUser{
		ID:              r.ID,
		EstablishmentID: r.EstablishmentID,
		Role:            entities.Role(r.Role),
		AuthType:        AuthTypeLocal,
		Username:        r.Username,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		Email:           r.Email,
	}
}
