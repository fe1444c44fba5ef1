package auth

import (
	"strings"

	"github.com/mrlokans/espace-classe/internal/config"
	"github.com/mrlokans/espace-classe/internal/entities"
)

// AdminCredential is one entry of the admin bypass table. It is also the
// payload of the admin_session cookie.
type AdminCredential struct {
	Code              string        `json:"code"`
	Establishment     string        `json:"establishment"`
	EstablishmentCode string        `json:"establishment_code,omitempty"`
	Role              entities.Role `json:"role"`
	Username          string        `json:"username"`
	DisplayName       string        `json:"displayName"`
}

// AdminCodes is the immutable admin bypass table, keyed by normalized code.
type AdminCodes struct {
	codes map[string]AdminCredential
}

// NewAdminCodes builds the table. Entries are expected to have passed
// config.ValidateAdminCodes.
func NewAdminCodes(codes []config.AdminCode) *AdminCodes {
	table := make(map[string]AdminCredential, len(codes))
	for _, c := range codes {
		code := NormalizeAdminCode(c.Code)
		table[code] = AdminCredential{
			Code:              code,
			Establishment:     c.Establishment,
			EstablishmentCode: c.EstablishmentCode,
			Role:              entities.Role(c.Role),
			Username:          c.Username,
			DisplayName:       c.DisplayName,
		}
	}
	return &AdminCodes{codes: table}
}

// NormalizeAdminCode lowercases and trims a code.
func NormalizeAdminCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// ValidateAdminCode looks up a code after normalization. A nil table accepts nothing.
func (a *AdminCodes) ValidateAdminCode(code string) (AdminCredential, bool) {
	if a == nil {
		return AdminCredential{}, false
	}
	cred, ok := a.codes[NormalizeAdminCode(code)]
	return cred, ok
}

// Len returns the number of configured codes.
func (a *AdminCodes) Len() int {
	if a == nil {
		return 0
	}
	return len(a.codes)
}
