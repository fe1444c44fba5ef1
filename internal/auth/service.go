package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mrlokans/espace-classe/internal/config"
	"github.com/mrlokans/espace-classe/internal/entities"
)

var (
	// ErrInvalidCredentials covers unknown establishments, unknown users and
	// wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidRole        = errors.New("invalid role")
	// ErrBackendUnavailable reports a storage failure during login.
	ErrBackendUnavailable = errors.New("authentication backend unavailable")
	ErrInvalidAdminCode   = errors.New("invalid admin code")
)

// Credentials is a local-credential login attempt.
type Credentials struct {
	EstablishmentCode string
	Role              string
	Username          string
	Password          string
}

// IdentityFinder looks up per-role accounts scoped by establishment.
type IdentityFinder interface {
	FindStaff(ctx context.Context, establishmentID, username string) (*entities.Profile, error)
	FindTeacher(ctx context.Context, establishmentID, username string) (*entities.Teacher, error)
	FindStudent(ctx context.Context, establishmentID, username string) (*entities.Student, error)
}

// Service handles login, session writing and logout.
type Service struct {
	establishments EstablishmentFinder
	identities     IdentityFinder
	verifier       PasswordVerifier
	adminCodes     *AdminCodes
	provider       IdentityProvider
	maxAge         time.Duration
	metrics        *Metrics
}

// ServiceConfig groups the optional collaborators of a Service.
type ServiceConfig struct {
	Verifier   PasswordVerifier // Defaults to HashVerifier
	AdminCodes *AdminCodes      // nil disables admin codes
	Provider   IdentityProvider // nil when no identity provider is configured
	MaxAge     time.Duration    // Session cookie lifetime
	Metrics    *Metrics
}

// NewService creates a new authentication service.
func NewService(establishments EstablishmentFinder, identities IdentityFinder, cfg ServiceConfig) *Service {
	if cfg.Verifier == nil {
		cfg.Verifier = HashVerifier{}
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = config.DefaultSessionMaxAge
	}
	return &Service{
		establishments: establishments,
		identities:     identities,
		verifier:       cfg.Verifier,
		adminCodes:     cfg.AdminCodes,
		provider:       cfg.Provider,
		maxAge:         cfg.MaxAge,
		metrics:        cfg.Metrics,
	}
}

// Authenticate verifies a local-credential login and returns the session record to store.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (*SessionRecord, error) {
	record, err := s.authenticate(ctx, creds)
	switch {
	case err == nil:
		s.metrics.login(AuthTypeLocal, "success")
	case errors.Is(err, ErrBackendUnavailable):
		s.metrics.login(AuthTypeLocal, "error")
	default:
		s.metrics.login(AuthTypeLocal, "failure")
	}
	return record, err
}

func (s *Service) authenticate(ctx context.Context, creds Credentials) (*SessionRecord, error) {
	code := strings.TrimSpace(creds.EstablishmentCode)
	username := strings.TrimSpace(creds.Username)
	if code == "" || username == "" || creds.Password == "" {
		return nil, ErrInvalidCredentials
	}

	establishment, err := s.establishments.GetByCode(ctx, code)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, backendError("establishment lookup", err)
	}

	role := entities.Role(creds.Role)
	identity, err := s.findIdentity(ctx, role, establishment.ID, username)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRole):
			return nil, err
		case isNotFound(err):
			return nil, ErrInvalidCredentials
		default:
			return nil, backendError("identity lookup", err)
		}
	}

	ok, err := s.verifier.VerifyPassword(ctx, creds.Password, identity.PasswordHash)
	if err != nil {
		log.Printf("[AUTH] Password verification failed for %s: %v", username, err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return &SessionRecord{
		ID:                identity.ID,
		EstablishmentID:   establishment.ID,
		EstablishmentCode: establishment.Code,
		EstablishmentName: establishment.Name,
		Role:              string(role),
		Username:          identity.Username,
		FirstName:         identity.FirstName,
		LastName:          identity.LastName,
		Email:             identity.Email,
	}, nil
}

func (s *Service) findIdentity(ctx context.Context, role entities.Role, establishmentID, username string) (*entities.Identity, error) {
	switch role {
	case entities.RoleStaff:
		p, err := s.identities.FindStaff(ctx, establishmentID, username)
		if err != nil {
			return nil, err
		}
		return &p.Identity, nil
	case entities.RoleTeacher:
		t, err := s.identities.FindTeacher(ctx, establishmentID, username)
		if err != nil {
			return nil, err
		}
		return &t.Identity, nil
	case entities.RoleDelegate:
		st, err := s.identities.FindStudent(ctx, establishmentID, username)
		if err != nil {
			return nil, err
		}
		return &st.Identity, nil
	default:
		return nil, ErrInvalidRole
	}
}

func backendError(op string, err error) error {
	log.Printf("[AUTH] %s failed: %v", op, err)
	return fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, op, err)
}

// ValidateAdminCode looks a code up in the configured admin table.
func (s *Service) ValidateAdminCode(code string) (AdminCredential, bool) {
	return s.adminCodes.ValidateAdminCode(code)
}

// AdminLogin validates an admin code and starts an admin session for it.
func (s *Service) AdminLogin(ctx context.Context, stores Stores, code string) (AdminCredential, error) {
	cred, ok := s.ValidateAdminCode(code)
	if !ok {
		s.metrics.login(AuthTypeAdmin, "failure")
		return AdminCredential{}, ErrInvalidAdminCode
	}
	if err := s.StartAdminSession(ctx, stores, cred); err != nil {
		return AdminCredential{}, err
	}
	s.metrics.login(AuthTypeAdmin, "success")
	return cred, nil
}

// StartLocalSession writes the record to both unified session locations.
func (s *Service) StartLocalSession(ctx context.Context, stores Stores, record *SessionRecord) error {
	value, err := encodeValue(record)
	if err != nil {
		return err
	}
	if err := stores.Cookies.Write(ctx, UnifiedSessionKey, value, s.maxAge); err != nil {
		return fmt.Errorf("failed to write session cookie: %w", err)
	}
	if stores.Local != nil {
		if err := stores.Local.Write(ctx, UnifiedSessionKey, value, s.maxAge); err != nil {
			return fmt.Errorf("failed to write local session: %w", err)
		}
	}
	return nil
}

// StartAdminSession writes the admin_session cookie.
func (s *Service) StartAdminSession(ctx context.Context, stores Stores, cred AdminCredential) error {
	value, err := encodeValue(cred)
	if err != nil {
		return err
	}
	if err := stores.Cookies.Write(ctx, AdminSessionKey, value, s.maxAge); err != nil {
		return fmt.Errorf("failed to write admin session: %w", err)
	}
	return nil
}

// Logout ends every session mechanism: the unified key in both locations,
// the admin cookie and the identity-provider session.
func (s *Service) Logout(ctx context.Context, stores Stores) error {
	var errs []error
	if err := s.ClearLocalSession(ctx, stores); err != nil {
		errs = append(errs, err)
	}
	if stores.Cookies != nil {
		if err := stores.Cookies.Clear(ctx, AdminSessionKey); err != nil {
			errs = append(errs, err)
		}
	}
	if s.provider != nil && stores.Cookies != nil {
		if err := s.provider.SignOut(ctx, stores.Cookies); err != nil {
			errs = append(errs, fmt.Errorf("identity provider sign-out: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ClearLocalSession removes only the unified key, from cookie and twin.
// Admin and identity-provider sessions survive.
func (s *Service) ClearLocalSession(ctx context.Context, stores Stores) error {
	var errs []error
	if stores.Cookies != nil {
		if err := stores.Cookies.Clear(ctx, UnifiedSessionKey); err != nil {
			errs = append(errs, err)
		}
	}
	if stores.Local != nil {
		if err := stores.Local.Clear(ctx, UnifiedSessionKey); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
