package auth

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/mrlokans/espace-classe/internal/config"
	"github.com/mrlokans/espace-classe/internal/database"
	"github.com/mrlokans/espace-classe/internal/entities"
)

// Status is the terminal state of a resolution.
type Status string

const (
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
	StatusForbidden       Status = "forbidden"
)

// Options narrows a resolution.
type Options struct {
	// RequireRole turns a resolved user with another role into StatusForbidden.
	RequireRole entities.Role
	// RedirectTo overrides the login or forbidden destination.
	RedirectTo string
}

type Result struct {
	Status Status `json:"status"`
	// User is set only when Status is StatusAuthenticated.
	User       *AuthUser `json:"user,omitempty"`
	RedirectTo string    `json:"redirect_to,omitempty"`

	// denied is the user refused by the role gate, kept for the audit trail.
	denied *AuthUser
}

// ResolverConfig holds the destinations and limits of a Resolver.
type ResolverConfig struct {
	LoginPath               string
	ForbiddenPath           string
	FallbackEstablishmentID string
	Timeout                 time.Duration
}

// ResolverConfigFromConfig builds a ResolverConfig from application settings.
func ResolverConfigFromConfig(cfg *config.Config) ResolverConfig {
	return ResolverConfig{
		LoginPath:               cfg.Auth.LoginPath,
		ForbiddenPath:           cfg.Auth.ForbiddenPath,
		FallbackEstablishmentID: cfg.Admin.FallbackEstablishmentID,
		Timeout:                 cfg.Auth.ResolveTimeout,
	}
}

// Resolver determines the current user from the three session mechanisms,
// tried in order: local credential, admin bypass, identity provider.
type Resolver struct {
	establishments EstablishmentFinder
	profiles       ProfileStore
	provider       IdentityProvider
	cfg            ResolverConfig
	metrics        *Metrics
}

// NewResolver creates a resolver. provider may be nil when no identity
// provider is configured.
func NewResolver(establishments EstablishmentFinder, profiles ProfileStore, provider IdentityProvider, cfg ResolverConfig) *Resolver {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/auth/login"
	}
	if cfg.ForbiddenPath == "" {
		cfg.ForbiddenPath = "/dashboard"
	}
	if cfg.FallbackEstablishmentID == "" {
		cfg.FallbackEstablishmentID = config.DefaultFallbackEstablishmentID
	}
	return &Resolver{
		establishments: establishments,
		profiles:       profiles,
		provider:       provider,
		cfg:            cfg,
	}
}

// WithMetrics attaches metrics to the resolver.
func (r *Resolver) WithMetrics(m *Metrics) *Resolver {
	r.metrics = m
	return r
}

// Provider returns the configured identity provider, or nil.
func (r *Resolver) Provider() IdentityProvider {
	return r.provider
}

// Resolve runs the resolution paths in order and returns the first user found.
func (r *Resolver) Resolve(ctx context.Context, stores Stores, opts Options) Result {
	start := time.Now()
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	user := r.fromLocalSession(ctx, stores)
	if user == nil {
		user = r.fromAdminSession(ctx, stores)
	}
	if user == nil {
		user = r.fromProvider(ctx, stores)
	}

	result := r.gate(user, opts)
	var authType AuthType
	if user != nil {
		authType = user.AuthType
	}
	r.metrics.observeResolution(authType, result.Status, time.Since(start).Seconds())
	return result
}

func (r *Resolver) gate(user *AuthUser, opts Options) Result {
	if user == nil {
		return Result{Status: StatusUnauthenticated, RedirectTo: firstNonEmpty(opts.RedirectTo, r.cfg.LoginPath)}
	}
	if opts.RequireRole != "" && user.Role != opts.RequireRole {
		return Result{Status: StatusForbidden, RedirectTo: firstNonEmpty(opts.RedirectTo, r.cfg.ForbiddenPath), denied: user}
	}
	return Result{Status: StatusAuthenticated, User: user}
}

func (r *Resolver) fromLocalSession(ctx context.Context, stores Stores) *AuthUser {
	record, found := r.readCookieRecord(ctx, stores)
	if !found {
		record, found = r.readTwinRecord(ctx, stores)
	}
	if !found {
		return nil
	}

	if !record.valid() {
		r.metrics.invalidSession("incomplete")
		clearUnified(ctx, stores)
		return nil
	}
	return record.user()
}

func (r *Resolver) readCookieRecord(ctx context.Context, stores Stores) (SessionRecord, bool) {
	var record SessionRecord
	if stores.Cookies == nil {
		return record, false
	}

	raw, ok, err := stores.Cookies.Read(ctx, UnifiedSessionKey)
	if err == nil && !ok {
		return record, false
	}
	if err == nil {
		err = decodeValue(raw, &record)
	}
	if err != nil {
		log.Printf("[AUTH] Discarding unreadable %s cookie: %v", UnifiedSessionKey, err)
		r.metrics.invalidSession("undecodable")
		_ = stores.Cookies.Clear(ctx, UnifiedSessionKey)
		return SessionRecord{}, false
	}
	return record, true
}

func (r *Resolver) readTwinRecord(ctx context.Context, stores Stores) (SessionRecord, bool) {
	var record SessionRecord
	if stores.Local == nil {
		return record, false
	}

	raw, ok, err := stores.Local.Read(ctx, UnifiedSessionKey)
	if err != nil {
		log.Printf("[AUTH] Failed to read local session: %v", err)
		return record, false
	}
	if !ok {
		return record, false
	}
	if err := decodeValue(raw, &record); err != nil {
		log.Printf("[AUTH] Discarding unreadable local session: %v", err)
		r.metrics.invalidSession("undecodable")
		_ = stores.Local.Clear(ctx, UnifiedSessionKey)
		return SessionRecord{}, false
	}
	return record, true
}

func (r *Resolver) fromAdminSession(ctx context.Context, stores Stores) *AuthUser {
	if stores.Cookies == nil {
		return nil
	}
	raw, ok, err := stores.Cookies.Read(ctx, AdminSessionKey)
	if err != nil || !ok {
		return nil
	}

	var cred AdminCredential
	if err := decodeValue(raw, &cred); err != nil || cred.Code == "" {
		return nil
	}

	return &AuthUser{
		ID:              "admin-" + cred.Code,
		EstablishmentID: r.adminEstablishmentID(ctx, cred),
		Role:            entities.RoleStaff,
		AuthType:        AuthTypeAdmin,
		Username:        cred.Code,
	}
}

// adminEstablishmentID looks the tenant up by the credential's establishment
// code, then by the admin code itself, and degrades to the fallback ID.
func (r *Resolver) adminEstablishmentID(ctx context.Context, cred AdminCredential) string {
	if r.establishments == nil {
		return r.cfg.FallbackEstablishmentID
	}
	for _, code := range []string{cred.EstablishmentCode, cred.Code} {
		if code == "" {
			continue
		}
		establishment, err := r.establishments.GetByCode(ctx, code)
		if err == nil && establishment != nil {
			return establishment.ID
		}
		if err != nil && !isNotFound(err) {
			log.Printf("[AUTH] Establishment lookup for admin code %s failed: %v", cred.Code, err)
			break
		}
	}
	return r.cfg.FallbackEstablishmentID
}

func (r *Resolver) fromProvider(ctx context.Context, stores Stores) *AuthUser {
	if r.provider == nil || stores.Cookies == nil {
		return nil
	}

	principal, err := r.provider.CurrentPrincipal(ctx, stores.Cookies)
	if err != nil {
		log.Printf("[AUTH] Identity provider session check failed: %v", err)
		return nil
	}
	if principal == nil || principal.ID == "" || r.profiles == nil {
		return nil
	}

	profile, err := r.profiles.GetProfileByID(ctx, principal.ID)
	if err != nil {
		if !isNotFound(err) {
			log.Printf("[AUTH] Profile lookup for %s failed: %v", principal.ID, err)
		}
		return nil
	}
	if profile.EstablishmentID == "" || !profile.Role.Valid() {
		return nil
	}

	return &AuthUser{
		ID:              principal.ID,
		EstablishmentID: profile.EstablishmentID,
		Role:            profile.Role,
		AuthType:        AuthTypeProvider,
		Username:        profile.Username,
		FirstName:       profile.FirstName,
		LastName:        profile.LastName,
		Email:           profile.Email,
	}
}

func clearUnified(ctx context.Context, stores Stores) {
	if stores.Cookies != nil {
		_ = stores.Cookies.Clear(ctx, UnifiedSessionKey)
	}
	if stores.Local != nil {
		_ = stores.Local.Clear(ctx, UnifiedSessionKey)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func isNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}
