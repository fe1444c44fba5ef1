// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Directory Lookups
//
//   - EstablishmentFinder: Tenant lookup by code (internal/auth/provider.go)
//   - IdentityFinder: Per-role account lookup scoped by establishment (internal/auth/service.go)
//   - ProfileStore: Profile lookup for identity-provider principals (internal/auth/provider.go)
//
// ## Session Interfaces
//
//   - SessionStore: One session location, cookie or server side (internal/auth/store.go)
//   - IdentityProvider: Provider-managed session (internal/auth/provider.go)
//   - RedirectLogin, TokenLogin: Provider sign-in flows (internal/auth/provider.go)
//   - PasswordVerifier: Password check against a stored hash (internal/auth/password.go)
//
// ## HTTP Stores
//
//   - RoomStore: Tenant-scoped classroom layouts (internal/http/stores.go)
//   - RoomEvents, AuditReader: Audit trail access (internal/http/stores.go)
//   - Pinger: Health check dependency (internal/http/health.go)
//
// ## Background Work
//
//   - AuditEventCleaner: Audit retention (internal/tasks/cleanup_audit.go)
//   - AuditCleanupEnqueuer: Queue entry point for the scheduler (internal/scheduler/audit_cleanup.go)
//   - AuditCleanupRunner, TaskStatuser: Task control over HTTP (internal/http)
//
// # Adding a New Identity Provider
//
//  1. Implement IdentityProvider in internal/idp/, plus RedirectLogin or TokenLogin
//     for its sign-in flow. Keep the provider artifact under auth.ProviderSessionKey.
//
//     type SAMLProvider struct { ... }
//
//     func (p *SAMLProvider) CurrentPrincipal(ctx context.Context, cookies auth.SessionStore) (*auth.Principal, error)
//     func (p *SAMLProvider) SignOut(ctx context.Context, cookies auth.SessionStore) error
//
//     var _ auth.IdentityProvider = (*SAMLProvider)(nil)
//
//  2. Add a mode to config.ProviderMode and a case to idp.New
//
// # Adding a New Session Backend
//
// The twin session is stored through scs. Any scs.Store works:
//
//	var _ scs.Store = (*MyStore)(nil)
//
// then add a config.SessionStoreKind and a case in entrypoint.newSessionStore.
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// This pattern is used throughout the codebase. See checks.go for examples.
package interfaces
