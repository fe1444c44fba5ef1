// Package auth resolves who is calling and manages the session artifacts
// that prove it.
//
// Three mechanisms can authenticate a request, tried in a fixed order by
// Resolver.Resolve. The first one that yields a structurally valid user wins:
//
//   - local credential: the user_session record, read from the cookie first
//     and from the server-side twin (scs session) second
//   - admin bypass: the admin_session cookie written for a valid admin code
//   - identity provider: the provider's own session, mapped to a profile by ID
//
// # Configuration
//
//	AUTH_SESSION_SECRET=<hex>          # Signs session cookies when set
//	AUTH_SESSION_MAX_AGE=168h          # Cookie lifetime (7 days)
//	AUTH_SESSION_STORE=sqlite          # Twin backend: sqlite, redis or memory
//	AUTH_RESOLVE_TIMEOUT=10s           # Upper bound for one resolution
//	AUTH_ADMIN_CODES_FILE=codes.yaml   # Admin code table, built-in when empty
//	AUTH_ADMIN_CODES_ENABLED=true
//	IDP_MODE=none                      # none, oidc or token
//
// # Usage
//
//	stores := auth.NewStoreFactory(cookieOpts, sessionManager)
//	resolver := auth.NewResolver(establishmentRepo, identityRepo, provider, auth.ResolverConfigFromConfig(cfg))
//	mw := auth.NewMiddleware(resolver, stores, auditService)
//
//	api := router.Group("/api", mw.Require(auth.Options{}))
//	api.POST("/rooms", mw.RequireAnyRole(entities.RoleStaff, entities.RoleTeacher), createRoom)
//
// Extract the user in handlers:
//
//	user := auth.CurrentUser(c)
//
// RouteGate runs in front of everything and only checks cookie presence, so
// a forged cookie passes the gate and is rejected later by the Resolver.
package auth
