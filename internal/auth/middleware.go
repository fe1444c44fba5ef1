package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/espace-classe/internal/config"
	"github.com/mrlokans/espace-classe/internal/entities"
)

// Context keys for request data
const (
	ContextKeyUser   = "auth_user"
	ContextKeyStores = "auth_stores"
)

// EventRecorder receives authentication events for the audit trail.
type EventRecorder interface {
	LoginSucceeded(ctx context.Context, user *AuthUser, ip, userAgent string)
	LoginFailed(ctx context.Context, authType AuthType, username, establishmentCode, ip, userAgent string, err error)
	LoggedOut(ctx context.Context, user *AuthUser, ip, userAgent string)
	Forbidden(ctx context.Context, path string, required []entities.Role, user *AuthUser, ip, userAgent string)
}

// StoreFactory builds the session locations of a request.
type StoreFactory struct {
	cookies  CookieOptions
	sessions *SessionManager
}

// NewStoreFactory creates a factory. sessions may be nil, in which case the
// local twin is unavailable and only cookies are used.
func NewStoreFactory(cookies CookieOptions, sessions *SessionManager) *StoreFactory {
	return &StoreFactory{cookies: cookies, sessions: sessions}
}

// For returns the Stores of the request, creating them once per request.
func (f *StoreFactory) For(c *gin.Context) Stores {
	if v, ok := c.Get(ContextKeyStores); ok {
		if stores, ok := v.(Stores); ok {
			return stores
		}
	}
	stores := Stores{Cookies: NewCookieStore(c, f.cookies)}
	if f.sessions != nil {
		stores.Local = NewLocalStore(f.sessions)
	}
	c.Set(ContextKeyStores, stores)
	return stores
}

// RouteGate is the edge interceptor. It only checks for the presence of a
// session cookie; validation happens in the Resolver.
type RouteGate struct {
	publicPaths     map[string]bool
	publicPrefixes  []string
	protectedPrefix string
	loginPath       string
}

func NewRouteGate(cfg config.Auth) *RouteGate {
	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = "/auth/login"
	}
	protected := cfg.ProtectedPrefix
	if protected == "" {
		protected = "/dashboard"
	}

	return &RouteGate{
		publicPaths: map[string]bool{
			"/":              true,
			"/auth/login":    true,
			"/auth/register": true,
		},
		publicPrefixes: []string{
			"/auth/",
			"/partage/", // Share links
			"/share/",
		},
		protectedPrefix: protected,
		loginPath:       loginPath,
	}
}

// isBypassed reports whether a path skips the gate entirely.
func (g *RouteGate) isBypassed(path string) bool {
	if g.publicPaths[path] {
		return true
	}
	for _, prefix := range g.publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Redirect returns the login redirect for a request, or "" when it may pass.
func (g *RouteGate) Redirect(path string, authenticated bool) string {
	if g.isBypassed(path) || authenticated {
		return ""
	}
	if !strings.HasPrefix(path, g.protectedPrefix) {
		return ""
	}
	return g.loginPath + "?redirect=" + url.QueryEscape(path)
}

// Handler returns the gin middleware.
func (g *RouteGate) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if target := g.Redirect(c.Request.URL.Path, hasSessionCookie(c.Request)); target != "" {
			c.Redirect(http.StatusFound, target)
			c.Abort()
			return
		}
		c.Next()
	}
}

// hasSessionCookie reports whether the local or admin session cookie is set.
func hasSessionCookie(r *http.Request) bool {
	for _, name := range []string{UnifiedSessionKey, AdminSessionKey} {
		if cookie, err := r.Cookie(name); err == nil && cookie.Value != "" {
			return true
		}
	}
	return false
}

// Middleware resolves the current user for protected routes.
type Middleware struct {
	resolver *Resolver
	stores   *StoreFactory
	events   EventRecorder
}

func NewMiddleware(resolver *Resolver, stores *StoreFactory, events EventRecorder) *Middleware {
	return &Middleware{resolver: resolver, stores: stores, events: events}
}

// Require resolves the session and stops the request unless it is authenticated
// (and carries opts.RequireRole when set).
func (m *Middleware) Require(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := m.resolver.Resolve(c.Request.Context(), m.stores.For(c), opts)
		switch result.Status {
		case StatusAuthenticated:
			SetUser(c, result.User)
			c.Next()
		case StatusForbidden:
			if m.events != nil {
				m.events.Forbidden(c.Request.Context(), c.Request.URL.Path, []entities.Role{opts.RequireRole}, result.denied, c.ClientIP(), c.Request.UserAgent())
			}
			m.deny(c, http.StatusForbidden, "insufficient permissions", result.RedirectTo)
		default:
			target := result.RedirectTo
			if opts.RedirectTo == "" {
				target += "?redirect=" + url.QueryEscape(c.Request.URL.RequestURI())
			}
			m.deny(c, http.StatusUnauthorized, "authentication required", target)
		}
	}
}

// RequireAnyRole must run after Require. It answers 403 unless the user has one of roles.
func (m *Middleware) RequireAnyRole(roles ...entities.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user.HasRole(roles...) {
			c.Next()
			return
		}
		if m.events != nil {
			m.events.Forbidden(c.Request.Context(), c.Request.URL.Path, roles, user, c.ClientIP(), c.Request.UserAgent())
		}
		m.deny(c, http.StatusForbidden, "insufficient permissions", m.resolver.cfg.ForbiddenPath)
	}
}

func (m *Middleware) deny(c *gin.Context, status int, message, redirect string) {
	if isAPIRequest(c) {
		c.AbortWithStatusJSON(status, gin.H{
			"error":       message,
			"redirect_to": redirect,
		})
		return
	}
	c.Redirect(http.StatusFound, redirect)
	c.Abort()
}

// isAPIRequest determines if this is an API request vs web browser request.
func isAPIRequest(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		return true
	}
	return strings.Contains(c.GetHeader("Content-Type"), "application/json")
}

// SetUser stores the resolved user in the Gin context.
func SetUser(c *gin.Context, user *AuthUser) {
	c.Set(ContextKeyUser, user)
}

// CurrentUser retrieves the resolved user from the context, or nil.
func CurrentUser(c *gin.Context) *AuthUser {
	if v, exists := c.Get(ContextKeyUser); exists {
		if user, ok := v.(*AuthUser); ok {
			return user
		}
	}
	return nil
}
