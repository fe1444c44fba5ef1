package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/espace-classe/internal/entities"
)

// DefaultLandingPath is where a successful login lands without a redirect.
const DefaultLandingPath = "/dashboard"

const (
	providerStateCookie = "idp_state"
	providerNonceCookie = "idp_nonce"
)

// isLocalPath validates that a redirect path is local to prevent open redirect attacks.
func isLocalPath(path string) bool {
	if path == "" {
		return false
	}

	// Must start with /
	if !strings.HasPrefix(path, "/") {
		return false
	}

	// Reject protocol-relative URLs (//evil.com)
	if strings.HasPrefix(path, "//") {
		return false
	}

	// Reject URLs with schemes
	if strings.Contains(path, "://") {
		return false
	}

	// Reject paths with backslashes (potential bypass attempts)
	if strings.Contains(path, "\\") {
		return false
	}

	return true
}

// sanitizeRedirectPath returns path when it is local, fallback otherwise.
func sanitizeRedirectPath(path, fallback string) string {
	if isLocalPath(path) {
		return path
	}
	return fallback
}

// LoginRequest is the local-credential login payload, accepted as JSON or form fields.
type LoginRequest struct {
	EstablishmentCode string `json:"establishment_code" form:"establishment_code"`
	Role              string `json:"role" form:"role"`
	Username          string `json:"username" form:"username"`
	Password          string `json:"password" form:"password"`
	Redirect          string `json:"redirect" form:"redirect"`
}

type AdminLoginRequest struct {
	Code     string `json:"code" form:"code"`
	Redirect string `json:"redirect" form:"redirect"`
}

// AuthController handles authentication-related HTTP endpoints.
type AuthController struct {
	service     *Service
	resolver    *Resolver
	stores      *StoreFactory
	rateLimiter *RateLimiter
	events      EventRecorder
	secure      bool
}

// AuthControllerConfig groups the optional parts of an AuthController.
type AuthControllerConfig struct {
	RateLimit     RateLimitConfig
	Events        EventRecorder
	SecureCookies bool
}

// NewAuthController creates a new authentication controller.
func NewAuthController(service *Service, resolver *Resolver, stores *StoreFactory, cfg AuthControllerConfig) *AuthController {
	return &AuthController{
		service:     service,
		resolver:    resolver,
		stores:      stores,
		rateLimiter: NewRateLimiter(cfg.RateLimit),
		events:      cfg.Events,
		secure:      cfg.SecureCookies,
	}
}

// RegisterRoutes registers authentication routes on the router.
func (ac *AuthController) RegisterRoutes(router gin.IRouter) {
	router.POST("/auth/login", ac.Login)
	router.POST("/auth/admin", ac.AdminLogin)
	router.GET("/auth/provider/login", ac.ProviderLogin)
	router.GET("/auth/provider/callback", ac.ProviderCallback)
	router.POST("/auth/logout", ac.Logout)
	router.GET("/auth/logout", ac.Logout) // Support GET for simple logout links
	router.POST("/auth/logout/local", ac.LogoutLocal)
	router.GET("/auth/csrf", ac.CSRFToken)
	router.GET("/api/session", ac.Session)
}

// Stop cleans up resources (rate limiter background goroutine).
func (ac *AuthController) Stop() {
	if ac.rateLimiter != nil {
		ac.rateLimiter.Stop()
	}
}

// Login handles a local-credential login.
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid login request"})
		return
	}
	clientIP := c.ClientIP()
	creds := Credentials{
		EstablishmentCode: req.EstablishmentCode,
		Role:              req.Role,
		Username:          req.Username,
		Password:          req.Password,
	}
	rateKey := NewLoginKey(clientIP, creds)

	allowed, retryAfter := ac.rateLimiter.Allow(rateKey)
	if !allowed {
		c.Header("Retry-After", retryAfter.String())
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "too many login attempts",
			"retry_after": retryAfter.String(),
		})
		return
	}

	record, err := ac.service.Authenticate(c.Request.Context(), creds)
	if err != nil {
		if ac.events != nil {
			ac.events.LoginFailed(c.Request.Context(), AuthTypeLocal, req.Username, req.EstablishmentCode, clientIP, c.Request.UserAgent(), err)
		}
		switch {
		case errors.Is(err, ErrBackendUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "configuration error, contact your administrator"})
		case errors.Is(err, ErrInvalidRole):
			ac.rateLimiter.RecordFailure(rateKey)
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidRole.Error()})
		default:
			ac.rateLimiter.RecordFailure(rateKey)
			c.JSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidCredentials.Error()})
		}
		return
	}

	ac.rateLimiter.RecordSuccess(rateKey)

	stores := ac.stores.For(c)
	if err := ac.service.StartLocalSession(c.Request.Context(), stores, record); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	if ac.events != nil {
		ac.events.LoginSucceeded(c.Request.Context(), record.user(), clientIP, c.Request.UserAgent())
	}

	ac.respondSignedIn(c, gin.H{"user": record.user()}, req.Redirect)
}

// AdminLogin handles an admin-code login.
func (ac *AuthController) AdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBind(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "admin code is required"})
		return
	}

	cred, err := ac.service.AdminLogin(c.Request.Context(), ac.stores.For(c), req.Code)
	if err != nil {
		if ac.events != nil {
			ac.events.LoginFailed(c.Request.Context(), AuthTypeAdmin, "", "", c.ClientIP(), c.Request.UserAgent(), err)
		}
		if errors.Is(err, ErrInvalidAdminCode) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidAdminCode.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	if ac.events != nil {
		ac.events.LoginSucceeded(c.Request.Context(), &AuthUser{
			ID:       "admin-" + cred.Code,
			Role:     entities.RoleStaff,
			AuthType: AuthTypeAdmin,
			Username: cred.Code,
		}, c.ClientIP(), c.Request.UserAgent())
	}

	ac.respondSignedIn(c, gin.H{"admin": cred}, req.Redirect)
}

// ProviderLogin starts an identity-provider login. Token providers sign in
// directly from the token query parameter; redirect providers are sent to
// their authorization endpoint.
func (ac *AuthController) ProviderLogin(c *gin.Context) {
	provider := ac.resolver.Provider()
	if provider == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "identity provider not configured"})
		return
	}

	if tl, ok := provider.(TokenLogin); ok && c.Query("token") != "" {
		stores := ac.stores.For(c)
		if _, err := tl.SignIn(c.Request.Context(), c.Query("token"), stores.Cookies); err != nil {
			if ac.events != nil {
				ac.events.LoginFailed(c.Request.Context(), AuthTypeProvider, "", "", c.ClientIP(), c.Request.UserAgent(), err)
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid provider token"})
			return
		}
		ac.finishProviderLogin(c, stores, c.Query("redirect"))
		return
	}

	rl, ok := provider.(RedirectLogin)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token parameter is required"})
		return
	}

	state, err := GenerateSessionSecret()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start login"})
		return
	}
	nonce, err := GenerateSessionSecret()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start login"})
		return
	}
	cookies := ac.stores.For(c).Cookies
	for name, value := range map[string]string{providerStateCookie: state, providerNonceCookie: nonce} {
		if err := cookies.Write(c.Request.Context(), name, value, 10*time.Minute); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start login"})
			return
		}
	}
	c.Redirect(http.StatusFound, rl.AuthCodeURL(state, nonce))
}

// ProviderCallback completes an authorization-code login.
func (ac *AuthController) ProviderCallback(c *gin.Context) {
	rl, ok := ac.resolver.Provider().(RedirectLogin)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "identity provider not configured"})
		return
	}

	stores := ac.stores.For(c)
	ctx := c.Request.Context()
	expected, found, err := stores.Cookies.Read(ctx, providerStateCookie)
	_ = stores.Cookies.Clear(ctx, providerStateCookie)
	nonce, _, nonceErr := stores.Cookies.Read(ctx, providerNonceCookie)
	_ = stores.Cookies.Clear(ctx, providerNonceCookie)
	if err != nil || !found || expected == "" || c.Query("state") != expected {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid login state"})
		return
	}
	if nonceErr != nil || nonce == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid login state"})
		return
	}
	if c.Query("code") == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code is required"})
		return
	}

	if _, err := rl.Exchange(ctx, c.Query("code"), nonce, stores.Cookies); err != nil {
		if ac.events != nil {
			ac.events.LoginFailed(ctx, AuthTypeProvider, "", "", c.ClientIP(), c.Request.UserAgent(), err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "identity provider login failed"})
		return
	}
	ac.finishProviderLogin(c, stores, "")
}

func (ac *AuthController) finishProviderLogin(c *gin.Context, stores Stores, redirect string) {
	result := ac.resolver.Resolve(c.Request.Context(), stores, Options{})
	if result.Status != StatusAuthenticated {
		// Signed in at the provider but no usable profile here.
		c.JSON(http.StatusForbidden, gin.H{"error": "no profile is linked to this account"})
		return
	}
	if ac.events != nil {
		ac.events.LoginSucceeded(c.Request.Context(), result.User, c.ClientIP(), c.Request.UserAgent())
	}
	c.Redirect(http.StatusFound, sanitizeRedirectPath(redirect, DefaultLandingPath))
}

// Logout ends every session mechanism.
func (ac *AuthController) Logout(c *gin.Context) {
	stores := ac.stores.For(c)
	ctx := c.Request.Context()
	before := ac.resolver.Resolve(ctx, stores, Options{})

	if err := ac.service.Logout(ctx, stores); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout incomplete"})
		return
	}
	if ac.events != nil && before.User != nil {
		ac.events.LoggedOut(ctx, before.User, c.ClientIP(), c.Request.UserAgent())
	}

	if isAPIRequest(c) {
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
		return
	}
	c.Redirect(http.StatusFound, ac.resolver.cfg.LoginPath)
}

// LogoutLocal clears the local-credential session only.
func (ac *AuthController) LogoutLocal(c *gin.Context) {
	if err := ac.service.ClearLocalSession(c.Request.Context(), ac.stores.For(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout incomplete"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "local session cleared"})
}

// CSRFToken exposes the CSRF token to JSON clients.
func (ac *AuthController) CSRFToken(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"csrf_token": GetCSRFToken(c)})
}

// Session resolves the current user. Query parameters require_role and
// redirect map to Options.
func (ac *AuthController) Session(c *gin.Context) {
	opts := Options{
		RequireRole: entities.Role(c.Query("require_role")),
		RedirectTo:  sanitizeRedirectPath(c.Query("redirect"), ""),
	}
	if opts.RequireRole != "" && !opts.RequireRole.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidRole.Error()})
		return
	}

	result := ac.resolver.Resolve(c.Request.Context(), ac.stores.For(c), opts)
	status := http.StatusOK
	switch result.Status {
	case StatusUnauthenticated:
		status = http.StatusUnauthorized
	case StatusForbidden:
		status = http.StatusForbidden
	}
	c.JSON(status, result)
}

func (ac *AuthController) respondSignedIn(c *gin.Context, body gin.H, redirect string) {
	target := sanitizeRedirectPath(redirect, DefaultLandingPath)
	if isAPIRequest(c) {
		body["redirect_to"] = target
		c.JSON(http.StatusOK, body)
		return
	}
	c.Redirect(http.StatusFound, target)
}
