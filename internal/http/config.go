package http

import (
	"net/http"

	"github.com/mrlokans/espace-classe/internal/auth"
	"github.com/mrlokans/espace-classe/internal/demo"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router. Nil parts are left out of the router.
type RouterConfig struct {
	// Authentication
	AuthController *auth.AuthController
	AuthMiddleware *auth.Middleware
	RouteGate      *auth.RouteGate
	SessionManager *auth.SessionManager

	// Security
	CSRFSecret    []byte // CSRF protection is enabled when set
	SecureCookies bool
	HSTS          bool

	// Tenant data
	RoomStore   RoomStore
	RoomEvents  RoomEvents
	AuditReader AuditReader

	// Background work (optional)
	AuditCleanup AuditCleanupRunner
	TaskClient   TaskStatuser

	DemoMiddleware *demo.Middleware

	// Observability
	HealthChecks   map[string]Pinger
	MetricsHandler http.Handler
	Version        string
}
