package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/espace-classe/internal/auth"
	"github.com/mrlokans/espace-classe/internal/entities"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.HSTS {
		router.Use(auth.StrictTransportSecurityMiddleware())
	}

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies))
	}

	// Session runs after CSRF so session context isn't overwritten by CSRF's request replacement
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	if cfg.RouteGate != nil {
		router.Use(cfg.RouteGate.Handler())
	}

	if cfg.DemoMiddleware != nil && cfg.DemoMiddleware.IsEnabled() {
		router.Use(cfg.DemoMiddleware.InjectContext())
		router.Use(cfg.DemoMiddleware.Handler())
	}

	health := NewHealthController(cfg.HealthChecks, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", health.Ping)
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	demoController := NewDemoController(cfg.DemoMiddleware)
	router.GET("/api/demo/status", demoController.GetStatus)

	if cfg.AuthController != nil {
		cfg.AuthController.RegisterRoutes(router)
	}

	if cfg.AuthMiddleware == nil {
		return router
	}
	mw := cfg.AuthMiddleware
	authenticated := mw.Require(auth.Options{})
	mutators := mw.RequireAnyRole(entities.RoleStaff, entities.RoleTeacher)

	// Dashboard landings, one per role
	router.GET("/dashboard", authenticated, dashboard)
	router.GET("/dashboard/vie-scolaire", mw.Require(auth.Options{RequireRole: entities.RoleStaff}), dashboard)
	router.GET("/dashboard/professeur", mw.Require(auth.Options{RequireRole: entities.RoleTeacher}), dashboard)
	router.GET("/dashboard/delegue", mw.Require(auth.Options{RequireRole: entities.RoleDelegate}), dashboard)

	if cfg.RoomStore != nil {
		rooms := NewRoomsController(cfg.RoomStore, cfg.RoomEvents)
		api := router.Group("/api/rooms", authenticated)
		api.GET("", rooms.List)
		api.GET("/:id", rooms.Get)
		api.POST("", mutators, rooms.Create)
		api.PUT("/:id", mutators, rooms.Update)
		api.DELETE("", mutators, rooms.Delete)
		api.POST("/:id/duplicate", mutators, rooms.Duplicate)
	}

	if cfg.AuditReader != nil {
		auditController := NewAuditController(cfg.AuditReader, cfg.AuditCleanup)
		staff := router.Group("/api/audit", authenticated, mw.RequireAnyRole(entities.RoleStaff))
		staff.GET("", auditController.GetAuditEvents)
		staff.POST("/cleanup", auditController.RunCleanup)
	}

	if cfg.TaskClient != nil {
		tasksController := NewTasksController(cfg.TaskClient)
		router.GET("/api/tasks/:id", authenticated, mw.RequireAnyRole(entities.RoleStaff), tasksController.GetTaskStatus)
	}

	return router
}

// dashboard answers with the resolved user. The pages themselves are served
// by the front end.
func dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": auth.CurrentUser(c)})
}
