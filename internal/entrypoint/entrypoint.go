package entrypoint

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mrlokans/espace-classe/internal/audit"
	"github.com/mrlokans/espace-classe/internal/auth"
	"github.com/mrlokans/espace-classe/internal/config"
	"github.com/mrlokans/espace-classe/internal/database"
	auditRepo "github.com/mrlokans/espace-classe/internal/database/audit"
	"github.com/mrlokans/espace-classe/internal/database/establishments"
	"github.com/mrlokans/espace-classe/internal/database/identities"
	"github.com/mrlokans/espace-classe/internal/database/rooms"
	"github.com/mrlokans/espace-classe/internal/demo"
	http_controllers "github.com/mrlokans/espace-classe/internal/http"
	"github.com/mrlokans/espace-classe/internal/idp"
	"github.com/mrlokans/espace-classe/internal/scheduler"
	"github.com/mrlokans/espace-classe/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// kill -2 is SIGINT, plain kill sends SIGTERM. SIGKILL cannot be caught.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop taking requests first so background work drains last
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server Shutdown: %v", err)
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting espace-classe v%s", version)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	healthChecks := map[string]http_controllers.Pinger{"database": db}

	var redisClient *redis.Client
	if cfg.Auth.SessionStore == config.SessionStoreRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		healthChecks["redis"] = http_controllers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	sessionStore, err := newSessionStore(cfg, db, redisClient)
	if err != nil {
		log.Fatalf("Failed to initialize session store: %v", err)
	}
	sessionManager := auth.NewSessionManager(sessionStore, cfg.Auth)
	log.Printf("[AUTH] Session store: %s", cfg.Auth.SessionStore)

	var metrics *auth.Metrics
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = auth.NewMetrics(registry, cfg.Metrics.Namespace)
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	provider, err := idp.New(context.Background(), cfg.Provider)
	if err != nil {
		log.Fatalf("Failed to initialize identity provider: %v", err)
	}
	log.Printf("[AUTH] Identity provider mode: %s", cfg.Provider.Mode)

	var adminCodes *auth.AdminCodes
	if cfg.Admin.Enabled {
		adminCodes = auth.NewAdminCodes(cfg.Admin.Codes)
		log.Printf("[AUTH] Admin bypass enabled with %d codes", adminCodes.Len())
	}

	if cfg.Demo.Enabled {
		log.Printf("Demo mode enabled - write operations will be blocked")
		if _, err := demo.Seed(context.Background(), db.DB, cfg.Auth.BcryptCost); err != nil {
			log.Fatalf("Failed to seed demo data: %v", err)
		}
	}

	estRepo := establishments.NewRepository(db.DB)
	idRepo := identities.NewRepository(db.DB)
	auditService := audit.NewService(auditRepo.NewRepository(db.DB))

	stores := auth.NewStoreFactory(auth.CookieOptions{
		Secure: cfg.Auth.SecureCookies,
		Codec:  auth.NewCookieCodec(cfg.Auth.SessionSecret),
	}, sessionManager)
	resolver := auth.NewResolver(estRepo, idRepo, provider, auth.ResolverConfigFromConfig(cfg)).WithMetrics(metrics)
	authService := auth.NewService(estRepo, idRepo, auth.ServiceConfig{
		AdminCodes: adminCodes,
		Provider:   provider,
		MaxAge:     cfg.Auth.SessionMaxAge,
		Metrics:    metrics,
	})
	authController := auth.NewAuthController(authService, resolver, stores, auth.AuthControllerConfig{
		RateLimit: auth.RateLimitConfig{
			MaxAttempts:     cfg.Auth.MaxLoginAttempts,
			WindowDuration:  cfg.Auth.RateLimitWindow,
			LockoutDuration: cfg.Auth.LockoutDuration,
		},
		Events:        auditService,
		SecureCookies: cfg.Auth.SecureCookies,
	})

	var csrfSecret []byte
	if cfg.Auth.CSRFEnabled {
		csrfSecret, err = resolveCSRFSecret(cfg.Auth.SessionSecret)
		if err != nil {
			log.Fatalf("Failed to generate CSRF secret: %v", err)
		}
	}

	routerCfg := http_controllers.RouterConfig{
		AuthController: authController,
		AuthMiddleware: auth.NewMiddleware(resolver, stores, auditService),
		RouteGate:      auth.NewRouteGate(cfg.Auth),
		SessionManager: sessionManager,
		CSRFSecret:     csrfSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
		HSTS:           cfg.Auth.SecureCookies,
		RoomStore:      rooms.NewRepository(db.DB),
		RoomEvents:     auditService,
		AuditReader:    auditService,
		DemoMiddleware: demo.NewMiddleware(cfg.Demo.Enabled),
		HealthChecks:   healthChecks,
		MetricsHandler: metricsHandler,
		Version:        version,
	}

	// Audit retention runs on the task queue, enqueued by the scheduler
	var taskClient *tasks.Client
	var cleanupScheduler *scheduler.AuditCleanupScheduler
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.FromAppConfig(cfg.Tasks))
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(tasks.NewCleanupAuditEventsQueue(auditService))

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)

		cleanupScheduler = scheduler.NewAuditCleanupScheduler(taskClient, cfg.Audit.CleanupSchedule, cfg.Audit.RetentionDays)
		if err := cleanupScheduler.Start(taskCtx); err != nil {
			log.Fatalf("Failed to start audit cleanup scheduler: %v", err)
		}

		routerCfg.TaskClient = taskClient
		routerCfg.AuditCleanup = cleanupScheduler
		healthChecks["tasks"] = taskClient
	} else {
		log.Printf("Task queue disabled - audit retention cleanup will not run")
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		authController.Stop()
		if cleanupScheduler != nil {
			cleanupScheduler.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
		auditService.Wait()
	}

	Serve(router, cfg, onShutdown)
}

// newSessionStore builds the scs store backing the twin session. redisClient
// is only used for the redis store kind.
func newSessionStore(cfg *config.Config, db *database.Database, redisClient *redis.Client) (scs.Store, error) {
	switch cfg.Auth.SessionStore {
	case config.SessionStoreSQLite:
		sqlDB, err := db.DB.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get SQL DB for sessions: %w", err)
		}
		return auth.NewSQLiteSessionStore(sqlDB)
	case config.SessionStoreRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis session store requires a redis client")
		}
		return auth.NewRedisStore(redisClient), nil
	case config.SessionStoreMemory:
		log.Printf("[AUTH] WARNING: memory session store, sessions are lost on restart")
		return auth.NewMemorySessionStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownSessionStore, cfg.Auth.SessionStore)
	}
}

// resolveCSRFSecret decodes a hex session secret, falls back to its raw bytes,
// and generates a process-local secret when none is configured.
func resolveCSRFSecret(sessionSecret string) ([]byte, error) {
	if sessionSecret != "" {
		if secret, err := hex.DecodeString(sessionSecret); err == nil {
			return secret, nil
		}
		return []byte(sessionSecret), nil
	}

	secret, err := auth.GenerateSessionSecret()
	if err != nil {
		return nil, err
	}
	log.Printf("[AUTH] Generated CSRF secret (set AUTH_SESSION_SECRET to persist)")
	return hex.DecodeString(secret)
}
