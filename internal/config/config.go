package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type SessionStoreKind string

const (
	SessionStoreSQLite SessionStoreKind = "sqlite" // scs sqlite3store on the main database
	SessionStoreRedis  SessionStoreKind = "redis"
	SessionStoreMemory SessionStoreKind = "memory" // Lost on restart, for local dev
)

type ProviderMode string

const (
	ProviderModeNone  ProviderMode = "none"  // Identity-provider sessions disabled (default)
	ProviderModeOIDC  ProviderMode = "oidc"  // External OpenID Connect provider
	ProviderModeToken ProviderMode = "token" // Locally signed provider tokens
)

type DatabaseDriver string

const (
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Auth
		Admin
		Provider
		Redis
		Audit
		Tasks
		Demo
		Metrics
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Driver DatabaseDriver
		Path   string // SQLite file path
		DSN    string // Postgres connection string
	}
	Auth struct {
		SessionSecret   string
		SessionMaxAge   time.Duration // Lifetime of user_session / admin_session cookies
		SessionStore    SessionStoreKind
		BcryptCost      int
		SecureCookies   bool // Set to false for local dev without HTTPS
		CSRFEnabled     bool
		ResolveTimeout  time.Duration // Upper bound for one session resolution
		LoginPath       string
		ForbiddenPath   string // Where a role mismatch lands by default
		ProtectedPrefix string

		// Rate limiting configuration
		MaxLoginAttempts int           // Max failed attempts before lockout (default: 5)
		RateLimitWindow  time.Duration // Time window for counting attempts (default: 15m)
		LockoutDuration  time.Duration // How long to lock out (default: 30m)
	}
	Admin struct {
		Enabled                 bool
		CodesFile               string // YAML/JSON file with an admin_codes list; built-in table when empty
		FallbackEstablishmentID string
		Codes                   []AdminCode
	}
	Provider struct {
		Mode         ProviderMode
		DiscoveryURL string
		ClientID     string
		ClientSecret string
		RedirectURL  string
		Scope        string
		TokenSecret  string // HMAC secret for ProviderModeToken
		TokenIssuer  string
		TokenTTL     time.Duration
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Audit struct {
		RetentionDays   int    // Days to keep audit events (default: 30)
		CleanupSchedule string // Cron format, "0 3 * * *" = daily at 03:00
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Demo struct {
		Enabled bool // Block writes outside authentication endpoints
	}
	Metrics struct {
		Enabled   bool
		Namespace string
	}
)

// AdminCode describes one admin bypass credential.
type AdminCode struct {
	Code              string `mapstructure:"code" json:"code"`
	Establishment     string `mapstructure:"establishment" json:"establishment"`
	EstablishmentCode string `mapstructure:"establishment_code" json:"establishment_code,omitempty"`
	Role              string `mapstructure:"role" json:"role"`
	Username          string `mapstructure:"username" json:"username"`
	DisplayName       string `mapstructure:"display_name" json:"displayName"`
}

var (
	ErrUnknownSessionStore = errors.New("unknown session store")
	ErrUnknownProviderMode = errors.New("unknown identity provider mode")
	ErrUnknownDriver       = errors.New("unknown database driver")
	ErrInvalidAdminCode    = errors.New("invalid admin code")
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8190)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)

	v.SetDefault("database_driver", "sqlite")
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("database_dsn", "")

	// Auth defaults
	v.SetDefault("auth_session_secret", "") // Auto-generated if empty
	v.SetDefault("auth_session_max_age", DefaultSessionMaxAge.String())
	v.SetDefault("auth_session_store", "sqlite")
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_secure_cookies", true)
	v.SetDefault("auth_csrf_enabled", true)
	v.SetDefault("auth_resolve_timeout", "10s")
	v.SetDefault("auth_login_path", "/auth/login")
	v.SetDefault("auth_forbidden_path", "/dashboard")
	v.SetDefault("auth_protected_prefix", "/dashboard")
	v.SetDefault("auth_max_login_attempts", 5)
	v.SetDefault("auth_rate_limit_window", "15m")
	v.SetDefault("auth_lockout_duration", "30m")

	// Admin bypass defaults
	v.SetDefault("auth_admin_codes_enabled", true)
	v.SetDefault("auth_admin_codes_file", "")
	v.SetDefault("auth_admin_fallback_establishment_id", DefaultFallbackEstablishmentID)

	// Identity provider defaults
	v.SetDefault("idp_mode", "none")
	v.SetDefault("idp_scope", "openid profile email")
	v.SetDefault("idp_token_issuer", "espace-classe")
	v.SetDefault("idp_token_ttl", "24h")

	v.SetDefault("redis_addr", "127.0.0.1:6379")
	v.SetDefault("redis_db", 0)

	v.SetDefault("audit_retention_days", 30)
	v.SetDefault("audit_cleanup_schedule", "0 3 * * *")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 1)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "5m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	v.SetDefault("demo_mode", false)
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("metrics_namespace", "espace_classe")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Driver: DatabaseDriver(v.GetString("DATABASE_DRIVER")),
			Path:   v.GetString("DATABASE_PATH"),
			DSN:    v.GetString("DATABASE_DSN"),
		},
		Auth: Auth{
			SessionSecret:    v.GetString("AUTH_SESSION_SECRET"),
			SessionMaxAge:    v.GetDuration("AUTH_SESSION_MAX_AGE"),
			SessionStore:     SessionStoreKind(v.GetString("AUTH_SESSION_STORE")),
			BcryptCost:       v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:    v.GetBool("AUTH_SECURE_COOKIES"),
			CSRFEnabled:      v.GetBool("AUTH_CSRF_ENABLED"),
			ResolveTimeout:   v.GetDuration("AUTH_RESOLVE_TIMEOUT"),
			LoginPath:        v.GetString("AUTH_LOGIN_PATH"),
			ForbiddenPath:    v.GetString("AUTH_FORBIDDEN_PATH"),
			ProtectedPrefix:  v.GetString("AUTH_PROTECTED_PREFIX"),
			MaxLoginAttempts: v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:  v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:  v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		Admin: Admin{
			Enabled:                 v.GetBool("AUTH_ADMIN_CODES_ENABLED"),
			CodesFile:               v.GetString("AUTH_ADMIN_CODES_FILE"),
			FallbackEstablishmentID: v.GetString("AUTH_ADMIN_FALLBACK_ESTABLISHMENT_ID"),
		},
		Provider: Provider{
			Mode:         ProviderMode(v.GetString("IDP_MODE")),
			DiscoveryURL: v.GetString("IDP_DISCOVERY_URL"),
			ClientID:     v.GetString("IDP_CLIENT_ID"),
			ClientSecret: v.GetString("IDP_CLIENT_SECRET"),
			RedirectURL:  v.GetString("IDP_REDIRECT_URL"),
			Scope:        v.GetString("IDP_SCOPE"),
			TokenSecret:  v.GetString("IDP_TOKEN_SECRET"),
			TokenIssuer:  v.GetString("IDP_TOKEN_ISSUER"),
			TokenTTL:     v.GetDuration("IDP_TOKEN_TTL"),
		},
		Redis: Redis{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Audit: Audit{
			RetentionDays:   v.GetInt("AUDIT_RETENTION_DAYS"),
			CleanupSchedule: v.GetString("AUDIT_CLEANUP_SCHEDULE"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Demo: Demo{
			Enabled: v.GetBool("DEMO_MODE"),
		},
		Metrics: Metrics{
			Enabled:   v.GetBool("METRICS_ENABLED"),
			Namespace: v.GetString("METRICS_NAMESPACE"),
		},
	}
}

// LoadAdminCodes reads the admin_codes list from a YAML or JSON file.
// An empty path yields the built-in table.
func LoadAdminCodes(path string) ([]AdminCode, error) {
	if path == "" {
		codes := make([]AdminCode, len(DefaultAdminCodes))
		copy(codes, DefaultAdminCodes)
		return codes, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read admin codes file %s: %w", path, err)
	}

	var codes []AdminCode
	if err := v.UnmarshalKey("admin_codes", &codes); err != nil {
		return nil, fmt.Errorf("failed to decode admin codes: %w", err)
	}
	if err := ValidateAdminCodes(codes); err != nil {
		return nil, err
	}
	return codes, nil
}

// ValidateAdminCodes checks that every code is non-empty, unique after
// normalization, and carries a known role.
func ValidateAdminCodes(codes []AdminCode) error {
	seen := make(map[string]bool, len(codes))
	for i, c := range codes {
		code := strings.ToLower(strings.TrimSpace(c.Code))
		if code == "" {
			return fmt.Errorf("%w: entry %d has an empty code", ErrInvalidAdminCode, i)
		}
		if seen[code] {
			return fmt.Errorf("%w: duplicate code %q", ErrInvalidAdminCode, code)
		}
		seen[code] = true

		switch c.Role {
		case "vie-scolaire", "professeur", "delegue":
		default:
			return fmt.Errorf("%w: code %q has unknown role %q", ErrInvalidAdminCode, code, c.Role)
		}
	}
	return nil
}

// Validate checks the settings that cannot be defaulted safely and loads the
// admin code table.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DatabaseDriverSQLite:
	case DatabaseDriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Database.Driver)
	}

	switch c.Auth.SessionStore {
	case SessionStoreSQLite, SessionStoreRedis, SessionStoreMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSessionStore, c.Auth.SessionStore)
	}
	if c.Auth.SessionStore == SessionStoreSQLite && c.Database.Driver != DatabaseDriverSQLite {
		return fmt.Errorf("session store %q requires the sqlite database driver", c.Auth.SessionStore)
	}

	switch c.Provider.Mode {
	case ProviderModeNone:
	case ProviderModeOIDC:
		if c.Provider.DiscoveryURL == "" || c.Provider.ClientID == "" || c.Provider.RedirectURL == "" {
			return fmt.Errorf("IDP_DISCOVERY_URL, IDP_CLIENT_ID and IDP_REDIRECT_URL are required in oidc mode")
		}
	case ProviderModeToken:
		if c.Provider.TokenSecret == "" {
			return fmt.Errorf("IDP_TOKEN_SECRET is required in token mode")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProviderMode, c.Provider.Mode)
	}

	if c.Admin.Enabled {
		codes, err := LoadAdminCodes(c.Admin.CodesFile)
		if err != nil {
			return err
		}
		c.Admin.Codes = codes
	}

	return nil
}
