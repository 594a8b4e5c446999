package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database driver constants
const (
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
)

// Rate limit store constants
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// Metrics cache type constants
const (
	MetricsCacheTypeMemory = "memory"
	MetricsCacheTypeRedis  = "redis"
)

type Config struct {
	// Server settings
	ServerAddr   string
	BaseURL      string
	FrontendURL  string // Allowed CORS origin and post-OAuth redirect target
	IsProduction bool

	// JWT settings
	JWTSecret              string
	JWTRefreshSecret       string        // Defaults to JWTSecret
	AccessTokenExpiration  time.Duration // default: 5m
	RefreshTokenExpiration time.Duration // default: 168h (7 days)
	RefreshCookieName      string

	// Password login behaviour
	HidePasswordNotSet bool // Report OAuth-only accounts as invalid credentials

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string
	DBInitTimeout  time.Duration

	// Session (OAuth state only)
	SessionSecret string
	SessionMaxAge int // seconds

	// Google OAuth
	GoogleOAuthEnabled      bool
	GoogleClientID          string
	GoogleClientSecret      string
	GoogleRedirectURL       string
	GoogleOAuthScopes       []string
	OAuthTimeout            time.Duration
	OAuthInsecureSkipVerify bool

	// Rate limiting
	EnableRateLimit          bool
	RateLimitStore           string // "memory" or "redis"
	RateLimitCleanupInterval time.Duration
	LoginRateLimit           int // requests per minute
	RegisterRateLimit        int
	RefreshRateLimit         int
	GoogleLoginRateLimit     int

	// Redis
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisConnTimeout time.Duration

	// Metrics
	MetricsEnabled             bool
	MetricsToken               string
	MetricsGaugeUpdateEnabled  bool
	MetricsGaugeUpdateInterval time.Duration
	MetricsCacheType           string // "memory" or "redis"
	CacheInitTimeout           time.Duration

	// Audit
	EnableAuditLogging bool
	AuditLogBufferSize int
	AuditLogRetention  time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	driver := getEnv("DATABASE_DRIVER", DatabaseDriverSQLite)
	var dsn string
	if driver == DatabaseDriverSQLite {
		dsn = getEnv("DATABASE_DSN", "cockpit.db")
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	isProduction := getEnv("ENVIRONMENT", "development") == "production"

	defaultLogFormat := "console"
	if isProduction {
		defaultLogFormat = "json"
	}

	return &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":3333"),
		BaseURL:      getEnv("BASE_URL", "http://localhost:3333"),
		FrontendURL:  getEnv("FRONTEND_URL", "http://localhost:3000"),
		IsProduction: isProduction,

		JWTSecret:              jwtSecret,
		JWTRefreshSecret:       getEnv("JWT_REFRESH_SECRET", jwtSecret),
		AccessTokenExpiration:  getEnvDuration("ACCESS_TOKEN_EXPIRATION", 5*time.Minute),
		RefreshTokenExpiration: getEnvDuration("REFRESH_TOKEN_EXPIRATION", 7*24*time.Hour),
		RefreshCookieName:      getEnv("REFRESH_COOKIE_NAME", "refresh_token"),

		HidePasswordNotSet: getEnvBool("HIDE_PASSWORD_NOT_SET", false),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,
		DBInitTimeout:  getEnvDuration("DB_INIT_TIMEOUT", 30*time.Second),

		SessionSecret: getEnv("SESSION_SECRET", "session-secret-change-in-production"),
		SessionMaxAge: getEnvInt("SESSION_MAX_AGE", 600),

		GoogleOAuthEnabled: getEnvBool("GOOGLE_OAUTH_ENABLED", false),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		GoogleOAuthScopes: getEnvSlice(
			"GOOGLE_SCOPES",
			[]string{"openid", "email", "profile"},
		),
		OAuthTimeout:            getEnvDuration("OAUTH_TIMEOUT", 15*time.Second),
		OAuthInsecureSkipVerify: getEnvBool("OAUTH_INSECURE_SKIP_VERIFY", false),

		EnableRateLimit:          getEnvBool("ENABLE_RATE_LIMIT", true),
		RateLimitStore:           getEnv("RATE_LIMIT_STORE", RateLimitStoreMemory),
		RateLimitCleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		LoginRateLimit:           getEnvInt("LOGIN_RATE_LIMIT", 10),
		RegisterRateLimit:        getEnvInt("REGISTER_RATE_LIMIT", 5),
		RefreshRateLimit:         getEnvInt("REFRESH_RATE_LIMIT", 30),
		GoogleLoginRateLimit:     getEnvInt("GOOGLE_LOGIN_RATE_LIMIT", 10),

		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RedisConnTimeout: getEnvDuration("REDIS_CONN_TIMEOUT", 5*time.Second),

		MetricsEnabled:             getEnvBool("METRICS_ENABLED", false),
		MetricsToken:               getEnv("METRICS_TOKEN", ""),
		MetricsGaugeUpdateEnabled:  getEnvBool("METRICS_GAUGE_UPDATE_ENABLED", true),
		MetricsGaugeUpdateInterval: getEnvDuration("METRICS_GAUGE_UPDATE_INTERVAL", 5*time.Minute),
		MetricsCacheType:           getEnv("METRICS_CACHE_TYPE", MetricsCacheTypeMemory),
		CacheInitTimeout:           getEnvDuration("CACHE_INIT_TIMEOUT", 5*time.Second),

		EnableAuditLogging: getEnvBool("ENABLE_AUDIT_LOGGING", true),
		AuditLogBufferSize: getEnvInt("AUDIT_LOG_BUFFER_SIZE", 1000),
		AuditLogRetention:  getEnvDuration("AUDIT_LOG_RETENTION", 90*24*time.Hour),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", defaultLogFormat),
	}
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	switch c.DatabaseDriver {
	case DatabaseDriverSQLite, DatabaseDriverPostgres:
	default:
		return fmt.Errorf(
			"invalid DATABASE_DRIVER value: %q (must be %q or %q)",
			c.DatabaseDriver, DatabaseDriverSQLite, DatabaseDriverPostgres,
		)
	}

	if c.AccessTokenExpiration <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRATION must be positive")
	}
	if c.RefreshTokenExpiration <= 0 {
		return errors.New("REFRESH_TOKEN_EXPIRATION must be positive")
	}

	if c.RateLimitStore != RateLimitStoreMemory && c.RateLimitStore != RateLimitStoreRedis {
		return fmt.Errorf(
			"invalid RATE_LIMIT_STORE value: %q (must be %q or %q)",
			c.RateLimitStore, RateLimitStoreMemory, RateLimitStoreRedis,
		)
	}

	if c.MetricsCacheType != MetricsCacheTypeMemory && c.MetricsCacheType != MetricsCacheTypeRedis {
		return fmt.Errorf(
			"invalid METRICS_CACHE_TYPE value: %q (must be %q or %q)",
			c.MetricsCacheType, MetricsCacheTypeMemory, MetricsCacheTypeRedis,
		)
	}

	if c.GoogleOAuthEnabled && c.GoogleClientID == "" {
		return errors.New("GOOGLE_CLIENT_ID is required when GOOGLE_OAUTH_ENABLED=true")
	}

	return nil
}

// RefreshSecret returns the secret used to sign refresh tokens
func (c *Config) RefreshSecret() string {
	if c.JWTRefreshSecret != "" {
		return c.JWTRefreshSecret
	}
	return c.JWTSecret
}

// GoogleRedirectFlowEnabled reports whether the authorization code flow can be offered
// in addition to direct ID token sign-in.
func (c *Config) GoogleRedirectFlowEnabled() bool {
	return c.GoogleOAuthEnabled && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var parts []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}
