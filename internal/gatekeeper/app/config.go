package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/lockout"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/joho/godotenv"
)

// Storage drivers accepted by AUTH_DATABASE_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Issuer string // Issuer claim for session tokens (default: gatekeeper)

	DatabaseDriver string // sqlite, postgres or memory (default: sqlite)
	DatabaseFile   string // SQLite database file (default: ./gatekeeper.db)
	DatabaseURL    string // PostgreSQL connection URL, required for the postgres driver

	PepperFile      string // File holding the password pepper, created if missing (default: ./pepper)
	TokenSecret     string // HS256 secret; when empty it is read from TokenSecretFile
	TokenSecretFile string // File holding the HS256 secret, created if missing (default: ./token.secret)

	SessionTTL        time.Duration // Token lifetime (default: 24h)
	RememberTTL       time.Duration // Token lifetime with rememberMe (default: 7 days)
	MaxFailedAttempts int           // Failures before lockout (default: 5)
	CookieSecure      bool          // Mark the session cookie Secure (default: false)

	// Seeded on start when AdminPassword is set and the username is free.
	AdminUsername string
	AdminEmail    string
	AdminPassword string

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)

	RateLimits httpx.RateLimitProfiles
}

// LoadConfig reads the configuration from the environment. A .env file
// (AUTH_ENV_FILE, default .env) is loaded first when present; variables that
// are already set take precedence over it.
func LoadConfig() (Config, error) {
	envFile := getEnvOrDefault("AUTH_ENV_FILE", ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Config{
		Issuer:              getEnvOrDefault("AUTH_ISSUER", "gatekeeper"),
		DatabaseDriver:      getEnvOrDefault("AUTH_DATABASE_DRIVER", DriverSQLite),
		DatabaseFile:        getEnvOrDefault("AUTH_DATABASE_FILE", "gatekeeper.db"),
		DatabaseURL:         os.Getenv("AUTH_DATABASE_URL"),
		PepperFile:          getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		TokenSecret:         os.Getenv("AUTH_TOKEN_SECRET"),
		TokenSecretFile:     getEnvOrDefault("AUTH_TOKEN_SECRET_FILE", "token.secret"),
		SessionTTL:          getEnvDurationOrDefault("AUTH_SESSION_TTL", jwtx.DefaultSessionTTL),
		RememberTTL:         getEnvDurationOrDefault("AUTH_REMEMBER_TTL", jwtx.DefaultRememberTTL),
		MaxFailedAttempts:   getEnvIntOrDefault("AUTH_MAX_FAILED_ATTEMPTS", lockout.DefaultMaxFailedAttempts),
		CookieSecure:        getEnvBoolOrDefault("AUTH_COOKIE_SECURE", false),
		AdminUsername:       getEnvOrDefault("AUTH_ADMIN_USERNAME", "admin"),
		AdminEmail:          getEnvOrDefault("AUTH_ADMIN_EMAIL", "admin@example.com"),
		AdminPassword:       os.Getenv("AUTH_ADMIN_PASSWORD"),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		RateLimits:          httpx.ProfilesFromEnv(),
	}

	return cfg, cfg.Validate()
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case DriverSQLite:
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_FILE must be set for the sqlite driver"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_URL must be set for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_DATABASE_DRIVER %q", c.DatabaseDriver))
	}

	if c.TokenSecret != "" && len(c.TokenSecret) < jwtx.MinSecretSize {
		errs = append(errs, fmt.Errorf("AUTH_TOKEN_SECRET must be at least %d bytes", jwtx.MinSecretSize))
	}
	if c.TokenSecret == "" && c.TokenSecretFile == "" {
		errs = append(errs, errors.New("one of AUTH_TOKEN_SECRET or AUTH_TOKEN_SECRET_FILE must be set"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("AUTH_SESSION_TTL must be positive"))
	}
	if c.RememberTTL <= 0 {
		errs = append(errs, errors.New("AUTH_REMEMBER_TTL must be positive"))
	}
	if c.MaxFailedAttempts <= 0 {
		errs = append(errs, errors.New("AUTH_MAX_FAILED_ATTEMPTS must be positive"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}
	if c.ShutdownGracePeriod < 0 {
		errs = append(errs, errors.New("SHUTDOWN_GRACE_PERIOD must not be negative"))
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
