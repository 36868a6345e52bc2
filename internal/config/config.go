package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the core runtime configuration.  Each field corresponds to
// an environment variable; optional subsystems (storage, mail, broker,
// workflow) have their own loaders in sibling files.
type Config struct {
	Env            string // application environment (development, production)
	Port           string // HTTP port to listen on
	DatabaseURL    string // Postgres connection string
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing
	GoogleClientID string // OAuth client id accepted for Google ID tokens (empty disables)
	OTPTTL         time.Duration
	ResetTTL       time.Duration
	LogLevel       string
	TaskWorkers    int
	TaskQueueSize  int
	AutoMigrate    bool // apply pending migrations at startup
}

// IsProduction reports whether internal error details must be hidden from
// API clients.
func (c Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Load reads configuration values from environment variables.  Missing
// required variables are reported together in a single error.
func Load() (Config, error) {
	var missing []error
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			missing = append(missing, fmt.Errorf("missing required env var: %s", key))
		}
		return v
	}
	mustInt := func(key string) int {
		s := must(key)
		if s == "" {
			return 0
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			missing = append(missing, fmt.Errorf("invalid int for %s: %q", key, s))
		}
		return n
	}

	cfg := Config{
		Env:            envStr("APP_ENV", "development"),
		Port:           envStr("APP_PORT", "8080"),
		DatabaseURL:    must("DATABASE_URL"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     envInt("BCRYPT_COST", 12),
		GoogleClientID: os.Getenv("GOOGLE_CLIENT_ID"),
		OTPTTL:         envDur("OTP_TTL", 10*time.Minute),
		ResetTTL:       envDur("PASSWORD_RESET_TTL", time.Hour),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		TaskWorkers:    envInt("TASK_WORKERS", 4),
		TaskQueueSize:  envInt("TASK_QUEUE_SIZE", 256),
		AutoMigrate:    envBool("AUTO_MIGRATE", false),
	}
	if err := errors.Join(missing...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
