package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv          string `env:"APP_ENV" default:"development"`
	Port            string `env:"PORT" default:"8080"`
	DatabaseURL     string `env:"DATABASE_URL"`
	RedisURL        string `env:"REDIS_URL"`
	SupabaseURL     string `env:"SUPABASE_URL"`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY"`
	SessionSecret   string `env:"SESSION_SECRET"`

	// TokenEncryptionKey is an optional hex AES-256 key sealing tokens in Redis.
	TokenEncryptionKey string `env:"TOKEN_ENCRYPTION_KEY"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	RunMigrations bool `env:"RUN_MIGRATIONS" default:"false"`

	// ProbeTable is the lightweight table the connection prober reads one row from.
	ProbeTable string `env:"PROBE_TABLE" default:"admin_users"`

	LivenessStartupDelay time.Duration `env:"LIVENESS_STARTUP_DELAY" default:"1s"`
	SessionMaxAge        time.Duration `env:"SESSION_MAX_AGE" default:"168h"` // 7 days

	// AllowedOrigins is a comma-separated list of origins allowed to open a console socket.
	AllowedOrigins string `env:"CORS_ALLOWED_ORIGINS"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Origins returns the parsed allowed-origin list with blanks removed.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func validate(cfg *Config) error {
	required := []struct{ name, value string }{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"REDIS_URL", cfg.RedisURL},
		{"SUPABASE_URL", cfg.SupabaseURL},
		{"SUPABASE_ANON_KEY", cfg.SupabaseAnonKey},
		{"SESSION_SECRET", cfg.SessionSecret},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	u, err := url.Parse(cfg.SupabaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("SUPABASE_URL must be an absolute http(s) URL")
	}

	if len(cfg.SessionSecret) < 32 {
		return errors.New("SESSION_SECRET must be at least 32 characters")
	}

	if cfg.TokenEncryptionKey != "" {
		key, err := hex.DecodeString(cfg.TokenEncryptionKey)
		if err != nil || len(key) != 32 {
			return errors.New("TOKEN_ENCRYPTION_KEY must be 64 hex characters (32 bytes)")
		}
	}

	if cfg.LivenessStartupDelay < 0 {
		return errors.New("LIVENESS_STARTUP_DELAY must not be negative")
	}

	if strings.TrimSpace(cfg.ProbeTable) == "" {
		return errors.New("PROBE_TABLE must not be empty")
	}

	return nil
}
