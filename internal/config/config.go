// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every configuration variable.
const EnvPrefix = "WELLNESS_"

// knownWeakSecrets contains default/example secrets that must be rejected in production.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
	"test-secret-key-that-is-long-enough-for-hs256",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"DB_PATH" envDefault:"./data/wellness.db"`
	StorageDir    string `env:"STORAGE_DIR" envDefault:"./data/storage"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"` // defaults to http://ServerAddr
	SessionSecret string `env:"SESSION_SECRET,required"`
	JWTSecret     string `env:"JWT_SECRET,required"`
	ServerHost    string `env:"SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"SERVER_PORT" envDefault:"8080"`
	Env           string `env:"ENV" envDefault:"development"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// Credential persistence: Redis when a URL is set, else a local file.
	// CREDENTIALS_FILE=off keeps them in process memory only.
	RedisURL        string `env:"REDIS_URL"`
	CachePrefix     string `env:"CACHE_PREFIX" envDefault:"wellness:"`
	CredentialsFile string `env:"CREDENTIALS_FILE" envDefault:"./data/credentials.json"`

	AutoConfirm     bool          `env:"AUTO_CONFIRM" envDefault:"false"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`

	// Cron schedules; "off" leaves a job manual-only.
	ContentRefreshSchedule string        `env:"CONTENT_REFRESH_SCHEDULE" envDefault:"*/5 * * * *"`
	SessionRefreshSchedule string        `env:"SESSION_REFRESH_SCHEDULE" envDefault:"*/15 * * * *"`
	SweepSchedule          string        `env:"SWEEP_SCHEDULE" envDefault:"30 3 * * *"`
	PurgeSchedule          string        `env:"PURGE_SCHEDULE" envDefault:"@hourly"`
	OrphanMinAge           time.Duration `env:"ORPHAN_MIN_AGE" envDefault:"24h"`

	// Optional seed admin, created or promoted at start-up.
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedis returns true if credentials are kept in Redis.
func (c Config) UseRedis() bool {
	return c.RedisURL != ""
}

// Credential stores.
const (
	CredentialsRedis  = "redis"
	CredentialsFile   = "file"
	CredentialsMemory = "memory"
)

// CredentialStore names where the server's backend session is kept.
func (c Config) CredentialStore() string {
	switch {
	case c.UseRedis():
		return CredentialsRedis
	case strings.EqualFold(strings.TrimSpace(c.CredentialsFile), Off):
		return CredentialsMemory
	default:
		return CredentialsFile
	}
}

// SeedAdmin returns true if a seed admin account is configured.
func (c Config) SeedAdmin() bool {
	return c.AdminEmail != ""
}

// BaseURL returns the public base URL without a trailing slash.
func (c Config) BaseURL() string {
	if c.PublicBaseURL != "" {
		return strings.TrimRight(c.PublicBaseURL, "/")
	}
	return "http://" + c.ServerAddr()
}

// Off disables an optional setting such as a job schedule or the
// credentials file. An empty value would fall back to the default.
const Off = "off"

// ScheduleOff disables a job's schedule.
const ScheduleOff = Off

// JobSchedule maps a configured schedule to a cron spec, "" when off.
func JobSchedule(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, ScheduleOff) {
		return ""
	}
	return s
}

// MinSecretLength is the minimum required length for the session and
// token secrets. AES-256 and HS256 both want 32 bytes.
const MinSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := checkSecret(EnvPrefix+"SESSION_SECRET", c.SessionSecret); err != nil {
		return err
	}
	if err := checkSecret(EnvPrefix+"JWT_SECRET", c.JWTSecret); err != nil {
		return err
	}
	if c.SessionSecret == c.JWTSecret {
		return errors.New(EnvPrefix + "SESSION_SECRET and " + EnvPrefix + "JWT_SECRET must differ")
	}

	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return errors.New(EnvPrefix + "ADMIN_EMAIL and " + EnvPrefix + "ADMIN_PASSWORD must be set together")
	}
	if c.PublicBaseURL != "" {
		u, err := url.Parse(c.PublicBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%sPUBLIC_BASE_URL must be an absolute http(s) URL, got %q", EnvPrefix, c.PublicBaseURL)
		}
	}
	if c.AccessTokenTTL < time.Minute {
		return fmt.Errorf("%sACCESS_TOKEN_TTL must be at least 1m, got %s", EnvPrefix, c.AccessTokenTTL)
	}
	if c.RefreshTokenTTL < c.AccessTokenTTL {
		return fmt.Errorf("%sREFRESH_TOKEN_TTL must not be shorter than the access token TTL", EnvPrefix)
	}
	if c.OrphanMinAge < time.Minute {
		return fmt.Errorf("%sORPHAN_MIN_AGE must be at least 1m, got %s", EnvPrefix, c.OrphanMinAge)
	}
	return nil
}

func checkSecret(name, secret string) error {
	if len(secret) < MinSecretLength {
		return fmt.Errorf("%s must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			name, MinSecretLength, len(secret))
	}
	for _, weak := range knownWeakSecrets {
		if secret == weak {
			return fmt.Errorf("%s is a known default value and must not be used; "+
				"generate a secure secret with: openssl rand -base64 32", name)
		}
	}
	if !hasMinimumEntropy(secret) {
		slog.Warn(name + " has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}
	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
