package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable pointing at an optional YAML file.
// Values from the file are applied first and environment variables override them.
const FileEnv = "LEADBOARD_CONFIG"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Session       SessionConfig       `yaml:"session"`
	Observability ObservabilityConfig `yaml:"observability"`
	Security      SecurityConfig      `yaml:"security"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	FollowUp      FollowUpConfig      `yaml:"follow_up"`
	Locale        LocaleConfig        `yaml:"locale"`
	Cache         CacheConfig         `yaml:"cache"`
	CSRF          CSRFConfig          `yaml:"csrf"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         string `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"name"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	// AutoMigrate applies the embedded schema at startup.
	AutoMigrate bool `yaml:"auto_migrate"`
}

// SessionConfig holds session management configuration
type SessionConfig struct {
	CookieName      string        `yaml:"cookie_name"`
	CookieDomain    string        `yaml:"cookie_domain"`
	CookiePath      string        `yaml:"cookie_path"`
	CookieSecure    bool          `yaml:"cookie_secure"`
	CookieHTTPOnly  bool          `yaml:"cookie_http_only"`
	CookieSameSite  string        `yaml:"cookie_same_site"`
	Lifetime        time.Duration `yaml:"lifetime"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// ObservabilityConfig holds logging, tracing and metrics configuration
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	OTELEnabled    bool   `yaml:"otel_enabled"`
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	Argon2Memory       uint32        `yaml:"argon2_memory"`
	Argon2Iterations   uint32        `yaml:"argon2_iterations"`
	Argon2Parallelism  uint8         `yaml:"argon2_parallelism"`
	Argon2SaltLength   uint32        `yaml:"argon2_salt_length"`
	Argon2KeyLength    uint32        `yaml:"argon2_key_length"`
	LockoutMaxAttempts int           `yaml:"lockout_max_attempts"`
	LockoutDuration    time.Duration `yaml:"lockout_duration"`
}

// FollowUpConfig tunes the follow-up rule.
type FollowUpConfig struct {
	GraceDays    int `yaml:"grace_days"`
	SurfaceLimit int `yaml:"surface_limit"`
}

// LocaleConfig fixes the calendar used for month boundaries.
type LocaleConfig struct {
	// Timezone is an IANA name. Empty means the server's local zone.
	Timezone string `yaml:"timezone"`
	Language string `yaml:"language"`
}

// Location resolves Timezone.
func (l LocaleConfig) Location() (*time.Location, error) {
	if l.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(l.Timezone)
}

// CacheConfig configures the Redis lead cache. An empty Addr disables it.
type CacheConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// Enabled reports whether a Redis address is configured.
func (c CacheConfig) Enabled() bool {
	return c.Addr != ""
}

// CSRFConfig configures CSRF token signing.
type CSRFConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         "5432",
			User:         "leadboard",
			Database:     "leadboard",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
			AutoMigrate:  true,
		},
		Session: SessionConfig{
			CookieName:      "leadboard_session",
			CookiePath:      "/",
			CookieHTTPOnly:  true,
			CookieSameSite:  "Lax",
			Lifetime:        24 * time.Hour,
			IdleTimeout:     30 * time.Minute,
			CleanupInterval: 15 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			ServiceName:    "leadboard",
			ServiceVersion: "0.1.0",
			MetricsEnabled: true,
		},
		Security: SecurityConfig{
			Argon2Memory:       65536,
			Argon2Iterations:   3,
			Argon2Parallelism:  4,
			Argon2SaltLength:   16,
			Argon2KeyLength:    32,
			LockoutMaxAttempts: 5,
			LockoutDuration:    15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
		},
		FollowUp: FollowUpConfig{
			GraceDays:    3,
			SurfaceLimit: 5,
		},
		Locale: LocaleConfig{
			Language: "en",
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		CSRF: CSRFConfig{
			TTL: 2 * time.Hour,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file and
// environment variables, in that order.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile overlays values from a YAML file.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	c.Server.ReadTimeout = parseDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = parseDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = parseDuration("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = parseDuration("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = parseInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = parseInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.AutoMigrate = parseBool("DB_AUTO_MIGRATE", c.Database.AutoMigrate)

	c.Session.CookieName = getEnv("SESSION_COOKIE_NAME", c.Session.CookieName)
	c.Session.CookieDomain = getEnv("SESSION_COOKIE_DOMAIN", c.Session.CookieDomain)
	c.Session.CookiePath = getEnv("SESSION_COOKIE_PATH", c.Session.CookiePath)
	c.Session.CookieSecure = parseBool("SESSION_COOKIE_SECURE", c.Session.CookieSecure)
	c.Session.CookieHTTPOnly = parseBool("SESSION_COOKIE_HTTP_ONLY", c.Session.CookieHTTPOnly)
	c.Session.CookieSameSite = getEnv("SESSION_COOKIE_SAME_SITE", c.Session.CookieSameSite)
	c.Session.Lifetime = parseDuration("SESSION_LIFETIME", c.Session.Lifetime)
	c.Session.IdleTimeout = parseDuration("SESSION_IDLE_TIMEOUT", c.Session.IdleTimeout)
	c.Session.CleanupInterval = parseDuration("SESSION_CLEANUP_INTERVAL", c.Session.CleanupInterval)

	c.Observability.LogLevel = getEnv("LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = getEnv("LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.OTELEnabled = parseBool("OTEL_ENABLED", c.Observability.OTELEnabled)
	c.Observability.ServiceName = getEnv("OTEL_SERVICE_NAME", c.Observability.ServiceName)
	c.Observability.ServiceVersion = getEnv("OTEL_SERVICE_VERSION", c.Observability.ServiceVersion)
	c.Observability.MetricsEnabled = parseBool("METRICS_ENABLED", c.Observability.MetricsEnabled)

	c.Security.Argon2Memory = uint32(parseInt("ARGON2_MEMORY", int(c.Security.Argon2Memory)))
	c.Security.Argon2Iterations = uint32(parseInt("ARGON2_ITERATIONS", int(c.Security.Argon2Iterations)))
	c.Security.Argon2Parallelism = uint8(parseInt("ARGON2_PARALLELISM", int(c.Security.Argon2Parallelism)))
	c.Security.Argon2SaltLength = uint32(parseInt("ARGON2_SALT_LENGTH", int(c.Security.Argon2SaltLength)))
	c.Security.Argon2KeyLength = uint32(parseInt("ARGON2_KEY_LENGTH", int(c.Security.Argon2KeyLength)))
	c.Security.LockoutMaxAttempts = parseInt("SECURITY_LOCKOUT_MAX_ATTEMPTS", c.Security.LockoutMaxAttempts)
	c.Security.LockoutDuration = parseDuration("SECURITY_LOCKOUT_DURATION", c.Security.LockoutDuration)

	c.RateLimit.RequestsPerSecond = parseFloat("RATELIMIT_RPS", c.RateLimit.RequestsPerSecond)
	c.RateLimit.Burst = parseInt("RATELIMIT_BURST", c.RateLimit.Burst)

	c.FollowUp.GraceDays = parseInt("FOLLOWUP_GRACE_DAYS", c.FollowUp.GraceDays)
	c.FollowUp.SurfaceLimit = parseInt("FOLLOWUP_SURFACE_LIMIT", c.FollowUp.SurfaceLimit)

	c.Locale.Timezone = getEnv("APP_TIMEZONE", c.Locale.Timezone)
	c.Locale.Language = getEnv("APP_LANGUAGE", c.Locale.Language)

	c.Cache.Addr = getEnv("REDIS_ADDR", c.Cache.Addr)
	c.Cache.Password = getEnv("REDIS_PASSWORD", c.Cache.Password)
	c.Cache.DB = parseInt("REDIS_DB", c.Cache.DB)
	c.Cache.TTL = parseDuration("CACHE_TTL", c.Cache.TTL)

	c.CSRF.Secret = getEnv("CSRF_SECRET", c.CSRF.Secret)
	c.CSRF.TTL = parseDuration("CSRF_TOKEN_TTL", c.CSRF.TTL)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Password == "" {
		errs = append(errs, errors.New("DB_PASSWORD is required"))
	}
	if len(c.CSRF.Secret) < 32 {
		errs = append(errs, errors.New("CSRF_SECRET must be at least 32 bytes"))
	}
	if c.FollowUp.GraceDays < 0 {
		errs = append(errs, errors.New("FOLLOWUP_GRACE_DAYS must not be negative"))
	}
	if c.FollowUp.SurfaceLimit < 0 {
		errs = append(errs, errors.New("FOLLOWUP_SURFACE_LIMIT must not be negative"))
	}
	if _, err := c.Locale.Location(); err != nil {
		errs = append(errs, fmt.Errorf("APP_TIMEZONE: %w", err))
	}
	if c.Session.Lifetime <= 0 {
		errs = append(errs, errors.New("SESSION_LIFETIME must be positive"))
	}
	switch strings.ToLower(c.Session.CookieSameSite) {
	case "lax", "strict", "none":
	default:
		errs = append(errs, fmt.Errorf("SESSION_COOKIE_SAME_SITE %q is not one of Lax, Strict, None", c.Session.CookieSameSite))
	}
	return errors.Join(errs...)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
