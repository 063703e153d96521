// Package config provides configuration loading and validation.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/artpar/routekit/core/contract"
	"github.com/artpar/routekit/pkg/envconfig"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Hasher    HasherConfig    `yaml:"hasher"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// RateLimitConfig configures per-client rate limiting.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

// DatabaseConfig configures the user store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // sqlite file path or ":memory:"
}

// AuthConfig configures session tokens.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret,omitempty"` // random per process when empty
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// HasherConfig configures password hashing.
type HasherConfig struct {
	Cost int `yaml:"cost"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := applyEnvOverrides(&cfg, lookupEnv); err != nil {
		return nil, err
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	ROUTEKIT_SERVER_HOST             - Server host (default: 0.0.0.0)
//	ROUTEKIT_SERVER_PORT             - Server port (default: 8080)
//	ROUTEKIT_SERVER_READ_TIMEOUT     - e.g. 30s
//	ROUTEKIT_SERVER_WRITE_TIMEOUT    - e.g. 60s
//	ROUTEKIT_SERVER_SHUTDOWN_TIMEOUT - e.g. 15s
//	ROUTEKIT_LOG_LEVEL               - debug, info, warn, error (default: info)
//	ROUTEKIT_LOG_FORMAT              - json or console (default: json)
//	ROUTEKIT_METRICS_ENABLED         - Enable /metrics endpoint
//	ROUTEKIT_METRICS_PATH            - default: /metrics
//	ROUTEKIT_RATELIMIT_ENABLED       - Enable per-client rate limiting
//	ROUTEKIT_RATELIMIT_RPS           - Requests per second (default: 10)
//	ROUTEKIT_RATELIMIT_BURST         - Bucket size (default: 20)
//	ROUTEKIT_DATABASE_DSN            - Database path (default: routekit.db)
//	ROUTEKIT_AUTH_JWT_SECRET         - Token signing secret
//	ROUTEKIT_AUTH_TOKEN_TTL          - Token lifetime (default: 24h)
//	ROUTEKIT_HASHER_COST             - bcrypt cost (default: 10)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	if err := applyEnvOverrides(&cfg, lookupEnv); err != nil {
		return nil, err
	}
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads path when it exists and falls back to environment
// variables otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// lookupEnv treats empty variables as unset.
func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// flag accepts the usual spellings of a boolean switch.
var flag contract.Func[bool] = func(_ context.Context, data any) contract.Result[bool] {
	s, ok := data.(string)
	if !ok {
		return contract.Fail[bool](fmt.Sprintf("expected boolean, received %T", data))
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return contract.Pass(true)
	case "false", "0", "no", "off":
		return contract.Pass(false)
	}
	return contract.Fail[bool](fmt.Sprintf("invalid boolean %q", s))
}

// applyEnvOverrides applies ROUTEKIT_* environment variables to the config.
// Environment variables always override file-based configuration. Every
// malformed variable is reported in one error.
func applyEnvOverrides(cfg *Config, lookup envconfig.LookupFunc) error {
	opt := contract.Optional
	values, err := envconfig.New().
		WithLookup(lookup).
		Field("server.host", "ROUTEKIT_SERVER_HOST", opt(contract.String())).
		Field("server.port", "ROUTEKIT_SERVER_PORT", opt(contract.CoerceInt().Min(1).Max(65535))).
		Field("server.read_timeout", "ROUTEKIT_SERVER_READ_TIMEOUT", opt(envconfig.Duration())).
		Field("server.write_timeout", "ROUTEKIT_SERVER_WRITE_TIMEOUT", opt(envconfig.Duration())).
		Field("server.shutdown_timeout", "ROUTEKIT_SERVER_SHUTDOWN_TIMEOUT", opt(envconfig.Duration())).
		Field("logging.level", "ROUTEKIT_LOG_LEVEL", opt(contract.String())).
		Field("logging.format", "ROUTEKIT_LOG_FORMAT", opt(contract.Enum("json", "console"))).
		Field("metrics.enabled", "ROUTEKIT_METRICS_ENABLED", opt(flag)).
		Field("metrics.path", "ROUTEKIT_METRICS_PATH", opt(contract.String().Pattern(`^/`))).
		Field("rate_limit.enabled", "ROUTEKIT_RATELIMIT_ENABLED", opt(flag)).
		Field("rate_limit.rps", "ROUTEKIT_RATELIMIT_RPS", opt(positiveFloat)).
		Field("rate_limit.burst", "ROUTEKIT_RATELIMIT_BURST", opt(contract.CoerceInt().Min(1))).
		Field("database.dsn", "ROUTEKIT_DATABASE_DSN", opt(contract.String())).
		Field("auth.jwt_secret", "ROUTEKIT_AUTH_JWT_SECRET", opt(contract.String())).
		Field("auth.token_ttl", "ROUTEKIT_AUTH_TOKEN_TTL", opt(envconfig.Duration())).
		Field("hasher.cost", "ROUTEKIT_HASHER_COST", opt(contract.CoerceInt())).
		Parse(context.Background())
	if err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}

	// Server configuration
	if values.Has("server.host") {
		cfg.Server.Host = values.String("server.host")
	}
	if values.Has("server.port") {
		cfg.Server.Port = values.Int("server.port")
	}
	if values.Has("server.read_timeout") {
		cfg.Server.ReadTimeout = values.Duration("server.read_timeout")
	}
	if values.Has("server.write_timeout") {
		cfg.Server.WriteTimeout = values.Duration("server.write_timeout")
	}
	if values.Has("server.shutdown_timeout") {
		cfg.Server.ShutdownTimeout = values.Duration("server.shutdown_timeout")
	}

	// Logging configuration
	if values.Has("logging.level") {
		cfg.Logging.Level = values.String("logging.level")
	}
	if values.Has("logging.format") {
		cfg.Logging.Format = values.String("logging.format")
	}

	// Metrics configuration
	if values.Has("metrics.enabled") {
		cfg.Metrics.Enabled = values.Bool("metrics.enabled")
	}
	if values.Has("metrics.path") {
		cfg.Metrics.Path = values.String("metrics.path")
	}

	// Rate limit configuration
	if values.Has("rate_limit.enabled") {
		cfg.RateLimit.Enabled = values.Bool("rate_limit.enabled")
	}
	if values.Has("rate_limit.rps") {
		cfg.RateLimit.RPS, _ = values["rate_limit.rps"].(float64)
	}
	if values.Has("rate_limit.burst") {
		cfg.RateLimit.Burst = values.Int("rate_limit.burst")
	}

	// Database configuration
	if values.Has("database.dsn") {
		cfg.Database.DSN = values.String("database.dsn")
	}

	// Auth configuration
	if values.Has("auth.jwt_secret") {
		cfg.Auth.JWTSecret = values.String("auth.jwt_secret")
	}
	if values.Has("auth.token_ttl") {
		cfg.Auth.TokenTTL = values.Duration("auth.token_ttl")
	}

	if values.Has("hasher.cost") {
		cfg.Hasher.Cost = values.Int("hasher.cost")
	}

	return nil
}

var positiveFloat contract.Func[float64] = func(_ context.Context, data any) contract.Result[float64] {
	s, _ := data.(string)
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 {
		return contract.Fail[float64](fmt.Sprintf("must be a positive number, got %q", s))
	}
	return contract.Pass(f)
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.RateLimit.RPS == 0 {
		cfg.RateLimit.RPS = 10
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 20
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "routekit.db"
	}

	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}

	if cfg.Hasher.Cost == 0 {
		cfg.Hasher.Cost = bcrypt.DefaultCost
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout < 0 || cfg.Server.WriteTimeout < 0 || cfg.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}

	if _, err := zerolog.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	if cfg.RateLimit.RPS < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit.rps and rate_limit.burst must not be negative")
	}

	if cfg.Auth.TokenTTL < 0 {
		return fmt.Errorf("auth.token_ttl must not be negative")
	}
	if cfg.Auth.JWTSecret != "" && len(cfg.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret must be at least 16 characters")
	}

	if cfg.Hasher.Cost < bcrypt.MinCost || cfg.Hasher.Cost > bcrypt.MaxCost {
		return fmt.Errorf("hasher.cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cfg.Hasher.Cost)
	}

	return nil
}
