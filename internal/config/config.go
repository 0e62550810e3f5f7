package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

type Config struct {
	Server    ServerConfig
	Data      DataConfig
	Dashboard DashboardConfig
	Logger    LoggerConfig
	Security  SecurityConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DataConfig locates the sales dataset and its parsed-record cache.
type DataConfig struct {
	File         string
	Sheet        string
	CacheEnabled bool
	CacheDir     string
	LoadTimeout  time.Duration
}

type DashboardConfig struct {
	TopN         int
	MaxTableRows int
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

// Load reads the configuration from the environment. Malformed values are
// reported together with every failed validation rule.
func Load() (*Config, error) {
	var env envReader
	cfg := &Config{
		Server: ServerConfig{
			Host:            env.string("SERVER_HOST", "localhost"),
			Port:            env.int("SERVER_PORT", 8084),
			ReadTimeout:     env.duration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    env.duration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     env.duration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: env.duration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Data: DataConfig{
			File:         env.string("DATA_FILE", "Sample - Superstore.xlsx"),
			Sheet:        env.string("DATA_SHEET", ""),
			CacheEnabled: env.bool("DATA_CACHE_ENABLED", true),
			CacheDir:     env.string("DATA_CACHE_DIR", ".cache"),
			LoadTimeout:  env.duration("DATA_LOAD_TIMEOUT", 30*time.Second),
		},
		Dashboard: DashboardConfig{
			TopN:         env.int("DASHBOARD_TOP_N", 10),
			MaxTableRows: env.int("DASHBOARD_MAX_TABLE_ROWS", 50),
		},
		Logger: LoggerConfig{
			Level:  strings.ToLower(env.string("LOG_LEVEL", "info")),
			Format: strings.ToLower(env.string("LOG_FORMAT", "json")),
		},
		Security: SecurityConfig{
			EnableRateLimit: env.bool("SECURITY_RATE_LIMIT_ENABLED", true),
			RateLimitRPS:    env.int("SECURITY_RATE_LIMIT_RPS", 100),
			RateLimitBurst:  env.int("SECURITY_RATE_LIMIT_BURST", 20),
			AllowedOrigins:  env.list("SECURITY_ALLOWED_ORIGINS", []string{"http://localhost:8084"}),
			TrustedProxies:  env.list("SECURITY_TRUSTED_PROXIES", []string{"127.0.0.1"}),
		},
	}

	if err := errors.Join(append(env.errs, cfg.validate()...)...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

var (
	dataExtensions = []string{".xlsx", ".xlsm", ".csv"}
	logLevels      = []string{"debug", "info", "warn", "warning", "error"}
	logFormats     = []string{"json", "text"}
)

func (c *Config) validate() []error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Port >= 1 && c.Server.Port <= 65535, "server port must be between 1 and 65535, got %d", c.Server.Port)
	check(c.Server.ReadTimeout > 0, "server read timeout must be positive")
	check(c.Server.WriteTimeout > 0, "server write timeout must be positive")
	check(c.Server.ShutdownTimeout > 0, "server shutdown timeout must be positive")

	check(c.Data.File != "", "data file path cannot be empty")
	ext := strings.ToLower(filepath.Ext(c.Data.File))
	check(c.Data.File == "" || lo.Contains(dataExtensions, ext),
		"unsupported data file extension %q, must be one of: %s", ext, strings.Join(dataExtensions, ", "))
	check(!c.Data.CacheEnabled || c.Data.CacheDir != "", "cache directory cannot be empty when caching is enabled")
	check(c.Data.LoadTimeout > 0, "data load timeout must be positive")

	check(c.Dashboard.TopN >= 0, "dashboard top N must not be negative, got %d", c.Dashboard.TopN)
	check(c.Dashboard.MaxTableRows > 0, "dashboard max table rows must be positive")

	check(lo.Contains(logLevels, c.Logger.Level), "invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(logLevels, ", "))
	check(lo.Contains(logFormats, c.Logger.Format), "invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(logFormats, ", "))

	check(c.Security.RateLimitRPS > 0, "rate limit RPS must be positive")
	check(c.Security.RateLimitBurst > 0, "rate limit burst must be positive")
	return errs
}

// envReader reads typed environment variables, collecting a parse error for
// every malformed value instead of silently using the default.
type envReader struct {
	errs []error
}

func lookup[T any](r *envReader, key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s=%q: %w", key, raw, err))
		return def
	}
	return v
}

func (r *envReader) string(key, def string) string {
	return lookup(r, key, def, func(s string) (string, error) { return s, nil })
}

func (r *envReader) int(key string, def int) int {
	return lookup(r, key, def, strconv.Atoi)
}

func (r *envReader) bool(key string, def bool) bool {
	return lookup(r, key, def, strconv.ParseBool)
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	return lookup(r, key, def, time.ParseDuration)
}

func (r *envReader) list(key string, def []string) []string {
	return lookup(r, key, def, func(s string) ([]string, error) {
		return lo.Compact(lo.Map(strings.Split(s, ","), func(item string, _ int) string {
			return strings.TrimSpace(item)
		})), nil
	})
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
