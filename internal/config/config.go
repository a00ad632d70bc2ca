// Package config handles application configuration, loaded from an optional
// TOML file and environment variables.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds the configuration of the CLI and the HTTP API.
type Config struct {
	MetaDBPath string // path to the SQLite store (default "mdms.sqlite")
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// Catalog store tuning
	CacheSize int // entries per catalog cache (default 1000)
	BatchSize int // identifier registrations per write batch (default 500)

	// Identifier layout used when a store is initialised. Zero selects the
	// default 8/12/12 layout.
	TableBits  int
	ColumnBits int

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// fileConfig mirrors the TOML configuration file.
type fileConfig struct {
	Env   string `toml:"env"`
	Store struct {
		Path       string `toml:"path"`
		CacheSize  int    `toml:"cache_size"`
		BatchSize  int    `toml:"batch_size"`
		TableBits  int    `toml:"table_bits"`
		ColumnBits int    `toml:"column_bits"`
	} `toml:"store"`
	Server struct {
		Listen         string   `toml:"listen"`
		RateLimitRPS   float64  `toml:"rate_limit_rps"`
		RateLimitBurst int      `toml:"rate_limit_burst"`
		CORSOrigins    []string `toml:"cors_allowed_origins"`
	} `toml:"server"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size must not be negative, got %d", c.CacheSize)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch size must not be negative, got %d", c.BatchSize)
	}
	if (c.TableBits == 0) != (c.ColumnBits == 0) {
		return fmt.Errorf("table bits and column bits must be set together")
	}
	if c.TableBits < 0 || c.ColumnBits < 0 || c.TableBits+c.ColumnBits > 31 {
		return fmt.Errorf("table bits (%d) and column bits (%d) must leave at least one schema bit", c.TableBits, c.ColumnBits)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	if c.IsProduction() && len(c.CORSAllowedOrigins) == 1 && c.CORSAllowedOrigins[0] == "*" {
		return fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
	}
	return nil
}

// LoadFromEnv loads configuration from the TOML file named by MDMS_CONFIG,
// if any, and then from environment variables, which take precedence.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("MDMS_CONFIG"); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	setString(&cfg.MetaDBPath, "META_DB_PATH")
	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.Env, "ENV")
	setInt(cfg, &cfg.CacheSize, "CACHE_SIZE")
	setInt(cfg, &cfg.BatchSize, "BATCH_SIZE")
	setInt(cfg, &cfg.TableBits, "ID_TABLE_BITS")
	setInt(cfg, &cfg.ColumnBits, "ID_COLUMN_BITS")
	setInt(cfg, &cfg.RateLimitBurst, "RATE_LIMIT_BURST")
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring invalid RATE_LIMIT_RPS %q", v))
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Defaults
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "mdms.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 1000
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 500
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the values of a TOML file onto cfg. Unknown keys are
// reported as warnings.
func LoadFile(path string, cfg *Config) error {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("unknown config key %q in %s", key.String(), path))
	}

	overlay(&cfg.Env, fc.Env)
	overlay(&cfg.MetaDBPath, fc.Store.Path)
	overlay(&cfg.CacheSize, fc.Store.CacheSize)
	overlay(&cfg.BatchSize, fc.Store.BatchSize)
	overlay(&cfg.TableBits, fc.Store.TableBits)
	overlay(&cfg.ColumnBits, fc.Store.ColumnBits)
	overlay(&cfg.ListenAddr, fc.Server.Listen)
	overlay(&cfg.RateLimitRPS, fc.Server.RateLimitRPS)
	overlay(&cfg.RateLimitBurst, fc.Server.RateLimitBurst)
	overlay(&cfg.LogLevel, fc.Log.Level)
	if len(fc.Server.CORSOrigins) > 0 {
		cfg.CORSAllowedOrigins = compactNonEmpty(fc.Server.CORSOrigins)
	}
	return nil
}

func overlay[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(cfg *Config, dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring invalid %s %q", key, v))
		return
	}
	*dst = n
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
