package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MDMS_CONFIG", "META_DB_PATH", "LISTEN_ADDR", "LOG_LEVEL", "ENV",
		"CACHE_SIZE", "BATCH_SIZE", "ID_TABLE_BITS", "ID_COLUMN_BITS",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "mdms.sqlite", cfg.MetaDBPath)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1000, cfg.CacheSize)
	assert.Equal(t, 500, cfg.BatchSize)
	assert.Zero(t, cfg.TableBits)
	assert.Zero(t, cfg.ColumnBits)
	assert.InDelta(t, 100.0, cfg.RateLimitRPS, 0.001)
	assert.Equal(t, 200, cfg.RateLimitBurst)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("META_DB_PATH", "/tmp/test.sqlite")
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("CACHE_SIZE", "64")
	t.Setenv("BATCH_SIZE", "8")
	t.Setenv("ID_TABLE_BITS", "10")
	t.Setenv("ID_COLUMN_BITS", "14")
	t.Setenv("RATE_LIMIT_RPS", "5.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test.sqlite", cfg.MetaDBPath)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 64, cfg.CacheSize)
	assert.Equal(t, 8, cfg.BatchSize)
	assert.Equal(t, 10, cfg.TableBits)
	assert.Equal(t, 14, cfg.ColumnBits)
	assert.InDelta(t, 5.5, cfg.RateLimitRPS, 0.001)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadFromEnv_InvalidNumberWarns(t *testing.T) {
	clearEnv(t)
	t.Setenv("CACHE_SIZE", "lots")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.CacheSize)
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "CACHE_SIZE")
}

func TestLoadFromEnv_BitsMustBeSetTogether(t *testing.T) {
	clearEnv(t)
	t.Setenv("ID_TABLE_BITS", "10")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set together")
}

func TestLoadFromEnv_NoSchemaBitsLeft(t *testing.T) {
	clearEnv(t)
	t.Setenv("ID_TABLE_BITS", "16")
	t.Setenv("ID_COLUMN_BITS", "16")

	_, err := LoadFromEnv()
	require.Error(t, err)
}

func TestLoadFromEnv_ProductionRejectsWildcardCORS(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CORS wildcard")
}

func TestLoadFromEnv_TOMLFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "mdms.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[store]
path = "/data/catalog.sqlite"
cache_size = 32
table_bits = 12
column_bits = 12

[server]
listen = ":7070"
cors_allowed_origins = ["https://ui.example"]

[log]
level = "debug"
`), 0o644))
	t.Setenv("MDMS_CONFIG", path)
	t.Setenv("LISTEN_ADDR", ":6060")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/data/catalog.sqlite", cfg.MetaDBPath)
	assert.Equal(t, 32, cfg.CacheSize)
	assert.Equal(t, 12, cfg.TableBits)
	assert.Equal(t, ":6060", cfg.ListenAddr, "environment wins over the file")
	assert.Equal(t, []string{"https://ui.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadFile_UnknownKeysWarn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mdms.toml")
	require.NoError(t, os.WriteFile(path, []byte("[store]\nsize = 3\n"), 0o644))

	cfg := &Config{}
	require.NoError(t, LoadFile(path, cfg))
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "store.size")
}

func TestLoadFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mdms.toml")
	require.NoError(t, os.WriteFile(path, []byte("[store\n"), 0o644))

	err := LoadFile(path, &Config{})
	require.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.in}
			assert.Equal(t, tt.want, cfg.SlogLevel())
		})
	}
}

func TestLoadDotEnv_FileNotFound(t *testing.T) {
	err := LoadDotEnv("/nonexistent/.env")
	if err != nil {
		t.Errorf("expected no error for missing .env, got: %v", err)
	}
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("# comment\nTEST_KEY='test_value'\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_KEY"); val != "test_value" {
		t.Errorf("TEST_KEY = %q, want %q", val, "test_value")
	}
	_ = os.Unsetenv("TEST_KEY")
}

func TestLoadDotEnv_EnvVarPrecedence(t *testing.T) {
	t.Setenv("TEST_PRECEDENCE_KEY", "from_env")

	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("TEST_PRECEDENCE_KEY=from_file\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_PRECEDENCE_KEY"); val != "from_env" {
		t.Errorf("TEST_PRECEDENCE_KEY = %q, want %q (env precedence)", val, "from_env")
	}
}
