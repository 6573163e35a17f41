package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GOOGLE_API_KEY", "GEMINI_API_KEY", "GEMINI_MODEL_NAME", "GEMINI_ENDPOINT",
		"SHEETQL_EVENT_LOG", "SHEETQL_LOG_LEVEL", "SHEETQL_SEQ_URL", "SHEETQL_LLM_TIMEOUT",
		"SHEETQL_SLOW_THRESHOLD", "SHEETQL_EXEC_TIMEOUT", "SHEETQL_RATE_LIMIT_RPS",
		"SHEETQL_RATE_LIMIT_BURST", "SHEETQL_CACHE_SIZE", "SHEETQL_RESOLVE_COLUMNS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash-lite", cfg.Model)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 256, cfg.CacheSize)
	assert.Equal(t, 10*time.Second, cfg.SlowThreshold)
	assert.Zero(t, cfg.ExecTimeout)
	assert.Equal(t, "app_metrics.log", cfg.EventLog)
	assert.False(t, cfg.HasAPIKey())
	assert.Empty(t, cfg.Warnings)
}

func TestLoad_APIKeyFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gemini-key", cfg.APIKey)

	t.Setenv("GOOGLE_API_KEY", "google-key")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "google-key", cfg.APIKey)
	assert.Equal(t, "google-key", cfg.Gemini().APIKey)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sheetql.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model: gemini-file
cache_size: 32
slow_threshold: 2s
resolve_columns: true
synonyms:
  rev: [revenue]
`), 0o600))

	t.Setenv("GEMINI_MODEL_NAME", "gemini-env")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini-env", cfg.Model)
	assert.Equal(t, 32, cfg.CacheSize)
	assert.Equal(t, 2*time.Second, cfg.SlowThreshold)
	assert.True(t, cfg.ResolveColumns)
	assert.Equal(t, map[string][]string{"rev": {"revenue"}}, cfg.Synonyms)
	assert.Len(t, cfg.SandboxOptions(), 3)
}

func TestLoad_BadEnvValuesWarn(t *testing.T) {
	clearEnv(t)
	t.Setenv("SHEETQL_CACHE_SIZE", "lots")
	t.Setenv("SHEETQL_SLOW_THRESHOLD", "soon")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Len(t, cfg.Warnings, 2)
	assert.Equal(t, 256, cfg.CacheSize)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.CacheSize = 0
	cfg.LogLevel = "loud"
	cfg.SeqURL = "localhost:5341"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache_size")
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "seq_url")
}

func TestSlogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "WARN"
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())
	assert.Equal(t, slog.LevelWarn, cfg.Events(nil).Level)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GEMINI_MODEL_NAME=from-dotenv\n"), 0o600))

	// t.Setenv registered cleanup for the key; godotenv only fills unset keys.
	require.NoError(t, os.Unsetenv("GEMINI_MODEL_NAME"))
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv("GEMINI_MODEL_NAME"))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}
