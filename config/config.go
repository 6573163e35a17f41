// Package config handles application configuration and environment loading.
//
// Values come from three layers, later layers winning: built-in defaults,
// an optional YAML file, and environment variables (optionally seeded from
// a .env file).
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/spektr-org/sheetql/eventlog"
	"github.com/spektr-org/sheetql/llm"
	"github.com/spektr-org/sheetql/sandbox"
)

// Config holds everything the CLI needs to build a session.
type Config struct {
	// Language model
	APIKey         string        `yaml:"-"` // never read from files
	Model          string        `yaml:"model"`
	Endpoint       string        `yaml:"endpoint"`
	LLMTimeout     time.Duration `yaml:"llm_timeout"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`

	// Executor
	CacheSize     int           `yaml:"cache_size"`
	SlowThreshold time.Duration `yaml:"slow_threshold"`
	ExecTimeout   time.Duration `yaml:"exec_timeout"` // 0 = no deadline

	// ResolveColumns lets expressions reference misspelled columns by
	// running them through the column resolver.
	ResolveColumns bool `yaml:"resolve_columns"`

	// Extra synonym pairs, e.g. {"rev": ["revenue"]}.
	Synonyms map[string][]string `yaml:"synonyms"`

	// Logging
	EventLog string `yaml:"event_log"`
	LogLevel string `yaml:"log_level"` // debug, info, warn, error
	SeqURL   string `yaml:"seq_url"`

	// Warnings collects non-fatal problems found while loading, such as
	// unparsable environment values. Callers log them once a logger exists.
	Warnings []string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model:          llm.DefaultModel,
		Endpoint:       llm.DefaultEndpoint,
		LLMTimeout:     llm.DefaultTimeout,
		RateLimitRPS:   1,
		RateLimitBurst: 2,
		CacheSize:      sandbox.DefaultCacheSize,
		SlowThreshold:  sandbox.DefaultSlowThreshold,
		EventLog:       eventlog.DefaultPath,
		LogLevel:       "info",
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.mergeEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv reads .env files into the environment without overriding
// variables that are already set. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() {
	c.APIKey = firstEnv("GOOGLE_API_KEY", "GEMINI_API_KEY")
	setString(&c.Model, "GEMINI_MODEL_NAME")
	setString(&c.Endpoint, "GEMINI_ENDPOINT")
	setString(&c.EventLog, "SHEETQL_EVENT_LOG")
	setString(&c.LogLevel, "SHEETQL_LOG_LEVEL")
	setString(&c.SeqURL, "SHEETQL_SEQ_URL")

	c.setDuration(&c.LLMTimeout, "SHEETQL_LLM_TIMEOUT")
	c.setDuration(&c.SlowThreshold, "SHEETQL_SLOW_THRESHOLD")
	c.setDuration(&c.ExecTimeout, "SHEETQL_EXEC_TIMEOUT")
	c.setInt(&c.RateLimitBurst, "SHEETQL_RATE_LIMIT_BURST")
	c.setInt(&c.CacheSize, "SHEETQL_CACHE_SIZE")

	if v := os.Getenv("SHEETQL_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RateLimitRPS = f
		} else {
			c.warnf("ignoring SHEETQL_RATE_LIMIT_RPS=%q: not a number", v)
		}
	}
	c.ResolveColumns = parseBoolEnvDefault("SHEETQL_RESOLVE_COLUMNS", c.ResolveColumns)
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var errs []error
	if c.Model == "" {
		errs = append(errs, errors.New("model must not be empty"))
	}
	if c.LLMTimeout <= 0 {
		errs = append(errs, fmt.Errorf("llm_timeout must be positive, got %s", c.LLMTimeout))
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("rate_limit_rps must not be negative"))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("rate_limit_burst must be at least 1 when rate limiting is on"))
	}
	if c.CacheSize < 1 {
		errs = append(errs, fmt.Errorf("cache_size must be at least 1, got %d", c.CacheSize))
	}
	if c.SlowThreshold < 0 || c.ExecTimeout < 0 {
		errs = append(errs, errors.New("slow_threshold and exec_timeout must not be negative"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	if c.SeqURL != "" && !strings.HasPrefix(c.SeqURL, "http://") && !strings.HasPrefix(c.SeqURL, "https://") {
		errs = append(errs, fmt.Errorf("seq_url must be an http(s) URL"))
	}
	return errors.Join(errs...)
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

// HasAPIKey reports whether a language model can be used.
func (c *Config) HasAPIKey() bool { return c.APIKey != "" }

// Gemini returns the LLM client configuration.
func (c *Config) Gemini() llm.Config {
	return llm.Config{
		APIKey:   c.APIKey,
		Model:    c.Model,
		Endpoint: c.Endpoint,
		Timeout:  c.LLMTimeout,
		RPS:      c.RateLimitRPS,
		Burst:    c.RateLimitBurst,
	}
}

// Events returns the event log configuration. console may be nil.
func (c *Config) Events(console io.Writer) eventlog.Config {
	return eventlog.Config{
		Path:    c.EventLog,
		Level:   c.SlogLevel(),
		Console: console,
		SeqURL:  c.SeqURL,
	}
}

// SandboxOptions returns the executor settings.
func (c *Config) SandboxOptions() []sandbox.Option {
	return []sandbox.Option{
		sandbox.WithCacheSize(c.CacheSize),
		sandbox.WithSlowThreshold(c.SlowThreshold),
		sandbox.WithTimeout(c.ExecTimeout),
	}
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func (c *Config) setDuration(dst *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		c.warnf("ignoring %s=%q: %v", key, v, err)
		return
	}
	*dst = d
}

func (c *Config) setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.warnf("ignoring %s=%q: not an integer", key, v)
		return
	}
	*dst = n
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch v {
	case "0", "false", "no", "off":
		return false
	case "1", "true", "yes", "on":
		return true
	}
	return defaultVal
}
