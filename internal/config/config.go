// Package config loads DocFlow configuration from an optional YAML file, the
// environment, and .env files. Values in the YAML file may reference
// environment variables as ${VAR_NAME}.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/BTreeMap/DocFlow/internal/models"
	"github.com/BTreeMap/DocFlow/internal/util"
)

// Defaults.
const (
	DefaultStateDir       = ".docflow"
	DefaultDBFileName     = "docflow.db"
	DefaultModel          = "gpt-4o-mini"
	DefaultRedisPrefix    = "docflow:"
	DefaultAutoSessionTTL = 30 * time.Minute
	DefaultAPIAddr        = "127.0.0.1:8080"
)

// Config is the complete DocFlow configuration.
type Config struct {
	StateDir    string            `yaml:"state_dir"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	AutoSession AutoSessionConfig `yaml:"auto_session"`
	Questions   QuestionsConfig   `yaml:"questions"`
	Agents      []models.Agent    `yaml:"agents"`
	Logging     LoggingConfig     `yaml:"logging"`
	API         APIConfig         `yaml:"api"`
}

// DatabaseConfig selects the session store. An empty DSN means SQLite in the state directory.
type DatabaseConfig struct {
	DSN                string `yaml:"dsn"`
	InMemory           bool   `yaml:"in_memory"`
	MaxTurnsPerSession int    `yaml:"max_turns_per_session"`
}

// RedisConfig enables Redis for the auto-session record when Addr is set.
type RedisConfig struct {
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix"`
}

// OpenAIConfig configures the language-model client. No key disables it.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	MaxFollowups int    `yaml:"max_followups"`
}

// AutoSessionConfig holds the auto-session timeout.
type AutoSessionConfig struct {
	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// QuestionsConfig points at a custom question bank.
type QuestionsConfig struct {
	BankPath string `yaml:"bank_path"`
}

// APIConfig configures the HTTP server started by `docflow serve`.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		StateDir:    DefaultStateDir,
		Redis:       RedisConfig{Prefix: DefaultRedisPrefix},
		OpenAI:      OpenAIConfig{Model: DefaultModel},
		AutoSession: AutoSessionConfig{Timeout: DefaultAutoSessionTTL},
		Logging:     LoggingConfig{Level: "info", Format: "text"},
		API:         APIConfig{Addr: DefaultAPIAddr},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then environment overrides. A .env file in the working directory is
// loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyEnv()
	cfg.fillDerived()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	slog.Debug("configuration loaded",
		"state_dir", cfg.StateDir,
		"dsn_set", cfg.Database.DSN != "",
		"in_memory", cfg.Database.InMemory,
		"redis_set", cfg.Redis.Addr != "",
		"openai_key_set", cfg.OpenAI.APIKey != "",
		"auto_session_timeout", cfg.AutoSession.Timeout)
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or "" if unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func parseDurations(cfg *Config) error {
	if cfg.AutoSession.TimeoutRaw == "" {
		return nil
	}
	d, err := time.ParseDuration(cfg.AutoSession.TimeoutRaw)
	if err != nil {
		return fmt.Errorf("parsing auto_session.timeout %q: %w", cfg.AutoSession.TimeoutRaw, err)
	}
	cfg.AutoSession.Timeout = d
	return nil
}

// applyEnv lets environment variables override file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("DOCFLOW_STATE_DIR"); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	c.Database.InMemory = util.ParseBoolEnv("DOCFLOW_IN_MEMORY", c.Database.InMemory)
	c.Database.MaxTurnsPerSession = util.ParseIntEnv("DOCFLOW_MAX_TURNS", c.Database.MaxTurnsPerSession)
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.OpenAI.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.OpenAI.Model = v
	}
	c.AutoSession.Timeout = util.ParseDurationEnv("DOCFLOW_AUTOSESSION_TIMEOUT", c.AutoSession.Timeout)
	if v := os.Getenv("DOCFLOW_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		c.API.Addr = v
	}
	if util.ParseBoolEnv("DOCFLOW_DEBUG", false) {
		c.Logging.Level = "debug"
	}
}

func (c *Config) fillDerived() {
	if c.StateDir == "" {
		c.StateDir = DefaultStateDir
	}
	if c.Database.DSN == "" && !c.Database.InMemory {
		c.Database.DSN = filepath.Join(c.StateDir, DefaultDBFileName)
	}
	if c.Database.InMemory {
		c.Database.DSN = ""
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = DefaultRedisPrefix
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = DefaultModel
	}
	if c.AutoSession.Timeout <= 0 {
		c.AutoSession.Timeout = DefaultAutoSessionTTL
	}
	if c.API.Addr == "" {
		c.API.Addr = DefaultAPIAddr
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Database.MaxTurnsPerSession < 0 {
		return fmt.Errorf("database.max_turns_per_session must not be negative")
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("agents: %w", err)
		}
		if seen[a.Name] {
			return fmt.Errorf("agents: duplicate agent %q", a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

// NewLogger builds the slog logger the configuration describes.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Logging.Level)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Logging.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", s)
	}
}
