package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DOCFLOW_STATE_DIR", "DATABASE_URL", "DOCFLOW_IN_MEMORY", "DOCFLOW_MAX_TURNS", "REDIS_ADDR",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "DOCFLOW_AUTOSESSION_TIMEOUT", "DOCFLOW_LOG_LEVEL", "DOCFLOW_DEBUG", "API_ADDR"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultStateDir, cfg.StateDir)
	assert.Equal(t, filepath.Join(DefaultStateDir, DefaultDBFileName), cfg.Database.DSN)
	assert.Equal(t, 30*time.Minute, cfg.AutoSession.Timeout)
	assert.Equal(t, DefaultModel, cfg.OpenAI.Model)
	assert.Equal(t, DefaultRedisPrefix, cfg.Redis.Prefix)
	assert.Equal(t, DefaultAPIAddr, cfg.API.Addr)
}

func TestLoadFileWithEnvExpansion(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_DOCFLOW_KEY", "sk-test")
	path := writeConfig(t, `
state_dir: /tmp/docflow-state
database:
  max_turns_per_session: 200
openai:
  api_key: ${TEST_DOCFLOW_KEY}
  model: gpt-4o
auto_session:
  timeout: 45m
agents:
  - name: reviewer
    display_name: Reviewer
    phase: design
logging:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, 45*time.Minute, cfg.AutoSession.Timeout)
	assert.Equal(t, 200, cfg.Database.MaxTurnsPerSession)
	assert.Equal(t, "/tmp/docflow-state/docflow.db", cfg.Database.DSN)
	require.Len(t, cfg.Agents, 1)
	assert.Equal(t, "reviewer", cfg.Agents[0].Name)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/docflow")
	t.Setenv("DOCFLOW_AUTOSESSION_TIMEOUT", "5m")
	t.Setenv("DOCFLOW_DEBUG", "true")
	path := writeConfig(t, "auto_session:\n  timeout: 1h\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/docflow", cfg.Database.DSN)
	assert.Equal(t, 5*time.Minute, cfg.AutoSession.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestInMemory(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOCFLOW_IN_MEMORY", "yes")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Database.DSN)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "auto_session:\n  timeout: soon\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "logging:\n  level: loud\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "agents:\n  - name: a\n  - name: a\n"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "json"
	var buf bytes.Buffer
	cfg.NewLogger(&buf).Info("hello", "k", "v")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))

	buf.Reset()
	cfg.Logging.Level = "error"
	cfg.NewLogger(&buf).Info("suppressed")
	assert.Empty(t, buf.String())
}
