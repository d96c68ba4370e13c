package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
server:
  port: "8080"
db:
  host: localhost
  password: ${TEST_DB_PASSWORD}
intent:
  base_url: ${TEST_OLLAMA_URL}
`)
	writeFile(t, dir, "staging.yaml", `
db:
  host: postgres
`)
	writeFile(t, dir, "secrets.env", `
# comment
TEST_DB_PASSWORD="s3cret"
`)
	t.Setenv("TEST_OLLAMA_URL", "http://ollama:11434")

	cfg, err := LoadConfig("staging", dir)
	require.NoError(t, err)

	db := cfg["db"].(map[string]interface{})
	assert.Equal(t, "postgres", db["host"])
	assert.Equal(t, "s3cret", db["password"])
	assert.Equal(t, "http://ollama:11434", cfg["intent"].(map[string]interface{})["base_url"])
	assert.Equal(t, "8080", cfg["server"].(map[string]interface{})["port"])
}

func TestLoadConfigExpandsListsAndKeepsUnknownPlaceholders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
mq:
  queues:
    - ${TEST_QUEUE_PREFIX}.audit
    - static
jwt:
  secret: ${TEST_UNSET_SECRET_9F2}
`)
	writeFile(t, dir, "secrets.env", "export TEST_QUEUE_PREFIX='intent'\nBROKEN_LINE\n")

	cfg, err := LoadConfig("", dir)
	require.NoError(t, err)

	queues := cfg["mq"].(map[string]interface{})["queues"].([]interface{})
	assert.Equal(t, []interface{}{"intent.audit", "static"}, queues)
	assert.Equal(t, "${TEST_UNSET_SECRET_9F2}", cfg["jwt"].(map[string]interface{})["secret"])
}

func TestLoadConfigMissingBase(t *testing.T) {
	_, err := LoadConfig("local", t.TempDir())
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
intent:
  enabled: true
  timeout: 10s
  breaker:
    failure_threshold: 3
    open_timeout: 30s
`)
	writeFile(t, dir, "local.yaml", `
intent:
  enabled: false
  breaker:
    failure_threshold: 5
`)

	var out struct {
		Intent IntentConfig `yaml:"intent"`
	}
	require.NoError(t, Decode("local", dir, &out))
	assert.False(t, out.Intent.Enabled)
	assert.Equal(t, 10*time.Second, out.Intent.Timeout)
	assert.Equal(t, 5, out.Intent.Breaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, out.Intent.Breaker.OpenTimeout)
}

func TestOverrideIntentFromEnv(t *testing.T) {
	t.Setenv("MOLDUBOT_INTENT_MODEL", "qwen2.5:3b")
	t.Setenv("MOLDUBOT_INTENT_ENABLED", "false")
	t.Setenv("OLLAMA_BASE_URL", "")

	cfg := IntentConfig{Enabled: true, Model: "exaone3.5:2.4b", BaseURL: "http://127.0.0.1:11434"}
	OverrideIntentFromEnv(&cfg)
	assert.Equal(t, "qwen2.5:3b", cfg.Model)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.BaseURL)
}

func TestOverrideDBFromEnvIgnoresBadPort(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "not-a-port")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("DB_NAME", "")

	cfg := DBConfig{Host: "localhost", Port: 5432, User: "postgres"}
	OverrideDBFromEnv(&cfg)
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "postgres", cfg.User)
}
