package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("ZNW_TEST_HOST", "db.internal")

	assert.Equal(t, "host: db.internal", expandEnv("host: ${ZNW_TEST_HOST}"))
	assert.Equal(t, "host: db.internal", expandEnv("host: ${ZNW_TEST_HOST:localhost}"))
	assert.Equal(t, "port: 5432", expandEnv("port: ${ZNW_TEST_UNSET_PORT:5432}"))
	assert.Equal(t, "key: ", expandEnv("key: ${ZNW_TEST_UNSET_KEY:}"))
	assert.Equal(t, "key: ${ZNW_TEST_UNSET_KEY}", expandEnv("key: ${ZNW_TEST_UNSET_KEY}"))
}

func TestLoadFrom_DefaultsAndEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "staging")
	t.Setenv("ZNW_TEST_PG_HOST", "pg.staging")

	writeFile(t, dir, "config.yaml", `
app:
  name: z-novel-writer
database:
  postgres:
    host: ${ZNW_TEST_PG_HOST:localhost}
    password: ${ZNW_TEST_PG_PASSWORD:secret}
llm:
  default_provider: primary
  providers:
    primary:
      model: qwen-plus
      timeout: 60s
synthesis:
  primary_provider: primary
  secondary_provider: backup
`)
	writeFile(t, dir, "config.staging.yaml", `
server:
  http:
    port: 9090
generation:
  connectivity_timeout: 10s
`)

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "z-novel-writer", cfg.App.Name)
	assert.Equal(t, "pg.staging", cfg.Database.Postgres.Host)
	assert.Equal(t, "secret", cfg.Database.Postgres.Password)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, 9090, cfg.Server.HTTP.Port)
	assert.Equal(t, 15*time.Minute, cfg.Server.HTTP.WriteTimeout)

	require.Contains(t, cfg.LLM.Providers, "primary")
	assert.Equal(t, "qwen-plus", cfg.LLM.Providers["primary"].Model)
	assert.Equal(t, time.Minute, cfg.LLM.Providers["primary"].Timeout)

	assert.Equal(t, "backup", cfg.Synthesis.SecondaryProvider)
	assert.Equal(t, []float64{0.7, 0.9, 1.1}, cfg.Synthesis.Temperatures)
	assert.Equal(t, 120*time.Second, cfg.Synthesis.AttemptTimeout)

	assert.Equal(t, 10*time.Second, cfg.Generation.ConnectivityTimeout)
	assert.Equal(t, time.Minute, cfg.Generation.ChunkIdleTimeout)
	assert.Equal(t, 7, cfg.Generation.CharacterCap)
	assert.Equal(t, 3, cfg.Generation.CharacterFloor)

	assert.InDelta(t, 0.6, cfg.Selection.MinRelevance, 1e-9)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 6, cfg.Retrieval.TimeWindow)
	assert.Equal(t, 3, cfg.Messaging.RedisStream.RetryLimit)
	assert.Equal(t, "/metrics", cfg.Observability.Metrics.Path)
}

func TestLoadFrom_MissingBaseFile(t *testing.T) {
	_, err := LoadFrom(t.TempDir())
	assert.Error(t, err)
}
