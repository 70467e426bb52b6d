package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadFrom_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "z-novel-blueprint", cfg.App.Name)
	assert.Equal(t, "Novel_directory.txt", cfg.Blueprint.DirectoryFile)
	assert.Equal(t, "Novel_architecture.txt", cfg.Blueprint.ArchitectureFile)
	assert.Equal(t, 4096, cfg.Blueprint.MaxTokens)
	assert.Equal(t, 100, cfg.Blueprint.ContextChapterLimit)
	assert.Equal(t, 5, cfg.Blueprint.FallbackUnitWidth)
	assert.Equal(t, UnitPolicyReuse, cfg.Blueprint.UnitPolicy)
	assert.Equal(t, "memory", cfg.Lock.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Lock.TTL)
	assert.Equal(t, "localhost:6379", cfg.Cache.Redis.Addr())
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.HTTP.Addr())
	assert.Zero(t, cfg.Server.HTTP.WriteTimeout)
	assert.Equal(t, []string{"*"}, cfg.Security.CORS.AllowedOrigins)
}

func TestLoadFrom_FileEnvOverlayAndExpansion(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "staging")
	t.Setenv("BLUEPRINT_TEST_KEY", "sk-test")

	writeConfig(t, dir, "config.yaml", `
blueprint:
  max_tokens: 8192
  unit_policy: regenerate
llm:
  default_provider: deepseek
  providers:
    deepseek:
      api_key: ${BLUEPRINT_TEST_KEY}
      base_url: ${BLUEPRINT_TEST_URL:https://api.deepseek.com/v1}
      model: deepseek-chat
      max_tokens: 8192
      timeout: 90s
`)
	writeConfig(t, dir, "config.staging.yaml", `
blueprint:
  provider: backup
`)

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, 8192, cfg.Blueprint.MaxTokens)
	assert.Equal(t, UnitPolicyRegenerate, cfg.Blueprint.UnitPolicy)
	assert.Equal(t, "backup", cfg.ProviderName())

	p, ok := cfg.LLM.Providers["deepseek"]
	require.True(t, ok)
	assert.Equal(t, "sk-test", p.APIKey)
	assert.Equal(t, "https://api.deepseek.com/v1", p.BaseURL)
	assert.Equal(t, 90*time.Second, p.Timeout)
}

func TestLoadFrom_InvalidPolicy(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "test")
	writeConfig(t, dir, "config.yaml", "blueprint:\n  unit_policy: sometimes\n")

	_, err := LoadFrom(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unit_policy")
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("EXPAND_SET", "yes")

	assert.Equal(t, "a=yes", expandEnv("a=${EXPAND_SET}"))
	assert.Equal(t, "b=fallback", expandEnv("b=${EXPAND_UNSET_VAR:fallback}"))
	assert.Equal(t, "c=${EXPAND_UNSET_VAR}", expandEnv("c=${EXPAND_UNSET_VAR}"))
}
