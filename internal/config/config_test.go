package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMinimal(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "quantra.yaml", `
Name: quantra-test
Host: 127.0.0.1
Port: 8888
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Env)
	assert.True(t, cfg.IsTestEnv())
	assert.Nil(t, cfg.LLM.Value)
	assert.Nil(t, cfg.Manager.Value)
	assert.Equal(t, dir, cfg.BaseDir())
}

func TestLoadHydratesSections(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "llm.yaml", `
base_url: https://api.example.com/v1
api_key: test-key
default_model: test-model
timeout: 30s
`)
	writeFile(t, dir, "executor.yaml", `
max_leverage: 10
min_confidence: 0.5
max_positions: 3
template_path: prompt.tmpl
`)
	path := writeFile(t, dir, "quantra.yaml", `
Name: quantra-test
Host: 127.0.0.1
Port: 8888
Env: dev
LLM:
  File: llm.yaml
Executor:
  File: executor.yaml
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.IsTestEnv())

	require.NotNil(t, cfg.LLM.Value)
	assert.Equal(t, "test-model", cfg.LLM.Value.DefaultModel)

	require.NotNil(t, cfg.Executor.Value)
	assert.Equal(t, 10, cfg.Executor.Value.MaxLeverage)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "quantra.yaml", `
Name: quantra-test
Host: 127.0.0.1
Port: 8888
Env: staging
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "env must be one of")
}

func TestLoadBrokenSectionFails(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "quantra.yaml", `
Name: quantra-test
Host: 127.0.0.1
Port: 8888
LLM:
  File: missing.yaml
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm config")
}
