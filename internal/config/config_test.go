package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cosmocart.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 9000

[llm]
provider = "openai"
api_key = "sk-test"
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port, "file overrides default")
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "default survives")
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "all", cfg.Chat.DietMode)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("COSMOCART_CHAT__DIET_MODE", "veg")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "veg", cfg.Chat.DietMode)
}

func TestInit_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cosmocart.toml")

	require.NoError(t, Init(path))
	assert.Error(t, Init(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.NoError(t, Validate(cfg))
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	cfg.Chat.DietMode = "carnivore"
	assert.Error(t, Validate(cfg))
	cfg.Chat.DietMode = "veg"

	cfg.LLM.Provider = "skynet"
	assert.Error(t, Validate(cfg))
	cfg.LLM.Provider = "ollama"

	assert.Error(t, ValidateServer(cfg), "server needs database url and jwt secret")
	cfg.Database.URL = "postgres://localhost/cosmocart"
	cfg.Server.JWTSecret = "secret"
	assert.NoError(t, ValidateServer(cfg))
}
