package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LocalChat/internal/config"
)

func parse(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags(args))

	var f flags
	f.configPath, _ = cmd.Flags().GetString("config")
	f.ollamaURL, _ = cmd.Flags().GetString("ollama-url")
	f.timeout, _ = cmd.Flags().GetString("timeout")
	f.model, _ = cmd.Flags().GetString("model")
	f.dbPath, _ = cmd.Flags().GetString("db")
	f.logDir, _ = cmd.Flags().GetString("log-dir")
	f.style, _ = cmd.Flags().GetString("style")
	f.width, _ = cmd.Flags().GetInt("width")
	f.debug, _ = cmd.Flags().GetBool("debug")
	return loadConfig(cmd, f)
}

func clearEnv(t *testing.T) {
	for _, k := range []string{config.EnvConfig, config.EnvOllamaURL, config.EnvTimeout, config.EnvModel, config.EnvDBPath, config.EnvLogDir} {
		t.Setenv(k, "")
	}
}

func TestFlagsOverrideFileAndEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "localchat.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
ollama_url = "http://file:11434"
model = "from-file"
db_path = "file.db"
`), 0o600))
	t.Setenv(config.EnvModel, "from-env")

	cfg, err := parse(t, "--config", path, "--model", "from-flag", "--timeout", "45", "--debug")
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Model)
	assert.Equal(t, "http://file:11434", cfg.OllamaURL)
	assert.Equal(t, "file.db", cfg.DBPath)
	assert.Equal(t, 45*time.Second, cfg.Timeout.Std())
	assert.True(t, cfg.Debug)
}

func TestDefaultsWithoutFlags(t *testing.T) {
	clearEnv(t)
	cfg, err := parse(t)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultOllamaURL, cfg.OllamaURL)
	assert.Equal(t, config.DefaultTimeout, cfg.Timeout.Std())
	assert.Empty(t, cfg.Model)
}

func TestFlagCorrectsBadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvOllamaURL, "localhost:11434")

	cfg, err := parse(t, "--ollama-url", "http://127.0.0.1:11434")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.OllamaURL)

	_, err = parse(t)
	assert.Error(t, err)
}

func TestInvalidFlags(t *testing.T) {
	clearEnv(t)
	_, err := parse(t, "--timeout", "soon")
	assert.Error(t, err)

	_, err = parse(t, "--ollama-url", "localhost")
	assert.Error(t, err)

	_, err = parse(t, "--style", "neon")
	assert.Error(t, err)
}

func TestRejectsArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"unexpected"})
	cmd.SetOut(&nopWriter{})
	cmd.SetErr(&nopWriter{})
	assert.Error(t, cmd.Execute())
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
