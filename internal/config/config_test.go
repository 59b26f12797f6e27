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

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, "table", cfg.Format)
	assert.Equal(t, slog.LevelWarn, cfg.Level())
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
}

func TestDecode(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Decode([]byte("locale: sv\nformat: csv\nmax_depth: 8\nhttp_timeout: 5s\n")))
	assert.Equal(t, "sv", cfg.Locale)
	assert.Equal(t, "csv", cfg.Format)
	assert.Equal(t, 8, cfg.MaxDepth)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "warn", cfg.LogLevel, "keys absent from the file keep their defaults")
}

func TestDecode_Empty(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Decode(nil))
	assert.Equal(t, Default(), cfg)
}

func TestDecode_UnknownField(t *testing.T) {
	err := Default().Decode([]byte("formatt: csv\n"))
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(env(map[string]string{
		EnvLocale:      "de",
		EnvLogLevel:    "debug",
		EnvMaxDepth:    "4",
		EnvHTTPTimeout: "2m",
	})))
	assert.Equal(t, "de", cfg.Locale)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, 4, cfg.MaxDepth)
	assert.Equal(t, 2*time.Minute, cfg.HTTPTimeout)

	assert.Error(t, Default().ApplyEnv(env(map[string]string{EnvMaxDepth: "many"})))
	assert.Error(t, Default().ApplyEnv(env(map[string]string{EnvHTTPTimeout: "soon"})))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"locale", func(c *Config) { c.Locale = "not a locale!" }, "invalid locale"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log_level"},
		{"format", func(c *Config) { c.Format = "xml" }, "invalid format"},
		{"max depth", func(c *Config) { c.MaxDepth = 0 }, "invalid max_depth"},
		{"data dir", func(c *Config) { c.DataDir = filepath.Join(os.TempDir(), "objq-missing-dir") }, "data_dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "objq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: "+dir+"\nlog_level: info\n"), 0o644))
	t.Setenv(EnvLogLevel, "error")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, slog.LevelError, cfg.Level(), "environment overrides the file")
}

func TestViewStorePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	cfg := Default()
	cfg.ViewStore = "~/views.yaml"
	assert.Equal(t, filepath.Join(home, "views.yaml"), cfg.ViewStorePath())
}
