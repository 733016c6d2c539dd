package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"), nil)
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Empty(t, cfg.Scope)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "ignore = [\"A.new=bogus\"\nscope = ")

	cfg, err := LoadFile(path, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), path)
	assert.Nil(t, cfg)
}

func TestLoadPriority(t *testing.T) {
	path := writeConfig(t, `
scope = ["app.Service", "app.Repo"]
trim-prefix = "/from/file/"
format = "yaml"
ignore = ["app.Repo.new=single", "app.Cache"]
`)
	t.Setenv("CALLTRACE_TRIM_PREFIX", "/from/env/")
	t.Setenv("CALLTRACE_GROUP", "env-group")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("group", "", "")
	fs.String("format", "json", "")
	require.NoError(t, fs.Parse([]string{"--group", "flag-group"}))

	cfg, err := LoadFile(path, fs)
	require.NoError(t, err)

	assert.Equal(t, []string{"app.Service", "app.Repo"}, cfg.Scope)
	assert.Equal(t, "/from/env/", cfg.TrimPrefix, "env overrides file")
	assert.Equal(t, "flag-group", cfg.Group, "flag overrides env")
	assert.Equal(t, "yaml", cfg.Format, "unset flag keeps file value")

	rules, err := cfg.IgnoreRules()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"app.Repo.new": "single", "app.Cache": "all"}, rules)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"bad format", func(c *Config) { c.Format = "xml" }, true},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, true},
		{"unknown effect", func(c *Config) { c.Ignore = []string{"a.B=some"} }, true},
		{"empty selector", func(c *Config) { c.Ignore = []string{"=all"} }, true},
		{"duplicate selector", func(c *Config) { c.Ignore = []string{"a.B", "a.B=single"} }, true},
		{"relative caller path", func(c *Config) { c.CallerPaths = []string{"rel/file.go"} }, true},
		{"absolute caller path", func(c *Config) { c.CallerPaths = []string{"/abs/file.go"} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Format: "json", Concurrency: 1}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
