package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, []string{"projectd.json", "tsconfig.json"}, cfg.Projects.ConfigFileNames)
	assert.Equal(t, 256, cfg.Scripts.SnapshotCacheSize)
	assert.Contains(t, cfg.Watch.IgnorePatterns, "**/node_modules")
}

func TestDecode_TOML(t *testing.T) {
	cfg := Default()
	data := []byte(`
[log]
level = "debug"

[projects]
config_file_names = ["jsconfig.json"]
disable_language_service = true

[scripts]
snapshot_cache_size = 32
`)
	require.NoError(t, Decode("projectd.toml", data, &cfg))

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "unset keys keep defaults")
	assert.Equal(t, []string{"jsconfig.json"}, cfg.Projects.ConfigFileNames)
	assert.True(t, cfg.Projects.DisableLanguageService)
	assert.Equal(t, 32, cfg.Scripts.SnapshotCacheSize)
}

func TestDecode_YAML(t *testing.T) {
	cfg := Default()
	data := []byte(`
log:
  format: json
watch:
  buffer_size: 10
  ignore_patterns: ["**/dist/**"]
`)
	require.NoError(t, Decode("projectd.yml", data, &cfg))

	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 10, cfg.Watch.BufferSize)
	assert.Equal(t, []string{"**/dist/**"}, cfg.Watch.IgnorePatterns)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestDecode_Errors(t *testing.T) {
	cfg := Default()
	err := Decode("projectd.ini", nil, &cfg)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	err = Decode("projectd.toml", []byte("[log\nlevel ="), &cfg)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "projectd.toml", pe.Path)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(&cfg, envMap(map[string]string{
		EnvLogLevel:               "warn",
		EnvLogFormat:              "json",
		EnvLibDir:                 "/opt/lib",
		EnvDisableLanguageService: "yes",
	}))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/opt/lib", cfg.Projects.LibDirectory)
	assert.True(t, cfg.Projects.DisableLanguageService)

	err = ApplyEnv(&cfg, envMap(map[string]string{EnvDisableLanguageService: "maybe"}))
	assert.ErrorIs(t, err, ErrInvalidValue)

	before := cfg
	require.NoError(t, ApplyEnv(&cfg, noEnv))
	assert.Equal(t, before, cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"no config names", func(c *Config) { c.Projects.ConfigFileNames = nil }},
		{"name with separator", func(c *Config) { c.Projects.ConfigFileNames = []string{"a/b.json"} }},
		{"zero buffer", func(c *Config) { c.Watch.BufferSize = 0 }},
		{"zero cache", func(c *Config) { c.Scripts.SnapshotCacheSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidValue)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "projectd.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"error\"\n"), 0o644))

	t.Setenv(EnvLogFormat, "json")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Projects, cfg.Projects)
}
