// Package config provides configuration for the project service.
//
// Configuration is layered: built-in defaults, then an optional TOML or YAML
// file, then PROJECTD_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/dshills/projectd/internal/scriptinfo"
	"github.com/dshills/projectd/internal/watcher"
)

// Config is the complete service configuration.
type Config struct {
	Log      LogConfig      `toml:"log" yaml:"log"`
	Projects ProjectsConfig `toml:"projects" yaml:"projects"`
	Watch    WatchConfig    `toml:"watch" yaml:"watch"`
	Scripts  ScriptsConfig  `toml:"scripts" yaml:"scripts"`
}

// LogConfig controls logging output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" yaml:"level"`

	// Format is text or json.
	Format string `toml:"format" yaml:"format"`
}

// ProjectsConfig controls project discovery and analysis.
type ProjectsConfig struct {
	// ConfigFileNames are searched for, in order, in each ancestor directory
	// of an opened file.
	ConfigFileNames []string `toml:"config_file_names" yaml:"config_file_names"`

	// LibDirectory holds the default library files.
	LibDirectory string `toml:"lib_directory" yaml:"lib_directory"`

	// DisableLanguageService starts every project with the null binding.
	DisableLanguageService bool `toml:"disable_language_service" yaml:"disable_language_service"`
}

// WatchConfig controls file watching.
type WatchConfig struct {
	IgnorePatterns []string `toml:"ignore_patterns" yaml:"ignore_patterns"`
	BufferSize     int      `toml:"buffer_size" yaml:"buffer_size"`
}

// ScriptsConfig controls the script-info registry.
type ScriptsConfig struct {
	// SnapshotCacheSize is the number of closed file contents kept in memory.
	SnapshotCacheSize int `toml:"snapshot_cache_size" yaml:"snapshot_cache_size"`
}

// Default returns the built-in configuration.
func Default() Config {
	wc := watcher.DefaultConfig()
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Projects: ProjectsConfig{
			ConfigFileNames: []string{"projectd.json", "tsconfig.json"},
		},
		Watch: WatchConfig{
			IgnorePatterns: wc.IgnorePatterns,
			BufferSize:     wc.BufferSize,
		},
		Scripts: ScriptsConfig{
			SnapshotCacheSize: scriptinfo.DefaultSnapshotCacheSize,
		},
	}
}

// Validate checks the configuration for values the service cannot use.
func (c Config) Validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalidValue, c.Log.Format)
	}
	if len(c.Projects.ConfigFileNames) == 0 {
		return fmt.Errorf("%w: projects.config_file_names is empty", ErrInvalidValue)
	}
	for _, name := range c.Projects.ConfigFileNames {
		if name == "" || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("%w: config file name %q", ErrInvalidValue, name)
		}
	}
	if c.Watch.BufferSize <= 0 {
		return fmt.Errorf("%w: watch.buffer_size must be positive", ErrInvalidValue)
	}
	if c.Scripts.SnapshotCacheSize <= 0 {
		return fmt.Errorf("%w: scripts.snapshot_cache_size must be positive", ErrInvalidValue)
	}
	return nil
}
