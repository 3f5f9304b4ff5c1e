package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvLogLevel               = "PROJECTD_LOG_LEVEL"
	EnvLogFormat              = "PROJECTD_LOG_FORMAT"
	EnvLibDir                 = "PROJECTD_LIB_DIR"
	EnvDisableLanguageService = "PROJECTD_DISABLE_LANGUAGE_SERVICE"
)

// Load builds the configuration from defaults, the file at path (skipped
// when path is empty or the file does not exist) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := Decode(path, data, &cfg); err != nil {
				return Config{}, err
			}
		}
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode parses data over cfg, choosing TOML or YAML by the path extension.
// Settings absent from data keep their current values.
func Decode(path string, data []byte, cfg *Config) error {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return &ParseError{Path: path, Message: err.Error(), Err: err}
	}
	return nil
}

// ApplyEnv overrides cfg from environment variables found by lookup.
// Empty values are treated as set.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok {
		cfg.Log.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok {
		cfg.Log.Format = v
	}
	if v, ok := lookup(EnvLibDir); ok {
		cfg.Projects.LibDirectory = v
	}
	if v, ok := lookup(EnvDisableLanguageService); ok {
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidValue, EnvDisableLanguageService, err)
		}
		cfg.Projects.DisableLanguageService = b
	}
	return nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "on":
		return true, nil
	case "no", "off", "":
		return false, nil
	}
	return strconv.ParseBool(s)
}
