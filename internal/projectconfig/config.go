// Package projectconfig reads and writes project configuration files.
//
// A configuration file is JSON with an optional explicit "files" list,
// "include" and "exclude" glob lists, and a "compilerOptions" object.
// Paths in the file are relative to the file's directory. Include patterns
// that contain wildcards contribute wildcard directories: the directories a
// project must watch to notice files that start matching.
package projectconfig

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dshills/projectd/internal/analysis"
	"github.com/dshills/projectd/internal/vfs"
)

// Errors returned by configuration parsing.
var (
	// ErrInvalidJSON indicates the configuration file is not valid JSON.
	ErrInvalidJSON = errors.New("invalid configuration JSON")

	// ErrInvalidField indicates a field has the wrong JSON type.
	ErrInvalidField = errors.New("invalid configuration field")
)

// ParseError is returned when a configuration file cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// DefaultInclude applies when a configuration lists neither files nor include.
var DefaultInclude = []string{"**/*"}

// DefaultExclude applies when a configuration has no exclude list.
var DefaultExclude = []string{"node_modules", "bower_components", "jspm_packages"}

// Config is a parsed project configuration. All paths are absolute and
// normalized.
type Config struct {
	Path            string
	Files           []string
	Include         []string
	Exclude         []string
	CompilerOptions analysis.Options

	// WildcardDirectories maps each directory to watch to whether the
	// watch must be recursive.
	WildcardDirectories map[string]bool
}

// Dir returns the directory containing the configuration file.
func (c *Config) Dir() string {
	return path.Dir(c.Path)
}

// Load reads and parses the configuration file at configPath.
func Load(fs vfs.FS, configPath string) (*Config, error) {
	configPath = vfs.Normalize(configPath)
	data, err := fs.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", configPath, err)
	}
	return Parse(configPath, data)
}

// Parse parses configuration data belonging to configPath.
func Parse(configPath string, data []byte) (*Config, error) {
	configPath = vfs.Normalize(configPath)
	if !gjson.ValidBytes(data) {
		return nil, &ParseError{Path: configPath, Err: ErrInvalidJSON}
	}

	dir := path.Dir(configPath)
	cfg := &Config{Path: configPath, CompilerOptions: analysis.Options{}}

	files, err := stringList(data, "files")
	if err != nil {
		return nil, &ParseError{Path: configPath, Err: err}
	}
	include, err := stringList(data, "include")
	if err != nil {
		return nil, &ParseError{Path: configPath, Err: err}
	}
	exclude, err := stringList(data, "exclude")
	if err != nil {
		return nil, &ParseError{Path: configPath, Err: err}
	}

	if files == nil && include == nil {
		include = DefaultInclude
	}
	if exclude == nil {
		exclude = DefaultExclude
	}

	for _, f := range files {
		cfg.Files = append(cfg.Files, resolve(dir, f))
	}
	for _, p := range include {
		cfg.Include = append(cfg.Include, includePattern(resolve(dir, p)))
	}
	for _, p := range exclude {
		cfg.Exclude = append(cfg.Exclude, resolve(dir, p))
	}

	opts := gjson.GetBytes(data, "compilerOptions")
	if opts.Exists() {
		if !opts.IsObject() {
			return nil, &ParseError{Path: configPath, Err: fmt.Errorf("%w: compilerOptions must be an object", ErrInvalidField)}
		}
		opts.ForEach(func(key, value gjson.Result) bool {
			cfg.CompilerOptions[key.String()] = value.Value()
			return true
		})
	}

	cfg.WildcardDirectories = wildcardDirectories(cfg.Include, cfg.Exclude)
	return cfg, nil
}

func stringList(data []byte, field string) ([]string, error) {
	r := gjson.GetBytes(data, field)
	if !r.Exists() || r.Type == gjson.Null {
		return nil, nil
	}
	if !r.IsArray() {
		return nil, fmt.Errorf("%w: %s must be an array", ErrInvalidField, field)
	}
	out := []string{}
	for _, v := range r.Array() {
		if v.Type != gjson.String {
			return nil, fmt.Errorf("%w: %s must contain strings", ErrInvalidField, field)
		}
		out = append(out, v.String())
	}
	return out, nil
}

func resolve(dir, p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(dir, p)
}

// includePattern expands a plain directory pattern to everything under it.
func includePattern(p string) string {
	if hasWildcard(p) || path.Ext(p) != "" {
		return p
	}
	return p + "/**/*"
}

func hasWildcard(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

// wildcardDirectories returns the directories that must be watched for
// includes to pick up new files. A directory covered by a recursive watch of
// an ancestor is dropped.
func wildcardDirectories(include, exclude []string) map[string]bool {
	dirs := make(map[string]bool)
	for _, p := range include {
		if !hasWildcard(p) {
			continue
		}
		base, rest := splitWildcard(p)
		if isExcluded(base, exclude) {
			continue
		}
		recursive := strings.Contains(rest, "/") || strings.Contains(rest, "**")
		dirs[base] = dirs[base] || recursive
	}

	keys := make([]string, 0, len(dirs))
	for d := range dirs {
		keys = append(keys, d)
	}
	sort.Strings(keys)
	for _, d := range keys {
		for _, other := range keys {
			if other != d && dirs[other] && isUnder(d, other) {
				delete(dirs, d)
				break
			}
		}
	}
	return dirs
}

// splitWildcard splits a pattern at the last separator before its first
// wildcard component.
func splitWildcard(p string) (base, rest string) {
	i := strings.IndexAny(p, "*?[{")
	cut := strings.LastIndex(p[:i], "/")
	if cut <= 0 {
		return "/", strings.TrimPrefix(p, "/")
	}
	return p[:cut], p[cut+1:]
}

func isUnder(p, dir string) bool {
	if dir == "/" {
		return p != "/"
	}
	return strings.HasPrefix(p, dir+"/")
}
