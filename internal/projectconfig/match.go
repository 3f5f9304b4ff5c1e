package projectconfig

import (
	"errors"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/dshills/projectd/internal/analysis"
	"github.com/dshills/projectd/internal/vfs"
)

// Extensions returns the file extensions a configuration includes.
func (c *Config) Extensions() []string {
	exts := []string{".ts", ".tsx", ".d.ts"}
	if c.CompilerOptions.Bool(analysis.OptionAllowJS) {
		exts = append(exts, ".js", ".jsx")
	}
	return exts
}

// Matches reports whether a file belongs to the configuration: explicitly
// listed, or matched by an include pattern with a supported extension and
// not excluded.
func (c *Config) Matches(file string) bool {
	file = vfs.Normalize(file)
	for _, f := range c.Files {
		if f == file {
			return true
		}
	}
	if !hasExtension(file, c.Extensions()) || isExcluded(file, c.Exclude) {
		return false
	}
	for _, p := range c.Include {
		if ok, _ := doublestar.Match(p, file); ok {
			return true
		}
	}
	return false
}

// RootFiles returns the configured root files: explicit files that exist,
// followed by included files in lexical order.
func (c *Config) RootFiles(fs vfs.FS) ([]string, error) {
	seen := make(map[string]bool)
	var roots []string
	for _, f := range c.Files {
		if !seen[f] && fs.Exists(f) {
			seen[f] = true
			roots = append(roots, f)
		}
	}

	var included []string
	for _, base := range c.walkRoots() {
		if !fs.IsDir(base) {
			continue
		}
		err := fs.Walk(base, func(p string, info vfs.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.IsDir() {
				if p != base && isExcluded(p, c.Exclude) {
					return vfs.SkipDir
				}
				return nil
			}
			if !seen[p] && c.Matches(p) {
				seen[p] = true
				included = append(included, p)
			}
			return nil
		})
		if err != nil && !errors.Is(err, vfs.SkipDir) {
			return nil, err
		}
	}
	sort.Strings(included)
	return append(roots, included...), nil
}

// walkRoots returns the base directories of include patterns, without
// directories nested in another base.
func (c *Config) walkRoots() []string {
	var bases []string
	for _, p := range c.Include {
		base := p
		if hasWildcard(p) {
			base, _ = splitWildcard(p)
		} else {
			base = path.Dir(p)
		}
		bases = append(bases, base)
	}
	sort.Strings(bases)

	var out []string
	for _, b := range bases {
		nested := false
		for _, o := range out {
			if o == b || isUnder(b, o) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, b)
		}
	}
	return out
}

// isExcluded reports whether p or one of its ancestors matches an exclude
// pattern.
func isExcluded(p string, exclude []string) bool {
	for _, pattern := range exclude {
		if hasWildcard(pattern) {
			if ok, _ := doublestar.Match(pattern, p); ok {
				return true
			}
			if ok, _ := doublestar.Match(pattern+"/**", p); ok {
				return true
			}
			continue
		}
		if p == pattern || strings.HasPrefix(p, pattern+"/") {
			return true
		}
	}
	return false
}

func hasExtension(file string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(file, ext) {
			return true
		}
	}
	return false
}
