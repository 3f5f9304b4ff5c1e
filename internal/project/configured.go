package project

import (
	"errors"
	"path"
	"sort"

	"github.com/dshills/projectd/internal/host"
	"github.com/dshills/projectd/internal/vfs"
)

// Delivery tags of a configured project's watches.
const (
	TagConfigFile        = "config-file"
	TagConfigDirectory   = "config-directory"
	TagWildcardDirectory = "wildcard-directory"
)

// Configured is the payload of a project backed by a configuration file.
type Configured struct {
	p          *Project
	configPath string

	configWatch    host.Handle
	directoryWatch host.Handle
	wildcards      map[string]wildcardWatch
	openRefs       int
}

type wildcardWatch struct {
	recursive bool
	handle    host.Handle
}

// NewConfigured creates a project identified by configPath.
func NewConfigured(cfg Config, configPath string, roots []string) *Project {
	p := newProject(cfg)
	p.init(&Configured{p: p, configPath: vfs.Normalize(configPath)}, roots)
	return p
}

func (c *Configured) kind() Kind   { return KindConfigured }
func (c *Configured) name() string { return c.configPath }

// ConfigFilePath returns the normalized configuration file path.
func (c *Configured) ConfigFilePath() string { return c.configPath }

// ConfigDirectory returns the directory containing the configuration file.
func (c *Configured) ConfigDirectory() string { return path.Dir(c.configPath) }

// WatchConfigFile subscribes to changes of the configuration file.
func (c *Configured) WatchConfigFile() {
	if c.configWatch != nil {
		return
	}
	c.configWatch = c.p.host.WatchFile(c.configPath, c.p.delivery(TagConfigFile))
}

// WatchConfigDirectory subscribes recursively to the configuration directory.
func (c *Configured) WatchConfigDirectory() {
	if c.directoryWatch != nil {
		return
	}
	c.directoryWatch = c.p.host.WatchDirectory(c.ConfigDirectory(), true, c.p.delivery(TagConfigDirectory))
}

// WatchWildcardDirectories subscribes to each wildcard directory with its
// declared recursion. The configuration directory is skipped since the
// directory watch covers it. Calling it again before Close is a no-op.
func (c *Configured) WatchWildcardDirectories(dirs map[string]bool) {
	if c.wildcards != nil {
		return
	}
	c.wildcards = make(map[string]wildcardWatch)
	c.addWildcards(dirs)
}

// UpdateWildcardDirectories reconciles the wildcard watches with dirs after
// the configuration changed. Watches whose recursion flag changed are
// replaced.
func (c *Configured) UpdateWildcardDirectories(dirs map[string]bool) error {
	if c.wildcards == nil {
		c.WatchWildcardDirectories(dirs)
		return nil
	}

	var errs []error
	for dir, w := range c.wildcards {
		recursive, keep := dirs[dir]
		if keep && recursive == w.recursive {
			continue
		}
		if err := w.handle.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(c.wildcards, dir)
	}
	c.addWildcards(dirs)
	return errors.Join(errs...)
}

func (c *Configured) addWildcards(dirs map[string]bool) {
	configDir := c.ConfigDirectory()
	for _, dir := range sortedKeys(dirs) {
		recursive := dirs[dir]
		dir = vfs.Normalize(dir)
		if dir == configDir {
			continue
		}
		if _, ok := c.wildcards[dir]; ok {
			continue
		}
		c.wildcards[dir] = wildcardWatch{
			recursive: recursive,
			handle:    c.p.host.WatchDirectory(dir, recursive, c.p.delivery(TagWildcardDirectory)),
		}
	}
}

// WildcardDirectories returns the watched wildcard directories and their
// recursion flags.
func (c *Configured) WildcardDirectories() map[string]bool {
	out := make(map[string]bool, len(c.wildcards))
	for dir, w := range c.wildcards {
		out[dir] = w.recursive
	}
	return out
}

// AddOpenRef records an open file that keeps the project alive.
func (c *Configured) AddOpenRef() int {
	c.openRefs++
	return c.openRefs
}

// DeleteOpenRef drops an open file reference and returns the remaining count.
// The owner closes the project when it reaches zero.
func (c *Configured) DeleteOpenRef() int {
	if c.openRefs > 0 {
		c.openRefs--
	}
	return c.openRefs
}

// OpenRefCount returns the number of open file references.
func (c *Configured) OpenRefCount() int { return c.openRefs }

func (c *Configured) release() error {
	var errs []error
	if c.configWatch != nil {
		if err := c.configWatch.Close(); err != nil {
			errs = append(errs, err)
		}
		c.configWatch = nil
	}
	if c.directoryWatch != nil {
		if err := c.directoryWatch.Close(); err != nil {
			errs = append(errs, err)
		}
		c.directoryWatch = nil
	}
	for _, w := range c.wildcards {
		if err := w.handle.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.wildcards = nil
	return errors.Join(errs...)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
