// Package watcher provides file system watching for the project host.
//
// Watches are reference counted per directory: a directory watched flat by one
// subscription and recursively by another stays watched until both release it.
// Recursive watches follow directories created under their root.
package watcher

import (
	"errors"
	"time"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed = errors.New("watcher is closed")
	ErrNotWatching   = errors.New("path is not being watched")
	ErrPathNotExist  = errors.New("path does not exist")
)

// Op represents the type of file system operation.
type Op uint32

const (
	// OpCreate indicates a file or directory was created.
	OpCreate Op = 1 << iota
	// OpWrite indicates a file was written to.
	OpWrite
	// OpRemove indicates a file or directory was removed.
	OpRemove
	// OpRename indicates a file or directory was renamed.
	OpRename
	// OpChmod indicates file permissions were changed.
	OpChmod
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	case OpChmod:
		return "CHMOD"
	default:
		return "UNKNOWN"
	}
}

// Has returns true if the operation includes the given op.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Event represents a file system change event.
type Event struct {
	// Path is the normalized path of the affected file or directory.
	Path string

	// Op is the operation that occurred.
	Op Op

	// Timestamp is when the event was observed.
	Timestamp time.Time
}

// Watcher monitors file system changes.
type Watcher interface {
	// Watch starts watching a file or a directory and its immediate children.
	Watch(path string) error

	// WatchRecursive starts watching a directory and all subdirectories.
	WatchRecursive(path string) error

	// Unwatch releases one Watch reference on a path.
	Unwatch(path string) error

	// UnwatchRecursive releases one WatchRecursive reference on a directory.
	UnwatchRecursive(path string) error

	// Events returns the channel of file change events.
	// The channel is closed when the watcher is closed.
	Events() <-chan Event

	// Errors returns the channel of watcher errors.
	// The channel is closed when the watcher is closed.
	Errors() <-chan error

	// IsWatching returns true if the path is being watched.
	IsWatching(path string) bool

	// Close stops the watcher and releases resources.
	Close() error
}

// Config holds watcher configuration options.
type Config struct {
	// BufferSize is the size of the event and error channels.
	// Default: 100
	BufferSize int

	// IgnorePatterns are doublestar globs for paths never watched or reported.
	IgnorePatterns []string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize: 100,
		IgnorePatterns: []string{
			"**/.git",
			"**/.git/**",
			"**/node_modules",
			"**/node_modules/**",
		},
	}
}

// WatcherOption configures a watcher.
type WatcherOption func(*Config)

// WithBufferSize sets the channel buffer size.
func WithBufferSize(size int) WatcherOption {
	return func(c *Config) {
		c.BufferSize = size
	}
}

// WithIgnorePatterns replaces the ignore patterns.
func WithIgnorePatterns(patterns []string) WatcherOption {
	return func(c *Config) {
		c.IgnorePatterns = patterns
	}
}
