// Package vfs provides the file system abstraction used by the project service.
//
// The FS interface lets the script-info registry, the host, the project
// configuration reader and the import-graph engine share one view of the disk.
// OSFS is the production implementation; MemFS backs tests.
package vfs

import (
	"io/fs"
	"path/filepath"
	"time"
)

// FS is the subset of file system operations the project service needs.
type FS interface {
	// ReadFile reads the entire file content.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating it if necessary.
	WriteFile(path string, data []byte, perm fs.FileMode) error

	// Stat returns file information.
	Stat(path string) (FileInfo, error)

	// ReadDir reads a directory and returns its entries sorted by name.
	ReadDir(path string) ([]FileInfo, error)

	// Walk walks the file tree rooted at root in lexical order.
	Walk(root string, fn WalkFunc) error

	// Exists returns true if the path exists.
	Exists(path string) bool

	// IsDir returns true if the path is a directory.
	IsDir(path string) bool
}

// FileInfo describes a file or directory.
type FileInfo struct {
	path    string
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

// NewFileInfo creates a FileInfo from the given parameters.
func NewFileInfo(path, name string, size int64, mode fs.FileMode, modTime time.Time, isDir bool) FileInfo {
	return FileInfo{
		path:    path,
		name:    name,
		size:    size,
		mode:    mode,
		modTime: modTime,
		isDir:   isDir,
	}
}

// Path returns the full path.
func (fi FileInfo) Path() string { return fi.path }

// Name returns the base name.
func (fi FileInfo) Name() string { return fi.name }

// Size returns the file size in bytes.
func (fi FileInfo) Size() int64 { return fi.size }

// Mode returns the file mode.
func (fi FileInfo) Mode() fs.FileMode { return fi.mode }

// ModTime returns the modification time.
func (fi FileInfo) ModTime() time.Time { return fi.modTime }

// IsDir returns true if this is a directory.
func (fi FileInfo) IsDir() bool { return fi.isDir }

// WalkFunc is the type of function called by Walk.
// Returning SkipDir from a directory skips its contents.
type WalkFunc func(path string, info FileInfo, err error) error

// SkipDir is used as a return value from WalkFunc to skip a directory.
var SkipDir = fs.SkipDir

// Normalize returns the canonical form of a path: cleaned, slash separated.
// Every path key held by the registry, the projects and the host is normalized.
func Normalize(path string) string {
	if path == "" {
		return ""
	}
	return filepath.ToSlash(filepath.Clean(path))
}
