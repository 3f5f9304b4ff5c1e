package vfs

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// OSFS implements FS using the operating system's file system.
type OSFS struct{}

// NewOSFS creates a new OS file system.
func NewOSFS() *OSFS {
	return &OSFS{}
}

// Ensure OSFS implements FS.
var _ FS = (*OSFS)(nil)

// ReadFile reads the entire file content.
func (f *OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(filepath.FromSlash(path))
}

// WriteFile writes data to a file.
func (f *OSFS) WriteFile(path string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(filepath.FromSlash(path), data, perm)
}

// Stat returns file information.
func (f *OSFS) Stat(path string) (FileInfo, error) {
	info, err := os.Stat(filepath.FromSlash(path))
	if err != nil {
		return FileInfo{}, err
	}
	return fromOS(Normalize(path), info), nil
}

// ReadDir reads a directory and returns its entries.
func (f *OSFS) ReadDir(path string) ([]FileInfo, error) {
	entries, err := os.ReadDir(filepath.FromSlash(path))
	if err != nil {
		return nil, err
	}

	base := Normalize(path)
	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, fromOS(base+"/"+e.Name(), info))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].name < infos[j].name })
	return infos, nil
}

// Walk walks the file tree rooted at root.
func (f *OSFS) Walk(root string, fn WalkFunc) error {
	return filepath.Walk(filepath.FromSlash(root), func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return fn(Normalize(p), FileInfo{}, err)
		}
		return fn(Normalize(p), fromOS(Normalize(p), info), nil)
	})
}

// Exists returns true if the path exists.
func (f *OSFS) Exists(path string) bool {
	_, err := os.Stat(filepath.FromSlash(path))
	return err == nil
}

// IsDir returns true if the path is a directory.
func (f *OSFS) IsDir(path string) bool {
	info, err := os.Stat(filepath.FromSlash(path))
	return err == nil && info.IsDir()
}

func fromOS(path string, info os.FileInfo) FileInfo {
	return NewFileInfo(path, info.Name(), info.Size(), info.Mode(), info.ModTime(), info.IsDir())
}
