package vfs

import (
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"
)

// MemFS implements FS using an in-memory file system.
// Writing a file creates its missing parent directories.
//
// MemFS is safe for concurrent use.
type MemFS struct {
	mu    sync.RWMutex
	files map[string]*memFile
	dirs  map[string]bool
}

type memFile struct {
	content []byte
	mode    fs.FileMode
	modTime time.Time
}

// NewMemFS creates a new in-memory file system.
func NewMemFS() *MemFS {
	return &MemFS{
		files: make(map[string]*memFile),
		dirs:  map[string]bool{"/": true},
	}
}

// Ensure MemFS implements FS.
var _ FS = (*MemFS)(nil)

// ReadFile reads the entire file content.
func (m *MemFS) ReadFile(filePath string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath = cleanPath(filePath)
	f, ok := m.files[filePath]
	if !ok {
		if m.dirs[filePath] {
			return nil, &fs.PathError{Op: "read", Path: filePath, Err: syscall.EISDIR}
		}
		return nil, &fs.PathError{Op: "read", Path: filePath, Err: fs.ErrNotExist}
	}

	content := make([]byte, len(f.content))
	copy(content, f.content)
	return content, nil
}

// WriteFile writes data to a file, creating parent directories as needed.
func (m *MemFS) WriteFile(filePath string, data []byte, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	filePath = cleanPath(filePath)
	if m.dirs[filePath] {
		return &fs.PathError{Op: "write", Path: filePath, Err: syscall.EISDIR}
	}
	m.mkdirAllLocked(path.Dir(filePath))

	content := make([]byte, len(data))
	copy(content, data)
	m.files[filePath] = &memFile{content: content, mode: perm, modTime: time.Now()}
	return nil
}

// Stat returns file information.
func (m *MemFS) Stat(filePath string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statLocked(cleanPath(filePath))
}

func (m *MemFS) statLocked(filePath string) (FileInfo, error) {
	if f, ok := m.files[filePath]; ok {
		return NewFileInfo(filePath, path.Base(filePath), int64(len(f.content)), f.mode, f.modTime, false), nil
	}
	if m.dirs[filePath] {
		return NewFileInfo(filePath, path.Base(filePath), 0, fs.ModeDir|0755, time.Time{}, true), nil
	}
	return FileInfo{}, &fs.PathError{Op: "stat", Path: filePath, Err: fs.ErrNotExist}
}

// ReadDir reads a directory and returns its entries sorted by name.
func (m *MemFS) ReadDir(dirPath string) ([]FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readDirLocked(cleanPath(dirPath))
}

func (m *MemFS) readDirLocked(dirPath string) ([]FileInfo, error) {
	if !m.dirs[dirPath] {
		if _, ok := m.files[dirPath]; ok {
			return nil, &fs.PathError{Op: "readdir", Path: dirPath, Err: syscall.ENOTDIR}
		}
		return nil, &fs.PathError{Op: "readdir", Path: dirPath, Err: fs.ErrNotExist}
	}

	var infos []FileInfo
	for p := range m.files {
		if p != "/" && path.Dir(p) == dirPath {
			info, _ := m.statLocked(p)
			infos = append(infos, info)
		}
	}
	for p := range m.dirs {
		if p != "/" && path.Dir(p) == dirPath {
			info, _ := m.statLocked(p)
			infos = append(infos, info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
	return infos, nil
}

// Walk walks the file tree rooted at root in lexical order.
func (m *MemFS) Walk(root string, fn WalkFunc) error {
	root = cleanPath(root)
	info, err := m.Stat(root)
	if err != nil {
		return fn(root, FileInfo{}, err)
	}
	err = m.walk(root, info, fn)
	if err == SkipDir {
		return nil
	}
	return err
}

func (m *MemFS) walk(p string, info FileInfo, fn WalkFunc) error {
	if err := fn(p, info, nil); err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	entries, err := m.ReadDir(p)
	if err != nil {
		return fn(p, info, err)
	}
	for _, e := range entries {
		if err := m.walk(e.Path(), e, fn); err != nil {
			if err == SkipDir && e.IsDir() {
				continue
			}
			return err
		}
	}
	return nil
}

// Exists returns true if the path exists.
func (m *MemFS) Exists(filePath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath = cleanPath(filePath)
	_, isFile := m.files[filePath]
	return isFile || m.dirs[filePath]
}

// IsDir returns true if the path is a directory.
func (m *MemFS) IsDir(filePath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirs[cleanPath(filePath)]
}

// Remove removes a file or an empty directory.
func (m *MemFS) Remove(filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	filePath = cleanPath(filePath)
	if _, ok := m.files[filePath]; ok {
		delete(m.files, filePath)
		return nil
	}
	if !m.dirs[filePath] {
		return &fs.PathError{Op: "remove", Path: filePath, Err: fs.ErrNotExist}
	}
	prefix := strings.TrimSuffix(filePath, "/") + "/"
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			return &fs.PathError{Op: "remove", Path: filePath, Err: syscall.ENOTEMPTY}
		}
	}
	delete(m.dirs, filePath)
	return nil
}

// MkdirAll creates a directory and all parent directories.
func (m *MemFS) MkdirAll(dirPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAllLocked(cleanPath(dirPath))
}

func (m *MemFS) mkdirAllLocked(dirPath string) {
	for dirPath != "/" && dirPath != "." && !m.dirs[dirPath] {
		m.dirs[dirPath] = true
		dirPath = path.Dir(dirPath)
	}
}

// AddFile is a convenience wrapper around WriteFile for tests.
func (m *MemFS) AddFile(filePath, content string) error {
	return m.WriteFile(filePath, []byte(content), 0644)
}

// cleanPath normalizes a path for the in-memory tree.
func cleanPath(p string) string {
	p = Normalize(p)
	if p == "" || p == "." {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
