package scriptinfo

import (
	"io"
	"log/slog"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/projectd/internal/vfs"
)

// DefaultSnapshotCacheSize is the number of closed-file contents kept in memory.
const DefaultSnapshotCacheSize = 256

// relation is one (file, project) attachment.
type relation struct {
	path    string
	project ProjectID
}

// Registry owns every Info and the file/project relation table.
type Registry struct {
	fs        vfs.FS
	infos     map[string]*Info
	relations map[relation]struct{}
	attached  map[string]int
	cache     *lru.Cache[string, []byte]
	cacheSize int
	logger    *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithSnapshotCacheSize sets how many closed-file contents are cached.
func WithSnapshotCacheSize(size int) Option {
	return func(r *Registry) {
		r.cacheSize = size
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a registry reading closed files from fs.
func NewRegistry(fs vfs.FS, opts ...Option) *Registry {
	r := &Registry{
		fs:        fs,
		infos:     make(map[string]*Info),
		relations: make(map[relation]struct{}),
		attached:  make(map[string]int),
		cacheSize: DefaultSnapshotCacheSize,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cacheSize <= 0 {
		r.cacheSize = DefaultSnapshotCacheSize
	}

	// lru.New only fails for a non-positive size.
	r.cache, _ = lru.New[string, []byte](r.cacheSize)
	return r
}

// Get returns the Info for a path if the registry knows it.
func (r *Registry) Get(path string) (*Info, bool) {
	info, ok := r.infos[vfs.Normalize(path)]
	return info, ok
}

// GetOrCreate returns the Info for path, creating it when the file is open
// by the client or exists on disk. It returns nil for an unknown file that
// does not exist on disk.
func (r *Registry) GetOrCreate(path string, openedByClient bool) *Info {
	path = vfs.Normalize(path)
	if info, ok := r.infos[path]; ok {
		if openedByClient && !info.open {
			r.markOpen(info, nil)
		}
		return info
	}

	if !openedByClient && !r.fs.Exists(path) {
		return nil
	}

	info := &Info{path: path, version: 1, modifiedAt: time.Now(), registry: r}
	r.infos[path] = info
	if openedByClient {
		r.markOpen(info, nil)
	}
	return info
}

// Open marks a file as opened by the client. A nil content reads the file
// from disk; the returned Info holds its own copy.
func (r *Registry) Open(path string, content []byte) *Info {
	info := r.GetOrCreate(path, true)
	if content != nil {
		info.setContent(content)
	}
	return info
}

func (r *Registry) markOpen(info *Info, content []byte) {
	if content == nil {
		content = r.diskContent(info.path)
	}
	info.open = true
	info.setContent(content)
}

// Close marks a file as closed by the client. Its content reverts to disk.
// Closing an unknown or already closed file is a no-op.
func (r *Registry) Close(path string) {
	info, ok := r.Get(path)
	if !ok || !info.open {
		return
	}
	info.open = false
	info.content = nil
	info.version++
	info.modifiedAt = time.Now()
	r.cache.Remove(info.path)

	if r.attached[info.path] == 0 {
		r.collect(info)
	}
}

// Edit replaces the content of an open file.
func (r *Registry) Edit(path string, content []byte) error {
	info, ok := r.Get(path)
	if !ok || !info.open {
		return ErrNotOpen
	}
	info.setContent(content)
	return nil
}

// ApplyEdit splices newText into the byte range [start, end) of an open file.
func (r *Registry) ApplyEdit(path string, start, end int, newText []byte) error {
	info, ok := r.Get(path)
	if !ok || !info.open {
		return ErrNotOpen
	}
	return info.applyEdit(start, end, newText)
}

// Invalidate drops cached disk content for a path after an external change.
// Closed files pick up the new content on their next snapshot.
func (r *Registry) Invalidate(path string) {
	path = vfs.Normalize(path)
	r.cache.Remove(path)
	if info, ok := r.infos[path]; ok && !info.open {
		info.version++
		info.modifiedAt = time.Now()
	}
}

// Attach records that info belongs to project. It returns true if the
// relation is new.
func (r *Registry) Attach(info *Info, project ProjectID) bool {
	rel := relation{path: info.path, project: project}
	if _, ok := r.relations[rel]; ok {
		return false
	}
	r.relations[rel] = struct{}{}
	r.attached[info.path]++
	return true
}

// Detach removes the relation between info and project. Detaching a file
// that is not attached is a no-op.
func (r *Registry) Detach(info *Info, project ProjectID) {
	rel := relation{path: info.path, project: project}
	if _, ok := r.relations[rel]; !ok {
		return
	}
	delete(r.relations, rel)
	r.attached[info.path]--
	if r.attached[info.path] == 0 {
		delete(r.attached, info.path)
		r.collect(info)
	}
}

// IsAttached reports whether path is attached to project.
func (r *Registry) IsAttached(path string, project ProjectID) bool {
	_, ok := r.relations[relation{path: vfs.Normalize(path), project: project}]
	return ok
}

// Projects returns the projects a file is attached to, in ascending ID order.
func (r *Registry) Projects(path string) []ProjectID {
	path = vfs.Normalize(path)
	var ids []ProjectID
	for rel := range r.relations {
		if rel.path == path {
			ids = append(ids, rel.project)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AttachmentCount returns how many projects a file is attached to.
func (r *Registry) AttachmentCount(path string) int {
	return r.attached[vfs.Normalize(path)]
}

// Len returns the number of known files.
func (r *Registry) Len() int {
	return len(r.infos)
}

// collect forgets a closed file that no project references any more.
func (r *Registry) collect(info *Info) {
	if info.open {
		return
	}
	delete(r.infos, info.path)
	r.cache.Remove(info.path)
	r.logger.Debug("script info released", slog.String("path", info.path))
}

// diskContent reads a closed file through the snapshot cache.
func (r *Registry) diskContent(path string) []byte {
	if data, ok := r.cache.Get(path); ok {
		return data
	}
	data, err := r.fs.ReadFile(path)
	if err != nil {
		r.logger.Debug("script read failed", slog.String("path", path), slog.String("error", err.Error()))
		return nil
	}
	r.cache.Add(path, data)
	return data
}
