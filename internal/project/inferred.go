package project

import (
	"errors"
	"sort"

	"github.com/dshills/projectd/internal/host"
	"github.com/dshills/projectd/internal/vfs"
)

// TagInferredDirectory marks events from an inferred project's directory watches.
const TagInferredDirectory = "inferred-directory"

// Inferred is the payload of a project rooted at loose open files.
type Inferred struct {
	p       *Project
	label   string
	watched map[string]host.Handle
}

// NewInferred creates an inferred project named by names.
func NewInferred(cfg Config, names NameGenerator, roots ...string) *Project {
	if names == nil {
		names = InferredNames
	}
	p := newProject(cfg)
	p.init(&Inferred{p: p, label: names.NextName(), watched: make(map[string]host.Handle)}, roots)
	return p
}

func (i *Inferred) kind() Kind   { return KindInferred }
func (i *Inferred) name() string { return i.label }

// WatchDirectory watches dir for a configuration file appearing. Watching
// a directory twice is a no-op.
func (i *Inferred) WatchDirectory(dir string) {
	dir = vfs.Normalize(dir)
	if _, ok := i.watched[dir]; ok {
		return
	}
	i.watched[dir] = i.p.host.WatchDirectory(dir, false, i.p.delivery(TagInferredDirectory))
}

// IsWatching reports whether dir is watched.
func (i *Inferred) IsWatching(dir string) bool {
	_, ok := i.watched[vfs.Normalize(dir)]
	return ok
}

// WatchedDirectories returns the watched directories in sorted order.
func (i *Inferred) WatchedDirectories() []string {
	dirs := make([]string, 0, len(i.watched))
	for d := range i.watched {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

func (i *Inferred) release() error {
	var errs []error
	for dir, h := range i.watched {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(i.watched, dir)
	}
	return errors.Join(errs...)
}
