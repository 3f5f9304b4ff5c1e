package watcher

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar"
	"github.com/fsnotify/fsnotify"
)

// FSNotifyWatcher implements Watcher using fsnotify.
type FSNotifyWatcher struct {
	mu sync.Mutex

	watcher *fsnotify.Watcher
	config  Config
	logger  *slog.Logger

	// refs counts Watch references per watched path; recursive roots
	// hold one reference on every directory beneath them.
	refs  map[string]int
	roots map[string]int

	events chan Event
	errors chan error

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// NewFSNotifyWatcher creates a new fsnotify-based watcher.
func NewFSNotifyWatcher(logger *slog.Logger, opts ...WatcherOption) (*FSNotifyWatcher, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 100
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &FSNotifyWatcher{
		watcher: fsw,
		config:  config,
		logger:  logger,
		refs:    make(map[string]int),
		roots:   make(map[string]int),
		events:  make(chan Event, config.BufferSize),
		errors:  make(chan error, config.BufferSize),
		closeCh: make(chan struct{}),
	}

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// Watch starts watching a path.
func (w *FSNotifyWatcher) Watch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(absPath); err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}
	return w.addLocked(absPath)
}

// WatchRecursive watches a directory and all subdirectories.
func (w *FSNotifyWatcher) WatchRecursive(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}
	if !info.IsDir() {
		return w.addLocked(absPath)
	}

	w.roots[absPath]++
	if w.roots[absPath] > 1 {
		return nil
	}
	return w.walkLocked(absPath, w.addLocked)
}

// Unwatch releases one Watch reference on a path.
func (w *FSNotifyWatcher) Unwatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return w.releaseLocked(absPath)
}

// UnwatchRecursive releases one WatchRecursive reference on a directory.
func (w *FSNotifyWatcher) UnwatchRecursive(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if w.roots[absPath] == 0 {
		return w.releaseLocked(absPath)
	}

	w.roots[absPath]--
	if w.roots[absPath] > 0 {
		return nil
	}
	delete(w.roots, absPath)

	prefix := absPath + string(filepath.Separator)
	for p := range w.refs {
		if p == absPath || strings.HasPrefix(p, prefix) {
			_ = w.releaseLocked(p)
		}
	}
	return nil
}

// Events returns the event channel.
func (w *FSNotifyWatcher) Events() <-chan Event {
	return w.events
}

// Errors returns the error channel.
func (w *FSNotifyWatcher) Errors() <-chan error {
	return w.errors
}

// IsWatching returns true if the path is being watched.
func (w *FSNotifyWatcher) IsWatching(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return w.refs[absPath] > 0
}

// Close stops the watcher.
func (w *FSNotifyWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.closedWg.Wait()

	close(w.events)
	close(w.errors)

	return w.watcher.Close()
}

func (w *FSNotifyWatcher) addLocked(absPath string) error {
	if w.shouldIgnore(absPath) {
		return nil
	}
	if w.refs[absPath] == 0 {
		if err := w.watcher.Add(absPath); err != nil {
			return err
		}
	}
	w.refs[absPath]++
	return nil
}

func (w *FSNotifyWatcher) releaseLocked(absPath string) error {
	count, ok := w.refs[absPath]
	if !ok {
		return ErrNotWatching
	}
	if count > 1 {
		w.refs[absPath] = count - 1
		return nil
	}
	delete(w.refs, absPath)
	if err := w.watcher.Remove(absPath); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		return err
	}
	return nil
}

// walkLocked applies fn to every non-ignored directory under root.
func (w *FSNotifyWatcher) walkLocked(root string, fn func(string) error) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.shouldIgnore(p) {
			return filepath.SkipDir
		}
		if err := fn(p); err != nil {
			w.logger.Warn("watch failed", slog.String("path", p), slog.String("error", err.Error()))
		}
		return nil
	})
}

// processLoop handles incoming fsnotify events.
func (w *FSNotifyWatcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case fsEvent, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(fsEvent)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

// handleFSEvent converts and dispatches an fsnotify event.
func (w *FSNotifyWatcher) handleFSEvent(fsEvent fsnotify.Event) {
	op := convertOp(fsEvent.Op)
	if op == 0 || w.shouldIgnore(fsEvent.Name) {
		return
	}

	if op.Has(OpCreate) {
		w.followNewDirectory(fsEvent.Name)
	}

	w.sendEvent(Event{
		Path:      filepath.ToSlash(fsEvent.Name),
		Op:        op,
		Timestamp: time.Now(),
	})
}

// followNewDirectory extends recursive roots over a newly created directory.
func (w *FSNotifyWatcher) followNewDirectory(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	for root := range w.roots {
		if strings.HasPrefix(path, root+string(filepath.Separator)) {
			_ = w.walkLocked(path, w.addLocked)
			return
		}
	}
}

// convertOp converts fsnotify.Op to watcher.Op.
func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	if fsOp.Has(fsnotify.Chmod) {
		op |= OpChmod
	}
	return op
}

// shouldIgnore checks a path against the ignore globs.
func (w *FSNotifyWatcher) shouldIgnore(path string) bool {
	return MatchAny(w.config.IgnorePatterns, filepath.ToSlash(path))
}

// sendEvent sends an event to the output channel, dropping it when full.
func (w *FSNotifyWatcher) sendEvent(event Event) {
	select {
	case w.events <- event:
	default:
		w.logger.Warn("event channel full, dropping event", slog.String("path", event.Path))
	}
}

// sendError sends an error to the output channel, dropping it when full.
func (w *FSNotifyWatcher) sendError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

// MatchAny reports whether path matches any doublestar pattern.
// Invalid patterns never match.
func MatchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}

// Ensure FSNotifyWatcher implements Watcher.
var _ Watcher = (*FSNotifyWatcher)(nil)
