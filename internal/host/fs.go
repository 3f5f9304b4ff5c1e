package host

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/projectd/internal/vfs"
	"github.com/dshills/projectd/internal/watcher"
)

// FSHost is a Host backed by a real file system watcher.
type FSHost struct {
	fs      vfs.FS
	watcher watcher.Watcher
	queue   *Queue
	logger  *slog.Logger
}

// NewFSHost creates a host reading from fs and watching through w.
// Run must be called for watch events to reach the queue.
func NewFSHost(fs vfs.FS, w watcher.Watcher, logger *slog.Logger) *FSHost {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSHost{
		fs:      fs,
		watcher: w,
		queue:   NewQueue(),
		logger:  logger,
	}
}

// FS returns the host file system.
func (h *FSHost) FS() vfs.FS { return h.fs }

// Queue returns the event queue.
func (h *FSHost) Queue() *Queue { return h.queue }

// WriteFile writes data to path.
func (h *FSHost) WriteFile(path string, data []byte) error {
	return h.fs.WriteFile(path, data, 0o644)
}

// WatchFile subscribes to a single file. The watch is placed on the
// file's directory so that replacing the file is observed.
func (h *FSHost) WatchFile(path string, to Delivery) Handle {
	target := absPath(path)
	sub := Subscription{ID: uuid.New(), Target: target, Delivery: to}

	dir := filepath.Dir(filepath.FromSlash(target))
	err := h.watcher.Watch(dir)
	if err != nil {
		h.logger.Warn("watch file failed", slog.String("path", target), slog.String("error", err.Error()))
	}
	h.queue.Register(sub)

	return h.handle(sub, func() error {
		if err != nil {
			return nil
		}
		return h.watcher.Unwatch(dir)
	})
}

// WatchDirectory subscribes to a directory, recursively if asked.
func (h *FSHost) WatchDirectory(path string, recursive bool, to Delivery) Handle {
	target := absPath(path)
	sub := Subscription{
		ID:        uuid.New(),
		Target:    target,
		Directory: true,
		Recursive: recursive,
		Delivery:  to,
	}

	native := filepath.FromSlash(target)
	var err error
	if recursive {
		err = h.watcher.WatchRecursive(native)
	} else {
		err = h.watcher.Watch(native)
	}
	if err != nil {
		h.logger.Warn("watch directory failed",
			slog.String("path", target),
			slog.Bool("recursive", recursive),
			slog.String("error", err.Error()),
		)
	}
	h.queue.Register(sub)

	return h.handle(sub, func() error {
		if err != nil {
			return nil
		}
		if recursive {
			return h.watcher.UnwatchRecursive(native)
		}
		return h.watcher.Unwatch(native)
	})
}

// Run moves watcher events onto the queue until ctx is done or the
// watcher closes.
func (h *FSHost) Run(ctx context.Context) error {
	events := h.watcher.Events()
	errs := h.watcher.Errors()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			n := h.queue.Dispatch(ev.Path, ev.Op)
			h.logger.Debug("watch event", slog.String("path", ev.Path), slog.String("op", ev.Op.String()), slog.Int("subscribers", n))
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			h.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// Close stops the watcher and the queue.
func (h *FSHost) Close() error {
	h.queue.Close()
	err := h.watcher.Close()
	if errors.Is(err, watcher.ErrWatcherClosed) {
		return nil
	}
	return err
}

func (h *FSHost) handle(sub Subscription, release func() error) Handle {
	return &subscriptionHandle{queue: h.queue, id: sub.ID, release: release, logger: h.logger}
}

type subscriptionHandle struct {
	once    sync.Once
	queue   *Queue
	id      SubscriptionID
	release func() error
	logger  *slog.Logger
}

func (s *subscriptionHandle) Close() error {
	var err error
	s.once.Do(func() {
		s.queue.Release(s.id)
		err = s.release()
		if errors.Is(err, watcher.ErrWatcherClosed) || errors.Is(err, watcher.ErrNotWatching) {
			err = nil
		}
		if err != nil {
			s.logger.Warn("unwatch failed", slog.String("subscription", s.id.String()), slog.String("error", err.Error()))
		}
	})
	return err
}

func absPath(path string) string {
	abs, err := filepath.Abs(filepath.FromSlash(path))
	if err != nil {
		return vfs.Normalize(path)
	}
	return filepath.ToSlash(abs)
}
