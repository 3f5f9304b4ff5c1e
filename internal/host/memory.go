package host

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/projectd/internal/vfs"
	"github.com/dshills/projectd/internal/watcher"
)

// MemHost is an in-memory Host. Events are injected with Fire.
type MemHost struct {
	fs    *vfs.MemFS
	queue *Queue

	mu     sync.Mutex
	subs   map[SubscriptionID]Subscription
	closes map[SubscriptionID]int
	writes map[string]int
}

// NewMemHost creates a host over fs. A nil fs gets a fresh MemFS.
func NewMemHost(fs *vfs.MemFS) *MemHost {
	if fs == nil {
		fs = vfs.NewMemFS()
	}
	return &MemHost{
		fs:     fs,
		queue:  NewQueue(),
		subs:   make(map[SubscriptionID]Subscription),
		closes: make(map[SubscriptionID]int),
		writes: make(map[string]int),
	}
}

// FS returns the backing file system.
func (h *MemHost) FS() vfs.FS { return h.fs }

// MemFS returns the backing file system for direct edits.
func (h *MemHost) MemFS() *vfs.MemFS { return h.fs }

// Queue returns the event queue.
func (h *MemHost) Queue() *Queue { return h.queue }

// WriteFile writes data to the in-memory file system.
func (h *MemHost) WriteFile(path string, data []byte) error {
	h.mu.Lock()
	h.writes[vfs.Normalize(path)]++
	h.mu.Unlock()
	return h.fs.WriteFile(path, data, 0o644)
}

// WatchFile subscribes to a single file.
func (h *MemHost) WatchFile(path string, to Delivery) Handle {
	return h.subscribe(Subscription{ID: uuid.New(), Target: vfs.Normalize(path), Delivery: to})
}

// WatchDirectory subscribes to a directory.
func (h *MemHost) WatchDirectory(path string, recursive bool, to Delivery) Handle {
	return h.subscribe(Subscription{
		ID:        uuid.New(),
		Target:    vfs.Normalize(path),
		Directory: true,
		Recursive: recursive,
		Delivery:  to,
	})
}

// Fire dispatches a change at path to every matching live subscription.
func (h *MemHost) Fire(path string, op watcher.Op) int {
	return h.queue.Dispatch(vfs.Normalize(path), op)
}

// Subscriptions returns every subscription ever opened, live or not.
func (h *MemHost) Subscriptions() []Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		out = append(out, s)
	}
	return out
}

// Live returns the subscriptions that have not been closed.
func (h *MemHost) Live() []Subscription {
	return h.queue.Subscriptions()
}

// CloseCount returns how many times the subscription's handle was closed.
func (h *MemHost) CloseCount(id SubscriptionID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes[id]
}

// Writes returns how many times path was written through the host.
func (h *MemHost) Writes(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writes[vfs.Normalize(path)]
}

func (h *MemHost) subscribe(sub Subscription) Handle {
	h.mu.Lock()
	h.subs[sub.ID] = sub
	h.mu.Unlock()
	h.queue.Register(sub)
	return &memHandle{host: h, id: sub.ID}
}

type memHandle struct {
	host *MemHost
	id   SubscriptionID
}

// Close counts every call so tests can assert a handle is released once.
func (m *memHandle) Close() error {
	m.host.mu.Lock()
	m.host.closes[m.id]++
	m.host.mu.Unlock()
	m.host.queue.Release(m.id)
	return nil
}
