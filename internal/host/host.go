// Package host provides the environment a project runs against: watch
// subscriptions, file writes, and the event queue watch notifications are
// delivered through.
//
// Watches are not callbacks. A project registers a Subscription naming the
// target path, whether it is recursive, and where events go (owner and tag).
// The host turns file system changes into Events on a single Queue, and the
// owner drains that queue on its own goroutine. Releasing a subscription
// removes its pending events from the queue, so an owner never observes an
// event for a subscription it already closed.
package host

import (
	pathpkg "path"
	"strings"

	"github.com/google/uuid"

	"github.com/dshills/projectd/internal/vfs"
	"github.com/dshills/projectd/internal/watcher"
)

// SubscriptionID identifies one watch subscription.
type SubscriptionID = uuid.UUID

// Delivery names the receiver of a subscription's events.
type Delivery struct {
	// Owner is the identity of the receiver, typically a project ID.
	Owner uint64

	// Tag tells the receiver which of its watches fired.
	Tag string
}

// Subscription is the record of one watch registration.
type Subscription struct {
	ID        SubscriptionID
	Target    string
	Directory bool
	Recursive bool
	Delivery  Delivery
}

// Matches reports whether a change at path falls under the subscription.
func (s Subscription) Matches(path string) bool {
	switch {
	case !s.Directory:
		return path == s.Target
	case s.Recursive:
		return path != s.Target && strings.HasPrefix(path, strings.TrimSuffix(s.Target, "/")+"/")
	default:
		return path != s.Target && pathpkg.Dir(path) == s.Target
	}
}

// Event is a change delivered to a subscription.
type Event struct {
	Subscription Subscription
	Path         string
	Op           watcher.Op
}

// Handle releases a subscription.
type Handle interface {
	// Close releases the subscription and discards its pending events.
	Close() error
}

// Host performs watching and writes on behalf of projects.
type Host interface {
	// WatchFile subscribes to changes of a single file.
	WatchFile(path string, to Delivery) Handle

	// WatchDirectory subscribes to changes under a directory.
	WatchDirectory(path string, recursive bool, to Delivery) Handle

	// WriteFile writes data to path.
	WriteFile(path string, data []byte) error

	// FS returns the file system the host reads from.
	FS() vfs.FS

	// Queue returns the queue events are delivered on.
	Queue() *Queue
}
