package host

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/dshills/projectd/internal/watcher"
)

// ErrQueueClosed is returned by Next after the queue is closed.
var ErrQueueClosed = errors.New("event queue closed")

// Queue holds live subscriptions and the events pending for them.
type Queue struct {
	mu      sync.Mutex
	subs    map[SubscriptionID]Subscription
	pending []Event
	ready   chan struct{}
	closed  bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		subs:  make(map[SubscriptionID]Subscription),
		ready: make(chan struct{}, 1),
	}
}

// Register makes sub live.
func (q *Queue) Register(sub Subscription) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subs[sub.ID] = sub
}

// Release removes a subscription and drops its pending events.
// It reports whether the subscription was live.
func (q *Queue) Release(id SubscriptionID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.subs[id]; !ok {
		return false
	}
	delete(q.subs, id)

	kept := q.pending[:0]
	for _, ev := range q.pending {
		if ev.Subscription.ID != id {
			kept = append(kept, ev)
		}
	}
	for i := len(kept); i < len(q.pending); i++ {
		q.pending[i] = Event{}
	}
	q.pending = kept
	return true
}

// Live reports whether the subscription is registered.
func (q *Queue) Live(id SubscriptionID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.subs[id]
	return ok
}

// Subscriptions returns the live subscriptions ordered by target.
func (q *Queue) Subscriptions() []Subscription {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Subscription, 0, len(q.subs))
	for _, s := range q.subs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Target != out[j].Target {
			return out[i].Target < out[j].Target
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Dispatch queues an event for every live subscription matching path.
// It returns the number of events queued.
func (q *Queue) Dispatch(path string, op watcher.Op) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0
	}
	n := 0
	for _, s := range q.subs {
		if s.Matches(path) {
			q.pending = append(q.pending, Event{Subscription: s, Path: path, Op: op})
			n++
		}
	}
	if n > 0 {
		q.signal()
	}
	return n
}

// Push queues an event for a specific subscription. Events for
// subscriptions that are no longer live are dropped.
func (q *Queue) Push(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if _, ok := q.subs[ev.Subscription.ID]; !ok {
		return false
	}
	q.pending = append(q.pending, ev)
	q.signal()
	return true
}

// TryNext pops the oldest pending event without blocking.
func (q *Queue) TryNext() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pop()
}

// Next blocks until an event is pending, the context is done, or the
// queue is closed.
func (q *Queue) Next(ctx context.Context) (Event, error) {
	for {
		q.mu.Lock()
		if ev, ok := q.pop(); ok {
			q.mu.Unlock()
			return ev, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return Event{}, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-q.ready:
		}
	}
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close wakes blocked readers. Pending events can still be drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ready)
}

func (q *Queue) pop() (Event, bool) {
	if len(q.pending) == 0 {
		return Event{}, false
	}
	ev := q.pending[0]
	q.pending[0] = Event{}
	q.pending = q.pending[1:]
	return ev, true
}

// signal must be called with mu held.
func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
