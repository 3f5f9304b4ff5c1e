package project

import (
	"fmt"
	"sync/atomic"
)

// NameGenerator yields names for inferred projects. Names are never reused.
type NameGenerator interface {
	NextName() string
}

// CounterNames generates names from a monotonically increasing counter.
type CounterNames struct {
	prefix string
	next   atomic.Uint64
}

// NewCounterNames returns a generator producing prefix + n + "*", starting at 1.
func NewCounterNames(prefix string) *CounterNames {
	return &CounterNames{prefix: prefix}
}

// NextName returns the next name.
func (c *CounterNames) NextName() string {
	return fmt.Sprintf("%s%d*", c.prefix, c.next.Add(1))
}

// InferredNames is the process-wide generator used when a service is not
// given one. It is never reset.
var InferredNames NameGenerator = NewCounterNames("/dev/null/inferredProject")
