package concurrent

import "sync/atomic"

// Counter is a lock-free monotonic counter, used for the operation tallies
// (prepares, commits, aborts, conflicts, retries) exposed over /_metrics.
type Counter struct {
	value uint64
}

// NewCounter creates a new lock-free counter.
func NewCounter() *Counter {
	return &Counter{}
}

// Inc increments the counter by 1 and returns the new value.
func (c *Counter) Inc() uint64 {
	return atomic.AddUint64(&c.value, 1)
}

// Load returns the current value.
func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}
