package engine

import "sync/atomic"

// Clock stamps tasks with a strictly increasing submission sequence.
//
// Seq orders tasks in logs independently of wall time. It is taken when a
// task is submitted, so it also records the order the worker will run them.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
