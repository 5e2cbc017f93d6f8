package engine

import (
	"context"
	"sync"
)

// Kind names the operation a task performs.
type Kind string

const (
	KindAdd    Kind = "add"
	KindGet    Kind = "get"
	KindDelete Kind = "delete"
	KindIndex  Kind = "index"
)

// Task is one submitted operation.
//
// Run executes on the worker goroutine. Done receives Run's error and is
// called exactly once, also on the worker; a task refused by a closed
// engine gets Done on a goroutine of its own.
type Task struct {
	ID     string
	Seq    int64
	Kind   Kind
	Entity string

	Run  func(ctx context.Context) error
	Done func(err error)
}

func (t *Task) finish(err error) {
	if t.Done != nil {
		t.Done(err)
	}
}

// taskQueue is a thread-safe unbounded FIFO queue for tasks.
//
// Any goroutine may enqueue; only the worker dequeues. The signal channel
// lets the worker wait on it alongside ctx.Done().
type taskQueue struct {
	mu     sync.Mutex
	tasks  []*Task
	closed bool
	signal chan struct{} // buffered, size 1
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		tasks:  make([]*Task, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds t to the back of the queue.
// Returns false if the queue is closed.
func (q *taskQueue) Enqueue(t *Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, t)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front task without blocking.
// Returns (nil, false) if the queue is empty.
func (q *taskQueue) TryDequeue() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}
	t := q.tasks[0]

	// Release the slot so the array does not pin finished tasks.
	q.tasks[0] = nil
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return t, true
}

// Wait returns a channel that fires when tasks may be available. It is
// closed once the queue is closed.
func (q *taskQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending tasks.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Closed reports whether Close has been called.
func (q *taskQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close refuses further tasks and wakes the worker. Pending tasks stay
// queued for the worker to drain.
func (q *taskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
