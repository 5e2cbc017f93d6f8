// Package engine runs stow operations on a single worker goroutine.
//
// Every add, get, delete and index request becomes a Task on one unbounded
// FIFO queue. The worker executes tasks one at a time in submission order,
// so each operation sees the effects of every operation submitted before it
// and the connection only ever has one writer.
//
// Task lifecycle, logged at debug level with the task id and seq:
//
//	submitted -> schema-checked -> executing -> completed | failed
//
// Completion callbacks run on the worker after the task body returns. They
// are never invoked from inside the submitting call. A task submitted after
// Stop fails with STORE_CLOSED, delivered on a separate goroutine.
//
// Nested references are resolved inside the task that asked for them, in
// the same read transaction, with a per-task cache keyed by entity and
// identifier that also stops reference cycles.
package engine
