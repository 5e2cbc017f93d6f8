package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/stow/fault"
	"github.com/roach88/stow/internal/schema"
	"github.com/roach88/stow/internal/store"
	"github.com/roach88/stow/mapping"
)

// Phase is a step in a task's lifecycle.
type Phase string

const (
	PhaseSubmitted     Phase = "submitted"
	PhaseSchemaChecked Phase = "schema-checked"
	PhaseExecuting     Phase = "executing"
	PhaseCompleted     Phase = "completed"
	PhaseFailed        Phase = "failed"
)

// Engine is the single-writer worker of one open store.
//
// Thread-safety model:
//   - Submit and the operation methods: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - Stop: safe from any goroutine, idempotent
type Engine struct {
	conn     store.Conn
	registry *mapping.Registry
	schema   *schema.Coordinator
	logger   *slog.Logger
	queue    *taskQueue
	ids      IDGenerator
	clock    *Clock
	done     chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithIDGenerator replaces the UUIDv7 task id generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(e *Engine) {
		e.ids = ids
	}
}

// New creates an engine over conn for the entities in registry. Call Run
// to start processing.
func New(conn store.Conn, registry *mapping.Registry, opts ...Option) *Engine {
	e := &Engine{
		conn:     conn,
		registry: registry,
		logger:   slog.Default(),
		queue:    newTaskQueue(),
		ids:      UUIDv7Generator{},
		clock:    NewClock(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.schema = schema.NewCoordinator(registry, e.logger)
	return e
}

// Schema returns the coordinator that keeps tables in step with models.
func (e *Engine) Schema() *schema.Coordinator {
	return e.schema
}

// Registry returns the registry the engine decodes with.
func (e *Engine) Registry() *mapping.Registry {
	return e.registry
}

// Submit queues a task and returns it. Run and Done execute later on the
// worker. If the engine is stopped, Done receives STORE_CLOSED on its own
// goroutine and the task never runs.
func (e *Engine) Submit(kind Kind, entity string, run func(ctx context.Context, t *Task) error, done func(err error)) *Task {
	t := &Task{
		ID:     e.ids.Generate(),
		Seq:    e.clock.Next(),
		Kind:   kind,
		Entity: entity,
		Done:   done,
	}
	t.Run = func(ctx context.Context) error { return run(ctx, t) }

	if !e.queue.Enqueue(t) {
		e.logger.Debug("task refused", "task", t.ID, "seq", t.Seq, "kind", string(kind), "entity", entity)
		go e.deliver(t, fault.Closed())
		return t
	}
	e.transition(t, PhaseSubmitted)
	return t
}

// Run processes tasks until Stop is called and the queue drains, or ctx is
// cancelled. Tasks still queued at cancellation fail with STORE_CLOSED.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)
	e.logger.Debug("engine starting")

	for {
		if ctx.Err() != nil {
			return e.cancelled(ctx)
		}
		if t, ok := e.queue.TryDequeue(); ok {
			e.execute(ctx, t)
			continue
		}

		select {
		case <-ctx.Done():
			return e.cancelled(ctx)

		case <-e.queue.Wait():
			// The signal channel is closed with the queue, so this fires
			// immediately once stopped.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Debug("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop refuses new tasks. Queued tasks still run; Done is closed once the
// worker has finished them.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Done returns a channel closed when Run returns.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// QueueLen returns the number of tasks waiting for the worker.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

func (e *Engine) cancelled(ctx context.Context) error {
	e.logger.Debug("engine stopping: context cancelled")
	e.queue.Close()
	for {
		t, ok := e.queue.TryDequeue()
		if !ok {
			return ctx.Err()
		}
		e.transition(t, PhaseFailed)
		e.deliver(t, fault.Closed())
	}
}

// execute runs one task and delivers its completion exactly once.
// Called only from the Run goroutine.
func (e *Engine) execute(ctx context.Context, t *Task) {
	err := e.runTask(ctx, t)
	if err != nil {
		e.logger.Debug("task", "task", t.ID, "seq", t.Seq, "kind", string(t.Kind),
			"entity", t.Entity, "phase", string(PhaseFailed), "error", err)
	} else {
		e.transition(t, PhaseCompleted)
	}
	e.deliver(t, err)
}

// deliver runs the completion of t. A panicking completion is logged so
// the worker keeps serving later tasks.
func (e *Engine) deliver(t *Task, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("completion panicked", "task", t.ID, "kind", string(t.Kind), "entity", t.Entity, "panic", r)
		}
	}()
	t.finish(err)
}

func (e *Engine) runTask(ctx context.Context, t *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("task panicked", "task", t.ID, "kind", string(t.Kind), "entity", t.Entity, "panic", r)
			err = fault.Wrap(fmt.Errorf("panic: %v", r), fmt.Sprintf("%s %s", t.Kind, t.Entity))
		}
	}()
	return t.Run(ctx)
}

func (e *Engine) transition(t *Task, p Phase) {
	e.logger.Debug("task", "task", t.ID, "seq", t.Seq, "kind", string(t.Kind),
		"entity", t.Entity, "phase", string(p))
}
