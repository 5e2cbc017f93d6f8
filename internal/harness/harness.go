package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/stow/fault"
	"github.com/roach88/stow/internal/engine"
	"github.com/roach88/stow/internal/store"
	"github.com/roach88/stow/mapping"
)

// StepTimeout bounds the wait for one step's completion.
const StepTimeout = 10 * time.Second

// Harness runs scenarios over the entities in a registry.
type Harness struct {
	registry *mapping.Registry
	logger   *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the engine logger; logs are discarded by default.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// New creates a harness over registry.
func New(registry *mapping.Registry, opts ...Option) *Harness {
	h := &Harness{
		registry: registry,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes scenario on a fresh database and returns its trace.
// Steps run in order, each waiting for the previous completion. A step
// whose outcome contradicts its expect clause marks the result failed but
// does not stop the scenario.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "stow-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(store.Options{Path: filepath.Join(dir, "scenario.db")})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	eng := engine.New(st, h.registry, engine.WithLogger(h.logger))
	runCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		<-eng.Done()
	}()
	go eng.Run(runCtx)

	result := NewResult(scenario.Name)
	for i, step := range scenario.Steps {
		ev, err := h.runStep(ctx, eng, i, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		result.Trace = append(result.Trace, ev)
		checkExpect(result, i, step.Expect, ev)
	}
	return result, nil
}

// runStep submits step and waits for its completion. Errors returned
// here are scenario errors; engine failures are recorded in the event.
func (h *Harness) runStep(ctx context.Context, eng *engine.Engine, index int, step Step) (Event, error) {
	ev := Event{Step: index, Op: step.Op, Entity: step.Entity}
	done := make(chan Event, 1)

	switch step.Op {
	case OpAdd:
		models := make([]mapping.Model, len(step.Objects))
		for i, obj := range step.Objects {
			m, err := buildModel(h.registry, step.Entity, obj)
			if err != nil {
				return ev, fmt.Errorf("objects[%d]: %w", i, err)
			}
			models[i] = m
		}
		eng.Add(models, func(err error) {
			done <- withError(ev, err)
		})

	case OpGet:
		q, err := buildQuery(step)
		if err != nil {
			return ev, err
		}
		eng.Get(step.Entity, q, step.Resolve, func(models []mapping.Model, err error) {
			if err != nil {
				done <- withError(ev, err)
				return
			}
			out := ev
			n := int64(len(models))
			out.Count = &n
			for _, m := range models {
				obj, err := Render(m)
				if err != nil {
					done <- withError(ev, err)
					return
				}
				out.Objects = append(out.Objects, obj)
			}
			done <- out
		})

	case OpDelete:
		q, err := buildQuery(step)
		if err != nil {
			return ev, err
		}
		eng.Delete(step.Entity, q, func(n int64, err error) {
			if err != nil {
				done <- withError(ev, err)
				return
			}
			out := ev
			out.Count = &n
			done <- out
		})

	case OpIndex:
		filter, err := buildPredicate(step.Where)
		if err != nil {
			return ev, err
		}
		eng.CreateIndex(step.Entity, step.Fields, filter, func(name string, err error) {
			done <- withError(ev, err)
		})

	default:
		return ev, fmt.Errorf("unknown op %q", step.Op)
	}

	select {
	case out := <-done:
		return out, nil
	case <-ctx.Done():
		return ev, ctx.Err()
	case <-time.After(StepTimeout):
		return ev, fmt.Errorf("%s %s: no completion after %s", step.Op, step.Entity, StepTimeout)
	}
}

func withError(ev Event, err error) Event {
	if err != nil {
		ev.Error = string(fault.CodeOf(err))
	}
	return ev
}

func checkExpect(r *Result, index int, want *Expect, got Event) {
	if want == nil {
		if got.Error != "" {
			r.AddError(fmt.Sprintf("steps[%d]: unexpected error %s", index, got.Error))
		}
		return
	}
	if want.Error != got.Error {
		r.AddError(fmt.Sprintf("steps[%d]: error = %q, want %q", index, got.Error, want.Error))
	}
	if want.Count != nil {
		switch {
		case got.Count == nil:
			r.AddError(fmt.Sprintf("steps[%d]: no count, want %d", index, *want.Count))
		case *got.Count != *want.Count:
			r.AddError(fmt.Sprintf("steps[%d]: count = %d, want %d", index, *got.Count, *want.Count))
		}
	}
}
