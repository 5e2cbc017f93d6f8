package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stow/fault"
	"github.com/roach88/stow/internal/store"
	"github.com/roach88/stow/internal/testutil"
	"github.com/roach88/stow/mapping"
	"github.com/roach88/stow/query"
)

const waitTimeout = 5 * time.Second

func newEngine(t *testing.T, conn store.Conn, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(testutil.DiscardLogger())}, opts...)
	return New(conn, testutil.Registry(), opts...)
}

// start runs e until the test ends.
func start(t *testing.T, e *Engine) {
	t.Helper()
	go e.Run(context.Background())
	t.Cleanup(func() {
		e.Stop()
		<-e.Done()
	})
}

func await[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for completion")
		var zero T
		return zero
	}
}

func addSync(t *testing.T, e *Engine, models ...mapping.Model) error {
	t.Helper()
	ch := make(chan error, 1)
	e.Add(models, func(err error) { ch <- err })
	return await(t, ch)
}

type getResult struct {
	models []mapping.Model
	err    error
}

func getSync(t *testing.T, e *Engine, entity string, q *query.Query, resolve bool) ([]mapping.Model, error) {
	t.Helper()
	ch := make(chan getResult, 1)
	e.Get(entity, q, resolve, func(models []mapping.Model, err error) { ch <- getResult{models, err} })
	r := await(t, ch)
	return r.models, r.err
}

func dogs(t *testing.T, models []mapping.Model) []*testutil.Dog {
	t.Helper()
	out := make([]*testutil.Dog, len(models))
	for i, m := range models {
		d, ok := m.(*testutil.Dog)
		require.True(t, ok, "got %T", m)
		out[i] = d
	}
	return out
}

func TestEngine_TasksRunInSubmissionOrder(t *testing.T) {
	e := newEngine(t, testutil.OpenStore(t), WithIDGenerator(NewFixedGenerator("t1", "t2", "t3")))
	rec := testutil.NewRecorder()

	for i := 1; i <= 3; i++ {
		label := fmt.Sprintf("task-%d", i)
		task := e.Submit(KindGet, "Dog", func(ctx context.Context, t *Task) error {
			rec.Record("run " + label)
			return nil
		}, func(err error) {
			rec.Record("done " + label)
		})
		assert.Equal(t, fmt.Sprintf("t%d", i), task.ID)
		assert.Equal(t, int64(i), task.Seq)
	}
	start(t, e)

	events := rec.WaitFor(t, 6, waitTimeout)
	assert.Equal(t, []string{
		"run task-1", "done task-1",
		"run task-2", "done task-2",
		"run task-3", "done task-3",
	}, events)
}

func TestEngine_CompletionIsNeverSynchronous(t *testing.T) {
	e := newEngine(t, testutil.OpenStore(t))
	called := make(chan struct{})

	e.Submit(KindAdd, "Dog", func(ctx context.Context, t *Task) error { return nil }, func(err error) {
		close(called)
	})

	select {
	case <-called:
		t.Fatal("completion ran before the worker started")
	default:
	}
	assert.Equal(t, 1, e.QueueLen())

	start(t, e)
	await(t, called)
}

func TestEngine_CompletionRunsExactlyOnce(t *testing.T) {
	e := newEngine(t, testutil.OpenStore(t))
	rec := testutil.NewRecorder()

	e.Submit(KindDelete, "Dog", func(ctx context.Context, t *Task) error {
		return errors.New("boom")
	}, func(err error) {
		rec.Record(err.Error())
	})
	e.Submit(KindDelete, "Dog", func(ctx context.Context, t *Task) error { return nil }, func(err error) {
		rec.Record("second")
	})
	start(t, e)

	events := rec.WaitFor(t, 2, waitTimeout)
	assert.Equal(t, []string{"boom", "second"}, events)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, rec.Events(), 2)
}

func TestEngine_PanicFailsOnlyThatTask(t *testing.T) {
	e := newEngine(t, testutil.OpenStore(t))
	errs := make(chan error, 2)

	e.Submit(KindGet, "Dog", func(ctx context.Context, t *Task) error {
		panic("bad model")
	}, func(err error) { errs <- err })
	e.Submit(KindGet, "Dog", func(ctx context.Context, t *Task) error { return nil }, func(err error) { errs <- err })
	start(t, e)

	err := await(t, errs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad model")
	assert.NoError(t, await(t, errs))
}

func TestEngine_PanickingCompletionKeepsWorkerAlive(t *testing.T) {
	e := newEngine(t, testutil.OpenStore(t))
	start(t, e)

	e.Submit(KindGet, "Dog", func(ctx context.Context, t *Task) error { return nil },
		func(err error) { panic("careless caller") })
	ch := make(chan error, 1)
	e.Submit(KindGet, "Dog", func(ctx context.Context, t *Task) error { return nil },
		func(err error) { ch <- err })

	assert.NoError(t, await(t, ch))
}

func TestEngine_SubmitAfterStop(t *testing.T) {
	e := newEngine(t, testutil.OpenStore(t))
	start(t, e)
	e.Stop()
	<-e.Done()

	ch := make(chan error, 1)
	e.Add([]mapping.Model{&testutil.Dog{Name: "Rex"}}, func(err error) { ch <- err })

	err := await(t, ch)
	assert.True(t, fault.Is(err, fault.CodeClosed), "got %v", err)
}

func TestEngine_StopDrainsQueuedTasks(t *testing.T) {
	e := newEngine(t, testutil.OpenStore(t))
	rec := testutil.NewRecorder()

	for i := 0; i < 3; i++ {
		e.Submit(KindGet, "Dog", func(ctx context.Context, t *Task) error { return nil }, func(err error) {
			rec.Record("done")
		})
	}
	e.Stop()

	require.NoError(t, e.Run(context.Background()))
	assert.Len(t, rec.Events(), 3)
}

func TestEngine_CancelFailsPendingTasks(t *testing.T) {
	e := newEngine(t, testutil.OpenStore(t))
	ctx, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	errs := make(chan error, 2)
	e.Submit(KindGet, "Dog", func(ctx context.Context, t *Task) error {
		<-release
		return nil
	}, func(err error) { errs <- err })
	e.Submit(KindGet, "Dog", func(ctx context.Context, t *Task) error { return nil }, func(err error) { errs <- err })

	runErr := make(chan error, 1)
	go func() { runErr <- e.Run(ctx) }()

	// Wait until the first task is running and the second still queued.
	require.Eventually(t, func() bool { return e.QueueLen() == 1 }, waitTimeout, time.Millisecond)
	cancel()
	close(release)

	assert.NoError(t, await(t, errs))
	assert.True(t, fault.Is(await(t, errs), fault.CodeClosed))
	assert.ErrorIs(t, await(t, runErr), context.Canceled)
}
