package testutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/stow/internal/store"
)

// OpenStore opens a fresh database in a temp directory, closed on cleanup.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()
	return OpenStoreAt(t, filepath.Join(t.TempDir(), "test.db"))
}

// OpenStoreAt opens the database at path, closed on cleanup.
func OpenStoreAt(t *testing.T, path string) *store.Store {
	t.Helper()
	s, err := store.Open(store.Options{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CountingConn wraps a Conn and counts every statement that reaches it,
// including statements run inside its transactions.
type CountingConn struct {
	store.Conn

	mu    sync.Mutex
	calls []string
}

// NewCountingConn wraps conn.
func NewCountingConn(conn store.Conn) *CountingConn {
	return &CountingConn{Conn: conn}
}

func (c *CountingConn) record(stmt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, stmt)
}

// Calls returns the statements seen so far.
func (c *CountingConn) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

// Reset forgets recorded statements.
func (c *CountingConn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

func (c *CountingConn) Query(ctx context.Context, stmt string, args ...any) (*store.Result, error) {
	c.record(stmt)
	return c.Conn.Query(ctx, stmt, args...)
}

func (c *CountingConn) Exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	c.record(stmt)
	return c.Conn.Exec(ctx, stmt, args...)
}

func (c *CountingConn) Begin(ctx context.Context) (store.Tx, error) {
	c.record("BEGIN")
	tx, err := c.Conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &countingTx{Tx: tx, conn: c}, nil
}

type countingTx struct {
	store.Tx
	conn *CountingConn
}

func (t *countingTx) Query(ctx context.Context, stmt string, args ...any) (*store.Result, error) {
	t.conn.record(stmt)
	return t.Tx.Query(ctx, stmt, args...)
}

func (t *countingTx) Exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	t.conn.record(stmt)
	return t.Tx.Exec(ctx, stmt, args...)
}

// Recorder collects labelled events from any goroutine in arrival order.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Recorder struct {
	mu     sync.Mutex
	events []string
	signal chan struct{}
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{signal: make(chan struct{}, 1)}
}

// Record appends an event.
func (r *Recorder) Record(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()

	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

// WaitFor blocks until at least n events are recorded and returns them.
// The test fails if that takes longer than timeout.
func (r *Recorder) WaitFor(t *testing.T, n int, timeout time.Duration) []string {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if events := r.Events(); len(events) >= n {
			return events
		}
		select {
		case <-r.signal:
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, have %v", n, r.Events())
			return nil
		}
	}
}
