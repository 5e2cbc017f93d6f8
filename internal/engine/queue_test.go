package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueue_FIFO(t *testing.T) {
	q := newTaskQueue()

	for _, id := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue(&Task{ID: id}))
	}

	for _, want := range []string{"A", "B", "C"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got.ID)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestTaskQueue_Enqueue_AfterClose(t *testing.T) {
	q := newTaskQueue()
	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue(&Task{ID: "late"}), "enqueue after close should return false")
}

func TestTaskQueue_Close_KeepsPending(t *testing.T) {
	q := newTaskQueue()
	q.Enqueue(&Task{ID: "pending"})
	q.Close()

	got, ok := q.TryDequeue()
	require.True(t, ok, "tasks queued before close should still drain")
	assert.Equal(t, "pending", got.ID)
}

func TestTaskQueue_Wait_FiresOnClose(t *testing.T) {
	q := newTaskQueue()

	done := make(chan struct{})
	go func() {
		<-q.Wait()
		close(done)
	}()

	q.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not fire after close")
	}
}

func TestTaskQueue_Len(t *testing.T) {
	q := newTaskQueue()
	assert.Equal(t, 0, q.Len())

	q.Enqueue(&Task{ID: "1"})
	q.Enqueue(&Task{ID: "2"})
	assert.Equal(t, 2, q.Len())

	q.TryDequeue()
	assert.Equal(t, 1, q.Len())
}

func TestTaskQueue_ThreadSafe(t *testing.T) {
	q := newTaskQueue()

	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(&Task{ID: fmt.Sprintf("%d-%d", p, i)})
			}
		}(p)
	}
	wg.Wait()

	seen := map[string]bool{}
	for {
		task, ok := q.TryDequeue()
		if !ok {
			break
		}
		seen[task.ID] = true
	}
	assert.Len(t, seen, producers*perProducer)
}
