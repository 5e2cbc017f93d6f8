package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountingConn_RecordsStatementsInsideTransactions(t *testing.T) {
	ctx := context.Background()
	conn := NewCountingConn(OpenStore(t))

	_, err := conn.Exec(ctx, `CREATE TABLE t (x INTEGER)`)
	require.NoError(t, err)

	tx, err := conn.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, `INSERT INTO t (x) VALUES (?)`, 1)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	res, err := conn.Query(ctx, `SELECT x FROM t`)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	assert.Equal(t, []string{
		`CREATE TABLE t (x INTEGER)`,
		"BEGIN",
		`INSERT INTO t (x) VALUES (?)`,
		`SELECT x FROM t`,
	}, conn.Calls())

	conn.Reset()
	assert.Empty(t, conn.Calls())
}

func TestRecorder_WaitForConcurrentEvents(t *testing.T) {
	r := NewRecorder()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Record("tick")
		}()
	}

	events := r.WaitFor(t, 10, 5*time.Second)
	assert.Len(t, events, 10)
	wg.Wait()
}

func TestRegistry_HoldsTestModels(t *testing.T) {
	assert.Equal(t, []string{"Badge", "Cat", "Dog", "Node", "Person", "Toy"}, Registry().Entities())
}
