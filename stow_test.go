package stow_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stow"
	"github.com/roach88/stow/fault"
	"github.com/roach88/stow/internal/testutil"
	"github.com/roach88/stow/mapping"
	"github.com/roach88/stow/query"
)

const waitTimeout = 5 * time.Second

var models = []mapping.Factory{
	func() mapping.Model { return &testutil.Dog{} },
	func() mapping.Model { return &testutil.Person{} },
	func() mapping.Model { return &testutil.Toy{} },
	func() mapping.Model { return &testutil.Node{} },
}

func openAt(t *testing.T, path, mode string) *stow.Store {
	t.Helper()
	s, err := stow.Open(stow.Config{Path: path, Mode: mode},
		stow.WithLogger(testutil.DiscardLogger()),
		stow.WithModels(models...))
	require.NoError(t, err)
	return s
}

func open(t *testing.T) *stow.Store {
	t.Helper()
	s := openAt(t, filepath.Join(t.TempDir(), "pets.db"), "")
	t.Cleanup(func() { s.Close() })
	return s
}

func wait[T any](t *testing.T, ch <-chan T) T {
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

func add[M mapping.Model](t *testing.T, s *stow.Store, objs ...M) error {
	t.Helper()
	ch := make(chan error, 1)
	stow.Add(s, objs, func(err error) { ch <- err })
	return wait(t, ch)
}

type result[T any] struct {
	v   T
	err error
}

func getDogs(t *testing.T, s *stow.Store, q *query.Query, opts ...stow.GetOption) ([]*testutil.Dog, error) {
	t.Helper()
	ch := make(chan result[[]*testutil.Dog], 1)
	stow.Get[testutil.Dog](s, q, func(dogs []*testutil.Dog, err error) {
		ch <- result[[]*testutil.Dog]{dogs, err}
	}, opts...)
	r := wait(t, ch)
	return r.v, r.err
}

func deleteDogs(t *testing.T, s *stow.Store, q *query.Query) (int64, error) {
	t.Helper()
	ch := make(chan result[int64], 1)
	stow.Delete[testutil.Dog](s, q, func(n int64, err error) { ch <- result[int64]{n, err} })
	r := wait(t, ch)
	return r.v, r.err
}

func rex() *testutil.Dog {
	return &testutil.Dog{
		Name:  "Rex",
		Age:   3,
		Mood:  testutil.MoodPlayful,
		Tags:  []string{"good"},
		Owner: &testutil.Person{ID: 7, Name: "Ann"},
		Toys:  []*testutil.Toy{{SKU: "ball", Label: "Red ball"}},
	}
}

func TestStore_AddThenFilteredGet(t *testing.T) {
	s := open(t)
	require.NoError(t, add(t, s, rex(), &testutil.Dog{Name: "Fido", Age: 1}))

	got, err := getDogs(t, s, query.Where(query.Gt("age", 2)))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Rex", got[0].Name)
	assert.Equal(t, 3, got[0].Age)
	assert.Equal(t, testutil.MoodPlayful, got[0].Mood)
	assert.Equal(t, []string{"good"}, got[0].Tags)
}

func TestStore_GetWithoutResolveReturnsIdentifierOnlyNested(t *testing.T) {
	s := open(t)
	require.NoError(t, add(t, s, rex()))

	got, err := getDogs(t, s, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Owner)
	assert.Equal(t, int64(7), got[0].Owner.ID)
	assert.Empty(t, got[0].Owner.Name)
	require.Len(t, got[0].Toys, 1)
	assert.Equal(t, "ball", got[0].Toys[0].SKU)
	assert.Empty(t, got[0].Toys[0].Label)
}

func TestStore_GetResolveLoadsNested(t *testing.T) {
	s := open(t)
	require.NoError(t, add(t, s, rex()))

	got, err := getDogs(t, s, nil, stow.Resolve())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, &testutil.Person{ID: 7, Name: "Ann"}, got[0].Owner)
	assert.Equal(t, []*testutil.Toy{{SKU: "ball", Label: "Red ball"}}, got[0].Toys)
}

func TestStore_AddUpserts(t *testing.T) {
	s := open(t)
	require.NoError(t, add(t, s, rex()))

	older := rex()
	older.Age = 4
	require.NoError(t, add(t, s, older))

	got, err := getDogs(t, s, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].Age)
}

func TestStore_DeleteOnEmptyTable(t *testing.T) {
	s := open(t)

	n, err := deleteDogs(t, s, query.Where(query.Lt("age", 0)))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_LaterAddWinsUnderSortedFilter(t *testing.T) {
	s := open(t)
	require.NoError(t, add(t, s, &testutil.Dog{Name: "Rex", Age: 3}))
	require.NoError(t, add(t, s, &testutil.Dog{Name: "Rex", Age: 4}))

	got, err := getDogs(t, s, query.Where(query.Gt("age", 2)).SortBy("name", query.Ascending))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Rex", got[0].Name)
	assert.Equal(t, 4, got[0].Age)
}

func TestStore_DeleteReportsCount(t *testing.T) {
	s := open(t)
	require.NoError(t, add(t, s, rex(), &testutil.Dog{Name: "Fido", Age: 1}, &testutil.Dog{Name: "Bo", Age: 9}))

	n, err := deleteDogs(t, s, query.Where(query.Lt("age", 5)))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := getDogs(t, s, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bo", got[0].Name)
}

func TestStore_UnknownFilterField(t *testing.T) {
	s := open(t)

	_, err := getDogs(t, s, query.Where(query.Eq("colour", "brown")))
	require.Error(t, err)
	assert.True(t, fault.IsUnknownFilterField(err))
}

func TestStore_CreateIndex(t *testing.T) {
	s := open(t)

	ch := make(chan result[string], 2)
	for range 2 {
		stow.CreateIndex[testutil.Dog](s, []string{"name", "age"}, query.Gt("age", 0),
			func(name string, err error) { ch <- result[string]{name, err} })
	}
	first, second := wait(t, ch), wait(t, ch)
	require.NoError(t, first.err)
	require.NoError(t, second.err)
	assert.NotEmpty(t, first.v)
	assert.Equal(t, first.v, second.v)
}

func TestStore_NilCompletionsAreAllowed(t *testing.T) {
	s := open(t)

	stow.AddOne(s, rex(), nil)
	stow.Delete[testutil.Dog](s, query.Where(query.Eq("name", "nobody")), nil)
	stow.CreateIndex[testutil.Dog](s, []string{"age"}, nil, nil)
	stow.Get[testutil.Dog](s, nil, nil)
	stow.Get[testutil.Dog](s, nil, nil, stow.Resolve())

	got, err := getDogs(t, s, nil)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_UnregisteredType(t *testing.T) {
	s := open(t)

	ch := make(chan error, 1)
	stow.AddOne(s, &testutil.Badge{Label: "gold"}, func(err error) { ch <- err })
	err := wait(t, ch)
	require.Error(t, err)
	assert.Equal(t, fault.CodeUnregisteredType, fault.CodeOf(err))
}

func TestStore_RegisterAfterOpen(t *testing.T) {
	s := open(t)
	require.NoError(t, s.Register(func() mapping.Model { return &testutil.Cat{} }))

	require.NoError(t, add(t, s, &testutil.Cat{Name: "Tom", Age: 2}))

	ch := make(chan result[[]*testutil.Cat], 1)
	stow.Get[testutil.Cat](s, nil, func(cats []*testutil.Cat, err error) {
		ch <- result[[]*testutil.Cat]{cats, err}
	})
	r := wait(t, ch)
	require.NoError(t, r.err)
	assert.Equal(t, []*testutil.Cat{{Name: "Tom", Age: 2}}, r.v)
}

func TestStore_ClosedStoreFailsOperations(t *testing.T) {
	s := openAt(t, filepath.Join(t.TempDir(), "pets.db"), "")
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	ch := make(chan error, 1)
	stow.AddOne(s, rex(), func(err error) { ch <- err })
	err := wait(t, ch)
	require.Error(t, err)
	assert.Equal(t, fault.CodeClosed, fault.CodeOf(err))
}

func TestStore_CloseDrainsQueuedOperations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pets.db")
	s := openAt(t, path, "")
	for i := range 20 {
		stow.AddOne(s, &testutil.Dog{Name: string(rune('a' + i)), Age: i}, nil)
	}
	require.NoError(t, s.Close())

	reopened := openAt(t, path, "")
	t.Cleanup(func() { reopened.Close() })
	got, err := getDogs(t, reopened, nil)
	require.NoError(t, err)
	assert.Len(t, got, 20)
}

func TestStore_SandboxLeavesFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pets.db")

	normal := openAt(t, path, "normal")
	require.NoError(t, add(t, normal, rex()))
	require.NoError(t, normal.Close())

	sandbox := openAt(t, path, "sandbox")
	assert.NotEqual(t, path, sandbox.Path())
	require.NoError(t, add(t, sandbox, &testutil.Dog{Name: "Ghost", Age: 5}))
	seen, err := getDogs(t, sandbox, query.New().SortBy("name", query.Ascending))
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, "Ghost", seen[0].Name)
	require.NoError(t, sandbox.Close())

	reopened := openAt(t, path, "normal")
	t.Cleanup(func() { reopened.Close() })
	got, err := getDogs(t, reopened, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Rex", got[0].Name)
}

func TestOpen_RejectsInvalidConfig(t *testing.T) {
	_, err := stow.Open(stow.Config{Path: filepath.Join(t.TempDir(), "x.db"), Mode: "shared"},
		stow.WithLogger(testutil.DiscardLogger()))
	require.Error(t, err)

	_, err = stow.Open(stow.Config{}, stow.WithLogger(testutil.DiscardLogger()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path")

	s, err := stow.Open(stow.Config{Path: filepath.Join(t.TempDir(), "y.db")},
		stow.WithLogger(testutil.DiscardLogger()))
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
