package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stow/fault"
	"github.com/roach88/stow/record"
)

func TestNested_NilIsNullReference(t *testing.T) {
	rec, err := Encode(&node{ID: "a"})
	require.NoError(t, err)

	next, err := rec.Get("next")
	require.NoError(t, err)
	assert.Equal(t, record.Ref{Entity: "Node", ID: record.Null{}}, next)

	kids, err := rec.Get("kids")
	require.NoError(t, err)
	assert.Equal(t, record.RefList{Entity: "Node"}, kids)
}

func TestNestedList_EmptyIsNotNil(t *testing.T) {
	rec, err := Encode(&node{ID: "a", Kids: []*node{}})
	require.NoError(t, err)

	out := &node{}
	require.NoError(t, Decode(rec, out, testRegistry()))
	assert.NotNil(t, out.Kids)
	assert.Empty(t, out.Kids)
}

func TestNestedList_NilElement(t *testing.T) {
	_, err := Encode(&node{ID: "a", Kids: []*node{{ID: "b"}, nil}})
	require.Error(t, err)
	assert.Equal(t, fault.CodeInvalidIdentifier, fault.CodeOf(err))
	assert.Contains(t, err.Error(), "kids[1]")
}

func TestNested_UnresolvedReferenceYieldsStub(t *testing.T) {
	rec := record.New("Pet", record.Read)
	base, err := Encode(&pet{})
	require.NoError(t, err)
	for _, k := range base.Keys() {
		v, _ := base.Lookup(k)
		rec.Set(k, v)
	}
	rec.Set("name", record.Text("Rex"))
	rec.Set("owner", record.Ref{Entity: "Owner", ID: record.Int(7)})
	rec.Set("toys", record.RefList{Entity: "Toy", Refs: []record.Ref{
		{Entity: "Toy", ID: record.Text("ball")},
	}})

	p := &pet{}
	require.NoError(t, Decode(rec, p, testRegistry()))

	require.NotNil(t, p.Owner)
	assert.Equal(t, &owner{ID: 7}, p.Owner)
	require.Len(t, p.Toys, 1)
	assert.Equal(t, &toy{SKU: "ball"}, p.Toys[0])
}

func TestNested_UnresolvedWithoutRegistry(t *testing.T) {
	rec := record.New("Node", record.Read)
	rec.Set("id", record.Text("a"))
	rec.Set("next", record.Ref{Entity: "Node", ID: record.Text("b")})
	rec.Set("kids", record.Null{})

	err := Decode(rec, &node{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry")
}

func TestNested_UnregisteredEntity(t *testing.T) {
	rec := record.New("Node", record.Read)
	rec.Set("id", record.Text("a"))
	rec.Set("next", record.Ref{Entity: "Node", ID: record.Text("b")})
	rec.Set("kids", record.Null{})

	err := Decode(rec, &node{}, NewRegistry())
	assert.Equal(t, fault.CodeUnregisteredType, fault.CodeOf(err))
}

func TestNested_WrongShape(t *testing.T) {
	rec := record.New("Node", record.Read)
	rec.Set("id", record.Text("a"))
	rec.Set("next", record.Text("b"))
	rec.Set("kids", record.Null{})

	err := Decode(rec, &node{}, testRegistry())
	assert.True(t, fault.IsSchemaConflict(err))
}

func TestEncode_CycleThroughReference(t *testing.T) {
	a := &node{ID: "a"}
	b := &node{ID: "b", Next: a}
	a.Next = b

	rec, err := Encode(a)
	require.NoError(t, err)

	out := &node{}
	require.NoError(t, Decode(rec, out, testRegistry()))

	require.NotNil(t, out.Next)
	assert.Equal(t, "b", out.Next.ID)
	require.NotNil(t, out.Next.Next)
	assert.Equal(t, "a", out.Next.Next.ID)

	// The walk stops at the first repeated object, leaving an identifier stub.
	var depth int
	for n := out; n != nil; n = n.Next {
		depth++
		require.Less(t, depth, 10)
	}
}

func TestEncode_SelfReference(t *testing.T) {
	a := &node{ID: "a"}
	a.Next = a
	a.Kids = []*node{a}

	rec, err := Encode(a)
	require.NoError(t, err)

	next, err := rec.Get("next")
	require.NoError(t, err)
	ref := next.(record.Ref)
	assert.Equal(t, record.Text("a"), ref.ID)
	require.True(t, ref.Resolved())

	inner, err := ref.Record.Get("next")
	require.NoError(t, err)
	innerRef := inner.(record.Ref)
	assert.Equal(t, record.Text("a"), innerRef.ID)
	assert.False(t, innerRef.Resolved(), "a repeated object is referenced by identifier only")
}

func TestEncode_SharedObjectIsNotACycle(t *testing.T) {
	shared := &node{ID: "s"}
	root := &node{ID: "r", Next: shared, Kids: []*node{shared, shared}}

	rec, err := Encode(root)
	require.NoError(t, err)

	kids, err := rec.Get("kids")
	require.NoError(t, err)
	for _, ref := range kids.(record.RefList).Refs {
		assert.True(t, ref.Resolved(), "siblings are encoded in full")
	}
}
