package mapping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stow/fault"
	"github.com/roach88/stow/record"
)

func samplePet() *pet {
	return &pet{
		Name:   "Rex",
		Age:    3,
		Weight: 12.5,
		Good:   true,
		Photo:  []byte{0xca, 0xfe},
		Born:   time.Date(2021, 5, 4, 10, 30, 0, 125, time.UTC),
		Nick:   ptr("rexy"),
		Chip:   ptr(int64(981)),
		Score:  nil,
		Tags:   []string{"loud", "brown"},
		Counts: []int64{},
		Marks:  []float64{1.5, 2},
		Traits: map[string]struct{}{"lazy": {}, "happy": {}},
		Mood:   mood("calm"),
		Size:   size(2),
		Owner:  &owner{ID: 7, Name: "Ann"},
		Toys:   []*toy{{SKU: "ball", Label: "Red ball"}, {SKU: "rope", Label: "Rope"}},
	}
}

func TestEncode_FieldOrderAndValues(t *testing.T) {
	rec, err := Encode(samplePet())
	require.NoError(t, err)

	assert.Equal(t, "Pet", rec.Entity())
	assert.Equal(t, record.Write, rec.Mode())
	assert.Equal(t, []string{
		"name", "age", "weight", "good", "photo", "born", "nick", "chip", "score",
		"tags", "counts", "marks", "traits", "mood", "size", "owner", "toys",
	}, rec.Keys())

	get := func(key string) record.Value {
		v, err := rec.Get(key)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, record.Text("Rex"), get("name"))
	assert.Equal(t, record.Int(3), get("age"))
	assert.Equal(t, record.Real(12.5), get("weight"))
	assert.Equal(t, record.Int(1), get("good"))
	assert.Equal(t, record.Blob{0xca, 0xfe}, get("photo"))
	assert.Equal(t, record.Text("2021-05-04T10:30:00.000000125Z"), get("born"))
	assert.Equal(t, record.Text("rexy"), get("nick"))
	assert.Equal(t, record.Null{}, get("score"))
	assert.Equal(t, record.List{record.Text("loud"), record.Text("brown")}, get("tags"))
	assert.Equal(t, record.List{}, get("counts"))
	assert.Equal(t, record.List{record.Text("happy"), record.Text("lazy")}, get("traits"), "sets are stored sorted")
	assert.Equal(t, record.Text("calm"), get("mood"))
	assert.Equal(t, record.Int(2), get("size"))

	ownerRef, ok := get("owner").(record.Ref)
	require.True(t, ok)
	assert.Equal(t, "Owner", ownerRef.Entity)
	assert.Equal(t, record.Int(7), ownerRef.ID)
	require.True(t, ownerRef.Resolved())
	name, err := ownerRef.Record.Get("name")
	require.NoError(t, err)
	assert.Equal(t, record.Text("Ann"), name)

	toys, ok := get("toys").(record.RefList)
	require.True(t, ok)
	assert.Equal(t, "Toy", toys.Entity)
	require.Len(t, toys.Refs, 2)
	assert.Equal(t, record.Text("ball"), toys.Refs[0].ID)
	assert.Equal(t, record.Text("rope"), toys.Refs[1].ID)
}

func TestRoundTrip_AllFieldKinds(t *testing.T) {
	in := samplePet()
	rec, err := Encode(in)
	require.NoError(t, err)

	out := &pet{}
	require.NoError(t, Decode(rec, out, testRegistry()))

	assert.True(t, in.Born.Equal(out.Born))
	out.Born = in.Born
	assert.Equal(t, in, out)
}

func TestRoundTrip_DefaultInstance(t *testing.T) {
	rec, err := Encode(&pet{})
	require.NoError(t, err)

	out := &pet{Name: "stale", Tags: []string{"x"}, Owner: &owner{ID: 1}}
	require.NoError(t, Decode(rec, out, testRegistry()))

	assert.Equal(t, "", out.Name)
	assert.Nil(t, out.Tags)
	assert.Nil(t, out.Traits)
	assert.Nil(t, out.Owner)
	assert.Nil(t, out.Toys)
	assert.Nil(t, out.Nick)
}

func TestDecode_MissingField(t *testing.T) {
	rec := record.New("Owner", record.Read)
	rec.Set("id", record.Int(1))

	err := Decode(rec, &owner{}, nil)
	require.Error(t, err)
	assert.True(t, fault.IsMissingField(err))

	var fe *fault.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "name", fe.Field)
}

func TestDecode_NullScalarsBecomeZero(t *testing.T) {
	rec := record.New("Owner", record.Read)
	rec.Set("id", record.Null{})
	rec.Set("name", record.Null{})

	o := &owner{ID: 9, Name: "old"}
	require.NoError(t, Decode(rec, o, nil))
	assert.Equal(t, &owner{}, o)
}

func TestDecode_KindMismatch(t *testing.T) {
	rec := record.New("Owner", record.Read)
	rec.Set("id", record.Text("seven"))
	rec.Set("name", record.Text("Ann"))

	err := Decode(rec, &owner{}, nil)
	require.Error(t, err)
	assert.True(t, fault.IsSchemaConflict(err))
	assert.Contains(t, err.Error(), "expected integer")
}

func TestDecode_FirstErrorWins(t *testing.T) {
	rec := record.New("Owner", record.Read)

	err := Decode(rec, &owner{}, nil)
	var fe *fault.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "id", fe.Field)
}

func TestDecode_AcceptsWriteRecord(t *testing.T) {
	rec, err := Encode(&owner{ID: 3, Name: "Bo"})
	require.NoError(t, err)

	o := &owner{}
	require.NoError(t, Decode(rec, o, nil))
	assert.Equal(t, &owner{ID: 3, Name: "Bo"}, o)
	assert.Equal(t, record.Write, rec.Mode(), "decode must not flip the caller's record")
}

func TestDecode_InvalidTime(t *testing.T) {
	rec, err := Encode(&pet{})
	require.NoError(t, err)
	rec.Set("born", record.Text("yesterday"))

	err = Decode(rec, &pet{}, testRegistry())
	assert.True(t, fault.IsSchemaConflict(err))
}

func TestFloat_AcceptsStoredInteger(t *testing.T) {
	rec, err := Encode(&pet{})
	require.NoError(t, err)
	rec.Set("weight", record.Int(4))
	rec.Set("marks", record.List{record.Int(1), record.Real(2.5)})

	p := &pet{}
	require.NoError(t, Decode(rec, p, testRegistry()))
	assert.Equal(t, 4.0, p.Weight)
	assert.Equal(t, []float64{1, 2.5}, p.Marks)
}

func TestEncode_MissingIdentifier(t *testing.T) {
	_, err := Encode(&anonymous{Label: "x"})
	require.Error(t, err)
	assert.True(t, fault.IsMissingField(err))
}

func TestIdentity(t *testing.T) {
	rec, err := Encode(&owner{ID: 5})
	require.NoError(t, err)

	id, err := Identity(&owner{}, rec)
	require.NoError(t, err)
	assert.Equal(t, record.Int(5), id)

	rec.Set("id", record.Null{})
	_, err = Identity(&owner{}, rec)
	assert.Equal(t, fault.CodeInvalidIdentifier, fault.CodeOf(err))
}

func TestMapper_Fail(t *testing.T) {
	m := &Mapper{rec: record.New("Owner", record.Write)}
	m.Fail(nil)
	assert.NoError(t, m.Err())

	m.Fail(assert.AnError)
	m.Fail(fault.Closed())
	assert.Equal(t, assert.AnError, m.Err())

	s := "ignored"
	m.String("name", &s)
	assert.False(t, m.Record().Has("name"), "writes stop after the first failure")
}

func TestMapper_Value(t *testing.T) {
	m := &Mapper{rec: record.New("Owner", record.Write)}
	v := record.Value(record.Real(1.25))
	m.Value("raw", &v)

	r := &Mapper{rec: m.Record().WithMode(record.Read)}
	var got record.Value
	r.Value("raw", &got)
	require.NoError(t, r.Err())
	assert.Equal(t, record.Real(1.25), got)
}
