package mapping

import (
	"fmt"
	"sort"
	"time"

	"github.com/roach88/stow/fault"
	"github.com/roach88/stow/record"
)

// Mapper moves field values between an object and a record.
//
// The first failure is kept and later calls become no-ops, so Map methods
// need no error handling of their own. Err reports the failure.
type Mapper struct {
	rec      *record.Record
	registry *Registry
	err      error

	// active holds nested objects currently being encoded (cycle guard).
	active map[any]bool

	// shallow writes nested fields as null references without visiting them.
	shallow bool

	// decoded maps resolved records to the objects built from them.
	decoded map[*record.Record]Model
}

// Mode returns the direction of the mapping.
func (m *Mapper) Mode() record.Mode { return m.rec.Mode() }

// Writing reports whether fields flow from the object into the record.
func (m *Mapper) Writing() bool { return m.rec.Mode() == record.Write }

// Record returns the record being read or written.
func (m *Mapper) Record() *record.Record { return m.rec }

// Err returns the first failure recorded during mapping.
func (m *Mapper) Err() error { return m.err }

// Fail records err unless a failure is already recorded.
func (m *Mapper) Fail(err error) {
	if m.err == nil && err != nil {
		m.err = err
	}
}

// Value transfers a raw record value. Custom encodings build on it.
func (m *Mapper) Value(key string, v *record.Value) {
	if m.Writing() {
		m.write(key, *v)
		return
	}
	if val, ok := m.read(key); ok {
		*v = val
	}
}

func (m *Mapper) write(key string, v record.Value) {
	if m.err != nil {
		return
	}
	m.rec.Set(key, v)
}

func (m *Mapper) read(key string) (record.Value, bool) {
	if m.err != nil {
		return nil, false
	}
	v, err := m.rec.Get(key)
	if err != nil {
		m.Fail(err)
		return nil, false
	}
	return v, true
}

func (m *Mapper) mismatch(key, want string, got record.Value) {
	m.Fail(fault.SchemaConflict(m.rec.Entity(), key,
		fmt.Sprintf("expected %s, found %s", want, record.KindOf(got))))
}

// String maps a text field.
func (m *Mapper) String(key string, v *string) {
	if m.Writing() {
		m.write(key, record.Text(*v))
		return
	}
	val, ok := m.read(key)
	if !ok {
		return
	}
	switch x := val.(type) {
	case record.Text:
		*v = string(x)
	case record.Blob:
		*v = string(x)
	case record.Null:
		*v = ""
	default:
		m.mismatch(key, "text", val)
	}
}

// Int64 maps an integer field.
func (m *Mapper) Int64(key string, v *int64) {
	if m.Writing() {
		m.write(key, record.Int(*v))
		return
	}
	val, ok := m.read(key)
	if !ok {
		return
	}
	switch x := val.(type) {
	case record.Int:
		*v = int64(x)
	case record.Null:
		*v = 0
	default:
		m.mismatch(key, "integer", val)
	}
}

// Int maps an integer field held in an int.
func (m *Mapper) Int(key string, v *int) {
	n := int64(*v)
	m.Int64(key, &n)
	if !m.Writing() && m.err == nil {
		*v = int(n)
	}
}

// Float maps a real field. Stored integers are accepted on read.
func (m *Mapper) Float(key string, v *float64) {
	if m.Writing() {
		m.write(key, record.Real(*v))
		return
	}
	val, ok := m.read(key)
	if !ok {
		return
	}
	switch x := val.(type) {
	case record.Real:
		*v = float64(x)
	case record.Int:
		*v = float64(x)
	case record.Null:
		*v = 0
	default:
		m.mismatch(key, "real", val)
	}
}

// Bool maps a boolean stored as integer 0 or 1.
func (m *Mapper) Bool(key string, v *bool) {
	var n int64
	if *v {
		n = 1
	}
	m.Int64(key, &n)
	if !m.Writing() && m.err == nil {
		*v = n != 0
	}
}

// Bytes maps a binary field.
func (m *Mapper) Bytes(key string, v *[]byte) {
	if m.Writing() {
		m.write(key, record.Blob(*v))
		return
	}
	val, ok := m.read(key)
	if !ok {
		return
	}
	switch x := val.(type) {
	case record.Blob:
		*v = []byte(x)
	case record.Text:
		*v = []byte(x)
	case record.Null:
		*v = nil
	default:
		m.mismatch(key, "blob", val)
	}
}

// Time maps a timestamp stored as RFC 3339 text in UTC.
// Location and monotonic readings are not preserved.
func (m *Mapper) Time(key string, v *time.Time) {
	if m.Writing() {
		m.write(key, record.Text(record.FormatTime(*v)))
		return
	}
	val, ok := m.read(key)
	if !ok {
		return
	}
	switch x := val.(type) {
	case record.Text:
		t, err := record.ParseTime(string(x))
		if err != nil {
			m.Fail(fault.SchemaConflict(m.rec.Entity(), key, fmt.Sprintf("invalid time %q", string(x))))
			return
		}
		*v = t
	case record.Null:
		*v = time.Time{}
	default:
		m.mismatch(key, "time text", val)
	}
}

// OptionalString maps a nullable text field.
func (m *Mapper) OptionalString(key string, v **string) {
	if m.Writing() {
		if *v == nil {
			m.write(key, record.Null{})
			return
		}
		m.write(key, record.Text(**v))
		return
	}
	val, ok := m.read(key)
	if !ok {
		return
	}
	if record.IsNull(val) {
		*v = nil
		return
	}
	var s string
	m.String(key, &s)
	if m.err == nil {
		*v = &s
	}
}

// OptionalInt64 maps a nullable integer field.
func (m *Mapper) OptionalInt64(key string, v **int64) {
	if m.Writing() {
		if *v == nil {
			m.write(key, record.Null{})
			return
		}
		m.write(key, record.Int(**v))
		return
	}
	val, ok := m.read(key)
	if !ok {
		return
	}
	if record.IsNull(val) {
		*v = nil
		return
	}
	var n int64
	m.Int64(key, &n)
	if m.err == nil {
		*v = &n
	}
}

// OptionalFloat maps a nullable real field.
func (m *Mapper) OptionalFloat(key string, v **float64) {
	if m.Writing() {
		if *v == nil {
			m.write(key, record.Null{})
			return
		}
		m.write(key, record.Real(**v))
		return
	}
	val, ok := m.read(key)
	if !ok {
		return
	}
	if record.IsNull(val) {
		*v = nil
		return
	}
	var f float64
	m.Float(key, &f)
	if m.err == nil {
		*v = &f
	}
}

// readList returns the stored collection, or nil with ok=true for null.
func (m *Mapper) readList(key string) (record.List, bool) {
	val, ok := m.read(key)
	if !ok {
		return nil, false
	}
	switch x := val.(type) {
	case record.List:
		if x == nil {
			return nil, true
		}
		return x, true
	case record.Null:
		return nil, true
	default:
		m.mismatch(key, "list", val)
		return nil, false
	}
}

// Strings maps an ordered collection of text.
func (m *Mapper) Strings(key string, v *[]string) {
	if m.Writing() {
		if *v == nil {
			m.write(key, record.List(nil))
			return
		}
		l := make(record.List, len(*v))
		for i, s := range *v {
			l[i] = record.Text(s)
		}
		m.write(key, l)
		return
	}
	l, ok := m.readList(key)
	if !ok {
		return
	}
	if l == nil {
		*v = nil
		return
	}
	out := make([]string, len(l))
	for i, elem := range l {
		s, isText := elem.(record.Text)
		if !isText {
			m.mismatch(fmt.Sprintf("%s[%d]", key, i), "text", elem)
			return
		}
		out[i] = string(s)
	}
	*v = out
}

// Int64s maps an ordered collection of integers.
func (m *Mapper) Int64s(key string, v *[]int64) {
	if m.Writing() {
		if *v == nil {
			m.write(key, record.List(nil))
			return
		}
		l := make(record.List, len(*v))
		for i, n := range *v {
			l[i] = record.Int(n)
		}
		m.write(key, l)
		return
	}
	l, ok := m.readList(key)
	if !ok {
		return
	}
	if l == nil {
		*v = nil
		return
	}
	out := make([]int64, len(l))
	for i, elem := range l {
		n, isInt := elem.(record.Int)
		if !isInt {
			m.mismatch(fmt.Sprintf("%s[%d]", key, i), "integer", elem)
			return
		}
		out[i] = int64(n)
	}
	*v = out
}

// Floats maps an ordered collection of reals.
func (m *Mapper) Floats(key string, v *[]float64) {
	if m.Writing() {
		if *v == nil {
			m.write(key, record.List(nil))
			return
		}
		l := make(record.List, len(*v))
		for i, f := range *v {
			l[i] = record.Real(f)
		}
		m.write(key, l)
		return
	}
	l, ok := m.readList(key)
	if !ok {
		return
	}
	if l == nil {
		*v = nil
		return
	}
	out := make([]float64, len(l))
	for i, elem := range l {
		switch x := elem.(type) {
		case record.Real:
			out[i] = float64(x)
		case record.Int:
			out[i] = float64(x)
		default:
			m.mismatch(fmt.Sprintf("%s[%d]", key, i), "real", elem)
			return
		}
	}
	*v = out
}

// StringSet maps an unordered collection of text. Members are stored sorted.
func (m *Mapper) StringSet(key string, v *map[string]struct{}) {
	if m.Writing() {
		if *v == nil {
			m.write(key, record.List(nil))
			return
		}
		members := make([]string, 0, len(*v))
		for s := range *v {
			members = append(members, s)
		}
		sort.Strings(members)
		m.Strings(key, &members)
		return
	}
	var members []string
	m.Strings(key, &members)
	if m.err != nil {
		return
	}
	if members == nil {
		*v = nil
		return
	}
	set := make(map[string]struct{}, len(members))
	for _, s := range members {
		set[s] = struct{}{}
	}
	*v = set
}

// Enum maps a string-backed enumeration.
func Enum[T ~string](m *Mapper, key string, v *T) {
	s := string(*v)
	m.String(key, &s)
	if !m.Writing() && m.err == nil {
		*v = T(s)
	}
}

// IntEnum maps an integer-backed enumeration.
func IntEnum[T ~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32](m *Mapper, key string, v *T) {
	n := int64(*v)
	m.Int64(key, &n)
	if !m.Writing() && m.err == nil {
		*v = T(n)
	}
}
