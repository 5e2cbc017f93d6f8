package record

import (
	"bytes"
	"fmt"
	"math"
	"time"
)

// Value is a sealed interface over the closed set of field shapes.
// Only Null, Int, Real, Text, Blob, Ref, List and RefList implement it.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents an absent value stored in a present field.
type Null struct{}

func (Null) value() {}

// Int represents an integer value.
type Int int64

func (Int) value() {}

// Real represents a floating point value.
type Real float64

func (Real) value() {}

// Text represents a string value.
type Text string

func (Text) value() {}

// Blob represents raw binary.
type Blob []byte

func (Blob) value() {}

// Ref is a reference to a nested persistable object.
//
// In write form Record carries the nested object's own record so it can be
// stored. In read form Record is set only once the reference is resolved;
// an unresolved Ref carries just the target identifier.
type Ref struct {
	Entity string
	ID     Value
	Record *Record
}

func (Ref) value() {}

// Resolved reports whether the referenced record is attached.
func (r Ref) Resolved() bool {
	return r.Record != nil
}

// List is an ordered collection of scalar values.
type List []Value

func (List) value() {}

// RefList is an ordered collection of references to one entity.
type RefList struct {
	Entity string
	Refs   []Ref
}

func (RefList) value() {}

// Kind identifies the shape of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindReal
	KindText
	KindBlob
	KindRef
	KindList
	KindRefList
)

var kindNames = [...]string{
	KindNull:    "null",
	KindInt:     "integer",
	KindReal:    "real",
	KindText:    "text",
	KindBlob:    "blob",
	KindRef:     "ref",
	KindList:    "list",
	KindRefList: "reflist",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return KindNull, fmt.Errorf("unknown kind %q", s)
}

// IsScalar reports whether values of this kind fit a single column directly.
func (k Kind) IsScalar() bool {
	return k <= KindBlob
}

// Class groups kinds that may replace one another in a column without a
// migration step. Scalars share one class; null joins any class.
func (k Kind) Class() string {
	switch k {
	case KindRef:
		return "ref"
	case KindList:
		return "list"
	case KindRefList:
		return "reflist"
	default:
		return "scalar"
	}
}

// KindOf returns the kind of v. A nil interface counts as null.
func KindOf(v Value) Kind {
	switch v.(type) {
	case Int:
		return KindInt
	case Real:
		return KindReal
	case Text:
		return KindText
	case Blob:
		return KindBlob
	case Ref:
		return KindRef
	case List:
		return KindList
	case RefList:
		return KindRefList
	default:
		return KindNull
	}
}

// IsNull reports whether v is Null or nil.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// FromGo converts a Go literal into a Value.
// Booleans become Int 0/1 and times become RFC 3339 Text in UTC.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("uint %d overflows int64", val)
		}
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("uint64 %d overflows int64", val)
		}
		return Int(val), nil
	case float32:
		return Real(val), nil
	case float64:
		return Real(val), nil
	case string:
		return Text(val), nil
	case []byte:
		return Blob(val), nil
	case bool:
		if val {
			return Int(1), nil
		}
		return Int(0), nil
	case time.Time:
		return Text(FormatTime(val)), nil
	default:
		return nil, fmt.Errorf("unsupported literal type: %T", v)
	}
}

// timeLayout is RFC 3339 with a fixed-width fraction so stored times sort
// lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t the way times are stored.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime is the inverse of FormatTime.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// ToDriver converts v into a database/sql argument.
// References collapse to their identifier; collections are JSON encoded.
// A nil collection is stored as NULL so it stays distinct from an empty one.
func ToDriver(v Value) (any, error) {
	switch val := v.(type) {
	case nil, Null:
		return nil, nil
	case Int:
		return int64(val), nil
	case Real:
		return float64(val), nil
	case Text:
		return string(val), nil
	case Blob:
		return []byte(val), nil
	case Ref:
		return ToDriver(val.ID)
	case List:
		if val == nil {
			return nil, nil
		}
		data, err := EncodeList(val)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	case RefList:
		if val.Refs == nil {
			return nil, nil
		}
		ids := make(List, len(val.Refs))
		for i, r := range val.Refs {
			ids[i] = r.ID
		}
		data, err := EncodeList(ids)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// FromDriver converts a raw column value into a Value of the wanted kind.
// Scalar kinds follow the raw value's own type, except that bytes read
// for a text column become Text. List kinds decode the JSON encoding.
func FromDriver(raw any, want Kind) (Value, error) {
	if raw == nil {
		return Null{}, nil
	}
	switch want {
	case KindList:
		data, err := rawBytes(raw)
		if err != nil {
			return nil, err
		}
		return DecodeList(data)
	case KindRefList:
		return nil, fmt.Errorf("reference lists need a target entity; use DecodeRefList")
	}

	switch val := raw.(type) {
	case int64:
		return Int(val), nil
	case float64:
		return Real(val), nil
	case string:
		if want == KindBlob {
			return Blob(val), nil
		}
		return Text(val), nil
	case []byte:
		if want == KindText {
			return Text(val), nil
		}
		return Blob(bytes.Clone(val)), nil
	case bool:
		if val {
			return Int(1), nil
		}
		return Int(0), nil
	case time.Time:
		return Text(FormatTime(val)), nil
	default:
		return nil, fmt.Errorf("unsupported driver value: %T", raw)
	}
}

// DecodeRefList decodes a stored identifier array into unresolved references.
func DecodeRefList(raw any, entity string) (Value, error) {
	if raw == nil {
		return Null{}, nil
	}
	data, err := rawBytes(raw)
	if err != nil {
		return nil, err
	}
	ids, err := DecodeList(data)
	if err != nil {
		return nil, err
	}
	refs := make([]Ref, len(ids))
	for i, id := range ids {
		refs[i] = Ref{Entity: entity, ID: id}
	}
	return RefList{Entity: entity, Refs: refs}, nil
}

func rawBytes(raw any) ([]byte, error) {
	switch val := raw.(type) {
	case string:
		return []byte(val), nil
	case []byte:
		return val, nil
	default:
		return nil, fmt.Errorf("collection column holds %T, want text", raw)
	}
}

// Equal reports deep equality of two values. Refs compare by entity and
// identifier only.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	switch x := a.(type) {
	case Int:
		y, ok := b.(Int)
		return ok && x == y
	case Real:
		y, ok := b.(Real)
		return ok && x == y
	case Text:
		y, ok := b.(Text)
		return ok && x == y
	case Blob:
		y, ok := b.(Blob)
		return ok && bytes.Equal(x, y)
	case Ref:
		y, ok := b.(Ref)
		return ok && x.Entity == y.Entity && Equal(x.ID, y.ID)
	case List:
		y, ok := b.(List)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case RefList:
		y, ok := b.(RefList)
		if !ok || x.Entity != y.Entity || len(x.Refs) != len(y.Refs) {
			return false
		}
		for i := range x.Refs {
			if !Equal(x.Refs[i], y.Refs[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Key returns a stable identity string for a scalar value, suitable as a map key.
func Key(v Value) string {
	switch val := v.(type) {
	case Int:
		return fmt.Sprintf("i:%d", int64(val))
	case Real:
		return fmt.Sprintf("r:%g", float64(val))
	case Text:
		return "t:" + string(val)
	case Blob:
		return fmt.Sprintf("b:%x", []byte(val))
	case Ref:
		return Key(val.ID)
	default:
		return "null"
	}
}
