package query

import (
	"fmt"
	"time"

	"github.com/roach88/stow/record"
)

// Literal is the set of Go types accepted as comparison literals.
type Literal interface {
	int | int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 |
		float32 | float64 |
		string | []byte | bool | time.Time
}

// literal converts v. Every Literal type has a Value form.
func literal[T Literal](v T) record.Value {
	switch x := any(v).(type) {
	case int:
		return record.Int(x)
	case int8:
		return record.Int(x)
	case int16:
		return record.Int(x)
	case int32:
		return record.Int(x)
	case int64:
		return record.Int(x)
	case uint8:
		return record.Int(x)
	case uint16:
		return record.Int(x)
	case uint32:
		return record.Int(x)
	case float32:
		return record.Real(x)
	case float64:
		return record.Real(x)
	case string:
		return record.Text(x)
	case []byte:
		return record.Blob(x)
	case bool:
		if x {
			return record.Int(1)
		}
		return record.Int(0)
	case time.Time:
		return record.Text(record.FormatTime(x))
	}
	panic(fmt.Sprintf("query: unhandled literal type %T", v))
}

func compare[T Literal](field string, op Op, v T) Predicate {
	return Compare{Field: field, Op: op, Value: literal(v)}
}

// Eq builds field = v.
func Eq[T Literal](field string, v T) Predicate { return compare(field, OpEq, v) }

// Ne builds field != v.
func Ne[T Literal](field string, v T) Predicate { return compare(field, OpNe, v) }

// Lt builds field < v.
func Lt[T Literal](field string, v T) Predicate { return compare(field, OpLt, v) }

// Le builds field <= v.
func Le[T Literal](field string, v T) Predicate { return compare(field, OpLe, v) }

// Gt builds field > v.
func Gt[T Literal](field string, v T) Predicate { return compare(field, OpGt, v) }

// Ge builds field >= v.
func Ge[T Literal](field string, v T) Predicate { return compare(field, OpGe, v) }

// IsNull matches rows where field is null.
func IsNull(field string) Predicate {
	return Compare{Field: field, Op: OpEq, Value: record.Null{}}
}

// NotNull matches rows where field is not null.
func NotNull(field string) Predicate {
	return Compare{Field: field, Op: OpNe, Value: record.Null{}}
}

// OneOf builds field IN (vs...).
func OneOf[T Literal](field string, vs ...T) Predicate {
	values := make([]record.Value, len(vs))
	for i, v := range vs {
		values[i] = literal(v)
	}
	return In{Field: field, Values: values}
}

// AllOf combines predicates with AND. Nil predicates are skipped.
func AllOf(ps ...Predicate) Predicate {
	return And{Predicates: compact(ps)}
}

// AnyOf combines predicates with OR. Nil predicates are skipped.
func AnyOf(ps ...Predicate) Predicate {
	return Or{Predicates: compact(ps)}
}

// Negate builds NOT p.
func Negate(p Predicate) Predicate {
	return Not{Predicate: p}
}

func compact(ps []Predicate) []Predicate {
	out := make([]Predicate, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
