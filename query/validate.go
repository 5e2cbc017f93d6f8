package query

import (
	"fmt"

	"github.com/roach88/stow/fault"
)

// Shape reports which fields a type declares.
// *record.Record and schema descriptors both satisfy it.
type Shape interface {
	Has(field string) bool
}

// Validate checks every field q references against shape.
//
// The predicate tree is walked depth-first, left to right, and then the
// sort keys in order. The first field not in shape is reported as
// UNKNOWN_FILTER_FIELD, so the same query always fails the same way.
// A nil query is valid.
func Validate(q *Query, entity string, shape Shape) error {
	if q == nil {
		return nil
	}
	if err := ValidatePredicate(q.Predicate(), entity, shape); err != nil {
		return err
	}
	for _, s := range q.sorts {
		if !shape.Has(s.Field) {
			return fault.UnknownFilterField(entity, s.Field)
		}
	}
	return nil
}

// ValidatePredicate checks a single predicate tree against shape.
// A nil predicate is valid.
func ValidatePredicate(p Predicate, entity string, shape Shape) error {
	v := &validator{entity: entity, shape: shape}
	return v.walk(p)
}

type validator struct {
	entity string
	shape  Shape
}

func (v *validator) walk(p Predicate) error {
	switch n := p.(type) {
	case nil:
		return nil
	case Compare:
		if !v.shape.Has(n.Field) {
			return fault.UnknownFilterField(v.entity, n.Field)
		}
		if !n.Op.Valid() {
			return v.malformed(n.Field, fmt.Sprintf("unsupported operator %q", n.Op), nil)
		}
		if n.Value == nil {
			return v.malformed(n.Field, "comparison without a value", nil)
		}
		return nil
	case In:
		if !v.shape.Has(n.Field) {
			return fault.UnknownFilterField(v.entity, n.Field)
		}
		return nil
	case And:
		return v.walkAll(n.Predicates)
	case Or:
		return v.walkAll(n.Predicates)
	case Not:
		if n.Predicate == nil {
			return v.malformed("", "negation without an operand", nil)
		}
		return v.walk(n.Predicate)
	default:
		return v.malformed("", fmt.Sprintf("unknown predicate type %T", p), nil)
	}
}

func (v *validator) walkAll(ps []Predicate) error {
	for _, p := range ps {
		if err := v.walk(p); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) malformed(field, msg string, err error) error {
	return &fault.Error{
		Code:    fault.CodeUnknown,
		Message: msg,
		Entity:  v.entity,
		Field:   field,
		Err:     err,
	}
}

// Fields returns every field p references, in depth-first order with
// duplicates removed.
func Fields(p Predicate) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	var walk func(Predicate)
	walk = func(p Predicate) {
		switch n := p.(type) {
		case Compare:
			add(n.Field)
		case In:
			add(n.Field)
		case And:
			for _, c := range n.Predicates {
				walk(c)
			}
		case Or:
			for _, c := range n.Predicates {
				walk(c)
			}
		case Not:
			walk(n.Predicate)
		}
	}
	walk(p)
	return out
}
