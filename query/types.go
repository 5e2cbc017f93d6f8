package query

import "github.com/roach88/stow/record"

// Predicate represents a filter condition over one entity's fields.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in backend compilers.
//
// Predicate types:
//   - Compare: field <op> literal
//   - In: field matches one of a set of literals
//   - And: all children must be true (empty = always true)
//   - Or: at least one child must be true (empty = always false)
//   - Not: negation of a single child
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Valid reports whether op is one of the comparison operators.
func (op Op) Valid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Compare is a leaf comparison of a field against a literal.
//
// Comparing with record.Null under OpEq or OpNe tests for null.
type Compare struct {
	Field string
	Op    Op
	Value record.Value
}

func (Compare) predicateNode() {}

// In matches rows whose field equals any of Values. An empty set matches nothing.
type In struct {
	Field  string
	Values []record.Value
}

func (In) predicateNode() {}

// And represents a conjunction of predicates.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or represents a disjunction of predicates.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates a single predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}
