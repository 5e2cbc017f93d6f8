// Package query provides the filter algebra used to select stored objects.
//
// A predicate is a tree of leaf comparisons (Compare, In) and boolean
// composites (And, Or, Not). Leaves are built from typed Go literals:
//
//	p := query.AllOf(
//		query.Gt("age", 2),
//		query.Negate(query.IsNull("owner")),
//	)
//
// A Query adds ordered sort keys and a limit. Before a query reaches the
// storage engine it is validated against the target type's shape; a field
// the type does not declare fails with UNKNOWN_FILTER_FIELD.
package query
