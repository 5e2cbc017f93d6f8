// Package mapping implements the Mapping Protocol: the capability every
// persistable type implements to describe itself to and from a
// record.Record, without runtime reflection.
//
// A type implements Model with a single Map method that works in both
// directions:
//
//	func (d *Dog) Map(m *mapping.Mapper) {
//		m.String("name", &d.Name)
//		m.Int("age", &d.Age)
//		mapping.Nested(m, "owner", &d.Owner)
//		mapping.NestedList(m, "toys", &d.Toys)
//	}
//
// When the Mapper is writing, each call copies the field into the record;
// when reading, each call copies the record's value back into the field.
// Because the same code runs both ways, the shape inferred from a type's
// default instance always matches the shape of every stored instance.
package mapping

import "github.com/roach88/stow/query"

// Model is implemented by every persistable type.
type Model interface {
	// Entity names the type; it is also the table name.
	Entity() string

	// Identifier names the field that uniquely identifies instances.
	Identifier() string

	// Map transfers every declared field between the object and m.
	Map(m *Mapper)
}

// Factory builds a default instance of one persistable type.
// Factories must not depend on caller-supplied arguments.
type Factory func() Model

// Index declares an index over ordered fields with an optional row filter.
type Index struct {
	Fields []string
	Filter query.Predicate
}

// Indexed is implemented by models that declare their own indices.
// Declared indices are ensured together with the type's table.
type Indexed interface {
	Indexes() []Index
}
