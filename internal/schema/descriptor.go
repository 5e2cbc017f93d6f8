package schema

import (
	"fmt"

	"github.com/roach88/stow/fault"
	"github.com/roach88/stow/internal/sqlgen"
	"github.com/roach88/stow/mapping"
	"github.com/roach88/stow/record"
)

// Column describes one column of an entity's table.
type Column struct {
	Name string
	Kind record.Kind

	// Affinity is the declared SQLite type, empty when the default
	// instance holds null and the type is unknown.
	Affinity string

	// Ref is the target entity of a reference or reference list.
	Ref string

	// IDKind is the kind of the target identifier for references.
	IDKind record.Kind

	PrimaryKey bool
}

// Descriptor is the column shape of one entity, derived from the write-form
// record of its default instance. It is never persisted.
type Descriptor struct {
	Entity     string
	Identifier string
	Columns    []Column
	Indexes    []mapping.Index

	byName map[string]int
}

// Describe derives the descriptor of entity from its registered default
// instance.
func Describe(reg *mapping.Registry, entity string) (*Descriptor, error) {
	model, rec, err := reg.Describe(entity)
	if err != nil {
		return nil, err
	}

	d := &Descriptor{
		Entity:     entity,
		Identifier: model.Identifier(),
		byName:     make(map[string]int, rec.Len()),
	}
	if indexed, ok := model.(mapping.Indexed); ok {
		d.Indexes = indexed.Indexes()
	}

	for _, key := range rec.Keys() {
		v, _ := rec.Lookup(key)
		col := Column{
			Name:       key,
			Kind:       record.KindOf(v),
			PrimaryKey: key == d.Identifier,
		}

		switch val := v.(type) {
		case record.Ref:
			col.Ref = val.Entity
		case record.RefList:
			col.Ref = val.Entity
		}

		if col.Ref != "" {
			idKind, err := identifierKind(reg, col.Ref, entity, rec, d.Identifier)
			if err != nil {
				return nil, fault.Wrap(err, fmt.Sprintf("describe %s.%s", entity, key))
			}
			col.IDKind = idKind
		}

		col.Affinity = sqlgen.Affinity(col.Kind)
		if col.Kind == record.KindRef {
			col.Affinity = sqlgen.Affinity(col.IDKind)
		}
		if col.PrimaryKey && !col.Kind.IsScalar() {
			return nil, fault.SchemaConflict(entity, key, fmt.Sprintf("identifier cannot hold a %s", col.Kind))
		}

		d.byName[key] = len(d.Columns)
		d.Columns = append(d.Columns, col)
	}
	return d, nil
}

// identifierKind returns the kind of target's identifier in its default
// instance. A self reference reuses the record being described.
func identifierKind(reg *mapping.Registry, target, entity string, rec *record.Record, identifier string) (record.Kind, error) {
	if target == entity {
		id, _ := rec.Lookup(identifier)
		return record.KindOf(id), nil
	}
	model, trec, err := reg.Describe(target)
	if err != nil {
		return record.KindNull, err
	}
	id, ok := trec.Lookup(model.Identifier())
	if !ok {
		return record.KindNull, fault.MissingField(target, model.Identifier())
	}
	return record.KindOf(id), nil
}

// Has reports whether the entity declares field.
func (d *Descriptor) Has(field string) bool {
	_, ok := d.byName[field]
	return ok
}

// Column returns the named column.
func (d *Descriptor) Column(name string) (Column, bool) {
	i, ok := d.byName[name]
	if !ok {
		return Column{}, false
	}
	return d.Columns[i], true
}

// Names returns the column names in declaration order.
func (d *Descriptor) Names() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// Nested returns the entities referenced by the descriptor, in column order
// without duplicates. The entity itself is excluded.
func (d *Descriptor) Nested() []string {
	var out []string
	seen := map[string]bool{d.Entity: true}
	for _, c := range d.Columns {
		if c.Ref != "" && !seen[c.Ref] {
			seen[c.Ref] = true
			out = append(out, c.Ref)
		}
	}
	return out
}

func (d *Descriptor) sqlColumns() []sqlgen.Column {
	out := make([]sqlgen.Column, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.sqlColumn()
	}
	return out
}

func (c Column) sqlColumn() sqlgen.Column {
	return sqlgen.Column{Name: c.Name, Affinity: c.Affinity, PrimaryKey: c.PrimaryKey}
}

// Record converts a result row into a read-form record. Columns the entity
// no longer declares are skipped; a declared column missing from the row is
// left out so that reconstruction reports it.
func (d *Descriptor) Record(columns []string, row []any) (*record.Record, error) {
	rec := record.New(d.Entity, record.Read)
	for i, name := range columns {
		col, ok := d.Column(name)
		if !ok {
			continue
		}
		v, err := col.decode(row[i])
		if err != nil {
			return nil, fault.SchemaConflict(d.Entity, name, err.Error())
		}
		rec.Set(name, v)
	}
	return rec, nil
}

func (c Column) decode(raw any) (record.Value, error) {
	switch c.Kind {
	case record.KindRef:
		id, err := record.FromDriver(raw, c.IDKind)
		if err != nil {
			return nil, err
		}
		return record.Ref{Entity: c.Ref, ID: id}, nil
	case record.KindRefList:
		return record.DecodeRefList(raw, c.Ref)
	default:
		return record.FromDriver(raw, c.Kind)
	}
}
