package mapping

import (
	"github.com/roach88/stow/fault"
	"github.com/roach88/stow/record"
)

// Encode builds the write-form record of model. Nested objects become
// references carrying their own records.
func Encode(model Model) (*record.Record, error) {
	return encode(model, map[any]bool{}, false)
}

func encode(model Model, active map[any]bool, shallow bool) (*record.Record, error) {
	rec := record.New(model.Entity(), record.Write)
	m := &Mapper{
		rec:     rec,
		active:  active,
		shallow: shallow,
	}
	model.Map(m)
	if err := m.Err(); err != nil {
		return nil, err
	}
	if !rec.Has(model.Identifier()) {
		return nil, fault.MissingField(model.Entity(), model.Identifier())
	}
	return rec, nil
}

// Decode fills model from rec. Every field model maps must be present in
// rec. The registry builds nested objects.
//
// A resolved record reached twice decodes to one object, so shared and
// cyclic graphs keep their shape.
func Decode(rec *record.Record, model Model, registry *Registry) error {
	return NewDecoder(registry).Decode(rec, model)
}

// Decoder decodes several records into one object graph: a record reached
// from more than one place, including as a root, yields a single object.
type Decoder struct {
	registry *Registry
	decoded  map[*record.Record]Model
}

// NewDecoder creates a decoder building nested objects from registry.
func NewDecoder(registry *Registry) *Decoder {
	return &Decoder{registry: registry, decoded: map[*record.Record]Model{}}
}

// Decode fills model from rec.
func (d *Decoder) Decode(rec *record.Record, model Model) error {
	return decode(rec, model, d.registry, d.decoded)
}

// Decoded returns the object already built from rec, if any.
func (d *Decoder) Decoded(rec *record.Record) (Model, bool) {
	m, ok := d.decoded[rec]
	return m, ok
}

func decode(rec *record.Record, model Model, registry *Registry, decoded map[*record.Record]Model) error {
	decoded[rec] = model
	if rec.Mode() != record.Read {
		rec = rec.WithMode(record.Read)
	}
	m := &Mapper{
		rec:      rec,
		registry: registry,
		decoded:  decoded,
	}
	model.Map(m)
	return m.Err()
}

// Identity returns the identifier value held by a write-form record.
func Identity(model Model, rec *record.Record) (record.Value, error) {
	id, err := rec.Get(model.Identifier())
	if err != nil {
		return nil, err
	}
	if record.IsNull(id) {
		return nil, fault.InvalidIdentifier(model.Entity(), model.Identifier(), "identifier is null")
	}
	return id, nil
}
