package mapping

import (
	"fmt"

	"github.com/roach88/stow/fault"
	"github.com/roach88/stow/record"
)

// Nested maps a field holding another persistable object.
//
// The object is stored in its own table and the field holds a reference to
// its identifier. A nil pointer maps to a null reference.
//
//	mapping.Nested(m, "owner", &d.Owner) // d.Owner is *Person
func Nested[E any, P interface {
	*E
	Model
}](m *Mapper, key string, v *P) {
	entity := P(new(E)).Entity()

	if m.Writing() {
		if m.shallow || (*E)(*v) == nil {
			m.write(key, record.Ref{Entity: entity, ID: record.Null{}})
			return
		}
		ref, err := m.encodeNested((*E)(*v), *v)
		if err != nil {
			m.Fail(fault.Wrap(err, fmt.Sprintf("encode %s.%s", m.rec.Entity(), key)))
			return
		}
		m.write(key, ref)
		return
	}

	val, ok := m.read(key)
	if !ok {
		return
	}
	switch x := val.(type) {
	case record.Null:
		*v = nil
	case record.Ref:
		obj, err := decodeRef[E, P](m, x)
		if err != nil {
			m.Fail(fault.Wrap(err, fmt.Sprintf("decode %s.%s", m.rec.Entity(), key)))
			return
		}
		*v = obj
	default:
		m.mismatch(key, "reference", val)
	}
}

// NestedList maps a collection of persistable objects of one type.
// Each element is stored once per identifier; the field holds the ordered
// identifiers.
func NestedList[E any, P interface {
	*E
	Model
}](m *Mapper, key string, v *[]P) {
	entity := P(new(E)).Entity()

	if m.Writing() {
		if m.shallow || *v == nil {
			m.write(key, record.RefList{Entity: entity})
			return
		}
		refs := make([]record.Ref, len(*v))
		for i, elem := range *v {
			if (*E)(elem) == nil {
				m.Fail(fault.InvalidIdentifier(m.rec.Entity(), fmt.Sprintf("%s[%d]", key, i), "nil element in nested collection"))
				return
			}
			ref, err := m.encodeNested((*E)(elem), elem)
			if err != nil {
				m.Fail(fault.Wrap(err, fmt.Sprintf("encode %s.%s[%d]", m.rec.Entity(), key, i)))
				return
			}
			refs[i] = ref
		}
		m.write(key, record.RefList{Entity: entity, Refs: refs})
		return
	}

	val, ok := m.read(key)
	if !ok {
		return
	}
	switch x := val.(type) {
	case record.Null:
		*v = nil
	case record.RefList:
		if x.Refs == nil {
			*v = nil
			return
		}
		out := make([]P, 0, len(x.Refs))
		for i, ref := range x.Refs {
			obj, err := decodeRef[E, P](m, ref)
			if err != nil {
				m.Fail(fault.Wrap(err, fmt.Sprintf("decode %s.%s[%d]", m.rec.Entity(), key, i)))
				return
			}
			out = append(out, obj)
		}
		*v = out
	default:
		m.mismatch(key, "reference list", val)
	}
}

// encodeNested encodes a nested object. An object already being encoded
// further up the graph is referenced by identifier only, which cuts cycles.
func (m *Mapper) encodeNested(key any, model Model) (record.Ref, error) {
	entity := model.Entity()

	if m.active[key] {
		rec, err := encode(model, m.active, true)
		if err != nil {
			return record.Ref{}, err
		}
		id, _ := rec.Lookup(model.Identifier())
		return record.Ref{Entity: entity, ID: id}, nil
	}

	m.active[key] = true
	defer delete(m.active, key)

	rec, err := encode(model, m.active, false)
	if err != nil {
		return record.Ref{}, err
	}
	id, _ := rec.Lookup(model.Identifier())
	return record.Ref{Entity: entity, ID: id, Record: rec}, nil
}

// decodeRef builds the nested object a reference points at. A resolved
// reference decodes its record; an unresolved one yields a default instance
// carrying only the identifier.
func decodeRef[E any, P interface {
	*E
	Model
}](m *Mapper, ref record.Ref) (P, error) {
	if ref.Record == nil && record.IsNull(ref.ID) {
		return nil, nil
	}
	if ref.Record != nil {
		if seen, ok := m.decoded[ref.Record]; ok {
			return asTarget[P](ref.Entity, seen)
		}
	}
	if m.registry == nil {
		return nil, fmt.Errorf("decoding %s needs a registry", ref.Entity)
	}

	model, err := m.registry.New(ref.Entity)
	if err != nil {
		return nil, err
	}
	obj, err := asTarget[P](ref.Entity, model)
	if err != nil {
		return nil, err
	}

	rec := ref.Record
	if rec == nil {
		rec, err = stub(obj, ref.ID)
		if err != nil {
			return nil, err
		}
	}
	decoded := m.decoded
	if decoded == nil {
		decoded = map[*record.Record]Model{}
	}
	if err := decode(rec, obj, m.registry, decoded); err != nil {
		return nil, err
	}
	return obj, nil
}

func asTarget[P Model](entity string, model Model) (P, error) {
	obj, ok := model.(P)
	if !ok {
		var want P
		return want, fault.SchemaConflict(entity, "", fmt.Sprintf("registered factory returns %T, field wants %T", model, want))
	}
	return obj, nil
}

// stub returns a read record shaped like model's default with only the
// identifier set; nested fields come back empty.
func stub(model Model, id record.Value) (*record.Record, error) {
	rec, err := encode(model, map[any]bool{}, true)
	if err != nil {
		return nil, err
	}
	out := rec.WithMode(record.Read)
	out.Set(model.Identifier(), id)
	return out, nil
}
