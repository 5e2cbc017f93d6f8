package harness

import (
	"fmt"

	"github.com/roach88/stow/mapping"
	"github.com/roach88/stow/query"
	"github.com/roach88/stow/record"
)

// buildModel turns a scenario object into an instance of entity. Fields
// the object omits keep their default values.
func buildModel(registry *mapping.Registry, entity string, fields map[string]any) (mapping.Model, error) {
	rec, err := buildRecord(registry, entity, fields)
	if err != nil {
		return nil, err
	}
	model, err := registry.New(entity)
	if err != nil {
		return nil, err
	}
	if err := mapping.Decode(rec, model, registry); err != nil {
		return nil, err
	}
	return model, nil
}

func buildRecord(registry *mapping.Registry, entity string, fields map[string]any) (*record.Record, error) {
	_, rec, err := registry.Describe(entity)
	if err != nil {
		return nil, err
	}
	for key, raw := range fields {
		def, ok := rec.Lookup(key)
		if !ok {
			return nil, fmt.Errorf("%s has no field %q", entity, key)
		}
		v, err := buildValue(registry, def, raw)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", entity, key, err)
		}
		rec.Set(key, v)
	}
	return rec, nil
}

// buildValue converts raw to the shape of the default value def.
func buildValue(registry *mapping.Registry, def record.Value, raw any) (record.Value, error) {
	switch d := def.(type) {
	case record.Ref:
		return buildRef(registry, d.Entity, raw)
	case record.RefList:
		if raw == nil {
			return record.RefList{Entity: d.Entity}, nil
		}
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("want a list of %s, got %T", d.Entity, raw)
		}
		refs := make([]record.Ref, len(items))
		for i, item := range items {
			ref, err := buildRef(registry, d.Entity, item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			refs[i] = ref
		}
		return record.RefList{Entity: d.Entity, Refs: refs}, nil
	case record.List:
		if raw == nil {
			return record.List(nil), nil
		}
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("want a list, got %T", raw)
		}
		out := make(record.List, len(items))
		for i, item := range items {
			v, err := record.FromGo(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	default:
		return record.FromGo(raw)
	}
}

func buildRef(registry *mapping.Registry, entity string, raw any) (record.Ref, error) {
	switch x := raw.(type) {
	case nil:
		return record.Ref{Entity: entity, ID: record.Null{}}, nil
	case map[string]any:
		rec, err := buildRecord(registry, entity, x)
		if err != nil {
			return record.Ref{}, err
		}
		model, err := registry.New(entity)
		if err != nil {
			return record.Ref{}, err
		}
		id, _ := rec.Lookup(model.Identifier())
		return record.Ref{Entity: entity, ID: id, Record: rec}, nil
	default:
		id, err := record.FromGo(x)
		if err != nil {
			return record.Ref{}, err
		}
		return record.Ref{Entity: entity, ID: id}, nil
	}
}

// buildQuery combines the step's conditions, sort keys and limit.
func buildQuery(step Step) (*query.Query, error) {
	pred, err := buildPredicate(step.Where)
	if err != nil {
		return nil, err
	}
	q := query.Where(pred)
	for _, s := range step.Sort {
		dir := query.Ascending
		if s.Desc {
			dir = query.Descending
		}
		q.SortBy(s.Field, dir)
	}
	return q.Limit(step.Limit), nil
}

func buildPredicate(conds []Condition) (query.Predicate, error) {
	preds := make([]query.Predicate, 0, len(conds))
	for _, c := range conds {
		p, err := buildCondition(c)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	switch len(preds) {
	case 0:
		return nil, nil
	case 1:
		return preds[0], nil
	default:
		return query.AllOf(preds...), nil
	}
}

func buildCondition(c Condition) (query.Predicate, error) {
	switch c.Op {
	case "null":
		return query.IsNull(c.Field), nil
	case "not_null":
		return query.NotNull(c.Field), nil
	case "in":
		values := make([]record.Value, len(c.Values))
		for i, raw := range c.Values {
			v, err := record.FromGo(raw)
			if err != nil {
				return nil, fmt.Errorf("where %s: %w", c.Field, err)
			}
			values[i] = v
		}
		return query.In{Field: c.Field, Values: values}, nil
	}

	op := query.Op(c.Op)
	if !op.Valid() {
		return nil, fmt.Errorf("where %s: unknown operator %q", c.Field, c.Op)
	}
	v, err := record.FromGo(c.Value)
	if err != nil {
		return nil, fmt.Errorf("where %s: %w", c.Field, err)
	}
	return query.Compare{Field: c.Field, Op: op, Value: v}, nil
}
