package engine

import (
	"context"

	"github.com/roach88/stow/internal/schema"
	"github.com/roach88/stow/internal/sqlgen"
	"github.com/roach88/stow/internal/store"
	"github.com/roach88/stow/record"
)

// maxBatch bounds the identifiers bound into one SELECT ... IN (...).
const maxBatch = 500

// resolver attaches referenced records to the references of a result set.
//
// Records are cached by entity and identifier for the life of one task, so
// every identifier is loaded at most once and every reference to it shares
// one record. A record is walked once, which ends reference cycles.
type resolver struct {
	ex     store.Executor
	schema *schema.Coordinator

	cache   map[string]*record.Record
	absent  map[string]bool
	visited map[*record.Record]bool
	loaded  int
}

func newResolver(ex store.Executor, coord *schema.Coordinator) *resolver {
	return &resolver{
		ex:      ex,
		schema:  coord,
		cache:   map[string]*record.Record{},
		absent:  map[string]bool{},
		visited: map[*record.Record]bool{},
	}
}

// seed caches the rows already selected so references back to them reuse
// the same records.
func (r *resolver) seed(entity string, recs []*record.Record) error {
	d, err := r.schema.Describe(entity)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if id, ok := rec.Lookup(d.Identifier); ok {
			r.cache[cacheKey(entity, id)] = rec
		}
	}
	return nil
}

func (r *resolver) resolve(ctx context.Context, rec *record.Record) error {
	if r.visited[rec] {
		return nil
	}
	r.visited[rec] = true

	var next []*record.Record
	for _, key := range rec.Keys() {
		v, _ := rec.Lookup(key)
		switch val := v.(type) {
		case record.Ref:
			if val.Resolved() || record.IsNull(val.ID) {
				continue
			}
			if err := r.load(ctx, val.Entity, []record.Value{val.ID}); err != nil {
				return err
			}
			target := r.cache[cacheKey(val.Entity, val.ID)]
			if target == nil {
				continue // dangling; decodes to a stub
			}
			val.Record = target
			rec.Set(key, val)
			next = append(next, target)

		case record.RefList:
			ids := make([]record.Value, 0, len(val.Refs))
			for _, ref := range val.Refs {
				if !ref.Resolved() && !record.IsNull(ref.ID) {
					ids = append(ids, ref.ID)
				}
			}
			if len(ids) == 0 {
				continue
			}
			if err := r.load(ctx, val.Entity, ids); err != nil {
				return err
			}
			refs := make([]record.Ref, len(val.Refs))
			for i, ref := range val.Refs {
				if target := r.cache[cacheKey(val.Entity, ref.ID)]; !ref.Resolved() && target != nil {
					ref.Record = target
					next = append(next, target)
				}
				refs[i] = ref
			}
			rec.Set(key, record.RefList{Entity: val.Entity, Refs: refs})
		}
	}

	for _, target := range next {
		if err := r.resolve(ctx, target); err != nil {
			return err
		}
	}
	return nil
}

// load fetches the records of entity with the given identifiers that are
// not cached yet.
func (r *resolver) load(ctx context.Context, entity string, ids []record.Value) error {
	var missing []any
	pending := map[string]bool{}
	for _, id := range ids {
		key := cacheKey(entity, id)
		if r.cache[key] != nil || r.absent[key] || pending[key] {
			continue
		}
		raw, err := record.ToDriver(id)
		if err != nil {
			return err
		}
		pending[key] = true
		missing = append(missing, raw)
	}
	if len(missing) == 0 {
		return nil
	}

	d, err := r.schema.Describe(entity)
	if err != nil {
		return err
	}
	for start := 0; start < len(missing); start += maxBatch {
		end := min(start+maxBatch, len(missing))
		stmt, args := sqlgen.SelectByIDs(entity, d.Identifier, missing[start:end])
		res, err := r.ex.Query(ctx, stmt, args...)
		if err != nil {
			return err
		}
		for _, row := range res.Rows {
			rec, err := d.Record(res.Columns, row)
			if err != nil {
				return err
			}
			id, _ := rec.Lookup(d.Identifier)
			key := cacheKey(entity, id)
			r.cache[key] = rec
			delete(pending, key)
			r.loaded++
		}
	}
	for key := range pending {
		r.absent[key] = true
	}
	return nil
}
