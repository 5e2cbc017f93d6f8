package engine

import (
	"context"
	"fmt"

	"github.com/roach88/stow/fault"
	"github.com/roach88/stow/internal/sqlgen"
	"github.com/roach88/stow/mapping"
	"github.com/roach88/stow/query"
	"github.com/roach88/stow/record"
)

// Add upserts models and every nested object they reach, in one
// transaction. done receives nil once everything is committed.
func (e *Engine) Add(models []mapping.Model, done func(err error)) {
	e.Submit(KindAdd, entityOf(models), func(ctx context.Context, t *Task) error {
		return e.add(ctx, t, models)
	}, done)
}

// Get selects the entity rows matching q and decodes them. With resolve,
// nested references are loaded as well; without it they decode to stubs
// carrying only their identifier.
func (e *Engine) Get(entity string, q *query.Query, resolve bool, done func(models []mapping.Model, err error)) {
	var out []mapping.Model
	e.Submit(KindGet, entity, func(ctx context.Context, t *Task) error {
		var err error
		out, err = e.get(ctx, t, entity, q, resolve)
		return err
	}, func(err error) {
		if err != nil {
			done(nil, err)
			return
		}
		done(out, nil)
	})
}

// Delete removes the entity rows matching q; a nil q removes every row.
// done receives the number of rows removed.
func (e *Engine) Delete(entity string, q *query.Query, done func(n int64, err error)) {
	var n int64
	e.Submit(KindDelete, entity, func(ctx context.Context, t *Task) error {
		var err error
		n, err = e.delete(ctx, t, entity, q)
		return err
	}, func(err error) {
		if err != nil {
			done(0, err)
			return
		}
		done(n, nil)
	})
}

// CreateIndex creates an index over fields of entity, restricted to the
// rows matching filter when filter is non-nil. done receives the index
// name, which is the same for the same declaration.
func (e *Engine) CreateIndex(entity string, fields []string, filter query.Predicate, done func(name string, err error)) {
	var name string
	e.Submit(KindIndex, entity, func(ctx context.Context, t *Task) error {
		var err error
		name, err = e.createIndex(ctx, t, entity, fields, filter)
		return err
	}, func(err error) {
		if err != nil {
			done("", err)
			return
		}
		done(name, nil)
	})
}

func (e *Engine) add(ctx context.Context, t *Task, models []mapping.Model) error {
	w := newWriteSet()
	for _, m := range models {
		rec, err := mapping.Encode(m)
		if err != nil {
			return err
		}
		w.addRoot(rec)
	}
	if err := e.checkIdentifiers(w); err != nil {
		return err
	}
	rows, err := e.upserts(w)
	if err != nil {
		return err
	}

	for _, entity := range w.entities {
		if _, err := e.schema.Ensure(ctx, e.conn, entity); err != nil {
			return err
		}
	}
	e.transition(t, PhaseSchemaChecked)

	e.transition(t, PhaseExecuting)
	tx, err := e.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() // No-op if committed

	for _, row := range rows {
		if _, err := tx.Exec(ctx, row.stmt, row.args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type upsert struct {
	stmt string
	args []any
}

// upserts renders the statements of w in write order. Values that cannot
// be stored fail here, before the database is touched.
func (e *Engine) upserts(w *writeSet) ([]upsert, error) {
	recs := w.ordered()
	out := make([]upsert, 0, len(recs))
	for _, rec := range recs {
		d, err := e.schema.Describe(rec.Entity())
		if err != nil {
			return nil, err
		}
		cols := rec.Keys()
		args := make([]any, len(cols))
		for i, c := range cols {
			v, _ := rec.Lookup(c)
			args[i], err = record.ToDriver(v)
			if err != nil {
				return nil, fault.Wrap(err, fmt.Sprintf("encode %s.%s", rec.Entity(), c))
			}
		}
		out = append(out, upsert{stmt: sqlgen.Upsert(rec.Entity(), d.Identifier, cols), args: args})
	}
	return out, nil
}

// checkIdentifiers rejects any record, root or nested, whose identifier is
// null. Nothing has touched the database yet.
func (e *Engine) checkIdentifiers(w *writeSet) error {
	for _, rec := range w.ordered() {
		d, err := e.schema.Describe(rec.Entity())
		if err != nil {
			return err
		}
		id, ok := rec.Lookup(d.Identifier)
		if !ok {
			return fault.MissingField(rec.Entity(), d.Identifier)
		}
		if record.IsNull(id) {
			return fault.InvalidIdentifier(rec.Entity(), d.Identifier, "identifier is null")
		}
	}
	return nil
}

func (e *Engine) get(ctx context.Context, t *Task, entity string, q *query.Query, resolve bool) ([]mapping.Model, error) {
	d, err := e.schema.Describe(entity)
	if err != nil {
		return nil, err
	}
	if err := query.Validate(q, entity, d); err != nil {
		return nil, err
	}
	stmt, args, err := sqlgen.Select(entity, q)
	if err != nil {
		return nil, fault.Wrap(err, "compile query for "+entity)
	}

	if _, err := e.schema.Ensure(ctx, e.conn, entity); err != nil {
		return nil, err
	}
	e.transition(t, PhaseSchemaChecked)

	e.transition(t, PhaseExecuting)
	tx, err := e.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() // Read-only; nothing to commit on error

	res, err := tx.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	recs := make([]*record.Record, len(res.Rows))
	for i, row := range res.Rows {
		if recs[i], err = d.Record(res.Columns, row); err != nil {
			return nil, err
		}
	}

	if resolve {
		r := newResolver(tx, e.schema)
		if err := r.seed(entity, recs); err != nil {
			return nil, err
		}
		for _, rec := range recs {
			if err := r.resolve(ctx, rec); err != nil {
				return nil, err
			}
		}
		e.logger.Debug("references resolved", "task", t.ID, "entity", entity, "loaded", r.loaded)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	dec := mapping.NewDecoder(e.registry)
	out := make([]mapping.Model, len(recs))
	for i, rec := range recs {
		if m, ok := dec.Decoded(rec); ok {
			out[i] = m
			continue
		}
		m, err := e.registry.New(entity)
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(rec, m); err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

func (e *Engine) delete(ctx context.Context, t *Task, entity string, q *query.Query) (int64, error) {
	d, err := e.schema.Describe(entity)
	if err != nil {
		return 0, err
	}
	if err := query.Validate(q, entity, d); err != nil {
		return 0, err
	}
	stmt, args, err := sqlgen.Delete(entity, q.Predicate())
	if err != nil {
		return 0, fault.Wrap(err, "compile delete for "+entity)
	}

	if _, err := e.schema.Ensure(ctx, e.conn, entity); err != nil {
		return 0, err
	}
	e.transition(t, PhaseSchemaChecked)

	e.transition(t, PhaseExecuting)
	tx, err := e.conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() // No-op if committed

	n, err := tx.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func (e *Engine) createIndex(ctx context.Context, t *Task, entity string, fields []string, filter query.Predicate) (string, error) {
	d, err := e.schema.Describe(entity)
	if err != nil {
		return "", err
	}
	if err := d.ValidateIndex(fields, filter); err != nil {
		return "", err
	}

	if _, err := e.schema.Ensure(ctx, e.conn, entity); err != nil {
		return "", err
	}
	e.transition(t, PhaseSchemaChecked)

	e.transition(t, PhaseExecuting)
	return e.schema.CreateIndex(ctx, e.conn, entity, fields, filter)
}

// entityOf names the entity of a batch for logging; mixed batches log "*".
func entityOf(models []mapping.Model) string {
	if len(models) == 0 {
		return ""
	}
	entity := models[0].Entity()
	for _, m := range models[1:] {
		if m.Entity() != entity {
			return "*"
		}
	}
	return entity
}

// writeSet orders the records of one add: nested objects first, each once
// per entity and identifier, then the roots in submission order.
type writeSet struct {
	nested   []*record.Record
	roots    []*record.Record
	seen     map[string]bool
	entities []string
	rootSeen map[string]bool
}

func newWriteSet() *writeSet {
	return &writeSet{seen: map[string]bool{}, rootSeen: map[string]bool{}}
}

func (w *writeSet) addRoot(rec *record.Record) {
	w.collect(rec)
	w.roots = append(w.roots, rec)
	if !w.rootSeen[rec.Entity()] {
		w.rootSeen[rec.Entity()] = true
		w.entities = append(w.entities, rec.Entity())
	}
}

// collect walks the references of rec depth-first. References without a
// record are stubs for objects written elsewhere in the same graph.
func (w *writeSet) collect(rec *record.Record) {
	for _, key := range rec.Keys() {
		v, _ := rec.Lookup(key)
		switch val := v.(type) {
		case record.Ref:
			w.nest(val)
		case record.RefList:
			for _, ref := range val.Refs {
				w.nest(ref)
			}
		}
	}
}

func (w *writeSet) nest(ref record.Ref) {
	if ref.Record == nil {
		return
	}
	key := cacheKey(ref.Entity, ref.ID)
	if w.seen[key] {
		return
	}
	w.seen[key] = true
	w.collect(ref.Record)
	w.nested = append(w.nested, ref.Record)
}

func (w *writeSet) ordered() []*record.Record {
	out := make([]*record.Record, 0, len(w.nested)+len(w.roots))
	out = append(out, w.nested...)
	return append(out, w.roots...)
}

func cacheKey(entity string, id record.Value) string {
	return entity + "\x00" + record.Key(id)
}
