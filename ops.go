package stow

import (
	"fmt"

	"github.com/roach88/stow/fault"
	"github.com/roach88/stow/mapping"
	"github.com/roach88/stow/query"
)

// Add upserts objs and every nested object they reach in one transaction.
// An object whose identifier is already stored replaces the stored row.
// done may be nil.
func Add[M mapping.Model](s *Store, objs []M, done func(err error)) {
	models := make([]mapping.Model, len(objs))
	for i, o := range objs {
		models[i] = o
	}
	s.engine.Add(models, orNop(done))
}

// AddOne is Add for a single object.
func AddOne[M mapping.Model](s *Store, obj M, done func(err error)) {
	Add(s, []M{obj}, done)
}

// GetOption configures Get.
type GetOption func(*getOptions)

type getOptions struct {
	resolve bool
}

// Resolve loads nested objects as well. Without it nested fields hold
// instances carrying only their identifier.
func Resolve() GetOption {
	return func(o *getOptions) {
		o.resolve = true
	}
}

// Get loads the objects of type E matching q; a nil q matches everything.
// Rows come back in the order q sorts them, and otherwise in whatever
// order SQLite produces. done may be nil.
func Get[E any, P interface {
	*E
	mapping.Model
}](s *Store, q *query.Query, done func(objs []P, err error), opts ...GetOption) {
	if done == nil {
		done = func([]P, error) {}
	}
	o := &getOptions{}
	for _, opt := range opts {
		opt(o)
	}
	entity := P(new(E)).Entity()

	s.engine.Get(entity, q, o.resolve, func(models []mapping.Model, err error) {
		if err != nil {
			done(nil, err)
			return
		}
		out := make([]P, len(models))
		for i, m := range models {
			obj, ok := m.(P)
			if !ok {
				done(nil, fault.SchemaConflict(entity, "", fmt.Sprintf("registered factory returns %T, want %T", m, obj)))
				return
			}
			out[i] = obj
		}
		done(out, nil)
	})
}

// Delete removes the objects of type E matching q and reports how many
// rows went. A nil q removes every object of the type. done may be nil.
func Delete[E any, P interface {
	*E
	mapping.Model
}](s *Store, q *query.Query, done func(n int64, err error)) {
	if done == nil {
		done = func(int64, error) {}
	}
	s.engine.Delete(P(new(E)).Entity(), q, done)
}

// CreateIndex creates an index over fields of type E, restricted to rows
// matching filter when it is non-nil. The index name is derived from the
// declaration, so creating the same index again does nothing. done may be
// nil.
func CreateIndex[E any, P interface {
	*E
	mapping.Model
}](s *Store, fields []string, filter query.Predicate, done func(name string, err error)) {
	if done == nil {
		done = func(string, error) {}
	}
	s.engine.CreateIndex(P(new(E)).Entity(), fields, filter, done)
}

func orNop(done func(error)) func(error) {
	if done == nil {
		return func(error) {}
	}
	return done
}
