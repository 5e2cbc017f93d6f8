package mapping

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/stow/fault"
	"github.com/roach88/stow/record"
)

// Registry holds the factory of every persistable type a store knows.
//
// Thread-safety: Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds factories keyed by the entity of the instance they build.
// Registering an entity again replaces its factory.
func (r *Registry) Register(factories ...Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, f := range factories {
		if f == nil {
			return fmt.Errorf("register: factory %d is nil", i)
		}
		model := f()
		if model == nil {
			return fmt.Errorf("register: factory %d returned nil", i)
		}
		if model.Entity() == "" {
			return fmt.Errorf("register: %T has an empty entity name", model)
		}
		if model.Identifier() == "" {
			return fmt.Errorf("register: %s has an empty identifier field", model.Entity())
		}
		r.factories[model.Entity()] = f
	}
	return nil
}

// Has reports whether entity is registered.
func (r *Registry) Has(entity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[entity]
	return ok
}

// New builds a default instance of entity.
func (r *Registry) New(entity string) (Model, error) {
	r.mu.RLock()
	f, ok := r.factories[entity]
	r.mu.RUnlock()
	if !ok {
		return nil, fault.UnregisteredType(entity)
	}
	return f(), nil
}

// Describe returns entity's default instance and its write-form record.
// The record is the type descriptor: its keys and value kinds are the
// type's column shape.
func (r *Registry) Describe(entity string) (Model, *record.Record, error) {
	model, err := r.New(entity)
	if err != nil {
		return nil, nil, err
	}
	rec, err := Encode(model)
	if err != nil {
		return nil, nil, fault.Wrap(err, "describe "+entity)
	}
	return model, rec, nil
}

// Entities returns registered entity names, sorted.
func (r *Registry) Entities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
