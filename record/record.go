package record

import "github.com/roach88/stow/fault"

// Mode tells a Mapper which direction fields travel.
type Mode int

const (
	// Read pulls field values out of the record into an object.
	Read Mode = iota
	// Write populates the record from an object.
	Write
)

func (m Mode) String() string {
	if m == Write {
		return "write"
	}
	return "read"
}

// Record is the store-agnostic property container moved between typed
// objects and the storage layer. Field order is insertion order.
type Record struct {
	entity string
	mode   Mode
	keys   []string
	values map[string]Value
}

// New creates an empty record for entity.
func New(entity string, mode Mode) *Record {
	return &Record{
		entity: entity,
		mode:   mode,
		values: make(map[string]Value),
	}
}

// Entity returns the declared type the record represents.
func (r *Record) Entity() string { return r.entity }

// Mode returns the record's direction.
func (r *Record) Mode() Mode { return r.mode }

// Len returns the number of fields.
func (r *Record) Len() int { return len(r.keys) }

// Keys returns field names in insertion order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Has reports whether the field is present (null or not).
func (r *Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Lookup returns the field value and whether it is present.
func (r *Record) Lookup(key string) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Get returns the field value. An absent field is a MissingField error;
// a present null returns Null{} and no error.
func (r *Record) Get(key string) (Value, error) {
	v, ok := r.values[key]
	if !ok {
		return nil, fault.MissingField(r.entity, key)
	}
	return v, nil
}

// Set stores v under key. A nil v is stored as Null.
// Re-setting a key keeps its original position.
func (r *Record) Set(key string, v Value) {
	if v == nil {
		v = Null{}
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// WithMode returns a shallow copy of r in the given mode.
func (r *Record) WithMode(mode Mode) *Record {
	out := &Record{
		entity: r.entity,
		mode:   mode,
		keys:   r.Keys(),
		values: make(map[string]Value, len(r.values)),
	}
	for k, v := range r.values {
		out.values[k] = v
	}
	return out
}
