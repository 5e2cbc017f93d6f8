package harness

import (
	"encoding/hex"
	"fmt"

	"github.com/roach88/stow/mapping"
	"github.com/roach88/stow/record"
)

// Event is the outcome of one step.
type Event struct {
	Step   int    `json:"step"`
	Op     string `json:"op"`
	Entity string `json:"entity"`

	// Error is the failure code, empty on success.
	Error string `json:"error,omitempty"`

	// Count is set for get and delete.
	Count *int64 `json:"count,omitempty"`

	// Objects are the rendered results of a get.
	Objects []map[string]any `json:"objects,omitempty"`
}

// Result is the outcome of a scenario.
type Result struct {
	Scenario string `json:"scenario"`

	// Pass is true when every step met its expect clause.
	Pass bool `json:"pass"`

	Trace  []Event  `json:"trace"`
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result with an empty trace.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Trace:    []Event{},
	}
}

// AddError records a failed expectation.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// Render flattens model into plain JSON-ready values keyed by field.
// Nested objects render inline; a reference the encoder cut to break a
// cycle renders as {"ref": id}.
func Render(model mapping.Model) (map[string]any, error) {
	rec, err := mapping.Encode(model)
	if err != nil {
		return nil, err
	}
	return renderRecord(rec)
}

func renderRecord(rec *record.Record) (map[string]any, error) {
	out := make(map[string]any, rec.Len())
	for _, key := range rec.Keys() {
		v, _ := rec.Lookup(key)
		rv, err := renderValue(v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", rec.Entity(), key, err)
		}
		out[key] = rv
	}
	return out, nil
}

func renderValue(v record.Value) (any, error) {
	switch val := v.(type) {
	case nil, record.Null:
		return nil, nil
	case record.Int:
		return int64(val), nil
	case record.Real:
		return float64(val), nil
	case record.Text:
		return string(val), nil
	case record.Blob:
		return hex.EncodeToString(val), nil
	case record.List:
		if val == nil {
			return nil, nil
		}
		out := make([]any, len(val))
		for i, elem := range val {
			rv, err := renderValue(elem)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	case record.Ref:
		if val.Record != nil {
			return renderRecord(val.Record)
		}
		if record.IsNull(val.ID) {
			return nil, nil
		}
		id, err := renderValue(val.ID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"ref": id}, nil
	case record.RefList:
		if val.Refs == nil {
			return nil, nil
		}
		out := make([]any, len(val.Refs))
		for i, ref := range val.Refs {
			rv, err := renderValue(ref)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value %T", v)
	}
}
