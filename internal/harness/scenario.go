package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a named sequence of steps.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
}

// Step is one operation submitted to the engine.
type Step struct {
	// Op is add, get, delete or index.
	Op     string `yaml:"op"`
	Entity string `yaml:"entity"`

	// Objects are the objects an add writes.
	Objects []map[string]any `yaml:"objects,omitempty"`

	// Where, Sort and Limit shape get and delete; delete ignores Sort and
	// Limit. Index uses Where as its filter.
	Where []Condition `yaml:"where,omitempty"`
	Sort  []SortKey   `yaml:"sort,omitempty"`
	Limit int         `yaml:"limit,omitempty"`

	// Resolve loads nested objects on get.
	Resolve bool `yaml:"resolve,omitempty"`

	// Fields are the indexed fields.
	Fields []string `yaml:"fields,omitempty"`

	// Expect, if set, is checked against the step's outcome.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Condition is one filter term.
type Condition struct {
	Field  string `yaml:"field"`
	Op     string `yaml:"op"`
	Value  any    `yaml:"value,omitempty"`
	Values []any  `yaml:"values,omitempty"`
}

// SortKey orders get results.
type SortKey struct {
	Field string `yaml:"field"`
	Desc  bool   `yaml:"desc,omitempty"`
}

// Expect describes a step's outcome. Error is an error code such as
// UNKNOWN_FILTER_FIELD; empty means the step must succeed. Count is the
// number of objects a get returns or rows a delete removes.
type Expect struct {
	Error string `yaml:"error,omitempty"`
	Count *int64 `yaml:"count,omitempty"`
}

// Step operations.
const (
	OpAdd    = "add"
	OpGet    = "get"
	OpDelete = "delete"
	OpIndex  = "index"
)

// LoadScenario reads and validates a scenario file. Unknown keys are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Entity == "" {
			return fmt.Errorf("steps[%d]: entity is required", i)
		}
		switch step.Op {
		case OpAdd:
			if len(step.Objects) == 0 {
				return fmt.Errorf("steps[%d]: add needs objects", i)
			}
		case OpGet, OpDelete:
		case OpIndex:
			if len(step.Fields) == 0 {
				return fmt.Errorf("steps[%d]: index needs fields", i)
			}
		default:
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		for j, c := range step.Where {
			if c.Field == "" {
				return fmt.Errorf("steps[%d].where[%d]: field is required", i, j)
			}
		}
	}
	return nil
}
