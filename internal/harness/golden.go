package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// MarshalTrace renders the trace of r as indented JSON. Object keys are
// sorted, so equal traces marshal to equal bytes.
func MarshalTrace(r *Result) ([]byte, error) {
	data, err := json.MarshalIndent(r.Trace, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden runs scenario and compares its trace with
// testdata/golden/<scenario name>.golden. Regenerate with
//
//	go test ./internal/harness -update
func (h *Harness) RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	result, err := h.Run(context.Background(), scenario)
	if err != nil {
		t.Fatalf("run scenario %s: %v", scenario.Name, err)
	}

	data, err := MarshalTrace(result)
	if err != nil {
		t.Fatalf("marshal trace %s: %v", scenario.Name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return result
}
