package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/adopt_rex.yaml")
	require.NoError(t, err)

	assert.Equal(t, "adopt_rex", s.Name)
	require.Len(t, s.Steps, 6)
	assert.Equal(t, OpAdd, s.Steps[0].Op)
	assert.Len(t, s.Steps[0].Objects, 2)
	assert.Equal(t, "Rex", s.Steps[0].Objects[0]["name"])
	require.NotNil(t, s.Steps[1].Expect)
	require.NotNil(t, s.Steps[1].Expect.Count)
	assert.Equal(t, int64(1), *s.Steps[1].Expect.Count)
	assert.Equal(t, "UNKNOWN_FILTER_FIELD", s.Steps[5].Expect.Error)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_ReadsFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.yaml")
	content := `
name: one
steps:
  - op: get
    entity: Dog
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "one", s.Name)
	assert.Nil(t, s.Steps[0].Expect)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "steps:\n  - {op: get, entity: Dog}\n",
			wantErr: "name is required",
		},
		{
			name:    "no steps",
			content: "name: x\n",
			wantErr: "steps list is required",
		},
		{
			name:    "missing entity",
			content: "name: x\nsteps:\n  - {op: get}\n",
			wantErr: "steps[0]: entity is required",
		},
		{
			name:    "unknown op",
			content: "name: x\nsteps:\n  - {op: upsert, entity: Dog}\n",
			wantErr: `unknown op "upsert"`,
		},
		{
			name:    "add without objects",
			content: "name: x\nsteps:\n  - {op: add, entity: Dog}\n",
			wantErr: "add needs objects",
		},
		{
			name:    "index without fields",
			content: "name: x\nsteps:\n  - {op: index, entity: Dog}\n",
			wantErr: "index needs fields",
		},
		{
			name:    "condition without field",
			content: "name: x\nsteps:\n  - op: get\n    entity: Dog\n    where:\n      - {op: \"=\", value: 1}\n",
			wantErr: "where[0]: field is required",
		},
		{
			name:    "typo in key",
			content: "name: x\nstep:\n  - {op: get, entity: Dog}\n",
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
