package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_Version(t *testing.T) {
	id := UUIDv7Generator{}.Generate()

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, id)
}

func TestUUIDv7Generator_Uniqueness(t *testing.T) {
	gen := UUIDv7Generator{}
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		id := gen.Generate()
		require.False(t, seen[id], "id %s generated twice", id)
		seen[id] = true
	}
}

func TestFixedGenerator_Sequential(t *testing.T) {
	gen := NewFixedGenerator("task-1", "task-2")

	assert.Equal(t, "task-1", gen.Generate())
	assert.Equal(t, "task-2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() }, "should panic when exhausted")
}
