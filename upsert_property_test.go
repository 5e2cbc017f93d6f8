package stow_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/roach88/stow"
	"github.com/roach88/stow/internal/testutil"
	"github.com/roach88/stow/query"
)

// TestProperty_LastAddWins checks that any sequence of adds under one
// identifier leaves exactly one row holding the last value written.
func TestProperty_LastAddWins(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)
	s := open(t)

	properties.Property("repeated adds upsert", prop.ForAll(
		func(name string, first int, rest []int) bool {
			ages := append([]int{first}, rest...)
			for _, age := range ages {
				stow.AddOne(s, &testutil.Dog{Name: name, Age: age}, nil)
			}
			got, err := getDogs(t, s, query.Where(query.Eq("name", name)))
			if err != nil || len(got) != 1 {
				return false
			}
			return got[0].Age == ages[len(ages)-1]
		},
		gen.Identifier(),
		gen.IntRange(0, 30),
		gen.SliceOf(gen.IntRange(0, 30)),
	))

	properties.TestingRun(t)
}
