//go:build property
// +build property

package query

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/consoleworks/gridcore/pkg/state"
)

var searchableColumns = []string{"name", "email"}

// filterColumns is disjoint from searchableColumns so generated filters
// can never be mistaken for an expanded search.
var filterColumns = []string{"status", "age", "region", "created_at"}

var operators = []state.Operator{
	state.OpEq, state.OpNe, state.OpIlike,
	state.OpGt, state.OpLt, state.OpGte, state.OpLte,
}

func genFilter() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, len(filterColumns)-1),
		gen.IntRange(0, len(operators)-1),
		gen.AlphaString(),
	).Map(func(vals []interface{}) state.Filter {
		return state.Filter{
			Column:   filterColumns[vals[0].(int)],
			Operator: operators[vals[1].(int)],
			Value:    vals[2].(string),
		}
	})
}

// TestEncodeDecodeRoundTrip verifies Decode(Encode(s)) recovers search,
// filters, and sort for any valid view state.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("search, filters, and sort survive the round trip", prop.ForAll(
		func(search string, filters []state.Filter, sortFields []int, page, perPage int) bool {
			g := state.New(perPage)
			g.MultiSort = true
			g.SetSearch(search)
			for _, f := range filters {
				g.SetFilter(f.Column, f.Operator, f.Value)
			}
			for _, i := range sortFields {
				g.CycleSort(filterColumns[i])
			}
			g.SetPage(page)

			d := Decode(Encode(g, searchableColumns), searchableColumns)

			if d.Search != g.Search {
				return false
			}
			if len(d.Filters) != len(g.Filters) {
				return false
			}
			want := make(map[string]state.Filter, len(g.Filters))
			for _, f := range g.Filters {
				want[f.Column] = f
			}
			for _, f := range d.Filters {
				if want[f.Column] != f {
					return false
				}
			}
			if len(d.Sort) != len(g.Sort) {
				return false
			}
			for i, k := range d.Sort {
				if g.Sort[i] != k {
					return false
				}
			}
			return d.Page == g.Page && d.PerPage == g.PerPage
		},
		gen.AlphaString(),
		gen.SliceOf(genFilter()),
		gen.SliceOf(gen.IntRange(0, len(filterColumns)-1)),
		gen.IntRange(1, 500),
		gen.IntRange(1, 200),
	))

	properties.TestingRun(t)
}

// TestEncodeDeterminism verifies the same state always yields the same
// query string.
func TestEncodeDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("encoding is stable across calls", prop.ForAll(
		func(search string, filters []state.Filter) bool {
			g := state.New(10)
			g.SetSearch(search)
			for _, f := range filters {
				g.SetFilter(f.Column, f.Operator, f.Value)
			}
			return Encode(g, searchableColumns).Encode() == Encode(g, searchableColumns).Encode()
		},
		gen.AlphaString(),
		gen.SliceOf(genFilter()),
	))

	properties.TestingRun(t)
}
