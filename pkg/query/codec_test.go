package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/consoleworks/gridcore/pkg/state"
)

func TestEncodePagination(t *testing.T) {
	v := EncodePagination(1, 10)
	assert.Equal(t, "10", v.Get("limit"))
	assert.Equal(t, "0", v.Get("offset"))

	v = EncodePagination(3, 25)
	assert.Equal(t, "25", v.Get("limit"))
	assert.Equal(t, "50", v.Get("offset"))

	// Degenerate inputs clamp instead of producing negative offsets.
	v = EncodePagination(-1, 0)
	assert.Equal(t, "1", v.Get("limit"))
	assert.Equal(t, "0", v.Get("offset"))
}

func TestEncodeSearch(t *testing.T) {
	v := EncodeSearch("al", []string{"name", "email"})
	assert.Equal(t, "al%", v.Get("name__ilike"))
	assert.Equal(t, "al%", v.Get("email__ilike"))

	assert.Empty(t, EncodeSearch("", []string{"name"}))
	assert.Empty(t, EncodeSearch("al", nil))
}

func TestEncodeFilters(t *testing.T) {
	v := EncodeFilters([]state.Filter{
		{Column: "status", Operator: state.OpEq, Value: "active"},
		{Column: "age", Operator: state.OpGte, Value: "21"},
		{Column: "bad", Operator: state.Operator("between"), Value: "x"},
	})
	assert.Equal(t, "active", v.Get("status__eq"))
	assert.Equal(t, "21", v.Get("age__gte"))
	assert.NotContains(t, v, "bad__between")
}

func TestEncodeSort(t *testing.T) {
	v := EncodeSort([]state.SortKey{
		{Field: "name", Direction: state.Ascending},
		{Field: "created_at", Direction: state.Descending},
	})
	assert.Equal(t, "name asc,created_at desc", v.Get("order"))

	assert.Empty(t, EncodeSort(nil))
}

func TestEncodeIsDeterministic(t *testing.T) {
	g := state.New(25)
	g.SetSearch("al")
	g.SetFilter("status", state.OpEq, "active")
	g.CycleSort("name")

	searchable := []string{"name", "email"}
	first := Encode(g, searchable).Encode()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Encode(g, searchable).Encode())
	}
}

func TestEncodeScenario(t *testing.T) {
	// Filter added, then a search typed: both appear, order stays absent.
	g := state.New(10)
	g.SetFilter("status", state.OpEq, "active")
	g.SetSearch("al")

	v := Encode(g, []string{"name"})
	assert.Equal(t, "active", v.Get("status__eq"))
	assert.Equal(t, "al%", v.Get("name__ilike"))
	assert.Empty(t, v.Get("order"))
	assert.Equal(t, "10", v.Get("limit"))
	assert.Equal(t, "0", v.Get("offset"))
}

func TestDecodePagination(t *testing.T) {
	d := Decode(url.Values{"limit": {"25"}, "offset": {"50"}}, nil)
	assert.Equal(t, 25, d.PerPage)
	assert.Equal(t, 3, d.Page)

	// Offset not on a page boundary: page left unset.
	d = Decode(url.Values{"limit": {"25"}, "offset": {"7"}}, nil)
	assert.Equal(t, 25, d.PerPage)
	assert.Zero(t, d.Page)

	// Garbage ignored.
	d = Decode(url.Values{"limit": {"lots"}, "offset": {"-3"}}, nil)
	assert.Zero(t, d.PerPage)
	assert.Zero(t, d.Page)
}

func TestDecodeSearchRequiresUniformTerm(t *testing.T) {
	searchable := []string{"name", "email"}

	d := Decode(url.Values{
		"name__ilike":  {"al%"},
		"email__ilike": {"al%"},
	}, searchable)
	assert.Equal(t, "al", d.Search)
	assert.Empty(t, d.Filters)

	// Divergent values are filters, not a search.
	d = Decode(url.Values{
		"name__ilike":  {"al%"},
		"email__ilike": {"bob%"},
	}, searchable)
	assert.Empty(t, d.Search)
	assert.Len(t, d.Filters, 2)
}

func TestDecodeFiltersAndSort(t *testing.T) {
	d := Decode(url.Values{
		"status__eq":     {"active"},
		"age__gte":       {"21"},
		"weird__betwixt": {"nope"},
		"order":          {"name asc,created_at desc,junk,age sideways"},
	}, nil)

	assert.ElementsMatch(t, []state.Filter{
		{Column: "status", Operator: state.OpEq, Value: "active"},
		{Column: "age", Operator: state.OpGte, Value: "21"},
	}, d.Filters)
	assert.Equal(t, []state.SortKey{
		{Field: "name", Direction: state.Ascending},
		{Field: "created_at", Direction: state.Descending},
	}, d.Sort)
}

func TestRoundTrip(t *testing.T) {
	g := state.New(25)
	g.SetSearch("al")
	g.SetFilter("status", state.OpEq, "active")
	g.SetFilter("age", state.OpGte, "21")
	g.MultiSort = true
	g.CycleSort("name")
	g.CycleSort("created_at")
	g.CycleSort("created_at")
	g.SetPage(3)

	searchable := []string{"name", "email"}
	d := Decode(Encode(g, searchable), searchable)

	assert.Equal(t, g.Search, d.Search)
	assert.ElementsMatch(t, g.Filters, d.Filters)
	assert.Equal(t, g.Sort, d.Sort)
	assert.Equal(t, g.Page, d.Page)
	assert.Equal(t, g.PerPage, d.PerPage)
}
