package behavior

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingSearch struct{ terms []string }

func (r *recordingSearch) OnSearch(_ context.Context, term string) error {
	r.terms = append(r.terms, term)
	return nil
}

type staticPaging struct{}

func (staticPaging) BuildParams(page, perPage int) url.Values {
	v := url.Values{}
	v.Set("p", "static")
	return v
}

func TestEmptyRegistryReportsUnregistered(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Search()
	assert.False(t, ok)
	_, ok = r.Filter()
	assert.False(t, ok)
	_, ok = r.Sort()
	assert.False(t, ok)
	_, ok = r.Pagination()
	assert.False(t, ok)
	_, ok = r.Export()
	assert.False(t, ok)
	_, ok = r.Bulk()
	assert.False(t, ok)
	_, ok = r.Columns()
	assert.False(t, ok)
}

func TestRegistrationAndLookup(t *testing.T) {
	rec := &recordingSearch{}
	r := NewRegistry().UseSearch(rec).UsePagination(staticPaging{})

	s, ok := r.Search()
	assert.True(t, ok)
	assert.NoError(t, s.OnSearch(context.Background(), "term"))
	assert.Equal(t, []string{"term"}, rec.terms)

	p, ok := r.Pagination()
	assert.True(t, ok)
	assert.Equal(t, "static", p.BuildParams(1, 10).Get("p"))
}

func TestRegistriesAreInstanceOwned(t *testing.T) {
	a := NewRegistry().UseSearch(&recordingSearch{})
	b := NewRegistry()

	_, ok := a.Search()
	assert.True(t, ok)
	_, ok = b.Search()
	assert.False(t, ok)
}

func TestBulkResultShape(t *testing.T) {
	res := BulkResult{
		Succeeded: 5,
		Failed:    2,
		Items: []BulkOutcome{
			{ID: "1", OK: true},
			{ID: "2", OK: false, Error: "locked"},
		},
	}
	assert.Equal(t, 7, res.Succeeded+res.Failed)
	assert.False(t, res.Items[1].OK)
}
