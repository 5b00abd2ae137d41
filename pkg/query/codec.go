// Package query maps grid view state to and from the backend's query
// parameter convention:
//
//	limit=<n>&offset=<n>                pagination
//	<column>__ilike=<term>%             search, repeated per searchable column
//	<column>__<operator>=<value>        filters
//	order=<field> <asc|desc>,...        sort, primary first
//
// Encoding is deterministic for a given state; decoding is the left
// inverse of encoding for the fields it governs and silently ignores
// unknown or malformed parameters.
package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/consoleworks/gridcore/pkg/state"
)

const (
	paramLimit  = "limit"
	paramOffset = "offset"
	paramOrder  = "order"

	opSeparator = "__"
)

// EncodePagination returns the limit/offset pair for a page. Page 1 is
// offset 0.
func EncodePagination(page, perPage int) url.Values {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}
	v := url.Values{}
	v.Set(paramLimit, strconv.Itoa(perPage))
	v.Set(paramOffset, strconv.Itoa(perPage*(page-1)))
	return v
}

// EncodeSearch expands a free-text term into one prefix-match parameter
// per searchable column. The server treats the repeated keys as OR.
func EncodeSearch(term string, searchable []string) url.Values {
	v := url.Values{}
	if term == "" {
		return v
	}
	for _, col := range searchable {
		if col == "" {
			continue
		}
		v.Set(col+opSeparator+string(state.OpIlike), term+"%")
	}
	return v
}

// EncodeFilters maps each filter to its <column>__<operator> parameter.
func EncodeFilters(filters []state.Filter) url.Values {
	v := url.Values{}
	for _, f := range filters {
		if f.Column == "" || !state.ValidOperator(f.Operator) {
			continue
		}
		v.Set(f.Column+opSeparator+string(f.Operator), f.Value)
	}
	return v
}

// EncodeSort renders the sort list as a single comma-separated order
// parameter, primary sort first. An empty list produces no parameter.
func EncodeSort(keys []state.SortKey) url.Values {
	v := url.Values{}
	if len(keys) == 0 {
		return v
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if k.Field == "" {
			continue
		}
		if k.Direction != state.Ascending && k.Direction != state.Descending {
			continue
		}
		parts = append(parts, k.Field+" "+string(k.Direction))
	}
	if len(parts) == 0 {
		return v
	}
	v.Set(paramOrder, strings.Join(parts, ","))
	return v
}

// Encode builds the full listing query for a grid: pagination, search,
// filters, and sort merged into one parameter set.
func Encode(g *state.Grid, searchable []string) url.Values {
	v := EncodePagination(g.Page, g.PerPage)
	merge(v, EncodeSearch(g.Search, searchable))
	merge(v, EncodeFilters(g.Filters))
	merge(v, EncodeSort(g.Sort))
	return v
}

func merge(dst, src url.Values) {
	for k, vals := range src {
		for _, val := range vals {
			dst.Add(k, val)
		}
	}
}

// Decoded is the partial view state recovered from a query string.
// Zero values mean the parameter was absent or malformed.
type Decoded struct {
	Page    int
	PerPage int
	Search  string
	Filters []state.Filter
	Sort    []state.SortKey
}

// Decode recovers view state from query parameters. It is tolerant:
// anything it does not recognize is skipped, never an error.
//
// A uniform <col>__ilike=<term>% parameter across every searchable
// column is read back as the search term; search detection therefore
// takes precedence over an ilike filter on a searchable column whose
// value ends in "%".
func Decode(values url.Values, searchable []string) Decoded {
	var d Decoded

	if limit, err := strconv.Atoi(values.Get(paramLimit)); err == nil && limit > 0 {
		d.PerPage = limit
		if offset, err := strconv.Atoi(values.Get(paramOffset)); err == nil && offset >= 0 && offset%limit == 0 {
			d.Page = offset/limit + 1
		}
	}

	d.Sort = decodeSort(values.Get(paramOrder))

	consumed := decodeSearch(values, searchable, &d)

	// Remaining <col>__<op> parameters are filters. Parameter maps are
	// unordered, so keys are visited alphabetically for a stable result.
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if consumed[k] {
			continue
		}
		col, op, ok := splitFilterKey(k)
		if !ok {
			continue
		}
		d.Filters = append(d.Filters, state.Filter{Column: col, Operator: op, Value: values.Get(k)})
	}
	return d
}

// decodeSearch detects the expanded search parameters and, on a match,
// sets d.Search and returns the consumed keys.
func decodeSearch(values url.Values, searchable []string, d *Decoded) map[string]bool {
	consumed := make(map[string]bool)
	if len(searchable) == 0 {
		return consumed
	}
	term := ""
	for i, col := range searchable {
		key := col + opSeparator + string(state.OpIlike)
		raw := values.Get(key)
		if raw == "" || !strings.HasSuffix(raw, "%") {
			return map[string]bool{}
		}
		v := strings.TrimSuffix(raw, "%")
		if i == 0 {
			term = v
		} else if v != term {
			return map[string]bool{}
		}
	}
	if term == "" {
		return consumed
	}
	d.Search = term
	for _, col := range searchable {
		consumed[col+opSeparator+string(state.OpIlike)] = true
	}
	return consumed
}

func decodeSort(raw string) []state.SortKey {
	if raw == "" {
		return nil
	}
	var keys []state.SortKey
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		fields := strings.Fields(part)
		if len(fields) != 2 {
			continue
		}
		dir := state.Direction(fields[1])
		if dir != state.Ascending && dir != state.Descending {
			continue
		}
		if _, dup := seen[fields[0]]; dup {
			continue
		}
		seen[fields[0]] = struct{}{}
		keys = append(keys, state.SortKey{Field: fields[0], Direction: dir})
	}
	return keys
}

func splitFilterKey(key string) (string, state.Operator, bool) {
	idx := strings.LastIndex(key, opSeparator)
	if idx <= 0 {
		return "", "", false
	}
	col := key[:idx]
	op := state.Operator(key[idx+len(opSeparator):])
	if !state.ValidOperator(op) {
		return "", "", false
	}
	return col, op, true
}
