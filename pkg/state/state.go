// Package state holds the canonical view state of one grid instance:
// pagination, sort, filters, search text, hidden columns, and row selection.
//
// The state is a plain mutable record owned by a single controller. All
// transition rules live here so they can be exercised without any view or
// network environment.
package state

import "sort"

// Operator is a filter comparison operator in the backend's convention.
type Operator string

const (
	OpEq    Operator = "eq"
	OpNe    Operator = "ne"
	OpIlike Operator = "ilike"
	OpGt    Operator = "gt"
	OpLt    Operator = "lt"
	OpGte   Operator = "gte"
	OpLte   Operator = "lte"
)

// ValidOperator reports whether op is one of the supported comparison
// operators.
func ValidOperator(op Operator) bool {
	switch op {
	case OpEq, OpNe, OpIlike, OpGt, OpLt, OpGte, OpLte:
		return true
	}
	return false
}

// Direction is a sort direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Filter is one column filter. A grid never holds two filters for the
// same column.
type Filter struct {
	Column   string
	Operator Operator
	Value    string
}

// SortKey is one entry of the ordered sort list; the first entry is the
// primary sort.
type SortKey struct {
	Field     string
	Direction Direction
}

// Grid is the mutable view state of one grid instance.
//
// Insertion order of Filters is preserved for stable query construction
// but carries no semantics. Sort order reflects the sequence sort keys
// were applied.
type Grid struct {
	Page      int
	PerPage   int
	TotalRows int

	Search  string
	Filters []Filter
	Sort    []SortKey

	// MultiSort appends new sort columns instead of replacing the
	// active one.
	MultiSort bool

	hidden   map[string]struct{}
	selected map[string]struct{}
}

// DefaultPerPage is used when a grid is created without an explicit page
// size.
const DefaultPerPage = 10

// New returns a grid on page 1 with the given page size. A non-positive
// perPage falls back to DefaultPerPage.
func New(perPage int) *Grid {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return &Grid{
		Page:     1,
		PerPage:  perPage,
		hidden:   make(map[string]struct{}),
		selected: make(map[string]struct{}),
	}
}

// Clone returns a deep copy sharing nothing with the original, so the
// copy can be read while the original keeps transitioning.
func (g *Grid) Clone() *Grid {
	cp := *g
	cp.Filters = append([]Filter(nil), g.Filters...)
	cp.Sort = append([]SortKey(nil), g.Sort...)
	cp.hidden = make(map[string]struct{}, len(g.hidden))
	for f := range g.hidden {
		cp.hidden[f] = struct{}{}
	}
	cp.selected = make(map[string]struct{}, len(g.selected))
	for id := range g.selected {
		cp.selected[id] = struct{}{}
	}
	return &cp
}

// SetPage moves to the given page. Pages below 1 clamp to 1.
func (g *Grid) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	g.Page = page
}

// SetPerPage changes the page size and resets to page 1. Non-positive
// values are ignored.
func (g *Grid) SetPerPage(perPage int) {
	if perPage <= 0 || perPage == g.PerPage {
		return
	}
	g.PerPage = perPage
	g.Page = 1
}

// SetSearch replaces the search term. A changed term resets to page 1;
// setting the identical term is a no-op.
func (g *Grid) SetSearch(term string) {
	if term == g.Search {
		return
	}
	g.Search = term
	g.Page = 1
}

// SetFilter adds or replaces the filter for a column and resets to
// page 1. Invalid operators are ignored.
func (g *Grid) SetFilter(column string, op Operator, value string) {
	if column == "" || !ValidOperator(op) {
		return
	}
	for i, f := range g.Filters {
		if f.Column == column {
			if f.Operator == op && f.Value == value {
				return
			}
			g.Filters[i] = Filter{Column: column, Operator: op, Value: value}
			g.Page = 1
			return
		}
	}
	g.Filters = append(g.Filters, Filter{Column: column, Operator: op, Value: value})
	g.Page = 1
}

// RemoveFilter drops the filter for a column, if any, and resets to
// page 1 when something was removed.
func (g *Grid) RemoveFilter(column string) {
	for i, f := range g.Filters {
		if f.Column == column {
			g.Filters = append(g.Filters[:i], g.Filters[i+1:]...)
			g.Page = 1
			return
		}
	}
}

// ClearFilters drops all filters and resets to page 1 when any existed.
func (g *Grid) ClearFilters() {
	if len(g.Filters) == 0 {
		return
	}
	g.Filters = nil
	g.Page = 1
}

// SortOf returns the current direction for a field and whether the field
// is sorted at all.
func (g *Grid) SortOf(field string) (Direction, bool) {
	for _, s := range g.Sort {
		if s.Field == field {
			return s.Direction, true
		}
	}
	return "", false
}

// CycleSort advances the three-state sort cycle for a column:
// unsorted → ascending → descending → unsorted.
//
// In single-sort mode, activating a column that is not currently sorted
// replaces the whole sort list. In multi-sort mode the column is
// appended and cycles independently of the others.
//
// Entering the cycle (unsorted → ascending) changes which column orders
// the result set and resets to page 1. Continuing the cycle on an
// already-sorted column only flips order, so the page is kept.
//
// The returned direction is the column's new direction, or "" when the
// cycle returned to unsorted.
func (g *Grid) CycleSort(field string) Direction {
	if field == "" {
		return ""
	}
	for i, s := range g.Sort {
		if s.Field != field {
			continue
		}
		switch s.Direction {
		case Ascending:
			g.Sort[i].Direction = Descending
			return Descending
		default:
			g.Sort = append(g.Sort[:i], g.Sort[i+1:]...)
			return ""
		}
	}
	entry := SortKey{Field: field, Direction: Ascending}
	if g.MultiSort {
		g.Sort = append(g.Sort, entry)
	} else {
		g.Sort = []SortKey{entry}
	}
	g.Page = 1
	return Ascending
}

// PeekSort returns the direction the next CycleSort on the field would
// produce, without applying it.
func (g *Grid) PeekSort(field string) Direction {
	dir, _ := g.SortOf(field)
	switch dir {
	case Ascending:
		return Descending
	case Descending:
		return ""
	default:
		return Ascending
	}
}

// SetSort replaces the whole sort list, dropping duplicate fields and
// invalid directions, and resets to page 1. Used when hydrating state
// from a URL.
func (g *Grid) SetSort(keys []SortKey) {
	seen := make(map[string]struct{}, len(keys))
	out := make([]SortKey, 0, len(keys))
	for _, k := range keys {
		if k.Field == "" {
			continue
		}
		if k.Direction != Ascending && k.Direction != Descending {
			continue
		}
		if _, dup := seen[k.Field]; dup {
			continue
		}
		seen[k.Field] = struct{}{}
		out = append(out, k)
	}
	g.Sort = out
	g.Page = 1
}

// HideColumn adds a field to the hidden set. Returns true when the set
// changed.
func (g *Grid) HideColumn(field string) bool {
	if _, ok := g.hidden[field]; ok {
		return false
	}
	g.hidden[field] = struct{}{}
	return true
}

// ShowColumn removes a field from the hidden set. Returns true when the
// set changed.
func (g *Grid) ShowColumn(field string) bool {
	if _, ok := g.hidden[field]; !ok {
		return false
	}
	delete(g.hidden, field)
	return true
}

// Hidden reports whether a field is currently hidden.
func (g *Grid) Hidden(field string) bool {
	_, ok := g.hidden[field]
	return ok
}

// HiddenColumns returns the hidden set as a sorted slice.
func (g *Grid) HiddenColumns() []string {
	out := make([]string, 0, len(g.hidden))
	for f := range g.hidden {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// SetHiddenColumns replaces the hidden set wholesale, e.g. when
// restoring persisted preferences.
func (g *Grid) SetHiddenColumns(fields []string) {
	g.hidden = make(map[string]struct{}, len(fields))
	for _, f := range fields {
		g.hidden[f] = struct{}{}
	}
}

// Select marks a row identifier as selected. Selection is keyed by the
// stable external identifier, never by render position, and survives
// pagination, sort, and filter changes until explicitly cleared.
func (g *Grid) Select(id string) {
	if id == "" {
		return
	}
	g.selected[id] = struct{}{}
}

// Deselect removes one row identifier from the selection.
func (g *Grid) Deselect(id string) {
	delete(g.selected, id)
}

// ToggleSelect flips one row's selection and returns the new state.
func (g *Grid) ToggleSelect(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := g.selected[id]; ok {
		delete(g.selected, id)
		return false
	}
	g.selected[id] = struct{}{}
	return true
}

// SelectAll adds every given identifier to the selection.
func (g *Grid) SelectAll(ids []string) {
	for _, id := range ids {
		g.Select(id)
	}
}

// ClearSelection empties the selection.
func (g *Grid) ClearSelection() {
	g.selected = make(map[string]struct{})
}

// Selected reports whether a row identifier is selected.
func (g *Grid) Selected(id string) bool {
	_, ok := g.selected[id]
	return ok
}

// SelectionCount returns the number of selected rows.
func (g *Grid) SelectionCount() int {
	return len(g.selected)
}

// SelectedIDs returns the selection as a sorted slice.
func (g *Grid) SelectedIDs() []string {
	out := make([]string, 0, len(g.selected))
	for id := range g.selected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
