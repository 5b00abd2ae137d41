// Package behavior defines the pluggable strategy slots of the grid
// engine. Each grid concern — search, filter, sort, pagination, export,
// bulk actions, column visibility — can be overridden by registering a
// strategy; the controller falls back to its built-in behavior for any
// slot left empty.
//
// The registry is owned by one grid instance and injected into its
// controller. There is no process-global registry: two grids on the
// same page never share mutable strategy state.
package behavior

import (
	"context"
	"net/url"

	"github.com/consoleworks/gridcore/pkg/state"
)

// SearchStrategy overrides what happens when the user submits a search
// term (after debounce).
type SearchStrategy interface {
	OnSearch(ctx context.Context, term string) error
}

// FilterStrategy overrides what happens when a filter control changes.
type FilterStrategy interface {
	OnFilterChange(ctx context.Context, column string, op state.Operator, value string) error
}

// SortStrategy overrides what happens when a sort header is activated.
// direction is the direction the sort cycle would advance to, empty
// when it would return to unsorted. The engine's own sort state is left
// untouched while a strategy is registered, same as the search and
// filter slots.
type SortStrategy interface {
	OnSort(ctx context.Context, field string, direction state.Direction) error
}

// PaginationStrategy overrides how pagination state becomes request
// parameters. It is a parameter builder only; page navigation events are
// handled by the controller itself.
type PaginationStrategy interface {
	BuildParams(page, perPage int) url.Values
}

// ExportStrategy overrides the export pipeline for a format.
type ExportStrategy interface {
	Export(ctx context.Context, format string, params url.Values) error
}

// BulkOutcome is the per-row result of a bulk action.
type BulkOutcome struct {
	ID    string
	OK    bool
	Error string
}

// BulkResult summarizes a bulk action run.
type BulkResult struct {
	Succeeded int
	Failed    int
	Items     []BulkOutcome
}

// BulkStrategy is the legacy named-behavior fallback for bulk actions,
// kept for callers that predate declarative action configuration.
type BulkStrategy interface {
	Execute(ctx context.Context, actionID string, ids []string) (BulkResult, error)
}

// ColumnVisibilityStrategy overrides column visibility handling.
type ColumnVisibilityStrategy interface {
	ToggleColumn(field string) error
	ReorderColumns(order []string) error
}

// Registry holds the strategies of one grid instance. The zero value is
// ready to use: every lookup reports "not registered" and the engine
// default applies.
type Registry struct {
	search  SearchStrategy
	filter  FilterStrategy
	sort    SortStrategy
	paging  PaginationStrategy
	export  ExportStrategy
	bulk    BulkStrategy
	columns ColumnVisibilityStrategy
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// UseSearch registers a search strategy and returns the registry for
// chaining.
func (r *Registry) UseSearch(s SearchStrategy) *Registry { r.search = s; return r }

// UseFilter registers a filter strategy.
func (r *Registry) UseFilter(s FilterStrategy) *Registry { r.filter = s; return r }

// UseSort registers a sort strategy.
func (r *Registry) UseSort(s SortStrategy) *Registry { r.sort = s; return r }

// UsePagination registers a pagination parameter builder.
func (r *Registry) UsePagination(s PaginationStrategy) *Registry { r.paging = s; return r }

// UseExport registers an export strategy.
func (r *Registry) UseExport(s ExportStrategy) *Registry { r.export = s; return r }

// UseBulk registers the legacy bulk action fallback.
func (r *Registry) UseBulk(s BulkStrategy) *Registry { r.bulk = s; return r }

// UseColumns registers a column visibility strategy.
func (r *Registry) UseColumns(s ColumnVisibilityStrategy) *Registry { r.columns = s; return r }

// Search returns the registered search strategy, if any.
func (r *Registry) Search() (SearchStrategy, bool) { return r.search, r.search != nil }

// Filter returns the registered filter strategy, if any.
func (r *Registry) Filter() (FilterStrategy, bool) { return r.filter, r.filter != nil }

// Sort returns the registered sort strategy, if any.
func (r *Registry) Sort() (SortStrategy, bool) { return r.sort, r.sort != nil }

// Pagination returns the registered pagination builder, if any.
func (r *Registry) Pagination() (PaginationStrategy, bool) { return r.paging, r.paging != nil }

// Export returns the registered export strategy, if any.
func (r *Registry) Export() (ExportStrategy, bool) { return r.export, r.export != nil }

// Bulk returns the legacy bulk fallback, if any.
func (r *Registry) Bulk() (BulkStrategy, bool) { return r.bulk, r.bulk != nil }

// Columns returns the registered column visibility strategy, if any.
func (r *Registry) Columns() (ColumnVisibilityStrategy, bool) { return r.columns, r.columns != nil }
