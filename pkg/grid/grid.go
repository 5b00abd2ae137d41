// Package grid is the orchestrator that binds view events to state
// transitions, runs the authoritative listing fetch, and triggers
// re-render. It owns one state.Grid exclusively and composes the query
// codec, behavior registry, column manager, capability gate, URL
// synchronizer, and bulk/export executors around it.
//
// All pure decision logic lives in the composed packages; the
// controller contributes sequencing only: debounce, last-request-wins
// fetching, optimistic selection clearing, teardown.
package grid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/consoleworks/gridcore/pkg/behavior"
	"github.com/consoleworks/gridcore/pkg/bulk"
	"github.com/consoleworks/gridcore/pkg/capability"
	"github.com/consoleworks/gridcore/pkg/columns"
	"github.com/consoleworks/gridcore/pkg/config"
	"github.com/consoleworks/gridcore/pkg/export"
	"github.com/consoleworks/gridcore/pkg/fetch"
	"github.com/consoleworks/gridcore/pkg/query"
	"github.com/consoleworks/gridcore/pkg/state"
	"github.com/consoleworks/gridcore/pkg/storage"
	"github.com/consoleworks/gridcore/pkg/urlstate"
)

// Role is a logical view role. A view that does not carry a role
// silently disables the corresponding feature; it never errors.
type Role string

const (
	RoleSearchInput    Role = "searchInput"
	RolePerPageSelect  Role = "perPageSelect"
	RoleFilterRow      Role = "filterRow"
	RoleColumnToggle   Role = "columnToggleBtn"
	RoleExportButton   Role = "exportBtn"
	RolePagination     Role = "paginationContainer"
	RoleSelectAll      Role = "selectAllCheckbox"
	RoleRowCheckboxes  Role = "rowCheckboxes"
	RoleBulkActionsBar Role = "bulkActionsBar"
)

// View is the surface the controller renders into. It declares which
// logical roles it carries and receives every state the grid can end
// up in; the controller never leaves a fetch outcome unrendered.
//
// RenderPage receives a state snapshot the view may keep and read from
// any goroutine; it never aliases the controller's live record.
type View interface {
	Has(role Role) bool
	RenderPage(page *fetch.Page, st *state.Grid)
	RenderError(message string)
}

// ErrGated means the capability gate refused the operation.
var ErrGated = errors.New("operation gated")

// ErrRoleDisabled means the view does not carry the role that triggers
// the operation.
var ErrRoleDisabled = errors.New("view role not bound")

// Options wires a controller. Definition, Client, and View are
// required; everything else degrades gracefully when absent.
type Options struct {
	Definition *config.Grid
	Client     *fetch.Client
	View       View

	Behaviors *behavior.Registry
	Columns   *columns.Manager
	History   urlstate.HistoryWriter
	Exporter  *export.Runner
	Bulk      *bulk.Executor

	// Prefs enables saved filter sets. Nil disables them.
	Prefs *storage.Prefs

	// Gate and GateModule bind the controller to one module of the
	// capability snapshot. A nil gate leaves everything ungated.
	Gate       *capability.Snapshot
	GateModule string

	// Debounce overrides the definition's search debounce.
	Debounce time.Duration

	Logger *slog.Logger
}

// Controller orchestrates one grid instance.
type Controller struct {
	id     string
	def    *config.Grid
	client *fetch.Client
	view   View

	behaviors *behavior.Registry
	columns   *columns.Manager
	urlSync   *urlstate.Synchronizer
	exporter  *export.Runner
	bulk      *bulk.Executor
	prefs     *storage.Prefs

	gate       *capability.Snapshot
	gateModule string

	debounce time.Duration
	logger   *slog.Logger

	root     context.Context
	teardown context.CancelFunc

	mu          sync.Mutex
	st          *state.Grid
	page        *fetch.Page
	fetchSeq    uint64
	fetchCancel context.CancelFunc

	searchMu    sync.Mutex
	searchTimer *time.Timer
}

// New builds a controller. The grid starts empty; call Init to hydrate
// and run the first fetch.
func New(opts Options) (*Controller, error) {
	if opts.Definition == nil {
		return nil, errors.New("grid: definition required")
	}
	if opts.Client == nil {
		return nil, errors.New("grid: fetch client required")
	}
	if opts.View == nil {
		return nil, errors.New("grid: view required")
	}

	def := opts.Definition
	debounce := opts.Debounce
	if debounce == 0 {
		debounce = time.Duration(def.DebounceMs) * time.Millisecond
	}
	behaviors := opts.Behaviors
	if behaviors == nil {
		behaviors = behavior.NewRegistry()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	st := state.New(def.PerPage)
	st.MultiSort = def.MultiSort

	root, cancel := context.WithCancel(context.Background())
	c := &Controller{
		id:         uuid.NewString(),
		def:        def,
		client:     opts.Client,
		view:       opts.View,
		behaviors:  behaviors,
		columns:    opts.Columns,
		urlSync:    urlstate.New(opts.History, def.Searchable),
		exporter:   opts.Exporter,
		bulk:       opts.Bulk,
		prefs:      opts.Prefs,
		gate:       opts.Gate,
		gateModule: opts.GateModule,
		debounce:   debounce,
		logger:     logger.With("component", "grid", "grid", def.ID),
		root:       root,
		teardown:   cancel,
		st:         st,
	}
	return c, nil
}

// ID returns the controller's instance identity, used to correlate its
// log lines and traces.
func (c *Controller) ID() string { return c.id }

// State returns a snapshot of the view state, copied under the
// controller's lock. The snapshot is the caller's to keep; it never
// reflects transitions that happen after the call. All mutation goes
// through controller methods.
func (c *Controller) State() *state.Grid {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.Clone()
}

// Definition returns the static grid definition.
func (c *Controller) Definition() *config.Grid { return c.def }

// Page returns the most recently rendered page, or nil before the
// first successful fetch.
func (c *Controller) Page() *fetch.Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// Init hydrates state from the raw URL query (once), restores column
// preferences, mirrors the resulting state back, and runs the first
// fetch. rawQuery may be empty.
func (c *Controller) Init(ctx context.Context, rawQuery string) {
	c.mu.Lock()
	c.urlSync.Hydrate(rawQuery, c.st)
	c.mu.Unlock()

	if c.columns != nil {
		c.columns.Restore(ctx)
	}
	c.mirror()
	c.Refresh()
}

// Close cancels all in-flight work. Nothing is left running
// unobserved afterwards.
func (c *Controller) Close() {
	c.searchMu.Lock()
	if c.searchTimer != nil {
		c.searchTimer.Stop()
		c.searchTimer = nil
	}
	c.searchMu.Unlock()
	c.teardown()
}

// NavDecision resolves the gate for this grid's navigation entry. An
// ungated controller is always visible and enabled.
func (c *Controller) NavDecision() capability.Decision {
	if c.gate == nil || c.gateModule == "" {
		return capability.Decision{Visible: true, Enabled: true}
	}
	return c.gate.GateNavItem(c.gateModule)
}

// ActionDecision resolves the gate for one action inside this grid's
// module.
func (c *Controller) ActionDecision(action string) capability.Decision {
	if c.gate == nil || c.gateModule == "" {
		return capability.Decision{Visible: true, Enabled: true}
	}
	return c.gate.GateAction(c.gateModule, action)
}

// Search schedules a debounced search. The fetch fires after the
// debounce window unless a newer term supersedes it first.
func (c *Controller) Search(term string) {
	if !c.view.Has(RoleSearchInput) {
		return
	}
	c.searchMu.Lock()
	defer c.searchMu.Unlock()
	if c.searchTimer != nil {
		c.searchTimer.Stop()
	}
	if c.debounce <= 0 {
		go c.applySearch(term)
		return
	}
	c.searchTimer = time.AfterFunc(c.debounce, func() { c.applySearch(term) })
}

// SearchNow applies a search term immediately, bypassing the debounce.
func (c *Controller) SearchNow(term string) {
	if !c.view.Has(RoleSearchInput) {
		return
	}
	c.searchMu.Lock()
	if c.searchTimer != nil {
		c.searchTimer.Stop()
		c.searchTimer = nil
	}
	c.searchMu.Unlock()
	c.applySearch(term)
}

func (c *Controller) applySearch(term string) {
	if s, ok := c.behaviors.Search(); ok {
		if err := s.OnSearch(c.root, term); err != nil {
			c.logger.Warn("search strategy failed", "error", err)
		}
		return
	}
	c.mu.Lock()
	c.st.SetSearch(term)
	c.mu.Unlock()
	c.mirror()
	c.Refresh()
}

// SetFilter adds or replaces one column filter and fetches
// immediately.
func (c *Controller) SetFilter(column string, op state.Operator, value string) {
	if !c.view.Has(RoleFilterRow) {
		return
	}
	if f, ok := c.behaviors.Filter(); ok {
		if err := f.OnFilterChange(c.root, column, op, value); err != nil {
			c.logger.Warn("filter strategy failed", "error", err)
		}
		return
	}
	c.mu.Lock()
	c.st.SetFilter(column, op, value)
	c.mu.Unlock()
	c.mirror()
	c.Refresh()
}

// RemoveFilter drops one column filter and fetches immediately.
func (c *Controller) RemoveFilter(column string) {
	if !c.view.Has(RoleFilterRow) {
		return
	}
	c.mu.Lock()
	c.st.RemoveFilter(column)
	c.mu.Unlock()
	c.mirror()
	c.Refresh()
}

// ClearFilters drops every filter and fetches immediately.
func (c *Controller) ClearFilters() {
	if !c.view.Has(RoleFilterRow) {
		return
	}
	c.mu.Lock()
	c.st.ClearFilters()
	c.mu.Unlock()
	c.mirror()
	c.Refresh()
}

// Sort advances the sort cycle for a column and fetches immediately.
// Non-sortable and unknown columns are ignored. Like the search and
// filter slots, a registered strategy takes over before any state
// transition: it receives the direction the cycle would advance to and
// the engine's sort list stays untouched.
func (c *Controller) Sort(field string) {
	if !c.sortable(field) {
		return
	}
	if s, ok := c.behaviors.Sort(); ok {
		c.mu.Lock()
		dir := c.st.PeekSort(field)
		c.mu.Unlock()
		if err := s.OnSort(c.root, field, dir); err != nil {
			c.logger.Warn("sort strategy failed", "error", err)
		}
		return
	}
	c.mu.Lock()
	c.st.CycleSort(field)
	c.mu.Unlock()
	c.mirror()
	c.Refresh()
}

func (c *Controller) sortable(field string) bool {
	for _, col := range c.def.Columns {
		if col.Field == field {
			return col.Sortable
		}
	}
	return false
}

// SetPage navigates to a page and fetches immediately.
func (c *Controller) SetPage(page int) {
	if !c.view.Has(RolePagination) {
		return
	}
	c.mu.Lock()
	before := c.st.Page
	c.st.SetPage(page)
	changed := c.st.Page != before
	c.mu.Unlock()
	if !changed {
		return
	}
	c.mirror()
	c.Refresh()
}

// NextPage advances one page.
func (c *Controller) NextPage() {
	c.mu.Lock()
	next := c.st.Page + 1
	c.mu.Unlock()
	c.SetPage(next)
}

// PrevPage goes back one page; page 1 stays put.
func (c *Controller) PrevPage() {
	c.mu.Lock()
	prev := c.st.Page - 1
	c.mu.Unlock()
	c.SetPage(prev)
}

// SetPerPage changes the page size, resets to page 1, and fetches.
func (c *Controller) SetPerPage(perPage int) {
	if !c.view.Has(RolePerPageSelect) {
		return
	}
	c.mu.Lock()
	before := c.st.PerPage
	c.st.SetPerPage(perPage)
	changed := c.st.PerPage != before
	c.mu.Unlock()
	if !changed {
		return
	}
	c.mirror()
	c.Refresh()
}

// ToggleColumn flips one column's visibility. Purely presentational:
// no re-fetch, the current page re-renders with the new column set.
func (c *Controller) ToggleColumn(ctx context.Context, field string) {
	if !c.view.Has(RoleColumnToggle) || c.columns == nil {
		return
	}
	if s, ok := c.behaviors.Columns(); ok {
		if err := s.ToggleColumn(field); err != nil {
			c.logger.Warn("column strategy failed", "error", err)
		}
		return
	}
	c.columns.Toggle(ctx, field)
	c.rerender()
}

// ReorderColumns commits a new display order, e.g. from a completed
// drag. No re-fetch.
func (c *Controller) ReorderColumns(ctx context.Context, order []string) {
	if !c.view.Has(RoleColumnToggle) || c.columns == nil {
		return
	}
	if s, ok := c.behaviors.Columns(); ok {
		if err := s.ReorderColumns(order); err != nil {
			c.logger.Warn("column strategy failed", "error", err)
		}
		return
	}
	c.columns.Reorder(ctx, order)
	c.rerender()
}

// ToggleRow flips one row's selection and returns its new state.
func (c *Controller) ToggleRow(id string) bool {
	if !c.view.Has(RoleRowCheckboxes) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.ToggleSelect(id)
}

// SelectAllVisible selects every row of the current page.
func (c *Controller) SelectAllVisible() {
	if !c.view.Has(RoleSelectAll) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.page == nil {
		return
	}
	for _, row := range c.page.Rows {
		c.st.Select(row.ID(c.def.IDField))
	}
}

// ClearSelection empties the selection.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.ClearSelection()
}

// RunBulk executes a bulk action over the current selection. After an
// attempted action the selection is cleared and the grid refreshed
// regardless of per-row outcome; pre-dispatch refusals (empty
// selection, unknown action, declined confirmation, missing field)
// leave the selection intact.
func (c *Controller) RunBulk(ctx context.Context, actionID string, payload map[string]any) (behavior.BulkResult, error) {
	if !c.view.Has(RoleBulkActionsBar) {
		return behavior.BulkResult{}, ErrRoleDisabled
	}
	if d := c.ActionDecision(actionID); !d.Enabled {
		return behavior.BulkResult{}, fmt.Errorf("%s: %w", d.ReasonCode, ErrGated)
	}
	if c.bulk == nil {
		return behavior.BulkResult{}, bulk.ErrUnknownAction
	}

	c.mu.Lock()
	ids := c.st.SelectedIDs()
	c.mu.Unlock()

	res, err := c.bulk.Execute(ctx, actionID, ids, payload)
	if err != nil && !bulk.Attempted(err) {
		return res, err
	}

	c.mu.Lock()
	c.st.ClearSelection()
	c.mu.Unlock()
	c.Refresh()
	return res, err
}

// SaveFilters persists the current search, filters, and sort under a
// name. Saving an identical set is a no-op down to storage.
func (c *Controller) SaveFilters(ctx context.Context, name string) error {
	if c.prefs == nil {
		return errors.New("no preference store configured")
	}
	c.mu.Lock()
	f := storage.SavedFilter{
		Name:    name,
		Search:  c.st.Search,
		Filters: append([]state.Filter(nil), c.st.Filters...),
		Sort:    append([]state.SortKey(nil), c.st.Sort...),
	}
	c.mu.Unlock()
	return c.prefs.SaveFilter(ctx, f)
}

// ApplySavedFilter loads a named filter set, applies it, and fetches.
func (c *Controller) ApplySavedFilter(ctx context.Context, name string) error {
	if c.prefs == nil {
		return errors.New("no preference store configured")
	}
	saved, err := c.prefs.SavedFilters(ctx)
	if err != nil {
		return err
	}
	for _, f := range saved {
		if f.Name != name {
			continue
		}
		c.mu.Lock()
		c.st.ClearFilters()
		c.st.SetSearch(f.Search)
		for _, flt := range f.Filters {
			c.st.SetFilter(flt.Column, flt.Operator, flt.Value)
		}
		c.st.SetSort(f.Sort)
		c.mu.Unlock()
		c.mirror()
		c.Refresh()
		return nil
	}
	return fmt.Errorf("saved filter %q not found", name)
}

// SavedFilters lists the persisted filter sets.
func (c *Controller) SavedFilters(ctx context.Context) ([]storage.SavedFilter, error) {
	if c.prefs == nil {
		return nil, nil
	}
	return c.prefs.SavedFilters(ctx)
}

// Export runs one export for the current listing state. A registered
// export strategy overrides the built-in runner.
func (c *Controller) Export(ctx context.Context, format string) (string, error) {
	if !c.view.Has(RoleExportButton) {
		return "", ErrRoleDisabled
	}
	if d := c.ActionDecision("export"); !d.Enabled {
		return "", fmt.Errorf("%s: %w", d.ReasonCode, ErrGated)
	}

	c.mu.Lock()
	params := c.buildQuery()
	c.mu.Unlock()

	if s, ok := c.behaviors.Export(); ok {
		return "", s.Export(ctx, format, params)
	}
	if c.exporter == nil {
		return "", errors.New("no export pipeline configured")
	}
	return c.exporter.Export(ctx, format, params)
}

// Refresh starts the authoritative listing fetch for the current
// state, cancelling any fetch still in flight. The newest request
// always wins: a slow stale response can never overwrite fresher rows.
func (c *Controller) Refresh() {
	c.mu.Lock()
	if c.fetchCancel != nil {
		c.fetchCancel()
	}
	ctx, cancel := context.WithCancel(c.root)
	c.fetchCancel = cancel
	c.fetchSeq++
	seq := c.fetchSeq
	params := c.buildQuery()
	c.mu.Unlock()

	go c.fetchPage(ctx, seq, params)
}

func (c *Controller) fetchPage(ctx context.Context, seq uint64, params url.Values) {
	page, err := c.client.List(ctx, c.def.Endpoint, params)

	c.mu.Lock()
	if seq != c.fetchSeq {
		// Superseded while in flight; a newer fetch owns the render.
		c.mu.Unlock()
		return
	}
	if err == nil {
		c.page = page
		c.st.TotalRows = page.Total
	}
	st := c.st.Clone()
	c.mu.Unlock()

	switch {
	case err == nil:
		c.view.RenderPage(page, st)
	case fetch.IsCancel(err):
		// Never user-visible.
	default:
		c.logger.Warn("listing fetch failed", "error", err)
		c.view.RenderError(err.Error())
	}
}

// buildQuery assembles the full listing query. Callers hold c.mu.
func (c *Controller) buildQuery() url.Values {
	if p, ok := c.behaviors.Pagination(); ok {
		v := p.BuildParams(c.st.Page, c.st.PerPage)
		for k, vals := range query.Encode(c.st, c.def.Searchable) {
			if k == "limit" || k == "offset" {
				continue
			}
			for _, val := range vals {
				v.Add(k, val)
			}
		}
		return v
	}
	return query.Encode(c.st, c.def.Searchable)
}

// mirror projects state onto the address bar.
func (c *Controller) mirror() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.urlSync.Mirror(c.st)
}

// rerender redraws the current page without fetching.
func (c *Controller) rerender() {
	c.mu.Lock()
	page, st := c.page, c.st.Clone()
	c.mu.Unlock()
	if page != nil {
		c.view.RenderPage(page, st)
	}
}
