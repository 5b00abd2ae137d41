// Package urlstate mirrors grid view state into the address bar and
// hydrates initial state from it.
//
// The write path uses history replacement so every keystroke does not
// pollute back-navigation. The read path runs exactly once, at grid
// initialization; afterwards the URL is a projection of state and never
// a second source of truth.
package urlstate

import (
	"net/url"
	"sync"

	"github.com/consoleworks/gridcore/pkg/query"
	"github.com/consoleworks/gridcore/pkg/state"
)

// HistoryWriter applies a query string to the address bar, replacing
// the current history entry rather than pushing a new one.
type HistoryWriter interface {
	Replace(q url.Values)
}

// Synchronizer binds one grid's state to one address bar.
type Synchronizer struct {
	history    HistoryWriter
	searchable []string

	mu       sync.Mutex
	hydrated bool
}

// New builds a synchronizer. history may be nil when the hosting
// surface has no address bar; Mirror is then a no-op.
func New(history HistoryWriter, searchable []string) *Synchronizer {
	return &Synchronizer{history: history, searchable: searchable}
}

// Hydrate applies a raw query string to the grid. Only the first call
// has any effect; it reports whether hydration ran.
func (s *Synchronizer) Hydrate(rawQuery string, g *state.Grid) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hydrated {
		return false
	}
	s.hydrated = true

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		// Malformed address bars hydrate nothing.
		return true
	}
	d := query.Decode(values, s.searchable)
	if d.PerPage > 0 {
		g.SetPerPage(d.PerPage)
	}
	if d.Search != "" {
		g.SetSearch(d.Search)
	}
	for _, f := range d.Filters {
		g.SetFilter(f.Column, f.Operator, f.Value)
	}
	if len(d.Sort) > 0 {
		g.SetSort(d.Sort)
	}
	if d.Page > 0 {
		g.SetPage(d.Page)
	}
	return true
}

// Mirror projects the grid's current state onto the address bar.
func (s *Synchronizer) Mirror(g *state.Grid) {
	if s.history == nil {
		return
	}
	s.history.Replace(query.Encode(g, s.searchable))
}

// MemoryHistory is a HistoryWriter that records the last written query,
// for surfaces without a real address bar and for tests.
type MemoryHistory struct {
	mu       sync.Mutex
	current  url.Values
	replaces int
}

// Replace implements HistoryWriter.
func (m *MemoryHistory) Replace(q url.Values) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = q
	m.replaces++
}

// Current returns the last written query.
func (m *MemoryHistory) Current() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Replaces returns how many times the query was written.
func (m *MemoryHistory) Replaces() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaces
}
