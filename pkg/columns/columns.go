// Package columns manages column visibility and left-to-right display
// order for one grid, decoupled from row rendering. Customizations are
// persisted per grid identity; when storage misbehaves the manager
// degrades to session-only state rather than blocking interaction.
package columns

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"

	"github.com/consoleworks/gridcore/pkg/storage"
)

// Column is one statically configured column. Order and visibility are
// managed state; the definition itself never changes at runtime.
type Column struct {
	Field    string `yaml:"field" json:"field"`
	Label    string `yaml:"label" json:"label"`
	Sortable bool   `yaml:"sortable" json:"sortable"`
	// Widget tags the content renderer for this column's cells; the
	// render registry resolves it with a fallback.
	Widget string `yaml:"widget,omitempty" json:"widget,omitempty"`
}

// Manager tracks order and visibility for a grid's configured columns.
type Manager struct {
	gridID     string
	configured []Column
	byField    map[string]Column
	order      []string
	hidden     map[string]struct{}
	prefs      *storage.Prefs
	logger     *slog.Logger
}

// NewManager builds a manager for the configured columns. prefs may be
// nil for a purely in-memory grid.
func NewManager(gridID string, configured []Column, prefs *storage.Prefs) *Manager {
	m := &Manager{
		gridID:     gridID,
		configured: configured,
		byField:    make(map[string]Column, len(configured)),
		order:      make([]string, 0, len(configured)),
		hidden:     make(map[string]struct{}),
		prefs:      prefs,
		logger:     slog.Default().With("component", "columns", "grid", gridID),
	}
	for _, c := range configured {
		if _, dup := m.byField[c.Field]; dup {
			continue
		}
		m.byField[c.Field] = c
		m.order = append(m.order, c.Field)
	}
	return m
}

// Restore applies persisted customizations. Any storage failure leaves
// the configured defaults in place.
func (m *Manager) Restore(ctx context.Context) {
	if m.prefs == nil {
		return
	}
	p, err := m.prefs.ColumnPrefs(ctx, m.gridID)
	if err != nil {
		m.logger.WarnContext(ctx, "restore column prefs failed, using defaults", "error", err)
		return
	}
	if len(p.Order) > 0 {
		m.applyOrder(p.Order)
	}
	m.hidden = make(map[string]struct{}, len(p.Hidden))
	for _, f := range p.Hidden {
		if _, known := m.byField[f]; known {
			m.hidden[f] = struct{}{}
		}
	}
}

// Toggle flips one column's visibility and persists the change. It
// returns the column's new hidden state. Unknown fields are ignored.
// Toggling never triggers a data re-fetch; visibility is purely a
// presentation concern.
func (m *Manager) Toggle(ctx context.Context, field string) bool {
	if _, known := m.byField[field]; !known {
		return false
	}
	if _, ok := m.hidden[field]; ok {
		delete(m.hidden, field)
	} else {
		m.hidden[field] = struct{}{}
	}
	m.persist(ctx)
	_, nowHidden := m.hidden[field]
	return nowHidden
}

// Reorder replaces the display order. Fields missing from newOrder keep
// their relative order after the listed ones; unknown fields are
// skipped. A configured column can never be dropped this way. Applying
// the current order is a no-op all the way down to storage.
func (m *Manager) Reorder(ctx context.Context, newOrder []string) {
	m.applyOrder(newOrder)
	m.persist(ctx)
}

func (m *Manager) applyOrder(newOrder []string) {
	seen := make(map[string]struct{}, len(newOrder))
	out := make([]string, 0, len(m.order))
	for _, f := range newOrder {
		if _, known := m.byField[f]; !known {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	for _, f := range m.order {
		if _, placed := seen[f]; !placed {
			out = append(out, f)
		}
	}
	m.order = out
}

// ResetToDefault clears persisted overrides and restores the configured
// order and visibility.
func (m *Manager) ResetToDefault(ctx context.Context) {
	m.order = m.order[:0]
	for _, c := range m.configured {
		if _, ok := m.byField[c.Field]; ok {
			m.order = append(m.order, c.Field)
		}
	}
	m.hidden = make(map[string]struct{})
	if m.prefs == nil {
		return
	}
	if err := m.prefs.DeleteColumnPrefs(ctx, m.gridID); err != nil {
		m.logger.WarnContext(ctx, "clear column prefs failed", "error", err)
	}
}

func (m *Manager) persist(ctx context.Context) {
	if m.prefs == nil {
		return
	}
	p := storage.ColumnPrefs{Order: append([]string(nil), m.order...)}
	for _, f := range m.order {
		if _, ok := m.hidden[f]; ok {
			p.Hidden = append(p.Hidden, f)
		}
	}
	if err := m.prefs.SaveColumnPrefs(ctx, m.gridID, p); err != nil {
		// Session-only from here on; the interaction already happened.
		m.logger.WarnContext(ctx, "persist column prefs failed", "error", err)
	}
}

// Hidden reports whether a column is currently hidden.
func (m *Manager) Hidden(field string) bool {
	_, ok := m.hidden[field]
	return ok
}

// HiddenFields returns the hidden fields in display order.
func (m *Manager) HiddenFields() []string {
	var out []string
	for _, f := range m.order {
		if _, ok := m.hidden[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// All returns every configured column in display order.
func (m *Manager) All() []Column {
	out := make([]Column, 0, len(m.order))
	for _, f := range m.order {
		out = append(out, m.byField[f])
	}
	return out
}

// Visible returns the visible columns in display order.
func (m *Manager) Visible() []Column {
	out := make([]Column, 0, len(m.order))
	for _, f := range m.order {
		if _, ok := m.hidden[f]; !ok {
			out = append(out, m.byField[f])
		}
	}
	return out
}

// VisibleCount is configured minus hidden, recomputed on every call.
func (m *Manager) VisibleCount() int {
	return len(m.order) - len(m.hidden)
}

// SearchLabels returns the columns whose label contains the query,
// case-insensitively. This filters the management UI's list only; the
// grid's own rendered columns are unaffected.
func (m *Manager) SearchLabels(q string) []Column {
	if q == "" {
		return m.All()
	}
	fold := cases.Fold()
	needle := fold.String(q)
	var out []Column
	for _, f := range m.order {
		c := m.byField[f]
		if strings.Contains(fold.String(c.Label), needle) {
			out = append(out, c)
		}
	}
	return out
}
