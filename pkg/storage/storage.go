// Package storage persists per-user console preferences: the hidden
// column set and column order per grid identity, named saved filters,
// and small boolean flags such as the debug toolbar's expanded state.
//
// Preferences are convenience state. Every read tolerates missing or
// corrupt values by returning defaults, and callers are expected to
// treat write failures as a downgrade to session-only behavior, never
// as a blocking error.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gowebpki/jcs"

	"github.com/consoleworks/gridcore/pkg/state"
)

// KV is the minimal durable key-value contract the preference layer
// builds on. ok=false means the key is absent, which is not an error.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Key layout. One key per grid identity for column preferences, one
// global key for saved filters, one key per boolean flag.
const (
	savedFiltersKey = "saved_filters"
	flagKeyPrefix   = "flag:"
)

// FlagDebugToolbar is the flag key for the debug toolbar's expanded
// state.
const FlagDebugToolbar = "debug_toolbar"

func columnsKey(gridID string) string {
	return "grid:" + gridID + ":columns"
}

// ColumnPrefs is the persisted per-grid column customization.
type ColumnPrefs struct {
	Hidden []string `json:"hidden,omitempty"`
	Order  []string `json:"order,omitempty"`
}

// SavedFilter is one named filter set.
type SavedFilter struct {
	Name    string          `json:"name"`
	Search  string          `json:"search,omitempty"`
	Filters []state.Filter  `json:"filters,omitempty"`
	Sort    []state.SortKey `json:"sort,omitempty"`
}

// Prefs exposes typed preference accessors over a KV backend.
type Prefs struct {
	kv     KV
	logger *slog.Logger
}

// NewPrefs wraps a KV backend.
func NewPrefs(kv KV) *Prefs {
	return &Prefs{
		kv:     kv,
		logger: slog.Default().With("component", "storage"),
	}
}

// ColumnPrefs loads the column preferences for a grid. Missing or
// corrupt values yield empty preferences and no error.
func (p *Prefs) ColumnPrefs(ctx context.Context, gridID string) (ColumnPrefs, error) {
	var prefs ColumnPrefs
	raw, ok, err := p.kv.Get(ctx, columnsKey(gridID))
	if err != nil {
		return prefs, fmt.Errorf("load column prefs for %q: %w", gridID, err)
	}
	if !ok {
		return prefs, nil
	}
	if err := json.Unmarshal(raw, &prefs); err != nil {
		p.logger.WarnContext(ctx, "corrupt column prefs, using defaults", "grid", gridID, "error", err)
		return ColumnPrefs{}, nil
	}
	return prefs, nil
}

// SaveColumnPrefs stores the column preferences for a grid. Writing a
// value canonically equal to the stored one is skipped, so re-applying
// an unchanged order never touches storage.
func (p *Prefs) SaveColumnPrefs(ctx context.Context, gridID string, prefs ColumnPrefs) error {
	key := columnsKey(gridID)
	value, err := canonicalJSON(prefs)
	if err != nil {
		return fmt.Errorf("encode column prefs for %q: %w", gridID, err)
	}
	if existing, ok, err := p.kv.Get(ctx, key); err == nil && ok {
		if current, cerr := jcs.Transform(existing); cerr == nil && bytes.Equal(current, value) {
			return nil
		}
	}
	if err := p.kv.Set(ctx, key, value); err != nil {
		return fmt.Errorf("save column prefs for %q: %w", gridID, err)
	}
	return nil
}

// DeleteColumnPrefs removes the persisted customization for a grid,
// restoring its configured defaults on next load.
func (p *Prefs) DeleteColumnPrefs(ctx context.Context, gridID string) error {
	if err := p.kv.Delete(ctx, columnsKey(gridID)); err != nil {
		return fmt.Errorf("delete column prefs for %q: %w", gridID, err)
	}
	return nil
}

// SavedFilters returns all named filter sets. Missing or corrupt data
// yields an empty list.
func (p *Prefs) SavedFilters(ctx context.Context) ([]SavedFilter, error) {
	raw, ok, err := p.kv.Get(ctx, savedFiltersKey)
	if err != nil {
		return nil, fmt.Errorf("load saved filters: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var filters []SavedFilter
	if err := json.Unmarshal(raw, &filters); err != nil {
		p.logger.WarnContext(ctx, "corrupt saved filters, using defaults", "error", err)
		return nil, nil
	}
	return filters, nil
}

// SaveFilter adds or replaces one named filter set. Saving a set that
// leaves the stored list canonically unchanged is a no-op.
func (p *Prefs) SaveFilter(ctx context.Context, f SavedFilter) error {
	if f.Name == "" {
		return fmt.Errorf("saved filter needs a name")
	}
	filters, err := p.SavedFilters(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range filters {
		if filters[i].Name == f.Name {
			filters[i] = f
			replaced = true
			break
		}
	}
	if !replaced {
		filters = append(filters, f)
	}
	return p.writeFilters(ctx, filters)
}

// DeleteFilter removes one named filter set; deleting an unknown name
// is a no-op.
func (p *Prefs) DeleteFilter(ctx context.Context, name string) error {
	filters, err := p.SavedFilters(ctx)
	if err != nil {
		return err
	}
	out := filters[:0]
	for _, f := range filters {
		if f.Name != name {
			out = append(out, f)
		}
	}
	if len(out) == len(filters) {
		return nil
	}
	return p.writeFilters(ctx, out)
}

func (p *Prefs) writeFilters(ctx context.Context, filters []SavedFilter) error {
	value, err := canonicalJSON(filters)
	if err != nil {
		return fmt.Errorf("encode saved filters: %w", err)
	}
	if existing, ok, gerr := p.kv.Get(ctx, savedFiltersKey); gerr == nil && ok {
		if current, cerr := jcs.Transform(existing); cerr == nil && bytes.Equal(current, value) {
			return nil
		}
	}
	if err := p.kv.Set(ctx, savedFiltersKey, value); err != nil {
		return fmt.Errorf("save filters: %w", err)
	}
	return nil
}

// Flag reads a boolean preference; absent or corrupt values are false.
func (p *Prefs) Flag(ctx context.Context, key string) (bool, error) {
	raw, ok, err := p.kv.Get(ctx, flagKeyPrefix+key)
	if err != nil {
		return false, fmt.Errorf("load flag %q: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		p.logger.WarnContext(ctx, "corrupt flag, using default", "flag", key, "error", err)
		return false, nil
	}
	return v, nil
}

// SetFlag stores a boolean preference.
func (p *Prefs) SetFlag(ctx context.Context, key string, value bool) error {
	raw, _ := json.Marshal(value)
	if err := p.kv.Set(ctx, flagKeyPrefix+key, raw); err != nil {
		return fmt.Errorf("save flag %q: %w", key, err)
	}
	return nil
}

// canonicalJSON marshals v and applies JCS so equal values always
// serialize to identical bytes.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}
