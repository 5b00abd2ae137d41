package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consoleworks/gridcore/pkg/export"
)

const translationsGrid = `
id: translations
title: Translations
endpoint: /api/translations
searchable: [key, value]
columns:
  - field: key
    label: Key
    sortable: true
  - field: value
    label: Value
  - field: updated_at
    label: Updated
    sortable: true
    widget: datetime
bulk_actions:
  - id: publish
    endpoint: /api/translations/publish
    confirm: "Publish selected rows?"
export:
  policy: per-format
  formats: [csv, xlsx]
`

func writeGrid(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadGrid(t *testing.T) {
	path := writeGrid(t, t.TempDir(), "grid_translations.yaml", translationsGrid)

	g, err := LoadGrid(path)
	require.NoError(t, err)

	assert.Equal(t, "translations", g.ID)
	assert.Equal(t, "/api/translations", g.Endpoint)
	assert.Len(t, g.Columns, 3)
	assert.Equal(t, "datetime", g.Columns[2].Widget)
	assert.Equal(t, []string{"key", "value"}, g.Searchable)
	require.Len(t, g.BulkActions, 1)
	assert.Equal(t, "Publish selected rows?", g.BulkActions[0].Confirm)
	assert.Equal(t, export.PolicyPerFormat, g.Export.Policy)
}

func TestLoadGridDefaults(t *testing.T) {
	path := writeGrid(t, t.TempDir(), "grid_min.yaml", `
id: users
endpoint: /api/users
columns:
  - field: email
    label: Email
`)
	g, err := LoadGrid(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultIDField, g.IDField)
	assert.Equal(t, DefaultPerPage, g.PerPage)
	assert.Equal(t, DefaultDebounceMs, g.DebounceMs)
	assert.Equal(t, export.PolicySingle, g.Export.Policy)
	assert.Equal(t, "file", g.Export.Sink)
}

func TestLoadGridRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name, body, want string
	}{
		{"missing endpoint", "id: x\ncolumns: [{field: a, label: A}]", "invalid grid"},
		{"no columns", "id: x\nendpoint: /api/x", "invalid grid"},
		{"bad export policy", `
id: x
endpoint: /api/x
columns: [{field: a, label: A}]
export: {policy: sometimes}
`, "invalid grid"},
		{"unknown searchable", `
id: x
endpoint: /api/x
searchable: [ghost]
columns: [{field: a, label: A}]
`, "not a configured column"},
		{"duplicate bulk action", `
id: x
endpoint: /api/x
columns: [{field: a, label: A}]
bulk_actions:
  - {id: go, endpoint: /a}
  - {id: go, endpoint: /b}
`, "duplicate bulk action"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeGrid(t, dir, "grid_bad.yaml", tc.body)
			_, err := LoadGrid(path)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestLoadAllGrids(t *testing.T) {
	dir := t.TempDir()
	writeGrid(t, dir, "grid_translations.yaml", translationsGrid)
	writeGrid(t, dir, "grid_users.yaml", `
id: users
endpoint: /api/users
columns: [{field: email, label: Email}]
`)
	writeGrid(t, dir, "notes.yaml", "not a grid file, ignored")

	grids, err := LoadAllGrids(dir)
	require.NoError(t, err)
	assert.Len(t, grids, 2)
	assert.Contains(t, grids, "translations")
	assert.Contains(t, grids, "users")
}

func TestLoadAllGridsRejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	writeGrid(t, dir, "grid_a.yaml", "id: same\nendpoint: /a\ncolumns: [{field: a, label: A}]")
	writeGrid(t, dir, "grid_b.yaml", "id: same\nendpoint: /b\ncolumns: [{field: b, label: B}]")

	_, err := LoadAllGrids(dir)
	assert.ErrorContains(t, err, `duplicate grid id "same"`)
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("GRIDCORE_BASE_URL", "https://console.internal")
	t.Setenv("GRIDCORE_STORAGE", "SQLite")
	t.Setenv("GRIDCORE_RATE_LIMIT", "2.5")

	s := LoadSettings()
	assert.Equal(t, "https://console.internal", s.BaseURL)
	assert.Equal(t, "sqlite", s.Storage)
	assert.Equal(t, 2.5, s.RateLimit)
	assert.Equal(t, "INFO", s.LogLevel)
	assert.Equal(t, "localhost:6379", s.RedisAddr)
}
