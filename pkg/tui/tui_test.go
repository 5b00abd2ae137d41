package tui

import (
	"net/http"
	"net/http/httptest"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consoleworks/gridcore/pkg/columns"
	"github.com/consoleworks/gridcore/pkg/config"
	"github.com/consoleworks/gridcore/pkg/fetch"
	"github.com/consoleworks/gridcore/pkg/grid"
	"github.com/consoleworks/gridcore/pkg/state"
)

func testModel(t *testing.T) Model {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[],"total":0}`))
	}))
	t.Cleanup(srv.Close)

	client, err := fetch.NewClient(srv.URL)
	require.NoError(t, err)

	def := &config.Grid{
		ID:       "translations",
		Title:    "Translations",
		Endpoint: "/api/translations",
		IDField:  "id",
		PerPage:  10,
		Columns: []columns.Column{
			{Field: "key", Label: "Key", Sortable: true},
			{Field: "done", Label: "Done", Widget: "bool"},
		},
	}
	app := NewApp()
	ctrl, err := grid.New(grid.Options{Definition: def, Client: client, View: app})
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)

	return NewModel(ctrl, nil, nil)
}

func pageMsg() PageMsg {
	st := state.New(10)
	st.TotalRows = 2
	return PageMsg{
		Page: &fetch.Page{
			Rows: []fetch.Row{
				{"id": "r1", "key": "greeting", "done": true},
				{"id": "r2", "key": "farewell", "done": false},
			},
			Total: 2,
		},
		State: st,
	}
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestViewRendersRowsAndWidgets(t *testing.T) {
	m := update(testModel(t), pageMsg())

	out := m.View()
	assert.Contains(t, out, "Translations")
	assert.Contains(t, out, "greeting")
	assert.Contains(t, out, "farewell")
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "✗")
	assert.Contains(t, out, "2 rows")
}

func TestViewBeforeFirstPageShowsLoading(t *testing.T) {
	m := testModel(t)
	assert.Contains(t, m.View(), "loading")
}

func TestErrorStateReplacesRows(t *testing.T) {
	m := update(testModel(t), pageMsg())
	m = update(m, ErrorMsg{Message: "upstream down"})

	out := m.View()
	assert.Contains(t, out, "upstream down")
	assert.NotContains(t, out, "greeting")

	// A fresh page clears the error state.
	m = update(m, pageMsg())
	assert.Contains(t, m.View(), "greeting")
}

func TestCursorAndSelection(t *testing.T) {
	m := update(testModel(t), pageMsg())

	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(" ")})
	assert.True(t, m.ctrl.State().Selected("r1"))
	assert.Contains(t, m.View(), "[x]")

	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(" ")})
	assert.Equal(t, 2, m.ctrl.State().SelectionCount())

	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	assert.Zero(t, m.ctrl.State().SelectionCount())
}

func TestSortKeyCyclesColumnUnderCursor(t *testing.T) {
	m := update(testModel(t), pageMsg())

	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	dir, ok := m.ctrl.State().SortOf("key")
	require.True(t, ok)
	assert.Equal(t, state.Ascending, dir)
	assert.Contains(t, m.View(), "↑")
}

func TestSearchModeTogglesWithSlashAndEsc(t *testing.T) {
	m := update(testModel(t), pageMsg())

	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	assert.True(t, m.searching)

	m = update(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.searching)
}

func TestQuitKey(t *testing.T) {
	m := update(testModel(t), pageMsg())
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, "", next.(Model).View())
}
