// Package tui is the terminal frontend of the grid engine, built on
// bubbletea. It implements the controller's view contract and drives
// the controller from key events.
//
// The controller renders from its own goroutines; renders enter the
// bubbletea event loop as messages via Program.Send, so model state is
// only ever touched on the loop.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/consoleworks/gridcore/pkg/columns"
	"github.com/consoleworks/gridcore/pkg/fetch"
	"github.com/consoleworks/gridcore/pkg/grid"
	"github.com/consoleworks/gridcore/pkg/render"
	"github.com/consoleworks/gridcore/pkg/state"
)

// PageMsg delivers a rendered listing page into the event loop. State
// is the snapshot the controller took for this render; the model keeps
// it and never touches the controller's live record.
type PageMsg struct {
	Page  *fetch.Page
	State *state.Grid
}

// ErrorMsg delivers a user-visible failure into the event loop.
type ErrorMsg struct {
	Message string
}

type bulkDoneMsg struct {
	succeeded, failed int
	err               error
}

type exportDoneMsg struct {
	location string
	err      error
}

// App adapts a bubbletea program to the controller's view contract.
// The zero value is unusable; build it with NewApp.
type App struct {
	program *tea.Program
}

// NewApp returns an app with no program attached yet. Renders before
// Run are dropped, which only affects fetches racing startup.
func NewApp() *App { return &App{} }

// Has implements grid.View. The terminal surface carries every role.
func (a *App) Has(grid.Role) bool { return true }

// RenderPage implements grid.View.
func (a *App) RenderPage(page *fetch.Page, st *state.Grid) {
	if a.program != nil {
		a.program.Send(PageMsg{Page: page, State: st})
	}
}

// RenderError implements grid.View.
func (a *App) RenderError(message string) {
	if a.program != nil {
		a.program.Send(ErrorMsg{Message: message})
	}
}

// Run builds the model, attaches the program, initializes the
// controller, and blocks until the user quits.
func (a *App) Run(ctx context.Context, ctrl *grid.Controller, cols *columns.Manager, reg *render.Registry) error {
	m := NewModel(ctrl, cols, reg)
	a.program = tea.NewProgram(m, tea.WithContext(ctx))

	ctrl.Init(ctx, "")
	defer ctrl.Close()

	_, err := a.program.Run()
	return err
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	cursorStyle   = lipgloss.NewStyle().Reverse(true)
	statusStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	sortMarker    = map[state.Direction]string{state.Ascending: " ↑", state.Descending: " ↓"}
)

// Model is the bubbletea model for one grid.
type Model struct {
	ctrl *grid.Controller
	cols *columns.Manager
	reg  *render.Registry

	search textinput.Model

	// st is the model's own state snapshot, replaced from PageMsg or
	// re-taken after a controller call on the event loop.
	st *state.Grid

	page    *fetch.Page
	errText string
	status  string

	rowCursor int
	colCursor int
	width     int

	searching bool
	quitting  bool
}

// NewModel builds the model. reg may be nil for plain-text cells.
func NewModel(ctrl *grid.Controller, cols *columns.Manager, reg *render.Registry) Model {
	if reg == nil {
		reg = render.NewRegistry()
	}
	search := textinput.New()
	search.Placeholder = "search"
	search.CharLimit = 120
	return Model{ctrl: ctrl, cols: cols, reg: reg, search: search, st: ctrl.State()}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case PageMsg:
		m.page = msg.Page
		if msg.State != nil {
			m.st = msg.State
		}
		m.errText = ""
		if m.rowCursor >= len(msg.Page.Rows) {
			m.rowCursor = 0
		}
		return m, nil

	case ErrorMsg:
		m.errText = msg.Message
		return m, nil

	case bulkDoneMsg:
		if msg.err != nil {
			m.status = "bulk action failed: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("bulk action done: %d ok, %d failed", msg.succeeded, msg.failed)
		}
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.status = "export failed: " + msg.err.Error()
		} else {
			m.status = "export stored at " + msg.location
		}
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.search.Blur()
		return m, nil
	case "enter":
		m.searching = false
		m.search.Blur()
		m.ctrl.SearchNow(m.search.Value())
		m.st = m.ctrl.State()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.ctrl.Search(m.search.Value())
	return m, cmd
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "/":
		m.searching = true
		m.search.Focus()
		return m, textinput.Blink

	case "j", "down":
		if m.page != nil && m.rowCursor < len(m.page.Rows)-1 {
			m.rowCursor++
		}
	case "k", "up":
		if m.rowCursor > 0 {
			m.rowCursor--
		}
	case "h", "left":
		if m.colCursor > 0 {
			m.colCursor--
		}
	case "l", "right":
		if m.colCursor < len(m.visibleColumns())-1 {
			m.colCursor++
		}

	case "s":
		if cols := m.visibleColumns(); m.colCursor < len(cols) {
			m.ctrl.Sort(cols[m.colCursor].Field)
		}
	case "t":
		if cols := m.visibleColumns(); m.colCursor < len(cols) {
			m.ctrl.ToggleColumn(context.Background(), cols[m.colCursor].Field)
			if m.colCursor > 0 {
				m.colCursor--
			}
		}

	case " ":
		if row, ok := m.cursorRow(); ok {
			m.ctrl.ToggleRow(row.ID(m.ctrl.Definition().IDField))
		}
	case "a":
		m.ctrl.SelectAllVisible()
	case "c":
		m.ctrl.ClearSelection()

	case "n":
		m.ctrl.NextPage()
	case "p":
		m.ctrl.PrevPage()
	case "+":
		m.ctrl.SetPerPage(m.st.PerPage + 10)
	case "-":
		m.ctrl.SetPerPage(m.st.PerPage - 10)

	case "e":
		return m, m.export("csv")

	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		idx := int(msg.String()[0] - '1')
		actions := m.ctrl.Definition().BulkActions
		if idx < len(actions) {
			return m, m.runBulk(actions[idx].ID)
		}
	}
	// Controller calls above may have transitioned state; pick up a
	// fresh snapshot so the next View reflects it.
	m.st = m.ctrl.State()
	return m, nil
}

func (m Model) export(format string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		location, err := ctrl.Export(context.Background(), format)
		return exportDoneMsg{location: location, err: err}
	}
}

func (m Model) runBulk(actionID string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		res, err := ctrl.RunBulk(context.Background(), actionID, nil)
		return bulkDoneMsg{succeeded: res.Succeeded, failed: res.Failed, err: err}
	}
}

func (m Model) visibleColumns() []columns.Column {
	if m.cols != nil {
		return m.cols.Visible()
	}
	return m.ctrl.Definition().Columns
}

func (m Model) cursorRow() (fetch.Row, bool) {
	if m.page == nil || m.rowCursor >= len(m.page.Rows) {
		return nil, false
	}
	return m.page.Rows[m.rowCursor], true
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	def := m.ctrl.Definition()
	title := def.Title
	if title == "" {
		title = def.ID
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	if m.searching || m.search.Value() != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}

	if m.errText != "" {
		b.WriteString(errorStyle.Render("error: " + m.errText))
		b.WriteString("\n")
		b.WriteString(m.footer())
		return b.String()
	}

	b.WriteString(m.table())
	b.WriteString(m.footer())
	return b.String()
}

func (m Model) table() string {
	cols := m.visibleColumns()
	st := m.st

	var b strings.Builder
	cells := make([]string, 0, len(cols)+1)
	cells = append(cells, "  ")
	for i, c := range cols {
		label := c.Label
		if dir, ok := st.SortOf(c.Field); ok {
			label += sortMarker[dir]
		}
		if i == m.colCursor {
			label = cursorStyle.Render(label)
		}
		cells = append(cells, headerStyle.Render(label))
	}
	b.WriteString(strings.Join(cells, "  "))
	b.WriteString("\n")

	if m.page == nil {
		b.WriteString(statusStyle.Render("loading..."))
		b.WriteString("\n")
		return b.String()
	}

	idField := m.ctrl.Definition().IDField
	for i, row := range m.page.Rows {
		id := row.ID(idField)
		marker := "[ ]"
		if st.Selected(id) {
			marker = selectedStyle.Render("[x]")
		}
		cells = cells[:0]
		cells = append(cells, marker)
		for _, c := range cols {
			cells = append(cells, m.reg.Render(c.Widget, row[c.Field], row))
		}
		line := strings.Join(cells, "  ")
		if i == m.rowCursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) footer() string {
	st := m.st
	parts := []string{
		fmt.Sprintf("page %d", st.Page),
		fmt.Sprintf("%d/page", st.PerPage),
		fmt.Sprintf("%d rows", st.TotalRows),
	}
	if n := st.SelectionCount(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d selected", n))
	}
	if len(st.Filters) > 0 {
		parts = append(parts, fmt.Sprintf("%d filters", len(st.Filters)))
	}
	line := statusStyle.Render(strings.Join(parts, " · "))
	if m.status != "" {
		line += "\n" + statusStyle.Render(m.status)
	}
	return line + "\n" + statusStyle.Render("/: search  s: sort  t: hide col  space: select  n/p: page  e: export  q: quit") + "\n"
}
