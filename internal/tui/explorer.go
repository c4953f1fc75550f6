package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/efebarandurmaz/qre/internal/model"
)

// Pane is the explorer pane that receives navigation keys.
type Pane int

const (
	PaneList Pane = iota
	PaneReport
)

// ExplorerModel browses frontier points: the list on the left, the selected
// point's report on the right.
type ExplorerModel struct {
	results    []model.Result
	styles     *Styles
	cursor     int
	chosen     int
	viewport   viewport.Model
	activePane Pane
	showAll    bool
	width      int
	height     int
	quitting   bool
	help       help.Model
	keys       keyMap
}

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Tab    key.Binding
	All    key.Binding
	Choose key.Binding
	Quit   key.Binding
}

func (km keyMap) ShortHelp() []key.Binding {
	return []key.Binding{km.Up, km.Down, km.Tab, km.All, km.Choose, km.Quit}
}

func (km keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{km.Up, km.Down, km.Tab},
		{km.All, km.Choose, km.Quit},
	}
}

func newKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch pane"),
		),
		All: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "all sections"),
		),
		Choose: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "choose"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// NewExplorerModel creates an explorer over results, which are expected in
// frontier order.
func NewExplorerModel(results []model.Result) ExplorerModel {
	m := ExplorerModel{
		results:  results,
		styles:   DefaultStyles(),
		chosen:   -1,
		viewport: viewport.New(80, 20),
		width:    120,
		height:   30,
		help:     help.New(),
		keys:     newKeyMap(),
	}
	m.refresh()
	return m
}

// Chosen returns the index of the point picked with enter, or -1.
func (m ExplorerModel) Chosen() int {
	return m.chosen
}

func (m ExplorerModel) Init() tea.Cmd {
	return nil
}

func (m ExplorerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = max(msg.Width-m.listWidth()-6, 20)
		m.viewport.Height = max(msg.Height-6, 5)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Choose):
			if len(m.results) > 0 {
				m.chosen = m.cursor
			}
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Tab):
			if m.activePane == PaneList {
				m.activePane = PaneReport
			} else {
				m.activePane = PaneList
			}
			return m, nil

		case key.Matches(msg, m.keys.All):
			m.showAll = !m.showAll
			m.refresh()
			return m, nil
		}

		if m.activePane == PaneReport {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		switch {
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.results)-1 {
				m.cursor++
				m.refresh()
			}
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.refresh()
			}
		}
	}
	return m, nil
}

// refresh re-renders the selected point into the viewport.
func (m *ExplorerModel) refresh() {
	if len(m.results) == 0 {
		m.viewport.SetContent("")
		return
	}
	content, err := RenderResult(m.results[m.cursor], m.styles, m.showAll)
	if err != nil {
		content = RenderError(err, m.styles)
	}
	m.viewport.SetContent(content)
	m.viewport.GotoTop()
}

func (m ExplorerModel) View() string {
	if m.quitting {
		return ""
	}
	if len(m.results) == 0 {
		return m.styles.StatusFailed.Render("No frontier points")
	}

	title := m.styles.Title.Render(fmt.Sprintf("Frontier explorer  [%d/%d]", m.cursor+1, len(m.results)))
	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		m.pane(m.renderList(), m.activePane == PaneList),
		m.pane(m.viewport.View(), m.activePane == PaneReport))
	return lipgloss.JoinVertical(lipgloss.Left, title, panels, m.styles.Help.Render(m.help.View(m.keys)))
}

func (m ExplorerModel) pane(content string, active bool) string {
	if active {
		return m.styles.ActiveBorder.Render(content)
	}
	return m.styles.Section.Render(content)
}

func (m ExplorerModel) listWidth() int {
	w := 0
	for i := range m.results {
		w = max(w, lipgloss.Width(m.listRow(i)))
	}
	return w
}

func (m ExplorerModel) listRow(i int) string {
	f := m.results[i].PhysicalCountsFormatted
	return fmt.Sprintf("%2d  %s qubits  %s", i+1, f.PhysicalQubits, f.Runtime)
}

func (m ExplorerModel) renderList() string {
	rows := make([]string, len(m.results))
	width := m.listWidth()
	for i := range m.results {
		row := m.listRow(i)
		row += strings.Repeat(" ", width-lipgloss.Width(row))
		if i == m.cursor {
			rows[i] = m.styles.Selected.Render(row)
		} else {
			rows[i] = m.styles.Label.Render(row)
		}
	}
	return strings.Join(rows, "\n")
}

// RunExplorer opens the explorer full screen and returns the index of the
// chosen point, or -1 when the user quit without choosing.
func RunExplorer(results []model.Result) (int, error) {
	p := tea.NewProgram(NewExplorerModel(results), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return -1, fmt.Errorf("explorer: %w", err)
	}
	return final.(ExplorerModel).Chosen(), nil
}
