// Package tui renders estimates for the terminal and hosts the interactive
// frontier explorer.
package tui

import "github.com/charmbracelet/lipgloss"

// Palette is the set of colors the styles are built from.
type Palette struct {
	Background lipgloss.Color
	Border     lipgloss.Color
	Accent     lipgloss.Color
	Good       lipgloss.Color
	Warn       lipgloss.Color
	Bad        lipgloss.Color
	Dim        lipgloss.Color
	Text       lipgloss.Color
	Strong     lipgloss.Color
}

// DarkPalette suits dark terminals.
var DarkPalette = Palette{
	Background: "#0d1117",
	Border:     "#30363d",
	Accent:     "#58a6ff",
	Good:       "#3fb950",
	Warn:       "#d29922",
	Bad:        "#f85149",
	Dim:        "#8b949e",
	Text:       "#c9d1d9",
	Strong:     "#f0f6fc",
}

type Styles struct {
	Palette Palette

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Help     lipgloss.Style

	StatusSuccess lipgloss.Style
	StatusPartial lipgloss.Style
	StatusFailed  lipgloss.Style

	Label lipgloss.Style
	Value lipgloss.Style
	Muted lipgloss.Style

	// Section frames a report group or an inactive explorer pane.
	Section      lipgloss.Style
	ActiveBorder lipgloss.Style

	Header   lipgloss.Style
	Selected lipgloss.Style
}

// NewStyles builds the style set from p.
func NewStyles(p Palette) *Styles {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	frame := func(c lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(c).Padding(0, 1)
	}
	return &Styles{
		Palette:       p,
		Title:         fg(p.Strong).Bold(true),
		Subtitle:      fg(p.Accent).Bold(true),
		Help:          fg(p.Dim).Italic(true),
		StatusSuccess: p.badge(p.Good),
		StatusPartial: p.badge(p.Warn),
		StatusFailed:  p.badge(p.Bad),
		Label:         fg(p.Text),
		Value:         fg(p.Strong).Bold(true),
		Muted:         fg(p.Dim),
		Section:       frame(p.Border),
		ActiveBorder:  frame(p.Accent),
		Header:        fg(p.Accent).Bold(true).Padding(0, 1),
		Selected:      fg(p.Background).Background(p.Accent).Bold(true),
	}
}

func DefaultStyles() *Styles {
	return NewStyles(DarkPalette)
}

func (p Palette) badge(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Background(c).Foreground(p.Background).Bold(true).Padding(0, 1)
}

// ShareColor returns a badge for the share of physical qubits spent on T
// factories: green below a third, yellow below two thirds, red above.
func (s *Styles) ShareColor(fraction float64) lipgloss.Style {
	switch {
	case fraction < 1.0/3:
		return s.StatusSuccess
	case fraction < 2.0/3:
		return s.StatusPartial
	default:
		return s.StatusFailed
	}
}
