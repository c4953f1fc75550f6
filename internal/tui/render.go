package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/efebarandurmaz/qre/internal/estimator"
	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/model"
	"github.com/efebarandurmaz/qre/internal/report"
)

// RenderResult renders a result's report. Only always-visible sections are
// shown unless all is set.
func RenderResult(r model.Result, s *Styles, all bool) (string, error) {
	sections, err := report.Resolve(r)
	if err != nil {
		return "", err
	}

	blocks := []string{renderHeadline(r, s)}
	for _, sec := range sections {
		if !all && !sec.AlwaysVisible {
			continue
		}
		blocks = append(blocks, renderSection(sec, s))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...), nil
}

func renderHeadline(r model.Result, s *Styles) string {
	pc := r.PhysicalCounts
	title := fmt.Sprintf("%s · %s", r.JobParams.QubitParams.Name, r.JobParams.QecScheme.Name)
	line := lipgloss.JoinHorizontal(lipgloss.Top,
		s.Title.Render(title), "  ", s.StatusSuccess.Render(r.Status))

	facts := []string{
		s.Label.Render("qubits ") + s.Value.Render(r.PhysicalCountsFormatted.PhysicalQubits),
		s.Label.Render("runtime ") + s.Value.Render(r.PhysicalCountsFormatted.Runtime),
		s.Label.Render("distance ") + s.Value.Render(fmt.Sprint(r.LogicalQubit.CodeDistance)),
	}
	if pc.PhysicalQubits > 0 && r.TFactory != nil {
		share := float64(pc.Breakdown.PhysicalQubitsForTFactories) / float64(pc.PhysicalQubits)
		facts = append(facts, s.ShareColor(share).Render("factories "+report.Percent(share)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, line, strings.Join(facts, "   "))
}

func renderSection(sec report.Section, s *Styles) string {
	width := 0
	for _, e := range sec.Entries {
		width = max(width, lipgloss.Width(e.Label))
	}
	label := s.Label.Width(width + 2)

	rows := make([]string, 0, len(sec.Entries)+1)
	rows = append(rows, s.Subtitle.Render(sec.Title))
	for _, e := range sec.Entries {
		rows = append(rows, label.Render(e.Label)+s.Value.Render(e.Value))
	}
	return s.Section.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// RenderFrontier renders frontier points as a table, fewest qubits first.
func RenderFrontier(results []model.Result, s *Styles) string {
	t := newTable(s, "#", "Physical qubits", "Runtime", "Distance", "T factories", "rQOPS")

	for i, r := range results {
		f := r.PhysicalCountsFormatted
		t.Row(fmt.Sprint(i+1), f.PhysicalQubits, f.Runtime,
			fmt.Sprint(r.LogicalQubit.CodeDistance), f.NumTFactories, f.RQOPS)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render(fmt.Sprintf("Frontier (%d points)", len(results))), t.String())
}

func newTable(s *Styles, headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(s.Palette.Border)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.Header
			}
			return s.Label.Padding(0, 1)
		}).
		Headers(headers...)
}

// RenderPresets lists the qubit and QEC scheme presets and the compilers.
func RenderPresets(qubits []hardware.QubitParams, schemes []hardware.QecScheme, compilers []string, s *Styles) string {
	qt := newTable(s, "Qubit", "Instruction set", "Gate time", "Measurement time", "Clifford error", "T error")
	for _, q := range qubits {
		qt.Row(q.Name, string(q.InstructionSet), q.OneQubitGateTime.String(),
			q.OneQubitMeasurementTime.String(), fmt.Sprintf("%g", q.CliffordErrorRate()), fmt.Sprintf("%g", q.TGateErrorRate))
	}

	st := newTable(s, "QEC scheme", "Instruction set", "Threshold", "Cycle time", "Qubits per logical qubit")
	for _, sc := range schemes {
		st.Row(sc.Name, string(sc.InstructionSet), fmt.Sprintf("%g", sc.ErrorCorrectionThreshold),
			sc.LogicalCycleTime.String(), sc.PhysicalQubitsPerLogicalQubit.String())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("Qubits"), qt.String(),
		s.Title.Render("QEC schemes"), st.String(),
		s.Label.Render("Compilers: ")+s.Value.Render(strings.Join(compilers, ", ")))
}

// RenderOutcomes renders batch outcomes in job order.
func RenderOutcomes(outcomes []estimator.Outcome, s *Styles) string {
	t := newTable(s, "Job", "Status", "Physical qubits", "Runtime", "Detail")

	failed := 0
	for _, o := range outcomes {
		if o.Failed() {
			failed++
			t.Row(o.Label, string(o.Error.Kind), "", "", o.Error.Message)
			continue
		}
		head := o.Results[0].PhysicalCountsFormatted
		detail := o.Detail
		if len(o.Results) > 1 {
			detail = strings.TrimSpace(fmt.Sprintf("%s (%d frontier points)", detail, len(o.Results)))
		}
		t.Row(o.Label, model.StatusSuccess, head.PhysicalQubits, head.Runtime, detail)
	}

	ok := s.StatusSuccess
	switch {
	case failed == len(outcomes) && failed > 0:
		ok = s.StatusFailed
	case failed > 0:
		ok = s.StatusPartial
	}
	status := ok.Render(fmt.Sprintf("%d succeeded", len(outcomes)-failed))
	if failed > 0 {
		status += " " + s.StatusFailed.Render(fmt.Sprintf("%d failed", failed))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, s.Title.Render("Batch"), "  ", status), t.String())
}

// RenderError renders a failed estimate.
func RenderError(err error, s *Styles) string {
	e := estimator.AsError(err)
	head := s.StatusFailed.Render("Failed") + " " + s.Value.Render(string(e.Kind))
	if e.Stage != "" {
		head += s.Muted.Render(" in " + string(e.Stage))
	}
	return lipgloss.JoinVertical(lipgloss.Left, head, s.Label.Render(e.Message))
}
