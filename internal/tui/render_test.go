package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/efebarandurmaz/qre/internal/errs"
	"github.com/efebarandurmaz/qre/internal/estimator"
	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/model"
	"github.com/efebarandurmaz/qre/internal/program"
	"github.com/efebarandurmaz/qre/internal/report"
)

func majResult(t *testing.T) model.Result {
	t.Helper()
	q, s, err := estimator.ResolveHardware(nil, hardware.QubitSpec{Name: "qubit_maj_ns_e6"}, hardware.SchemeSpec{Name: "floquet_code"})
	if err != nil {
		t.Fatal(err)
	}
	r, err := estimator.Estimate(context.Background(),
		program.LogicalCounts{NumQubits: 10, TCount: 100, MeasurementCount: 50},
		q, s, model.DefaultConstraints(), estimator.DefaultErrorBudget)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	return r
}

func TestRenderResult(t *testing.T) {
	r := majResult(t)
	s := DefaultStyles()

	short, err := RenderResult(r, s, false)
	if err != nil {
		t.Fatalf("RenderResult: %v", err)
	}
	full, err := RenderResult(r, s, true)
	if err != nil {
		t.Fatalf("RenderResult(all): %v", err)
	}

	for _, want := range []string{"qubit_maj_ns_e6", r.PhysicalCountsFormatted.PhysicalQubits, r.PhysicalCountsFormatted.Runtime} {
		if !strings.Contains(short, want) {
			t.Errorf("expected %q in report:\n%s", want, short)
		}
	}

	sections, err := report.Resolve(r)
	if err != nil {
		t.Fatal(err)
	}
	for _, sec := range sections {
		if !strings.Contains(full, sec.Title) {
			t.Errorf("full report lacks section %q", sec.Title)
		}
		if !sec.AlwaysVisible && strings.Contains(short, sec.Title) {
			t.Errorf("short report shows hidden section %q", sec.Title)
		}
	}
	if len(full) <= len(short) {
		t.Error("expected the full report to be longer than the short one")
	}
}

func TestRenderFrontier(t *testing.T) {
	r := majResult(t)
	out := RenderFrontier([]model.Result{r, r}, DefaultStyles())

	if !strings.Contains(out, "Frontier (2 points)") {
		t.Errorf("missing title:\n%s", out)
	}
	if !strings.Contains(out, "Physical qubits") {
		t.Errorf("missing header:\n%s", out)
	}
	if got := strings.Count(out, r.PhysicalCountsFormatted.Runtime); got != 2 {
		t.Errorf("expected 2 rows with the runtime, found %d", got)
	}
}

func TestRenderOutcomes(t *testing.T) {
	r := majResult(t)
	outcomes := []estimator.Outcome{
		{Label: "maj", Results: []model.Result{r}},
		{Label: "broken", Error: errs.New(errs.KindInvalidBudget, errs.StageBudget, "budget %v out of range", 2)},
	}

	out := RenderOutcomes(outcomes, DefaultStyles())
	for _, want := range []string{"maj", "broken", "InvalidBudget", "budget 2 out of range", "1 succeeded", "1 failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
}

func TestRenderError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "estimation error",
			err:  errs.New(errs.KindNoFeasibleTFactory, errs.StageTFactory, "no factory"),
			want: []string{"Failed", "NoFeasibleTFactory", "no factory"},
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: []string{"Failed", "boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RenderError(tt.err, DefaultStyles())
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("expected %q in %q", w, out)
				}
			}
		})
	}
}

func TestShareColor(t *testing.T) {
	s := DefaultStyles()
	tests := []struct {
		share float64
		want  lipgloss.Color
	}{
		{0.1, DarkPalette.Good},
		{0.5, DarkPalette.Warn},
		{0.9, DarkPalette.Bad},
	}
	for _, tt := range tests {
		if got := s.ShareColor(tt.share).GetBackground(); got != tt.want {
			t.Errorf("ShareColor(%v) background = %v, want %v", tt.share, got, tt.want)
		}
	}
}

func TestRenderPresets(t *testing.T) {
	c := hardware.Default()
	out := RenderPresets(c.Qubits(), c.Schemes(), []string{"counts", "trace"}, DefaultStyles())
	for _, want := range []string{"qubit_gate_ns_e3", "qubit_maj_ns_e6", "surface_code", "floquet_code", "counts, trace"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in presets", want)
		}
	}
}
