package jobs

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/efebarandurmaz/qre/internal/budget"
	"github.com/efebarandurmaz/qre/internal/errs"
	"github.com/efebarandurmaz/qre/internal/estimator"
	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/model"
	"github.com/efebarandurmaz/qre/internal/program"
)

const sampleJobs = `
- label: Gate-based ns, 10^-3
  detail: default surface code
  params:
    qubitParams:
      name: qubit_gate_ns_e3
- label: Majorana ns, 10^-6
  params:
    qubitParams:
      name: qubit_maj_ns_e6
    qecScheme:
      name: floquet_code
    errorBudget: 0.01
    constraints:
      maxTFactories: 4
      maxDuration: 2 ms
- params:
    qubitParams:
      name: qubit_gate_us_e4
      tGateErrorRate: 1.0e-5
    errorBudget:
      logical: 0.0005
      tstates: 0.0004
      rotations: 0.0001
    estimateType: frontier
`

var counts = program.LogicalCounts{NumQubits: 8, TCount: 40, RotationCount: 10, RotationDepth: 4, MeasurementCount: 8}

func TestParse(t *testing.T) {
	jobs, err := Parse([]byte(sampleJobs))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("got %d jobs, want 3", len(jobs))
	}
	if jobs[0].Label != "Gate-based ns, 10^-3" || jobs[0].Detail != "default surface code" {
		t.Errorf("job 0 = %+v", jobs[0])
	}
	if jobs[2].Label != "job-3" {
		t.Errorf("unlabeled job got label %q", jobs[2].Label)
	}
	if b := jobs[1].Params.ErrorBudget; b == nil || b.Total != 0.01 || b.Parts != nil {
		t.Errorf("job 1 budget = %+v", b)
	}
	if d := jobs[1].Params.Constraints.MaxDuration; d == nil || *d != 2_000_000 {
		t.Errorf("job 1 maxDuration = %v", d)
	}
	if b := jobs[2].Params.ErrorBudget; b == nil || b.Parts == nil || b.Parts.Logical != 5e-4 {
		t.Errorf("job 2 budget = %+v", b)
	}
}

func TestParse_SingleMappingAndJSON(t *testing.T) {
	jobs, err := Parse([]byte(`{"label": "one", "params": {"errorBudget": 0.002}}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].Label != "one" || jobs[0].Params.ErrorBudget.Value() != 0.002 {
		t.Errorf("jobs = %+v", jobs)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"empty":         "",
		"empty list":    "[]",
		"scalar":        "42",
		"unknown field": "- label: x\n  params:\n    qubit: foo\n",
		"bad budget":    "- params:\n    errorBudget: [1, 2]\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(input)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestResolve(t *testing.T) {
	jobs, err := Parse([]byte(sampleJobs))
	if err != nil {
		t.Fatal(err)
	}
	resolved, err := Resolve(hardware.Default(), jobs, counts)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resolved) != 3 {
		t.Fatalf("got %d jobs", len(resolved))
	}

	first := resolved[0].Input
	if first.ErrorBudget != estimator.DefaultErrorBudget || first.Constraints.MaxDistillationRounds != 3 {
		t.Errorf("job 0 defaults not applied: %+v", first)
	}
	if first.Scheme.Name != "surface_code" || first.Qubit.InstructionSet != hardware.GateBased {
		t.Errorf("job 0 hardware = %s/%s", first.Qubit.Name, first.Scheme.Name)
	}

	second := resolved[1].Input
	if second.Scheme.Name != "floquet_code" || second.ErrorBudget != 0.01 {
		t.Errorf("job 1 = %s, %g", second.Scheme.Name, second.ErrorBudget)
	}
	if second.Constraints.MaxTFactories == nil || *second.Constraints.MaxTFactories != 4 {
		t.Errorf("job 1 maxTFactories = %v", second.Constraints.MaxTFactories)
	}

	third := resolved[2].Input
	if _, ok := third.Policy.(budget.Explicit); !ok {
		t.Errorf("job 2 policy = %T, want budget.Explicit", third.Policy)
	}
	if third.Qubit.TGateErrorRate != 1e-5 || third.EstimateType != model.Frontier {
		t.Errorf("job 2 = %+v", third)
	}
	if third.Counts != counts {
		t.Error("counts were not carried through")
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		kind errs.Kind
	}{
		{"unknown qubit", Params{QubitParams: hardware.QubitSpec{Name: "qubit_nope"}}, errs.KindConfiguration},
		{"unknown policy", Params{BudgetPolicy: "greedy"}, errs.KindConfiguration},
		{"unknown estimate type", Params{EstimateType: "sweep"}, errs.KindConfiguration},
		{"policy conflict", Params{
			BudgetPolicy: "adaptive",
			ErrorBudget:  &ErrorBudget{Parts: &budget.Explicit{Logical: 1e-3}},
		}, errs.KindInvalidBudget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(hardware.Default(), []Job{{Label: "x", Params: tt.p}}, counts)
			var e *errs.Error
			if !errors.As(err, &e) || e.Kind != tt.kind {
				t.Errorf("error = %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestErrorBudgetJSON(t *testing.T) {
	var p Params
	if err := json.Unmarshal([]byte(`{"errorBudget": {"logical": 0.001, "tstates": 0.002}}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.ErrorBudget.Parts == nil || p.ErrorBudget.Value() != 0.003 {
		t.Errorf("budget = %+v", p.ErrorBudget)
	}
	out, err := json.Marshal(ErrorBudget{Total: 0.01})
	if err != nil || string(out) != "0.01" {
		t.Errorf("marshal = %s, %v", out, err)
	}
	if err := json.Unmarshal([]byte(`{"errorBudget": {"logic": 1}}`), &p); err == nil {
		t.Error("expected unknown budget field to fail")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	if err := os.WriteFile(path, []byte(sampleJobs), 0o644); err != nil {
		t.Fatal(err)
	}
	jobs, err := Load(path)
	if err != nil || len(jobs) != 3 {
		t.Fatalf("Load = %d jobs, %v", len(jobs), err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected missing file error")
	}
}
