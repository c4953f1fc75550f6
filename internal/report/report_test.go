package report

import (
	"reflect"
	"strings"
	"testing"

	"github.com/efebarandurmaz/qre/internal/budget"
	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/layout"
	"github.com/efebarandurmaz/qre/internal/model"
	"github.com/efebarandurmaz/qre/internal/program"
)

func TestDuration(t *testing.T) {
	tests := []struct {
		ns   uint64
		want string
	}{
		{0, "0 ns"},
		{999, "999 ns"},
		{1500, "1.50 µs"},
		{2_500_000, "2.50 ms"},
		{3_000_000_000, "3.00 secs"},
		{90_000_000_000, "1.50 mins"},
		{7_200_000_000_000, "2.00 hours"},
		{172_800_000_000_000, "2 days"},
	}
	for _, tt := range tests {
		if got := Duration(tt.ns); got != tt.want {
			t.Errorf("Duration(%d) = %q, want %q", tt.ns, got, tt.want)
		}
	}
}

func TestNumberFormats(t *testing.T) {
	if got := Count(1234567); got != "1,234,567" {
		t.Errorf("Count = %q", got)
	}
	if got := OptionalCount(nil); got != NotApplicable {
		t.Errorf("OptionalCount(nil) = %q", got)
	}
	if got := Rate(3.556e-8); got != "3.56e-08" {
		t.Errorf("Rate = %q", got)
	}
	if got := OptionalRate(nil); got != NotApplicable {
		t.Errorf("OptionalRate(nil) = %q", got)
	}
	if got := Percent(0.25); got != "25.00 %" {
		t.Errorf("Percent = %q", got)
	}
	if got := Frequency(5000); got != "5 kHz" {
		t.Errorf("Frequency = %q", got)
	}
	if got := SI(5000); got != "5 k" {
		t.Errorf("SI = %q", got)
	}
}

func sampleResult(withFactory bool) model.Result {
	q, _ := hardware.Default().Qubit("qubit_maj_ns_e6")
	s, _ := hardware.Default().Scheme("surface_code", hardware.Majorana)
	r := model.Result{
		Status: model.StatusSuccess,
		JobParams: model.JobParams{
			QecScheme:    s,
			ErrorBudget:  1e-3,
			BudgetPolicy: "uniform",
			QubitParams:  q,
			Constraints:  model.DefaultConstraints(),
			EstimateType: model.SinglePoint,
		},
		PhysicalCounts: model.PhysicalCounts{
			PhysicalQubits: 540,
			Runtime:        900_000,
			RQOPS:          5_000_000,
			Breakdown: model.Breakdown{
				AlgorithmicLogicalQubits:      30,
				AlgorithmicLogicalDepth:       150,
				LogicalDepth:                  150,
				ClockFrequency:                166666.67,
				PhysicalQubitsForAlgorithm:    540,
				RequiredLogicalQubitErrorRate: 7.4e-8,
				CliffordErrorRate:             1e-6,
			},
		},
		LogicalQubit:  layout.LogicalQubit{CodeDistance: 3, PhysicalQubits: 18, LogicalCycleTime: 6000, LogicalErrorRate: 3.56e-8},
		ErrorBudget:   budget.ErrorBudget{Logical: 1e-3},
		LogicalCounts: program.LogicalCounts{NumQubits: 10, MeasurementCount: 150},
	}
	if withFactory {
		nf, runs := uint64(8), uint64(13)
		tRate := 3.3e-6
		r.LogicalCounts.TCount = 100
		r.PhysicalCounts.Breakdown.NumTStates = 100
		r.PhysicalCounts.Breakdown.NumTFactories = &nf
		r.PhysicalCounts.Breakdown.NumTFactoryRuns = &runs
		r.PhysicalCounts.Breakdown.RequiredLogicalTStateErrorRate = &tRate
		r.PhysicalCounts.Breakdown.PhysicalQubitsForTFactories = 2880
		r.PhysicalCounts.PhysicalQubits = 3420
		r.TFactory = &model.TFactory{
			PhysicalQubits:         360,
			Runtime:                79_400,
			NumTStates:             1,
			NumInputTStates:        270,
			NumRounds:              2,
			NumUnitsPerRound:       []uint64{18, 1},
			UnitNamePerRound:       []string{"15-to-1 space-efficient", "15-to-1 space-efficient"},
			CodeDistancePerRound:   []int{0, 3},
			PhysicalQubitsPerRound: []uint64{216, 360},
			RuntimePerRound:        []hardware.Duration{1400, 78000},
			LogicalErrorRate:       2.5e-7,
			SuccessProbability:     0.9999,
		}
	}
	return r
}

func TestBuildKeepsNumbers(t *testing.T) {
	for _, withFactory := range []bool{false, true} {
		in := sampleResult(withFactory)
		out := Build(in)
		if !reflect.DeepEqual(in.PhysicalCounts, out.PhysicalCounts) ||
			!reflect.DeepEqual(in.TFactory, out.TFactory) ||
			in.LogicalQubit != out.LogicalQubit ||
			in.ErrorBudget != out.ErrorBudget {
			t.Errorf("Build changed numeric fields (factory=%v)", withFactory)
		}
		if !reflect.DeepEqual(Build(in), out) {
			t.Errorf("Build is not deterministic (factory=%v)", withFactory)
		}
	}
}

func TestGroupsOrderAndVisibility(t *testing.T) {
	without := Groups(sampleResult(false))
	with := Groups(sampleResult(true))

	if len(with) != len(without)+1 {
		t.Fatalf("groups with factory = %d, without = %d", len(with), len(without))
	}
	wantTitles := []string{
		"Physical resource estimates",
		"Resource estimates breakdown",
		"Logical qubit parameters",
		"T factory parameters",
		"Pre-layout logical resources",
		"Assumed error budget",
		"Physical qubit parameters",
		"Constraints",
	}
	for i, g := range with {
		if g.Title != wantTitles[i] {
			t.Errorf("group %d = %q, want %q", i, g.Title, wantTitles[i])
		}
		if g.AlwaysVisible != (i == 0) {
			t.Errorf("group %q AlwaysVisible = %v", g.Title, g.AlwaysVisible)
		}
	}
	for _, g := range without {
		if g.Title == "T factory parameters" {
			t.Error("T factory group present without a factory")
		}
	}
}

func TestFormatAbsentValues(t *testing.T) {
	f := Format(sampleResult(false))
	for name, v := range map[string]string{
		"NumTFactories":                  f.NumTFactories,
		"NumTFactoryRuns":                f.NumTFactoryRuns,
		"NumTsPerRotation":               f.NumTsPerRotation,
		"RequiredLogicalTStateErrorRate": f.RequiredLogicalTStateErrorRate,
		"TFactoryRuntime":                f.TFactoryRuntime,
	} {
		if v != NotApplicable {
			t.Errorf("%s = %q, want N/A", name, v)
		}
	}
	if f.Runtime != "900.00 µs" {
		t.Errorf("Runtime = %q", f.Runtime)
	}
	if f.PhysicalQubits != "540" {
		t.Errorf("PhysicalQubits = %q", f.PhysicalQubits)
	}
}

func TestResolvePaths(t *testing.T) {
	r := Build(sampleResult(true))
	sections, err := Resolve(r)
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]string{}
	for _, s := range sections {
		for _, e := range s.Entries {
			got[e.Path] = e.Value
		}
	}
	checks := map[string]string{
		"physicalCountsFormatted.physicalQubits":  "3,420",
		"logicalQubit.codeDistance":               "3",
		"tfactory.numUnitsPerRound":               "18, 1",
		"jobParams.qubitParams.name":              "qubit_maj_ns_e6",
		"jobParams.qubitParams.tGateTime":         "100 ns",
		"jobParams.constraints.maxPhysicalQubits": NotApplicable,
	}
	for path, want := range checks {
		if got[path] != want {
			t.Errorf("%s = %q, want %q", path, got[path], want)
		}
	}
	for path, v := range got {
		if strings.TrimSpace(v) == "" {
			t.Errorf("%s rendered empty", path)
		}
	}
}

func TestAssumptionsAreCopies(t *testing.T) {
	a := Assumptions()
	a[0] = "changed"
	if Assumptions()[0] == "changed" {
		t.Error("Assumptions shares its backing array")
	}
}
