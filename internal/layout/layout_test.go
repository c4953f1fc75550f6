package layout

import (
	"testing"

	"github.com/efebarandurmaz/qre/internal/errs"
	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/program"
)

func planner(t *testing.T, qubit, scheme string) *Planner {
	t.Helper()
	c := hardware.Default()
	q, err := c.Qubit(qubit)
	if err != nil {
		t.Fatal(err)
	}
	s, err := c.Scheme(scheme, q.InstructionSet)
	if err != nil {
		t.Fatal(err)
	}
	return NewPlanner(q, s)
}

func TestComputePreLayout(t *testing.T) {
	tests := []struct {
		name       string
		counts     program.LogicalCounts
		budget     float64
		wantQubits uint64
		wantDepth  uint64
		wantT      uint64
		wantPerRot uint64
	}{
		{
			name:       "t and measurements",
			counts:     program.LogicalCounts{NumQubits: 10, TCount: 100, MeasurementCount: 50},
			wantQubits: 30,
			wantDepth:  150,
			wantT:      100,
		},
		{
			name:       "toffolis",
			counts:     program.LogicalCounts{NumQubits: 2, CCZCount: 3, CCIXCount: 1},
			wantQubits: 9,
			wantDepth:  12,
			wantT:      16,
		},
		{
			// ceil(0.53*log2(8/0.001)+5.3) = ceil(12.17) = 13
			name:       "rotations",
			counts:     program.LogicalCounts{NumQubits: 1, RotationCount: 8, RotationDepth: 2},
			budget:     0.001,
			wantQubits: 6,
			wantDepth:  8 + 13*2,
			wantT:      13 * 8,
			wantPerRot: 13,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pre, err := ComputePreLayout(tt.counts, tt.budget)
			if err != nil {
				t.Fatal(err)
			}
			if pre.AlgorithmicLogicalQubits != tt.wantQubits {
				t.Errorf("qubits = %d, want %d", pre.AlgorithmicLogicalQubits, tt.wantQubits)
			}
			if pre.AlgorithmicLogicalDepth != tt.wantDepth {
				t.Errorf("depth = %d, want %d", pre.AlgorithmicLogicalDepth, tt.wantDepth)
			}
			if pre.NumTStates != tt.wantT {
				t.Errorf("T states = %d, want %d", pre.NumTStates, tt.wantT)
			}
			if tt.wantPerRot == 0 {
				if pre.NumTsPerRotation != nil {
					t.Errorf("NumTsPerRotation = %d, want absent", *pre.NumTsPerRotation)
				}
			} else if pre.NumTsPerRotation == nil || *pre.NumTsPerRotation != tt.wantPerRot {
				t.Errorf("NumTsPerRotation = %v, want %d", pre.NumTsPerRotation, tt.wantPerRot)
			}
		})
	}
}

func TestComputePreLayoutZeroRotationBudget(t *testing.T) {
	_, err := ComputePreLayout(program.LogicalCounts{NumQubits: 1, RotationCount: 1, RotationDepth: 1}, 0)
	if !errs.Is(err, errs.KindInvalidBudget) {
		t.Errorf("error = %v, want InvalidBudget", err)
	}
}

func TestPlanPicksSmallestDistance(t *testing.T) {
	p := planner(t, "qubit_maj_ns_e6", "surface_code")
	lq, err := p.Plan(1e-3/3, 30, 150)
	if err != nil {
		t.Fatal(err)
	}
	if lq.CodeDistance != 3 {
		t.Errorf("CodeDistance = %d, want 3", lq.CodeDistance)
	}
	if lq.PhysicalQubits != 18 {
		t.Errorf("PhysicalQubits = %d, want 18", lq.PhysicalQubits)
	}
	if lq.LogicalCycleTime != 6000 {
		t.Errorf("LogicalCycleTime = %d, want 6000", lq.LogicalCycleTime)
	}
	if lq.LogicalErrorRate > RequiredErrorRate(1e-3/3, 30, 150) {
		t.Errorf("LogicalErrorRate %g exceeds requirement", lq.LogicalErrorRate)
	}
}

func TestPlanMonotoneInRequirement(t *testing.T) {
	p := planner(t, "qubit_gate_ns_e3", "surface_code")
	prev := 0
	for _, budget := range []float64{1e-1, 1e-2, 1e-3, 1e-4, 1e-6, 1e-8, 1e-10} {
		lq, err := p.Plan(budget, 100, 1_000_000)
		if err != nil {
			t.Fatalf("Plan(budget=%g): %v", budget, err)
		}
		if lq.CodeDistance < prev {
			t.Errorf("budget %g gave distance %d, below %d for a looser budget", budget, lq.CodeDistance, prev)
		}
		if lq.CodeDistance > 3 {
			below := p.Scheme.LogicalErrorRate(p.Qubit.CliffordErrorRate(), lq.CodeDistance-2)
			if below <= RequiredErrorRate(budget, 100, 1_000_000) {
				t.Errorf("budget %g: distance %d would have sufficed", budget, lq.CodeDistance-2)
			}
		}
		prev = lq.CodeDistance
	}
}

func TestPlanCapped(t *testing.T) {
	p := planner(t, "qubit_gate_ns_e3", "surface_code")
	p.Scheme.MaxCodeDistance = 5
	_, err := p.Plan(1e-12, 100, 1_000_000)
	if !errs.Is(err, errs.KindNoFeasibleCodeDistance) {
		t.Errorf("error = %v, want NoFeasibleCodeDistance", err)
	}
}

func TestPlanAboveThreshold(t *testing.T) {
	p := planner(t, "qubit_gate_ns_e3", "surface_code")
	p.Qubit.TwoQubitGateErrorRate = 0.02
	_, err := p.Plan(1e-3, 10, 10)
	if !errs.Is(err, errs.KindNoFeasibleCodeDistance) {
		t.Errorf("error = %v, want NoFeasibleCodeDistance", err)
	}
}
