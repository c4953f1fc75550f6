package estimator

import (
	"context"
	"testing"

	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/model"
	"github.com/efebarandurmaz/qre/internal/program"
)

func TestFrontierLimits(t *testing.T) {
	tests := []struct {
		f0        uint64
		wantLen   int
		wantFirst uint64
	}{
		{2, 1, 1},
		{5, 4, 4},
		{64, 63, 63},
		{1000, 63, 984},
	}
	for _, tt := range tests {
		got := frontierLimits(tt.f0)
		if len(got) != tt.wantLen {
			t.Errorf("frontierLimits(%d) has %d entries, want %d", tt.f0, len(got), tt.wantLen)
			continue
		}
		if got[0] != tt.wantFirst || got[len(got)-1] != 1 {
			t.Errorf("frontierLimits(%d) = %v", tt.f0, got)
		}
		for i := 1; i < len(got); i++ {
			if got[i] >= got[i-1] {
				t.Errorf("frontierLimits(%d) not strictly descending at %d", tt.f0, i)
			}
		}
	}
}

func TestFrontier_ParetoOrder(t *testing.T) {
	in := majInput(t)
	in.Counts.TCount = 2000
	points, err := New(Options{}).Frontier(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) == 0 {
		t.Fatal("empty frontier")
	}
	for i, p := range points {
		if p.JobParams.EstimateType != model.Frontier {
			t.Errorf("point %d has estimate type %q", i, p.JobParams.EstimateType)
		}
		if i == 0 {
			continue
		}
		prev := points[i-1].PhysicalCounts
		if p.PhysicalCounts.PhysicalQubits <= prev.PhysicalQubits {
			t.Errorf("point %d qubits %d not above %d", i, p.PhysicalCounts.PhysicalQubits, prev.PhysicalQubits)
		}
		if p.PhysicalCounts.Runtime >= prev.Runtime {
			t.Errorf("point %d runtime %d not below %d", i, p.PhysicalCounts.Runtime, prev.Runtime)
		}
	}
}

func TestFrontier_NoTStates(t *testing.T) {
	in := majInput(t)
	in.Counts = program.LogicalCounts{NumQubits: 3, MeasurementCount: 10}
	in.EstimateType = model.Frontier
	points, err := New(Options{}).Run(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 1 {
		t.Errorf("expected a single point, got %d", len(points))
	}
}

func TestParetoFront(t *testing.T) {
	mk := func(q uint64, rt uint64) model.Result {
		var r model.Result
		r.PhysicalCounts.PhysicalQubits = q
		r.PhysicalCounts.Runtime = hardware.Duration(rt)
		return r
	}
	front := paretoFront([]model.Result{mk(100, 10), mk(50, 20), mk(60, 20), mk(50, 25), mk(200, 5), mk(150, 5)})
	want := [][2]uint64{{50, 20}, {100, 10}, {150, 5}}
	if len(front) != len(want) {
		t.Fatalf("front has %d points, want %d", len(front), len(want))
	}
	for i, w := range want {
		if front[i].PhysicalCounts.PhysicalQubits != w[0] || uint64(front[i].PhysicalCounts.Runtime) != w[1] {
			t.Errorf("point %d = (%d, %d), want %v", i,
				front[i].PhysicalCounts.PhysicalQubits, front[i].PhysicalCounts.Runtime, w)
		}
	}
}
