// Package tfactory designs magic state distillation factories that supply T
// states at a required error rate.
package tfactory

import (
	"fmt"
	"math"

	"github.com/efebarandurmaz/qre/internal/formula"
	"github.com/efebarandurmaz/qre/internal/hardware"
)

// Unit is a distillation protocol that can run on physical qubits, on
// logical qubits, or both.
type Unit struct {
	Name        string `json:"name"`
	NumInputTs  uint64 `json:"numInputTs"`
	NumOutputTs uint64 `json:"numOutputTs"`

	// PhysicalQubits is zero when the unit has no physical-level realization.
	PhysicalQubits   uint64           `json:"physicalQubits,omitempty"`
	PhysicalDuration *formula.Formula `json:"physicalDuration,omitempty"`

	// LogicalQubits is zero when the unit has no logical-level realization.
	LogicalQubits uint64 `json:"logicalQubits,omitempty"`
	LogicalCycles uint64 `json:"logicalCycles,omitempty"`

	FailureProbability *formula.Formula `json:"failureProbability"`
	OutputErrorRate    *formula.Formula `json:"outputErrorRate"`
}

func (u Unit) physical() bool { return u.PhysicalQubits > 0 && u.PhysicalDuration != nil }

func (u Unit) logical() bool { return u.LogicalQubits > 0 && u.LogicalCycles > 0 }

// Validate checks that the unit has at least one realization and consistent
// state counts.
func (u Unit) Validate() error {
	if u.Name == "" {
		return fmt.Errorf("distillation unit without a name")
	}
	if u.NumInputTs == 0 || u.NumOutputTs == 0 {
		return fmt.Errorf("unit %q: input and output counts must be positive", u.Name)
	}
	if !u.physical() && !u.logical() {
		return fmt.Errorf("unit %q: neither a physical nor a logical realization is defined", u.Name)
	}
	if u.FailureProbability == nil || u.OutputErrorRate == nil {
		return fmt.Errorf("unit %q: failure probability and output error rate are required", u.Name)
	}
	return nil
}

// evaluate computes the failure probability and output error rate of one unit
// given its input T-state error rate and the Clifford error rate of the
// qubits it runs on.
func (u Unit) evaluate(q hardware.QubitParams, inputErrorRate, cliffordErrorRate float64) (failure, output float64, err error) {
	vars := q.Vars()
	vars[formula.InputErrorRate] = inputErrorRate
	vars[formula.CliffordErrorRate] = cliffordErrorRate
	failure, err = u.FailureProbability.Eval(vars)
	if err != nil {
		return 0, 0, fmt.Errorf("unit %q: failure probability: %w", u.Name, err)
	}
	output, err = u.OutputErrorRate.Eval(vars)
	if err != nil {
		return 0, 0, fmt.Errorf("unit %q: output error rate: %w", u.Name, err)
	}
	return failure, output, nil
}

func (u Unit) physicalDuration(q hardware.QubitParams) (hardware.Duration, error) {
	v, err := u.PhysicalDuration.Eval(q.Vars())
	if err != nil {
		return 0, fmt.Errorf("unit %q: physical duration: %w", u.Name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("unit %q: physical duration is not positive", u.Name)
	}
	return hardware.Duration(math.Ceil(v)), nil
}

// DefaultUnits are the two 15-to-1 protocols: the Reed-Muller preparation
// variant and the space-efficient variant.
func DefaultUnits() []Unit {
	failure := formula.MustCompile("15 * inputErrorRate + 356 * cliffordErrorRate")
	output := formula.MustCompile("35 * inputErrorRate * inputErrorRate * inputErrorRate + 7.1 * cliffordErrorRate")
	return []Unit{
		{
			Name:               "15-to-1 RM prep",
			NumInputTs:         15,
			NumOutputTs:        1,
			PhysicalQubits:     31,
			PhysicalDuration:   formula.MustCompile("tGateTime + 4 * twoQubitGateTime + 2 * oneQubitMeasurementTime"),
			LogicalQubits:      31,
			LogicalCycles:      11,
			FailureProbability: failure,
			OutputErrorRate:    output,
		},
		{
			Name:               "15-to-1 space-efficient",
			NumInputTs:         15,
			NumOutputTs:        1,
			PhysicalQubits:     12,
			PhysicalDuration:   formula.MustCompile("tGateTime + 11 * twoQubitGateTime + 2 * oneQubitMeasurementTime"),
			LogicalQubits:      20,
			LogicalCycles:      13,
			FailureProbability: failure,
			OutputErrorRate:    output,
		},
	}
}
