package hardware

import (
	"fmt"
	"math"

	"github.com/efebarandurmaz/qre/internal/formula"
)

// DefaultMaxCodeDistance caps the code distance search when a scheme does not
// set its own limit.
const DefaultMaxCodeDistance = 50

// QecScheme is a quantum error correction code together with its error
// suppression model.
type QecScheme struct {
	Name                          string           `json:"name" yaml:"name"`
	InstructionSet                InstructionSet   `json:"instructionSet" yaml:"instructionSet"`
	ErrorCorrectionThreshold      float64          `json:"errorCorrectionThreshold" yaml:"errorCorrectionThreshold"`
	CrossingPrefactor             float64          `json:"crossingPrefactor" yaml:"crossingPrefactor"`
	LogicalCycleTime              *formula.Formula `json:"logicalCycleTime" yaml:"logicalCycleTime"`
	PhysicalQubitsPerLogicalQubit *formula.Formula `json:"physicalQubitsPerLogicalQubit" yaml:"physicalQubitsPerLogicalQubit"`
	MaxCodeDistance               int              `json:"maxCodeDistance" yaml:"maxCodeDistance"`
}

// LogicalErrorRate is crossingPrefactor * (p / threshold)^((d+1)/2).
func (s QecScheme) LogicalErrorRate(physicalErrorRate float64, distance int) float64 {
	return s.CrossingPrefactor * math.Pow(physicalErrorRate/s.ErrorCorrectionThreshold, float64(distance+1)/2)
}

// CycleTime evaluates the logical cycle time at distance d.
func (s QecScheme) CycleTime(q QubitParams, distance int) (Duration, error) {
	v, err := s.LogicalCycleTime.Eval(withDistance(q.Vars(), distance))
	if err != nil {
		return 0, fmt.Errorf("scheme %q: logical cycle time: %w", s.Name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("scheme %q: logical cycle time at distance %d is not positive", s.Name, distance)
	}
	return Duration(math.Ceil(v)), nil
}

// PhysicalQubits evaluates the physical qubits per logical qubit at distance d.
func (s QecScheme) PhysicalQubits(q QubitParams, distance int) (uint64, error) {
	v, err := s.PhysicalQubitsPerLogicalQubit.Eval(withDistance(q.Vars(), distance))
	if err != nil {
		return 0, fmt.Errorf("scheme %q: physical qubits per logical qubit: %w", s.Name, err)
	}
	if v < 1 {
		return 0, fmt.Errorf("scheme %q: physical qubits per logical qubit at distance %d is below 1", s.Name, distance)
	}
	return uint64(math.Ceil(v)), nil
}

// Validate checks the model parameters. It does not evaluate the formulas.
func (s QecScheme) Validate() error {
	if s.ErrorCorrectionThreshold <= 0 || s.ErrorCorrectionThreshold >= 1 || math.IsNaN(s.ErrorCorrectionThreshold) {
		return fmt.Errorf("scheme %q: errorCorrectionThreshold must be in (0, 1)", s.Name)
	}
	if s.CrossingPrefactor <= 0 || s.CrossingPrefactor >= 1 || math.IsNaN(s.CrossingPrefactor) {
		return fmt.Errorf("scheme %q: crossingPrefactor must be in (0, 1)", s.Name)
	}
	if s.LogicalCycleTime == nil || s.PhysicalQubitsPerLogicalQubit == nil {
		return fmt.Errorf("scheme %q: logicalCycleTime and physicalQubitsPerLogicalQubit are required", s.Name)
	}
	if s.MaxCodeDistance < 1 {
		return fmt.Errorf("scheme %q: maxCodeDistance must be at least 1", s.Name)
	}
	return nil
}

// SchemeSpec selects a scheme preset by name and optionally overrides fields.
type SchemeSpec struct {
	Name                          string   `json:"name,omitempty" yaml:"name,omitempty"`
	ErrorCorrectionThreshold      *float64 `json:"errorCorrectionThreshold,omitempty" yaml:"errorCorrectionThreshold,omitempty"`
	CrossingPrefactor             *float64 `json:"crossingPrefactor,omitempty" yaml:"crossingPrefactor,omitempty"`
	LogicalCycleTime              string   `json:"logicalCycleTime,omitempty" yaml:"logicalCycleTime,omitempty"`
	PhysicalQubitsPerLogicalQubit string   `json:"physicalQubitsPerLogicalQubit,omitempty" yaml:"physicalQubitsPerLogicalQubit,omitempty"`
	MaxCodeDistance               *int     `json:"maxCodeDistance,omitempty" yaml:"maxCodeDistance,omitempty"`
}

func (s SchemeSpec) apply(scheme QecScheme) (QecScheme, error) {
	setFloat(&scheme.ErrorCorrectionThreshold, s.ErrorCorrectionThreshold)
	setFloat(&scheme.CrossingPrefactor, s.CrossingPrefactor)
	if s.LogicalCycleTime != "" {
		f, err := formula.Compile(s.LogicalCycleTime)
		if err != nil {
			return scheme, fmt.Errorf("logicalCycleTime: %w", err)
		}
		scheme.LogicalCycleTime = f
	}
	if s.PhysicalQubitsPerLogicalQubit != "" {
		f, err := formula.Compile(s.PhysicalQubitsPerLogicalQubit)
		if err != nil {
			return scheme, fmt.Errorf("physicalQubitsPerLogicalQubit: %w", err)
		}
		scheme.PhysicalQubitsPerLogicalQubit = f
	}
	if s.MaxCodeDistance != nil {
		scheme.MaxCodeDistance = *s.MaxCodeDistance
	}
	return scheme, nil
}

func withDistance(vars formula.Vars, distance int) formula.Vars {
	vars[formula.CodeDistance] = float64(distance)
	return vars
}
