// Package layout maps algorithmic logical counts onto error-corrected logical
// qubits and picks the smallest sufficient code distance.
package layout

import (
	"encoding/json"
	"math"

	"github.com/efebarandurmaz/qre/internal/errs"
	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/program"
)

// Rotation synthesis cost model: T states per rotation is
// ceil(rotationSynthesisSlope * log2(rotations / budget) + rotationSynthesisOffset).
const (
	rotationSynthesisSlope  = 0.53
	rotationSynthesisOffset = 5.3
)

// PreLayout are the logical resources of the algorithm before physical layout.
type PreLayout struct {
	AlgorithmicLogicalQubits uint64  `json:"algorithmicLogicalQubits"`
	AlgorithmicLogicalDepth  uint64  `json:"algorithmicLogicalDepth"`
	NumTStates               uint64  `json:"numTstates"`
	NumTsPerRotation         *uint64 `json:"numTsPerRotation,omitempty"`
}

// ComputePreLayout derives logical qubits, depth and T-state demand from the
// counts. rotationBudget is only consulted when the program has rotations.
func ComputePreLayout(c program.LogicalCounts, rotationBudget float64) (PreLayout, error) {
	q := uint64(c.NumQubits)
	pre := PreLayout{
		AlgorithmicLogicalQubits: 2*q + uint64(math.Ceil(math.Sqrt(8*float64(q)))) + 1,
	}

	var tsPerRotation uint64
	if c.RotationCount > 0 {
		if rotationBudget <= 0 {
			return PreLayout{}, errs.New(errs.KindInvalidBudget, errs.StageLayout,
				"program has %d rotations but the rotation error budget is zero", c.RotationCount)
		}
		v := math.Ceil(rotationSynthesisSlope*math.Log2(float64(c.RotationCount)/rotationBudget) + rotationSynthesisOffset)
		tsPerRotation = uint64(math.Max(v, 1))
		pre.NumTsPerRotation = &tsPerRotation
	}

	multiQubit := uint64(c.CCZCount + c.CCIXCount)
	pre.AlgorithmicLogicalDepth = uint64(c.MeasurementCount) + uint64(c.RotationCount) + uint64(c.TCount) +
		3*multiQubit + tsPerRotation*uint64(c.RotationDepth)
	pre.NumTStates = uint64(c.TCount) + 4*multiQubit + tsPerRotation*uint64(c.RotationCount)
	return pre, nil
}

// LogicalQubit is an error-corrected qubit at a fixed code distance.
type LogicalQubit struct {
	CodeDistance     int               `json:"codeDistance"`
	PhysicalQubits   uint64            `json:"physicalQubits"`
	LogicalCycleTime hardware.Duration `json:"logicalCycleTime"`
	LogicalErrorRate float64           `json:"logicalErrorRate"`
}

// MarshalJSON writes the cycle time as a number of nanoseconds.
func (lq LogicalQubit) MarshalJSON() ([]byte, error) {
	type fields LogicalQubit
	return json.Marshal(struct {
		fields
		LogicalCycleTime uint64 `json:"logicalCycleTime"`
	}{fields(lq), uint64(lq.LogicalCycleTime)})
}

// Planner chooses the code distance for the algorithm's logical qubits.
type Planner struct {
	Qubit  hardware.QubitParams
	Scheme hardware.QecScheme
}

// NewPlanner binds a planner to a qubit technology and QEC scheme.
func NewPlanner(q hardware.QubitParams, s hardware.QecScheme) *Planner {
	return &Planner{Qubit: q, Scheme: s}
}

// QubitAt builds the logical qubit at distance d.
func (p *Planner) QubitAt(d int) (LogicalQubit, error) {
	cycle, err := p.Scheme.CycleTime(p.Qubit, d)
	if err != nil {
		return LogicalQubit{}, errs.Wrap(errs.KindConfiguration, errs.StageLayout, err)
	}
	n, err := p.Scheme.PhysicalQubits(p.Qubit, d)
	if err != nil {
		return LogicalQubit{}, errs.Wrap(errs.KindConfiguration, errs.StageLayout, err)
	}
	return LogicalQubit{
		CodeDistance:     d,
		PhysicalQubits:   n,
		LogicalCycleTime: cycle,
		LogicalErrorRate: p.Scheme.LogicalErrorRate(p.Qubit.CliffordErrorRate(), d),
	}, nil
}

// RequiredErrorRate is the per-qubit, per-cycle logical error rate that
// keeps qubits*depth logical operations within budget.
func RequiredErrorRate(logicalBudget float64, qubits, depth uint64) float64 {
	return logicalBudget / (float64(qubits) * float64(depth))
}

// Plan returns the logical qubit with the smallest odd code distance whose
// error rate meets the requirement.
func (p *Planner) Plan(logicalBudget float64, qubits, depth uint64) (LogicalQubit, error) {
	if qubits == 0 || depth == 0 {
		return LogicalQubit{}, errs.New(errs.KindInvalidLogicalCounts, errs.StageLayout,
			"cannot lay out %d logical qubits over depth %d", qubits, depth)
	}
	required := RequiredErrorRate(logicalBudget, qubits, depth)
	d, err := p.MinimumDistance(required)
	if err != nil {
		return LogicalQubit{}, err
	}
	return p.QubitAt(d)
}

// MinimumDistance finds the smallest odd distance meeting required.
func (p *Planner) MinimumDistance(required float64) (int, error) {
	clifford := p.Qubit.CliffordErrorRate()
	if clifford >= p.Scheme.ErrorCorrectionThreshold {
		return 0, errs.New(errs.KindNoFeasibleCodeDistance, errs.StageLayout,
			"physical error rate %g is not below the %s threshold %g", clifford, p.Scheme.Name, p.Scheme.ErrorCorrectionThreshold)
	}
	for d := 3; d <= p.Scheme.MaxCodeDistance; d += 2 {
		if p.Scheme.LogicalErrorRate(clifford, d) <= required {
			return d, nil
		}
	}
	return 0, errs.New(errs.KindNoFeasibleCodeDistance, errs.StageLayout,
		"no code distance up to %d reaches logical error rate %.3e", p.Scheme.MaxCodeDistance, required)
}
