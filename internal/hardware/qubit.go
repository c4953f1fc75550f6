// Package hardware describes physical qubits and quantum error correction
// schemes, and holds the catalog of built-in presets.
package hardware

import (
	"fmt"
	"math"

	"github.com/efebarandurmaz/qre/internal/formula"
)

// InstructionSet is the native operation model of a qubit technology.
type InstructionSet string

const (
	GateBased InstructionSet = "GateBased"
	Majorana  InstructionSet = "Majorana"
)

// ParseInstructionSet accepts the canonical names case-insensitively.
func ParseInstructionSet(s string) (InstructionSet, error) {
	switch normalizeName(s) {
	case "gatebased", "gate_based":
		return GateBased, nil
	case "majorana":
		return Majorana, nil
	default:
		return "", fmt.Errorf("unknown instruction set %q", s)
	}
}

// QubitParams are the physical characteristics of a qubit technology. For
// Majorana qubits the two-qubit fields hold the joint-measurement time and
// error rate.
type QubitParams struct {
	Name                         string         `json:"name" yaml:"name"`
	InstructionSet               InstructionSet `json:"instructionSet" yaml:"instructionSet"`
	OneQubitMeasurementTime      Duration       `json:"oneQubitMeasurementTime" yaml:"oneQubitMeasurementTime"`
	OneQubitGateTime             Duration       `json:"oneQubitGateTime" yaml:"oneQubitGateTime"`
	TwoQubitGateTime             Duration       `json:"twoQubitGateTime" yaml:"twoQubitGateTime"`
	TGateTime                    Duration       `json:"tGateTime" yaml:"tGateTime"`
	OneQubitMeasurementErrorRate float64        `json:"oneQubitMeasurementErrorRate" yaml:"oneQubitMeasurementErrorRate"`
	OneQubitGateErrorRate        float64        `json:"oneQubitGateErrorRate" yaml:"oneQubitGateErrorRate"`
	TwoQubitGateErrorRate        float64        `json:"twoQubitGateErrorRate" yaml:"twoQubitGateErrorRate"`
	TGateErrorRate               float64        `json:"tGateErrorRate" yaml:"tGateErrorRate"`
	IdleErrorRate                float64        `json:"idleErrorRate" yaml:"idleErrorRate"`
}

// CliffordErrorRate is the worst error rate among the Clifford operations.
func (q QubitParams) CliffordErrorRate() float64 {
	rate := math.Max(q.OneQubitMeasurementErrorRate, q.TwoQubitGateErrorRate)
	rate = math.Max(rate, q.IdleErrorRate)
	if q.InstructionSet == GateBased {
		rate = math.Max(rate, q.OneQubitGateErrorRate)
	}
	return rate
}

// Vars binds the qubit's times and error rates for formula evaluation.
func (q QubitParams) Vars() formula.Vars {
	return formula.Vars{
		formula.OneQubitMeasurementTime:      q.OneQubitMeasurementTime.Nanoseconds(),
		formula.OneQubitGateTime:             q.OneQubitGateTime.Nanoseconds(),
		formula.TwoQubitGateTime:             q.TwoQubitGateTime.Nanoseconds(),
		formula.TGateTime:                    q.TGateTime.Nanoseconds(),
		formula.OneQubitMeasurementErrorRate: q.OneQubitMeasurementErrorRate,
		formula.OneQubitGateErrorRate:        q.OneQubitGateErrorRate,
		formula.TwoQubitGateErrorRate:        q.TwoQubitGateErrorRate,
		formula.TGateErrorRate:               q.TGateErrorRate,
		formula.IdleErrorRate:                q.IdleErrorRate,
		formula.CliffordErrorRate:            q.CliffordErrorRate(),
	}
}

// Validate checks that times are positive and error rates are probabilities.
func (q QubitParams) Validate() error {
	switch q.InstructionSet {
	case GateBased, Majorana:
	default:
		return fmt.Errorf("qubit %q: unknown instruction set %q", q.Name, q.InstructionSet)
	}
	times := []struct {
		field string
		v     Duration
	}{
		{"oneQubitMeasurementTime", q.OneQubitMeasurementTime},
		{"oneQubitGateTime", q.OneQubitGateTime},
		{"twoQubitGateTime", q.TwoQubitGateTime},
		{"tGateTime", q.TGateTime},
	}
	for _, tm := range times {
		if tm.v == 0 {
			return fmt.Errorf("qubit %q: %s must be positive", q.Name, tm.field)
		}
	}
	rates := []struct {
		field string
		v     float64
	}{
		{"oneQubitMeasurementErrorRate", q.OneQubitMeasurementErrorRate},
		{"oneQubitGateErrorRate", q.OneQubitGateErrorRate},
		{"twoQubitGateErrorRate", q.TwoQubitGateErrorRate},
		{"tGateErrorRate", q.TGateErrorRate},
		{"idleErrorRate", q.IdleErrorRate},
	}
	for _, r := range rates {
		if math.IsNaN(r.v) || r.v < 0 || r.v > 1 {
			return fmt.Errorf("qubit %q: %s must be in [0, 1], got %g", q.Name, r.field, r.v)
		}
	}
	return nil
}

// QubitSpec selects a qubit preset by name and optionally overrides fields.
// A spec that names no known preset must set every field.
type QubitSpec struct {
	Name                         string    `json:"name,omitempty" yaml:"name,omitempty"`
	InstructionSet               string    `json:"instructionSet,omitempty" yaml:"instructionSet,omitempty"`
	OneQubitMeasurementTime      *Duration `json:"oneQubitMeasurementTime,omitempty" yaml:"oneQubitMeasurementTime,omitempty"`
	OneQubitGateTime             *Duration `json:"oneQubitGateTime,omitempty" yaml:"oneQubitGateTime,omitempty"`
	TwoQubitGateTime             *Duration `json:"twoQubitGateTime,omitempty" yaml:"twoQubitGateTime,omitempty"`
	TGateTime                    *Duration `json:"tGateTime,omitempty" yaml:"tGateTime,omitempty"`
	OneQubitMeasurementErrorRate *float64  `json:"oneQubitMeasurementErrorRate,omitempty" yaml:"oneQubitMeasurementErrorRate,omitempty"`
	OneQubitGateErrorRate        *float64  `json:"oneQubitGateErrorRate,omitempty" yaml:"oneQubitGateErrorRate,omitempty"`
	TwoQubitGateErrorRate        *float64  `json:"twoQubitGateErrorRate,omitempty" yaml:"twoQubitGateErrorRate,omitempty"`
	TGateErrorRate               *float64  `json:"tGateErrorRate,omitempty" yaml:"tGateErrorRate,omitempty"`
	IdleErrorRate                *float64  `json:"idleErrorRate,omitempty" yaml:"idleErrorRate,omitempty"`
}

func (s QubitSpec) apply(q QubitParams) (QubitParams, error) {
	if s.InstructionSet != "" {
		set, err := ParseInstructionSet(s.InstructionSet)
		if err != nil {
			return q, err
		}
		q.InstructionSet = set
	}
	setDuration(&q.OneQubitMeasurementTime, s.OneQubitMeasurementTime)
	setDuration(&q.OneQubitGateTime, s.OneQubitGateTime)
	setDuration(&q.TwoQubitGateTime, s.TwoQubitGateTime)
	setDuration(&q.TGateTime, s.TGateTime)
	setFloat(&q.OneQubitMeasurementErrorRate, s.OneQubitMeasurementErrorRate)
	setFloat(&q.OneQubitGateErrorRate, s.OneQubitGateErrorRate)
	setFloat(&q.TwoQubitGateErrorRate, s.TwoQubitGateErrorRate)
	setFloat(&q.TGateErrorRate, s.TGateErrorRate)
	setFloat(&q.IdleErrorRate, s.IdleErrorRate)
	return q, nil
}

// missing lists the fields a custom qubit left unset.
func (s QubitSpec) missing() []string {
	fields := []struct {
		name string
		set  bool
	}{
		{"oneQubitMeasurementTime", s.OneQubitMeasurementTime != nil},
		{"oneQubitGateTime", s.OneQubitGateTime != nil},
		{"twoQubitGateTime", s.TwoQubitGateTime != nil},
		{"tGateTime", s.TGateTime != nil},
		{"oneQubitMeasurementErrorRate", s.OneQubitMeasurementErrorRate != nil},
		{"oneQubitGateErrorRate", s.OneQubitGateErrorRate != nil},
		{"twoQubitGateErrorRate", s.TwoQubitGateErrorRate != nil},
		{"tGateErrorRate", s.TGateErrorRate != nil},
		{"idleErrorRate", s.IdleErrorRate != nil},
	}
	var out []string
	for _, f := range fields {
		if !f.set {
			out = append(out, f.name)
		}
	}
	return out
}

func setDuration(dst *Duration, v *Duration) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
