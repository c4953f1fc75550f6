// Package program turns quantum program descriptions into logical resource
// counts.
package program

import (
	"fmt"

	"github.com/efebarandurmaz/qre/internal/errs"
)

// LogicalCounts summarizes a quantum program in terms of logical operations.
type LogicalCounts struct {
	NumQubits        int64 `json:"numQubits" yaml:"numQubits"`
	TCount           int64 `json:"tCount" yaml:"tCount"`
	RotationCount    int64 `json:"rotationCount" yaml:"rotationCount"`
	RotationDepth    int64 `json:"rotationDepth" yaml:"rotationDepth"`
	CCZCount         int64 `json:"cczCount" yaml:"cczCount"`
	CCIXCount        int64 `json:"ccixCount" yaml:"ccixCount"`
	MeasurementCount int64 `json:"measurementCount" yaml:"measurementCount"`
}

// Validate rejects negative, empty and internally inconsistent counts.
func (c LogicalCounts) Validate() error {
	fields := []struct {
		name string
		v    int64
	}{
		{"numQubits", c.NumQubits},
		{"tCount", c.TCount},
		{"rotationCount", c.RotationCount},
		{"rotationDepth", c.RotationDepth},
		{"cczCount", c.CCZCount},
		{"ccixCount", c.CCIXCount},
		{"measurementCount", c.MeasurementCount},
	}
	for _, f := range fields {
		if f.v < 0 {
			return invalid("%s must not be negative, got %d", f.name, f.v)
		}
	}
	if c.NumQubits == 0 {
		return invalid("numQubits must be positive")
	}
	if c.RotationDepth > c.RotationCount {
		return invalid("rotationDepth %d exceeds rotationCount %d", c.RotationDepth, c.RotationCount)
	}
	if c.RotationCount > 0 && c.RotationDepth == 0 {
		return invalid("rotationDepth must be positive when rotationCount is %d", c.RotationCount)
	}
	return nil
}

func (c LogicalCounts) String() string {
	return fmt.Sprintf("qubits=%d t=%d rot=%d rotDepth=%d ccz=%d ccix=%d meas=%d",
		c.NumQubits, c.TCount, c.RotationCount, c.RotationDepth, c.CCZCount, c.CCIXCount, c.MeasurementCount)
}

func invalid(format string, args ...any) error {
	return errs.New(errs.KindInvalidLogicalCounts, errs.StageValidation, format, args...)
}
