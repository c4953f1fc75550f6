// Package budget splits a total error budget across the three error sources
// of a fault-tolerant computation.
package budget

import (
	"fmt"
	"math"
	"strings"

	"github.com/efebarandurmaz/qre/internal/errs"
)

// Tolerance is the largest accepted gap between an explicit split and the total.
const Tolerance = 1e-12

// ErrorBudget is the allocation of the total failure probability.
type ErrorBudget struct {
	Logical   float64 `json:"logical" yaml:"logical"`
	TStates   float64 `json:"tstates" yaml:"tstates"`
	Rotations float64 `json:"rotations" yaml:"rotations"`
}

// Total is the sum of the three parts.
func (b ErrorBudget) Total() float64 {
	return b.Logical + b.TStates + b.Rotations
}

// Usage says which error sources the program actually has.
type Usage struct {
	TStates   bool
	Rotations bool
}

// Policy decides how a total budget is shared.
type Policy interface {
	Name() string
	split(total float64, u Usage) (ErrorBudget, error)
}

// Uniform gives each part a third of the total.
type Uniform struct{}

func (Uniform) Name() string { return "uniform" }

func (Uniform) split(total float64, _ Usage) (ErrorBudget, error) {
	third := total / 3
	return exact(total, third, third), nil
}

// Adaptive shares the total only among the error sources the program uses.
type Adaptive struct{}

func (Adaptive) Name() string { return "adaptive" }

func (Adaptive) split(total float64, u Usage) (ErrorBudget, error) {
	switch {
	case u.Rotations:
		third := total / 3
		return exact(total, third, third), nil
	case u.TStates:
		return ErrorBudget{Logical: total / 2, TStates: total - total/2}, nil
	default:
		return ErrorBudget{Logical: total}, nil
	}
}

// Explicit uses caller-provided parts, which must sum to the total.
type Explicit struct {
	Logical   float64 `json:"logical" yaml:"logical"`
	TStates   float64 `json:"tstates" yaml:"tstates"`
	Rotations float64 `json:"rotations" yaml:"rotations"`
}

func (Explicit) Name() string { return "explicit" }

func (e Explicit) split(total float64, _ Usage) (ErrorBudget, error) {
	for _, v := range []float64{e.Logical, e.TStates, e.Rotations} {
		if math.IsNaN(v) || v < 0 {
			return ErrorBudget{}, invalidBudget("explicit budget parts must be non-negative, got %+v", e)
		}
	}
	b := ErrorBudget(e)
	if math.Abs(b.Total()-total) > Tolerance {
		return ErrorBudget{}, invalidBudget("explicit budget parts sum to %g, want %g", b.Total(), total)
	}
	return b, nil
}

// ParsePolicy maps a policy name to a Policy. Explicit splits are built
// directly as Explicit values.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "uniform":
		return Uniform{}, nil
	case "adaptive":
		return Adaptive{}, nil
	default:
		return nil, fmt.Errorf("unknown budget policy %q", name)
	}
}

// Allocate splits total by policy. The parts sum to total within Tolerance.
func Allocate(total float64, p Policy, u Usage) (ErrorBudget, error) {
	if math.IsNaN(total) || total <= 0 || total > 1 {
		return ErrorBudget{}, invalidBudget("total error budget must be in (0, 1], got %g", total)
	}
	if p == nil {
		p = Uniform{}
	}
	b, err := p.split(total, u)
	if err != nil {
		return ErrorBudget{}, err
	}
	if b.Logical <= 0 {
		return ErrorBudget{}, invalidBudget("logical error budget must be positive")
	}
	if math.Abs(b.Total()-total) > Tolerance {
		return ErrorBudget{}, invalidBudget("budget parts sum to %g, want %g", b.Total(), total)
	}
	return b, nil
}

// exact builds a budget whose rotation part is the remainder of total.
func exact(total, logical, tstates float64) ErrorBudget {
	return ErrorBudget{Logical: logical, TStates: tstates, Rotations: total - logical - tstates}
}

func invalidBudget(format string, args ...any) error {
	return errs.New(errs.KindInvalidBudget, errs.StageBudget, format, args...)
}
