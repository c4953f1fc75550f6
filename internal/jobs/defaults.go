package jobs

import (
	"context"

	"github.com/efebarandurmaz/qre/internal/errs"
	"github.com/efebarandurmaz/qre/internal/observability"
	"github.com/efebarandurmaz/qre/internal/program"
)

// Defaults fill parameters a job or request leaves unset.
type Defaults struct {
	Qubit        string
	QecScheme    string
	ErrorBudget  float64
	BudgetPolicy string
	MaxRounds    *int
}

// WithDefaults returns p with unset fields taken from d. A qubit spec that
// defines an instruction set is a custom qubit and gets no preset name.
func (p Params) WithDefaults(d Defaults) Params {
	if p.QubitParams.Name == "" && p.QubitParams.InstructionSet == "" {
		p.QubitParams.Name = d.Qubit
	}
	if p.QecScheme.Name == "" {
		p.QecScheme.Name = d.QecScheme
	}
	if p.ErrorBudget == nil && d.ErrorBudget != 0 {
		p.ErrorBudget = &ErrorBudget{Total: d.ErrorBudget}
	}
	if p.BudgetPolicy == "" && (p.ErrorBudget == nil || p.ErrorBudget.Parts == nil) {
		p.BudgetPolicy = d.BudgetPolicy
	}
	if d.MaxRounds != nil {
		c := Constraints{}
		if p.Constraints != nil {
			c = *p.Constraints
		}
		if c.MaxDistillationRounds == nil {
			rounds := *d.MaxRounds
			c.MaxDistillationRounds = &rounds
		}
		p.Constraints = &c
	}
	return p
}

// Program is a program given inline, as in a request body.
type Program struct {
	// Compiler names the compiler. Empty picks one by the name's extension.
	Compiler string `json:"compiler,omitempty" yaml:"compiler,omitempty"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Content  string `json:"content" yaml:"content"`
}

// Compile turns the program into logical counts.
func (p Program) Compile(ctx context.Context, reg *program.Registry) (program.LogicalCounts, error) {
	return CompileSource(ctx, reg, p.Compiler, program.Source{Name: p.Name, Content: []byte(p.Content)})
}

// CompileSource runs a registry compiler inside a trace span. Failures that
// carry no kind are reported as invalid logical counts.
func CompileSource(ctx context.Context, reg *program.Registry, compiler string, src program.Source) (program.LogicalCounts, error) {
	if reg == nil {
		reg = program.DefaultRegistry()
	}
	name := compiler
	if name == "" {
		if c, err := reg.ForSource(src.Name); err == nil {
			name = c.Name()
		}
	}
	ctx, span := observability.StartCompileSpan(ctx, name, src.Name)
	defer span.End()

	counts, err := reg.Compile(ctx, compiler, src)
	if err != nil {
		err = errs.Wrap(errs.KindInvalidLogicalCounts, errs.StageValidation, err)
		observability.RecordError(span, err)
		return program.LogicalCounts{}, err
	}
	return counts, nil
}
