// Package jobs reads job-parameter files: a list of labeled estimation
// parameter sets, each run against the same program.
package jobs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/efebarandurmaz/qre/internal/budget"
	"github.com/efebarandurmaz/qre/internal/errs"
	"github.com/efebarandurmaz/qre/internal/estimator"
	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/model"
	"github.com/efebarandurmaz/qre/internal/program"
	"gopkg.in/yaml.v3"
)

// Job is one labeled parameter set.
type Job struct {
	Label  string `json:"label" yaml:"label"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Params Params `json:"params" yaml:"params"`
}

// Params are the user-facing estimation parameters. Every field is optional.
type Params struct {
	QubitParams  hardware.QubitSpec  `json:"qubitParams" yaml:"qubitParams"`
	QecScheme    hardware.SchemeSpec `json:"qecScheme" yaml:"qecScheme"`
	ErrorBudget  *ErrorBudget        `json:"errorBudget,omitempty" yaml:"errorBudget,omitempty"`
	BudgetPolicy string              `json:"budgetPolicy,omitempty" yaml:"budgetPolicy,omitempty"`
	Constraints  *Constraints        `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	EstimateType model.EstimateType  `json:"estimateType,omitempty" yaml:"estimateType,omitempty"`
}

// ErrorBudget is either a total probability or an explicit split.
type ErrorBudget struct {
	Total float64
	Parts *budget.Explicit
}

// Value returns the total budget.
func (b ErrorBudget) Value() float64 {
	if b.Parts != nil {
		return b.Parts.Logical + b.Parts.TStates + b.Parts.Rotations
	}
	return b.Total
}

func (b ErrorBudget) MarshalJSON() ([]byte, error) {
	if b.Parts != nil {
		return json.Marshal(b.Parts)
	}
	return json.Marshal(b.Total)
}

func (b *ErrorBudget) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var parts budget.Explicit
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&parts); err != nil {
			return fmt.Errorf("errorBudget: %w", err)
		}
		*b = ErrorBudget{Parts: &parts}
		return nil
	}
	var total float64
	if err := json.Unmarshal(data, &total); err != nil {
		return fmt.Errorf("errorBudget must be a number or an object: %w", err)
	}
	*b = ErrorBudget{Total: total}
	return nil
}

func (b ErrorBudget) MarshalYAML() (any, error) {
	if b.Parts != nil {
		return b.Parts, nil
	}
	return b.Total, nil
}

func (b *ErrorBudget) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		var parts budget.Explicit
		if err := node.Decode(&parts); err != nil {
			return fmt.Errorf("errorBudget: %w", err)
		}
		*b = ErrorBudget{Parts: &parts}
	case yaml.ScalarNode:
		var total float64
		if err := node.Decode(&total); err != nil {
			return fmt.Errorf("errorBudget: %w", err)
		}
		*b = ErrorBudget{Total: total}
	default:
		return fmt.Errorf("line %d: errorBudget must be a number or a mapping", node.Line)
	}
	return nil
}

// Constraints mirrors model.Constraints with an optional round limit, so an
// omitted limit keeps the default.
type Constraints struct {
	MaxDistillationRounds *int               `json:"maxDistillationRounds,omitempty" yaml:"maxDistillationRounds,omitempty"`
	MaxPhysicalQubits     *uint64            `json:"maxPhysicalQubits,omitempty" yaml:"maxPhysicalQubits,omitempty"`
	MaxDuration           *hardware.Duration `json:"maxDuration,omitempty" yaml:"maxDuration,omitempty"`
	MaxTFactories         *uint64            `json:"maxTFactories,omitempty" yaml:"maxTFactories,omitempty"`
	LogicalDepthFactor    *float64           `json:"logicalDepthFactor,omitempty" yaml:"logicalDepthFactor,omitempty"`
}

// Model fills unset fields with defaults.
func (c *Constraints) Model() model.Constraints {
	out := model.DefaultConstraints()
	if c == nil {
		return out
	}
	if c.MaxDistillationRounds != nil {
		out.MaxDistillationRounds = *c.MaxDistillationRounds
	}
	out.MaxPhysicalQubits = c.MaxPhysicalQubits
	out.MaxDuration = c.MaxDuration
	out.MaxTFactories = c.MaxTFactories
	out.LogicalDepthFactor = c.LogicalDepthFactor
	return out
}

// Input resolves the parameters against a catalog for the given program.
func (p Params) Input(c *hardware.Catalog, counts program.LogicalCounts) (estimator.Input, error) {
	q, s, err := estimator.ResolveHardware(c, p.QubitParams, p.QecScheme)
	if err != nil {
		return estimator.Input{}, err
	}
	total := estimator.DefaultErrorBudget
	var policy budget.Policy
	if p.ErrorBudget != nil {
		total = p.ErrorBudget.Value()
		if p.ErrorBudget.Parts != nil {
			if p.BudgetPolicy != "" && p.BudgetPolicy != "explicit" {
				return estimator.Input{}, errs.New(errs.KindInvalidBudget, errs.StageValidation,
					"budget policy %q conflicts with an explicit error budget split", p.BudgetPolicy)
			}
			policy = *p.ErrorBudget.Parts
		}
	}
	if policy == nil {
		if policy, err = budget.ParsePolicy(p.BudgetPolicy); err != nil {
			return estimator.Input{}, errs.Wrap(errs.KindConfiguration, errs.StageValidation, err)
		}
	}
	switch p.EstimateType {
	case "", model.SinglePoint, model.Frontier:
	default:
		return estimator.Input{}, errs.New(errs.KindConfiguration, errs.StageValidation,
			"unknown estimate type %q", p.EstimateType)
	}
	return estimator.Input{
		Counts:       counts,
		Qubit:        q,
		Scheme:       s,
		Constraints:  p.Constraints.Model(),
		ErrorBudget:  total,
		Policy:       policy,
		EstimateType: p.EstimateType,
	}, nil
}

// Parse reads a YAML or JSON job list. A single mapping is read as a list of
// one job, and a job without a label gets its position as label.
func Parse(data []byte) ([]Job, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing jobs: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("parsing jobs: empty document")
	}
	doc := root.Content[0]

	var jobs []Job
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := dec.Decode(&jobs); err != nil {
			return nil, fmt.Errorf("parsing jobs: %w", err)
		}
	case yaml.MappingNode:
		var job Job
		if err := dec.Decode(&job); err != nil {
			return nil, fmt.Errorf("parsing jobs: %w", err)
		}
		jobs = []Job{job}
	default:
		return nil, fmt.Errorf("parsing jobs: expected a list or a mapping at line %d", doc.Line)
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("parsing jobs: no jobs defined")
	}
	for i := range jobs {
		if jobs[i].Label == "" {
			jobs[i].Label = fmt.Sprintf("job-%d", i+1)
		}
	}
	return jobs, nil
}

// Load reads a job file from disk.
func Load(path string) ([]Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading jobs: %w", err)
	}
	return Parse(data)
}

// Resolve turns jobs into estimator jobs for one program. The first job that
// fails to resolve aborts with its label.
func Resolve(c *hardware.Catalog, jobs []Job, counts program.LogicalCounts) ([]estimator.Job, error) {
	out := make([]estimator.Job, 0, len(jobs))
	for _, j := range jobs {
		in, err := j.Params.Input(c, counts)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", j.Label, err)
		}
		out = append(out, estimator.Job{Label: j.Label, Detail: j.Detail, Input: in})
	}
	return out, nil
}
