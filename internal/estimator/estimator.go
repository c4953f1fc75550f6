// Package estimator turns logical program counts and a hardware model into
// physical resource estimates.
//
// A single estimate walks the states Initialized, BudgetAllocated,
// LayoutPlanned, FactoryPlanned and Assembled before it succeeds. Any failure
// moves it to Failed and surfaces the originating error kind unchanged.
package estimator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/efebarandurmaz/qre/internal/budget"
	"github.com/efebarandurmaz/qre/internal/errs"
	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/layout"
	"github.com/efebarandurmaz/qre/internal/model"
	"github.com/efebarandurmaz/qre/internal/observability"
	"github.com/efebarandurmaz/qre/internal/program"
	"github.com/efebarandurmaz/qre/internal/report"
	"github.com/efebarandurmaz/qre/internal/tfactory"
	"go.opentelemetry.io/otel/trace"
)

// DefaultErrorBudget is the total error budget adapters use when the caller
// gives none.
const DefaultErrorBudget = 1e-3

// maxLayoutIterations bounds the layout and factory fixed point.
const maxLayoutIterations = 16

// Objective selects what budget re-optimization minimizes.
type Objective string

const (
	ObjectiveNone    Objective = "none"
	ObjectiveQubits  Objective = "qubits"
	ObjectiveRuntime Objective = "runtime"
)

// ParseObjective maps a name to an Objective. The empty string is ObjectiveNone.
func ParseObjective(s string) (Objective, error) {
	switch o := Objective(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return ObjectiveNone, nil
	case ObjectiveNone, ObjectiveQubits, ObjectiveRuntime:
		return o, nil
	default:
		return "", fmt.Errorf("unknown optimization objective %q", s)
	}
}

// StageObserver receives the duration and outcome of every pipeline stage.
type StageObserver interface {
	ObserveStage(stage string, d time.Duration, err error)
}

type factoryObserver interface {
	ObserveFactoryCandidates(n int)
}

type estimateRecorder interface {
	RecordEstimate(d time.Duration, err error)
}

type batchRecorder interface {
	RecordBatchJob(err error)
}

// MultiObserver fans stage observations out to several observers.
func MultiObserver(observers ...StageObserver) StageObserver {
	return multiObserver(observers)
}

type multiObserver []StageObserver

func (m multiObserver) ObserveStage(stage string, d time.Duration, err error) {
	for _, o := range m {
		o.ObserveStage(stage, d, err)
	}
}

func (m multiObserver) ObserveFactoryCandidates(n int) {
	for _, o := range m {
		if fo, ok := o.(factoryObserver); ok {
			fo.ObserveFactoryCandidates(n)
		}
	}
}

func (m multiObserver) RecordEstimate(d time.Duration, err error) {
	for _, o := range m {
		if r, ok := o.(estimateRecorder); ok {
			r.RecordEstimate(d, err)
		}
	}
}

func (m multiObserver) RecordBatchJob(err error) {
	for _, o := range m {
		if r, ok := o.(batchRecorder); ok {
			r.RecordBatchJob(err)
		}
	}
}

// Options configure an Estimator.
type Options struct {
	// Optimize enables budget re-optimization.
	Optimize Objective
	// Logger receives stage-level debug lines. Nil discards them.
	Logger *slog.Logger
	// Observer is notified after every stage.
	Observer StageObserver
	// Units overrides the distillation units. Nil uses tfactory.DefaultUnits.
	Units []tfactory.Unit
}

// Input is everything one estimate depends on.
type Input struct {
	Counts       program.LogicalCounts
	Qubit        hardware.QubitParams
	Scheme       hardware.QecScheme
	Constraints  model.Constraints
	ErrorBudget  float64
	Policy       budget.Policy
	EstimateType model.EstimateType
}

func (in Input) withDefaults() Input {
	if in.Policy == nil {
		in.Policy = budget.Uniform{}
	}
	if in.EstimateType == "" {
		in.EstimateType = model.SinglePoint
	}
	return in
}

// Estimator runs estimates. It holds no per-run state and is safe for
// concurrent use.
type Estimator struct {
	opts   Options
	logger *slog.Logger
}

// New creates an Estimator.
func New(opts Options) *Estimator {
	if opts.Optimize == "" {
		opts.Optimize = ObjectiveNone
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Estimator{opts: opts, logger: logger}
}

// Estimate runs a single-point estimate with default options.
func Estimate(ctx context.Context, counts program.LogicalCounts, qubit hardware.QubitParams,
	scheme hardware.QecScheme, constraints model.Constraints, totalErrorBudget float64) (model.Result, error) {
	return New(Options{}).Estimate(ctx, Input{
		Counts:      counts,
		Qubit:       qubit,
		Scheme:      scheme,
		Constraints: constraints,
		ErrorBudget: totalErrorBudget,
	})
}

// Run returns one result for a single-point input and the qubits/runtime
// frontier for a frontier input.
func (e *Estimator) Run(ctx context.Context, in Input) ([]model.Result, error) {
	if in.EstimateType == model.Frontier {
		return e.Frontier(ctx, in)
	}
	r, err := e.Estimate(ctx, in)
	if err != nil {
		return nil, err
	}
	return []model.Result{r}, nil
}

// Estimate returns the single-point estimate for in.
func (e *Estimator) Estimate(ctx context.Context, in Input) (model.Result, error) {
	in = in.withDefaults()
	in.EstimateType = model.SinglePoint

	ctx, span := observability.StartEstimateSpan(ctx, in.Qubit.Name, in.Scheme.Name)
	defer span.End()
	start := time.Now()

	r, err := e.estimate(ctx, in)
	if err == nil {
		r, err = e.finish(ctx, r)
	}
	e.recordEstimate(time.Since(start), err)
	if err != nil {
		observability.RecordError(span, err)
		e.logger.Debug("estimate failed", "kind", errs.KindOf(err), "error", err)
		return model.Result{}, err
	}
	recordSpan(span, r)
	e.logger.Debug("estimate done",
		"physical_qubits", r.PhysicalCounts.PhysicalQubits,
		"runtime", r.PhysicalCounts.Runtime,
		"code_distance", r.LogicalQubit.CodeDistance,
		"duration", time.Since(start))
	return r, nil
}

// estimate dispatches to the optimizer when one is configured.
func (e *Estimator) estimate(ctx context.Context, in Input) (model.Result, error) {
	if e.opts.Optimize != ObjectiveNone {
		return e.optimize(ctx, in)
	}
	return e.evaluate(ctx, in)
}

// evaluate runs one pass of the state machine with in's budget policy.
func (e *Estimator) evaluate(ctx context.Context, in Input) (model.Result, error) {
	m := newMachine()
	r, err := e.pass(ctx, m, in)
	if err != nil {
		m.fail()
		return model.Result{}, err
	}
	return r, nil
}

func (e *Estimator) pass(ctx context.Context, m *machine, in Input) (model.Result, error) {
	if err := ctx.Err(); err != nil {
		return model.Result{}, canceled(err)
	}
	err := e.stage(ctx, errs.StageValidation, errs.KindConfiguration, func(context.Context) error {
		return validate(in)
	})
	if err != nil {
		return model.Result{}, err
	}

	var (
		b   budget.ErrorBudget
		pre layout.PreLayout
	)
	err = e.stage(ctx, errs.StageBudget, errs.KindInvalidBudget, func(context.Context) error {
		var err error
		if b, err = budget.Allocate(in.ErrorBudget, in.Policy, usage(in.Counts)); err != nil {
			return err
		}
		pre, err = layout.ComputePreLayout(in.Counts, b.Rotations)
		return err
	})
	if err != nil {
		return model.Result{}, err
	}
	if err := m.advance(BudgetAllocated); err != nil {
		return model.Result{}, internal(err)
	}

	planner := layout.NewPlanner(in.Qubit, in.Scheme)
	var (
		depth uint64
		lq    layout.LogicalQubit
	)
	err = e.stage(ctx, errs.StageLayout, errs.KindNoFeasibleCodeDistance, func(context.Context) error {
		var err error
		if depth, err = logicalDepth(pre.AlgorithmicLogicalDepth, in.Constraints.LogicalDepthFactor); err != nil {
			return err
		}
		lq, err = planner.Plan(b.Logical, pre.AlgorithmicLogicalQubits, depth)
		return err
	})
	if err != nil {
		return model.Result{}, err
	}
	if err := m.advance(LayoutPlanned); err != nil {
		return model.Result{}, internal(err)
	}

	var factory *tfactory.Factory
	var requiredTState float64
	if pre.NumTStates > 0 {
		err = e.stage(ctx, errs.StageTFactory, errs.KindNoFeasibleTFactory, func(ctx context.Context) error {
			if b.TStates <= 0 {
				return errs.New(errs.KindInvalidBudget, errs.StageTFactory,
					"program needs %d T states but the T-state error budget is zero", pre.NumTStates)
			}
			requiredTState = b.TStates / float64(pre.NumTStates)
			f, err := e.planFactory(ctx, in, requiredTState)
			if err != nil {
				return err
			}
			factory = &f
			return nil
		})
		if err != nil {
			return model.Result{}, err
		}
	}
	if err := m.advance(FactoryPlanned); err != nil {
		return model.Result{}, internal(err)
	}

	var r model.Result
	err = e.stage(ctx, errs.StageAssembly, errs.KindConstraintsUnsatisfied, func(context.Context) error {
		fit, err := reconcile(planner, b.Logical, pre, lq, depth, factory, in.Constraints.MaxTFactories)
		if err != nil {
			return err
		}
		r = assemble(in, b, pre, fit, factory, requiredTState)
		return checkConstraints(in.Constraints, r.PhysicalCounts)
	})
	if err != nil {
		return model.Result{}, err
	}
	if err := m.advance(Assembled); err != nil {
		return model.Result{}, internal(err)
	}
	if err := m.advance(Succeeded); err != nil {
		return model.Result{}, internal(err)
	}
	return r, nil
}

// finish fills in the report view. It runs once per returned result.
func (e *Estimator) finish(ctx context.Context, r model.Result) (model.Result, error) {
	var out model.Result
	err := e.stage(ctx, errs.StageReport, errs.KindConfiguration, func(context.Context) error {
		out = report.Build(r)
		return nil
	})
	return out, err
}

// stage runs fn inside a span and reports its outcome. Errors that carry no
// kind are tagged with kind.
func (e *Estimator) stage(ctx context.Context, stage errs.Stage, kind errs.Kind, fn func(context.Context) error) error {
	ctx, span := observability.StartStageSpan(ctx, string(stage))
	defer span.End()
	start := time.Now()

	var err error
	if ferr := fn(ctx); ferr != nil {
		if ctx.Err() != nil && !errs.Is(ferr, errs.KindCanceled) && errs.KindOf(ferr) == "" {
			ferr = canceled(ferr)
		}
		err = errs.Wrap(kind, stage, ferr)
		observability.RecordError(span, err)
	}
	elapsed := time.Since(start)
	if e.opts.Observer != nil {
		e.opts.Observer.ObserveStage(string(stage), elapsed, err)
	}
	if err != nil {
		e.logger.Debug("stage failed", "stage", stage, "duration", elapsed, "error", err)
	} else {
		e.logger.Debug("stage done", "stage", stage, "duration", elapsed)
	}
	return err
}

func (e *Estimator) planFactory(ctx context.Context, in Input, required float64) (tfactory.Factory, error) {
	p := tfactory.NewPlanner(in.Qubit, in.Scheme)
	p.MaxRounds = in.Constraints.MaxDistillationRounds
	if len(e.opts.Units) > 0 {
		p.Units = e.opts.Units
	}
	f, stats, err := p.Plan(ctx, required)
	if fo, ok := e.opts.Observer.(factoryObserver); ok {
		fo.ObserveFactoryCandidates(stats.Candidates)
	}
	e.logger.Debug("factory search", "required_error_rate", required, "candidates", stats.Candidates)
	return f, err
}

func (e *Estimator) recordEstimate(d time.Duration, err error) {
	if r, ok := e.opts.Observer.(estimateRecorder); ok {
		r.RecordEstimate(d, err)
	}
}

func validate(in Input) error {
	if err := in.Counts.Validate(); err != nil {
		return err
	}
	if err := in.Qubit.Validate(); err != nil {
		return err
	}
	if err := in.Scheme.Validate(); err != nil {
		return err
	}
	if in.Scheme.InstructionSet != "" && in.Scheme.InstructionSet != in.Qubit.InstructionSet {
		return fmt.Errorf("scheme %q targets %s qubits but qubit %q is %s",
			in.Scheme.Name, in.Scheme.InstructionSet, in.Qubit.Name, in.Qubit.InstructionSet)
	}
	c := in.Constraints
	if c.MaxDistillationRounds < 0 {
		return fmt.Errorf("maxDistillationRounds must not be negative, got %d", c.MaxDistillationRounds)
	}
	if f := c.LogicalDepthFactor; f != nil && (math.IsNaN(*f) || math.IsInf(*f, 0) || *f < 1) {
		return fmt.Errorf("logicalDepthFactor must be a finite number of at least 1, got %g", *f)
	}
	if c.MaxTFactories != nil && *c.MaxTFactories == 0 {
		return fmt.Errorf("maxTFactories must be positive")
	}
	if c.MaxPhysicalQubits != nil && *c.MaxPhysicalQubits == 0 {
		return fmt.Errorf("maxPhysicalQubits must be positive")
	}
	if c.MaxDuration != nil && *c.MaxDuration == 0 {
		return fmt.Errorf("maxDuration must be positive")
	}
	return nil
}

func usage(c program.LogicalCounts) budget.Usage {
	return budget.Usage{
		TStates:   c.TCount+c.CCZCount+c.CCIXCount+c.RotationCount > 0,
		Rotations: c.RotationCount > 0,
	}
}

// logicalDepth scales the algorithmic depth and keeps at least one cycle.
func logicalDepth(algorithmic uint64, factor *float64) (uint64, error) {
	if factor == nil {
		return max(algorithmic, 1), nil
	}
	depth := math.Ceil(float64(algorithmic) * *factor)
	// float64(math.MaxUint64) rounds up to 2^64, which uint64 cannot hold.
	if depth >= float64(math.MaxUint64) {
		return 0, errs.New(errs.KindInvalidLogicalCounts, errs.StageLayout,
			"logical depth %d scaled by %g does not fit in 64 bits", algorithmic, *factor)
	}
	return max(uint64(depth), 1), nil
}

// runtimeOf is depth cycles of cycle nanoseconds each.
func runtimeOf(depth, cycle uint64) (uint64, error) {
	if depth > math.MaxUint64/cycle {
		return 0, errs.New(errs.KindConstraintsUnsatisfied, errs.StageAssembly,
			"runtime of %d cycles at %d ns each exceeds %d ns", depth, cycle, uint64(math.MaxUint64))
	}
	return depth * cycle, nil
}

// fit is the settled layout of the fixed point.
type fit struct {
	qubit        layout.LogicalQubit
	depth        uint64
	numFactories uint64
	runs         uint64
}

// reconcile stretches the logical depth until the factories fit in the
// runtime and within maxFactories. A longer depth tightens the logical error
// requirement, so the code distance is re-planned on every iteration.
func reconcile(planner *layout.Planner, logicalBudget float64, pre layout.PreLayout, lq layout.LogicalQubit,
	depth uint64, f *tfactory.Factory, maxFactories *uint64) (fit, error) {
	for i := 0; i < maxLayoutIterations; i++ {
		if i > 0 {
			var err error
			if lq, err = planner.Plan(logicalBudget, pre.AlgorithmicLogicalQubits, depth); err != nil {
				return fit{}, err
			}
		}
		cycle := uint64(lq.LogicalCycleTime)
		runtime, err := runtimeOf(depth, cycle)
		if err != nil {
			return fit{}, err
		}
		if f == nil {
			return fit{qubit: lq, depth: depth}, nil
		}

		totalRuns := uint64(math.Ceil(float64(pre.NumTStates) / (float64(f.NumOutputTStates) * f.SuccessProbability)))
		duration := uint64(f.Duration)
		capacity := runtime / duration

		needed := max(capacity, 1)
		if maxFactories != nil {
			needed = max(needed, ceilDiv(totalRuns, *maxFactories))
		}
		if needed > capacity {
			stretched, err := runtimeOf(needed, duration)
			if err != nil || depth == math.MaxUint64 {
				return fit{}, errs.New(errs.KindConstraintsUnsatisfied, errs.StageAssembly,
					"%d T factories of %s each do not fit in a 64-bit runtime", needed, f.Duration)
			}
			depth = max(depth+1, ceilDiv(stretched, cycle))
			continue
		}
		numFactories := ceilDiv(totalRuns, capacity)
		return fit{
			qubit:        lq,
			depth:        depth,
			numFactories: numFactories,
			runs:         ceilDiv(totalRuns, numFactories),
		}, nil
	}
	return fit{}, errs.New(errs.KindConstraintsUnsatisfied, errs.StageAssembly,
		"logical depth did not settle within %d layout iterations", maxLayoutIterations)
}

func assemble(in Input, b budget.ErrorBudget, pre layout.PreLayout, ft fit, f *tfactory.Factory, requiredTState float64) model.Result {
	lq := ft.qubit
	clock := 1e9 / float64(lq.LogicalCycleTime)
	breakdown := model.Breakdown{
		AlgorithmicLogicalQubits:      pre.AlgorithmicLogicalQubits,
		AlgorithmicLogicalDepth:       pre.AlgorithmicLogicalDepth,
		LogicalDepth:                  ft.depth,
		ClockFrequency:                clock,
		NumTStates:                    pre.NumTStates,
		PhysicalQubitsForAlgorithm:    pre.AlgorithmicLogicalQubits * lq.PhysicalQubits,
		RequiredLogicalQubitErrorRate: layout.RequiredErrorRate(b.Logical, pre.AlgorithmicLogicalQubits, ft.depth),
		NumTsPerRotation:              pre.NumTsPerRotation,
		CliffordErrorRate:             in.Qubit.CliffordErrorRate(),
	}

	var tf *model.TFactory
	if f != nil {
		numFactories, runs, required := ft.numFactories, ft.runs, requiredTState
		breakdown.NumTFactories = &numFactories
		breakdown.NumTFactoryRuns = &runs
		breakdown.RequiredLogicalTStateErrorRate = &required
		breakdown.PhysicalQubitsForTFactories = numFactories * f.PhysicalQubits
		t := model.NewTFactory(*f)
		tf = &t
	}

	return model.Result{
		Status: model.StatusSuccess,
		JobParams: model.JobParams{
			QecScheme:    in.Scheme,
			ErrorBudget:  in.ErrorBudget,
			BudgetPolicy: in.Policy.Name(),
			QubitParams:  in.Qubit,
			Constraints:  in.Constraints,
			EstimateType: in.EstimateType,
		},
		PhysicalCounts: model.PhysicalCounts{
			PhysicalQubits: breakdown.PhysicalQubitsForAlgorithm + breakdown.PhysicalQubitsForTFactories,
			Runtime:        hardware.Duration(ft.depth * uint64(lq.LogicalCycleTime)),
			RQOPS:          uint64(math.Round(float64(pre.AlgorithmicLogicalQubits) * clock)),
			Breakdown:      breakdown,
		},
		LogicalQubit:  lq,
		TFactory:      tf,
		ErrorBudget:   b,
		LogicalCounts: in.Counts,
	}
}

func checkConstraints(c model.Constraints, pc model.PhysicalCounts) error {
	if c.MaxPhysicalQubits != nil && pc.PhysicalQubits > *c.MaxPhysicalQubits {
		return errs.New(errs.KindConstraintsUnsatisfied, errs.StageAssembly,
			"estimate needs %d physical qubits, more than the limit of %d", pc.PhysicalQubits, *c.MaxPhysicalQubits)
	}
	if c.MaxDuration != nil && pc.Runtime > *c.MaxDuration {
		return errs.New(errs.KindConstraintsUnsatisfied, errs.StageAssembly,
			"estimated runtime %s exceeds the limit of %s", pc.Runtime, *c.MaxDuration)
	}
	return nil
}

func recordSpan(span trace.Span, r model.Result) {
	var factories uint64
	if n := r.PhysicalCounts.Breakdown.NumTFactories; n != nil {
		factories = *n
	}
	observability.RecordEstimateResult(span, r.PhysicalCounts.PhysicalQubits,
		uint64(r.PhysicalCounts.Runtime), r.LogicalQubit.CodeDistance, factories)
}

func ceilDiv(a, b uint64) uint64 {
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}

func canceled(err error) error {
	return errs.Wrap(errs.KindCanceled, "", err)
}

func internal(err error) error {
	return errs.Wrap(errs.KindConfiguration, "", err)
}
