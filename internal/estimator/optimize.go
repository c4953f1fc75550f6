package estimator

import (
	"context"

	"github.com/efebarandurmaz/qre/internal/budget"
	"github.com/efebarandurmaz/qre/internal/errs"
	"github.com/efebarandurmaz/qre/internal/model"
)

// The optimizer walks a grid of budget splits where a point (l, t) gives
// l/gridSteps of the total to logical errors and t/gridSteps to T states.
const (
	gridSteps      = 40
	maxEvaluations = 64
)

type gridPoint struct {
	logical, tstates int
}

// neighbors are visited in this order; the first of equally good moves wins.
var neighbors = [...]gridPoint{
	{1, 0}, {-1, 0},
	{0, 1}, {0, -1},
	{1, -1}, {-1, 1},
}

type outcome struct {
	result model.Result
	err    error
}

// climber is a bounded steepest-descent search over budget splits. Every
// evaluation is memoized, so revisiting a point costs nothing.
type climber struct {
	e         *Estimator
	in        Input
	objective Objective
	needsT    bool
	hasRot    bool
	seen      map[gridPoint]outcome
	evals     int
}

// optimize runs the caller's policy first and then searches nearby budget
// splits for a cheaper estimate under the configured objective. The result
// is never worse than the policy's own split.
func (e *Estimator) optimize(ctx context.Context, in Input) (model.Result, error) {
	base, baseErr := e.evaluate(ctx, in)
	if baseErr != nil && !renegotiable(baseErr) {
		return model.Result{}, baseErr
	}
	u := usage(in.Counts)
	initial, err := budget.Allocate(in.ErrorBudget, in.Policy, u)
	if err != nil {
		return model.Result{}, errs.Wrap(errs.KindInvalidBudget, errs.StageBudget, err)
	}

	c := &climber{
		e:         e,
		in:        in,
		objective: e.opts.Optimize,
		needsT:    u.TStates,
		hasRot:    u.Rotations,
		seen:      make(map[gridPoint]outcome),
		evals:     1,
	}
	best, found, err := c.climb(ctx, c.snap(initial))
	if err != nil {
		return model.Result{}, err
	}

	switch {
	case baseErr == nil && (!found || !c.better(best, base)):
		best = base
	case !found:
		return model.Result{}, baseErr
	}
	best.JobParams.BudgetPolicy = in.Policy.Name()
	best.JobParams.Optimize = string(c.objective)
	e.logger.Debug("budget optimized", "objective", c.objective, "evaluations", c.evals,
		"logical", best.ErrorBudget.Logical, "tstates", best.ErrorBudget.TStates)
	return best, nil
}

// climb moves to the best strictly improving neighbor until none improves
// or the evaluation limit is reached.
func (c *climber) climb(ctx context.Context, start gridPoint) (model.Result, bool, error) {
	cur := start
	o, err := c.eval(ctx, cur)
	if err != nil {
		return model.Result{}, false, err
	}
	curRes, feasible := o.result, o.err == nil

	for c.evals < maxEvaluations {
		next, nextRes, moved := cur, curRes, false
		for _, off := range neighbors {
			p := gridPoint{cur.logical + off.logical, cur.tstates + off.tstates}
			if !c.valid(p) {
				continue
			}
			if _, ok := c.seen[p]; !ok && c.evals >= maxEvaluations {
				break
			}
			o, err := c.eval(ctx, p)
			if err != nil {
				return model.Result{}, false, err
			}
			if o.err != nil {
				continue
			}
			if (!feasible && !moved) || c.better(o.result, nextRes) {
				next, nextRes, moved = p, o.result, true
			}
		}
		if !moved {
			break
		}
		cur, curRes, feasible = next, nextRes, true
	}
	return curRes, feasible, nil
}

// eval returns the memoized outcome at p. The returned error is non-nil only
// when the search itself must stop.
func (c *climber) eval(ctx context.Context, p gridPoint) (outcome, error) {
	if o, ok := c.seen[p]; ok {
		return o, nil
	}
	if err := ctx.Err(); err != nil {
		return outcome{}, canceled(err)
	}
	in := c.in
	in.Policy = c.split(p)
	r, err := c.e.evaluate(ctx, in)
	c.evals++
	if err != nil && !renegotiable(err) {
		return outcome{}, err
	}
	o := outcome{result: r, err: err}
	c.seen[p] = o
	return o, nil
}

// split turns a grid point into an explicit budget. Without rotations the
// T-state share takes the rest of the total so nothing is left unused.
func (c *climber) split(p gridPoint) budget.Explicit {
	total := c.in.ErrorBudget
	logical := total * float64(p.logical) / gridSteps
	tstates := total * float64(p.tstates) / gridSteps
	if !c.hasRot {
		tstates = total - logical
	}
	return budget.Explicit{Logical: logical, TStates: tstates, Rotations: max(total-logical-tstates, 0)}
}

func (c *climber) valid(p gridPoint) bool {
	if p.logical < 1 || p.tstates < 0 {
		return false
	}
	if c.needsT != (p.tstates > 0) {
		return false
	}
	if c.hasRot {
		return p.logical+p.tstates <= gridSteps-1
	}
	return p.logical+p.tstates == gridSteps
}

// snap moves a budget onto the nearest valid grid point.
func (c *climber) snap(b budget.ErrorBudget) gridPoint {
	total := b.Total()
	p := gridPoint{
		logical: min(max(int(b.Logical/total*gridSteps+0.5), 1), gridSteps),
		tstates: int(b.TStates/total*gridSteps + 0.5),
	}
	switch {
	case !c.needsT:
		return gridPoint{logical: gridSteps}
	case c.hasRot:
		p.tstates = max(p.tstates, 1)
		for p.logical+p.tstates > gridSteps-1 {
			if p.logical > p.tstates {
				p.logical--
			} else {
				p.tstates--
			}
		}
	default:
		p.logical = min(p.logical, gridSteps-1)
		p.tstates = gridSteps - p.logical
	}
	return p
}

// better compares two feasible estimates under the objective, using the
// other dimension as a tie breaker.
func (c *climber) better(a, b model.Result) bool {
	aq, bq := a.PhysicalCounts.PhysicalQubits, b.PhysicalCounts.PhysicalQubits
	ar, br := a.PhysicalCounts.Runtime, b.PhysicalCounts.Runtime
	if c.objective == ObjectiveRuntime {
		if ar != br {
			return ar < br
		}
		return aq < bq
	}
	if aq != bq {
		return aq < bq
	}
	return ar < br
}

// renegotiable errors depend on the budget split and may vanish at another one.
func renegotiable(err error) bool {
	switch errs.KindOf(err) {
	case errs.KindNoFeasibleCodeDistance, errs.KindNoFeasibleTFactory,
		errs.KindConstraintsUnsatisfied, errs.KindInvalidBudget:
		return true
	}
	return false
}
