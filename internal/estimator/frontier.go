package estimator

import (
	"context"
	"sort"
	"time"

	"github.com/efebarandurmaz/qre/internal/errs"
	"github.com/efebarandurmaz/qre/internal/model"
	"github.com/efebarandurmaz/qre/internal/observability"
)

// maxFrontierPoints bounds the factory counts sampled by Frontier.
const maxFrontierPoints = 64

// Frontier trades runtime for qubits by limiting the number of T factories,
// from the unconstrained count down to one. It returns the Pareto-optimal
// estimates ordered by increasing physical qubits and decreasing runtime.
// Programs without T states have a single-point frontier.
func (e *Estimator) Frontier(ctx context.Context, in Input) ([]model.Result, error) {
	in = in.withDefaults()
	in.EstimateType = model.Frontier

	ctx, span := observability.StartEstimateSpan(ctx, in.Qubit.Name, in.Scheme.Name)
	defer span.End()
	start := time.Now()

	points, err := e.frontier(ctx, in)
	if err == nil {
		for i := range points {
			if points[i], err = e.finish(ctx, points[i]); err != nil {
				break
			}
		}
	}
	e.recordEstimate(time.Since(start), err)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	recordSpan(span, points[0])
	e.logger.Debug("frontier done", "points", len(points), "duration", time.Since(start))
	return points, nil
}

func (e *Estimator) frontier(ctx context.Context, in Input) ([]model.Result, error) {
	first, err := e.estimate(ctx, in)
	if err != nil {
		return nil, err
	}
	n := first.PhysicalCounts.Breakdown.NumTFactories
	if n == nil || *n <= 1 {
		return []model.Result{first}, nil
	}

	points := []model.Result{first}
	for _, limit := range frontierLimits(*n) {
		if err := ctx.Err(); err != nil {
			return nil, canceled(err)
		}
		sub := in
		sub.Constraints.MaxTFactories = &limit
		r, err := e.estimate(ctx, sub)
		if err != nil {
			if errs.Is(err, errs.KindCanceled) {
				return nil, err
			}
			e.logger.Debug("frontier point skipped", "max_tfactories", limit, "error", err)
			continue
		}
		points = append(points, r)
	}
	return paretoFront(points), nil
}

// frontierLimits returns descending factory limits below f0, ending at one,
// with at most maxFrontierPoints-1 entries.
func frontierLimits(f0 uint64) []uint64 {
	span := f0 - 1
	steps := min(span, maxFrontierPoints-1)
	limits := make([]uint64, 0, steps)
	for k := uint64(1); k <= steps; k++ {
		v := f0 - ceilDiv(k*span, steps)
		if len(limits) > 0 && limits[len(limits)-1] == v {
			continue
		}
		limits = append(limits, v)
	}
	return limits
}

// paretoFront keeps the estimates not dominated in both qubits and runtime.
// Ties keep the earlier point.
func paretoFront(points []model.Result) []model.Result {
	sorted := make([]model.Result, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].PhysicalCounts, sorted[j].PhysicalCounts
		if a.PhysicalQubits != b.PhysicalQubits {
			return a.PhysicalQubits < b.PhysicalQubits
		}
		return a.Runtime < b.Runtime
	})
	front := make([]model.Result, 0, len(sorted))
	for _, r := range sorted {
		if len(front) > 0 && r.PhysicalCounts.Runtime >= front[len(front)-1].PhysicalCounts.Runtime {
			continue
		}
		front = append(front, r)
	}
	return front
}
