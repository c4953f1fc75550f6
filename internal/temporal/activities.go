package temporal

import (
	"context"
	"time"

	"github.com/efebarandurmaz/qre/internal/errs"
	"github.com/efebarandurmaz/qre/internal/estimator"
	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/jobs"
	"github.com/efebarandurmaz/qre/internal/observability"
	"go.temporal.io/sdk/activity"
)

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	Estimator *estimator.Estimator
	Catalog   *hardware.Catalog
	Defaults  jobs.Defaults
	Audit     *observability.AuditLogger // nil drops audit events
}

var deps = &Dependencies{}

// SetDependencies injects shared resources (called during worker setup).
func SetDependencies(d *Dependencies) {
	if d == nil {
		d = &Dependencies{}
	}
	deps = d
}

// EstimateActivity estimates one job. An estimation failure is returned in
// the outcome so it is not retried; cancellation is returned as an error.
func EstimateActivity(ctx context.Context, input EstimateInput) (estimator.Outcome, error) {
	d := deps
	e := d.Estimator
	if e == nil {
		e = estimator.New(estimator.Options{})
	}
	info := activity.GetInfo(ctx)
	ctx = observability.WithRequestID(ctx, info.WorkflowExecution.ID)
	job := input.Job
	out := estimator.Outcome{Label: job.Label, Detail: job.Detail}

	in, err := job.Params.WithDefaults(d.Defaults).Input(d.Catalog, input.Counts)
	if err != nil {
		out.Error = estimator.AsError(err)
		return out, nil
	}

	d.Audit.LogEstimateStart(ctx, job.Label, in.Qubit.Name, in.Scheme.Name, in.ErrorBudget)
	start := time.Now()
	results, err := e.Run(ctx, in)
	if err != nil {
		if errs.Is(err, errs.KindCanceled) {
			return out, err
		}
		d.Audit.LogEstimateError(ctx, job.Label, time.Since(start), err)
		activity.GetLogger(ctx).Info("estimate failed", "job", job.Label, "kind", errs.KindOf(err))
		out.Error = estimator.AsError(err)
		return out, nil
	}
	head := results[0].PhysicalCounts
	d.Audit.LogEstimateComplete(ctx, job.Label, time.Since(start), head.PhysicalQubits, uint64(head.Runtime))
	out.Results = results
	return out, nil
}
