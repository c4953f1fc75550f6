package estimator

import (
	"context"
	"runtime"
	"time"

	"github.com/efebarandurmaz/qre/internal/model"
	"github.com/efebarandurmaz/qre/internal/observability"
	"golang.org/x/sync/errgroup"
)

// Job is one labeled input of a batch.
type Job struct {
	Label  string
	Detail string
	Input  Input
}

// Outcome is the result of one Job. Exactly one of Results and Error is set.
type Outcome struct {
	Label   string         `json:"label"`
	Detail  string         `json:"detail,omitempty"`
	Results []model.Result `json:"results,omitempty"`
	Error   *Error         `json:"error,omitempty"`
}

// Failed reports whether the job ended in an error.
func (o Outcome) Failed() bool {
	return o.Error != nil
}

// Batch runs independent jobs with at most concurrency in flight and returns
// their outcomes in input order. A job failure is recorded in its Outcome;
// only cancellation of ctx fails the batch. A concurrency of zero or less
// uses GOMAXPROCS.
func (e *Estimator) Batch(ctx context.Context, jobs []Job, concurrency int) ([]Outcome, error) {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	ctx, span := observability.StartBatchSpan(ctx, len(jobs))
	defer span.End()
	start := time.Now()

	out := make([]Outcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = Outcome{Label: job.Label, Detail: job.Detail}
			results, err := e.Run(gctx, job.Input)
			if r, ok := e.opts.Observer.(batchRecorder); ok {
				r.RecordBatchJob(err)
			}
			if err != nil {
				out[i].Error = AsError(err)
				return nil
			}
			out[i].Results = results
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	var failed int
	for _, o := range out {
		if o.Failed() {
			failed++
		}
	}
	observability.RecordBatchResult(span, len(jobs)-failed, failed, time.Since(start))
	if err != nil {
		observability.RecordError(span, err)
		return out, canceled(err)
	}
	return out, nil
}
