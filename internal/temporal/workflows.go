// Package temporal runs batch estimation as a durable Temporal workflow.
package temporal

import (
	"time"

	"github.com/efebarandurmaz/qre/internal/estimator"
	"github.com/efebarandurmaz/qre/internal/jobs"
	"github.com/efebarandurmaz/qre/internal/program"
	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// DefaultConcurrency bounds estimate activities in flight per workflow.
const DefaultConcurrency = 8

// BatchInput holds the workflow parameters. Every job is estimated for the
// same logical counts.
type BatchInput struct {
	BatchID     string
	Counts      program.LogicalCounts
	Jobs        []jobs.Job
	Concurrency int
}

// BatchOutput holds the workflow result, with outcomes in job order.
type BatchOutput struct {
	BatchID   string
	Outcomes  []estimator.Outcome
	Succeeded int
	Failed    int
}

// EstimateInput is the payload of one EstimateActivity.
type EstimateInput struct {
	Counts program.LogicalCounts
	Job    jobs.Job
}

// BatchEstimationWorkflow runs one EstimateActivity per job, at most
// Concurrency at a time. Estimation failures are recorded in the job's
// outcome; only activity failures that survive retries fail the workflow.
func BatchEstimationWorkflow(ctx workflow.Context, input BatchInput) (*BatchOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	batchID := input.BatchID
	if batchID == "" {
		batchID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}
	limit := input.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	logger.Info("batch started", "batchID", batchID, "jobs", len(input.Jobs), "concurrency", limit)

	out := &BatchOutput{BatchID: batchID, Outcomes: make([]estimator.Outcome, len(input.Jobs))}
	for start := 0; start < len(input.Jobs); start += limit {
		end := min(start+limit, len(input.Jobs))
		futures := make([]workflow.Future, 0, end-start)
		for _, job := range input.Jobs[start:end] {
			f := workflow.ExecuteActivity(ctx, EstimateActivity, EstimateInput{Counts: input.Counts, Job: job})
			futures = append(futures, f)
		}
		for i, f := range futures {
			if err := f.Get(ctx, &out.Outcomes[start+i]); err != nil {
				logger.Error("estimate activity failed", "job", input.Jobs[start+i].Label, "error", err)
				return nil, err
			}
		}
	}

	for _, o := range out.Outcomes {
		if o.Failed() {
			out.Failed++
		} else {
			out.Succeeded++
		}
	}
	logger.Info("batch completed", "batchID", batchID, "succeeded", out.Succeeded, "failed", out.Failed)
	return out, nil
}
