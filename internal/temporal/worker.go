package temporal

import (
	"context"
	"fmt"
	"time"

	"github.com/efebarandurmaz/qre/internal/observability"
	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// StartWorker creates and starts a Temporal worker.
func StartWorker(c client.Client, taskQueue string) (worker.Worker, error) {
	w := worker.New(c, taskQueue, worker.Options{})

	w.RegisterWorkflow(BatchEstimationWorkflow)
	w.RegisterActivity(EstimateActivity)

	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}
	return w, nil
}

// RunBatch starts a batch workflow and waits for its result. The batch ID
// doubles as the workflow ID and is generated when empty. audit may be nil.
func RunBatch(ctx context.Context, c client.Client, taskQueue string, input BatchInput, audit *observability.AuditLogger) (*BatchOutput, error) {
	if input.BatchID == "" {
		input.BatchID = "qre-batch-" + uuid.NewString()
	}
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        input.BatchID,
		TaskQueue: taskQueue,
	}, BatchEstimationWorkflow, input)
	if err != nil {
		return nil, fmt.Errorf("starting batch workflow: %w", err)
	}
	audit.LogWorkflowStart(ctx, run.GetID(), len(input.Jobs))
	start := time.Now()

	var out BatchOutput
	err = run.Get(ctx, &out)
	audit.LogWorkflowEnd(ctx, run.GetID(), err == nil && out.Failed == 0, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("batch workflow %s: %w", run.GetID(), err)
	}
	return &out, nil
}
