package main

import (
	"fmt"
	"os"
	"time"

	"github.com/efebarandurmaz/qre/internal/estimator"
	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/jobs"
	"github.com/efebarandurmaz/qre/internal/metrics"
	"github.com/efebarandurmaz/qre/internal/program"
	"github.com/efebarandurmaz/qre/internal/server"
	"github.com/efebarandurmaz/qre/internal/temporal"
	"github.com/efebarandurmaz/qre/internal/tui"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
)

type batchFlags struct {
	jobsPath    string
	countsPath  string
	compiler    string
	optimize    string
	concurrency int
	useTemporal bool
	jsonOutput  bool
	summary     bool
}

func newBatchCmd(a *app) *cobra.Command {
	var f batchFlags

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Estimate one program under every parameter set of a jobs file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.jobsPath, "jobs", "", "Jobs file (YAML or JSON list of {label, detail, params})")
	fl.StringVar(&f.countsPath, "counts", "", "Program file, or - for stdin")
	fl.StringVar(&f.compiler, "compiler", "", "Program compiler (default: by file extension)")
	fl.StringVar(&f.optimize, "optimize", "", "Re-optimize budget splits for qubits or runtime")
	fl.IntVar(&f.concurrency, "concurrency", 0, "Jobs in flight (default: config batch_concurrency)")
	fl.BoolVar(&f.useTemporal, "temporal", false, "Run the batch as a Temporal workflow")
	fl.BoolVar(&f.jsonOutput, "json", false, "Output outcomes as JSON")
	fl.BoolVar(&f.summary, "summary", false, "Print a run summary to stderr")
	_ = cmd.MarkFlagRequired("jobs")
	_ = cmd.MarkFlagRequired("counts")

	return cmd
}

func (a *app) runBatch(cmd *cobra.Command, f batchFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	flush, err := a.startTracing(ctx, "qre")
	if err != nil {
		return err
	}
	defer func() { _ = flush(ctx) }()

	list, err := jobs.Load(f.jobsPath)
	if err != nil {
		return err
	}
	src, err := program.ReadSource(f.countsPath, cmd.InOrStdin())
	if err != nil {
		return err
	}
	reg := program.DefaultRegistry()
	counts, err := jobs.CompileSource(ctx, reg, f.compiler, src)
	if err != nil {
		return err
	}

	run := metrics.New()
	run.CollectSource(src, compilerName(reg, f.compiler, src), counts)
	concurrency := f.concurrency
	if concurrency <= 0 {
		concurrency = a.cfg.Estimation.BatchConcurrency
	}

	var (
		batchID  string
		outcomes []estimator.Outcome
	)
	if f.useTemporal {
		batchID, outcomes, err = a.batchTemporal(cmd, counts, list, concurrency)
	} else {
		batchID = uuid.NewString()
		outcomes, err = a.batchLocal(cmd, counts, list, concurrency, f.optimize, run)
	}
	if err != nil {
		return err
	}

	if f.summary {
		run.Finish()
		run.PrintSummary(os.Stderr)
	}
	if f.jsonOutput {
		return writeJSON(out, server.BatchResponse{BatchID: batchID, Items: outcomes})
	}
	fmt.Fprintln(out, tui.RenderOutcomes(outcomes, tui.DefaultStyles()))
	return nil
}

func (a *app) batchLocal(cmd *cobra.Command, counts program.LogicalCounts, list []jobs.Job, concurrency int, optimize string, run *metrics.RunMetrics) ([]estimator.Outcome, error) {
	d := a.cfg.Estimation.JobDefaults()
	for i := range list {
		list[i].Params = list[i].Params.WithDefaults(d)
	}
	resolved, err := jobs.Resolve(hardware.Default(), list, counts)
	if err != nil {
		return nil, err
	}
	est, err := a.estimator(optimize, run)
	if err != nil {
		return nil, err
	}
	return est.Batch(cmd.Context(), resolved, concurrency)
}

// batchTemporal hands the jobs to a worker, which applies its own defaults.
func (a *app) batchTemporal(cmd *cobra.Command, counts program.LogicalCounts, list []jobs.Job, concurrency int) (string, []estimator.Outcome, error) {
	c, err := client.Dial(client.Options{
		HostPort:  a.cfg.Temporal.Host,
		Namespace: a.cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(a.logger),
	})
	if err != nil {
		return "", nil, fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	audit, err := a.cfg.Server.OpenAudit()
	if err != nil {
		return "", nil, err
	}
	defer audit.Close()

	start := time.Now()
	res, err := temporal.RunBatch(cmd.Context(), c, a.cfg.Temporal.TaskQueue, temporal.BatchInput{
		Counts:      counts,
		Jobs:        list,
		Concurrency: concurrency,
	}, audit)
	if err != nil {
		return "", nil, err
	}
	a.logger.Info("batch workflow completed", "batch_id", res.BatchID,
		"succeeded", res.Succeeded, "failed", res.Failed, "duration", time.Since(start))
	return res.BatchID, res.Outcomes, nil
}
