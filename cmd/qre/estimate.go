package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/efebarandurmaz/qre/internal/estimator"
	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/jobs"
	"github.com/efebarandurmaz/qre/internal/metrics"
	"github.com/efebarandurmaz/qre/internal/model"
	"github.com/efebarandurmaz/qre/internal/program"
	"github.com/efebarandurmaz/qre/internal/server"
	"github.com/efebarandurmaz/qre/internal/tui"
	"github.com/spf13/cobra"
)

type estimateFlags struct {
	compiler      string
	qubit         string
	qec           string
	budget        float64
	policy        string
	maxRounds     int
	maxQubits     uint64
	maxDuration   string
	maxTFactories uint64
	depthFactor   float64
	optimize      string
	frontier      bool
	jsonOutput    bool
	summary       bool
	all           bool
	interactive   bool
}

func newEstimateCmd(a *app) *cobra.Command {
	var f estimateFlags

	cmd := &cobra.Command{
		Use:   "estimate <file|->",
		Short: "Estimate the physical resources of a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := f.params(cmd)
			if err != nil {
				return err
			}
			return a.runEstimate(cmd, args[0], params, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.compiler, "compiler", "", "Program compiler (default: by file extension)")
	fl.StringVar(&f.qubit, "qubit", "", "Qubit preset")
	fl.StringVar(&f.qec, "qec", "", "QEC scheme preset")
	fl.Float64Var(&f.budget, "budget", 0, "Total error budget")
	fl.StringVar(&f.policy, "policy", "", "Budget policy: uniform or adaptive")
	fl.IntVar(&f.maxRounds, "max-rounds", 0, "Maximum distillation rounds")
	fl.Uint64Var(&f.maxQubits, "max-qubits", 0, "Maximum physical qubits")
	fl.StringVar(&f.maxDuration, "max-duration", "", "Maximum runtime, e.g. 1s or 250ms")
	fl.Uint64Var(&f.maxTFactories, "max-t-factories", 0, "Maximum T factories")
	fl.Float64Var(&f.depthFactor, "depth-factor", 0, "Logical depth factor")
	fl.StringVar(&f.optimize, "optimize", "", "Re-optimize the budget split for qubits or runtime")
	fl.BoolVar(&f.frontier, "frontier", false, "Estimate the qubits/runtime frontier")
	fl.BoolVar(&f.jsonOutput, "json", false, "Output the result as JSON")
	fl.BoolVar(&f.summary, "summary", false, "Print a run summary to stderr")
	fl.BoolVar(&f.all, "all", false, "Show every report section")
	fl.BoolVarP(&f.interactive, "interactive", "i", false, "Browse the frontier interactively")

	return cmd
}

// params maps the flags onto job parameters. Flags left at their zero value
// keep the configured defaults.
func (f estimateFlags) params(cmd *cobra.Command) (jobs.Params, error) {
	p := jobs.Params{
		QubitParams:  hardware.QubitSpec{Name: f.qubit},
		QecScheme:    hardware.SchemeSpec{Name: f.qec},
		BudgetPolicy: f.policy,
	}
	if cmd.Flags().Changed("budget") {
		p.ErrorBudget = &jobs.ErrorBudget{Total: f.budget}
	}
	if f.frontier {
		p.EstimateType = model.Frontier
	}

	var c jobs.Constraints
	changed := false
	if cmd.Flags().Changed("max-rounds") {
		c.MaxDistillationRounds = &f.maxRounds
		changed = true
	}
	if cmd.Flags().Changed("max-qubits") {
		c.MaxPhysicalQubits = &f.maxQubits
		changed = true
	}
	if f.maxDuration != "" {
		d, err := hardware.ParseDuration(f.maxDuration)
		if err != nil {
			return jobs.Params{}, fmt.Errorf("--max-duration: %w", err)
		}
		c.MaxDuration = &d
		changed = true
	}
	if cmd.Flags().Changed("max-t-factories") {
		c.MaxTFactories = &f.maxTFactories
		changed = true
	}
	if cmd.Flags().Changed("depth-factor") {
		c.LogicalDepthFactor = &f.depthFactor
		changed = true
	}
	if changed {
		p.Constraints = &c
	}
	return p, nil
}

func (a *app) runEstimate(cmd *cobra.Command, path string, params jobs.Params, f estimateFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	flush, err := a.startTracing(ctx, "qre")
	if err != nil {
		return err
	}
	defer func() { _ = flush(ctx) }()

	run := metrics.New()
	defer func() {
		if f.summary {
			run.Finish()
			run.PrintSummary(os.Stderr)
		}
	}()

	src, err := program.ReadSource(path, cmd.InOrStdin())
	if err != nil {
		return err
	}
	reg := program.DefaultRegistry()
	counts, err := jobs.CompileSource(ctx, reg, f.compiler, src)
	if err != nil {
		return a.fail(out, f.jsonOutput, err)
	}
	run.CollectSource(src, compilerName(reg, f.compiler, src), counts)

	in, err := params.WithDefaults(a.cfg.Estimation.JobDefaults()).Input(hardware.Default(), counts)
	if err != nil {
		return a.fail(out, f.jsonOutput, err)
	}
	est, err := a.estimator(f.optimize, run)
	if err != nil {
		return err
	}

	results, err := est.Run(ctx, in)
	if err != nil {
		return a.fail(out, f.jsonOutput, err)
	}
	head := results[0]
	run.SetHeadline(metrics.Headline{
		PhysicalQubits: head.PhysicalCounts.PhysicalQubits,
		RuntimeNs:      uint64(head.PhysicalCounts.Runtime),
		CodeDistance:   head.LogicalQubit.CodeDistance,
		TFactories:     numTFactories(head),
	})

	return a.printResults(out, results, in.EstimateType == model.Frontier, f)
}

func (a *app) printResults(out io.Writer, results []model.Result, frontier bool, f estimateFlags) error {
	styles := tui.DefaultStyles()
	switch {
	case f.jsonOutput && frontier:
		return writeJSON(out, server.FrontierResponse{Status: model.StatusSuccess, Frontier: results})
	case f.jsonOutput:
		return writeJSON(out, results[0])
	case frontier && f.interactive:
		chosen, err := tui.RunExplorer(results)
		if err != nil || chosen < 0 {
			return err
		}
		results = results[chosen : chosen+1]
	case frontier:
		fmt.Fprintln(out, tui.RenderFrontier(results, styles))
		return nil
	}

	view, err := tui.RenderResult(results[0], styles, f.all)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, view)
	return nil
}

// fail writes the failure envelope in JSON mode and leaves other modes to
// the caller.
func (a *app) fail(out io.Writer, jsonOutput bool, err error) error {
	a.logger.Debug("estimate failed", "error", err)
	if !jsonOutput {
		return err
	}
	if werr := writeJSON(out, server.ErrorResponse{Status: "Failed", Error: estimator.AsError(err)}); werr != nil {
		return werr
	}
	return errReported
}

func compilerName(reg *program.Registry, name string, src program.Source) string {
	if name != "" {
		return name
	}
	if c, err := reg.ForSource(src.Name); err == nil {
		return c.Name()
	}
	return ""
}

func numTFactories(r model.Result) uint64 {
	if n := r.PhysicalCounts.Breakdown.NumTFactories; n != nil {
		return *n
	}
	return 0
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
