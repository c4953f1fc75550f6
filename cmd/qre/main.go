package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/efebarandurmaz/qre/internal/config"
	"github.com/efebarandurmaz/qre/internal/errs"
	"github.com/efebarandurmaz/qre/internal/estimator"
	"github.com/efebarandurmaz/qre/internal/observability"
	"github.com/efebarandurmaz/qre/internal/tui"
	"github.com/spf13/cobra"
)

var version = "dev"

// errReported marks failures the command already wrote to its output.
var errReported = errors.New("reported")

type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
	logger     *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(&app{}).ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errReported) {
			printError(err)
		}
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "qre",
		Short:         "Physical resource estimation for fault-tolerant quantum programs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "configs/qre.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (overrides config)")

	rootCmd.AddCommand(newEstimateCmd(a), newBatchCmd(a), newPresetsCmd(a), newServeCmd(a))
	return rootCmd
}

func printError(err error) {
	if errs.KindOf(err) != "" {
		fmt.Fprintln(os.Stderr, tui.RenderError(err, tui.DefaultStyles()))
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	logger, err := observability.SetupLogger(os.Stderr, level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// estimator builds an estimator with the configured objective unless
// objective is set.
func (a *app) estimator(objective string, observer estimator.StageObserver) (*estimator.Estimator, error) {
	if objective == "" {
		objective = a.cfg.Estimation.Optimize
	}
	obj, err := estimator.ParseObjective(objective)
	if err != nil {
		return nil, err
	}
	return estimator.New(estimator.Options{
		Optimize: obj,
		Logger:   a.logger,
		Observer: observer,
	}), nil
}

// startTracing exports spans when an endpoint is configured and returns the
// flush function.
func (a *app) startTracing(ctx context.Context, service string) (func(context.Context) error, error) {
	tp, err := observability.InitTracing(ctx, a.cfg.Tracing.Service(service, version))
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	return tp.Shutdown, nil
}
