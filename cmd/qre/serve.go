package main

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/efebarandurmaz/qre/internal/estimator"
	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/observability"
	"github.com/efebarandurmaz/qre/internal/program"
	"github.com/efebarandurmaz/qre/internal/server"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
)

// canaryBudget is how long the estimator health check may take before the
// service reports itself degraded.
const canaryBudget = 2 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		addr          string
		checkTemporal bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve estimates over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.serve(cmd.Context(), checkTemporal)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().BoolVar(&checkTemporal, "check-temporal", false, "Report Temporal reachability in /health")

	return cmd
}

func (a *app) serve(ctx context.Context, checkTemporal bool) error {
	cfg := a.cfg

	tp, err := observability.InitTracing(ctx, cfg.Tracing.Service("qre-server", version))
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	audit, err := cfg.Server.OpenAudit()
	if err != nil {
		return err
	}

	m := observability.Metrics()
	catalog := hardware.Default()
	est, err := a.estimator("", m)
	if err != nil {
		return err
	}

	health := server.NewHealthServer(&server.HealthConfig{Version: version})
	health.RegisterCheck("catalog", server.CatalogHealthChecker(catalog))
	health.RegisterCheck("estimator", server.EstimatorHealthChecker(
		estimator.New(estimator.Options{}), catalog, cfg.Estimation.Qubit, cfg.Estimation.QecScheme, canaryBudget))

	shutdown := server.NewShutdownHandler(&server.ShutdownConfig{
		Timeout: cfg.Server.ShutdownTimeout,
		Signals: []os.Signal{syscall.SIGTERM, syscall.SIGINT},
		Logger:  a.logger,
	})
	shutdown.AddHook(server.TracingShutdownHook(tp.Shutdown))
	if audit != nil {
		shutdown.AddHook(server.AuditLoggerShutdownHook(audit.Close))
	}

	if checkTemporal {
		tc, err := client.NewLazyClient(client.Options{
			HostPort:  cfg.Temporal.Host,
			Namespace: cfg.Temporal.Namespace,
			Logger:    tlog.NewStructuredLogger(a.logger),
		})
		if err != nil {
			return fmt.Errorf("temporal client: %w", err)
		}
		health.RegisterCheck("temporal", server.TemporalHealthChecker(func(ctx context.Context) error {
			_, err := tc.CheckHealth(ctx, &client.CheckHealthRequest{})
			return err
		}))
		shutdown.RegisterHook("temporal-client", 30, func(context.Context) error {
			tc.Close()
			return nil
		})
	}

	api := server.NewAPI(server.Options{
		Catalog:          catalog,
		Compilers:        program.DefaultRegistry(),
		Estimator:        est,
		Defaults:         cfg.Estimation.JobDefaults(),
		Metrics:          m,
		Audit:            audit,
		Logger:           a.logger,
		Health:           health,
		MaxBodyBytes:     cfg.Server.MaxBodyBytes,
		BatchConcurrency: cfg.Estimation.BatchConcurrency,
	})

	srv := server.NewServer(cfg.Server, api.Handler(), health, shutdown, a.logger)
	return srv.ListenAndServe()
}
