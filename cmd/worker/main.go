package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/efebarandurmaz/qre/internal/config"
	"github.com/efebarandurmaz/qre/internal/estimator"
	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/observability"
	"github.com/efebarandurmaz/qre/internal/server"
	temporalmod "github.com/efebarandurmaz/qre/internal/temporal"
	temporalclient "go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
)

var version = "dev"

func main() {
	configPath := "configs/qre.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	if err := run(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := observability.SetupLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	ctx := context.Background()
	tp, err := observability.InitTracing(ctx, cfg.Tracing.Service("qre-worker", version))
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	audit, err := cfg.Server.OpenAudit()
	if err != nil {
		return err
	}

	objective, err := estimator.ParseObjective(cfg.Estimation.Optimize)
	if err != nil {
		return err
	}
	temporalmod.SetDependencies(&temporalmod.Dependencies{
		Estimator: estimator.New(estimator.Options{
			Optimize: objective,
			Logger:   logger,
			Observer: observability.Metrics(),
		}),
		Catalog:  hardware.Default(),
		Defaults: cfg.Estimation.JobDefaults(),
		Audit:    audit,
	})

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}

	w, err := temporalmod.StartWorker(c, cfg.Temporal.TaskQueue)
	if err != nil {
		c.Close()
		return err
	}
	logger.Info("worker started", "task_queue", cfg.Temporal.TaskQueue, "namespace", cfg.Temporal.Namespace)

	shutdown := server.NewShutdownHandler(&server.ShutdownConfig{
		Timeout: cfg.Server.ShutdownTimeout,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Logger:  logger,
	})
	shutdown.AddHook(server.TemporalWorkerShutdownHook(w.Stop))
	shutdown.RegisterHook("temporal-client", 30, func(context.Context) error {
		c.Close()
		return nil
	})
	shutdown.AddHook(server.TracingShutdownHook(tp.Shutdown))
	if audit != nil {
		shutdown.AddHook(server.AuditLoggerShutdownHook(audit.Close))
	}

	shutdown.Start()
	shutdown.Wait()
	logger.Info("worker stopped")
	return nil
}
