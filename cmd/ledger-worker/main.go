package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"eventledger/internal/amqp"
	"eventledger/internal/backend"
	"eventledger/internal/cli"
	applog "eventledger/internal/log"
	"eventledger/internal/metrics"
	"eventledger/internal/services"
	"eventledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, applog.ComponentWorker)

	logger.Info("Starting ledger-worker",
		applog.FieldOperation, applog.OpStartup,
		"backend", cfg.ReportBackend,
		"sync_interval", cfg.SyncInterval.String())

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, stop := cli.SignalContext()
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid report backend", applog.FieldError, err.Error(),
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		os.Exit(1)
	}
	sink, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateReportSink(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize report sink", applog.FieldError, err.Error())
		os.Exit(1)
	}

	m := metrics.New()
	reports := worker.NewReportWorker(repo, sink, m)

	processor := services.NewReconcileProcessor(reports, services.ReconcileProcessorConfig{
		Interval:   cfg.SyncInterval,
		RunOnStart: true,
	})

	g, gctx := errgroup.WithContext(ctx)

	if err := processor.Start(gctx); err != nil {
		logger.Error("Failed to start reconciliation", applog.FieldError, err.Error())
		os.Exit(1)
	}
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return processor.Stop(stopCtx)
	})

	if cfg.AMQPURL != "" {
		client := amqp.NewLazyClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		defer client.Close()
		g.Go(func() error {
			err := client.ConsumeLedgerChanges(gctx, reports.HandleChange)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled - relying on periodic reconciliation only")
	}

	if cfg.WorkerMetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", m.Handler())
		srv := &http.Server{Addr: ":" + cfg.WorkerMetricsPort, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			return cli.Serve(gctx, logger, srv, 5*time.Second)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
