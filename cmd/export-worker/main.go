package main

import (
	"context"
	"errors"
	"os"
	"time"

	"praondefoi/internal/amqp"
	"praondefoi/internal/cli"
	"praondefoi/internal/log"
	"praondefoi/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)

	logger.Info("Starting export-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize finance backend", log.FieldError, err)
		os.Exit(1)
	}
	defer res.Close()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	sinks, err := cli.BuildSinks(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize export sinks", log.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	svc := cli.NewExportService(cfg, res.Backend, repo, sinks, amqpClient, logger)
	exportWorker := worker.NewExportWorker(svc, cfg.WorkerStaleAfter, cfg.WorkerBatchSize, logger)

	logger.Info("Export worker ready",
		"sinks", svc.Formats(),
		"default_sink", cfg.ExportSink,
		"queue", cfg.AMQPQueue)

	// Pick up runs whose message was lost while the worker was down
	if err := exportWorker.ProcessStaleRuns(ctx); err != nil {
		logger.Error("Failed startup recovery", log.FieldError, err)
	}

	consumeDone := make(chan struct{})
	go func() {
		defer close(consumeDone)
		if err := amqpClient.ConsumeExportRequests(ctx, exportWorker.HandleExportRequest); err != nil &&
			!errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
			cancel()
		}
	}()

	go func() {
		ticker := time.NewTicker(cfg.WorkerRecoveryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := exportWorker.ProcessStaleRuns(ctx); err != nil && ctx.Err() == nil {
					logger.Error("Periodic recovery failed", log.FieldError, err)
				}
			}
		}
	}()

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		cancel()
		<-consumeDone
	})
	select {
	case <-shutdownCtx.Done():
		<-done
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}
}
