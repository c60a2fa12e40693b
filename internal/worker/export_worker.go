// Package worker runs queued exports.
package worker

import (
	"context"
	"errors"
	"time"

	"praondefoi/internal/amqp"
	"praondefoi/internal/log"
	"praondefoi/internal/services"
	"praondefoi/internal/storage"
)

// Runner executes runs by id and finds the ones left behind.
type Runner interface {
	Run(ctx context.Context, req services.ExportRequest) (storage.Run, error)
	Stale(ctx context.Context, age time.Duration, limit int) ([]storage.Run, error)
}

// ExportWorker turns export requests into finished runs.
type ExportWorker struct {
	runner    Runner
	staleAge  time.Duration
	batchSize int
	logger    *log.Logger
}

func NewExportWorker(runner Runner, staleAge time.Duration, batchSize int, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Nop()
	}
	if batchSize < 1 {
		batchSize = 10
	}
	return &ExportWorker{
		runner:    runner,
		staleAge:  staleAge,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleExportRequest runs one queued export. Outcomes recorded on the run,
// including failed and incomplete exports, are acknowledged. Interrupted
// runs and errors that left the run unrecorded are returned, so the
// delivery is retried.
func (w *ExportWorker) HandleExportRequest(ctx context.Context, msg *amqp.ExportRequestMessage) error {
	logger := w.logger.With(log.FieldRunID, msg.RunID)
	ctx = log.WithContext(ctx, logger)

	logger.InfoContext(ctx, "Processing export request",
		log.FieldAccountID, msg.AccountID,
		"format", msg.Format)

	run, err := w.runner.Run(ctx, services.ExportRequest{RunID: msg.RunID})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, services.ErrRunNotRunnable):
		logger.DebugContext(ctx, "Export run already claimed, skipping")
		return nil
	case errors.Is(err, services.ErrRunInterrupted):
		// Back to pending; the nack puts the message back on the queue
		logger.WarnContext(ctx, "Export interrupted, requeueing", log.FieldError, err)
		return err
	case errors.Is(err, storage.ErrRunNotFound):
		logger.WarnContext(ctx, "Export request for unknown run dropped")
		return nil
	case run.Status.Terminal():
		logger.WarnContext(ctx, "Export run finished without publishing",
			"status", run.Status,
			log.FieldError, err)
		return nil
	}
	return err
}

// ProcessStaleRuns runs requests whose queue message never arrived.
func (w *ExportWorker) ProcessStaleRuns(ctx context.Context) error {
	runs, err := w.runner.Stale(ctx, w.staleAge, w.batchSize)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "Recovering stale export runs", "count", len(runs))

	succeeded, failed := 0, 0
	for _, run := range runs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		runCtx := log.WithContext(ctx, w.logger.With(log.FieldRunID, run.ID))
		done, err := w.runner.Run(runCtx, services.ExportRequest{RunID: run.ID})
		if errors.Is(err, services.ErrRunNotRunnable) {
			continue
		}
		if err != nil || done.Status != storage.RunSucceeded {
			failed++
			continue
		}
		succeeded++
	}

	w.logger.InfoContext(ctx, "Stale run recovery completed",
		"total", len(runs),
		"succeeded", succeeded,
		"failed", failed)
	return nil
}
