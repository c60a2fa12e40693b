package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"praondefoi/internal/amqp"
	"praondefoi/internal/core"
	"praondefoi/internal/export"
	"praondefoi/internal/finance"
	"praondefoi/internal/log"
	"praondefoi/internal/storage"
)

var (
	ErrUnknownFormat  = errors.New("unknown export format")
	ErrQueueDisabled  = errors.New("export queue not configured")
	ErrRunNotRunnable = errors.New("export run already claimed")
	// ErrRunInterrupted means a queued run was cancelled before it finished
	// and was put back to pending.
	ErrRunInterrupted = errors.New("export run interrupted")
)

// RunStore persists export runs.
type RunStore interface {
	CreateRun(ctx context.Context, run storage.Run) (storage.Run, error)
	MarkRunning(ctx context.Context, id string, leaseBefore time.Time) (bool, error)
	ReleaseRun(ctx context.Context, id string) error
	FinishRun(ctx context.Context, id string, out storage.Outcome) error
	GetRun(ctx context.Context, id string) (storage.Run, error)
	ListRuns(ctx context.Context, limit int) ([]storage.Run, error)
	ListStaleRuns(ctx context.Context, before time.Time, limit int) ([]storage.Run, error)
}

// Publisher hands a request to the export worker.
type Publisher interface {
	PublishExportRequest(ctx context.Context, msg *amqp.ExportRequestMessage) error
}

type ExportRequest struct {
	// RunID names a run created earlier by Enqueue. Empty starts a new one.
	RunID     string
	AccountID int64
	From      time.Time
	To        time.Time
	Format    string
}

// ExportService runs exports end to end and keeps their history.
type ExportService struct {
	exporter      *export.Exporter
	runs          RunStore
	sinks         map[string]export.Sink
	defaultFormat string
	publisher     Publisher
	lease         time.Duration
	logger        *log.Logger
	now           func() time.Time
	newID         func() string
}

func NewExportService(exporter *export.Exporter, runs RunStore, sinks map[string]export.Sink, defaultFormat string, publisher Publisher, logger *log.Logger) *ExportService {
	if logger == nil {
		logger = log.Nop()
	}
	return &ExportService{
		exporter:      exporter,
		runs:          runs,
		sinks:         sinks,
		defaultFormat: defaultFormat,
		publisher:     publisher,
		logger:        logger.WithComponent(log.ComponentExport),
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

// SetClaimLease sets how long a claim on a running run holds. Once it
// expires, the run may be claimed again. Zero, the default, never expires.
func (s *ExportService) SetClaimLease(d time.Duration) {
	s.lease = d
}

// Formats lists the configured sinks.
func (s *ExportService) Formats() []string {
	out := make([]string, 0, len(s.sinks))
	for name := range s.sinks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *ExportService) format(req ExportRequest) string {
	if req.Format != "" {
		return req.Format
	}
	return s.defaultFormat
}

func (s *ExportService) validate(req ExportRequest) error {
	if req.AccountID < 1 {
		return fmt.Errorf("invalid account id %d", req.AccountID)
	}
	if !req.To.IsZero() && req.To.Before(req.From) {
		return errors.New("period ends before it starts")
	}
	if _, ok := s.sinks[s.format(req)]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, s.format(req))
	}
	return nil
}

// Run executes an export and records the outcome. The sink is written only
// when every page was fetched.
//
// The returned error is the export's own failure; the run row already
// reflects it. A run created by Enqueue and already claimed by another
// worker yields ErrRunNotRunnable. A run created by Enqueue and cancelled
// before it finished is released back to pending with ErrRunInterrupted.
func (s *ExportService) Run(ctx context.Context, req ExportRequest) (storage.Run, error) {
	req.Format = s.format(req)

	var run storage.Run
	if req.RunID == "" {
		if err := s.validate(req); err != nil {
			return storage.Run{}, err
		}
		created, err := s.runs.CreateRun(ctx, storage.Run{
			ID: s.newID(), AccountID: req.AccountID, From: req.From, To: req.To, Format: req.Format,
		})
		if err != nil {
			return storage.Run{}, err
		}
		run = created
	} else {
		stored, err := s.runs.GetRun(ctx, req.RunID)
		if err != nil {
			return storage.Run{}, err
		}
		run = stored
	}

	var leaseBefore time.Time
	if s.lease > 0 {
		leaseBefore = s.now().Add(-s.lease)
	}
	claimed, err := s.runs.MarkRunning(ctx, run.ID, leaseBefore)
	if err != nil {
		return run, err
	}
	if !claimed {
		return run, fmt.Errorf("%w: %s", ErrRunNotRunnable, run.ID)
	}
	run.Status = storage.RunRunning

	out := s.execute(ctx, run)
	if out.err != nil && ctx.Err() != nil && req.RunID != "" {
		return s.release(ctx, run, out.err)
	}
	// Record the outcome even if the caller gave up.
	if err := s.runs.FinishRun(context.WithoutCancel(ctx), run.ID, out.Outcome); err != nil {
		return run, fmt.Errorf("record outcome: %w", err)
	}
	finished, err := s.runs.GetRun(context.WithoutCancel(ctx), run.ID)
	if err != nil {
		return run, err
	}
	return finished, out.err
}

// release puts an interrupted queued run back to pending so that its
// redelivered message or the stale pass runs it again.
func (s *ExportService) release(ctx context.Context, run storage.Run, cause error) (storage.Run, error) {
	bg := context.WithoutCancel(ctx)
	if err := s.runs.ReleaseRun(bg, run.ID); err != nil {
		return run, fmt.Errorf("release interrupted run: %w", err)
	}
	log.FromContextOr(ctx, s.logger.With(log.FieldRunID, run.ID)).
		WarnContext(bg, "Export interrupted, run released", log.FieldError, cause)
	run.Status = storage.RunPending
	return run, fmt.Errorf("%w: %w", ErrRunInterrupted, ctx.Err())
}

type result struct {
	storage.Outcome
	err error
}

func (s *ExportService) execute(ctx context.Context, run storage.Run) result {
	// The worker stores a run-scoped logger on ctx
	logger := log.FromContextOr(ctx, s.logger.With(log.FieldRunID, run.ID))
	fields := log.NewFields().WithOperation(log.OpExport).WithAccount(run.AccountID)
	fields[log.FieldSink] = run.Format

	sink, ok := s.sinks[run.Format]
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnknownFormat, run.Format)
		return result{Outcome: storage.Outcome{Status: storage.RunFailed, Error: err.Error()}, err: err}
	}

	q := finance.TransactionQuery{
		AccountID: run.AccountID,
		Filter:    finance.TransactionFilter{From: run.From, To: run.To},
	}
	res, err := s.exporter.Collect(ctx, q)
	switch {
	case errors.Is(err, core.ErrExportIncomplete):
		logger.WarnContext(ctx, "Export incomplete, sink not written", fields.WithError(err).ToSlice()...)
		return result{Outcome: storage.Outcome{
			Status: storage.RunIncomplete, Records: len(res.Transactions), Pages: res.Pages, Error: err.Error(),
		}, err: err}
	case err != nil:
		return result{Outcome: storage.Outcome{
			Status: storage.RunFailed, Pages: res.Pages, Error: err.Error(),
		}, err: err}
	}

	exp := export.NewExport(run.ID, run.AccountID, run.From, run.To, res.Transactions, s.now())
	ref, err := sink.Write(ctx, exp)
	if err != nil {
		err = fmt.Errorf("write %s: %w", sink.Name(), err)
		logger.ErrorContext(ctx, "Export sink failed", fields.WithError(err).ToSlice()...)
		return result{Outcome: storage.Outcome{
			Status: storage.RunFailed, Records: exp.Totals.Count, Pages: res.Pages, Error: err.Error(),
		}, err: err}
	}

	fields[log.FieldSinkRef] = ref
	fields[log.FieldRecords] = exp.Totals.Count
	logger.InfoContext(ctx, "Export published", fields.ToSlice()...)
	return result{Outcome: storage.Outcome{
		Status: storage.RunSucceeded, Records: exp.Totals.Count, Pages: res.Pages, SinkRef: ref,
	}}
}

// Enqueue records a pending run and hands it to the worker.
func (s *ExportService) Enqueue(ctx context.Context, req ExportRequest) (storage.Run, error) {
	if s.publisher == nil {
		return storage.Run{}, ErrQueueDisabled
	}
	req.Format = s.format(req)
	if err := s.validate(req); err != nil {
		return storage.Run{}, err
	}

	run, err := s.runs.CreateRun(ctx, storage.Run{
		ID: s.newID(), AccountID: req.AccountID, From: req.From, To: req.To, Format: req.Format,
	})
	if err != nil {
		return storage.Run{}, err
	}

	msg := amqp.NewExportRequestMessage(run.ID, run.AccountID, run.From, run.To, run.Format)
	if err := s.publisher.PublishExportRequest(ctx, msg); err != nil {
		err = fmt.Errorf("enqueue export: %w", err)
		if ferr := s.runs.FinishRun(context.WithoutCancel(ctx), run.ID, storage.Outcome{
			Status: storage.RunFailed, Error: err.Error(),
		}); ferr != nil {
			s.logger.ErrorContext(ctx, "Failed to record enqueue failure", log.FieldRunID, run.ID, log.FieldError, ferr)
		}
		return run, err
	}

	s.logger.InfoContext(ctx, "Export enqueued", log.NewFields().
		WithOperation(log.OpEnqueue).
		WithAccount(run.AccountID).ToSlice()...)
	return run, nil
}

// Runs lists recent runs, newest first.
func (s *ExportService) Runs(ctx context.Context, limit int) ([]storage.Run, error) {
	return s.runs.ListRuns(ctx, limit)
}

// Stale returns runs nobody has worked on for longer than age: pending runs
// whose queue message was lost, and running runs whose worker died.
func (s *ExportService) Stale(ctx context.Context, age time.Duration, limit int) ([]storage.Run, error) {
	return s.runs.ListStaleRuns(ctx, s.now().Add(-age), limit)
}
