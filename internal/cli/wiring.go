package cli

import (
	"context"
	"fmt"

	"praondefoi/internal/account"
	"praondefoi/internal/backend"
	"praondefoi/internal/blob"
	"praondefoi/internal/config"
	"praondefoi/internal/export"
	"praondefoi/internal/finance"
	"praondefoi/internal/log"
	"praondefoi/internal/services"
	"praondefoi/internal/sheets/google"
)

// OpenBackend builds the configured finance backend. The caller runs Cleanup.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateBackend(ctx, bcfg)
}

// Accounts resolves the account every command acts on: one set on the
// context with account.WithAccount, else DEFAULT_ACCOUNT_ID.
func Accounts(cfg *config.Config) *account.Resolver {
	return account.NewResolver(account.ContextSession, cfg.DefaultAccountID)
}

// BuildSinks returns every sink the configuration enables. The CSV sink is
// always present; Sheets and Blob need their credentials.
func BuildSinks(ctx context.Context, cfg *config.Config, logger *log.Logger) (map[string]export.Sink, error) {
	sinks := map[string]export.Sink{
		"csv": export.NewCSVSink(cfg.ExportDir),
	}

	if cfg.GoogleSpreadsheetID != "" {
		s, err := google.NewSink(ctx, google.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("sheets sink: %w", err)
		}
		sinks[s.Name()] = s
	}

	if cfg.BlobServiceURL != "" {
		s, err := blob.NewSink(blob.Config{
			ServiceURL:  cfg.BlobServiceURL,
			Container:   cfg.BlobContainer,
			AccountName: cfg.BlobAccountName,
			AccountKey:  cfg.BlobAccountKey,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("blob sink: %w", err)
		}
		sinks[s.Name()] = s
	}

	if _, ok := sinks[cfg.ExportSink]; !ok {
		return nil, fmt.Errorf("export sink %q is not configured", cfg.ExportSink)
	}
	return sinks, nil
}

// NewExportService wires the exporter, run history and sinks together.
// publisher may be nil when no queue is configured.
func NewExportService(cfg *config.Config, lister finance.TransactionLister, runs services.RunStore,
	sinks map[string]export.Sink, publisher services.Publisher, logger *log.Logger) *services.ExportService {
	exporter := export.New(lister, export.Config{
		MaxPageSize: cfg.ExportMaxPageSize,
		MaxPages:    cfg.ExportMaxPages,
		PageTimeout: cfg.ExportPageTimeout,
	}, logger)
	svc := services.NewExportService(exporter, runs, sinks, cfg.ExportSink, publisher, logger)
	svc.SetClaimLease(cfg.WorkerStaleAfter)
	return svc
}
