// Package google publishes exports to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"praondefoi/internal/core"
	"praondefoi/internal/export"
	"praondefoi/internal/log"
)

const (
	DefaultTransactionsSheet = "Transações"
	DefaultSummarySheet      = "Resumo"
)

type Config struct {
	SpreadsheetID string
	// Service account credentials, inline or as a file path. JSON wins.
	ServiceAccountJSON string
	ServiceAccountFile string

	TransactionsSheet string
	SummarySheet      string

	// Endpoint and HTTPClient override the API target, for tests.
	Endpoint   string
	HTTPClient *http.Client
}

// Sink writes each export into two tabs: one row per transaction and a
// summary of the totals. Both tabs are replaced on every write.
type Sink struct {
	svc               *gsheet.Service
	spreadsheetID     string
	transactionsSheet string
	summarySheet      string
	logger            *log.Logger
}

// Ensure interface conformance
var _ export.Sink = (*Sink)(nil)

func NewSink(ctx context.Context, cfg Config, logger *log.Logger) (*Sink, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	s := &Sink{
		svc:               svc,
		spreadsheetID:     id,
		transactionsSheet: cfg.TransactionsSheet,
		summarySheet:      cfg.SummarySheet,
		logger:            logger,
	}
	if s.transactionsSheet == "" {
		s.transactionsSheet = DefaultTransactionsSheet
	}
	if s.summarySheet == "" {
		s.summarySheet = DefaultSummarySheet
	}
	return s, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, cfg Config, logger *log.Logger) (*gsheet.Service, error) {
	opts := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}

	if cfg.Endpoint != "" {
		opts = append(opts, goption.WithEndpoint(cfg.Endpoint), goption.WithoutAuthentication())
		if cfg.HTTPClient != nil {
			opts = append(opts, goption.WithHTTPClient(cfg.HTTPClient))
		}
		return gsheet.NewService(ctx, opts...)
	}

	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		logger.DebugContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(cfg.ServiceAccountJSON)
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		logger.DebugContext(ctx, "Reading credentials from file", "path", cfg.ServiceAccountFile)
		b, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	opts = append(opts, goption.WithCredentialsJSON(credentialsJSON))
	if cfg.HTTPClient != nil {
		opts = append(opts, goption.WithHTTPClient(cfg.HTTPClient))
	}
	service, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (s *Sink) Name() string { return "sheets" }

// Write replaces both tabs with the export and returns the transactions range.
func (s *Sink) Write(ctx context.Context, exp export.Export) (string, error) {
	if s.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if err := s.ensureSheets(ctx, s.transactionsSheet, s.summarySheet); err != nil {
		return "", err
	}

	rows := transactionRows(exp.Transactions)
	ref := fmt.Sprintf("%s!A1:G%d", quote(s.transactionsSheet), len(rows))
	if err := s.replace(ctx, s.transactionsSheet, ref, rows); err != nil {
		return "", err
	}

	summary := summaryRows(exp)
	summaryRef := fmt.Sprintf("%s!A1:B%d", quote(s.summarySheet), len(summary))
	if err := s.replace(ctx, s.summarySheet, summaryRef, summary); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "Export written to spreadsheet", log.NewFields().
		WithAccount(exp.AccountID).
		WithOperation(log.OpExport).ToSlice()...)
	return ref, nil
}

// ensureSheets adds any missing tab.
func (s *Sink) ensureSheets(ctx context.Context, titles ...string) error {
	doc, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet %s: %w", s.spreadsheetID, err)
	}
	existing := map[string]bool{}
	for _, sh := range doc.Sheets {
		if sh.Properties != nil {
			existing[sh.Properties.Title] = true
		}
	}

	var reqs []*gsheet.Request
	for _, title := range titles {
		if existing[title] {
			continue
		}
		reqs = append(reqs, &gsheet.Request{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		})
	}
	if len(reqs) == 0 {
		return nil
	}
	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add sheets: %w", err)
	}
	return nil
}

func (s *Sink) replace(ctx context.Context, sheet, rng string, rows [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, quote(sheet), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", sheet, err)
	}
	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func transactionRows(txs []core.Transaction) [][]any {
	rows := make([][]any, 0, len(txs)+1)
	rows = append(rows, []any{"ID", "Data", "Descrição", "Tipo", "Valor", "Categoria", "Moeda"})
	for _, tx := range txs {
		rows = append(rows, []any{
			tx.ID,
			tx.OccurredAt.Format("2006-01-02"),
			tx.Description,
			tx.Kind.String(),
			tx.Amount.InexactFloat64(),
			tx.CategoryName,
			tx.Currency,
		})
	}
	return rows
}

func summaryRows(exp export.Export) [][]any {
	period := "-"
	if !exp.From.IsZero() || !exp.To.IsZero() {
		period = fmt.Sprintf("%s a %s", day(exp.From), day(exp.To))
	}
	return [][]any{
		{"Conta", exp.AccountID},
		{"Período", period},
		{"Registros", exp.Totals.Count},
		{"Entradas", exp.Totals.Income.InexactFloat64()},
		{"Saídas", exp.Totals.Expense.InexactFloat64()},
		{"Saldo", exp.Totals.Balance.InexactFloat64()},
		{"Gerado em", exp.GeneratedAt.Format(time.RFC3339)},
	}
}

func day(t time.Time) string {
	if t.IsZero() {
		return "…"
	}
	return t.Format("02/01/2006")
}

// quote wraps a sheet title for A1 notation.
func quote(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
