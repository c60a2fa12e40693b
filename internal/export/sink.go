package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"praondefoi/internal/core"
)

// Sink publishes a finished export and returns a reference to it (a path,
// URL or spreadsheet range).
type Sink interface {
	Name() string
	Write(ctx context.Context, exp Export) (string, error)
}

var csvHeader = []string{"ID", "Data", "Descrição", "Tipo", "Valor", "Categoria", "Moeda"}

// WriteCSV encodes a header and one row per transaction, in order.
func WriteCSV(w io.Writer, exp Export) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, tx := range exp.Transactions {
		if err := cw.Write(Row(tx)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Row renders one transaction with the column order of the CSV header.
func Row(tx core.Transaction) []string {
	return []string{
		fmt.Sprint(tx.ID),
		tx.OccurredAt.Format("2006-01-02"),
		tx.Description,
		tx.Kind.String(),
		tx.Amount.StringFixed(2),
		tx.CategoryName,
		tx.Currency,
	}
}

// FileName names the export file after the run, or after the account and
// generation time when there is no run.
func FileName(exp Export) string {
	if exp.RunID != "" {
		return fmt.Sprintf("transacoes-%s.csv", exp.RunID)
	}
	return fmt.Sprintf("transacoes-%d-%s.csv", exp.AccountID, exp.GeneratedAt.Format("20060102-150405"))
}

// CSVSink writes exports as files under a directory.
type CSVSink struct {
	dir string
}

func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{dir: dir}
}

func (s *CSVSink) Name() string { return "csv" }

// Write creates the file atomically: a partial file is never left under the
// final name.
func (s *CSVSink) Write(_ context.Context, exp Export) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	final := filepath.Join(s.dir, FileName(exp))

	tmp, err := os.CreateTemp(s.dir, ".export-*.csv")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, exp); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close csv: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("publish csv: %w", err)
	}
	return final, nil
}
