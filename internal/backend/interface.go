package backend

import (
	"context"
	"time"

	"praondefoi/internal/finance"
	"praondefoi/internal/finance/httpapi"
)

// Backend represents a unified backend interface that provides all necessary operations
type Backend interface {
	finance.SummaryReader
	finance.TransactionLister
	finance.TransactionWriter
	finance.BudgetReader
	finance.BudgetWriter
	finance.BalanceReader
	finance.GoalStore
	finance.RecurrenceLister
	finance.TaxonomyReader
	finance.InsightsReader
	finance.StatementImporter
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Close runs Cleanup if there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// HTTP specific
	APIBaseURL        string
	APIToken          string
	Timeouts          httpapi.Timeouts
	CategoryCacheSize int
	CategoryCacheTTL  time.Duration

	// Memory backend specific
	DataDirectory string
	MaxPageSize   int
}

// BackendType represents the type of backend
type BackendType string

const (
	HTTPBackend   BackendType = "http"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case HTTPBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
