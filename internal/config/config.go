package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Finance API
	APIBaseURL       string
	APIToken         string
	DefaultAccountID int64

	// Backend selection
	DataBackend string

	// Per-request timeouts
	SummaryTimeout    time.Duration
	InsightsTimeout   time.Duration
	ListTimeout       time.Duration
	ExportPageTimeout time.Duration

	// Export
	ExportMaxPageSize int
	ExportMaxPages    int
	ExportSink        string
	ExportDir         string

	// Category directory cache
	CategoryCacheTTL  time.Duration
	CategoryCacheSize int

	// Database (export run history)
	SQLiteDBPath string

	// AMQP (export jobs)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Export worker
	WorkerStaleAfter       time.Duration
	WorkerRecoveryInterval time.Duration
	WorkerBatchSize        int

	// Google Sheets sink
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Azure Blob sink
	BlobServiceURL  string
	BlobContainer   string
	BlobAccountName string
	BlobAccountKey  string

	LogLevel string
}

var (
	validBackends = []string{"http", "memory"}
	validSinks    = []string{"csv", "sheets", "blob"}
)

func Load() *Config {
	return &Config{
		APIBaseURL:       getEnv("API_BASE_URL", "http://localhost:5000"),
		APIToken:         getEnv("API_TOKEN", ""),
		DefaultAccountID: int64(getEnvInt("DEFAULT_ACCOUNT_ID", 1)),

		DataBackend: getEnv("DATA_BACKEND", "http"),

		SummaryTimeout:    getEnvDuration("SUMMARY_TIMEOUT", 5*time.Second),
		InsightsTimeout:   getEnvDuration("INSIGHTS_TIMEOUT", 8*time.Second),
		ListTimeout:       getEnvDuration("LIST_TIMEOUT", 10*time.Second),
		ExportPageTimeout: getEnvDuration("EXPORT_PAGE_TIMEOUT", 15*time.Second),

		ExportMaxPageSize: getEnvInt("EXPORT_MAX_PAGE_SIZE", 2000),
		ExportMaxPages:    getEnvInt("EXPORT_MAX_PAGES", 50),
		ExportSink:        getEnv("EXPORT_SINK", "csv"),
		ExportDir:         getEnv("EXPORT_DIR", "./exports"),

		CategoryCacheTTL:  getEnvDuration("CATEGORY_CACHE_TTL", 10*time.Minute),
		CategoryCacheSize: getEnvInt("CATEGORY_CACHE_SIZE", 500),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/praondefoi.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "praondefoi"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "export_requests"),

		WorkerStaleAfter:       getEnvDuration("WORKER_STALE_AFTER", 30*time.Minute),
		WorkerRecoveryInterval: getEnvDuration("WORKER_RECOVERY_INTERVAL", 5*time.Minute),
		WorkerBatchSize:        getEnvInt("WORKER_BATCH_SIZE", 10),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		BlobServiceURL:  getEnv("BLOB_SERVICE_URL", ""),
		BlobContainer:   getEnv("BLOB_CONTAINER", "exports"),
		BlobAccountName: getEnv("BLOB_ACCOUNT_NAME", ""),
		BlobAccountKey:  getEnv("BLOB_ACCOUNT_KEY", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if !contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "http" {
		if c.APIBaseURL == "" {
			errors = append(errors, "API base URL cannot be empty when using http backend")
		} else if u, err := url.Parse(c.APIBaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
	}

	if c.DefaultAccountID < 1 {
		errors = append(errors, fmt.Sprintf("invalid default account id %d: must be positive", c.DefaultAccountID))
	}

	for name, d := range map[string]time.Duration{
		"summary":     c.SummaryTimeout,
		"insights":    c.InsightsTimeout,
		"list":        c.ListTimeout,
		"export page": c.ExportPageTimeout,
	} {
		if d <= 0 {
			errors = append(errors, fmt.Sprintf("invalid %s timeout %v: must be positive", name, d))
		} else if d > 5*time.Minute {
			errors = append(errors, fmt.Sprintf("invalid %s timeout %v: must be at most 5 minutes", name, d))
		}
	}

	if c.ExportMaxPageSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid export page size %d: must be at least 1", c.ExportMaxPageSize))
	}
	if c.ExportMaxPages < 1 {
		errors = append(errors, fmt.Sprintf("invalid export page bound %d: must be at least 1", c.ExportMaxPages))
	}

	if !contains(validSinks, c.ExportSink) {
		errors = append(errors, fmt.Sprintf("invalid export sink '%s': must be one of %v", c.ExportSink, validSinks))
	}
	switch c.ExportSink {
	case "csv":
		if c.ExportDir == "" {
			errors = append(errors, "export directory cannot be empty when using csv sink")
		}
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets sink")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets sink")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	case "blob":
		if c.BlobServiceURL == "" {
			errors = append(errors, "BLOB_SERVICE_URL is required when using blob sink")
		}
		if c.BlobContainer == "" {
			errors = append(errors, "blob container cannot be empty when using blob sink")
		}
	}

	if c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.WorkerStaleAfter <= 0 || c.WorkerRecoveryInterval <= 0 {
		errors = append(errors, "worker stale age and recovery interval must be positive")
	} else if longest := time.Duration(c.ExportMaxPages) * c.ExportPageTimeout; c.WorkerStaleAfter <= longest {
		// A running claim older than this is taken over by another worker
		errors = append(errors, fmt.Sprintf("worker stale age %v must exceed the longest export (%v)", c.WorkerStaleAfter, longest))
	}
	if c.WorkerBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid worker batch size %d: must be at least 1", c.WorkerBatchSize))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
