package backend

import (
	"context"
	"fmt"

	"praondefoi/internal/cache"
	"praondefoi/internal/finance/httpapi"
	"praondefoi/internal/finance/memory"
	"praondefoi/internal/log"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Nop()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case HTTPBackend:
		return f.createHTTPBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createHTTPBackend(config Config) (*BackendResult, error) {
	var (
		categories *cache.LRUCache[httpapi.CategoryKey, string]
		cleanup    CleanupFunc
	)
	if config.CategoryCacheSize > 0 && config.CategoryCacheTTL > 0 {
		categories = cache.NewLRUCache[httpapi.CategoryKey, string](config.CategoryCacheSize, config.CategoryCacheTTL)
		manager := cache.NewManager(f.logger)
		manager.Register(categories)
		manager.StartCleanup(config.CategoryCacheTTL)
		cleanup = func() error {
			manager.Stop()
			return nil
		}
	}

	client, err := httpapi.New(httpapi.Config{
		BaseURL:       config.APIBaseURL,
		Tokens:        httpapi.StaticToken(config.APIToken),
		Timeouts:      config.Timeouts,
		Logger:        f.logger,
		CategoryCache: categories,
	})
	if err != nil {
		if cleanup != nil {
			_ = cleanup()
		}
		return nil, fmt.Errorf("failed to initialize API client: %w", err)
	}

	f.logger.Info("Initialized HTTP backend",
		"base_url", config.APIBaseURL,
		"category_cache", categories != nil)

	return &BackendResult{
		Backend: client,
		Cleanup: cleanup,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data" // Default directory
	}

	store := memory.NewFromFiles(dataDir, memory.WithMaxPageSize(config.MaxPageSize))

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Backend: store,
		Cleanup: nil, // No cleanup needed for memory backend
	}, nil
}
