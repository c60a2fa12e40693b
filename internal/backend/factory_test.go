package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"praondefoi/internal/config"
	"praondefoi/internal/finance/httpapi"
	"praondefoi/internal/finance/memory"
)

func TestFromAppConfig(t *testing.T) {
	app := &config.Config{
		DataBackend:       "http",
		APIBaseURL:        "https://api.test",
		SummaryTimeout:    5 * time.Second,
		InsightsTimeout:   8 * time.Second,
		ListTimeout:       10 * time.Second,
		ExportMaxPageSize: 2000,
		CategoryCacheSize: 10,
		CategoryCacheTTL:  time.Minute,
	}
	cfg, err := FromAppConfig(app)
	require.NoError(t, err)
	assert.Equal(t, HTTPBackend, cfg.Type)
	assert.Equal(t, 8*time.Second, cfg.Timeouts.Insights)
	assert.Equal(t, 2000, cfg.MaxPageSize)

	app.DataBackend = "sqlite"
	_, err = FromAppConfig(app)
	assert.Error(t, err)

	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestCreateBackend(t *testing.T) {
	f := NewFactory(nil)

	res, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, res.Backend)
	assert.Nil(t, res.Cleanup)

	res, err = f.CreateBackend(context.Background(), Config{
		Type:              HTTPBackend,
		APIBaseURL:        "http://localhost:5000",
		CategoryCacheSize: 10,
		CategoryCacheTTL:  time.Minute,
	})
	require.NoError(t, err)
	assert.IsType(t, &httpapi.Client{}, res.Backend)
	require.NotNil(t, res.Cleanup)
	assert.NoError(t, res.Cleanup())

	_, err = f.CreateBackend(context.Background(), Config{Type: HTTPBackend})
	assert.Error(t, err)

	_, err = f.CreateBackend(context.Background(), Config{Type: "sheets"})
	assert.Error(t, err)
}

func TestGetBackendTypeStrings(t *testing.T) {
	assert.Equal(t, []string{"http", "memory"}, GetBackendTypeStrings())
}
