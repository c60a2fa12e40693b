package backend

import (
	"fmt"

	"praondefoi/internal/config"
	"praondefoi/internal/finance/httpapi"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		APIBaseURL: appConfig.APIBaseURL,
		APIToken:   appConfig.APIToken,
		Timeouts: httpapi.Timeouts{
			Summary:  appConfig.SummaryTimeout,
			Insights: appConfig.InsightsTimeout,
			List:     appConfig.ListTimeout,
			Write:    appConfig.ListTimeout,
		},
		CategoryCacheSize: appConfig.CategoryCacheSize,
		CategoryCacheTTL:  appConfig.CategoryCacheTTL,

		// Memory backend uses default data directory
		DataDirectory: "data",
		MaxPageSize:   appConfig.ExportMaxPageSize,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case HTTPBackend:
		if c.APIBaseURL == "" {
			return fmt.Errorf("API base URL is required for http backend")
		}
	case MemoryBackend:
		// DataDirectory will default to "data" if empty
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{HTTPBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
