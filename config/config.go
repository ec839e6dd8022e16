package config

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - analysis.go: Analysis pipeline, tool location and cleanup configuration
//   - auth.go: Bearer token authentication for key management endpoints
//   - database.go: Postgres key store and Redis registry configuration
//   - http.go: HTTP server configuration
//   - observability.go: Metrics and failure notification configuration
//   - services.go: Service mode and registry eviction configuration
type AppConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Analysis pipeline configuration.
	Analysis AnalysisConfig `envPrefix:"ANALYSIS_"`
	Cleanup  CleanupConfig  `envPrefix:"CLEANUP_"`

	// Job registry configuration.
	Registry RegistryConfig `envPrefix:"REGISTRY_"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Keystore KeystoreConfig

	// Authentication configuration
	Auth AuthConfig `envPrefix:"AUTH_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Services is a comma-delimited list of enabled services.
	// Valid values: http, reaper
	Services string `env:"SERVICES" envDefault:"http,reaper"`

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Analysis.Sanitize()
	c.Cleanup.Sanitize()
	c.Registry.Sanitize()
	c.Keystore.Sanitize()
	c.Auth.Sanitize()
	c.Observability.Sanitize()
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsReaperEnabled returns true if the registry reaper is enabled. It runs even with eviction
// disabled so that stalled Running jobs are still failed.
func (c *AppConfig) IsReaperEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeReaper]
}
