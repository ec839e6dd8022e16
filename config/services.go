package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP API and the analysis worker pool.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeReaper runs the job registry reaper.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: http, reaper)", serviceName)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// RegistryBackend selects where job status is kept.
type RegistryBackend string

const (
	// RegistryBackendMemory keeps jobs in process memory.
	RegistryBackendMemory RegistryBackend = "memory"
	// RegistryBackendRedis shares jobs between instances through Redis.
	RegistryBackendRedis RegistryBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for RegistryBackend.
func (b *RegistryBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "memory", "redis":
		*b = RegistryBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid RegistryBackend: %q (valid options: memory, redis)", v)
	}
}

// RegistryConfig contains job registry and reaper configuration.
type RegistryConfig struct {
	Backend RegistryBackend `env:"BACKEND" envDefault:"memory"`

	// KeyPrefix namespaces Redis keys.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"repoanalyzer:"`

	// JobTTL is how long a Completed or Failed job stays queryable. Zero disables eviction.
	JobTTL time.Duration `env:"JOB_TTL" envDefault:"24h"`

	// StaleRunningTTL fails Running jobs whose pipeline stopped reporting, e.g. after a crash.
	StaleRunningTTL time.Duration `env:"STALE_RUNNING_TTL" envDefault:"6h"`

	// ReapInterval is the reaper tick interval.
	ReapInterval time.Duration `env:"REAP_INTERVAL" envDefault:"10m"`
}

// Sanitize applies guardrails to registry configuration values.
func (r *RegistryConfig) Sanitize() {
	if r.Backend == "" {
		r.Backend = RegistryBackendMemory
	}
	if r.KeyPrefix = strings.TrimSpace(r.KeyPrefix); r.KeyPrefix == "" {
		r.KeyPrefix = "repoanalyzer:"
	}
	if r.JobTTL < 0 {
		r.JobTTL = 0
	}
	// A pipeline clones, checks out twice and runs the tool twice; anything shorter would evict
	// healthy jobs.
	if r.StaleRunningTTL < 30*time.Minute {
		r.StaleRunningTTL = 30 * time.Minute
	}
	if r.ReapInterval < 1*time.Minute {
		r.ReapInterval = 1 * time.Minute
	}
}

// EvictionEnabled reports whether terminal jobs are ever evicted.
func (r *RegistryConfig) EvictionEnabled() bool {
	return r.JobTTL > 0
}
