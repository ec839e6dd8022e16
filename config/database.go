package config

import (
	"fmt"
	"strings"
)

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"repoanalyzer"`
	Password string `env:"PASSWORD"                envDefault:"repoanalyzer"`
	Name     string `env:"NAME"                    envDefault:"repoanalyzer"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// DSN renders a libpq keyword/value connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelPort       string   `env:"SENTINEL_PORT"        envDefault:"26379"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// KeystoreBackend selects where app registrations and API keys live.
type KeystoreBackend string

const (
	// KeystoreBackendMemory keeps keys in process memory. Development only.
	KeystoreBackendMemory KeystoreBackend = "memory"
	// KeystoreBackendPostgres persists keys in Postgres.
	KeystoreBackendPostgres KeystoreBackend = "postgres"
)

// UnmarshalText implements encoding.TextUnmarshaler for KeystoreBackend.
func (b *KeystoreBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "memory", "postgres":
		*b = KeystoreBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid KeystoreBackend: %q (valid options: memory, postgres)", v)
	}
}

// KeystoreConfig contains API key storage configuration.
type KeystoreConfig struct {
	Backend KeystoreBackend `env:"KEYSTORE_BACKEND" envDefault:"memory"`

	// EncryptionKey seals stored keys at rest: 64 hex characters or any passphrase.
	// Empty leaves keys readable in the database.
	EncryptionKey string `env:"KEYSTORE_ENCRYPTION_KEY"`
}

// Sanitize applies guardrails to keystore configuration values.
func (k *KeystoreConfig) Sanitize() {
	if k.Backend == "" {
		k.Backend = KeystoreBackendMemory
	}
	k.EncryptionKey = strings.TrimSpace(k.EncryptionKey)
}

// UsesPostgres reports whether the Postgres connection is needed.
func (k *KeystoreConfig) UsesPostgres() bool {
	return k.Backend == KeystoreBackendPostgres
}
