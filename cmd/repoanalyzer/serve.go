package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"github.com/target/repo-analyzer/config"
	"github.com/target/repo-analyzer/internal/bootstrap"
)

// loadRuntime reads configuration and installs the process logger.
func loadRuntime(cmd *cli.Command) (*config.AppConfig, *slog.Logger, error) {
	cfg, err := bootstrap.LoadConfig(cmd.String("env"))
	if err != nil {
		return nil, nil, err
	}
	logger := bootstrap.InitLogger(cfg.LogLevel)
	return &cfg, logger, nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	if err = bootstrap.ValidateServiceConfig(cfg); err != nil {
		return err
	}
	logStartupInfo(ctx, logger, cfg)

	infra, err := initInfrastructure(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.close(ctx, logger)

	if infra.db != nil {
		if cfg.Postgres.RunMigrationsOnStart {
			if err = bootstrap.RunMigrations(ctx, infra.db, logger); err != nil {
				return err
			}
		} else {
			logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
		}
	}

	verifier, err := bootstrap.BuildVerifier(ctx, bootstrap.AuthConfig{Auth: cfg.Auth, Logger: logger})
	if err != nil {
		return err
	}

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      cfg,
		DB:          infra.db,
		RedisClient: infra.redis,
		Verifier:    verifier,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := services.Observability.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close metrics client failed", "error", cerr)
		}
	}()

	return bootstrap.RunServicesWithShutdown(ctx, &bootstrap.ServiceOrchestrationConfig{
		Config:   cfg,
		Services: services,
		Logger:   logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting repoanalyzer",
		"enabled_services", bootstrap.GetEnabledServices(cfg),
		"registry_backend", cfg.Registry.Backend,
		"keystore_backend", cfg.Keystore.Backend,
		"workers", cfg.Analysis.Workers,
		"queue_size", cfg.Analysis.QueueSize,
		"output_dir", cfg.Analysis.OutputDir,
	)
}

// infrastructure holds the connections the configured backends need. Either may be nil.
type infrastructure struct {
	db    *sql.DB
	redis redis.UniversalClient
}

func (i infrastructure) close(ctx context.Context, logger *slog.Logger) {
	if i.redis != nil {
		if cerr := i.redis.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close redis failed", "error", cerr)
		}
	}
	if i.db != nil {
		if cerr := i.db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database failed", "error", cerr)
		}
	}
}

// initInfrastructure connects only what the configured registry and keystore backends use.
func initInfrastructure(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (infrastructure, error) {
	var infra infrastructure
	dbCfg := bootstrap.DatabaseConfig{
		DBConfig:    cfg.Postgres,
		RedisConfig: cfg.Redis,
		Logger:      logger,
	}

	if cfg.Keystore.UsesPostgres() {
		db, err := bootstrap.ConnectDB(ctx, dbCfg)
		if err != nil {
			return infra, fmt.Errorf("connect db: %w", err)
		}
		infra.db = db
	}

	if cfg.Registry.Backend == config.RegistryBackendRedis {
		client, err := bootstrap.ConnectRedis(ctx, dbCfg)
		if err != nil {
			if infra.db != nil {
				if cerr := infra.db.Close(); cerr != nil {
					return infrastructure{}, fmt.Errorf("connect redis: %w",
						errors.Join(err, fmt.Errorf("close database: %w", cerr)))
				}
			}
			return infrastructure{}, fmt.Errorf("connect redis: %w", err)
		}
		infra.redis = client
	}

	return infra, nil
}
