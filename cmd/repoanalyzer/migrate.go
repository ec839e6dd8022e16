package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/target/repo-analyzer/internal/bootstrap"
)

const defaultMigrationTimeout = 5 * time.Minute

func migrateAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultMigrationTimeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database failed", "error", cerr)
		}
	}()

	return bootstrap.RunMigrations(ctx, db, logger)
}
