package data

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/target/repo-analyzer/internal/migrate"
)

// RunMigrations applies the key store schema and returns the versions applied by this call.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) ([]string, error) {
	return migrate.Run(ctx, db, migrate.Options{Logger: logger})
}
