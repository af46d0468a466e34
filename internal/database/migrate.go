package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"go-gin-trip-booking/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate 依序套用尚未記錄於 schema_migrations 的內嵌 migration，每個檔案一個交易
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	log := logger.WithComponent("migrate")
	for _, name := range names {
		applied, err := applyMigration(ctx, pool, name)
		if err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
		if applied {
			log.Info("migration applied", zap.String("version", name))
		}
	}
	return nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, name string) (bool, error) {
	body, err := migrationFS.ReadFile(name)
	if err != nil {
		return false, err
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	// 同時啟動多個實例時只讓一個執行 migration
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(724201)`); err != nil {
		return false, err
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, name,
	).Scan(&exists); err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if _, err := tx.Exec(ctx, string(body)); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}
