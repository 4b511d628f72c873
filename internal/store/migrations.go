package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// migration is one forward step in bringing a database from version-1 to
// version. Migrations never run out of order and never run twice; the
// applied version is tracked in schema_version (SPEC_FULL.md supplement --
// the source system had no equivalent of an on-device schema migration
// since it distributed schema as code, not as a persisted file).
type migration struct {
	version int
	apply   func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{version: 1, apply: createInitialTables},
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return wrapSQLError("migrate:init", err)
	}

	current := 0
	row := db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`)
	if err := row.Scan(&current); err != nil && err != sql.ErrNoRows {
		return wrapSQLError("migrate:read-version", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return wrapSQLError("migrate:begin", err)
		}
		if err := m.apply(ctx, tx); err != nil {
			tx.Rollback()
			return wrapSQLError(fmt.Sprintf("migrate:v%d", m.version), err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
			tx.Rollback()
			return wrapSQLError("migrate:clear-version", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, m.version); err != nil {
			tx.Rollback()
			return wrapSQLError("migrate:write-version", err)
		}
		if err := tx.Commit(); err != nil {
			return wrapSQLError("migrate:commit", err)
		}
		current = m.version
	}
	return nil
}

func createInitialTables(ctx context.Context, tx *sql.Tx) error {
	for _, ks := range Schema {
		cols := []string{
			"id TEXT PRIMARY KEY",
			"organization_id TEXT NOT NULL",
			"updated_at INTEGER NOT NULL",
			"deleted INTEGER NOT NULL DEFAULT 0",
			"is_synced INTEGER NOT NULL DEFAULT 0",
			"sync_pending INTEGER NOT NULL DEFAULT 0",
			"server_version TEXT NOT NULL DEFAULT ''",
			"payload BLOB NOT NULL",
		}
		for _, col := range ks.IndexedColumns {
			cols = append(cols, col+" TEXT NOT NULL DEFAULT ''")
		}
		table := tableName(ks.Kind)
		create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(cols, ", "))
		if _, err := tx.ExecContext(ctx, create); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_org ON %s (organization_id)", table, table)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_updated ON %s (updated_at)", table, table)); err != nil {
			return err
		}
		for _, col := range ks.IndexedColumns {
			idxName := fmt.Sprintf("idx_%s_%s", table, col)
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", idxName, table, col)); err != nil {
				return err
			}
		}
	}
	return nil
}
