package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS manual_corrections (
		product_name TEXT PRIMARY KEY,
		molecule     TEXT NOT NULL DEFAULT '',
		dosage       TEXT NOT NULL DEFAULT '',
		category     TEXT NOT NULL DEFAULT '',
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS analysis_settings (
		id         SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		payload    JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS import_runs (
		id          UUID PRIMARY KEY,
		source      TEXT NOT NULL,
		kind        TEXT NOT NULL,
		status      TEXT NOT NULL,
		row_count   INTEGER NOT NULL DEFAULT 0,
		month       TEXT NOT NULL DEFAULT '',
		withdrawals INTEGER NOT NULL DEFAULT 0,
		message     TEXT NOT NULL DEFAULT '',
		imported_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_import_runs_imported_at ON import_runs (imported_at DESC)`,
}

// Migrate creates the tables if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	return db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for i, stmt := range migrations {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %d: %w", i, err)
			}
		}
		log.Info().Int("statements", len(migrations)).Msg("schema up to date")
		return nil
	})
}
