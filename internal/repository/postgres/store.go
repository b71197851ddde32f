package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
	"github.com/andresuchdata/pharmstock/backend-go/internal/repository"
	apperrors "github.com/andresuchdata/pharmstock/backend-go/pkg/errors"
)

// Store implements repository.Store on Postgres.
type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

var _ repository.Store = (*Store)(nil)

const (
	listCorrectionsQuery = `
		SELECT product_name, molecule, dosage, category, updated_at
		FROM manual_corrections
		ORDER BY product_name`

	upsertCorrectionQuery = `
		INSERT INTO manual_corrections (product_name, molecule, dosage, category, updated_at)
		VALUES (:product_name, :molecule, :dosage, :category, :updated_at)
		ON CONFLICT (product_name) DO UPDATE SET
			molecule = EXCLUDED.molecule,
			dosage = EXCLUDED.dosage,
			category = EXCLUDED.category,
			updated_at = EXCLUDED.updated_at`

	deleteCorrectionQuery = `DELETE FROM manual_corrections WHERE product_name = $1`

	truncateCorrectionsQuery = `DELETE FROM manual_corrections`

	getSettingsQuery = `SELECT payload FROM analysis_settings WHERE id = 1`

	saveSettingsQuery = `
		INSERT INTO analysis_settings (id, payload, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`

	recordImportQuery = `
		INSERT INTO import_runs (id, source, kind, status, row_count, month, withdrawals, message, imported_at)
		VALUES (:id, :source, :kind, :status, :row_count, :month, :withdrawals, :message, :imported_at)`

	listImportsQuery = `
		SELECT id, source, kind, status, row_count, month, withdrawals, message, imported_at
		FROM import_runs
		ORDER BY imported_at DESC
		LIMIT $1`
)

func (s *Store) ListCorrections(ctx context.Context) ([]domain.ManualCorrection, error) {
	var out []domain.ManualCorrection
	if err := s.db.SelectContext(ctx, &out, listCorrectionsQuery); err != nil {
		return nil, fmt.Errorf("error listing corrections: %w", err)
	}
	return out, nil
}

func (s *Store) UpsertCorrection(ctx context.Context, c domain.ManualCorrection) error {
	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, upsertCorrectionQuery, c); err != nil {
			return fmt.Errorf("error saving correction %s: %w", c.Name, err)
		}
		return nil
	})
}

func (s *Store) DeleteCorrection(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, deleteCorrectionQuery, name)
	if err != nil {
		return fmt.Errorf("error deleting correction %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error deleting correction %s: %w", name, err)
	}
	if n == 0 {
		return apperrors.NotFound("correction " + name)
	}
	return nil
}

func (s *Store) ReplaceCorrections(ctx context.Context, list []domain.ManualCorrection) error {
	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, truncateCorrectionsQuery); err != nil {
			return fmt.Errorf("error clearing corrections: %w", err)
		}
		for _, c := range list {
			if _, err := tx.NamedExecContext(ctx, upsertCorrectionQuery, c); err != nil {
				return fmt.Errorf("error saving correction %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

func (s *Store) GetSettings(ctx context.Context) (domain.Settings, bool, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload, getSettingsQuery)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Settings{}, false, nil
	}
	if err != nil {
		return domain.Settings{}, false, fmt.Errorf("error loading settings: %w", err)
	}

	var settings domain.Settings
	if err := json.Unmarshal(payload, &settings); err != nil {
		return domain.Settings{}, false, fmt.Errorf("error decoding settings: %w", err)
	}
	return settings, true, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.Settings) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error encoding settings: %w", err)
	}
	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, saveSettingsQuery, payload); err != nil {
			return fmt.Errorf("error saving settings: %w", err)
		}
		return nil
	})
}

func (s *Store) RecordImport(ctx context.Context, o domain.ImportOutcome) error {
	if _, err := s.db.NamedExecContext(ctx, recordImportQuery, o); err != nil {
		return fmt.Errorf("error recording import %s: %w", o.Source, err)
	}
	return nil
}

func (s *Store) ListImports(ctx context.Context, limit int) ([]domain.ImportOutcome, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.ImportOutcome
	if err := s.db.SelectContext(ctx, &out, listImportsQuery, limit); err != nil {
		return nil, fmt.Errorf("error listing imports: %w", err)
	}
	return out, nil
}
