// backend-go/internal/repository/repository.go
package repository

import (
	"context"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
)

// CorrectionRepository persists operator overrides keyed by product name.
type CorrectionRepository interface {
	ListCorrections(ctx context.Context) ([]domain.ManualCorrection, error)
	UpsertCorrection(ctx context.Context, c domain.ManualCorrection) error
	DeleteCorrection(ctx context.Context, name string) error
	ReplaceCorrections(ctx context.Context, list []domain.ManualCorrection) error
}

// SettingsRepository persists the analysis thresholds. GetSettings reports
// false when nothing was saved yet.
type SettingsRepository interface {
	GetSettings(ctx context.Context) (domain.Settings, bool, error)
	SaveSettings(ctx context.Context, s domain.Settings) error
}

// ImportLog records the outcome of every imported file, newest first.
type ImportLog interface {
	RecordImport(ctx context.Context, o domain.ImportOutcome) error
	ListImports(ctx context.Context, limit int) ([]domain.ImportOutcome, error)
}

// Store groups the repositories the service depends on.
type Store interface {
	CorrectionRepository
	SettingsRepository
	ImportLog
}
