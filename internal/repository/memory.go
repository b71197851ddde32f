package repository

import (
	"context"
	"slices"
	"strings"
	"sync"

	apperrors "github.com/andresuchdata/pharmstock/backend-go/pkg/errors"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
)

// Memory is a process-local Store used when no database is configured.
type Memory struct {
	mu          sync.RWMutex
	corrections map[string]domain.ManualCorrection
	settings    *domain.Settings
	imports     []domain.ImportOutcome
}

func NewMemory() *Memory {
	return &Memory{corrections: make(map[string]domain.ManualCorrection)}
}

var _ Store = (*Memory)(nil)

func (m *Memory) ListCorrections(ctx context.Context) ([]domain.ManualCorrection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.ManualCorrection, 0, len(m.corrections))
	for _, c := range m.corrections {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.ManualCorrection) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (m *Memory) UpsertCorrection(ctx context.Context, c domain.ManualCorrection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corrections[c.Name] = c
	return nil
}

func (m *Memory) DeleteCorrection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.corrections[name]; !ok {
		return apperrors.NotFound("correction " + name)
	}
	delete(m.corrections, name)
	return nil
}

func (m *Memory) ReplaceCorrections(ctx context.Context, list []domain.ManualCorrection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corrections = make(map[string]domain.ManualCorrection, len(list))
	for _, c := range list {
		m.corrections[c.Name] = c
	}
	return nil
}

func (m *Memory) GetSettings(ctx context.Context) (domain.Settings, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return domain.Settings{}, false, nil
	}
	return domain.Settings{}.Merge(*m.settings), true, nil
}

func (m *Memory) SaveSettings(ctx context.Context, s domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := domain.Settings{}.Merge(s)
	m.settings = &saved
	return nil
}

func (m *Memory) RecordImport(ctx context.Context, o domain.ImportOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imports = append(m.imports, o)
	return nil
}

func (m *Memory) ListImports(ctx context.Context, limit int) ([]domain.ImportOutcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.ImportOutcome, 0, len(m.imports))
	for i := len(m.imports) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.imports[i])
	}
	return out, nil
}
