package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
	apperrors "github.com/andresuchdata/pharmstock/backend-go/pkg/errors"
)

func TestMemory_Corrections(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.UpsertCorrection(ctx, domain.ManualCorrection{Name: "B", Molecule: "M1"}))
	require.NoError(t, m.UpsertCorrection(ctx, domain.ManualCorrection{Name: "A", Category: "parapharm"}))
	require.NoError(t, m.UpsertCorrection(ctx, domain.ManualCorrection{Name: "B", Molecule: "M2"}))

	list, err := m.ListCorrections(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Name)
	assert.Equal(t, "M2", list[1].Molecule)

	require.NoError(t, m.DeleteCorrection(ctx, "A"))
	assert.ErrorIs(t, m.DeleteCorrection(ctx, "A"), apperrors.ErrNotFound)

	require.NoError(t, m.ReplaceCorrections(ctx, []domain.ManualCorrection{{Name: "Z"}}))
	list, _ = m.ListCorrections(ctx)
	assert.Equal(t, []domain.ManualCorrection{{Name: "Z"}}, list)
}

func TestMemory_Settings(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok, err := m.GetSettings(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	s := domain.DefaultSettings()
	require.NoError(t, m.SaveSettings(ctx, s))
	s.TargetMonths["AX"] = 9

	got, ok, err := m.GetSettings(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3.0, got.TargetMonths["AX"], "saved settings are copied")
	assert.Equal(t, 15.0, got.AlertSecurity)
}

func TestMemory_Imports(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, src := range []string{"a", "b", "c"} {
		require.NoError(t, m.RecordImport(ctx, domain.ImportOutcome{Source: src}))
	}

	list, err := m.ListImports(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].Source)
	assert.Equal(t, "b", list[1].Source)

	all, _ := m.ListImports(ctx, 0)
	assert.Len(t, all, 3)
}
