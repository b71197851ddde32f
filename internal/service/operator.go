package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
	"github.com/andresuchdata/pharmstock/backend-go/internal/normalize"
	apperrors "github.com/andresuchdata/pharmstock/backend-go/pkg/errors"
)

// validationError turns validator output into a field -> rule map.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.BadRequest(err.Error())
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		details[strings.ToLower(fe.Field())] = rule
	}
	return apperrors.Validation(details)
}

// CorrectionRequest is operator input for one product. Value is free text:
// a known category, or a molecule with Dosage. The explicit fields win
// when set.
type CorrectionRequest struct {
	Value    string `json:"value"`
	Molecule string `json:"molecule"`
	Dosage   string `json:"dosage"`
	Category string `json:"category"`
}

func (r CorrectionRequest) correction(s *CatalogueService, name string) domain.ManualCorrection {
	if r.Molecule == "" && r.Category == "" {
		return s.session.NewCorrection(name, r.Value, r.Dosage)
	}
	return domain.ManualCorrection{
		Name:     normalize.Sanitize(name),
		Molecule: normalize.Sanitize(r.Molecule),
		Dosage:   normalize.Sanitize(r.Dosage),
		Category: strings.TrimSpace(r.Category),
	}
}

// Corrections lists the stored overrides.
func (s *CatalogueService) Corrections() []domain.ManualCorrection {
	return s.session.Corrections()
}

// ApplyCorrection persists an override and applies it. Once a snapshot
// exists the catalogue is recommitted and its summary returned.
func (s *CatalogueService) ApplyCorrection(ctx context.Context, name string, req CorrectionRequest) (domain.ManualCorrection, error) {
	c := req.correction(s, name)
	c.UpdatedAt = s.clock()
	if c.Name == "" {
		return c, apperrors.Validation(map[string]string{"name": "required"})
	}
	if c.Empty() {
		return c, apperrors.Validation(map[string]string{"correction": "molecule, dosage or category required"})
	}

	if err := s.store.UpsertCorrection(ctx, c); err != nil {
		return c, err
	}
	snap, err := s.session.ApplyCorrection(c)
	if err != nil {
		return c, err
	}
	s.publish(ctx, snap)

	s.log.Info().Str("product", c.Name).Str("molecule", c.Molecule).Str("category", c.Category).Msg("correction applied")
	return c, nil
}

// RemoveCorrection deletes an override from the session and the store.
func (s *CatalogueService) RemoveCorrection(ctx context.Context, name string) error {
	snap, err := s.session.RemoveCorrection(name)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCorrection(ctx, normalize.Sanitize(name)); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	s.publish(ctx, snap)
	return nil
}

// ImportCorrections replaces every stored override, as restored from a
// backup file.
func (s *CatalogueService) ImportCorrections(ctx context.Context, list []domain.ManualCorrection) error {
	if err := s.store.ReplaceCorrections(ctx, list); err != nil {
		return err
	}
	s.session.SetCorrections(list)
	return nil
}

func (s *CatalogueService) Settings() domain.Settings {
	return s.session.Settings()
}

// UpdateSettings validates and persists next. Maps left out keep their
// current values. A loaded catalogue is recomputed with the new settings.
func (s *CatalogueService) UpdateSettings(ctx context.Context, next domain.Settings) (domain.Settings, error) {
	next = s.complete(next)
	if err := s.validate.Struct(next); err != nil {
		return domain.Settings{}, validationError(err)
	}
	if err := s.store.SaveSettings(ctx, next); err != nil {
		return domain.Settings{}, err
	}
	s.session.SetSettings(next)

	if s.session.Loaded() {
		if _, err := s.Recompute(ctx); err != nil {
			return next, err
		}
	}
	return next, nil
}
