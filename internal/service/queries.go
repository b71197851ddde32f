package service

import (
	"context"
	"strings"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
	"github.com/andresuchdata/pharmstock/backend-go/internal/normalize"
	"github.com/andresuchdata/pharmstock/backend-go/internal/report"
	apperrors "github.com/andresuchdata/pharmstock/backend-go/pkg/errors"
)

// Summary returns the dashboard summary of the current snapshot.
func (s *CatalogueService) Summary(ctx context.Context) (domain.DashboardSummary, error) {
	snap, err := s.snapshot()
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	if cached, ok, err := s.cache.GetSummary(ctx); err == nil && ok && cached.SnapshotID == snap.ID {
		return cached, nil
	} else if err != nil {
		s.log.Warn().Err(err).Msg("cache get summary failed")
	}

	if err := s.cache.SetSummary(ctx, snap.Summary); err != nil {
		s.log.Warn().Err(err).Msg("cache set summary failed")
	}
	return snap.Summary, nil
}

// Product returns one product by name, following merges.
func (s *CatalogueService) Product(name string) (*domain.Product, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	p, ok := snap.Lookup(name)
	if !ok {
		return nil, apperrors.NotFound("product " + normalize.Sanitize(name))
	}
	return p, nil
}

func matches(p *domain.Product, f domain.ProductFilter) bool {
	if len(f.Alerts) > 0 {
		found := false
		for _, a := range f.Alerts {
			if p.Alert == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ABC != "" && p.ABC != f.ABC {
		return false
	}
	if f.XYZ != "" && p.XYZ != f.XYZ {
		return false
	}
	if f.Category != "" && p.Category != f.Category && !strings.EqualFold(p.ManualCategory, string(f.Category)) {
		return false
	}
	if f.Molecule != "" && !strings.EqualFold(p.Molecule, f.Molecule) {
		return false
	}
	if q := normalize.Sanitize(f.Search); q != "" {
		if !strings.Contains(p.Name, q) && !strings.Contains(strings.ToUpper(p.Molecule), q) {
			return false
		}
	}
	return true
}

// Products lists the products matching filter, riskiest first, one page at
// a time.
func (s *CatalogueService) Products(ctx context.Context, filter domain.ProductFilter) (*domain.ProductPage, error) {
	if err := s.validate.Struct(filter); err != nil {
		return nil, validationError(err)
	}
	filter = filter.Normalize()

	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	if page, ok, err := s.cache.GetProducts(ctx, snap.ID, filter); err == nil && ok {
		return page, nil
	} else if err != nil {
		s.log.Warn().Err(err).Msg("cache get products failed")
	}

	var selected []*domain.Product
	for _, p := range snap.Products() {
		if matches(p, filter) {
			selected = append(selected, p)
		}
	}
	report.ByRisk(selected)

	page := paginate(selected, filter.Page, filter.PageSize)
	if err := s.cache.SetProducts(ctx, snap.ID, filter, page); err != nil {
		s.log.Warn().Err(err).Msg("cache set products failed")
	}
	return page, nil
}

func paginate(items []*domain.Product, page, size int) *domain.ProductPage {
	total := len(items)
	out := &domain.ProductPage{
		Items:      []*domain.Product{},
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: (total + size - 1) / size,
	}
	start := (page - 1) * size
	if start >= total {
		return out
	}
	end := min(start+size, total)
	out.Items = items[start:end]
	return out
}

// Unmatched lists products without a resolved molecule, or with
// approximate set the products matched on a relaxed dosage.
func (s *CatalogueService) Unmatched(approximate bool) ([]*domain.Product, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	out := []*domain.Product{}
	for _, p := range snap.Products() {
		if approximate {
			if p.MatchConfidence == domain.MatchApproximate {
				out = append(out, p)
			}
			continue
		}
		if p.Molecule == "" && p.ManualCategory == "" && !p.Withdrawn {
			out = append(out, p)
		}
	}
	report.ByRisk(out)
	return out, nil
}

// Generics returns the known generics of a molecule at a dosage.
func (s *CatalogueService) Generics(molecule, dosage string) ([]domain.ReferenceEntry, error) {
	if strings.TrimSpace(molecule) == "" || strings.TrimSpace(dosage) == "" {
		return nil, apperrors.Validation(map[string]string{"molecule": "required", "dosage": "required"})
	}
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Generics(molecule, dosage), nil
}

func (s *CatalogueService) MoleculeGroups() ([]*domain.MoleculeGroup, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Result.MoleculeGroups, nil
}

func (s *CatalogueService) CategoryGroups() ([]*domain.CategoryGroup, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Result.CategoryGroups, nil
}

func (s *CatalogueService) Suppliers() ([]*domain.Supplier, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Result.Suppliers, nil
}

// MergedInto returns the duplicate -> canonical names of the last dedup.
func (s *CatalogueService) MergedInto() map[string]string {
	return s.session.MergedInto()
}
