package analytics

import (
	"maps"
	"slices"
	"strings"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
)

// MoleculeKey is the uppercased molecule|dosage group key.
func MoleculeKey(molecule, dosage string) string {
	return strings.ToUpper(molecule + "|" + dosage)
}

func groupDays(stock, daily float64) float64 {
	if daily > 0 {
		return stock / daily
	}
	return domain.InfiniteDays
}

// categoryGroups groups manually categorised products that carry no molecule.
func (c *Calculator) categoryGroups(products []*domain.Product) []*domain.CategoryGroup {
	var groups []*domain.CategoryGroup
	byName := make(map[string]*domain.CategoryGroup)
	members := make(map[string][]*domain.Product)

	for _, p := range products {
		p.CategoryGroup = domain.GroupCoverage{}
		if p.Molecule != "" || p.ManualCategory == "" {
			continue
		}
		g, ok := byName[p.ManualCategory]
		if !ok {
			g = &domain.CategoryGroup{Category: p.ManualCategory}
			byName[p.ManualCategory] = g
			groups = append(groups, g)
		}
		g.Products = append(g.Products, p.Name)
		g.TotalStock += p.EffectiveStock
		g.TotalDaily += p.DailyConsumption
		members[g.Category] = append(members[g.Category], p)
	}

	for _, g := range groups {
		g.Days = groupDays(g.TotalStock, g.TotalDaily)
		for _, p := range members[g.Category] {
			p.CategoryGroup = domain.GroupCoverage{
				Key:              g.Category,
				Size:             len(g.Products),
				Stock:            g.TotalStock,
				DailyConsumption: g.TotalDaily,
				Days:             g.Days,
				Covered:          len(g.Products) > 1 && g.Days > c.settings.AlertSecurity,
			}
		}
	}
	return groups
}

// moleculeGroups groups resolved products by molecule and dosage. A group
// covers its members only when it holds more than one product and its
// aggregate days exceed the security threshold.
func (c *Calculator) moleculeGroups(products []*domain.Product) []*domain.MoleculeGroup {
	var groups []*domain.MoleculeGroup
	byKey := make(map[string]*domain.MoleculeGroup)
	members := make(map[string][]*domain.Product)

	for _, p := range products {
		p.MoleculeGroup = domain.GroupCoverage{}
		if !p.Matched() {
			continue
		}
		key := MoleculeKey(p.Molecule, p.MatchedDosage)
		g, ok := byKey[key]
		if !ok {
			g = &domain.MoleculeGroup{Key: key, Molecule: p.Molecule, Dosage: p.MatchedDosage}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.Products = append(g.Products, p.Name)
		g.TotalStock += p.EffectiveStock
		g.TotalDaily += p.DailyConsumption
		members[key] = append(members[key], p)
	}

	for _, g := range groups {
		g.Days = groupDays(g.TotalStock, g.TotalDaily)
		g.Generics = c.generics(g.Molecule, g.Dosage)
		if g.Generics == nil {
			g.Generics = []domain.ReferenceEntry{}
		}

		held := make(map[string]struct{})
		for _, p := range members[g.Key] {
			held[p.MatchedBrand] = struct{}{}
		}
		g.MissingGenerics = []domain.ReferenceEntry{}
		missing := make(map[string]struct{})
		for _, e := range g.Generics {
			if _, ok := held[e.Brand]; ok {
				continue
			}
			g.MissingGenerics = append(g.MissingGenerics, e)
			missing[e.Brand] = struct{}{}
		}
		missingBrands := slices.Sorted(maps.Keys(missing))

		covered := len(g.Products) > 1 && g.Days > c.settings.AlertSecurity
		for _, p := range members[g.Key] {
			p.MoleculeGroup = domain.GroupCoverage{
				Key:              g.Key,
				Size:             len(g.Products),
				Stock:            g.TotalStock,
				DailyConsumption: g.TotalDaily,
				Days:             g.Days,
				Covered:          covered,
				TotalGenerics:    len(g.Generics),
				MissingGenerics:  missingBrands,
			}
		}
	}
	return groups
}

// moleculeCoverage aggregates every product sharing a molecule, regardless
// of dosage or match state.
func moleculeCoverage(products []*domain.Product) {
	byMolecule := make(map[string]*domain.MoleculeCoverage)
	daily := make(map[string]float64)
	for _, p := range products {
		if p.Molecule == "" {
			continue
		}
		cov, ok := byMolecule[p.Molecule]
		if !ok {
			cov = &domain.MoleculeCoverage{}
			byMolecule[p.Molecule] = cov
		}
		cov.Count++
		cov.TotalStock += p.EffectiveStock
		daily[p.Molecule] += p.DailyConsumption
	}
	for m, cov := range byMolecule {
		cov.TotalDays = groupDays(cov.TotalStock, daily[m])
	}
	for _, p := range products {
		p.MoleculeCoverage = domain.MoleculeCoverage{}
		if cov, ok := byMolecule[p.Molecule]; ok && p.Molecule != "" {
			p.MoleculeCoverage = *cov
		}
	}
}

// SupplierIndex aggregates supplier purchases across the catalogue, sorted
// by supplier name. Supplier price fields must already be ranked.
func SupplierIndex(products []*domain.Product) []*domain.Supplier {
	byName := make(map[string]*domain.Supplier)
	for _, p := range products {
		for _, name := range slices.Sorted(maps.Keys(p.Suppliers)) {
			h := p.Suppliers[name]
			s, ok := byName[name]
			if !ok {
				s = &domain.Supplier{Name: name, Products: make(map[string]domain.SupplierProduct)}
				byName[name] = s
			}
			s.Products[p.Name] = domain.SupplierProduct{
				LatestPrice: h.LatestPrice,
				LatestDate:  h.LatestDate,
				TotalQty:    h.TotalQty,
			}
			s.TotalSpend += h.AvgPrice * h.TotalQty
			s.OrderCount += len(h.Entries)
		}
	}

	out := make([]*domain.Supplier, 0, len(byName))
	for _, name := range slices.Sorted(maps.Keys(byName)) {
		out = append(out, byName[name])
	}
	return out
}
