package catalogue

import (
	"strings"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
	"github.com/andresuchdata/pharmstock/backend-go/internal/matcher"
	"github.com/andresuchdata/pharmstock/backend-go/internal/normalize"
	"github.com/andresuchdata/pharmstock/backend-go/internal/reference"
)

// Resolve attaches the reference identity found by m to every product.
func Resolve(cat *Catalogue, m *matcher.Matcher) {
	for _, p := range cat.Products() {
		res, ok := m.Match(p.Name)
		if !ok {
			continue
		}
		e := res.Entry
		p.MoleculeCode = e.MoleculeCode
		if p.MoleculeCode == "" {
			p.MoleculeCode = e.Code
		}
		p.MatchedDosage = e.NormDosage
		if p.MatchedDosage == "" {
			p.MatchedDosage = normalize.NormalizeDosage(e.Dosage)
		}
		p.MatchedBrand = e.Brand
		p.MatchedForm = e.Form
		p.Molecule = e.Molecule
		if p.Lab == "" {
			p.Lab = e.Lab
		}
		p.Category = domain.CategoryMedicine
		p.MatchConfidence = res.Confidence
	}
}

// ApplyCorrections overrides automatic identity with operator input.
// Corrections naming unknown products are ignored.
func ApplyCorrections(cat *Catalogue, corrections map[string]domain.ManualCorrection) {
	for _, p := range cat.Products() {
		c, ok := corrections[p.Name]
		if !ok || c.Empty() {
			continue
		}
		if c.Molecule != "" {
			p.Molecule = normalize.Sanitize(c.Molecule)
			p.Category = domain.CategoryMedicine
			p.MatchConfidence = domain.MatchManual
		}
		if c.Dosage != "" {
			p.MatchedDosage = normalize.NormalizeDosage(normalize.Sanitize(c.Dosage))
		}
		if c.Category != "" {
			p.ManualCategory = strings.TrimSpace(c.Category)
			p.Category = domain.CategoryParapharm
		}
		p.ManuallyCorrected = true
	}
}

// NewCorrection builds a correction from free operator input. value is read
// as a category when it names a known or custom category, else as a molecule.
func NewCorrection(name, value, dosage string, custom []string) domain.ManualCorrection {
	c := domain.ManualCorrection{Name: normalize.Sanitize(name), Dosage: normalize.Sanitize(dosage)}
	v := normalize.Sanitize(value)
	if v == "" {
		return c
	}
	if isCategory(v, custom) {
		c.Category = strings.TrimSpace(value)
	} else {
		c.Molecule = v
	}
	return c
}

func isCategory(v string, custom []string) bool {
	for _, cat := range domain.Categories {
		if strings.ToUpper(string(cat)) == v {
			return true
		}
	}
	for _, cat := range custom {
		if normalize.Sanitize(cat) == v {
			return true
		}
	}
	return false
}

// Withdrawn reports whether a product name designates a withdrawn product.
// A bare first-token hit needs a withdrawal record agreeing on the brand or
// the dosage.
func Withdrawn(name string, idx *reference.Index, brands normalize.BrandExtractor) bool {
	brand, ok := brands.Extract(name)
	if !ok {
		return false
	}
	brand = normalize.Sanitize(brand)
	var normDos string
	if d, ok := normalize.ExtractDosage(name); ok {
		normDos = normalize.NormalizeDosage(d)
	}

	if normDos != "" && idx.HasWithdrawnKey(reference.WithdrawnKey(brand, normDos)) {
		return true
	}
	if idx.HasWithdrawnKey(brand) {
		return true
	}
	first := normalize.FirstToken(brand)
	if !idx.HasWithdrawnKey(first) {
		return false
	}
	for _, w := range idx.Withdrawals() {
		if normalize.FirstToken(w.Brand) != first {
			continue
		}
		if w.Dosage != "" && normDos != "" {
			if normalize.NormalizeDosage(normalize.Sanitize(w.Dosage)) == normDos {
				return true
			}
			continue
		}
		if w.Brand == brand {
			return true
		}
	}
	return false
}

// ApplyWithdrawals flags withdrawn products.
func ApplyWithdrawals(cat *Catalogue, idx *reference.Index, brands normalize.BrandExtractor) {
	active := len(idx.Withdrawals()) > 0
	for _, p := range cat.Products() {
		p.Withdrawn = active && Withdrawn(p.Name, idx, brands)
	}
}
