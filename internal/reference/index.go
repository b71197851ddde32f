package reference

import (
	"sort"
	"strings"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
	"github.com/andresuchdata/pharmstock/backend-go/internal/normalize"
)

// CodeBrand is one brand registered under a product code.
type CodeBrand struct {
	Brand        string `json:"brand"`
	MoleculeCode string `json:"molecule_code"`
}

// CodeGroup collects the brands sharing a product code.
type CodeGroup struct {
	Molecule string      `json:"molecule"`
	Dosage   string      `json:"dosage"`
	Form     string      `json:"form"`
	Brands   []CodeBrand `json:"brands"`
}

// Index is an immutable view over the reference dataset. Build it once per
// commit; it is safe for concurrent reads.
type Index struct {
	all         []domain.ReferenceEntry
	active      []domain.ReferenceEntry
	brands      map[string][]domain.ReferenceEntry
	codes       map[string]*CodeGroup
	generics    map[string][]domain.ReferenceEntry
	withdrawn   map[string]struct{}
	withdrawals []domain.WithdrawalRecord
	molecules   []string
}

// GenericKey is the molecule-dosage index key.
func GenericKey(molecule, dosage string) string {
	return strings.ToUpper(molecule + "|" + normalize.NormalizeDosage(dosage))
}

// WithdrawnKey is the precise withdrawn-set key of a brand at a dosage.
func WithdrawnKey(brand, normDosage string) string {
	return brand + "|" + normDosage
}

// Build indexes entries and withdrawals. Entries matching a withdrawal
// record are flagged and left out of the lookup indices. Rows without a
// brand are skipped. The input slices are not modified.
func Build(entries []domain.ReferenceEntry, withdrawals []domain.WithdrawalRecord) *Index {
	idx := &Index{
		all:         make([]domain.ReferenceEntry, 0, len(entries)),
		active:      make([]domain.ReferenceEntry, 0, len(entries)),
		brands:      make(map[string][]domain.ReferenceEntry),
		codes:       make(map[string]*CodeGroup),
		generics:    make(map[string][]domain.ReferenceEntry),
		withdrawn:   make(map[string]struct{}),
		withdrawals: make([]domain.WithdrawalRecord, 0, len(withdrawals)),
	}

	for _, w := range withdrawals {
		brand := normalize.Sanitize(w.Brand)
		if brand == "" {
			continue
		}
		w.Brand = brand
		idx.withdrawals = append(idx.withdrawals, w)
		idx.withdrawn[brand] = struct{}{}
		idx.withdrawn[normalize.FirstToken(brand)] = struct{}{}
		if w.Dosage != "" {
			idx.withdrawn[WithdrawnKey(brand, normalize.NormalizeDosage(w.Dosage))] = struct{}{}
		}
	}

	all := make([]domain.ReferenceEntry, len(entries))
	copy(all, entries)
	idx.molecules = Canonicalize(all)

	for _, e := range all {
		e.Brand = normalize.Sanitize(e.Brand)
		e.NormDosage = normalize.NormalizeDosage(e.Dosage)
		if e.Brand != "" && (idx.HasWithdrawnKey(WithdrawnKey(e.Brand, e.NormDosage)) || idx.HasWithdrawnKey(e.Brand)) {
			e.Withdrawn = true
		}
		idx.all = append(idx.all, e)
		if e.Brand == "" || e.Withdrawn {
			continue
		}
		idx.active = append(idx.active, e)
		idx.add(e)
	}
	return idx
}

func (idx *Index) add(e domain.ReferenceEntry) {
	for _, k := range normalize.BrandKeys(e.Brand) {
		idx.brands[k] = append(idx.brands[k], e)
	}

	if e.Code != "" {
		g, ok := idx.codes[e.Code]
		if !ok {
			g = &CodeGroup{Molecule: e.Molecule, Dosage: e.Dosage, Form: e.Form}
			idx.codes[e.Code] = g
		}
		g.Brands = append(g.Brands, CodeBrand{Brand: e.Brand, MoleculeCode: e.MoleculeCode})
	}

	key := GenericKey(e.Molecule, e.Dosage)
	idx.generics[key] = append(idx.generics[key], e)
}

// Empty reports whether the index holds no usable entries.
func (idx *Index) Empty() bool {
	return idx == nil || len(idx.active) == 0
}

// Len returns the number of indexed (non-withdrawn) entries.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.active)
}

// Candidates returns the entries registered under a brand key.
func (idx *Index) Candidates(key string) []domain.ReferenceEntry {
	if idx == nil {
		return nil
	}
	return idx.brands[key]
}

// Code returns the brands sharing a product code.
func (idx *Index) Code(code string) (CodeGroup, bool) {
	if idx == nil {
		return CodeGroup{}, false
	}
	g, ok := idx.codes[code]
	if !ok {
		return CodeGroup{}, false
	}
	out := *g
	out.Brands = append([]CodeBrand(nil), g.Brands...)
	return out, true
}

// Generics returns every known entry for molecule at dosage. The result is
// never nil.
func (idx *Index) Generics(molecule, dosage string) []domain.ReferenceEntry {
	if idx == nil || molecule == "" {
		return []domain.ReferenceEntry{}
	}
	found := idx.generics[GenericKey(molecule, dosage)]
	out := make([]domain.ReferenceEntry, len(found))
	copy(out, found)
	return out
}

// HasWithdrawnKey reports whether key is in the withdrawn-brand set.
func (idx *Index) HasWithdrawnKey(key string) bool {
	if idx == nil {
		return false
	}
	_, ok := idx.withdrawn[key]
	return ok
}

// Withdrawals returns the decoded withdrawal records.
func (idx *Index) Withdrawals() []domain.WithdrawalRecord {
	if idx == nil {
		return nil
	}
	return idx.withdrawals
}

// Entries returns the indexed entries, withdrawn ones excluded.
func (idx *Index) Entries() []domain.ReferenceEntry {
	if idx == nil {
		return nil
	}
	return idx.active
}

// All returns every entry including withdrawn ones.
func (idx *Index) All() []domain.ReferenceEntry {
	if idx == nil {
		return nil
	}
	return idx.all
}

// Molecules returns the sorted canonical molecule names.
func (idx *Index) Molecules() []string {
	if idx == nil {
		return nil
	}
	return idx.molecules
}

func uniqueSorted(m map[string]string) []string {
	seen := make(map[string]struct{}, len(m))
	out := make([]string, 0, len(m))
	for _, v := range m {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
