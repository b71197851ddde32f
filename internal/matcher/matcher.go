// Package matcher resolves free-text inventory product names to entries
// of the reference index.
package matcher

import (
	"strings"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
	"github.com/andresuchdata/pharmstock/backend-go/internal/normalize"
	"github.com/andresuchdata/pharmstock/backend-go/internal/reference"
)

// Tier names the rule that produced a match.
type Tier string

const (
	TierExactDosage    Tier = "exact-dosage"
	TierAmountUnit     Tier = "amount-unit"
	TierCompoundPrefix Tier = "compound-prefix"
	TierPercent        Tier = "percent"
	TierSubstring      Tier = "substring"
	TierFirstCandidate Tier = "first-candidate"
	TierUniqueDosage   Tier = "unique-dosage"
	TierSingleMolecule Tier = "single-molecule"
)

// Confidence returns the confidence class of the tier.
func (t Tier) Confidence() domain.MatchConfidence {
	switch t {
	case TierFirstCandidate, TierSingleMolecule:
		return domain.MatchApproximate
	default:
		return domain.MatchExact
	}
}

// Match is a resolved reference entry.
type Match struct {
	Entry      domain.ReferenceEntry  `json:"entry"`
	Key        string                 `json:"key"`
	Tier       Tier                   `json:"tier"`
	Confidence domain.MatchConfidence `json:"confidence"`
}

// Approximate reports whether the dosage was not confirmed.
func (m Match) Approximate() bool {
	return m.Confidence == domain.MatchApproximate
}

// Matcher resolves product names against one reference index.
type Matcher struct {
	index  *reference.Index
	brands normalize.BrandExtractor
}

// New returns a matcher over index.
func New(index *reference.Index, brands normalize.BrandExtractor) *Matcher {
	return &Matcher{index: index, brands: brands}
}

// Match resolves productName. The most specific brand key with any
// candidates decides the outcome; less specific keys are never tried after it.
func (m *Matcher) Match(productName string) (Match, bool) {
	if m.index.Empty() {
		return Match{}, false
	}
	brand, ok := m.brands.Extract(productName)
	if !ok {
		return Match{}, false
	}
	dosage, hasDosage := normalize.ExtractDosage(productName)
	normDos := normalize.NormalizeDosage(dosage)

	for _, key := range normalize.BrandKeys(brand) {
		candidates := m.index.Candidates(key)
		if len(candidates) == 0 {
			continue
		}
		var (
			entry domain.ReferenceEntry
			tier  Tier
			found bool
		)
		if hasDosage {
			entry, tier = matchDosage(candidates, dosage, normDos)
			found = true
		} else {
			entry, tier, found = matchWithoutDosage(candidates)
		}
		if !found {
			return Match{}, false
		}
		return Match{Entry: entry, Key: key, Tier: tier, Confidence: tier.Confidence()}, true
	}
	return Match{}, false
}

// matchDosage always returns a candidate, falling back to the first one.
func matchDosage(candidates []domain.ReferenceEntry, dosage, normDos string) (domain.ReferenceEntry, Tier) {
	for _, c := range candidates {
		if c.NormDosage == normDos {
			return c, TierExactDosage
		}
	}

	if num, unit, ok := normalize.SplitAmount(normDos); ok {
		for _, c := range candidates {
			cn, cu, ok := normalize.SplitAmount(c.NormDosage)
			if ok && cn == num && cu == unit {
				return c, TierAmountUnit
			}
		}
	}

	productMain := leadingPart(normDos)
	for _, c := range candidates {
		if !strings.Contains(c.NormDosage, "/") {
			continue
		}
		pn, pu, okA := normalize.SplitAmount(productMain)
		cn, cu, okB := normalize.SplitAmount(leadingPart(c.NormDosage))
		if okA && okB && pn == cn && pu == cu {
			return c, TierCompoundPrefix
		}
	}

	if strings.Contains(normDos, "%") {
		bare := strings.TrimLeft(normDos, "0")
		for _, c := range candidates {
			if strings.Contains(c.Dosage, bare) || strings.Contains(c.Dosage, dosage) {
				return c, TierPercent
			}
		}
	}

	needle := normalize.StripSpaces(dosage)
	for _, c := range candidates {
		if c.Dosage != "" && strings.Contains(normalize.StripSpaces(c.Dosage), needle) {
			return c, TierSubstring
		}
	}

	return candidates[0], TierFirstCandidate
}

func matchWithoutDosage(candidates []domain.ReferenceEntry) (domain.ReferenceEntry, Tier, bool) {
	if distinct(candidates, func(e domain.ReferenceEntry) string { return e.NormDosage }) == 1 {
		return candidates[0], TierUniqueDosage, true
	}
	if distinct(candidates, func(e domain.ReferenceEntry) string { return e.Molecule }) == 1 {
		return candidates[0], TierSingleMolecule, true
	}
	return domain.ReferenceEntry{}, "", false
}

func distinct(entries []domain.ReferenceEntry, field func(domain.ReferenceEntry) string) int {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		seen[field(e)] = struct{}{}
	}
	return len(seen)
}

func leadingPart(d string) string {
	if i := strings.IndexByte(d, '/'); i >= 0 {
		return d[:i]
	}
	return d
}

// GenericsFor returns every known generic for molecule at dosage.
func (m *Matcher) GenericsFor(molecule, dosage string) []domain.ReferenceEntry {
	return m.index.Generics(molecule, dosage)
}

// Index returns the index the matcher reads.
func (m *Matcher) Index() *reference.Index {
	return m.index
}
