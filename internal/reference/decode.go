// Package reference builds the lookup indices over the national drug
// database used to resolve inventory products to a molecule.
package reference

import (
	"regexp"
	"strings"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
	"github.com/andresuchdata/pharmstock/backend-go/internal/normalize"
)

var (
	saltSuffix   = regexp.MustCompile(`(?i)[\s,]*(SOUS FORME|S/F|CHLORHYDRATE|DICHLORHYDRATE|DIHYDROCHLORHYDE|MALEATE|SULFATE|FUMARATE|TARTRATE|SUCCINATE|BROMHYDRATE|PHOSPHATE|ACETATE|CITRATE|BESYLATE|MESYLATE|LYSINATE|SODIQUE|POTASSIQUE|CALCIQUE|DE BASE|BASE|EXPRIME EN).*$`)
	trailingPunc = regexp.MustCompile(`[,;.]+$`)
	formKeyword  = regexp.MustCompile(`(?i)\b(COMP|GELULE|GLES|GEL|PDRE|AMP|INJ|SUPPO|SPRAY|SIROP|SIR|CREME|POMMADE|COLLYRE|SOL|SACHET|CAPS|PATCH|SUSP|OVULE|GTTES|GOUTTES)\b`)
)

// SplitMoleculeField splits "01A003 CETIRIZINE" into its molecule code and name.
// A field without a space has no code.
func SplitMoleculeField(field string) (code, name string) {
	field = normalize.Sanitize(field)
	i := strings.IndexByte(field, ' ')
	if i <= 0 {
		return "", field
	}
	return strings.TrimSpace(field[:i]), strings.TrimSpace(field[i+1:])
}

// CleanMolecule strips salt and expression suffixes so that
// "AMLODIPINE BESYLATE" and "AMLODIPINE" group together.
func CleanMolecule(name string) string {
	s := saltSuffix.ReplaceAllString(normalize.Sanitize(name), "")
	return strings.TrimSpace(trailingPunc.ReplaceAllString(s, ""))
}

// DetectForm returns the pharmaceutical form keyword of a designation.
func DetectForm(designation string) string {
	m := formKeyword.FindStringSubmatch(designation)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// Decoder turns raw reference and withdrawal cells into domain records.
type Decoder struct {
	Brands normalize.BrandExtractor
}

// NewDecoder returns a decoder using the given brand extractor.
func NewDecoder(brands normalize.BrandExtractor) Decoder {
	return Decoder{Brands: brands}
}

// Entry decodes one reference row. Rows without a designation or molecule
// are rejected.
func (d Decoder) Entry(designation, moleculeField, code string, tariff float64) (domain.ReferenceEntry, bool) {
	designation = normalize.Sanitize(designation)
	moleculeField = normalize.Sanitize(moleculeField)
	if designation == "" || moleculeField == "" {
		return domain.ReferenceEntry{}, false
	}

	molCode, raw := SplitMoleculeField(moleculeField)
	brand, ok := d.Brands.Extract(designation)
	if !ok {
		brand = normalize.FirstToken(designation)
	}
	dosage, _ := normalize.ExtractDosage(designation)

	// Coded molecules are cleaned here and canonicalised per code later;
	// uncoded ones keep the name as written.
	molecule := raw
	if molCode != "" {
		molecule = CleanMolecule(raw)
	}

	return domain.ReferenceEntry{
		Molecule:     molecule,
		MoleculeRaw:  raw,
		MoleculeCode: molCode,
		Brand:        brand,
		Designation:  designation,
		Dosage:       dosage,
		NormDosage:   normalize.NormalizeDosage(dosage),
		Form:         DetectForm(designation),
		Code:         strings.TrimSpace(code),
		Tariff:       tariff,
	}, true
}

// Withdrawal decodes one withdrawal row. When no brand column was mapped the
// first non-empty cell stands in for the brand.
func (d Decoder) Withdrawal(brand, molecule, dosage, code string, cells []string) (domain.WithdrawalRecord, bool) {
	brand = normalize.Sanitize(brand)
	if brand == "" {
		for _, c := range cells {
			if s := normalize.Sanitize(c); s != "" {
				brand = s
				break
			}
		}
	}
	if brand == "" {
		return domain.WithdrawalRecord{}, false
	}
	return domain.WithdrawalRecord{
		Brand:    brand,
		Molecule: normalize.Sanitize(molecule),
		Dosage:   normalize.Sanitize(dosage),
		Code:     strings.TrimSpace(code),
	}, true
}

// Canonicalize rewrites each entry's molecule to the most frequent cleaned
// name recorded for its molecule code and returns the sorted unique
// canonical names. Ties keep the name seen first.
func Canonicalize(entries []domain.ReferenceEntry) []string {
	type tally struct {
		order  []string
		counts map[string]int
	}
	byCode := make(map[string]*tally)
	for _, e := range entries {
		if e.MoleculeCode == "" {
			continue
		}
		clean := CleanMolecule(e.Molecule)
		t, ok := byCode[e.MoleculeCode]
		if !ok {
			t = &tally{counts: make(map[string]int)}
			byCode[e.MoleculeCode] = t
		}
		if _, seen := t.counts[clean]; !seen {
			t.order = append(t.order, clean)
		}
		t.counts[clean]++
	}

	canonical := make(map[string]string, len(byCode))
	for code, t := range byCode {
		best, bestCount := "", 0
		for _, name := range t.order {
			if t.counts[name] > bestCount {
				best, bestCount = name, t.counts[name]
			}
		}
		canonical[code] = best
	}

	for i := range entries {
		if name := canonical[entries[i].MoleculeCode]; name != "" {
			entries[i].Molecule = name
		}
	}
	return uniqueSorted(canonical)
}
