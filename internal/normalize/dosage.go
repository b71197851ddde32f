package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// unit alternation shared by every dosage pattern. Uppercasing µ yields the
// Greek capital mu, which (?i) folds back onto µ.
const (
	units     = `(?:MG|G|ML|UI|MCG|µG)`
	unitsNoML = `(?:MG|G|UI|MCG|µG)`
	amount    = `\d+(?:[.,]\d+)?`
)

var (
	thousandsDot = regexp.MustCompile(`(?i)(\d)\.(\d{3})(\.?\d|\s*(?:MG|G|ML|UI|MCG|µG|%))`)
	unitSpacing  = regexp.MustCompile(`(?i)(\d)\s+(MG|G|ML|UI|MCG|µG|%)`)
)

// DosageRule is one named dosage pattern. The first capture group is the dosage.
type DosageRule struct {
	Name    string
	Pattern *regexp.Regexp
	// DecimalComma converts the first comma of the match into a dot.
	DecimalComma bool
}

// Find applies the rule to prepared input.
func (r DosageRule) Find(s string) (string, bool) {
	m := r.Pattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	d := strings.ToUpper(StripSpaces(m[1]))
	if r.DecimalComma {
		d = strings.Replace(d, ",", ".", 1)
	}
	return d, true
}

// DosageRules are evaluated in order; the first match wins.
var DosageRules = []DosageRule{
	{
		Name:    "compound",
		Pattern: regexp.MustCompile(`(?i)(` + amount + `\s*` + units + `\s*/\s*` + amount + `\s*` + units + `(?:\s*/\s*\d*(?:[.,]\d+)?\s*` + units + `)?)`),
	},
	{
		Name:    "slash-suffix",
		Pattern: regexp.MustCompile(`(?i)(` + amount + `\s*/\s*` + amount + `\s*` + units + `)`),
	},
	{
		Name:    "percent",
		Pattern: regexp.MustCompile(`(?i)(` + amount + `\s*%)`),
	},
	{
		Name:    "per-ml",
		Pattern: regexp.MustCompile(`(?i)(` + amount + `\s*` + unitsNoML + `\s*/\s*ML)`),
	},
	{
		Name:         "single",
		Pattern:      regexp.MustCompile(`(?i)(` + amount + `\s*` + units + `)`),
		DecimalComma: true,
	},
}

// PrepareDosageInput uppercases name, collapses European thousands
// separators next to unit-bearing numbers until stable and glues numbers
// to their unit.
func PrepareDosageInput(name string) string {
	n := strings.ToUpper(name)
	for {
		next := thousandsDot.ReplaceAllString(n, "${1}${2}${3}")
		if next == n {
			break
		}
		n = next
	}
	return unitSpacing.ReplaceAllString(n, "${1}${2}")
}

// MatchDosage returns the dosage found in name and the name of the rule
// that produced it.
func MatchDosage(name string) (dosage, rule string, ok bool) {
	if strings.TrimSpace(name) == "" {
		return "", "", false
	}
	n := PrepareDosageInput(name)
	for _, r := range DosageRules {
		if d, found := r.Find(n); found {
			return d, r.Name, true
		}
	}
	return "", "", false
}

// ExtractDosage returns the dosage expression of a product name,
// e.g. "LOMAC 20MG B/15" -> "20MG".
func ExtractDosage(name string) (string, bool) {
	d, _, ok := MatchDosage(name)
	return d, ok
}

var (
	gramPart  = regexp.MustCompile(`(?i)^([\d.]+)G$`)
	unitPart  = regexp.MustCompile(`(?i)^([\d.]+)(MG|ML|UI|MCG|µG)$`)
	unitTail  = regexp.MustCompile(`(?i)^([\d.]+)(MG|ML|UI|MCG|µG)(.*)$`)
	leadingNb = regexp.MustCompile(`^(\d+(?:\.\d*)?|\.\d+)`)
)

// NormalizeDosage returns the equality key of a dosage string: grams become
// milligrams and numbers are canonicalised. Percentages pass through.
// normalize(normalize(x)) == normalize(x).
func NormalizeDosage(d string) string {
	if d == "" {
		return ""
	}
	d = strings.ReplaceAll(StripSpaces(strings.ToUpper(d)), ",", ".")
	if strings.Contains(d, "%") {
		return d
	}
	if strings.Contains(d, "/") {
		parts := strings.Split(d, "/")
		for i, part := range parts {
			parts[i] = normalizePart(part)
		}
		return strings.Join(parts, "/")
	}
	if m := gramPart.FindStringSubmatch(d); m != nil {
		if v, ok := parseLeadingFloat(m[1]); ok {
			return FormatNumber(v*1000) + "MG"
		}
	}
	if m := unitTail.FindStringSubmatch(d); m != nil {
		if v, ok := parseLeadingFloat(m[1]); ok {
			return FormatNumber(v) + strings.ToUpper(m[2]) + m[3]
		}
	}
	return d
}

func normalizePart(part string) string {
	part = strings.TrimSpace(part)
	if m := gramPart.FindStringSubmatch(part); m != nil {
		if v, ok := parseLeadingFloat(m[1]); ok {
			return FormatNumber(v*1000) + "MG"
		}
	}
	if m := unitPart.FindStringSubmatch(part); m != nil {
		if v, ok := parseLeadingFloat(m[1]); ok {
			return FormatNumber(v) + strings.ToUpper(m[2])
		}
	}
	return part
}

// parseLeadingFloat parses the longest numeric prefix of s, so "1.5.2"
// reads as 1.5.
func parseLeadingFloat(s string) (float64, bool) {
	m := leadingNb.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FormatNumber renders v in its shortest form: 1000, 12.5, 0.5.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SplitAmount splits a normalized dosage into its leading number and the
// remainder, e.g. "500MG" -> ("500", "MG").
func SplitAmount(d string) (number, rest string, ok bool) {
	i := 0
	for i < len(d) && (d[i] == '.' || (d[i] >= '0' && d[i] <= '9')) {
		i++
	}
	if i == 0 {
		return "", "", false
	}
	return d[:i], d[i:], true
}
