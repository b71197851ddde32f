package normalize

import (
	"regexp"
	"strings"
)

// BrandRule strips one kind of suffix from a candidate brand.
type BrandRule struct {
	Name    string
	Pattern *regexp.Regexp
}

// Apply removes the rule's match from s and trims the result.
func (r BrandRule) Apply(s string) string {
	return strings.TrimSpace(r.Pattern.ReplaceAllString(s, ""))
}

var trailingDots = regexp.MustCompile(`\.+$`)

// BrandRules are applied in order to the sanitized product name.
var BrandRules = []BrandRule{
	{Name: "trailing-dots", Pattern: trailingDots},
	{Name: "packaging", Pattern: regexp.MustCompile(`(?i)\s+(B|BT|FL|F|T|TB)/\d.*$`)},
	{Name: "form", Pattern: regexp.MustCompile(`(?i)\s+(COMP|GELULE|GLES|GELS?|PDRE|AMP|INJ|SUPPO|SPRAY|SIROP|CREME|POMMADE|COLLYRE|SOL|SCH|OVULE|SACHET|CAPS|PATCH|SUSP)\b.*$`)},
	{Name: "compound-dosage", Pattern: regexp.MustCompile(`(?i)\s+` + amount + `(?:\s*` + units + `)?\s*/\s*` + amount + `\s*` + units + `.*$`)},
	{Name: "percentage", Pattern: regexp.MustCompile(`(?i)\s+` + amount + `\s*%.*$`)},
	{Name: "standard-dosage", Pattern: regexp.MustCompile(`(?i)\s+\d[\d\s.,]*\s*` + units + `\b.*$`)},
	{Name: "population", Pattern: regexp.MustCompile(`(?i)\s+(AD|ENF|NOUR|NRS|ADULTE|ENFANT|NOURRISSON|PEDIATRIQUE|PED)\b.*$`)},
	{Name: "ratio", Pattern: regexp.MustCompile(`(?i)\s+\d+[.:]\d+\w*$`)},
	{Name: "release", Pattern: regexp.MustCompile(`(?i)\s+(LP|XR|CR|SR|MR|ER|RETARD)\s*$`)},
	{Name: "trailing-number", Pattern: regexp.MustCompile(`\s+\d+\s*$`)},
	{Name: "trailing-dots", Pattern: trailingDots},
}

// BrandExtractor derives a brand candidate from a product name. When more
// than MaxTokens tokens survive the rules only the first KeepTokens are kept.
type BrandExtractor struct {
	MaxTokens  int
	KeepTokens int
}

// DefaultBrandExtractor caps brands at three tokens, keeping two.
var DefaultBrandExtractor = BrandExtractor{MaxTokens: 3, KeepTokens: 2}

// Extract returns the brand candidate of name, e.g.
// "LOMAC 20MG B/15 GELULE" -> "LOMAC".
func (e BrandExtractor) Extract(name string) (string, bool) {
	s := Sanitize(name)
	if s == "" {
		return "", false
	}
	for _, r := range BrandRules {
		s = r.Apply(s)
	}
	if s == "" {
		return "", false
	}
	parts := whitespace.Split(s, -1)
	if e.MaxTokens > 0 && len(parts) > e.MaxTokens {
		keep := e.KeepTokens
		if keep <= 0 || keep > len(parts) {
			keep = e.MaxTokens
		}
		return strings.Join(parts[:keep], " "), true
	}
	return s, true
}

// ExtractBrand applies DefaultBrandExtractor.
func ExtractBrand(name string) (string, bool) {
	return DefaultBrandExtractor.Extract(name)
}
