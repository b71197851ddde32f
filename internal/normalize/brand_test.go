package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBrand(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{name: "packaging and form", input: "LOMAC 20MG B/15 GELULE", expected: "LOMAC", ok: true},
		{name: "box count", input: "DOLIPRANE 500MG B/16", expected: "DOLIPRANE", ok: true},
		{name: "spaced unit", input: "EFFERALGAN 500 MG CPR", expected: "EFFERALGAN", ok: true},
		{name: "compound dosage", input: "AUGMENTIN 1G/125MG SACHET", expected: "AUGMENTIN", ok: true},
		{name: "slash suffix", input: "CO-APROVEL 150/12.5MG", expected: "CO-APROVEL", ok: true},
		{name: "percentage", input: "BETADERM 0,05% CREME", expected: "BETADERM", ok: true},
		{name: "population", input: "DOLIPRANE ENFANT 2.4%", expected: "DOLIPRANE", ok: true},
		{name: "ratio", input: "AUGMENTIN 8:1", expected: "AUGMENTIN", ok: true},
		{name: "release", input: "ADALATE LP 20MG", expected: "ADALATE", ok: true},
		{name: "trailing number", input: "AROVAN 20", expected: "AROVAN", ok: true},
		{name: "trailing dots", input: "SMECTA...", expected: "SMECTA", ok: true},
		{name: "lowercase", input: "  lomac 20mg ", expected: "LOMAC", ok: true},
		{name: "three tokens kept", input: "EAU PRECIEUSE BLEUE", expected: "EAU PRECIEUSE BLEUE", ok: true},
		{name: "four tokens truncated", input: "CREME MAINS TRES SECHES", expected: "CREME MAINS", ok: true},
		{name: "empty", input: "", ok: false},
		{name: "blank", input: "   ", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractBrand(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestBrandRules(t *testing.T) {
	rules := make(map[string]BrandRule, len(BrandRules))
	for _, r := range BrandRules {
		rules[r.Name] = r
	}

	tests := []struct {
		rule     string
		input    string
		expected string
	}{
		{rule: "trailing-dots", input: "SMECTA..", expected: "SMECTA"},
		{rule: "packaging", input: "LOMAC 20MG B/15 GELULE", expected: "LOMAC 20MG"},
		{rule: "packaging", input: "SPASFON FL/30", expected: "SPASFON"},
		{rule: "form", input: "SPASFON COMP ENROBE", expected: "SPASFON"},
		{rule: "form", input: "DOLIPRANE SUPPO 150MG", expected: "DOLIPRANE"},
		{rule: "compound-dosage", input: "CLAMOXYL 250MG/5ML", expected: "CLAMOXYL"},
		{rule: "percentage", input: "BETADINE 10% DERMIQUE", expected: "BETADINE"},
		{rule: "standard-dosage", input: "LOMAC 20MG", expected: "LOMAC"},
		{rule: "standard-dosage", input: "UVEDOSE 100 000 UI", expected: "UVEDOSE"},
		{rule: "population", input: "HUMEX ADULTE", expected: "HUMEX"},
		{rule: "ratio", input: "AUGMENTIN 8.1", expected: "AUGMENTIN"},
		{rule: "release", input: "ADALATE RETARD", expected: "ADALATE"},
		{rule: "trailing-number", input: "ATHYROZOL 5", expected: "ATHYROZOL"},
	}

	for _, tt := range tests {
		t.Run(tt.rule+"/"+tt.input, func(t *testing.T) {
			r, ok := rules[tt.rule]
			if !assert.True(t, ok, "unknown rule %s", tt.rule) {
				return
			}
			assert.Equal(t, tt.expected, r.Apply(tt.input))
		})
	}
}

func TestBrandExtractor_TokenCap(t *testing.T) {
	e := BrandExtractor{MaxTokens: 2, KeepTokens: 1}

	got, ok := e.Extract("EAU PRECIEUSE BLEUE")
	assert.True(t, ok)
	assert.Equal(t, "EAU", got)

	got, _ = e.Extract("EAU PRECIEUSE")
	assert.Equal(t, "EAU PRECIEUSE", got)

	uncapped := BrandExtractor{}
	got, _ = uncapped.Extract("CREME MAINS TRES SECHES")
	assert.Equal(t, "CREME MAINS TRES SECHES", got)
}

func TestBrandKeys(t *testing.T) {
	assert.Equal(t, []string{"LOMAC"}, BrandKeys("lomac"))
	assert.Equal(t, []string{"DOLIPRANE CODEINE", "DOLIPRANE"}, BrandKeys("DOLIPRANE  CODEINE"))
	assert.Equal(t, []string{"EAU PRECIEUSE BLEUE", "EAU PRECIEUSE", "EAU"}, BrandKeys("EAU PRECIEUSE BLEUE"))
	assert.Nil(t, BrandKeys(" "))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "DOLIPRANE  500MG", Sanitize("  doliprane  500mg "))
	assert.Equal(t, "", Sanitize(""))
	assert.Equal(t, "DOLIPRANE 500MG", CollapseSpaces(" doliprane \t 500mg"))
}
