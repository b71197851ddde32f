package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDosage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{name: "single with packaging", input: "LOMAC 20MG B/15", expected: "20MG", ok: true},
		{name: "compound gram", input: "AUGMENTIN 1G/125MG", expected: "1G/125MG", ok: true},
		{name: "spaced unit", input: "EFFERALGAN 500 MG CPR", expected: "500MG", ok: true},
		{name: "lowercase", input: "doliprane 1000mg", expected: "1000MG", ok: true},
		{name: "thousands separator", input: "VITAMINE D3 200.000 UI", expected: "200000UI", ok: true},
		{name: "repeated thousands separator", input: "EXTENCILLINE 1.200.000 UI INJ", expected: "1200000UI", ok: true},
		{name: "decimal comma", input: "XANAX 0,25MG", expected: "0.25MG", ok: true},
		{name: "decimal dot", input: "TAHOR 12.5MG", expected: "12.5MG", ok: true},
		{name: "no dosage", input: "SERINGUE STERILE", ok: false},
		{name: "empty", input: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractDosage(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDosageRules(t *testing.T) {
	tests := []struct {
		rule     string
		input    string
		expected string
	}{
		{rule: "compound", input: "CLAMOXYL 250MG/5ML SUSP", expected: "250MG/5ML"},
		{rule: "compound", input: "ZESTORETIC 20MG/12.5MG", expected: "20MG/12.5MG"},
		{rule: "compound", input: "DUPHALAC 100MG/12.5MG/ML", expected: "100MG/12.5MG/ML"},
		{rule: "slash-suffix", input: "CO-APROVEL 150/12.5MG", expected: "150/12.5MG"},
		{rule: "percent", input: "BETADERM 0,05% CREME", expected: "0,05%"},
		{rule: "per-ml", input: "ZYRTEC 10MG/ML GTTES", expected: "10MG/ML"},
		{rule: "single", input: "LOMAC 20MG B/15", expected: "20MG"},
	}

	for _, tt := range tests {
		t.Run(tt.rule+"/"+tt.input, func(t *testing.T) {
			got, rule, ok := MatchDosage(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.rule, rule)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDosageRules_AreOrdered(t *testing.T) {
	names := make([]string, 0, len(DosageRules))
	for _, r := range DosageRules {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"compound", "slash-suffix", "percent", "per-ml", "single"}, names)
}

func TestPrepareDosageInput(t *testing.T) {
	assert.Equal(t, "VIT D 200000UI", PrepareDosageInput("vit d 200.000 ui"))
	assert.Equal(t, "X 1200000UI", PrepareDosageInput("X 1.200.000UI"))
	assert.Equal(t, "X 2.5MG", PrepareDosageInput("X 2.5 MG"))
}

func TestNormalizeDosage(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1G", "1000MG"},
		{"1000MG", "1000MG"},
		{"0.5G", "500MG"},
		{"2,5G", "2500MG"},
		{"500 mg", "500MG"},
		{"0500MG", "500MG"},
		{"12.50MG", "12.5MG"},
		{"1G/125MG", "1000MG/125MG"},
		{"250MG/5ML", "250MG/5ML"},
		{"5MG/ML", "5MG/ML"},
		{"0,05%", "0.05%"},
		{"4000UI", "4000UI"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeDosage(tt.input))
		})
	}
}

func TestNormalizeDosage_Idempotent(t *testing.T) {
	inputs := []string{
		"1G", "0.5G", "500MG", "0500MG", "1G/125MG", "100MG/12.5MG/ML",
		"0,05%", "10MG/ML", "200000UI", "150/12.5MG", "12.50MCG", "SOLUTION",
	}
	for _, in := range inputs {
		once := NormalizeDosage(in)
		assert.Equal(t, once, NormalizeDosage(once), in)
	}
}

func TestNormalizeDosage_GramEquivalence(t *testing.T) {
	assert.Equal(t, NormalizeDosage("1000MG"), NormalizeDosage("1G"))
	assert.Equal(t, NormalizeDosage("500MG"), NormalizeDosage("0.5G"))

	d, ok := ExtractDosage("AUGMENTIN 1G/125MG")
	require.True(t, ok)
	assert.Equal(t, NormalizeDosage("1000MG/125MG"), NormalizeDosage(d))
}

func TestExtractDosage_IdempotentOnNormalized(t *testing.T) {
	for _, d := range []string{"20MG", "1000MG/125MG", "0.05%", "10MG/ML", "200000UI"} {
		got, ok := ExtractDosage(d)
		require.True(t, ok, d)
		assert.Equal(t, d, got)
	}
}

func TestSplitAmount(t *testing.T) {
	n, rest, ok := SplitAmount("500MG")
	require.True(t, ok)
	assert.Equal(t, "500", n)
	assert.Equal(t, "MG", rest)

	n, rest, ok = SplitAmount("12.5MG/ML")
	require.True(t, ok)
	assert.Equal(t, "12.5", n)
	assert.Equal(t, "MG/ML", rest)

	_, _, ok = SplitAmount("MG")
	assert.False(t, ok)
}
