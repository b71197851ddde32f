// Package normalize turns free-text ERP product names into comparable
// brand and dosage tokens.
package normalize

import (
	"regexp"
	"strings"
)

var whitespace = regexp.MustCompile(`\s+`)

// Sanitize trims and uppercases s. It is the join-key transform for product
// names and applies no other normalization.
func Sanitize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// CollapseSpaces uppercases s and reduces every whitespace run to one space.
func CollapseSpaces(s string) string {
	return whitespace.ReplaceAllString(Sanitize(s), " ")
}

// StripSpaces removes every whitespace character from s.
func StripSpaces(s string) string {
	return whitespace.ReplaceAllString(s, "")
}

// Tokens splits s on whitespace, dropping empty tokens.
func Tokens(s string) []string {
	return strings.Fields(s)
}

// FirstToken returns the first whitespace separated token of s.
func FirstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// BrandKeys returns the lookup keys for a brand from most to least specific:
// the full collapsed brand, its first two tokens when it has at least two,
// and its first token. Duplicates are removed.
func BrandKeys(brand string) []string {
	full := CollapseSpaces(brand)
	if full == "" {
		return nil
	}
	words := strings.Split(full, " ")
	keys := []string{full}
	if len(words) >= 2 {
		keys = appendUnique(keys, strings.Join(words[:2], " "))
	}
	return appendUnique(keys, words[0])
}

func appendUnique(keys []string, k string) []string {
	for _, existing := range keys {
		if existing == k {
			return keys
		}
	}
	return append(keys, k)
}
