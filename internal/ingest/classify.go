package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
)

const (
	headerScanRows     = 20
	headerMinCells     = 4
	withdrawalScanRows = 10
)

// foldHeader lowercases a header cell and drops accents, spaces and
// punctuation, so "Qté" and "QTE" compare equal.
func foldHeader(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, name)
	if err != nil {
		out = name
	}
	var b strings.Builder
	for _, r := range strings.ToLower(out) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// foldUpper uppercases and drops accents, keeping spaces.
func foldUpper(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(strings.TrimSpace(out))
}

func nonEmpty(row []string) int {
	n := 0
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}

func anyHeader(header []string, pred func(string) bool) bool {
	for _, h := range header {
		if h = foldHeader(h); h != "" && pred(h) {
			return true
		}
	}
	return false
}

func isReferenceHeader(header []string) bool {
	contains := func(sub string) func(string) bool {
		return func(h string) bool { return strings.Contains(h, sub) }
	}
	return anyHeader(header, contains("dci")) &&
		anyHeader(header, contains("signation")) &&
		anyHeader(header, func(h string) bool { return strings.Contains(h, "tarif") || strings.Contains(h, "code") })
}

// LocateHeader returns the index of the header row: the first of the first
// twenty rows with at least four cells that either looks like a reference
// header or names the designation column. It defaults to the first row.
func LocateHeader(rows [][]string) int {
	limit := headerScanRows
	if len(rows) < limit {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		if nonEmpty(rows[i]) < headerMinCells {
			continue
		}
		if isReferenceHeader(rows[i]) {
			return i
		}
		if anyHeader(rows[i], func(h string) bool { return strings.Contains(h, "signation") }) {
			return i
		}
	}
	return 0
}

// Classify maps a header row onto the closed set of known layouts.
func Classify(header []string) domain.FileKind {
	if nonEmpty(header) >= headerMinCells && isReferenceHeader(header) {
		return domain.KindReference
	}
	cols := indexColumns(header)
	switch {
	case cols.has(colQty) && cols.has(colExpiry) && (cols.has(colPurchase) || cols.has(colLot)):
		return domain.KindStock
	case cols.has(colDate) && (cols.has(colQtyIn) || cols.has(colQtyOut)):
		return domain.KindLedger
	case cols.has(colRotStock) && cols.has(colRotEntries):
		return domain.KindRotation
	}
	return domain.KindUnknown
}

// ClassifyRows locates the header of rows and classifies it.
func ClassifyRows(rows [][]string) (int, domain.FileKind) {
	if len(rows) == 0 {
		return 0, domain.KindUnknown
	}
	i := LocateHeader(rows)
	return i, Classify(rows[i])
}

// IsWithdrawalSheet reports whether a sheet name marks withdrawn or
// non-renewed products.
func IsWithdrawalSheet(name string) bool {
	n := foldUpper(name)
	for _, kw := range []string{"RETRAIT", "RETIRE", "NON RENOUVEL"} {
		if strings.Contains(n, kw) {
			return true
		}
	}
	return false
}
