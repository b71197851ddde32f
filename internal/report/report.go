// Package report exports the computed catalogue as spreadsheets.
package report

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/pharmstock/backend-go/internal/analytics"
	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	purchaseSheet = "Purchase list"
	fullSheet     = "Report"
	noSupplier    = "N-A"
	maxSheetName  = 31
	dateLayout    = "02/01/2006"
)

var forbiddenSheetChars = strings.NewReplacer(`\`, "", "/", "", "*", "", "?", "", "[", "", "]", "", ":", "")

// SheetName makes s usable as a worksheet name.
func SheetName(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxSheetName {
		s = string(r[:maxSheetName])
	}
	s = strings.TrimSpace(forbiddenSheetChars.Replace(s))
	if s == "" {
		return noSupplier
	}
	return s
}

// ByRisk sorts products by risk score, highest first, then by name.
func ByRisk(products []*domain.Product) {
	slices.SortStableFunc(products, func(a, b *domain.Product) int {
		if c := cmp.Compare(b.RiskScore, a.RiskScore); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
}

// PurchaseList selects the products to reorder: a positive suggestion, not
// inactive, not withdrawn, not covered by their molecule group, and inside
// scope. The result is sorted by risk.
func PurchaseList(products []*domain.Product, scope domain.PurchaseScope) []*domain.Product {
	var out []*domain.Product
	for _, p := range products {
		if p.SuggestedPurchase <= 0 || p.Alert == domain.AlertDead || p.Withdrawn || p.MoleculeGroup.Covered {
			continue
		}
		if !scope.Includes(p.Alert) {
			continue
		}
		out = append(out, p)
	}
	ByRisk(out)
	return out
}

// SupplierTotal is the purchase cost to send to one supplier.
type SupplierTotal struct {
	Supplier string          `json:"supplier"`
	Products []string        `json:"products"`
	Total    decimal.Decimal `json:"total"`
}

// SupplierOf returns the best supplier of p, or the placeholder name.
func SupplierOf(p *domain.Product) string {
	if p.BestSupplier.Supplier == "" {
		return noSupplier
	}
	return p.BestSupplier.Supplier
}

// BySupplier groups a purchase list by best supplier, in first-seen order.
func BySupplier(list []*domain.Product) []SupplierTotal {
	var (
		out   []SupplierTotal
		index = make(map[string]int)
	)
	for _, p := range list {
		s := SupplierOf(p)
		i, ok := index[s]
		if !ok {
			i = len(out)
			index[s] = i
			out = append(out, SupplierTotal{Supplier: s, Total: decimal.Zero})
		}
		out[i].Products = append(out[i].Products, p.Name)
		out[i].Total = out[i].Total.Add(decimal.NewFromFloat(p.PurchaseCost))
	}
	return out
}

func unitPrice(p *domain.Product) float64 {
	if p.BestSupplier.Supplier != "" && p.BestSupplier.Price > 0 {
		return p.BestSupplier.Price
	}
	return p.PurchasePrice
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func trendPercent(trend float64) string {
	return fmt.Sprintf("%.0f%%", (trend-1)*100)
}

func round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

func genericNames(generics []domain.ReferenceEntry, withLab bool) string {
	names := make([]string, 0, len(generics))
	for _, g := range generics {
		if withLab && g.Lab != "" {
			names = append(names, fmt.Sprintf("%s (%s)", g.Brand, g.Lab))
			continue
		}
		names = append(names, g.Brand)
	}
	return strings.Join(names, ", ")
}

// Builder writes the export workbooks.
type Builder struct {
	generics analytics.GenericsLookup
}

// NewBuilder returns a builder that lists available generics through lookup.
func NewBuilder(lookup analytics.GenericsLookup) *Builder {
	if lookup == nil {
		lookup = func(string, string) []domain.ReferenceEntry { return nil }
	}
	return &Builder{generics: lookup}
}

func (b *Builder) genericsOf(p *domain.Product) []domain.ReferenceEntry {
	if !p.Matched() {
		return nil
	}
	return b.generics(p.Molecule, p.MatchedDosage)
}

type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
}

func (w *sheetWriter) append(values ...any) error {
	w.row++
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	return w.f.SetSheetRow(w.sheet, cell, &values)
}

func (w *sheetWriter) header(widths []float64, names ...any) error {
	if err := w.append(names...); err != nil {
		return err
	}
	style, err := w.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(names), 1)
	if err != nil {
		return err
	}
	if err := w.f.SetCellStyle(w.sheet, "A1", last, style); err != nil {
		return err
	}
	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := w.f.SetColWidth(w.sheet, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

func newWorkbook(first string) (*excelize.File, *sheetWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), first); err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, &sheetWriter{f: f, sheet: first}, nil
}

// Purchase builds the purchase workbook: the full list on the first sheet,
// then one sheet per best supplier closed by a TOTAL row.
func (b *Builder) Purchase(list []*domain.Product) (*excelize.File, error) {
	f, w, err := newWorkbook(purchaseSheet)
	if err != nil {
		return nil, err
	}

	err = w.header([]float64{40, 20, 12, 5, 10, 8, 18, 6, 10, 12, 12, 14, 22, 12, 22, 8, 50},
		"Product", "Molecule", "Dosage", "Class", "Stock", "Days", "Alert", "Risk", "Qty to order",
		"Best price", "Price date", "Cost", "Supplier", "2nd price", "2nd supplier", "Trend", "Available generics")
	if err != nil {
		f.Close()
		return nil, err
	}
	for _, p := range list {
		var second any = ""
		if p.SecondBestSupplier.Supplier != "" {
			second = p.SecondBestSupplier.Price
		}
		err := w.append(p.Name, p.Molecule, p.MatchedDosage, p.Class(), p.EffectiveStock, math.Round(p.DaysRemaining),
			p.Alert.Label(), p.RiskScore, p.SuggestedPurchase, unitPrice(p), formatDate(p.BestSupplier.Date),
			p.PurchaseCost, p.BestSupplier.Supplier, second, p.SecondBestSupplier.Supplier,
			trendPercent(p.Trend), genericNames(b.genericsOf(p), true))
		if err != nil {
			f.Close()
			return nil, err
		}
	}

	byName := make(map[string]*domain.Product, len(list))
	for _, p := range list {
		byName[p.Name] = p
	}
	used := map[string]string{strings.ToLower(purchaseSheet): purchaseSheet}
	for _, group := range BySupplier(list) {
		name := uniqueSheetName(SheetName(group.Supplier), used)
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
		sw := &sheetWriter{f: f, sheet: name}
		if err := sw.header([]float64{40, 20, 10, 8, 12, 12, 14}, "Product", "Molecule", "Stock", "Qty", "Unit price", "Date", "Total"); err != nil {
			f.Close()
			return nil, err
		}
		for _, n := range group.Products {
			p := byName[n]
			if err := sw.append(p.Name, p.Molecule, p.EffectiveStock, p.SuggestedPurchase, unitPrice(p), formatDate(p.BestSupplier.Date), p.PurchaseCost); err != nil {
				f.Close()
				return nil, err
			}
		}
		if err := sw.append("", "", "", "", "", "TOTAL:", group.Total.Round(2).InexactFloat64()); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func uniqueSheetName(name string, used map[string]string) string {
	if first, ok := used[strings.ToLower(name)]; ok {
		name = first
	}
	candidate := name
	for i := 2; used[strings.ToLower(candidate)] != ""; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		r := []rune(name)
		if len(r)+len(suffix) > maxSheetName {
			r = []rune(strings.TrimSpace(string(r[:maxSheetName-len(suffix)])))
		}
		candidate = string(r) + suffix
	}
	used[strings.ToLower(candidate)] = candidate
	return candidate
}

// Full builds the report of every active product, sorted by risk.
func (b *Builder) Full(products []*domain.Product) (*excelize.File, error) {
	active := make([]*domain.Product, 0, len(products))
	for _, p := range products {
		if p.Alert != domain.AlertDead {
			active = append(active, p)
		}
	}
	ByRisk(active)

	f, w, err := newWorkbook(fullSheet)
	if err != nil {
		return nil, err
	}
	err = w.header(nil,
		"Product", "Molecule", "Dosage", "Lab", "Molecule code", "ABC/XYZ", "Stock", "Expired", "Near expiry",
		"Daily use", "Days", "Alert", "Risk", "Target", "Suggested", "Group covered", "Merged names",
		"Purchase price", "Sale price", "Margin %", "Cost", "Best supplier", "Price", "Date",
		"2nd supplier", "2nd price", "Trend", "Available generics")
	if err != nil {
		f.Close()
		return nil, err
	}
	for _, p := range active {
		covered := "NO"
		if p.MoleculeGroup.Covered {
			covered = "YES"
		}
		merged := ""
		if len(p.MergedNames) > 1 {
			merged = strings.Join(p.MergedNames, " | ")
		}
		var best, second any = "", ""
		if p.BestSupplier.Supplier != "" {
			best = p.BestSupplier.Price
		}
		if p.SecondBestSupplier.Supplier != "" {
			second = p.SecondBestSupplier.Price
		}
		err := w.append(p.Name, p.Molecule, p.MatchedDosage, p.Lab, p.MoleculeCode, p.Class(), p.EffectiveStock,
			p.ExpiredQty, p.NearExpiryQty, round(p.DailyConsumption, 2), math.Round(p.DaysRemaining), p.Alert.Label(),
			p.RiskScore, p.TargetStock, p.SuggestedPurchase, covered, merged, p.PurchasePrice, p.SalePrice,
			round(p.Margin*100, 1), p.PurchaseCost, p.BestSupplier.Supplier, best, formatDate(p.BestSupplier.Date),
			p.SecondBestSupplier.Supplier, second, trendPercent(p.Trend), genericNames(b.genericsOf(p), false))
		if err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// Bytes serializes f and closes it.
func Bytes(f *excelize.File) ([]byte, error) {
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

// FileName returns the dated download name of an export.
func FileName(kind string, at time.Time) string {
	return fmt.Sprintf("pharmstock_%s_%s.xlsx", kind, at.Format("2006-01-02"))
}
