// Package analytics computes stock metrics, classes, coverage and risk over
// an aggregated product catalogue.
package analytics

import (
	"maps"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
)

const (
	daysPerMonth  = 30.0
	daysPerYear   = 365.0
	trendWindow   = 3
	minTrend      = 0.3
	maxTrend      = 3.0
	minXYZHistory = 3
	cvStable      = 0.3
	cvModerate    = 0.6
	shareA        = 0.8
	shareB        = 0.95
)

// GenericsLookup returns the nationally known generics of a molecule at a dosage.
type GenericsLookup func(molecule, dosage string) []domain.ReferenceEntry

// Calculator runs the full metrics pass. It holds no state between runs.
type Calculator struct {
	settings domain.Settings
	now      time.Time
	generics GenericsLookup
}

// NewCalculator creates a calculator evaluated at now. A nil lookup means no
// reference data is loaded.
func NewCalculator(settings domain.Settings, now time.Time, generics GenericsLookup) *Calculator {
	if generics == nil {
		generics = func(string, string) []domain.ReferenceEntry { return nil }
	}
	return &Calculator{settings: settings, now: now, generics: generics}
}

// Result holds the catalogue-wide aggregates of one run.
type Result struct {
	MoleculeGroups []*domain.MoleculeGroup `json:"molecule_groups"`
	CategoryGroups []*domain.CategoryGroup `json:"category_groups"`
	Suppliers      []*domain.Supplier      `json:"suppliers"`
}

// Compute fills every derived field of products in place. months lists the
// ledger months in chronological order; when empty it is derived from the
// products' own history.
func (c *Calculator) Compute(products []*domain.Product, months []string) Result {
	if len(months) == 0 {
		months = LedgerMonths(products)
	}

	// 1. Per-product consumption, prices and suppliers
	for _, p := range products {
		c.measure(p, months)
	}

	// 2. Global Pareto cut, needed by the class-keyed target
	ClassifyABC(products)

	// 3. Target stock and suggested purchase
	for _, p := range products {
		c.target(p)
	}

	// 4. Group coverage
	res := Result{
		CategoryGroups: c.categoryGroups(products),
		MoleculeGroups: c.moleculeGroups(products),
	}
	moleculeCoverage(products)

	// 5. Alerts and risk
	for _, p := range products {
		p.Alert = c.Alert(p)
		p.RiskScore = RiskScore(p)
	}

	res.Suppliers = SupplierIndex(products)
	return res
}

// LedgerMonths returns the sorted union of month keys seen in products.
func LedgerMonths(products []*domain.Product) []string {
	seen := make(map[string]struct{})
	for _, p := range products {
		for mk := range p.MonthlyExits {
			seen[mk] = struct{}{}
		}
		for mk := range p.MonthlyEntries {
			seen[mk] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

func (c *Calculator) measure(p *domain.Product, months []string) {
	// Expiry split
	nearLimit := c.now.AddDate(0, 0, c.settings.NearExpiryDays)
	p.ExpiredQty, p.NearExpiryQty = 0, 0
	for _, lot := range p.Lots {
		switch {
		case lot.Expiry.IsZero():
		case lot.Expiry.Before(c.now):
			p.ExpiredQty += lot.Qty
		case lot.Expiry.Before(nearLimit):
			p.NearExpiryQty += lot.Qty
		}
	}
	p.EffectiveStock = math.Max(0, p.Stock-p.ExpiredQty)

	// Seasonality
	keys := slices.Sorted(maps.Keys(p.MonthlyExits))
	var buckets [12][]float64
	for _, mk := range keys {
		if m := monthOf(mk); m > 0 {
			buckets[m-1] = append(buckets[m-1], p.MonthlyExits[mk])
		}
	}
	var avgs [12]float64
	var total float64
	for i, vals := range buckets {
		if len(vals) > 0 {
			avgs[i] = sum(vals) / float64(len(vals))
		}
		total += avgs[i]
	}
	overall := total / 12
	for i := range p.Seasonality {
		p.Seasonality[i] = 1
		if overall > 0 {
			p.Seasonality[i] = avgs[i] / overall
		}
	}
	p.AvgMonthlyExits = overall
	p.AvgDailyExits = overall / daysPerMonth

	values := make([]float64, 0, len(keys))
	for _, mk := range keys {
		values = append(values, p.MonthlyExits[mk])
	}
	if fromMonthly := sum(values); fromMonthly > 0 {
		p.YearlyExits = math.Max(p.YearlyExits, fromMonthly)
	}

	// Trend over the last ledger months
	p.Trend = 1
	if overall > 0 {
		recent := months
		if len(recent) > trendWindow {
			recent = recent[len(recent)-trendWindow:]
		}
		var r float64
		for _, mk := range recent {
			r += p.MonthlyExits[mk]
		}
		p.Trend = clamp((r/trendWindow)/overall, minTrend, maxTrend)
	}

	// Variability
	p.CV = domain.MaxCV
	if len(values) >= minXYZHistory {
		mean := sum(values) / float64(len(values))
		if mean > 0 {
			var variance float64
			for _, v := range values {
				variance += (v - mean) * (v - mean)
			}
			variance /= float64(len(values))
			p.CV = math.Sqrt(variance) / mean
		}
	}
	p.XYZ = XYZClass(p.CV)

	// Consumption and days remaining
	seasonal := p.AvgDailyExits * seasonIndex(p, int(c.now.Month())-1)
	if seasonal > 0 {
		p.DailyConsumption = seasonal
	} else {
		p.DailyConsumption = p.YearlyExits / daysPerYear
	}
	p.DaysRemaining = domain.InfiniteDays
	if p.DailyConsumption > 0 {
		p.DaysRemaining = p.EffectiveStock / p.DailyConsumption
	}

	// Revenue and margin
	p.YearlyRevenue = p.YearlyExits * p.SalePrice
	p.Margin = 0
	if p.PurchasePrice > 0 {
		p.Margin = (p.SalePrice - p.PurchasePrice) / p.PurchasePrice
	}

	c.rankSuppliers(p)
}

// rankSuppliers sets each supplier's latest and average price and ranks the
// suppliers by latest positive price.
func (c *Calculator) rankSuppliers(p *domain.Product) {
	staleAfter := time.Duration(c.settings.StalePriceMonths) * daysPerMonth * 24 * time.Hour
	quotes := make([]domain.SupplierQuote, 0, len(p.Suppliers))
	for _, name := range slices.Sorted(maps.Keys(p.Suppliers)) {
		h := p.Suppliers[name]
		priced := make([]domain.SupplierPurchase, 0, len(h.Entries))
		for _, e := range h.Entries {
			if e.Price > 0 {
				priced = append(priced, e)
			}
		}
		if len(priced) == 0 {
			continue
		}
		sort.SliceStable(priced, func(i, j int) bool { return priced[i].Date.After(priced[j].Date) })
		latest := priced[0]

		var prices float64
		for _, e := range h.Entries {
			prices += e.Price
		}
		h.LatestPrice = latest.Price
		h.LatestDate = latest.Date
		h.AvgPrice = prices / float64(len(h.Entries))

		quotes = append(quotes, domain.SupplierQuote{
			Supplier: name,
			Price:    latest.Price,
			Date:     latest.Date,
			TotalQty: h.TotalQty,
			Entries:  len(h.Entries),
			Stale:    c.settings.StalePriceMonths > 0 && !latest.Date.IsZero() && c.now.Sub(latest.Date) > staleAfter,
		})
	}
	sort.SliceStable(quotes, func(i, j int) bool { return quotes[i].Price < quotes[j].Price })

	p.SupplierRanking = quotes
	p.BestSupplier, p.SecondBestSupplier = domain.SupplierQuote{}, domain.SupplierQuote{}
	if len(quotes) > 0 {
		p.BestSupplier = quotes[0]
	}
	if len(quotes) > 1 {
		p.SecondBestSupplier = quotes[1]
	}
}

func (c *Calculator) target(p *domain.Product) {
	months := c.settings.TargetMonthsFor(p.Class())
	growth := c.settings.GrowthMultiplier(p.Category)
	perMonth := func(offset int) float64 {
		idx := (int(c.now.Month()) - 1 + offset) % 12
		return p.AvgMonthlyExits * seasonIndex(p, idx) * p.Trend * growth
	}

	full := int(math.Floor(months))
	var target float64
	for i := 0; i < full; i++ {
		target += perMonth(i)
	}
	if frac := months - float64(full); frac > 0 {
		target += perMonth(full) * frac
	}

	p.TargetMonths = months
	if p.Withdrawn {
		p.TargetStock, p.SuggestedPurchase, p.PurchaseCost = 0, 0, 0
		return
	}
	p.TargetStock = math.Ceil(target)
	p.SuggestedPurchase = math.Max(0, p.TargetStock-p.EffectiveStock)
	p.PurchaseCost = p.SuggestedPurchase * p.PurchasePrice
}

// ClassifyABC ranks products by yearly revenue and applies the 80/95 Pareto
// cut. With no revenue at all every product is class C.
func ClassifyABC(products []*domain.Product) {
	ranked := make([]*domain.Product, len(products))
	copy(ranked, products)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].YearlyRevenue > ranked[j].YearlyRevenue })

	var total float64
	for _, p := range ranked {
		total += p.YearlyRevenue
	}
	var cum float64
	for _, p := range ranked {
		if total <= 0 {
			p.ABC = domain.ClassC
			continue
		}
		cum += p.YearlyRevenue
		switch share := cum / total; {
		case share <= shareA:
			p.ABC = domain.ClassA
		case share <= shareB:
			p.ABC = domain.ClassB
		default:
			p.ABC = domain.ClassC
		}
	}
}

// XYZClass maps a coefficient of variation to its variability class.
func XYZClass(cv float64) string {
	switch {
	case cv < cvStable:
		return domain.ClassX
	case cv < cvModerate:
		return domain.ClassY
	}
	return domain.ClassZ
}

// Alert returns the first matching alert level.
func (c *Calculator) Alert(p *domain.Product) domain.AlertLevel {
	switch {
	case p.Withdrawn:
		return domain.AlertWithdrawn
	case p.DailyConsumption <= 0 && p.YearlyExits <= 0:
		return domain.AlertDead
	case p.DaysRemaining <= 0:
		return domain.AlertRupture
	case p.DaysRemaining <= c.settings.AlertRupture:
		return domain.AlertNearRupture
	case p.DaysRemaining <= c.settings.AlertSecurity:
		return domain.AlertSecurity
	case p.DaysRemaining > c.settings.Overstock:
		return domain.AlertOverstock
	}
	return domain.AlertOK
}

// RiskScore sums the urgency points of a product, capped at 100.
func RiskScore(p *domain.Product) int {
	var risk float64
	switch d := p.DaysRemaining; {
	case d <= 0:
		risk += 30
	case d <= 5:
		risk += 25
	case d <= 15:
		risk += 15
	case d <= 30:
		risk += 8
	}

	switch p.ABC {
	case domain.ClassA:
		risk += 25
	case domain.ClassB:
		risk += 12
	default:
		risk += 3
	}

	switch cov := p.MoleculeCoverage; {
	case cov.Count <= 1:
		risk += 20
	case cov.TotalDays < 15:
		risk += 12
	case cov.TotalDays < 30:
		risk += 5
	}

	switch p.XYZ {
	case domain.ClassZ:
		risk += 15
	case domain.ClassY:
		risk += 8
	default:
		risk += 3
	}

	switch {
	case p.NearExpiryQty > p.EffectiveStock*0.3:
		risk += 10
	case p.NearExpiryQty > 0:
		risk += 4
	}

	return int(math.Min(100, math.Max(0, math.Round(risk))))
}

// seasonIndex reads the index of a calendar month. A month never observed
// has index 0 and is treated as average.
func seasonIndex(p *domain.Product, month int) float64 {
	if v := p.Seasonality[month]; v > 0 {
		return v
	}
	return 1
}

func monthOf(key string) int {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return 0
	}
	return int(t.Month())
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
