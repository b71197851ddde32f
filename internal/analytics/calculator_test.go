package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
)

var now = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

// steadyProduct exits qty every month of 2025.
func steadyProduct(name string, stock, qty float64) *domain.Product {
	p := domain.NewProduct(name)
	p.Stock = stock
	for m := 1; m <= 12; m++ {
		p.MonthlyExits[fmt.Sprintf("2025-%02d", m)] = qty
	}
	p.YearlyExits = qty * 12
	return p
}

func TestCompute_DaysRemainingScenario(t *testing.T) {
	tests := []struct {
		name     string
		rupture  float64
		security float64
		expected domain.AlertLevel
	}{
		{name: "rupture threshold covers ten days", rupture: 10, security: 15, expected: domain.AlertNearRupture},
		{name: "default thresholds", rupture: 5, security: 15, expected: domain.AlertSecurity},
		{name: "low thresholds", rupture: 2, security: 5, expected: domain.AlertOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := domain.DefaultSettings()
			settings.AlertRupture = tt.rupture
			settings.AlertSecurity = tt.security

			p := steadyProduct("DOLIPRANE 500MG B/16", 50, 150)
			NewCalculator(settings, now, nil).Compute([]*domain.Product{p}, nil)

			assert.Equal(t, 50.0, p.EffectiveStock)
			assert.Equal(t, 150.0, p.AvgMonthlyExits)
			assert.Equal(t, 5.0, p.DailyConsumption)
			assert.Equal(t, 10.0, p.DaysRemaining)
			assert.Equal(t, tt.expected, p.Alert)
		})
	}
}

func TestCompute_DeadProduct(t *testing.T) {
	p := domain.NewProduct("VIEUX SIROP")
	p.Stock = 12
	NewCalculator(domain.DefaultSettings(), now, nil).Compute([]*domain.Product{p}, nil)

	assert.Equal(t, domain.AlertDead, p.Alert)
	assert.Equal(t, domain.InfiniteDays, p.DaysRemaining)
	assert.Zero(t, p.DailyConsumption)
	assert.Equal(t, domain.MaxCV, p.CV)
	assert.Equal(t, domain.ClassZ, p.XYZ)
	for _, v := range p.Seasonality {
		assert.Equal(t, 1.0, v)
	}
}

func TestCompute_YearlyFallback(t *testing.T) {
	p := domain.NewProduct("LOMAC 20MG")
	p.Stock = 73
	p.YearlyExits = 365
	NewCalculator(domain.DefaultSettings(), now, nil).Compute([]*domain.Product{p}, nil)

	assert.Equal(t, 1.0, p.DailyConsumption)
	assert.Equal(t, 73.0, p.DaysRemaining)
}

func TestCompute_WithdrawnNeverPurchased(t *testing.T) {
	p := steadyProduct("ZANTAC 150MG", 0, 300)
	p.Withdrawn = true
	p.PurchasePrice = 40
	NewCalculator(domain.DefaultSettings(), now, nil).Compute([]*domain.Product{p}, nil)

	assert.Equal(t, domain.AlertWithdrawn, p.Alert)
	assert.Zero(t, p.TargetStock)
	assert.Zero(t, p.SuggestedPurchase)
	assert.Zero(t, p.PurchaseCost)
}

func TestCompute_ExpirySplit(t *testing.T) {
	p := domain.NewProduct("AUGMENTIN 1G")
	p.Stock = 30
	p.Lots = []domain.StockLot{
		{Qty: 5, Expiry: now.AddDate(0, -1, 0)},
		{Qty: 7, Expiry: now.AddDate(0, 0, 30)},
		{Qty: 10, Expiry: now.AddDate(1, 0, 0)},
		{Qty: 8},
	}
	NewCalculator(domain.DefaultSettings(), now, nil).Compute([]*domain.Product{p}, nil)

	assert.Equal(t, 5.0, p.ExpiredQty)
	assert.Equal(t, 7.0, p.NearExpiryQty)
	assert.Equal(t, 25.0, p.EffectiveStock)

	q := domain.NewProduct("PERIME")
	q.Stock = 3
	q.Lots = []domain.StockLot{{Qty: 5, Expiry: now.AddDate(0, 0, -1)}}
	NewCalculator(domain.DefaultSettings(), now, nil).Compute([]*domain.Product{q}, nil)
	assert.Zero(t, q.EffectiveStock)
}

func TestCompute_TargetStock(t *testing.T) {
	p := steadyProduct("DOLIPRANE 500MG", 50, 150)
	p.PurchasePrice = 10
	NewCalculator(domain.DefaultSettings(), now, nil).Compute([]*domain.Product{p}, nil)

	// A single product carries all revenue and falls into C; steady exits are X.
	assert.Equal(t, "CX", p.Class())
	assert.Equal(t, 2.0, p.TargetMonths)
	assert.Equal(t, 300.0, p.TargetStock)
	assert.Equal(t, 250.0, p.SuggestedPurchase)
	assert.Equal(t, 2500.0, p.PurchaseCost)

	settings := domain.DefaultSettings()
	settings.TargetMonths["CX"] = 1.5
	settings.GrowthCategories[domain.CategoryOther] = 10
	q := steadyProduct("DOLIPRANE 500MG", 50, 150)
	NewCalculator(settings, now, nil).Compute([]*domain.Product{q}, nil)
	assert.Equal(t, 1.5, q.TargetMonths)
	assert.Equal(t, 248.0, q.TargetStock)
}

func TestCompute_TrendClamped(t *testing.T) {
	p := domain.NewProduct("SPASFON")
	for m := 1; m <= 12; m++ {
		qty := 10.0
		if m > 9 {
			qty = 100
		}
		p.MonthlyExits[fmt.Sprintf("2025-%02d", m)] = qty
	}
	NewCalculator(domain.DefaultSettings(), now, nil).Compute([]*domain.Product{p}, nil)
	assert.Equal(t, 3.0, p.Trend)

	q := domain.NewProduct("SPASFON LYOC")
	q.MonthlyExits["2025-01"] = 120
	NewCalculator(domain.DefaultSettings(), now, nil).Compute([]*domain.Product{q}, []string{"2025-01", "2025-02", "2025-03", "2025-04"})
	assert.Equal(t, 0.3, q.Trend)
}

func TestCompute_XYZ(t *testing.T) {
	tests := []struct {
		name     string
		exits    []float64
		expected string
	}{
		{name: "stable", exits: []float64{100, 100, 100, 100}, expected: domain.ClassX},
		{name: "moderate", exits: []float64{60, 140, 60, 140}, expected: domain.ClassY},
		{name: "erratic", exits: []float64{0, 200, 0, 200}, expected: domain.ClassZ},
		{name: "too short", exits: []float64{100, 100}, expected: domain.ClassZ},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := domain.NewProduct("P")
			for i, v := range tt.exits {
				p.MonthlyExits[fmt.Sprintf("2025-%02d", i+1)] = v
			}
			NewCalculator(domain.DefaultSettings(), now, nil).Compute([]*domain.Product{p}, nil)
			assert.Equal(t, tt.expected, p.XYZ)
		})
	}
}

func TestClassifyABC(t *testing.T) {
	a := &domain.Product{Name: "A", YearlyRevenue: 80}
	b := &domain.Product{Name: "B", YearlyRevenue: 15}
	c := &domain.Product{Name: "C", YearlyRevenue: 5}
	ClassifyABC([]*domain.Product{c, a, b})
	assert.Equal(t, domain.ClassA, a.ABC)
	assert.Equal(t, domain.ClassB, b.ABC)
	assert.Equal(t, domain.ClassC, c.ABC)

	x := &domain.Product{Name: "X"}
	y := &domain.Product{Name: "Y"}
	ClassifyABC([]*domain.Product{x, y})
	assert.Equal(t, domain.ClassC, x.ABC)
	assert.Equal(t, domain.ClassC, y.ABC)
}

func TestClassifyABC_BoundaryItem(t *testing.T) {
	var products []*domain.Product
	for i := 0; i < 10; i++ {
		products = append(products, &domain.Product{Name: fmt.Sprint(i), YearlyRevenue: float64(100 - i*10)})
	}
	ClassifyABC(products)

	var total, cumA float64
	for _, p := range products {
		total += p.YearlyRevenue
	}
	var last float64
	for _, p := range products {
		if p.ABC == domain.ClassA {
			cumA += p.YearlyRevenue
			last = p.YearlyRevenue
		}
	}
	assert.LessOrEqual(t, (cumA-last)/total, shareA)
}

func TestCompute_SupplierRanking(t *testing.T) {
	p := steadyProduct("LOMAC 20MG", 10, 30)
	p.Suppliers["SOPHAL"] = &domain.SupplierHistory{
		Entries: []domain.SupplierPurchase{
			{Price: 100, Qty: 10, Date: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
			{Price: 90, Qty: 10, Date: time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)},
		},
		TotalQty: 20,
	}
	p.Suppliers["BIOPHARM"] = &domain.SupplierHistory{
		Entries:  []domain.SupplierPurchase{{Price: 95, Qty: 5, Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}},
		TotalQty: 5,
	}
	p.Suppliers["GRATUIT"] = &domain.SupplierHistory{
		Entries:  []domain.SupplierPurchase{{Price: 0, Qty: 5}},
		TotalQty: 5,
	}

	res := NewCalculator(domain.DefaultSettings(), now, nil).Compute([]*domain.Product{p}, nil)

	require.Len(t, p.SupplierRanking, 2)
	assert.Equal(t, "SOPHAL", p.BestSupplier.Supplier)
	assert.Equal(t, 90.0, p.BestSupplier.Price)
	assert.True(t, p.BestSupplier.Stale)
	assert.Equal(t, "BIOPHARM", p.SecondBestSupplier.Supplier)
	assert.False(t, p.SecondBestSupplier.Stale)
	assert.Equal(t, 95.0, p.Suppliers["SOPHAL"].AvgPrice)

	require.Len(t, res.Suppliers, 3)
	assert.Equal(t, "BIOPHARM", res.Suppliers[0].Name)
	sophal := res.Suppliers[2]
	assert.Equal(t, "SOPHAL", sophal.Name)
	assert.Equal(t, 2, sophal.OrderCount)
	assert.Equal(t, 1900.0, sophal.TotalSpend)
	assert.Equal(t, 90.0, sophal.Products["LOMAC 20MG"].LatestPrice)
	assert.Zero(t, res.Suppliers[1].TotalSpend)
}

func TestCompute_MoleculeGroupCoverage(t *testing.T) {
	generics := func(molecule, dosage string) []domain.ReferenceEntry {
		if molecule == "PARACETAMOL" && dosage == "500MG" {
			return []domain.ReferenceEntry{
				{Brand: "DOLIPRANE", Molecule: "PARACETAMOL", NormDosage: "500MG"},
				{Brand: "EFFERALGAN", Molecule: "PARACETAMOL", NormDosage: "500MG"},
			}
		}
		return nil
	}
	resolved := func(name, brand string, stock float64) *domain.Product {
		p := steadyProduct(name, stock, 150)
		p.Molecule = "PARACETAMOL"
		p.MatchedDosage = "500MG"
		p.MatchedBrand = brand
		return p
	}

	doliprane := resolved("DOLIPRANE 500MG", "DOLIPRANE", 450)
	res := NewCalculator(domain.DefaultSettings(), now, generics).Compute([]*domain.Product{doliprane}, nil)

	require.Len(t, res.MoleculeGroups, 1)
	assert.Equal(t, 90.0, doliprane.MoleculeGroup.Days)
	assert.Equal(t, 1, doliprane.MoleculeGroup.Size)
	assert.False(t, doliprane.MoleculeGroup.Covered)
	assert.Equal(t, 2, doliprane.MoleculeGroup.TotalGenerics)
	assert.Equal(t, []string{"EFFERALGAN"}, doliprane.MoleculeGroup.MissingGenerics)
	assert.Equal(t, "PARACETAMOL|500MG", res.MoleculeGroups[0].Key)

	doliprane = resolved("DOLIPRANE 500MG", "DOLIPRANE", 450)
	paralgan := resolved("PARALGAN 500MG", "PARALGAN", 450)
	NewCalculator(domain.DefaultSettings(), now, generics).Compute([]*domain.Product{doliprane, paralgan}, nil)
	assert.True(t, doliprane.MoleculeGroup.Covered)
	assert.True(t, paralgan.MoleculeGroup.Covered)
	assert.Equal(t, 2, paralgan.MoleculeCoverage.Count)
	assert.Equal(t, 90.0, paralgan.MoleculeCoverage.TotalDays)
}

func TestCompute_CategoryGroups(t *testing.T) {
	a := steadyProduct("CREME A", 30, 30)
	a.ManualCategory = "Cosmétique"
	b := steadyProduct("CREME B", 30, 30)
	b.ManualCategory = "Cosmétique"
	c := steadyProduct("LOMAC", 30, 30)
	c.ManualCategory = "Cosmétique"
	c.Molecule = "OMEPRAZOLE"

	res := NewCalculator(domain.DefaultSettings(), now, nil).Compute([]*domain.Product{a, b, c}, nil)
	require.Len(t, res.CategoryGroups, 1)
	g := res.CategoryGroups[0]
	assert.Equal(t, []string{"CREME A", "CREME B"}, g.Products)
	assert.Equal(t, 60.0, g.TotalStock)
	assert.Equal(t, 30.0, g.Days)
	assert.Equal(t, 2, a.CategoryGroup.Size)
	assert.Zero(t, c.CategoryGroup.Size)
}

func TestRiskScore_Bounds(t *testing.T) {
	worst := &domain.Product{DaysRemaining: 0, ABC: domain.ClassA, XYZ: domain.ClassZ, NearExpiryQty: 10}
	assert.Equal(t, 100, RiskScore(worst))

	best := &domain.Product{
		DaysRemaining:    100,
		ABC:              domain.ClassC,
		XYZ:              domain.ClassX,
		EffectiveStock:   100,
		MoleculeCoverage: domain.MoleculeCoverage{Count: 3, TotalDays: 60},
	}
	assert.Equal(t, 6, RiskScore(best))

	mid := &domain.Product{
		DaysRemaining:    12,
		ABC:              domain.ClassB,
		XYZ:              domain.ClassY,
		EffectiveStock:   100,
		NearExpiryQty:    5,
		MoleculeCoverage: domain.MoleculeCoverage{Count: 2, TotalDays: 20},
	}
	assert.Equal(t, 15+12+5+8+4, RiskScore(mid))

	products := []*domain.Product{
		steadyProduct("A", 0, 100),
		steadyProduct("B", 1000, 1),
		domain.NewProduct("C"),
	}
	NewCalculator(domain.DefaultSettings(), now, nil).Compute(products, nil)
	for _, p := range products {
		assert.GreaterOrEqual(t, p.RiskScore, 0)
		assert.LessOrEqual(t, p.RiskScore, 100)
		assert.LessOrEqual(t, p.EffectiveStock, p.Stock)
	}
}

func TestAlert(t *testing.T) {
	c := NewCalculator(domain.DefaultSettings(), now, nil)
	tests := []struct {
		name     string
		product  domain.Product
		expected domain.AlertLevel
	}{
		{name: "withdrawn wins", product: domain.Product{Withdrawn: true, DailyConsumption: 1}, expected: domain.AlertWithdrawn},
		{name: "dead", product: domain.Product{DaysRemaining: domain.InfiniteDays}, expected: domain.AlertDead},
		{name: "rupture", product: domain.Product{DailyConsumption: 1}, expected: domain.AlertRupture},
		{name: "near rupture", product: domain.Product{DailyConsumption: 1, DaysRemaining: 5}, expected: domain.AlertNearRupture},
		{name: "security", product: domain.Product{DailyConsumption: 1, DaysRemaining: 15}, expected: domain.AlertSecurity},
		{name: "ok", product: domain.Product{DailyConsumption: 1, DaysRemaining: 120}, expected: domain.AlertOK},
		{name: "overstock", product: domain.Product{DailyConsumption: 1, DaysRemaining: 121}, expected: domain.AlertOverstock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.product
			assert.Equal(t, tt.expected, c.Alert(&p))
		})
	}
}

func TestSummarize(t *testing.T) {
	a := steadyProduct("A", 10, 30)
	a.PurchasePrice = 5
	a.MatchConfidence = domain.MatchExact
	b := steadyProduct("B", 0, 30)
	b.MatchConfidence = domain.MatchApproximate
	c := domain.NewProduct("C")
	c.ManuallyCorrected = true
	products := []*domain.Product{a, b, c}

	res := NewCalculator(domain.DefaultSettings(), now, nil).Compute(products, nil)
	s := Summarize(products, res)

	assert.Equal(t, 3, s.Products)
	assert.Equal(t, 50.0, s.StockValue)
	assert.Equal(t, domain.MatchSummary{Exact: 1, Approximate: 1, Manual: 1}, s.Matching)
	require.Len(t, s.Alerts, len(alertOrder))
	var counted int
	for _, al := range s.Alerts {
		counted += al.Count
	}
	assert.Equal(t, 3, counted)
	require.Len(t, s.Classes, 3)
}
