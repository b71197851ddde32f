package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
)

func product(name string, alert domain.AlertLevel, risk int, suggested, cost float64, supplier string) *domain.Product {
	p := domain.NewProduct(name)
	p.Alert = alert
	p.RiskScore = risk
	p.SuggestedPurchase = suggested
	p.PurchaseCost = cost
	p.PurchasePrice = 10
	if supplier != "" {
		p.BestSupplier = domain.SupplierQuote{Supplier: supplier, Price: 9.5, Date: time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)}
	}
	return p
}

func fixture() []*domain.Product {
	covered := product("COVERED", domain.AlertRupture, 90, 5, 50, "SOPHAL")
	covered.MoleculeGroup.Covered = true
	withdrawn := product("WITHDRAWN", domain.AlertRupture, 90, 5, 50, "SOPHAL")
	withdrawn.Withdrawn = true

	return []*domain.Product{
		product("SECURITY", domain.AlertSecurity, 40, 10, 95, "SOPHAL"),
		product("RUPTURE", domain.AlertRupture, 80, 20, 190.1, "SOPHAL"),
		product("NEAR", domain.AlertNearRupture, 60, 8, 76.2, ""),
		product("OK", domain.AlertOK, 5, 3, 28.5, "HYDRAPHARM/EST"),
		product("DEAD", domain.AlertDead, 0, 3, 30, "SOPHAL"),
		product("NOTHING", domain.AlertOK, 3, 0, 0, "SOPHAL"),
		covered,
		withdrawn,
	}
}

func names(list []*domain.Product) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.Name
	}
	return out
}

func TestPurchaseList(t *testing.T) {
	tests := []struct {
		scope domain.PurchaseScope
		want  []string
	}{
		{domain.ScopeRupture, []string{"RUPTURE", "NEAR"}},
		{domain.ScopeUrgent, []string{"RUPTURE", "NEAR", "SECURITY"}},
		{domain.ScopeAll, []string{"RUPTURE", "NEAR", "SECURITY", "OK"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.scope), func(t *testing.T) {
			assert.Equal(t, tt.want, names(PurchaseList(fixture(), tt.scope)))
		})
	}
}

func TestBySupplier(t *testing.T) {
	groups := BySupplier(PurchaseList(fixture(), domain.ScopeAll))
	require.Len(t, groups, 3)

	assert.Equal(t, "SOPHAL", groups[0].Supplier)
	assert.Equal(t, []string{"RUPTURE", "SECURITY"}, groups[0].Products)
	assert.True(t, decimal.RequireFromString("285.1").Equal(groups[0].Total), groups[0].Total.String())
	assert.Equal(t, "N-A", groups[1].Supplier)
	assert.Equal(t, "HYDRAPHARM/EST", groups[2].Supplier)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "HYDRAPHARMEST", SheetName("HYDRAPHARM/EST"))
	assert.Equal(t, "N-A", SheetName(" [?] "))
	// Cut at 31 runes, then the trailing space is trimmed.
	assert.Equal(t, "GROUPE PHARMACEUTIQUE DU GRAND", SheetName("GROUPE PHARMACEUTIQUE DU GRAND SUD ALGERIEN"))
	assert.Equal(t, "PHARMACEUTIQUE INDUSTRIES ALGER", SheetName("PHARMACEUTIQUE INDUSTRIES ALGERIE"))

	used := map[string]string{}
	assert.Equal(t, "SOPHAL", uniqueSheetName("SOPHAL", used))
	assert.Equal(t, "SOPHAL (2)", uniqueSheetName("sophal", used))
	assert.Equal(t, "SOPHAL (3)", uniqueSheetName("Sophal", used))
	assert.Equal(t, "BIOPHARM", uniqueSheetName("BIOPHARM", used))

	long := SheetName("PHARMACEUTIQUE INDUSTRIES ALGERIE")
	assert.Equal(t, long, uniqueSheetName(long, used))
	second := uniqueSheetName(long, used)
	assert.Equal(t, "PHARMACEUTIQUE INDUSTRIES A (2)", second)
	assert.LessOrEqual(t, len([]rune(second)), 31)
}

func openWorkbook(t *testing.T, f *excelize.File) *excelize.File {
	t.Helper()
	body, err := Bytes(f)
	require.NoError(t, err)
	out, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { out.Close() })
	return out
}

func TestBuilder_Purchase(t *testing.T) {
	generics := func(molecule, dosage string) []domain.ReferenceEntry {
		return []domain.ReferenceEntry{{Brand: "DOLIPRANE", Lab: "SANOFI"}, {Brand: "PARALGAN"}}
	}
	list := PurchaseList(fixture(), domain.ScopeAll)
	list[0].Molecule, list[0].MatchedDosage = "PARACETAMOL", "500MG"

	f, err := NewBuilder(generics).Purchase(list)
	require.NoError(t, err)
	wb := openWorkbook(t, f)

	assert.Equal(t, []string{"Purchase list", "SOPHAL", "N-A", "HYDRAPHARMEST"}, wb.GetSheetList())

	rows, err := wb.GetRows("Purchase list")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Product", rows[0][0])
	assert.Equal(t, "RUPTURE", rows[1][0])
	assert.Equal(t, "DOLIPRANE (SANOFI), PARALGAN", rows[1][16])
	assert.Equal(t, "03/02/2026", rows[1][10])

	sophal, err := wb.GetRows("SOPHAL")
	require.NoError(t, err)
	require.Len(t, sophal, 4)
	last := sophal[3]
	assert.Equal(t, "TOTAL:", last[5])
	assert.Equal(t, "285.1", last[6])
}

func TestBuilder_Full(t *testing.T) {
	products := fixture()
	products[0].MergedNames = []string{"SECURITY", "SECURITY BIS"}

	f, err := NewBuilder(nil).Full(products)
	require.NoError(t, err)
	wb := openWorkbook(t, f)

	rows, err := wb.GetRows("Report")
	require.NoError(t, err)
	require.Len(t, rows, 8, "header plus every non-dead product")
	assert.Equal(t, "COVERED", rows[1][0])
	assert.Equal(t, "YES", rows[1][15])

	var security []string
	for _, r := range rows {
		if r[0] == "SECURITY" {
			security = r
		}
	}
	require.NotNil(t, security)
	assert.Equal(t, "SECURITY | SECURITY BIS", security[16])
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "pharmstock_purchase_2026-03-15.xlsx", FileName("purchase", time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)))
}
