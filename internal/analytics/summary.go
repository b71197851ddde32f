package analytics

import (
	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
)

var alertOrder = []domain.AlertLevel{
	domain.AlertRupture,
	domain.AlertNearRupture,
	domain.AlertSecurity,
	domain.AlertOK,
	domain.AlertOverstock,
	domain.AlertDead,
	domain.AlertWithdrawn,
}

// Summarize builds the dashboard totals of a computed catalogue. Identity
// fields (snapshot id, merged count, months) are left to the caller.
func Summarize(products []*domain.Product, res Result) domain.DashboardSummary {
	s := domain.DashboardSummary{
		Products:       len(products),
		MoleculeGroups: len(res.MoleculeGroups),
		Suppliers:      len(res.Suppliers),
	}

	alerts := make(map[domain.AlertLevel]*domain.AlertSummary, len(alertOrder))
	for _, lvl := range alertOrder {
		alerts[lvl] = &domain.AlertSummary{Level: lvl, Label: lvl.Label()}
	}
	classes := map[string]*domain.ClassSummary{
		domain.ClassA: {Class: domain.ClassA},
		domain.ClassB: {Class: domain.ClassB},
		domain.ClassC: {Class: domain.ClassC},
	}

	for _, p := range products {
		value := p.EffectiveStock * p.PurchasePrice
		s.StockValue += value
		s.PurchaseCost += p.PurchaseCost
		s.ExpiredQty += p.ExpiredQty
		s.NearExpiryQty += p.NearExpiryQty
		if p.Withdrawn {
			s.Withdrawn++
		}

		if a, ok := alerts[p.Alert]; ok {
			a.Count++
			a.StockValue += value
			a.PurchaseCost += p.PurchaseCost
		}
		if c, ok := classes[p.ABC]; ok {
			c.Count++
			c.Revenue += p.YearlyRevenue
		}

		switch {
		case p.ManuallyCorrected:
			s.Matching.Manual++
		case p.MatchConfidence == domain.MatchApproximate:
			s.Matching.Approximate++
		case p.MatchConfidence == domain.MatchExact:
			s.Matching.Exact++
		default:
			s.Matching.Unmatched++
		}
	}

	for _, lvl := range alertOrder {
		s.Alerts = append(s.Alerts, *alerts[lvl])
	}
	for _, c := range []string{domain.ClassA, domain.ClassB, domain.ClassC} {
		s.Classes = append(s.Classes, *classes[c])
	}
	return s
}
