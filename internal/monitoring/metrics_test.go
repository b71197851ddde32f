package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
)

func TestObserveSummary(t *testing.T) {
	ObserveSummary(domain.DashboardSummary{
		Products:     12,
		PurchaseCost: 340.5,
		Alerts: []domain.AlertSummary{
			{Level: domain.AlertRupture, Count: 3},
			{Level: domain.AlertOK, Count: 9},
		},
	})

	assert.Equal(t, 12.0, testutil.ToFloat64(CatalogueProducts))
	assert.Equal(t, 340.5, testutil.ToFloat64(PurchaseCost))
	assert.Equal(t, 3.0, testutil.ToFloat64(AlertProducts.WithLabelValues("rupture")))

	ObserveSummary(domain.DashboardSummary{Alerts: []domain.AlertSummary{{Level: domain.AlertOK, Count: 1}}})
	assert.Equal(t, 1, testutil.CollectAndCount(AlertProducts), "stale levels are dropped")
}

func TestObserveImport(t *testing.T) {
	before := testutil.ToFloat64(ImportsTotal.WithLabelValues("ledger", "imported"))
	ObserveImport(domain.ImportOutcome{Kind: domain.KindLedger, Status: domain.FileStatusImported})
	assert.Equal(t, before+1, testutil.ToFloat64(ImportsTotal.WithLabelValues("ledger", "imported")))
}
