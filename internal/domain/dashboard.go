package domain

import "time"

// AlertSummary is the summary card for one alert level.
type AlertSummary struct {
	Level        AlertLevel `json:"level"`
	Label        string     `json:"label"`
	Count        int        `json:"count"`
	StockValue   float64    `json:"stock_value"`
	PurchaseCost float64    `json:"purchase_cost"`
}

// ClassSummary counts products and revenue per ABC class.
type ClassSummary struct {
	Class   string  `json:"class"`
	Count   int     `json:"count"`
	Revenue float64 `json:"revenue"`
}

// MatchSummary reports how products were resolved against the reference.
type MatchSummary struct {
	Exact       int `json:"exact"`
	Approximate int `json:"approximate"`
	Manual      int `json:"manual"`
	Unmatched   int `json:"unmatched"`
}

// DashboardSummary aggregates the catalogue after a recompute.
type DashboardSummary struct {
	SnapshotID     string         `json:"snapshot_id"`
	ComputedAt     time.Time      `json:"computed_at"`
	Products       int            `json:"products"`
	Merged         int            `json:"merged"`
	StockValue     float64        `json:"stock_value"`
	PurchaseCost   float64        `json:"purchase_cost"`
	ExpiredQty     float64        `json:"expired_qty"`
	NearExpiryQty  float64        `json:"near_expiry_qty"`
	Withdrawn      int            `json:"withdrawn"`
	ReferenceSize  int            `json:"reference_size"`
	LedgerMonths   []string       `json:"ledger_months"`
	Alerts         []AlertSummary `json:"alerts"`
	Classes        []ClassSummary `json:"classes"`
	Matching       MatchSummary   `json:"matching"`
	MoleculeGroups int            `json:"molecule_groups"`
	Suppliers      int            `json:"suppliers"`
}

// ProductPage is a paginated product listing.
type ProductPage struct {
	Items      []*Product `json:"items"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}
