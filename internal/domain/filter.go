package domain

// ProductFilter narrows a product listing. Zero values match everything.
type ProductFilter struct {
	Alerts   []AlertLevel `form:"alert"`
	ABC      string       `form:"abc" validate:"omitempty,oneof=A B C"`
	XYZ      string       `form:"xyz" validate:"omitempty,oneof=X Y Z"`
	Category Category     `form:"category"`
	Search   string       `form:"q"`
	Molecule string       `form:"molecule"`
	Page     int          `form:"page" validate:"gte=0"`
	PageSize int          `form:"page_size" validate:"gte=0,lte=1000"`
}

// Default page geometry for product listings.
const (
	DefaultPageSize = 50
	MaxPageSize     = 1000
)

// Normalize fills the paging defaults.
func (f ProductFilter) Normalize() ProductFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

// PurchaseScope selects which alert levels enter the purchase list.
type PurchaseScope string

const (
	// ScopeRupture keeps stockout and near-stockout products.
	ScopeRupture PurchaseScope = "rupture"
	// ScopeUrgent adds products below safety stock.
	ScopeUrgent PurchaseScope = "urgent"
	ScopeAll    PurchaseScope = "all"
)

// ParsePurchaseScope defaults unknown values to ScopeAll.
func ParsePurchaseScope(s string) PurchaseScope {
	switch PurchaseScope(s) {
	case ScopeRupture, ScopeUrgent:
		return PurchaseScope(s)
	}
	return ScopeAll
}

// Includes reports whether products at level belong in the scope.
func (s PurchaseScope) Includes(level AlertLevel) bool {
	switch s {
	case ScopeRupture:
		return level == AlertRupture || level == AlertNearRupture
	case ScopeUrgent:
		return level.Urgent()
	}
	return true
}
