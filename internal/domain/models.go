// backend-go/internal/domain/models.go
package domain

import "time"

// InfiniteDays is the days-remaining sentinel for products with no consumption.
const InfiniteDays = 9999.0

// MaxCV is the coefficient-of-variation sentinel for products with too little history.
const MaxCV = 999.0

// ReferenceEntry is one row of the national drug database.
type ReferenceEntry struct {
	Molecule     string  `json:"molecule"`
	MoleculeRaw  string  `json:"molecule_raw"`
	MoleculeCode string  `json:"molecule_code"`
	Brand        string  `json:"brand"`
	Designation  string  `json:"designation"`
	Dosage       string  `json:"dosage"`
	NormDosage   string  `json:"norm_dosage"`
	Form         string  `json:"form"`
	Code         string  `json:"code"`
	Tariff       float64 `json:"tariff"`
	Lab          string  `json:"lab,omitempty"`
	Withdrawn    bool    `json:"withdrawn"`
}

// WithdrawalRecord marks a brand (optionally at a dosage) removed from the market.
type WithdrawalRecord struct {
	Brand    string `json:"brand"`
	Molecule string `json:"molecule,omitempty"`
	Dosage   string `json:"dosage,omitempty"`
	Code     string `json:"code,omitempty"`
}

// StockLot is one nomenclature line.
type StockLot struct {
	Name          string    `json:"name"`
	Qty           float64   `json:"qty"`
	PurchasePrice float64   `json:"purchase_price"`
	SalePrice     float64   `json:"sale_price"`
	Lot           string    `json:"lot,omitempty"`
	Expiry        time.Time `json:"expiry"`
	AcquiredAt    time.Time `json:"acquired_at"`
	Barcode       string    `json:"barcode,omitempty"`
}

// MovementRow is one ledger line.
type MovementRow struct {
	Name          string    `json:"name"`
	Date          time.Time `json:"date"`
	QtyIn         float64   `json:"qty_in"`
	QtyOut        float64   `json:"qty_out"`
	Counterparty  string    `json:"counterparty,omitempty"`
	PurchasePrice float64   `json:"purchase_price"`
	SalePrice     float64   `json:"sale_price"`
	Lot           string    `json:"lot,omitempty"`
	Expiry        time.Time `json:"expiry"`
	Barcode       string    `json:"barcode,omitempty"`
}

// Month returns the YYYY-MM key of the movement, empty when undated.
func (r MovementRow) Month() string {
	if r.Date.IsZero() {
		return ""
	}
	return r.Date.Format("2006-01")
}

// RotationRow is one line of the annual rotation summary.
type RotationRow struct {
	Name     string  `json:"name"`
	Stock    float64 `json:"stock"`
	Entries  float64 `json:"entries"`
	Exits    float64 `json:"exits"`
	Molecule string  `json:"molecule,omitempty"`
	Lab      string  `json:"lab,omitempty"`
}

// SupplierPurchase is one priced delivery from a supplier.
type SupplierPurchase struct {
	Price float64   `json:"price"`
	Date  time.Time `json:"date"`
	Qty   float64   `json:"qty"`
}

// SupplierHistory collects the deliveries of one supplier for one product.
type SupplierHistory struct {
	Entries     []SupplierPurchase `json:"entries"`
	TotalQty    float64            `json:"total_qty"`
	LatestPrice float64            `json:"latest_price"`
	LatestDate  time.Time          `json:"latest_date"`
	AvgPrice    float64            `json:"avg_price"`
}

// SupplierQuote is the ranked latest price of one supplier.
type SupplierQuote struct {
	Supplier string    `json:"supplier"`
	Price    float64   `json:"price"`
	Date     time.Time `json:"date"`
	TotalQty float64   `json:"total_qty"`
	Entries  int       `json:"entries"`
	Stale    bool      `json:"stale"`
}

// GroupCoverage is the aggregate a product shares with its molecule or category group.
type GroupCoverage struct {
	Key              string   `json:"key"`
	Size             int      `json:"size"`
	Stock            float64  `json:"stock"`
	DailyConsumption float64  `json:"daily_consumption"`
	Days             float64  `json:"days"`
	Covered          bool     `json:"covered"`
	TotalGenerics    int      `json:"total_generics"`
	MissingGenerics  []string `json:"missing_generics,omitempty"`
}

// MoleculeCoverage aggregates every product sharing a molecule, regardless of dosage.
type MoleculeCoverage struct {
	Count      int     `json:"count"`
	TotalStock float64 `json:"total_stock"`
	TotalDays  float64 `json:"total_days"`
}

// Product is the resolved inventory item. Identity is the sanitized ERP name.
type Product struct {
	Name              string          `json:"name"`
	Molecule          string          `json:"molecule,omitempty"`
	MoleculeCode      string          `json:"molecule_code,omitempty"`
	Lab               string          `json:"lab,omitempty"`
	Category          Category        `json:"category"`
	ManualCategory    string          `json:"manual_category,omitempty"`
	MatchedBrand      string          `json:"matched_brand,omitempty"`
	MatchedDosage     string          `json:"matched_dosage,omitempty"`
	MatchedForm       string          `json:"matched_form,omitempty"`
	MatchConfidence   MatchConfidence `json:"match_confidence,omitempty"`
	ManuallyCorrected bool            `json:"manually_corrected"`
	Withdrawn         bool            `json:"withdrawn"`

	Stock          float64                     `json:"stock"`
	Lots           []StockLot                  `json:"lots"`
	PurchasePrice  float64                     `json:"purchase_price"`
	SalePrice      float64                     `json:"sale_price"`
	YearlyEntries  float64                     `json:"yearly_entries"`
	YearlyExits    float64                     `json:"yearly_exits"`
	MonthlyEntries map[string]float64          `json:"monthly_entries"`
	MonthlyExits   map[string]float64          `json:"monthly_exits"`
	Suppliers      map[string]*SupplierHistory `json:"suppliers"`

	ExpiredQty        float64     `json:"expired_qty"`
	NearExpiryQty     float64     `json:"near_expiry_qty"`
	EffectiveStock    float64     `json:"effective_stock"`
	Seasonality       [12]float64 `json:"seasonality"`
	AvgMonthlyExits   float64     `json:"avg_monthly_exits"`
	AvgDailyExits     float64     `json:"avg_daily_exits"`
	Trend             float64     `json:"trend"`
	CV                float64     `json:"cv"`
	ABC               string      `json:"abc"`
	XYZ               string      `json:"xyz"`
	DailyConsumption  float64     `json:"daily_consumption"`
	DaysRemaining     float64     `json:"days_remaining"`
	TargetMonths      float64     `json:"target_months"`
	TargetStock       float64     `json:"target_stock"`
	SuggestedPurchase float64     `json:"suggested_purchase"`
	PurchaseCost      float64     `json:"purchase_cost"`
	YearlyRevenue     float64     `json:"yearly_revenue"`
	Margin            float64     `json:"margin"`

	BestSupplier       SupplierQuote   `json:"best_supplier"`
	SecondBestSupplier SupplierQuote   `json:"second_best_supplier"`
	SupplierRanking    []SupplierQuote `json:"supplier_ranking,omitempty"`

	MoleculeGroup    GroupCoverage    `json:"molecule_group"`
	CategoryGroup    GroupCoverage    `json:"category_group"`
	MoleculeCoverage MoleculeCoverage `json:"molecule_coverage"`

	RiskScore   int        `json:"risk_score"`
	Alert       AlertLevel `json:"alert"`
	MergedNames []string   `json:"merged_names,omitempty"`
}

// NewProduct returns a product with every derived field at its default.
func NewProduct(name string) *Product {
	p := &Product{
		Name:           name,
		Category:       CategoryOther,
		Lots:           []StockLot{},
		MonthlyEntries: make(map[string]float64),
		MonthlyExits:   make(map[string]float64),
		Suppliers:      make(map[string]*SupplierHistory),
		Trend:          1,
		CV:             MaxCV,
		ABC:            ClassC,
		XYZ:            ClassZ,
		DaysRemaining:  InfiniteDays,
		Alert:          AlertDead,
	}
	for i := range p.Seasonality {
		p.Seasonality[i] = 1
	}
	return p
}

// Matched reports whether the product carries a resolved molecule identity.
func (p *Product) Matched() bool {
	return p.Molecule != "" && p.MatchedDosage != ""
}

// Class returns the combined ABC/XYZ class, e.g. "AX".
func (p *Product) Class() string {
	return p.ABC + p.XYZ
}

// ManualCorrection is an operator override keyed by exact product name.
type ManualCorrection struct {
	Name      string    `json:"name" db:"product_name"`
	Molecule  string    `json:"molecule,omitempty" db:"molecule"`
	Dosage    string    `json:"dosage,omitempty" db:"dosage"`
	Category  string    `json:"category,omitempty" db:"category"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Empty reports whether the correction carries no override.
func (c ManualCorrection) Empty() bool {
	return c.Molecule == "" && c.Dosage == "" && c.Category == ""
}

// MoleculeGroup is the set of in-inventory products sharing molecule and dosage.
type MoleculeGroup struct {
	Key             string           `json:"key"`
	Molecule        string           `json:"molecule"`
	Dosage          string           `json:"dosage"`
	Products        []string         `json:"products"`
	TotalStock      float64          `json:"total_stock"`
	TotalDaily      float64          `json:"total_daily"`
	Days            float64          `json:"days"`
	Generics        []ReferenceEntry `json:"generics"`
	MissingGenerics []ReferenceEntry `json:"missing_generics"`
}

// CategoryGroup is the set of manually categorised products without a molecule.
type CategoryGroup struct {
	Category   string   `json:"category"`
	Products   []string `json:"products"`
	TotalStock float64  `json:"total_stock"`
	TotalDaily float64  `json:"total_daily"`
	Days       float64  `json:"days"`
}

// SupplierProduct is the latest price of one product at one supplier.
type SupplierProduct struct {
	LatestPrice float64   `json:"latest_price"`
	LatestDate  time.Time `json:"latest_date"`
	TotalQty    float64   `json:"total_qty"`
}

// Supplier aggregates purchases from one supplier across the catalogue.
type Supplier struct {
	Name       string                     `json:"name"`
	Products   map[string]SupplierProduct `json:"products"`
	TotalSpend float64                    `json:"total_spend"`
	OrderCount int                        `json:"order_count"`
}

// UploadedFile represents an uploaded file for processing
type UploadedFile struct {
	Filename string
	Path     string
	Size     int64
}

// ImportOutcome is the result of importing one file.
type ImportOutcome struct {
	ID          string     `json:"id" db:"id"`
	Source      string     `json:"source" db:"source"`
	Kind        FileKind   `json:"kind" db:"kind"`
	Status      FileStatus `json:"status" db:"status"`
	Rows        int        `json:"rows" db:"row_count"`
	Month       string     `json:"month,omitempty" db:"month"`
	Withdrawals int        `json:"withdrawals,omitempty" db:"withdrawals"`
	Message     string     `json:"message,omitempty" db:"message"`
	ImportedAt  time.Time  `json:"imported_at" db:"imported_at"`
}
