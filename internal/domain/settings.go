package domain

// DefaultTargetMonths maps an ABC+XYZ class to months of coverage.
var DefaultTargetMonths = map[string]float64{
	"AX": 3, "AY": 2.5, "AZ": 2,
	"BX": 2.5, "BY": 2, "BZ": 1.5,
	"CX": 2, "CY": 1.5, "CZ": 1,
}

// FallbackTargetMonths applies to classes missing from both maps.
const FallbackTargetMonths = 2.0

// Settings holds the operator thresholds and growth assumptions.
type Settings struct {
	AlertRupture     float64              `json:"alert_rupture" mapstructure:"alert_rupture" validate:"gte=0"`
	AlertSecurity    float64              `json:"alert_security" mapstructure:"alert_security" validate:"gtefield=AlertRupture"`
	Overstock        float64              `json:"overstock" mapstructure:"overstock" validate:"gtfield=AlertSecurity"`
	NearExpiryDays   int                  `json:"near_expiry_days" mapstructure:"near_expiry_days" validate:"gte=0"`
	StalePriceMonths int                  `json:"stale_price_months" mapstructure:"stale_price_months" validate:"gte=0"`
	GrowthGlobal     float64              `json:"growth_global" mapstructure:"growth_global" validate:"gt=-100"`
	GrowthCategories map[Category]float64 `json:"growth_categories" mapstructure:"growth_categories"`
	TargetMonths     map[string]float64   `json:"target_months" mapstructure:"target_months" validate:"dive,gt=0"`
}

// DefaultSettings returns the stock defaults.
func DefaultSettings() Settings {
	s := Settings{
		AlertRupture:     5,
		AlertSecurity:    15,
		Overstock:        120,
		NearExpiryDays:   90,
		StalePriceMonths: 3,
		GrowthGlobal:     0,
		GrowthCategories: make(map[Category]float64, len(Categories)),
		TargetMonths:     make(map[string]float64, len(DefaultTargetMonths)),
	}
	for _, c := range Categories {
		s.GrowthCategories[c] = 0
	}
	for k, v := range DefaultTargetMonths {
		s.TargetMonths[k] = v
	}
	return s
}

// TargetMonthsFor returns the configured months of coverage for a class.
func (s Settings) TargetMonthsFor(class string) float64 {
	if v, ok := s.TargetMonths[class]; ok && v > 0 {
		return v
	}
	if v, ok := DefaultTargetMonths[class]; ok {
		return v
	}
	return FallbackTargetMonths
}

// GrowthMultiplier returns 1 + growth% for the category, falling back to the
// global growth when the category has no non-zero value.
func (s Settings) GrowthMultiplier(c Category) float64 {
	growth := s.GrowthGlobal
	if v, ok := s.GrowthCategories[c]; ok && v != 0 {
		growth = v
	}
	return 1 + growth/100
}

// Merge overlays the non-zero fields of o on s. Maps are merged key-wise.
func (s Settings) Merge(o Settings) Settings {
	out := s.clone()
	if o.AlertRupture != 0 {
		out.AlertRupture = o.AlertRupture
	}
	if o.AlertSecurity != 0 {
		out.AlertSecurity = o.AlertSecurity
	}
	if o.Overstock != 0 {
		out.Overstock = o.Overstock
	}
	if o.NearExpiryDays != 0 {
		out.NearExpiryDays = o.NearExpiryDays
	}
	if o.StalePriceMonths != 0 {
		out.StalePriceMonths = o.StalePriceMonths
	}
	if o.GrowthGlobal != 0 {
		out.GrowthGlobal = o.GrowthGlobal
	}
	for k, v := range o.GrowthCategories {
		out.GrowthCategories[k] = v
	}
	for k, v := range o.TargetMonths {
		out.TargetMonths[k] = v
	}
	return out
}

func (s Settings) clone() Settings {
	out := s
	out.GrowthCategories = make(map[Category]float64, len(s.GrowthCategories))
	for k, v := range s.GrowthCategories {
		out.GrowthCategories[k] = v
	}
	out.TargetMonths = make(map[string]float64, len(s.TargetMonths))
	for k, v := range s.TargetMonths {
		out.TargetMonths[k] = v
	}
	return out
}
