package domain

import "strings"

// AlertLevel is the stock alert assigned to a product after recompute.
type AlertLevel string

const (
	AlertWithdrawn   AlertLevel = "withdrawn"
	AlertDead        AlertLevel = "dead"
	AlertRupture     AlertLevel = "rupture"
	AlertNearRupture AlertLevel = "near-rupture"
	AlertSecurity    AlertLevel = "security"
	AlertOverstock   AlertLevel = "overstock"
	AlertOK          AlertLevel = "ok"
)

var alertLabels = map[AlertLevel]string{
	AlertWithdrawn:   "Withdrawn",
	AlertDead:        "Inactive",
	AlertRupture:     "Stockout",
	AlertNearRupture: "Near stockout",
	AlertSecurity:    "Below safety stock",
	AlertOverstock:   "Overstock",
	AlertOK:          "OK",
}

// Label returns a human-readable label for the alert level.
func (a AlertLevel) Label() string {
	if label, ok := alertLabels[a]; ok {
		return label
	}
	return string(a)
}

// Urgent reports whether the level requires a purchase soon.
func (a AlertLevel) Urgent() bool {
	return a == AlertRupture || a == AlertNearRupture || a == AlertSecurity
}

// ParseAlertLevel returns the alert level for a given label (case-insensitive).
func ParseAlertLevel(label string) (AlertLevel, bool) {
	level := AlertLevel(strings.ToLower(strings.TrimSpace(label)))
	_, ok := alertLabels[level]
	return level, ok
}

// Category is the product taxonomy bucket used for growth assumptions.
type Category string

const (
	CategoryMedicine  Category = "medicament"
	CategoryParapharm Category = "parapharm"
	CategoryDevice    Category = "dispositif"
	CategoryOther     Category = "autre"
)

// Categories lists the known categories in display order.
var Categories = []Category{CategoryMedicine, CategoryParapharm, CategoryDevice, CategoryOther}

// MatchConfidence qualifies how a product was resolved to a reference entry.
type MatchConfidence string

const (
	MatchNone        MatchConfidence = ""
	MatchExact       MatchConfidence = "exact"
	MatchApproximate MatchConfidence = "dosage-approximate"
	MatchManual      MatchConfidence = "manual"
)

// ABC and XYZ classes.
const (
	ClassA = "A"
	ClassB = "B"
	ClassC = "C"
	ClassX = "X"
	ClassY = "Y"
	ClassZ = "Z"
)

// FileKind is the closed set of workbook layouts the importer understands.
type FileKind string

const (
	KindStock     FileKind = "stock"
	KindLedger    FileKind = "ledger"
	KindRotation  FileKind = "rotation"
	KindReference FileKind = "reference"
	KindUnknown   FileKind = "unknown"
)

// FileStatus represents the state of a single imported file
type FileStatus string

const (
	FileStatusImported FileStatus = "imported"
	FileStatusSkipped  FileStatus = "skipped"
	FileStatusFailed   FileStatus = "failed"
)
