package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
	"github.com/andresuchdata/pharmstock/backend-go/internal/normalize"
	"github.com/andresuchdata/pharmstock/backend-go/internal/reference"
)

// Column aliases, compared after foldHeader.
var (
	colName         = []string{"designationnomcommercial", "designation", "nomcommercial"}
	colQty          = []string{"qte", "quantite"}
	colPurchase     = []string{"pachat", "prixachat"}
	colSale         = []string{"pvente", "prixvente"}
	colLot          = []string{"nlot", "nolot", "lot"}
	colExpiry       = []string{"per", "peremption"}
	colAcquired     = []string{"dateachat"}
	colDate         = []string{"date"}
	colQtyIn        = []string{"qentree"}
	colQtyOut       = []string{"qsortie"}
	colCounterparty = []string{"fournisseurclientpharmacien", "fournisseur"}
	colBarcode      = []string{"codebarre"}
	colRotStock     = []string{"qstock"}
	colRotEntries   = []string{"qentrees"}
	colRotExits     = []string{"qsorties"}
	colMolecule     = []string{"dci"}
	colLab          = []string{"labo", "laboratoire"}
)

type columns struct {
	folded []string
}

func indexColumns(header []string) columns {
	folded := make([]string, len(header))
	for i, h := range header {
		folded[i] = foldHeader(h)
	}
	return columns{folded: folded}
}

// find returns the first column matching any of names, or -1.
func (c columns) find(names []string) int {
	for i, h := range c.folded {
		if h == "" {
			continue
		}
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

func (c columns) has(names []string) bool {
	return c.find(names) >= 0
}

type row []string

func (r row) text(idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[idx])
}

func (r row) number(idx int) float64 {
	return parseNumber(r.text(idx))
}

func (r row) date(idx int) time.Time {
	return parseDate(r.text(idx))
}

func parseNumber(s string) float64 {
	s = strings.NewReplacer(" ", "", "\u00a0", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	s = decimalPoint(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// decimalPoint rewrites French (1.234,56) and English (1,234.56) grouping
// into a plain ParseFloat input. With both separators present the last one
// is the decimal mark; a separator repeated on its own groups thousands.
func decimalPoint(s string) string {
	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case dot >= 0 && strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"2/1/2006",
	"02-01-2006",
	"01-02-06",
}

// parseDate reads Excel serial dates and common ISO or French layouts.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f <= 0 {
			return time.Time{}
		}
		t, err := excelize.ExcelDateToTime(f, false)
		if err != nil {
			return time.Time{}
		}
		return t.UTC()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Batch is the decoded content of one file.
type Batch struct {
	Source      string                    `json:"source"`
	Kind        domain.FileKind           `json:"kind"`
	Month       string                    `json:"month,omitempty"`
	Stock       []domain.StockLot         `json:"-"`
	Ledger      []domain.MovementRow      `json:"-"`
	Rotation    []domain.RotationRow      `json:"-"`
	Reference   []domain.ReferenceEntry   `json:"-"`
	Withdrawals []domain.WithdrawalRecord `json:"-"`
}

// Len returns the number of decoded primary rows.
func (b *Batch) Len() int {
	switch b.Kind {
	case domain.KindStock:
		return len(b.Stock)
	case domain.KindLedger:
		return len(b.Ledger)
	case domain.KindRotation:
		return len(b.Rotation)
	case domain.KindReference:
		return len(b.Reference)
	}
	return 0
}

// Decoder turns workbooks into batches.
type Decoder struct {
	Reference reference.Decoder
}

// NewDecoder returns a decoder whose reference rows use brands.
func NewDecoder(brands normalize.BrandExtractor) *Decoder {
	return &Decoder{Reference: reference.NewDecoder(brands)}
}

// Decode classifies the first sheet of wb and decodes it. Unknown layouts
// yield a batch of kind unknown and no rows.
func (d *Decoder) Decode(wb *Workbook) (*Batch, error) {
	sheet, ok := wb.First()
	if !ok {
		return nil, fmt.Errorf("workbook %s has no sheets", wb.Name)
	}
	batch := &Batch{Source: wb.Name, Kind: domain.KindUnknown}
	if len(sheet.Rows) == 0 {
		return batch, nil
	}

	idx, kind := ClassifyRows(sheet.Rows)
	batch.Kind = kind
	header, body := sheet.Rows[idx], sheet.Rows[idx+1:]

	switch kind {
	case domain.KindStock:
		batch.Stock = DecodeStock(header, body)
	case domain.KindLedger:
		batch.Ledger = DecodeLedger(header, body)
		for _, m := range batch.Ledger {
			if mk := m.Month(); mk != "" {
				batch.Month = mk
				break
			}
		}
	case domain.KindRotation:
		batch.Rotation = DecodeRotation(header, body)
	case domain.KindReference:
		batch.Reference = d.DecodeReference(header, body)
		for _, s := range wb.Sheets[1:] {
			if IsWithdrawalSheet(s.Name) {
				batch.Withdrawals = append(batch.Withdrawals, d.DecodeWithdrawals(s.Rows)...)
			}
		}
	}
	return batch, nil
}

// DecodeStock decodes nomenclature rows. Rows without a name are skipped.
func DecodeStock(header []string, rows [][]string) []domain.StockLot {
	cols := indexColumns(header)
	idxName := cols.find(colName)
	idxQty := cols.find(colQty)
	idxPurchase := cols.find(colPurchase)
	idxSale := cols.find(colSale)
	idxLot := cols.find(colLot)
	idxExpiry := cols.find(colExpiry)
	idxAcquired := cols.find(colAcquired)
	idxBarcode := cols.find(colBarcode)

	lots := make([]domain.StockLot, 0, len(rows))
	for _, raw := range rows {
		r := row(raw)
		name := normalize.Sanitize(r.text(idxName))
		if name == "" {
			continue
		}
		lots = append(lots, domain.StockLot{
			Name:          name,
			Qty:           r.number(idxQty),
			PurchasePrice: r.number(idxPurchase),
			SalePrice:     r.number(idxSale),
			Lot:           r.text(idxLot),
			Expiry:        r.date(idxExpiry),
			AcquiredAt:    r.date(idxAcquired),
			Barcode:       r.text(idxBarcode),
		})
	}
	return lots
}

// DecodeLedger decodes monthly movement rows.
func DecodeLedger(header []string, rows [][]string) []domain.MovementRow {
	cols := indexColumns(header)
	idxName := cols.find(colName)
	idxDate := cols.find(colDate)
	idxIn := cols.find(colQtyIn)
	idxOut := cols.find(colQtyOut)
	idxParty := cols.find(colCounterparty)
	idxPurchase := cols.find(colPurchase)
	idxSale := cols.find(colSale)
	idxLot := cols.find(colLot)
	idxExpiry := cols.find(colExpiry)
	idxBarcode := cols.find(colBarcode)

	out := make([]domain.MovementRow, 0, len(rows))
	for _, raw := range rows {
		r := row(raw)
		name := normalize.Sanitize(r.text(idxName))
		if name == "" {
			continue
		}
		out = append(out, domain.MovementRow{
			Name:          name,
			Date:          r.date(idxDate),
			QtyIn:         r.number(idxIn),
			QtyOut:        r.number(idxOut),
			Counterparty:  r.text(idxParty),
			PurchasePrice: r.number(idxPurchase),
			SalePrice:     r.number(idxSale),
			Lot:           r.text(idxLot),
			Expiry:        r.date(idxExpiry),
			Barcode:       r.text(idxBarcode),
		})
	}
	return out
}

// DecodeRotation decodes annual rotation rows.
func DecodeRotation(header []string, rows [][]string) []domain.RotationRow {
	cols := indexColumns(header)
	idxName := cols.find(colName)
	idxStock := cols.find(colRotStock)
	idxIn := cols.find(colRotEntries)
	idxOut := cols.find(colRotExits)
	idxMolecule := cols.find(colMolecule)
	idxLab := cols.find(colLab)

	out := make([]domain.RotationRow, 0, len(rows))
	for _, raw := range rows {
		r := row(raw)
		name := normalize.Sanitize(r.text(idxName))
		if name == "" {
			continue
		}
		out = append(out, domain.RotationRow{
			Name:     name,
			Stock:    r.number(idxStock),
			Entries:  r.number(idxIn),
			Exits:    r.number(idxOut),
			Molecule: normalize.Sanitize(r.text(idxMolecule)),
			Lab:      normalize.Sanitize(r.text(idxLab)),
		})
	}
	return out
}

// DecodeReference decodes national database rows. Later header cells win
// when several match the same role.
func (d *Decoder) DecodeReference(header []string, rows [][]string) []domain.ReferenceEntry {
	idxMolecule, idxDesignation, idxCode, idxTariff := -1, -1, -1, -1
	for i, h := range header {
		s := foldUpper(h)
		switch {
		case strings.Contains(s, "DCI") && !strings.Contains(s, "TARIF"):
			idxMolecule = i
		case strings.Contains(s, "SIGNATION"):
			idxDesignation = i
		case strings.Contains(s, "CODE"):
			idxCode = i
		case strings.Contains(s, "TARIF"):
			idxTariff = i
		}
	}

	out := make([]domain.ReferenceEntry, 0, len(rows))
	for _, raw := range rows {
		r := row(raw)
		e, ok := d.Reference.Entry(r.text(idxDesignation), r.text(idxMolecule), r.text(idxCode), r.number(idxTariff))
		if !ok {
			continue
		}
		out = append(out, e)
	}
	return out
}

// DecodeWithdrawals decodes a withdrawal or non-renewal sheet.
func (d *Decoder) DecodeWithdrawals(rows [][]string) []domain.WithdrawalRecord {
	if len(rows) < 2 {
		return nil
	}
	headerIdx := 0
	for i := 0; i < withdrawalScanRows && i < len(rows); i++ {
		if nonEmpty(rows[i]) >= 2 {
			headerIdx = i
			break
		}
	}

	idxMolecule, idxBrand, idxDosage, idxCode := -1, -1, -1, -1
	for i, h := range rows[headerIdx] {
		s := foldUpper(h)
		switch {
		case strings.Contains(s, "DCI") || strings.Contains(s, "DENOMINATION"):
			idxMolecule = i
		case strings.Contains(s, "MARQUE") || strings.Contains(s, "DESIGNATION") || strings.Contains(s, "NOM"):
			idxBrand = i
		case strings.Contains(s, "DOSAGE"):
			idxDosage = i
		case strings.Contains(s, "CODE"):
			idxCode = i
		}
	}

	var out []domain.WithdrawalRecord
	for _, raw := range rows[headerIdx+1:] {
		r := row(raw)
		w, ok := d.Reference.Withdrawal(r.text(idxBrand), r.text(idxMolecule), r.text(idxDosage), r.text(idxCode), raw)
		if !ok {
			continue
		}
		out = append(out, w)
	}
	return out
}
