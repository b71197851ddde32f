// Package catalogue folds imported rows into resolved products and holds the
// operator session around them.
package catalogue

import (
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
)

// LedgerBatch is the movement ledger of one imported file.
type LedgerBatch struct {
	Source string
	Month  string
	Rows   []domain.MovementRow
}

// Inputs are the staged rows of the three inventory sources.
type Inputs struct {
	Stock    []domain.StockLot
	HasStock bool
	Rotation []domain.RotationRow
	Ledger   []LedgerBatch
}

// Catalogue is an insertion-ordered product map.
type Catalogue struct {
	order  []string
	byName map[string]*domain.Product
	// Months lists the ledger months in chronological order.
	Months []string
}

// NewCatalogue returns an empty catalogue.
func NewCatalogue() *Catalogue {
	return &Catalogue{byName: make(map[string]*domain.Product)}
}

// Get returns the product named name.
func (c *Catalogue) Get(name string) (*domain.Product, bool) {
	p, ok := c.byName[name]
	return p, ok
}

func (c *Catalogue) ensure(name string) (*domain.Product, bool) {
	if p, ok := c.byName[name]; ok {
		return p, false
	}
	p := domain.NewProduct(name)
	c.byName[name] = p
	c.order = append(c.order, name)
	return p, true
}

// Remove drops a product, keeping the order of the others.
func (c *Catalogue) Remove(name string) {
	if _, ok := c.byName[name]; !ok {
		return
	}
	delete(c.byName, name)
	c.order = slices.DeleteFunc(c.order, func(n string) bool { return n == name })
}

// Products returns the products in first-seen order.
func (c *Catalogue) Products() []*domain.Product {
	out := make([]*domain.Product, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}

// Len returns the number of products.
func (c *Catalogue) Len() int {
	return len(c.order)
}

// Aggregate builds the product map from the stock snapshot, the rotation
// summary and the movement ledger, in that order. Rows without a product
// name are skipped.
func Aggregate(in Inputs) *Catalogue {
	cat := NewCatalogue()
	cat.foldStock(in.Stock)
	cat.foldRotation(in.Rotation, in.HasStock)
	cat.Months = cat.foldLedger(in.Ledger)
	return cat
}

// foldStock sums lots per product. Prices come from the latest acquired lot
// with a positive purchase price.
func (c *Catalogue) foldStock(lots []domain.StockLot) {
	latest := make(map[string]time.Time)
	for _, lot := range lots {
		if lot.Name == "" {
			continue
		}
		p, _ := c.ensure(lot.Name)
		p.Lots = append(p.Lots, lot)
		p.Stock += lot.Qty

		if lot.PurchasePrice <= 0 {
			continue
		}
		if last := latest[lot.Name]; last.IsZero() || lot.AcquiredAt.After(last) {
			p.PurchasePrice = lot.PurchasePrice
			p.SalePrice = lot.SalePrice
			latest[lot.Name] = lot.AcquiredAt
		}
	}
}

// foldRotation adds molecule and lab metadata. Products already known from a
// stock snapshot keep their stock.
func (c *Catalogue) foldRotation(rows []domain.RotationRow, hasStock bool) {
	for _, r := range rows {
		if r.Name == "" {
			continue
		}
		p, created := c.ensure(r.Name)
		if r.Molecule != "" {
			p.Molecule = r.Molecule
			p.Category = domain.CategoryMedicine
		}
		if r.Lab != "" {
			p.Lab = r.Lab
		}
		if created || !hasStock {
			p.Stock = r.Stock
		}
		p.YearlyEntries = r.Entries
		p.YearlyExits = r.Exits
	}
}

// foldLedger buckets movements per month and records supplier deliveries.
// Rows are bucketed by their own date, falling back to the file month.
func (c *Catalogue) foldLedger(batches []LedgerBatch) []string {
	sorted := make([]LedgerBatch, len(batches))
	copy(sorted, batches)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Month < sorted[j].Month })

	months := make(map[string]struct{})
	for _, b := range sorted {
		if b.Month != "" {
			months[b.Month] = struct{}{}
		}
		for _, r := range b.Rows {
			if r.Name == "" {
				continue
			}
			p, _ := c.ensure(r.Name)

			mk := r.Month()
			if mk == "" {
				mk = b.Month
			}
			if mk != "" {
				months[mk] = struct{}{}
				if r.QtyOut > 0 {
					p.MonthlyExits[mk] += r.QtyOut
				}
				if r.QtyIn > 0 {
					p.MonthlyEntries[mk] += r.QtyIn
				}
			}

			if supplier := strings.TrimSpace(r.Counterparty); r.QtyIn > 0 && supplier != "" && supplier != "0" {
				h, ok := p.Suppliers[supplier]
				if !ok {
					h = &domain.SupplierHistory{}
					p.Suppliers[supplier] = h
				}
				h.Entries = append(h.Entries, domain.SupplierPurchase{Price: r.PurchasePrice, Date: r.Date, Qty: r.QtyIn})
				h.TotalQty += r.QtyIn
			}

			if r.PurchasePrice > 0 {
				p.PurchasePrice = r.PurchasePrice
			}
			if r.SalePrice > 0 {
				p.SalePrice = r.SalePrice
			}
		}
	}
	return slices.Sorted(maps.Keys(months))
}
