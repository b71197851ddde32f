package catalogue

import (
	"maps"
	"slices"
	"sort"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
)

// DedupKey is the brand|dosage identity shared by duplicate products.
func DedupKey(p *domain.Product) (string, bool) {
	if p.MatchedBrand == "" || p.MatchedDosage == "" {
		return "", false
	}
	return p.MatchedBrand + "|" + p.MatchedDosage, true
}

// Dedup merges products resolving to the same brand and dosage into the
// member with the largest stock, first seen on ties. It returns the
// duplicate -> canonical audit map.
func Dedup(cat *Catalogue) map[string]string {
	groups := make(map[string][]*domain.Product)
	var keys []string
	for _, p := range cat.Products() {
		key, ok := DedupKey(p)
		if !ok {
			continue
		}
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], p)
	}

	mergedInto := make(map[string]string)
	for _, key := range keys {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool { return members[i].Stock > members[j].Stock })

		canon := members[0]
		canon.MergedNames = []string{canon.Name}
		for _, dup := range members[1:] {
			merge(canon, dup)
			canon.MergedNames = append(canon.MergedNames, dup.Name)
			mergedInto[dup.Name] = canon.Name
			cat.Remove(dup.Name)
		}
	}
	return mergedInto
}

func merge(canon, dup *domain.Product) {
	canon.Stock += dup.Stock
	canon.Lots = append(canon.Lots, dup.Lots...)
	canon.YearlyEntries += dup.YearlyEntries
	canon.YearlyExits += dup.YearlyExits
	for mk, v := range dup.MonthlyExits {
		canon.MonthlyExits[mk] += v
	}
	for mk, v := range dup.MonthlyEntries {
		canon.MonthlyEntries[mk] += v
	}
	for _, name := range slices.Sorted(maps.Keys(dup.Suppliers)) {
		src := dup.Suppliers[name]
		dst, ok := canon.Suppliers[name]
		if !ok {
			dst = &domain.SupplierHistory{}
			canon.Suppliers[name] = dst
		}
		dst.Entries = append(dst.Entries, src.Entries...)
		dst.TotalQty += src.TotalQty
	}
	if dup.PurchasePrice > 0 {
		canon.PurchasePrice = dup.PurchasePrice
	}
	if dup.SalePrice > 0 {
		canon.SalePrice = dup.SalePrice
	}
}
