// Package pricing derives best-price figures from a product's price entries.
//
// All functions are pure: they never modify the input slice, and apart from
// which of several equally priced entries is returned, their results do not
// depend on input order.
package pricing

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/xenking/pricewatch/internal/domain/product"
)

// Lowest returns the entry with the minimum price. When several entries share
// the minimum, the first one in entries wins. ok is false for an empty slice.
func Lowest(entries []product.PriceEntry) (lowest product.PriceEntry, ok bool) {
	for i, e := range entries {
		if i == 0 || e.Price.LessThan(lowest.Price) {
			lowest = e
		}
	}
	return lowest, len(entries) > 0
}

// Highest returns the entry with the maximum price, first occurrence on ties.
func Highest(entries []product.PriceEntry) (highest product.PriceEntry, ok bool) {
	for i, e := range entries {
		if i == 0 || e.Price.GreaterThan(highest.Price) {
			highest = e
		}
	}
	return highest, len(entries) > 0
}

// Savings returns the absolute difference between the highest and the lowest
// price. It is zero for a single entry and undefined for none.
func Savings(entries []product.PriceEntry) (decimal.Decimal, bool) {
	lo, ok := Lowest(entries)
	if !ok {
		return decimal.Zero, false
	}
	hi, _ := Highest(entries)
	return hi.Price.Sub(lo.Price), true
}

// SortByPrice returns a copy of entries ordered by ascending price. Equal
// prices keep their original relative order.
func SortByPrice(entries []product.PriceEntry) []product.PriceEntry {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b product.PriceEntry) int {
		return a.Price.Cmp(b.Price)
	})
	return sorted
}

// Summary is the price comparison shown for a single product.
type Summary struct {
	Lowest  product.PriceEntry
	Highest product.PriceEntry
	Savings decimal.Decimal
	Stores  int
}

// Summarize computes the comparison summary. ok is false when entries is
// empty.
func Summarize(entries []product.PriceEntry) (Summary, bool) {
	lo, ok := Lowest(entries)
	if !ok {
		return Summary{}, false
	}
	hi, _ := Highest(entries)
	return Summary{
		Lowest:  lo,
		Highest: hi,
		Savings: hi.Price.Sub(lo.Price),
		Stores:  len(entries),
	}, true
}
