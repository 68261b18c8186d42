package pricing

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pricewatch/internal/domain/product"
)

func entry(store, price string) product.PriceEntry {
	return product.PriceEntry{
		ProductID: 1,
		Store:     store,
		Price:     decimal.RequireFromString(price),
		InStock:   true,
	}
}

func TestLowest_FirstOccurrenceOnTie(t *testing.T) {
	entries := []product.PriceEntry{
		entry("A", "50"),
		entry("B", "30"),
		entry("C", "30"),
	}

	lo, ok := Lowest(entries)
	require.True(t, ok)
	assert.Equal(t, "B", lo.Store)

	hi, ok := Highest(entries)
	require.True(t, ok)
	assert.Equal(t, "A", hi.Store)

	s, ok := Savings(entries)
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(20).Equal(s), "got %s", s)
}

func TestEmpty(t *testing.T) {
	_, ok := Lowest(nil)
	assert.False(t, ok)

	_, ok = Highest([]product.PriceEntry{})
	assert.False(t, ok)

	s, ok := Savings(nil)
	assert.False(t, ok)
	assert.True(t, s.IsZero())

	_, ok = Summarize(nil)
	assert.False(t, ok)
}

func TestSavings_SingleEntry(t *testing.T) {
	s, ok := Savings([]product.PriceEntry{entry("Amazon", "19.99")})
	require.True(t, ok)
	assert.True(t, s.IsZero())
}

func TestBounds(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		n := 1 + r.IntN(12)
		entries := make([]product.PriceEntry, n)
		for i := range entries {
			entries[i] = product.PriceEntry{
				ProductID: 7,
				Store:     string(rune('A' + i)),
				Price:     decimal.New(int64(r.IntN(10000)), -2),
			}
		}
		before := slices.Clone(entries)

		lo, ok := Lowest(entries)
		require.True(t, ok)
		hi, ok := Highest(entries)
		require.True(t, ok)
		s, ok := Savings(entries)
		require.True(t, ok)

		for _, e := range entries {
			assert.True(t, lo.Price.LessThanOrEqual(e.Price))
			assert.True(t, hi.Price.GreaterThanOrEqual(e.Price))
		}
		assert.True(t, hi.Price.Sub(lo.Price).Equal(s))
		assert.Equal(t, before, entries, "input must not be modified")

		// Reordering changes at most which tied record is returned.
		shuffled := slices.Clone(entries)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		lo2, _ := Lowest(shuffled)
		s2, _ := Savings(shuffled)
		assert.True(t, lo.Price.Equal(lo2.Price))
		assert.True(t, s.Equal(s2))
	}
}

func TestSortByPrice(t *testing.T) {
	entries := []product.PriceEntry{
		entry("A", "50"),
		entry("B", "30"),
		entry("C", "30"),
		entry("D", "10.5"),
	}

	sorted := SortByPrice(entries)

	stores := make([]string, len(sorted))
	for i, e := range sorted {
		stores[i] = e.Store
	}
	assert.Equal(t, []string{"D", "B", "C", "A"}, stores)
	assert.Equal(t, "A", entries[0].Store)
}

func TestSummarize(t *testing.T) {
	sum, ok := Summarize([]product.PriceEntry{
		entry("Walmart", "899.00"),
		entry("Amazon", "849.99"),
		entry("Best Buy", "879.00"),
	})
	require.True(t, ok)

	assert.Equal(t, "Amazon", sum.Lowest.Store)
	assert.Equal(t, "Walmart", sum.Highest.Store)
	assert.Equal(t, "49.01", sum.Savings.StringFixed(2))
	assert.Equal(t, 3, sum.Stores)
}
