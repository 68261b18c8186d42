package catalog

import (
	"strconv"
	"strings"

	"github.com/xenking/pricewatch/internal/domain/product"
	"github.com/xenking/pricewatch/internal/querycache"
)

// Query kinds.
const (
	KindProducts = "products"
	KindProduct  = "product"
	KindPrices   = "prices"
	KindInsight  = "insight"
)

// Key prefixes matching every search and every category listing.
const (
	PrefixSearch   = KindProducts + ":search:"
	PrefixCategory = KindProducts + ":category:"
)

func id(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// AllProductsKey is the key of the unfiltered product list.
func AllProductsKey() querycache.Key {
	return querycache.NewKey(KindProducts, "all")
}

// SearchKey returns the key of a search listing. Blank text selects the
// unfiltered list. Surrounding spaces are part of the query.
func SearchKey(text string) querycache.Key {
	if strings.TrimSpace(text) == "" {
		return AllProductsKey()
	}
	return querycache.NewKey(KindProducts, "search", text)
}

// CategoryKey returns the key of a category listing. An empty category and
// product.CategoryAll select the unfiltered list.
func CategoryKey(category string) querycache.Key {
	if category == "" || category == product.CategoryAll {
		return AllProductsKey()
	}
	return querycache.NewKey(KindProducts, "category", category)
}

// ProductKey is the key of a single product.
func ProductKey(productID uint64) querycache.Key {
	return querycache.NewKey(KindProduct, id(productID))
}

// PricesKey is the key of a product's price entries.
func PricesKey(productID uint64) querycache.Key {
	return querycache.NewKey(KindPrices, id(productID))
}

// InsightKey is the key of a product's buying recommendation.
func InsightKey(productID uint64) querycache.Key {
	return querycache.NewKey(KindInsight, id(productID))
}
