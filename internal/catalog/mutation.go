package catalog

import (
	"github.com/xenking/pricewatch/internal/querycache"
)

// MutationKind enumerates the writes that make cached reads stale.
type MutationKind int

const (
	MutationCreateProduct MutationKind = iota + 1
	MutationUpdateProduct
	MutationDeleteProduct
	MutationAddPrice
	MutationUpdatePrice
	MutationDeletePrice
	MutationSeedCatalog
	MutationRefreshInsight
)

func (k MutationKind) String() string {
	switch k {
	case MutationCreateProduct:
		return "create product"
	case MutationUpdateProduct:
		return "update product"
	case MutationDeleteProduct:
		return "delete product"
	case MutationAddPrice:
		return "add price entry"
	case MutationUpdatePrice:
		return "update price entry"
	case MutationDeletePrice:
		return "delete price entry"
	case MutationSeedCatalog:
		return "seed catalog"
	case MutationRefreshInsight:
		return "refresh insight"
	default:
		return "unknown"
	}
}

// Mutation is a successful write, or an explicit refresh request. ProductID
// is unused by create product and seed catalog.
type Mutation struct {
	Kind      MutationKind
	ProductID uint64
}

// Invalidation lists what a mutation makes stale.
type Invalidation struct {
	// Keys are marked stale and refetched on next read.
	Keys []querycache.Key
	// Prefixes mark every existing key with that prefix stale.
	Prefixes []string
	// Purge drops values that must never be served again, such as the
	// entries of a deleted product whose id may be reused.
	Purge []querycache.Key
}

var listPrefixes = []string{PrefixSearch, PrefixCategory}

// Invalidates returns what m makes stale. Price writes never invalidate
// product:<id>, and updating an existing price leaves the lists alone.
func (m Mutation) Invalidates() Invalidation {
	all := AllProductsKey()
	p := m.ProductID

	switch m.Kind {
	case MutationCreateProduct, MutationSeedCatalog:
		return Invalidation{
			Keys:     []querycache.Key{all},
			Prefixes: listPrefixes,
		}
	case MutationUpdateProduct:
		return Invalidation{
			Keys:     []querycache.Key{all, ProductKey(p)},
			Prefixes: listPrefixes,
		}
	case MutationDeleteProduct:
		return Invalidation{
			Keys:     []querycache.Key{all},
			Prefixes: listPrefixes,
			Purge:    []querycache.Key{ProductKey(p), PricesKey(p), InsightKey(p)},
		}
	case MutationAddPrice, MutationDeletePrice:
		return Invalidation{
			Keys:     []querycache.Key{PricesKey(p), InsightKey(p), all},
			Prefixes: listPrefixes,
		}
	case MutationUpdatePrice:
		return Invalidation{
			Keys: []querycache.Key{PricesKey(p), InsightKey(p)},
		}
	case MutationRefreshInsight:
		return Invalidation{
			Keys: []querycache.Key{InsightKey(p)},
		}
	default:
		return Invalidation{}
	}
}
