// Package gateway defines the call surface of the remote catalog store and
// provides an HTTP client for it.
//
// Calls are never retried here. Not-found and conflict rejections are
// reported as product.ErrNotFound and product.ErrConflict; anything else is a
// transport failure.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/pricewatch/internal/domain/product"
)

// Gateway is the remote store consumed by the catalog cache and the seeder.
type Gateway interface {
	CreateProduct(ctx context.Context, in product.Input) (product.Product, error)
	UpdateProduct(ctx context.Context, id uint64, in product.Input) (product.Product, error)
	DeleteProduct(ctx context.Context, id uint64) error
	GetProduct(ctx context.Context, id uint64) (product.Product, error)
	GetAllProducts(ctx context.Context) ([]product.Product, error)
	GetProductsByCategory(ctx context.Context, category string) ([]product.Product, error)
	SearchProducts(ctx context.Context, text string) ([]product.Product, error)

	AddPriceEntry(ctx context.Context, productID uint64, store string, price decimal.Decimal, inStock bool) (product.PriceEntry, error)
	UpdatePriceEntry(ctx context.Context, productID uint64, store string, price decimal.Decimal, inStock bool) (product.PriceEntry, error)
	DeletePriceEntry(ctx context.Context, productID uint64, store string) error
	GetPriceEntries(ctx context.Context, productID uint64) ([]product.PriceEntry, error)

	// GetAIInsight returns a textual buying recommendation for the product.
	// It is empty when the product has no price entries.
	GetAIInsight(ctx context.Context, productID uint64) (string, error)
}
