// Package catalog serves product and price reads through the query cache and
// invalidates the affected keys after every successful write.
//
// A write first calls the remote store; only when it succeeds are the keys
// from Mutation.Invalidates marked stale. A failed write leaves the cache
// untouched.
package catalog

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/pricewatch/internal/domain/product"
	"github.com/xenking/pricewatch/internal/gateway"
	"github.com/xenking/pricewatch/internal/querycache"
)

// Config holds the staleness windows per query kind.
type Config struct {
	// ProductStaleTime applies to product lists and single products. Zero
	// revalidates on every read.
	ProductStaleTime time.Duration
	PriceStaleTime   time.Duration
	InsightStaleTime time.Duration
	// CardConcurrency bounds parallel price reads when building cards.
	CardConcurrency int
}

// DefaultConfig returns the windows used by the catalog UI.
func DefaultConfig() Config {
	return Config{
		ProductStaleTime: 0,
		PriceStaleTime:   30 * time.Second,
		InsightStaleTime: 30 * time.Second,
		CardConcurrency:  8,
	}
}

// Client is the cached view of the remote catalog store.
type Client struct {
	gw    gateway.Gateway
	cache *querycache.Cache
	cfg   Config
	lg    *zap.Logger
}

// New creates a Client. The cache is shared process-wide and owned by the
// caller.
func New(gw gateway.Gateway, cache *querycache.Cache, cfg Config, lg *zap.Logger) *Client {
	if lg == nil {
		lg = zap.NewNop()
	}
	if cfg.CardConcurrency < 1 {
		cfg.CardConcurrency = 1
	}
	return &Client{gw: gw, cache: cache, cfg: cfg, lg: lg}
}

// Cache returns the underlying query cache.
func (c *Client) Cache() *querycache.Cache {
	return c.cache
}

func (c *Client) products(ctx context.Context, key querycache.Key, fetch func(ctx context.Context) ([]product.Product, error)) ([]product.Product, error) {
	products, err := querycache.Load(ctx, c.cache, key, c.cfg.ProductStaleTime, fetch)
	if err != nil {
		return nil, err
	}
	out := make([]product.Product, len(products))
	for i, p := range products {
		out[i] = p.Clone()
	}
	return out, nil
}

// AllProducts returns every product.
func (c *Client) AllProducts(ctx context.Context) ([]product.Product, error) {
	products, err := c.products(ctx, AllProductsKey(), c.gw.GetAllProducts)
	if err != nil {
		return nil, errors.Wrap(err, "all products")
	}
	return products, nil
}

// SearchProducts returns products matching text. Blank text lists every
// product; any other text is sent to the store as given.
func (c *Client) SearchProducts(ctx context.Context, text string) ([]product.Product, error) {
	if strings.TrimSpace(text) == "" {
		return c.AllProducts(ctx)
	}
	products, err := c.products(ctx, SearchKey(text), func(ctx context.Context) ([]product.Product, error) {
		return c.gw.SearchProducts(ctx, text)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "search products %q", text)
	}
	return products, nil
}

// ProductsByCategory returns the products of category. product.CategoryAll
// lists every product.
func (c *Client) ProductsByCategory(ctx context.Context, category string) ([]product.Product, error) {
	if category == "" || category == product.CategoryAll {
		return c.AllProducts(ctx)
	}
	products, err := c.products(ctx, CategoryKey(category), func(ctx context.Context) ([]product.Product, error) {
		return c.gw.GetProductsByCategory(ctx, category)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "products by category %q", category)
	}
	return products, nil
}

// Filter selects a product listing. A non-blank Search takes precedence over
// Category.
type Filter struct {
	Search   string
	Category string
}

// Browse returns the listing selected by f.
func (c *Client) Browse(ctx context.Context, f Filter) ([]product.Product, error) {
	if strings.TrimSpace(f.Search) != "" {
		return c.SearchProducts(ctx, f.Search)
	}
	return c.ProductsByCategory(ctx, f.Category)
}

// Product returns a single product.
func (c *Client) Product(ctx context.Context, productID uint64) (product.Product, error) {
	p, err := querycache.Load(ctx, c.cache, ProductKey(productID), c.cfg.ProductStaleTime,
		func(ctx context.Context) (product.Product, error) {
			return c.gw.GetProduct(ctx, productID)
		})
	if err != nil {
		return product.Product{}, errors.Wrapf(err, "product %d", productID)
	}
	return p.Clone(), nil
}

// PriceEntries returns the price entries of a product.
func (c *Client) PriceEntries(ctx context.Context, productID uint64) ([]product.PriceEntry, error) {
	entries, err := querycache.Load(ctx, c.cache, PricesKey(productID), c.cfg.PriceStaleTime,
		func(ctx context.Context) ([]product.PriceEntry, error) {
			return c.gw.GetPriceEntries(ctx, productID)
		})
	if err != nil {
		return nil, errors.Wrapf(err, "price entries of product %d", productID)
	}
	return slices.Clone(entries), nil
}

// AIInsight returns the buying recommendation for a product. It is empty when
// the product has no prices.
func (c *Client) AIInsight(ctx context.Context, productID uint64) (string, error) {
	insight, err := querycache.Load(ctx, c.cache, InsightKey(productID), c.cfg.InsightStaleTime,
		func(ctx context.Context) (string, error) {
			return c.gw.GetAIInsight(ctx, productID)
		})
	if err != nil {
		return "", errors.Wrapf(err, "insight of product %d", productID)
	}
	return insight, nil
}

// RefreshInsight marks the recommendation of a product stale so that the next
// AIInsight call asks the store again, even inside the staleness window.
func (c *Client) RefreshInsight(ctx context.Context, productID uint64) {
	c.Invalidate(ctx, Mutation{Kind: MutationRefreshInsight, ProductID: productID})
}

// Invalidate applies the invalidation of m to the cache.
func (c *Client) Invalidate(ctx context.Context, m Mutation) {
	inv := m.Invalidates()
	c.cache.Invalidate(ctx, inv.Keys...)
	for _, prefix := range inv.Prefixes {
		c.cache.InvalidatePrefix(ctx, prefix)
	}
	if len(inv.Purge) > 0 {
		c.cache.Purge(ctx, inv.Purge...)
	}
	c.lg.Debug("Invalidated cache",
		zap.Stringer("mutation", m.Kind),
		zap.Uint64("product_id", m.ProductID),
		zap.Int("keys", len(inv.Keys)),
		zap.Int("purged", len(inv.Purge)),
	)
}

// CreateProduct creates a product in the remote store.
func (c *Client) CreateProduct(ctx context.Context, in product.Input) (product.Product, error) {
	p, err := c.gw.CreateProduct(ctx, in)
	if err != nil {
		return product.Product{}, errors.Wrap(err, "create product")
	}
	c.Invalidate(ctx, Mutation{Kind: MutationCreateProduct, ProductID: p.ID})
	return p, nil
}

// UpdateProduct replaces every field of a product.
func (c *Client) UpdateProduct(ctx context.Context, productID uint64, in product.Input) (product.Product, error) {
	p, err := c.gw.UpdateProduct(ctx, productID, in)
	if err != nil {
		return product.Product{}, errors.Wrapf(err, "update product %d", productID)
	}
	c.Invalidate(ctx, Mutation{Kind: MutationUpdateProduct, ProductID: productID})
	return p, nil
}

// DeleteProduct deletes a product together with its price entries.
func (c *Client) DeleteProduct(ctx context.Context, productID uint64) error {
	if err := c.gw.DeleteProduct(ctx, productID); err != nil {
		return errors.Wrapf(err, "delete product %d", productID)
	}
	c.Invalidate(ctx, Mutation{Kind: MutationDeleteProduct, ProductID: productID})
	return nil
}

// AddPriceEntry adds the price of a product at a new store.
func (c *Client) AddPriceEntry(ctx context.Context, productID uint64, store string, price decimal.Decimal, inStock bool) (product.PriceEntry, error) {
	pe, err := c.gw.AddPriceEntry(ctx, productID, store, price, inStock)
	if err != nil {
		return product.PriceEntry{}, errors.Wrapf(err, "add price of product %d at %q", productID, store)
	}
	c.Invalidate(ctx, Mutation{Kind: MutationAddPrice, ProductID: productID})
	return pe, nil
}

// UpdatePriceEntry replaces the price and stock flag of an existing entry.
func (c *Client) UpdatePriceEntry(ctx context.Context, productID uint64, store string, price decimal.Decimal, inStock bool) (product.PriceEntry, error) {
	pe, err := c.gw.UpdatePriceEntry(ctx, productID, store, price, inStock)
	if err != nil {
		return product.PriceEntry{}, errors.Wrapf(err, "update price of product %d at %q", productID, store)
	}
	c.Invalidate(ctx, Mutation{Kind: MutationUpdatePrice, ProductID: productID})
	return pe, nil
}

// DeletePriceEntry removes the price of a product at a store.
func (c *Client) DeletePriceEntry(ctx context.Context, productID uint64, store string) error {
	if err := c.gw.DeletePriceEntry(ctx, productID, store); err != nil {
		return errors.Wrapf(err, "delete price of product %d at %q", productID, store)
	}
	c.Invalidate(ctx, Mutation{Kind: MutationDeletePrice, ProductID: productID})
	return nil
}
