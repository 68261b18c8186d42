package catalog

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/xenking/pricewatch/internal/domain/pricing"
	"github.com/xenking/pricewatch/internal/domain/product"
)

// Card is a product list entry with its best price.
type Card struct {
	Product product.Product
	// Lowest is valid only when HasPrice is set.
	Lowest   product.PriceEntry
	HasPrice bool
	Stores   int
}

// Cards builds list cards for products, reading each product's prices
// through the cache with bounded concurrency. The result keeps the order of
// products.
func (c *Client) Cards(ctx context.Context, products []product.Product) ([]Card, error) {
	cards := make([]Card, len(products))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.CardConcurrency)
	for i, p := range products {
		g.Go(func() error {
			entries, err := c.PriceEntries(ctx, p.ID)
			if err != nil {
				return err
			}
			card := Card{Product: p, Stores: len(entries)}
			card.Lowest, card.HasPrice = pricing.Lowest(entries)
			cards[i] = card
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cards, nil
}

// Comparison is the detail view of a product: its prices from cheapest to
// most expensive and their summary.
type Comparison struct {
	Product product.Product
	Entries []product.PriceEntry
	// Summary is valid only when HasPrices is set.
	Summary   pricing.Summary
	HasPrices bool
}

// Comparison reads a product and its prices concurrently.
func (c *Client) Comparison(ctx context.Context, productID uint64) (Comparison, error) {
	var (
		p       product.Product
		entries []product.PriceEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		p, err = c.Product(gctx, productID)
		return err
	})
	g.Go(func() (err error) {
		entries, err = c.PriceEntries(gctx, productID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Comparison{}, err
	}

	cmp := Comparison{Product: p, Entries: pricing.SortByPrice(entries)}
	cmp.Summary, cmp.HasPrices = pricing.Summarize(entries)
	return cmp, nil
}
