package catalog

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pricewatch/internal/domain/product"
)

func TestCards(t *testing.T) {
	c, _ := newTestClient(t, DefaultConfig())
	ctx := context.Background()

	tv := mustCreate(t, c, "4K TV", "Electronics")
	book := mustCreate(t, c, "Go Book", "Books")
	_, err := c.AddPriceEntry(ctx, tv.ID, "Best Buy", price("499"), true)
	require.NoError(t, err)
	_, err = c.AddPriceEntry(ctx, tv.ID, "Costco", price("449.99"), true)
	require.NoError(t, err)

	products, err := c.AllProducts(ctx)
	require.NoError(t, err)
	cards, err := c.Cards(ctx, products)
	require.NoError(t, err)
	require.Len(t, cards, 2)

	assert.Equal(t, tv.ID, cards[0].Product.ID)
	assert.True(t, cards[0].HasPrice)
	assert.Equal(t, "Costco", cards[0].Lowest.Store)
	assert.Equal(t, 2, cards[0].Stores)

	assert.Equal(t, book.ID, cards[1].Product.ID)
	assert.False(t, cards[1].HasPrice)
	assert.Zero(t, cards[1].Stores)
}

func TestCards_Error(t *testing.T) {
	c, store := newTestClient(t, DefaultConfig())
	ctx := context.Background()
	p := mustCreate(t, c, "Puzzle", "Toys")

	store.Hook = func(_ context.Context, op string, _ int) error {
		if op == "GetPriceEntries" {
			return errors.New("timeout")
		}
		return nil
	}
	_, err := c.Cards(ctx, []product.Product{p})
	require.Error(t, err)
}

func TestComparison(t *testing.T) {
	c, _ := newTestClient(t, DefaultConfig())
	ctx := context.Background()
	p := mustCreate(t, c, "Sneakers", "Clothing")

	for _, e := range []struct{ store, price string }{
		{"A", "50"}, {"B", "30"}, {"C", "30"},
	} {
		_, err := c.AddPriceEntry(ctx, p.ID, e.store, price(e.price), true)
		require.NoError(t, err)
	}

	cmp, err := c.Comparison(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sneakers", cmp.Product.Name)
	require.True(t, cmp.HasPrices)
	require.Len(t, cmp.Entries, 3)
	assert.Equal(t, []string{"B", "C", "A"}, []string{cmp.Entries[0].Store, cmp.Entries[1].Store, cmp.Entries[2].Store})
	assert.Equal(t, "B", cmp.Summary.Lowest.Store)
	assert.Equal(t, "A", cmp.Summary.Highest.Store)
	assert.True(t, cmp.Summary.Savings.Equal(price("20")))
}

func TestComparison_NoPrices(t *testing.T) {
	c, _ := newTestClient(t, DefaultConfig())
	p := mustCreate(t, c, "Notebook", "Books")

	cmp, err := c.Comparison(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, cmp.HasPrices)
	assert.Empty(t, cmp.Entries)
}

func TestComparison_NotFound(t *testing.T) {
	c, _ := newTestClient(t, DefaultConfig())

	_, err := c.Comparison(context.Background(), 999)
	require.ErrorIs(t, err, product.ErrNotFound)
}
