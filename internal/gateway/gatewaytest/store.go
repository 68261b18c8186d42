// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pricewatch/internal/domain/pricing"
	"github.com/xenking/pricewatch/internal/domain/product"
	"github.com/xenking/pricewatch/internal/gateway"
)

var _ gateway.Gateway = (*Store)(nil)

// Hook runs before every call with the operation name and the 1-based count
// of calls to that operation so far. A non-nil error fails the call.
type Hook func(ctx context.Context, op string, n int) error

// Store keeps products and price entries in memory with the same rejection
// rules as the remote store.
type Store struct {
	mu       sync.Mutex
	nextID   uint64
	products map[uint64]product.Product
	order    []uint64
	prices   map[uint64][]product.PriceEntry
	calls    map[string]int

	// Hook is consulted before every call when set.
	Hook Hook
}

// New returns an empty Store. IDs start at 1.
func New() *Store {
	return &Store{
		products: make(map[uint64]product.Product),
		prices:   make(map[uint64][]product.PriceEntry),
		calls:    make(map[string]int),
	}
}

// Calls returns how many times op has been called.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Len returns the number of stored products.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *Store) enter(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls[op]++
	n := s.calls[op]
	hook := s.Hook
	s.mu.Unlock()

	if hook == nil {
		return nil
	}
	return hook(ctx, op, n)
}

func notFound(format string, args ...any) error {
	return errors.Wrap(product.ErrNotFound, fmt.Sprintf(format, args...))
}

func (s *Store) CreateProduct(ctx context.Context, in product.Input) (product.Product, error) {
	if err := s.enter(ctx, "CreateProduct"); err != nil {
		return product.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	p := product.Product{
		ID:          s.nextID,
		Name:        in.Name,
		Category:    in.Category,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Tags:        slices.Clone(in.Tags),
	}
	s.products[p.ID] = p
	s.order = append(s.order, p.ID)
	return p.Clone(), nil
}

func (s *Store) UpdateProduct(ctx context.Context, id uint64, in product.Input) (product.Product, error) {
	if err := s.enter(ctx, "UpdateProduct"); err != nil {
		return product.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return product.Product{}, notFound("product %d", id)
	}
	p := product.Product{
		ID:          id,
		Name:        in.Name,
		Category:    in.Category,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Tags:        slices.Clone(in.Tags),
	}
	s.products[id] = p
	return p.Clone(), nil
}

func (s *Store) DeleteProduct(ctx context.Context, id uint64) error {
	if err := s.enter(ctx, "DeleteProduct"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return notFound("product %d", id)
	}
	delete(s.products, id)
	delete(s.prices, id)
	s.order = slices.DeleteFunc(s.order, func(v uint64) bool { return v == id })
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id uint64) (product.Product, error) {
	if err := s.enter(ctx, "GetProduct"); err != nil {
		return product.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return product.Product{}, notFound("product %d", id)
	}
	return p.Clone(), nil
}

func (s *Store) filter(match func(product.Product) bool) []product.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []product.Product{}
	for _, id := range s.order {
		if p := s.products[id]; match(p) {
			out = append(out, p.Clone())
		}
	}
	return out
}

func (s *Store) GetAllProducts(ctx context.Context) ([]product.Product, error) {
	if err := s.enter(ctx, "GetAllProducts"); err != nil {
		return nil, err
	}
	return s.filter(func(product.Product) bool { return true }), nil
}

func (s *Store) GetProductsByCategory(ctx context.Context, category string) ([]product.Product, error) {
	if err := s.enter(ctx, "GetProductsByCategory"); err != nil {
		return nil, err
	}
	return s.filter(func(p product.Product) bool { return p.Category == category }), nil
}

func (s *Store) SearchProducts(ctx context.Context, text string) ([]product.Product, error) {
	if err := s.enter(ctx, "SearchProducts"); err != nil {
		return nil, err
	}
	needle := strings.ToLower(text)
	return s.filter(func(p product.Product) bool {
		fields := append([]string{p.Name, p.Description, p.Category}, p.Tags...)
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), needle) {
				return true
			}
		}
		return false
	}), nil
}

func (s *Store) AddPriceEntry(ctx context.Context, productID uint64, store string, price decimal.Decimal, inStock bool) (product.PriceEntry, error) {
	if err := s.enter(ctx, "AddPriceEntry"); err != nil {
		return product.PriceEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[productID]; !ok {
		return product.PriceEntry{}, notFound("product %d", productID)
	}
	for _, e := range s.prices[productID] {
		if e.Store == store {
			return product.PriceEntry{}, errors.Wrapf(product.ErrConflict, "price for %q", store)
		}
	}
	e := product.PriceEntry{ProductID: productID, Store: store, Price: price, InStock: inStock}
	s.prices[productID] = append(s.prices[productID], e)
	return e, nil
}

func (s *Store) UpdatePriceEntry(ctx context.Context, productID uint64, store string, price decimal.Decimal, inStock bool) (product.PriceEntry, error) {
	if err := s.enter(ctx, "UpdatePriceEntry"); err != nil {
		return product.PriceEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.prices[productID]
	for i := range entries {
		if entries[i].Store == store {
			entries[i].Price = price
			entries[i].InStock = inStock
			return entries[i], nil
		}
	}
	return product.PriceEntry{}, notFound("price for %q on product %d", store, productID)
}

func (s *Store) DeletePriceEntry(ctx context.Context, productID uint64, store string) error {
	if err := s.enter(ctx, "DeletePriceEntry"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.prices[productID]
	i := slices.IndexFunc(entries, func(e product.PriceEntry) bool { return e.Store == store })
	if i < 0 {
		return notFound("price for %q on product %d", store, productID)
	}
	s.prices[productID] = slices.Delete(slices.Clone(entries), i, i+1)
	return nil
}

func (s *Store) GetPriceEntries(ctx context.Context, productID uint64) ([]product.PriceEntry, error) {
	if err := s.enter(ctx, "GetPriceEntries"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := slices.Clone(s.prices[productID])
	if out == nil {
		out = []product.PriceEntry{}
	}
	return out, nil
}

// GetAIInsight returns a canned recommendation naming the cheapest store.
func (s *Store) GetAIInsight(ctx context.Context, productID uint64) (string, error) {
	if err := s.enter(ctx, "GetAIInsight"); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sum, ok := pricing.Summarize(s.prices[productID])
	if !ok {
		return "", nil
	}
	return fmt.Sprintf("Buy at %s for $%s and save $%s.",
		sum.Lowest.Store, sum.Lowest.Price.StringFixed(2), sum.Savings.StringFixed(2)), nil
}
