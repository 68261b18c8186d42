package product

import (
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a referenced product or price entry
	// does not exist in the remote store.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a price entry for the same
	// (product, store) pair already exists.
	ErrConflict = errors.New("already exists")
)

// CategoryAll is the pseudo-category used by the category filter to select
// every product.
const CategoryAll = "All"

// Categories lists the categories offered by the catalog UI. The core does
// not enforce membership.
var Categories = []string{
	"Electronics",
	"Food",
	"Clothing",
	"Home",
	"Sports",
	"Beauty",
	"Books",
	"Toys",
	"Automotive",
	"Other",
}

// Product is a catalog item. ID is assigned by the remote store and never
// changes; every other field is replaced as a whole on update.
type Product struct {
	ID          uint64
	Name        string
	Category    string
	Description string
	ImageURL    string
	Tags        []string
}

// Clone returns a copy of p that shares no memory with it.
func (p Product) Clone() Product {
	p.Tags = slices.Clone(p.Tags)
	return p
}

// SameIdentity reports whether p and other refer to the same product.
func (p Product) SameIdentity(other Product) bool {
	return p.ID == other.ID
}

// Input holds the replaceable fields of a product, used for both create and
// update calls.
type Input struct {
	Name        string
	Category    string
	Description string
	ImageURL    string
	Tags        []string
}

// Input returns the replaceable fields of p.
func (p Product) Input() Input {
	return Input{
		Name:        p.Name,
		Category:    p.Category,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Tags:        p.Tags,
	}
}

// PriceKey identifies a price entry. A product has at most one entry per
// store name.
type PriceKey struct {
	ProductID uint64
	Store     string
}

// PriceEntry is the price of a product at a single store.
type PriceEntry struct {
	ProductID uint64
	Store     string
	Price     decimal.Decimal
	InStock   bool
}

// Key returns the identity of the entry.
func (e PriceEntry) Key() PriceKey {
	return PriceKey{ProductID: e.ProductID, Store: e.Store}
}
