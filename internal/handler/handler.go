// Package handler serves the catalog API consumed by the web UI. Every read
// goes through the catalog cache; every write goes through the catalog
// client so the affected keys are invalidated.
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/xenking/pricewatch/internal/catalog"
	"github.com/xenking/pricewatch/internal/domain/product"
	"github.com/xenking/pricewatch/internal/seed"
)

// Seeder runs the seeding protocol.
type Seeder interface {
	Run(ctx context.Context, samples []seed.Sample) (*seed.Result, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// Absolute URLs are returned as stored.
	ImageBaseURL string
	// Dataset is the seed dataset file; empty selects the embedded catalog.
	Dataset string
}

// Handler serves the /api routes.
type Handler struct {
	catalog      *catalog.Client
	seeder       Seeder
	dataset      string
	imageBaseURL string
}

// New constructs a Handler.
func New(cfg Config, c *catalog.Client, s Seeder) *Handler {
	return &Handler{
		catalog:      c,
		seeder:       s,
		dataset:      cfg.Dataset,
		imageBaseURL: strings.TrimSuffix(cfg.ImageBaseURL, "/"),
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("POST /api/products", h.CreateProduct)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.HandleFunc("PUT /api/products/{id}", h.UpdateProduct)
	mux.HandleFunc("DELETE /api/products/{id}", h.DeleteProduct)

	mux.HandleFunc("GET /api/products/{id}/prices", h.ListPrices)
	mux.HandleFunc("POST /api/products/{id}/prices", h.AddPrice)
	mux.HandleFunc("PUT /api/products/{id}/prices/{store}", h.UpdatePrice)
	mux.HandleFunc("DELETE /api/products/{id}/prices/{store}", h.DeletePrice)

	mux.HandleFunc("GET /api/products/{id}/comparison", h.GetComparison)
	mux.HandleFunc("GET /api/products/{id}/insight", h.GetInsight)
	mux.HandleFunc("POST /api/products/{id}/insight/refresh", h.RefreshInsight)

	mux.HandleFunc("POST /api/seed", h.Seed)
}

// imageURL resolves a stored image path against the configured base.
func (h *Handler) imageURL(p product.Product) string {
	u := p.ImageURL
	if u == "" || h.imageBaseURL == "" || strings.Contains(u, "://") {
		return u
	}
	return h.imageBaseURL + "/" + strings.TrimPrefix(u, "/")
}
