package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"

	"github.com/xenking/pricewatch/internal/catalog"
	"github.com/xenking/pricewatch/internal/domain/product"
	"github.com/xenking/pricewatch/internal/wire"
)

// ListProducts returns product cards filtered by ?search= or ?category=.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	products, err := h.catalog.Browse(ctx, catalog.Filter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
	})
	if err != nil {
		fail(ctx, w, err)
		return
	}
	cards, err := h.catalog.Cards(ctx, products)
	if err != nil {
		fail(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, c := range cards {
			h.encodeCard(e, c)
		}
		e.ArrEnd()
	})
}

// GetProduct returns a single product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	p, err := h.catalog.Product(ctx, id)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProduct(e, p) })
}

// CreateProduct creates a product and returns it with its assigned id.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in, err := decodeBody(r, w, decodeInput)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	p, err := h.catalog.CreateProduct(ctx, in)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { h.encodeProduct(e, p) })
}

// UpdateProduct replaces every field of a product.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	in, err := decodeBody(r, w, decodeInput)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	p, err := h.catalog.UpdateProduct(ctx, id, in)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProduct(e, p) })
}

// DeleteProduct deletes a product and its prices.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	if err := h.catalog.DeleteProduct(ctx, id); err != nil {
		fail(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeInput(d *jx.Decoder) (product.Input, error) {
	in, err := wire.DecodeInput(d)
	if err != nil {
		return product.Input{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return product.Input{}, invalid("name is required")
	}
	if in.Category == "" || in.Category == product.CategoryAll {
		in.Category = "Other"
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}
	return in, nil
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	p.ImageURL = h.imageURL(p)
	wire.EncodeProduct(e, p)
}

func (h *Handler) encodeCard(e *jx.Encoder, c catalog.Card) {
	e.ObjStart()
	e.FieldStart("product")
	h.encodeProduct(e, c.Product)
	e.FieldStart("lowestPrice")
	if c.HasPrice {
		wire.EncodePriceEntry(e, c.Lowest)
	} else {
		e.Null()
	}
	e.FieldStart("stores")
	e.Int(c.Stores)
	e.ObjEnd()
}
