package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"

	"github.com/xenking/pricewatch/internal/wire"
)

// ListPrices returns the price entries of a product.
func (h *Handler) ListPrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	entries, err := h.catalog.PriceEntries(ctx, id)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodePriceEntries(e, entries) })
}

// AddPrice adds the price of a product at a new store.
func (h *Handler) AddPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	in, err := decodeBody(r, w, wire.DecodePriceInput)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	in.Store = strings.TrimSpace(in.Store)
	if in.Store == "" {
		fail(ctx, w, invalid("store is required"))
		return
	}
	pe, err := h.catalog.AddPriceEntry(ctx, id, in.Store, in.Price, in.InStock)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { wire.EncodePriceEntry(e, pe) })
}

// UpdatePrice replaces the price and stock flag of an existing entry.
func (h *Handler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	in, err := decodeBody(r, w, wire.DecodePriceInput)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	pe, err := h.catalog.UpdatePriceEntry(ctx, id, r.PathValue("store"), in.Price, in.InStock)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodePriceEntry(e, pe) })
}

// DeletePrice removes the price of a product at a store.
func (h *Handler) DeletePrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	if err := h.catalog.DeletePriceEntry(ctx, id, r.PathValue("store")); err != nil {
		fail(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetComparison returns a product with its prices sorted from cheapest and
// the lowest, highest and savings figures.
func (h *Handler) GetComparison(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	cmp, err := h.catalog.Comparison(ctx, id)
	if err != nil {
		fail(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("product")
		h.encodeProduct(e, cmp.Product)
		e.FieldStart("prices")
		wire.EncodePriceEntries(e, cmp.Entries)
		e.FieldStart("summary")
		if !cmp.HasPrices {
			e.Null()
		} else {
			s := cmp.Summary
			e.ObjStart()
			e.FieldStart("lowest")
			wire.EncodePriceEntry(e, s.Lowest)
			e.FieldStart("highest")
			wire.EncodePriceEntry(e, s.Highest)
			e.FieldStart("savings")
			e.Float64(s.Savings.InexactFloat64())
			e.FieldStart("stores")
			e.Int(s.Stores)
			e.ObjEnd()
		}
		e.ObjEnd()
	})
}

// GetInsight returns the buying recommendation of a product.
func (h *Handler) GetInsight(w http.ResponseWriter, r *http.Request) {
	h.insight(w, r, false)
}

// RefreshInsight drops the cached recommendation of a product and returns a
// freshly fetched one.
func (h *Handler) RefreshInsight(w http.ResponseWriter, r *http.Request) {
	h.insight(w, r, true)
}

func (h *Handler) insight(w http.ResponseWriter, r *http.Request, refresh bool) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	if refresh {
		h.catalog.RefreshInsight(ctx, id)
	}
	insight, err := h.catalog.AIInsight(ctx, id)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("insight")
		e.Str(insight)
		e.ObjEnd()
	})
}
