package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pricewatch/internal/seed"
)

// Seed loads the configured dataset into the remote store. A failed run
// answers 502 and reports how far it got; nothing is rolled back.
func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	samples, err := seed.LoadDataset(h.dataset)
	if err != nil {
		zctx.From(ctx).Error("Load seed dataset", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "seed dataset unavailable")
		return
	}

	res, err := h.seeder.Run(ctx, samples)
	var se *seed.Error
	if errors.As(err, &se) {
		zctx.From(ctx).Warn("Seeding stopped", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("code")
			e.Int(http.StatusBadGateway)
			e.FieldStart("message")
			e.Str(se.Error())
			e.FieldStart("failedIndex")
			e.Int(se.Index)
			encodeSeedCounts(e, res)
			e.ObjEnd()
		})
		return
	}
	if err != nil {
		fail(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		encodeSeedCounts(e, res)
		e.ObjEnd()
	})
}

func encodeSeedCounts(e *jx.Encoder, res *seed.Result) {
	var products, prices int
	if res != nil {
		products, prices = len(res.Products), res.Prices
	}
	e.FieldStart("products")
	e.Int(products)
	e.FieldStart("prices")
	e.Int(prices)
}
