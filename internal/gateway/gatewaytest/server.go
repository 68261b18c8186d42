package gatewaytest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/pricewatch/internal/domain/product"
	"github.com/xenking/pricewatch/internal/wire"
)

// Handler serves s over the REST surface of the remote store, so the HTTP
// client can be tested end to end with httptest.
func Handler(s *Store) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", func(w http.ResponseWriter, r *http.Request) {
		var (
			products []product.Product
			err      error
		)
		q := r.URL.Query()
		switch {
		case q.Has("search"):
			products, err = s.SearchProducts(r.Context(), q.Get("search"))
		case q.Has("category"):
			products, err = s.GetProductsByCategory(r.Context(), q.Get("category"))
		default:
			products, err = s.GetAllProducts(r.Context())
		}
		respond(w, http.StatusOK, err, func(e *jx.Encoder) { wire.EncodeProducts(e, products) })
	})
	mux.HandleFunc("POST /products", func(w http.ResponseWriter, r *http.Request) {
		in, err := wire.DecodeInput(jx.Decode(r.Body, 4096))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		p, err := s.CreateProduct(r.Context(), in)
		respond(w, http.StatusCreated, err, func(e *jx.Encoder) { wire.EncodeProduct(e, p) })
	})
	mux.HandleFunc("GET /products/{id}", withID(func(w http.ResponseWriter, r *http.Request, id uint64) {
		p, err := s.GetProduct(r.Context(), id)
		respond(w, http.StatusOK, err, func(e *jx.Encoder) { wire.EncodeProduct(e, p) })
	}))
	mux.HandleFunc("PUT /products/{id}", withID(func(w http.ResponseWriter, r *http.Request, id uint64) {
		in, err := wire.DecodeInput(jx.Decode(r.Body, 4096))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		p, err := s.UpdateProduct(r.Context(), id, in)
		respond(w, http.StatusOK, err, func(e *jx.Encoder) { wire.EncodeProduct(e, p) })
	}))
	mux.HandleFunc("DELETE /products/{id}", withID(func(w http.ResponseWriter, r *http.Request, id uint64) {
		respond(w, http.StatusNoContent, s.DeleteProduct(r.Context(), id), nil)
	}))
	mux.HandleFunc("GET /products/{id}/prices", withID(func(w http.ResponseWriter, r *http.Request, id uint64) {
		entries, err := s.GetPriceEntries(r.Context(), id)
		respond(w, http.StatusOK, err, func(e *jx.Encoder) { wire.EncodePriceEntries(e, entries) })
	}))
	mux.HandleFunc("POST /products/{id}/prices", withID(func(w http.ResponseWriter, r *http.Request, id uint64) {
		in, err := wire.DecodePriceInput(jx.Decode(r.Body, 4096))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		pe, err := s.AddPriceEntry(r.Context(), id, in.Store, in.Price, in.InStock)
		respond(w, http.StatusCreated, err, func(e *jx.Encoder) { wire.EncodePriceEntry(e, pe) })
	}))
	mux.HandleFunc("PUT /products/{id}/prices/{store}", withID(func(w http.ResponseWriter, r *http.Request, id uint64) {
		in, err := wire.DecodePriceInput(jx.Decode(r.Body, 4096))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		pe, err := s.UpdatePriceEntry(r.Context(), id, r.PathValue("store"), in.Price, in.InStock)
		respond(w, http.StatusOK, err, func(e *jx.Encoder) { wire.EncodePriceEntry(e, pe) })
	}))
	mux.HandleFunc("DELETE /products/{id}/prices/{store}", withID(func(w http.ResponseWriter, r *http.Request, id uint64) {
		respond(w, http.StatusNoContent, s.DeletePriceEntry(r.Context(), id, r.PathValue("store")), nil)
	}))
	mux.HandleFunc("GET /products/{id}/insight", withID(func(w http.ResponseWriter, r *http.Request, id uint64) {
		insight, err := s.GetAIInsight(r.Context(), id)
		respond(w, http.StatusOK, err, func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("insight")
			e.Str(insight)
			e.ObjEnd()
		})
	}))
	return mux
}

func withID(h func(w http.ResponseWriter, r *http.Request, id uint64)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}
		h(w, r, id)
	}
}

func respond(w http.ResponseWriter, code int, err error, encode func(e *jx.Encoder)) {
	switch {
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, product.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	case encode == nil:
		w.WriteHeader(code)
	default:
		e := jx.GetEncoder()
		defer jx.PutEncoder(e)
		encode(e)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write(e.Bytes())
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.ObjStart()
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
