package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pricewatch/internal/domain/product"
)

const maxBodySize = 1 << 20

// badRequest marks client input errors.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, code int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(code)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}

// fail maps err to a status code and writes the error body. Remote store
// failures are logged; their details are not exposed.
func fail(ctx context.Context, w http.ResponseWriter, err error) {
	var br *badRequest
	switch {
	case errors.As(err, &br):
		writeError(w, http.StatusBadRequest, br.msg)
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, product.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the response.
		writeError(w, 499, "request canceled")
	default:
		zctx.From(ctx).Error("Remote store call failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "remote store unavailable")
	}
}

func pathID(r *http.Request) (uint64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, invalid("invalid product id %q", raw)
	}
	return id, nil
}

func decodeBody[T any](r *http.Request, w http.ResponseWriter, decode func(d *jx.Decoder) (T, error)) (T, error) {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	v, err := decode(jx.Decode(body, 4096))
	if err != nil {
		var zero T
		return zero, invalid("invalid request body: %v", err)
	}
	return v, nil
}
