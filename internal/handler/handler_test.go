package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/pricewatch/internal/catalog"
	"github.com/xenking/pricewatch/internal/domain/product"
	"github.com/xenking/pricewatch/internal/gateway"
	"github.com/xenking/pricewatch/internal/gateway/gatewaytest"
	"github.com/xenking/pricewatch/internal/querycache"
	"github.com/xenking/pricewatch/internal/seed"
)

type testEnv struct {
	mux   *http.ServeMux
	store *gatewaytest.Store
	cat   *catalog.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	lg := zaptest.NewLogger(t)
	cache, err := querycache.New(querycache.Options{Logger: lg})
	require.NoError(t, err)

	store := gatewaytest.New()
	cat := catalog.New(store, cache, catalog.DefaultConfig(), lg)
	h := New(Config{ImageBaseURL: "https://cdn.example.com/"}, cat, seed.New(store, cat, seed.Options{Logger: lg}))

	mux := http.NewServeMux()
	h.Register(mux)
	return &testEnv{mux: mux, store: store, cat: cat}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, httptest.NewRequest(method, path, r))
	return w
}

func (e *testEnv) create(t *testing.T, name, category string) product.Product {
	t.Helper()
	p, err := e.cat.CreateProduct(context.Background(), product.Input{Name: name, Category: category})
	require.NoError(t, err)
	return p
}

// field returns the raw JSON of a top-level field.
func field(t *testing.T, body []byte, name string) string {
	t.Helper()
	var out string
	require.NoError(t, jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		raw, err := d.Raw()
		if key == name {
			out = raw.String()
		}
		return err
	}))
	return out
}

func TestCreateAndGetProduct(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/products",
		`{"name":" Desk Lamp ","category":"Home","imageUrl":"img/lamp.jpg","tags":["light"]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "1", field(t, w.Body.Bytes(), "id"))
	assert.Equal(t, `"Desk Lamp"`, field(t, w.Body.Bytes(), "name"))
	assert.Equal(t, `"https://cdn.example.com/img/lamp.jpg"`, field(t, w.Body.Bytes(), "imageUrl"))

	w = env.do(t, http.MethodGet, "/api/products/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"Home"`, field(t, w.Body.Bytes(), "category"))
}

func TestCreateProduct_Validation(t *testing.T) {
	env := newTestEnv(t)

	for name, body := range map[string]string{
		"empty name":   `{"name":"  ","category":"Home"}`,
		"malformed":    `{"name":`,
		"wrong type":   `{"name":42}`,
		"not a object": `[]`,
	} {
		t.Run(name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/products", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "400", field(t, w.Body.Bytes(), "code"))
		})
	}
	assert.Zero(t, env.store.Calls("CreateProduct"))
}

func TestGetProduct_Errors(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/products/42", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/products/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/products/0", "").Code)
}

func TestRemoteFailure(t *testing.T) {
	env := newTestEnv(t)
	env.store.Hook = func(context.Context, string, int) error {
		return &gateway.StatusError{Op: "get all products", Code: http.StatusServiceUnavailable}
	}

	w := env.do(t, http.MethodGet, "/api/products", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, `"remote store unavailable"`, field(t, w.Body.Bytes(), "message"))
}

func TestListProducts_Cards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tv := env.create(t, "OLED TV", "Electronics")
	env.create(t, "Rice", "Food")
	_, err := env.cat.AddPriceEntry(ctx, tv.ID, "Costco", decimal.RequireFromString("999.99"), true)
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, w.Code)

	var lowest []string
	require.NoError(t, jx.DecodeBytes(w.Body.Bytes()).Arr(func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			raw, err := d.Raw()
			if key == "lowestPrice" {
				lowest = append(lowest, raw.String())
			}
			return err
		})
	}))
	require.Len(t, lowest, 2)
	assert.Contains(t, lowest[0], `"store":"Costco"`)
	assert.Equal(t, "null", lowest[1])

	w = env.do(t, http.MethodGet, "/api/products?category=Food", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Rice")
	assert.NotContains(t, w.Body.String(), "OLED")

	w = env.do(t, http.MethodGet, "/api/products?search=oled", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "OLED TV")
	assert.NotContains(t, w.Body.String(), "Rice")
}

func TestPrices(t *testing.T) {
	env := newTestEnv(t)
	p := env.create(t, "Espresso Machine", "Home")

	w := env.do(t, http.MethodPost, "/api/products/1/prices", `{"store":"Amazon","price":10,"inStock":true}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/products/1/prices", `{"store":"Amazon","price":12,"inStock":true}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/products/1/prices", `{"price":12,"inStock":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/products/1/prices", `{"store":"Target","price":-1,"inStock":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/products/1/prices", `{"store":"Best Buy","price":15.5,"inStock":false}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPut, "/api/products/1/prices/Best%20Buy", `{"price":8,"inStock":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `"Best Buy"`, field(t, w.Body.Bytes(), "store"))

	w = env.do(t, http.MethodGet, "/api/products/1/comparison", "")
	require.Equal(t, http.StatusOK, w.Code)
	summary := field(t, w.Body.Bytes(), "summary")
	savings, err := decimal.NewFromString(field(t, []byte(summary), "savings"))
	require.NoError(t, err)
	assert.True(t, savings.Equal(decimal.NewFromInt(2)), savings.String())
	assert.Contains(t, field(t, []byte(summary), "lowest"), "Best Buy")

	w = env.do(t, http.MethodGet, "/api/products/1/insight", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, field(t, w.Body.Bytes(), "insight"), "Best Buy")

	w = env.do(t, http.MethodDelete, "/api/products/1/prices/Amazon", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodDelete, "/api/products/1/prices/Amazon", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	entries, err := env.cat.PriceEntries(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRefreshInsight(t *testing.T) {
	env := newTestEnv(t)
	p := env.create(t, "Air Fryer", "Home")
	_, err := env.cat.AddPriceEntry(context.Background(), p.ID, "Costco", decimal.RequireFromString("89.99"), true)
	require.NoError(t, err)

	for range 2 {
		w := env.do(t, http.MethodGet, "/api/products/1/insight", "")
		require.Equal(t, http.StatusOK, w.Code)
	}
	require.Equal(t, 1, env.store.Calls("GetAIInsight"))

	w := env.do(t, http.MethodPost, "/api/products/1/insight/refresh", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, field(t, w.Body.Bytes(), "insight"), "Costco")
	assert.Equal(t, 2, env.store.Calls("GetAIInsight"))

	w = env.do(t, http.MethodGet, "/api/products/1/insight", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, env.store.Calls("GetAIInsight"))

	w = env.do(t, http.MethodPost, "/api/products/abc/insight/refresh", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateAndDeleteProduct(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "Novel", "Books")

	w := env.do(t, http.MethodPut, "/api/products/1", `{"name":"Novel (2nd ed.)","category":"Books","tags":[]}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/products/1", "")
	assert.Equal(t, `"Novel (2nd ed.)"`, field(t, w.Body.Bytes(), "name"))

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/products/1", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/products/1", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, "/api/products/1", `{"name":"x"}`).Code)
}

func TestSeed(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/seed", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "25", field(t, w.Body.Bytes(), "products"))
	assert.Equal(t, 25, env.store.Len())
}

func TestSeed_Partial(t *testing.T) {
	env := newTestEnv(t)
	env.store.Hook = func(_ context.Context, op string, n int) error {
		if op == "CreateProduct" && n == 4 {
			return errors.New("store overloaded")
		}
		return nil
	}

	w := env.do(t, http.MethodPost, "/api/seed", "")
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "4", field(t, w.Body.Bytes(), "failedIndex"))
	assert.Equal(t, "3", field(t, w.Body.Bytes(), "products"))
}
