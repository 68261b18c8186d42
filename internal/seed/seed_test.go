package seed

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/pricewatch/db"
	"github.com/xenking/pricewatch/internal/catalog"
	"github.com/xenking/pricewatch/internal/gateway/gatewaytest"
)

type recordingInvalidator struct {
	mu        sync.Mutex
	mutations []catalog.Mutation
}

func (r *recordingInvalidator) Invalidate(_ context.Context, m catalog.Mutation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutations = append(r.mutations, m)
}

func newTestSeeder(t *testing.T) (*Seeder, *gatewaytest.Store, *recordingInvalidator) {
	t.Helper()
	store := gatewaytest.New()
	inv := &recordingInvalidator{}
	return New(store, inv, Options{Logger: zaptest.NewLogger(t)}), store, inv
}

func TestDefaultDataset(t *testing.T) {
	samples, err := DefaultDataset()
	require.NoError(t, err)
	require.Len(t, samples, 25)

	for _, s := range samples {
		assert.NotEmpty(t, s.Name)
		assert.NotEmpty(t, s.Category)
		assert.NotEmpty(t, s.Prices, s.Name)
		for _, p := range s.Prices {
			assert.NotEmpty(t, p.Store)
			assert.True(t, p.Price.IsPositive())
		}
	}
	assert.Equal(t, "Wireless Noise-Cancelling Headphones", samples[0].Name)
	assert.True(t, samples[0].Prices[0].Price.Equal(decimal.RequireFromString("279.99")))
}

func TestLoadDataset_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	_, err := gz.Write(db.SampleCatalog)
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	path := filepath.Join(t.TempDir(), "catalog.json.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	samples, err := LoadDataset(path)
	require.NoError(t, err)
	assert.Len(t, samples, 25)
}

func TestLoadDataset_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"name":"Tea","category":"Food","tags":["green"],"prices":[{"store":"Shop","price":3.5,"inStock":true}]}
	]`), 0o600))

	samples, err := LoadDataset(path)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "Tea", samples[0].Name)
	assert.Equal(t, []string{"green"}, samples[0].Tags)
	require.Len(t, samples[0].Prices, 1)
	assert.Equal(t, "Shop", samples[0].Prices[0].Store)
}

func TestDecodeDataset_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"no name":        `[{"category":"Food"}]`,
		"no store":       `[{"name":"Tea","prices":[{"price":1,"inStock":true}]}]`,
		"negative price": `[{"name":"Tea","prices":[{"store":"A","price":-1,"inStock":true}]}]`,
		"not an array":   `{"name":"Tea"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeDataset(bytes.NewReader([]byte(body)))
			require.Error(t, err)
		})
	}
}

func TestRun_Success(t *testing.T) {
	s, store, inv := newTestSeeder(t)
	samples, err := DefaultDataset()
	require.NoError(t, err)

	res, err := s.Run(context.Background(), samples)
	require.NoError(t, err)
	assert.Len(t, res.Products, 25)
	assert.Equal(t, 25, store.Len())

	total := 0
	for _, sample := range samples {
		total += len(sample.Prices)
	}
	assert.Equal(t, total, res.Prices)
	assert.Equal(t, total, store.Calls("AddPriceEntry"))

	for i, p := range res.Products {
		entries, err := store.GetPriceEntries(context.Background(), p.ID)
		require.NoError(t, err)
		assert.Len(t, entries, len(samples[i].Prices), p.Name)
	}

	require.Len(t, inv.mutations, 1, "invalidated exactly once")
	assert.Equal(t, catalog.MutationSeedCatalog, inv.mutations[0].Kind)
}

func TestRun_StopsAtFailedPrice(t *testing.T) {
	s, store, inv := newTestSeeder(t)
	samples, err := DefaultDataset()
	require.NoError(t, err)

	// Fail the second price add of product #13.
	before := 0
	for _, sample := range samples[:12] {
		before += len(sample.Prices)
	}
	failAt := before + 2
	remoteErr := errors.New("store unavailable")
	store.Hook = func(_ context.Context, op string, n int) error {
		if op == "AddPriceEntry" && n == failAt {
			return remoteErr
		}
		return nil
	}

	res, err := s.Run(context.Background(), samples)
	require.ErrorIs(t, err, remoteErr)

	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 13, se.Index)
	assert.Equal(t, samples[12].Name, se.Product)
	assert.Equal(t, samples[12].Prices[1].Store, se.Store)

	assert.Equal(t, 13, store.Len(), "products #14-#25 are never created")
	assert.Equal(t, 13, store.Calls("CreateProduct"))
	require.Len(t, res.Products, 13)
	assert.Equal(t, before+1, res.Prices)

	entries, err := store.GetPriceEntries(context.Background(), res.Products[12].ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "#13 keeps the price added before the failure")

	assert.Empty(t, inv.mutations, "no invalidation after a failed run")
}

func TestRun_StopsAtFailedCreate(t *testing.T) {
	s, store, inv := newTestSeeder(t)
	samples, err := DefaultDataset()
	require.NoError(t, err)

	store.Hook = func(_ context.Context, op string, n int) error {
		if op == "CreateProduct" && n == 3 {
			return errors.New("boom")
		}
		return nil
	}

	res, err := s.Run(context.Background(), samples)
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 3, se.Index)
	assert.Empty(t, se.Store)
	assert.Contains(t, se.Error(), "create")
	assert.Len(t, res.Products, 2)
	assert.Equal(t, 2, store.Len())
	assert.Empty(t, inv.mutations)
}

func TestRun_Cancelled(t *testing.T) {
	s, store, inv := newTestSeeder(t)
	samples, err := DefaultDataset()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	store.Hook = func(_ context.Context, op string, n int) error {
		if op == "CreateProduct" && n == 2 {
			cancel()
		}
		return nil
	}

	res, err := s.Run(ctx, samples)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, res.Products, 2)
	assert.Equal(t, 2, store.Len())
	assert.Empty(t, inv.mutations)
}

func TestRun_Empty(t *testing.T) {
	s, store, inv := newTestSeeder(t)

	res, err := s.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Products)
	assert.Zero(t, store.Len())
	assert.Len(t, inv.mutations, 1)
}
