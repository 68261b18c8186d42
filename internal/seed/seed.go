// Package seed fills the remote store with a sample catalog.
//
// Products are processed in dataset order. Each product is created first and
// its prices are then added under the id the store assigned. The first failed
// call stops the run; whatever was created before it stays in the store.
package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/pricewatch/internal/catalog"
	"github.com/xenking/pricewatch/internal/domain/product"
)

// Writer is the part of the remote store the seeder writes through.
type Writer interface {
	CreateProduct(ctx context.Context, in product.Input) (product.Product, error)
	AddPriceEntry(ctx context.Context, productID uint64, store string, price decimal.Decimal, inStock bool) (product.PriceEntry, error)
}

// Invalidator applies the cache invalidation of a mutation.
type Invalidator interface {
	Invalidate(ctx context.Context, m catalog.Mutation)
}

// Error reports the call that stopped a run.
type Error struct {
	// Index is the 1-based position of the sample in the dataset.
	Index   int
	Product string
	// Store is set when adding a price failed, empty when creating the
	// product failed.
	Store string
	Err   error
}

func (e *Error) Error() string {
	if e.Store != "" {
		return fmt.Sprintf("seed product #%d %q: add price at %q: %v", e.Index, e.Product, e.Store, e.Err)
	}
	return fmt.Sprintf("seed product #%d %q: create: %v", e.Index, e.Product, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Result lists what a run created, also when it stopped early.
type Result struct {
	Products []product.Product
	Prices   int
}

// Options configures a Seeder.
type Options struct {
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
}

// Seeder runs the seeding protocol.
type Seeder struct {
	w      Writer
	inv    Invalidator
	lg     *zap.Logger
	tracer trace.Tracer
}

// New creates a Seeder.
func New(w Writer, inv Invalidator, opts Options) *Seeder {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = noop.NewTracerProvider()
	}
	return &Seeder{
		w:      w,
		inv:    inv,
		lg:     opts.Logger,
		tracer: opts.TracerProvider.Tracer("github.com/xenking/pricewatch/internal/seed"),
	}
}

// Run seeds samples in order. It returns a *Error for the first failed call
// together with the partial Result. The product lists are invalidated once,
// only when every call succeeded.
func (s *Seeder) Run(ctx context.Context, samples []Sample) (_ *Result, rerr error) {
	ctx, span := s.tracer.Start(ctx, "seed.Run",
		trace.WithAttributes(attribute.Int("seed.samples", len(samples))),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	res := &Result{}
	for i, sample := range samples {
		idx := i + 1
		if err := ctx.Err(); err != nil {
			return res, &Error{Index: idx, Product: sample.Name, Err: err}
		}

		s.lg.Debug("Seeding product", zap.Int("index", idx), zap.String("name", sample.Name))
		p, err := s.w.CreateProduct(ctx, sample.Input)
		if err != nil {
			return res, &Error{Index: idx, Product: sample.Name, Err: err}
		}
		res.Products = append(res.Products, p)

		for _, pi := range sample.Prices {
			if err := ctx.Err(); err != nil {
				return res, &Error{Index: idx, Product: sample.Name, Store: pi.Store, Err: err}
			}
			if _, err := s.w.AddPriceEntry(ctx, p.ID, pi.Store, pi.Price, pi.InStock); err != nil {
				return res, &Error{Index: idx, Product: sample.Name, Store: pi.Store, Err: err}
			}
			res.Prices++
		}
	}

	s.inv.Invalidate(ctx, catalog.Mutation{Kind: catalog.MutationSeedCatalog})
	s.lg.Info("Seeded catalog",
		zap.Int("products", len(res.Products)),
		zap.Int("prices", res.Prices),
	)
	span.SetAttributes(
		attribute.Int("seed.products", len(res.Products)),
		attribute.Int("seed.prices", res.Prices),
	)
	return res, nil
}

