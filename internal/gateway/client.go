package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/xenking/pricewatch/internal/domain/product"
	"github.com/xenking/pricewatch/internal/wire"
	"github.com/xenking/pricewatch/pkg/httpmiddleware"
)

var _ Gateway = (*Client)(nil)

// StatusError is a non-2xx response that is neither a not-found nor a
// conflict rejection.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: remote store responded %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: remote store responded %d: %s", e.Op, e.Code, e.Message)
}

// Config configures a Client.
type Config struct {
	// BaseURL of the remote store REST surface, e.g. http://store:9000.
	BaseURL string
	// Timeout bounds a single call. Zero means no timeout.
	Timeout time.Duration
	// RateLimit caps outgoing calls per second. Zero disables throttling.
	RateLimit float64
	Burst     int

	HTTPClient     *http.Client
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Client talks JSON over HTTP to the remote catalog store.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Client for cfg.BaseURL.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", cfg.BaseURL)
	}

	var transport http.RoundTripper = http.DefaultTransport
	if cfg.HTTPClient != nil && cfg.HTTPClient.Transport != nil {
		transport = cfg.HTTPClient.Transport
	}
	var opts []otelhttp.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.MeterProvider != nil {
		opts = append(opts, otelhttp.WithMeterProvider(cfg.MeterProvider))
	}

	c := &Client{
		base: strings.TrimSuffix(base.String(), "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(transport, opts...),
			Timeout:   cfg.Timeout,
		},
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

func productPath(id uint64) string {
	return "/products/" + strconv.FormatUint(id, 10)
}

func pricePath(productID uint64, store string) string {
	return productPath(productID) + "/prices/" + url.PathEscape(store)
}

type call struct {
	op     string
	method string
	path   string
	query  url.Values
	body   func(e *jx.Encoder)
	decode func(d *jx.Decoder) error
}

func (c *Client) do(ctx context.Context, cl call) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrapf(err, "%s: throttle", cl.op)
		}
	}

	u, err := url.Parse(c.base + cl.path)
	if err != nil {
		return errors.Wrapf(err, "%s: build url", cl.op)
	}
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		e := jx.GetEncoder()
		defer jx.PutEncoder(e)
		cl.body(e)
		body = bytes.NewReader(e.Bytes())
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return errors.Wrapf(err, "%s: build request", cl.op)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	id := httpmiddleware.RequestIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	req.Header.Set(httpmiddleware.HeaderRequestID, id)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, cl.op)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(cl.op, resp)
	}
	if cl.decode == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := cl.decode(jx.Decode(resp.Body, 4096)); err != nil {
		return errors.Wrapf(err, "%s: decode response", cl.op)
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := remoteMessage(raw)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return errors.Wrapf(product.ErrNotFound, "%s: %s", op, msg)
	case http.StatusConflict:
		return errors.Wrapf(product.ErrConflict, "%s: %s", op, msg)
	default:
		return &StatusError{Op: op, Code: resp.StatusCode, Message: msg}
	}
}

// remoteMessage extracts "message" (or "error") from a JSON error body and
// falls back to the trimmed raw body.
func remoteMessage(raw []byte) string {
	var msg string
	err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		if (key == "message" || key == "error") && d.Next() == jx.String && msg == "" {
			s, err := d.Str()
			msg = s
			return err
		}
		return d.Skip()
	})
	if err == nil && msg != "" {
		return msg
	}
	return strings.TrimSpace(string(raw))
}

func (c *Client) CreateProduct(ctx context.Context, in product.Input) (product.Product, error) {
	var p product.Product
	err := c.do(ctx, call{
		op:     "create product",
		method: http.MethodPost,
		path:   "/products",
		body:   func(e *jx.Encoder) { wire.EncodeInput(e, in) },
		decode: func(d *jx.Decoder) (err error) {
			p, err = wire.DecodeProduct(d)
			return err
		},
	})
	return p, err
}

func (c *Client) UpdateProduct(ctx context.Context, id uint64, in product.Input) (product.Product, error) {
	var p product.Product
	err := c.do(ctx, call{
		op:     "update product",
		method: http.MethodPut,
		path:   productPath(id),
		body:   func(e *jx.Encoder) { wire.EncodeInput(e, in) },
		decode: func(d *jx.Decoder) (err error) {
			p, err = wire.DecodeProduct(d)
			return err
		},
	})
	return p, err
}

func (c *Client) DeleteProduct(ctx context.Context, id uint64) error {
	return c.do(ctx, call{
		op:     "delete product",
		method: http.MethodDelete,
		path:   productPath(id),
	})
}

func (c *Client) GetProduct(ctx context.Context, id uint64) (product.Product, error) {
	var p product.Product
	err := c.do(ctx, call{
		op:     "get product",
		method: http.MethodGet,
		path:   productPath(id),
		decode: func(d *jx.Decoder) (err error) {
			p, err = wire.DecodeProduct(d)
			return err
		},
	})
	return p, err
}

func (c *Client) listProducts(ctx context.Context, op string, query url.Values) ([]product.Product, error) {
	var products []product.Product
	err := c.do(ctx, call{
		op:     op,
		method: http.MethodGet,
		path:   "/products",
		query:  query,
		decode: func(d *jx.Decoder) (err error) {
			products, err = wire.DecodeProducts(d)
			return err
		},
	})
	return products, err
}

func (c *Client) GetAllProducts(ctx context.Context) ([]product.Product, error) {
	return c.listProducts(ctx, "get all products", nil)
}

func (c *Client) GetProductsByCategory(ctx context.Context, category string) ([]product.Product, error) {
	return c.listProducts(ctx, "get products by category", url.Values{"category": {category}})
}

func (c *Client) SearchProducts(ctx context.Context, text string) ([]product.Product, error) {
	return c.listProducts(ctx, "search products", url.Values{"search": {text}})
}

func (c *Client) AddPriceEntry(ctx context.Context, productID uint64, store string, price decimal.Decimal, inStock bool) (product.PriceEntry, error) {
	var pe product.PriceEntry
	err := c.do(ctx, call{
		op:     "add price entry",
		method: http.MethodPost,
		path:   productPath(productID) + "/prices",
		body: func(e *jx.Encoder) {
			wire.EncodePriceInput(e, wire.PriceInput{Store: store, Price: price, InStock: inStock})
		},
		decode: func(d *jx.Decoder) (err error) {
			pe, err = wire.DecodePriceEntry(d)
			return err
		},
	})
	return pe, err
}

func (c *Client) UpdatePriceEntry(ctx context.Context, productID uint64, store string, price decimal.Decimal, inStock bool) (product.PriceEntry, error) {
	var pe product.PriceEntry
	err := c.do(ctx, call{
		op:     "update price entry",
		method: http.MethodPut,
		path:   pricePath(productID, store),
		body: func(e *jx.Encoder) {
			wire.EncodePriceInput(e, wire.PriceInput{Price: price, InStock: inStock})
		},
		decode: func(d *jx.Decoder) (err error) {
			pe, err = wire.DecodePriceEntry(d)
			return err
		},
	})
	return pe, err
}

func (c *Client) DeletePriceEntry(ctx context.Context, productID uint64, store string) error {
	return c.do(ctx, call{
		op:     "delete price entry",
		method: http.MethodDelete,
		path:   pricePath(productID, store),
	})
}

func (c *Client) GetPriceEntries(ctx context.Context, productID uint64) ([]product.PriceEntry, error) {
	var entries []product.PriceEntry
	err := c.do(ctx, call{
		op:     "get price entries",
		method: http.MethodGet,
		path:   productPath(productID) + "/prices",
		decode: func(d *jx.Decoder) (err error) {
			entries, err = wire.DecodePriceEntries(d)
			return err
		},
	})
	return entries, err
}

func (c *Client) GetAIInsight(ctx context.Context, productID uint64) (string, error) {
	var insight string
	err := c.do(ctx, call{
		op:     "get ai insight",
		method: http.MethodGet,
		path:   productPath(productID) + "/insight",
		decode: func(d *jx.Decoder) error {
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "insight" {
					return d.Skip()
				}
				if d.Next() == jx.Null {
					return d.Null()
				}
				s, err := d.Str()
				insight = s
				return err
			})
		},
	})
	return insight, err
}

// Ping checks that the remote store answers. Any response below 500 counts.
func (c *Client) Ping(ctx context.Context) error {
	err := c.do(ctx, call{
		op:     "ping",
		method: http.MethodHead,
		path:   "/products",
	})
	var se *StatusError
	if errors.As(err, &se) && se.Code < http.StatusInternalServerError {
		return nil
	}
	if errors.Is(err, product.ErrNotFound) || errors.Is(err, product.ErrConflict) {
		return nil
	}
	return err
}
