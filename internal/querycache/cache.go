// Package querycache stores the results of remote reads under structured keys.
//
// Each key has its own entry holding the last fetched value, the time it was
// fetched and an invalidation flag. A read is served from the entry while it
// is fresh; otherwise the fetch function runs, with at most one fetch in
// flight per key. Every invalidation moves the entry to a new generation, and
// a fetch result is only stored if the generation it started with is still
// current, so a response that raced an invalidation never overwrites the
// cache.
//
// Generations are issued from one cache-wide counter, so a purged entry can be
// removed from the map: an entry created later for the same key never reuses
// a generation an older fetch might still hold. The map holds one entry per
// key read since that key was last purged.
package querycache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Key identifies a cached query, e.g. "prices:42".
type Key struct {
	Kind string
	Arg  string
}

// NewKey returns a key for the given query kind and serialized arguments.
// Multiple arguments are joined with ":".
func NewKey(kind string, args ...string) Key {
	return Key{Kind: kind, Arg: strings.Join(args, ":")}
}

func (k Key) String() string {
	if k.Arg == "" {
		return k.Kind
	}
	return k.Kind + ":" + k.Arg
}

// HasPrefix reports whether the string form of k starts with prefix.
func (k Key) HasPrefix(prefix string) bool {
	return strings.HasPrefix(k.String(), prefix)
}

// NoExpiry is a staleness window under which a value stays fresh until it is
// invalidated.
const NoExpiry time.Duration = -1

type entry struct {
	value       any
	hasValue    bool
	fetchedAt   time.Time
	invalidated bool
	gen         uint64
}

func (e *entry) fresh(now time.Time, staleTime time.Duration) bool {
	if !e.hasValue || e.invalidated {
		return false
	}
	if staleTime < 0 {
		return true
	}
	return now.Sub(e.fetchedAt) < staleTime
}

// State is a snapshot of a cache entry.
type State struct {
	HasValue    bool
	Invalidated bool
	FetchedAt   time.Time
	Generation  uint64
}

// Options configures a Cache.
type Options struct {
	Logger        *zap.Logger
	MeterProvider metric.MeterProvider
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Cache is the process-wide query cache. It is created once per application
// and only ever reset through explicit invalidation.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	lastGen uint64
	flights singleflight.Group

	now func() time.Time
	lg  *zap.Logger

	hits          metric.Int64Counter
	fetches       metric.Int64Counter
	suppressed    metric.Int64Counter
	invalidations metric.Int64Counter
}

// New creates an empty Cache.
func New(opts Options) (*Cache, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Cache{
		entries: make(map[Key]*entry),
		now:     opts.Now,
		lg:      opts.Logger,
	}
	if err := c.initMetrics(opts.MeterProvider); err != nil {
		return nil, errors.Wrap(err, "init metrics")
	}
	return c, nil
}

func (c *Cache) initMetrics(mp metric.MeterProvider) error {
	if mp == nil {
		return nil
	}
	meter := mp.Meter("github.com/xenking/pricewatch/internal/querycache")

	var err error
	if c.hits, err = meter.Int64Counter("querycache.hits",
		metric.WithDescription("Reads served from a fresh cache entry"),
	); err != nil {
		return err
	}
	if c.fetches, err = meter.Int64Counter("querycache.fetches",
		metric.WithDescription("Remote fetches started on a miss or stale entry"),
	); err != nil {
		return err
	}
	if c.suppressed, err = meter.Int64Counter("querycache.suppressed",
		metric.WithDescription("Fetch results dropped because the key was invalidated meanwhile"),
	); err != nil {
		return err
	}
	if c.invalidations, err = meter.Int64Counter("querycache.invalidations",
		metric.WithDescription("Entries invalidated or purged"),
	); err != nil {
		return err
	}
	return nil
}

func (c *Cache) count(ctx context.Context, counter metric.Int64Counter, key Key) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", key.Kind)))
}

// nextGenLocked issues a generation never used before. c.mu must be held.
func (c *Cache) nextGenLocked() uint64 {
	c.lastGen++
	return c.lastGen
}

// entryLocked returns the entry for key, creating it when missing.
// c.mu must be held.
func (c *Cache) entryLocked(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{gen: c.nextGenLocked()}
		c.entries[key] = e
	}
	return e
}

// Load returns the cached value for key when it is fresh under staleTime,
// and otherwise fetches it. A zero staleTime revalidates on every read;
// NoExpiry keeps values until invalidated.
//
// Concurrent loads of the same key share a single fetch. The fetch runs
// detached from ctx cancellation: a caller whose ctx is done gets ctx.Err()
// while the fetch completes for everyone else. A failed fetch leaves the
// previous entry untouched.
func Load[T any](ctx context.Context, c *Cache, key Key, staleTime time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	c.mu.Lock()
	e := c.entryLocked(key)
	if e.fresh(c.now(), staleTime) {
		v := e.value
		c.mu.Unlock()
		c.count(ctx, c.hits, key)
		return v.(T), nil
	}
	gen := e.gen
	c.mu.Unlock()

	flight := key.String() + "@" + strconv.FormatUint(gen, 10)
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(flight, func() (any, error) {
		c.count(fetchCtx, c.fetches, key)
		v, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.store(fetchCtx, key, gen, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func (c *Cache) store(ctx context.Context, key Key, gen uint64, v any) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.gen != gen {
		c.mu.Unlock()
		c.count(ctx, c.suppressed, key)
		c.lg.Debug("Dropping stale fetch result",
			zap.Stringer("key", key),
			zap.Uint64("fetch_generation", gen),
		)
		return
	}
	e.value = v
	e.hasValue = true
	e.invalidated = false
	e.fetchedAt = c.now()
	c.mu.Unlock()
}

// Invalidate marks the given keys stale so that the next read fetches them
// again, and suppresses any fetch for them that is still in flight. Keys that
// were never read have nothing to invalidate.
func (c *Cache) Invalidate(ctx context.Context, keys ...Key) {
	var matched []Key
	c.mu.Lock()
	for _, key := range keys {
		e, ok := c.entries[key]
		if !ok {
			continue
		}
		e.gen = c.nextGenLocked()
		e.invalidated = true
		matched = append(matched, key)
	}
	c.mu.Unlock()

	for _, key := range matched {
		c.count(ctx, c.invalidations, key)
	}
}

// InvalidatePrefix invalidates every existing key whose string form starts
// with prefix and returns the affected keys.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) []Key {
	var matched []Key
	c.mu.Lock()
	for key, e := range c.entries {
		if !key.HasPrefix(prefix) {
			continue
		}
		e.gen = c.nextGenLocked()
		e.invalidated = true
		matched = append(matched, key)
	}
	c.mu.Unlock()

	for _, key := range matched {
		c.count(ctx, c.invalidations, key)
	}
	return matched
}

// Purge removes the entries of keys. Fetches still in flight for them find no
// entry to store into and are dropped.
func (c *Cache) Purge(ctx context.Context, keys ...Key) {
	var matched []Key
	c.mu.Lock()
	for _, key := range keys {
		if _, ok := c.entries[key]; !ok {
			continue
		}
		delete(c.entries, key)
		matched = append(matched, key)
	}
	c.mu.Unlock()

	for _, key := range matched {
		c.count(ctx, c.invalidations, key)
	}
}

// Len returns the number of entries held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// State returns a snapshot of the entry for key.
func (c *Cache) State(key Key) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return State{}
	}
	return State{
		HasValue:    e.hasValue,
		Invalidated: e.invalidated,
		FetchedAt:   e.fetchedAt,
		Generation:  e.gen,
	}
}

// Peek returns the cached value for key regardless of freshness.
func Peek[T any](c *Cache, key Key) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.entries[key]
	if !ok || !e.hasValue {
		return zero, false
	}
	v, ok := e.value.(T)
	return v, ok
}
