package pricing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/kjannette/ape-dashboard/internal/logger"
	"github.com/kjannette/ape-dashboard/internal/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const DefaultTTL = 30 * time.Second

// lookupWorkers bounds concurrent single-token lookups in BatchPrices.
const lookupWorkers = 4

type entry struct {
	price     decimal.Decimal
	fetchedAt time.Time
}

// Cache memoizes token prices for a TTL. Entries are refetched when read
// stale and are never evicted otherwise.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]entry
	provider Provider
	ttl      time.Duration
	now      func() time.Time
	group    singleflight.Group
	log      *zap.Logger
}

type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func NewCache(p Provider, opts ...Option) *Cache {
	c := &Cache{
		entries:  make(map[string]entry),
		provider: p,
		ttl:      DefaultTTL,
		now:      time.Now,
		log:      logger.Named("pricing"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Price returns the cached price for address if fresh, otherwise asks the
// active provider. Failures come back as zero and are cached like any other
// answer so a broken token is not hammered every render. A lookup cut short
// by its context is not cached.
func (c *Cache) Price(ctx context.Context, address string) decimal.Decimal {
	p := c.Provider()

	if _, manual := p.(Manual); manual {
		metrics.CacheLookups.WithLabelValues("manual").Inc()
		c.mu.RLock()
		e := c.entries[address]
		c.mu.RUnlock()
		return e.price
	}

	if price, ok := c.fresh(address); ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return price
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	v, _, shared := c.group.Do(p.Name()+"/"+address, func() (any, error) {
		price, ok := c.fetch(ctx, p, address)
		if ok {
			c.store(address, price)
		}
		return lookup{price: price, cached: ok}, nil
	})
	res := v.(lookup)

	// the shared call may have been cut short by another caller's context
	if !res.cached && shared && ctx.Err() == nil {
		price, ok := c.fetch(ctx, p, address)
		if ok {
			c.store(address, price)
		}
		return price
	}
	return res.price
}

type lookup struct {
	price  decimal.Decimal
	cached bool
}

// BatchPrices looks up every address, in one request when the provider
// supports it. It never fails as a whole; unknown prices are zero.
func (c *Cache) BatchPrices(ctx context.Context, addresses []string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(addresses))
	if len(addresses) == 0 {
		return out
	}

	bp, ok := c.Provider().(BatchProvider)
	if !ok {
		// one slow token must not hold up the rest
		var (
			mu sync.Mutex
			g  errgroup.Group
		)
		g.SetLimit(lookupWorkers)
		for _, addr := range dedupe(addresses) {
			g.Go(func() error {
				price := c.Price(ctx, addr)
				mu.Lock()
				out[addr] = price
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
		return out
	}

	var missing []string
	for _, addr := range dedupe(addresses) {
		if price, ok := c.fresh(addr); ok {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			out[addr] = price
			continue
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		missing = append(missing, addr)
	}
	if len(missing) == 0 {
		return out
	}

	prices, err := bp.Prices(ctx, missing)
	if err != nil {
		metrics.PriceFetches.WithLabelValues(bp.Name(), "error").Inc()
		c.log.Warn("batch price fetch failed",
			zap.String("provider", bp.Name()),
			zap.Int("tokens", len(missing)),
			zap.Error(err),
		)
		for _, addr := range missing {
			out[addr] = decimal.Zero
		}
		return out
	}
	metrics.PriceFetches.WithLabelValues(bp.Name(), "ok").Inc()

	for _, addr := range missing {
		price, quoted := prices[addr]
		if !quoted {
			out[addr] = decimal.Zero
			continue
		}
		c.store(addr, price)
		out[addr] = price
	}
	return out
}

// SetManualPrice overwrites the entry for address with a fresh timestamp,
// whatever the active provider.
func (c *Cache) SetManualPrice(address string, price decimal.Decimal) {
	c.store(address, price)
}

// SetProvider swaps the active provider. Existing entries are kept.
func (c *Cache) SetProvider(p Provider) {
	c.mu.Lock()
	c.provider = p
	c.mu.Unlock()
	c.log.Info("price provider changed", zap.String("provider", p.Name()))
}

func (c *Cache) Provider() Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.provider
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// EntryStatus describes one cached price.
type EntryStatus struct {
	Address string          `json:"address"`
	Price   decimal.Decimal `json:"price"`
	AgeMS   int64           `json:"ageMs"`
	Fresh   bool            `json:"fresh"`
}

// Status lists every entry, ordered by address.
func (c *Cache) Status() []EntryStatus {
	now := c.now()

	c.mu.RLock()
	out := make([]EntryStatus, 0, len(c.entries))
	for addr, e := range c.entries {
		age := now.Sub(e.fetchedAt)
		out = append(out, EntryStatus{
			Address: addr,
			Price:   e.price,
			AgeMS:   age.Milliseconds(),
			Fresh:   age < c.ttl,
		})
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

func (c *Cache) fresh(address string) (decimal.Decimal, bool) {
	c.mu.RLock()
	e, ok := c.entries[address]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		return decimal.Zero, false
	}
	return e.price, true
}

func (c *Cache) store(address string, price decimal.Decimal) {
	c.mu.Lock()
	c.entries[address] = entry{price: price, fetchedAt: c.now()}
	c.mu.Unlock()
}

// fetch asks p for one price. The bool reports whether the answer may be
// cached; it is false when the lookup was cancelled or timed out.
func (c *Cache) fetch(ctx context.Context, p Provider, address string) (decimal.Decimal, bool) {
	price, err := p.Price(ctx, address)
	switch {
	case err == nil:
		metrics.PriceFetches.WithLabelValues(p.Name(), "ok").Inc()
		return price, true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		metrics.PriceFetches.WithLabelValues(p.Name(), "cancelled").Inc()
		c.log.Debug("price fetch cut short",
			zap.String("provider", p.Name()),
			zap.String("address", address),
			zap.Error(err),
		)
		return decimal.Zero, false
	case errors.Is(err, ErrNotQuoted), errors.Is(err, ErrMissingAPIKey):
		metrics.PriceFetches.WithLabelValues(p.Name(), "zero").Inc()
	default:
		metrics.PriceFetches.WithLabelValues(p.Name(), "error").Inc()
		c.log.Warn("price fetch failed",
			zap.String("provider", p.Name()),
			zap.String("address", address),
			zap.Error(err),
		)
	}
	return decimal.Zero, true
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
