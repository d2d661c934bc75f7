package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	err    error
	calls  int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Price(_ context.Context, address string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.prices[address], nil
}

func (f *fakeProvider) set(address, price string) {
	f.mu.Lock()
	f.prices[address] = decimal.RequireFromString(price)
	f.mu.Unlock()
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeBatch struct {
	fakeProvider
	batchCalls int
	lastBatch  []string
}

func (f *fakeBatch) Prices(_ context.Context, addresses []string) (map[string]decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	f.lastBatch = addresses
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]decimal.Decimal)
	for _, a := range addresses {
		if p, ok := f.prices[a]; ok {
			out[a] = p
		}
	}
	return out, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFake() *fakeProvider {
	return &fakeProvider{prices: map[string]decimal.Decimal{}}
}

func newFakeBatch() *fakeBatch {
	return &fakeBatch{fakeProvider: fakeProvider{prices: map[string]decimal.Decimal{}}}
}

func TestCache_TTL(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	p := newFake()
	p.set("X", "2.00")
	c := NewCache(p, WithClock(clk.now))
	ctx := context.Background()

	assert.True(t, c.Price(ctx, "X").Equal(decimal.RequireFromString("2")))
	assert.Equal(t, 1, p.callCount())

	p.set("X", "9")
	clk.advance(15 * time.Second)
	assert.True(t, c.Price(ctx, "X").Equal(decimal.RequireFromString("2")), "fresh entry served from cache")
	assert.Equal(t, 1, p.callCount())

	clk.advance(16 * time.Second)
	assert.True(t, c.Price(ctx, "X").Equal(decimal.RequireFromString("9")), "stale entry refetched")
	assert.Equal(t, 2, p.callCount())
}

func TestCache_ExactlyTTLIsStale(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	p := newFake()
	p.set("X", "1")
	c := NewCache(p, WithClock(clk.now), WithTTL(10*time.Second))

	c.Price(context.Background(), "X")
	clk.advance(10 * time.Second)
	c.Price(context.Background(), "X")
	assert.Equal(t, 2, p.callCount())
}

func TestCache_FailureIsZeroAndCached(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	p := newFake()
	p.err = errors.New("boom")
	c := NewCache(p, WithClock(clk.now))

	assert.True(t, c.Price(context.Background(), "X").IsZero())
	assert.True(t, c.Price(context.Background(), "X").IsZero())
	assert.Equal(t, 1, p.callCount())
}

func TestCache_ManualOverride(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	p := newFake()
	p.set("X", "3")
	c := NewCache(p, WithClock(clk.now))

	c.SetManualPrice("X", decimal.RequireFromString("0.5"))
	assert.True(t, c.Price(context.Background(), "X").Equal(decimal.RequireFromString("0.5")))
	assert.Zero(t, p.callCount())
}

func TestCache_ManualProviderNeverFetches(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	c := NewCache(Manual{}, WithClock(clk.now))

	assert.True(t, c.Price(context.Background(), "X").IsZero())

	c.SetManualPrice("X", decimal.NewFromInt(4))
	clk.advance(time.Hour)
	assert.True(t, c.Price(context.Background(), "X").Equal(decimal.NewFromInt(4)), "manual prices do not expire")
}

func TestCache_SetProviderKeepsEntries(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	a, b := newFake(), newFake()
	a.set("X", "1")
	b.set("X", "2")
	c := NewCache(a, WithClock(clk.now))

	c.Price(context.Background(), "X")
	c.SetProvider(b)
	assert.True(t, c.Price(context.Background(), "X").Equal(decimal.NewFromInt(1)))
	assert.Zero(t, b.callCount())

	clk.advance(time.Minute)
	assert.True(t, c.Price(context.Background(), "X").Equal(decimal.NewFromInt(2)))
	assert.Equal(t, 1, b.callCount())
}

func TestCache_BatchUsesOneRequest(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	p := newFakeBatch()
	p.set("A", "1")
	p.set("B", "2")
	c := NewCache(p, WithClock(clk.now))

	c.SetManualPrice("C", decimal.NewFromInt(7))
	got := c.BatchPrices(context.Background(), []string{"A", "B", "C", "D", "A"})

	assert.Equal(t, 1, p.batchCalls)
	assert.ElementsMatch(t, []string{"A", "B", "D"}, p.lastBatch)
	assert.Zero(t, p.callCount())
	assert.True(t, got["A"].Equal(decimal.NewFromInt(1)))
	assert.True(t, got["B"].Equal(decimal.NewFromInt(2)))
	assert.True(t, got["C"].Equal(decimal.NewFromInt(7)))
	require.Contains(t, got, "D")
	assert.True(t, got["D"].IsZero())

	// omitted address is not cached, so it is asked for again
	c.BatchPrices(context.Background(), []string{"D"})
	assert.Equal(t, 2, p.batchCalls)
}

func TestCache_BatchFailureYieldsZeros(t *testing.T) {
	p := newFakeBatch()
	p.err = errors.New("down")
	c := NewCache(p)

	got := c.BatchPrices(context.Background(), []string{"A", "B"})
	require.Len(t, got, 2)
	assert.True(t, got["A"].IsZero())
	assert.True(t, got["B"].IsZero())
	assert.Empty(t, c.Status())
}

func TestCache_BatchFallsBackToSingleLookups(t *testing.T) {
	p := newFake()
	p.set("A", "1")
	c := NewCache(p)

	got := c.BatchPrices(context.Background(), []string{"A", "B"})
	assert.Equal(t, 2, p.callCount())
	assert.True(t, got["A"].Equal(decimal.NewFromInt(1)))
	assert.True(t, got["B"].IsZero())
}

func TestCache_StatusAndClear(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	c := NewCache(newFake(), WithClock(clk.now))

	c.SetManualPrice("B", decimal.NewFromInt(2))
	clk.advance(40 * time.Second)
	c.SetManualPrice("A", decimal.NewFromInt(1))

	st := c.Status()
	require.Len(t, st, 2)
	assert.Equal(t, "A", st[0].Address)
	assert.True(t, st[0].Fresh)
	assert.Equal(t, "B", st[1].Address)
	assert.False(t, st[1].Fresh)
	assert.Equal(t, int64(40_000), st[1].AgeMS)

	c.Clear()
	assert.Empty(t, c.Status())
}

func TestNewProvider(t *testing.T) {
	assert.Equal(t, "jupiter", NewProvider("jupiter", Keys{}).Name())
	assert.Equal(t, "birdeye", NewProvider("Birdeye", Keys{}).Name())
	assert.Equal(t, "coingecko", NewProvider("coingecko", Keys{}).Name())
	assert.Equal(t, "manual", NewProvider("manual", Keys{}).Name())
	assert.Equal(t, "jupiter", NewProvider("pyth", Keys{}).Name())
}

// stallProvider blocks on one address until the caller gives up.
type stallProvider struct {
	stalled string
	price   decimal.Decimal
}

func (stallProvider) Name() string { return "stall" }

func (s stallProvider) Price(ctx context.Context, address string) (decimal.Decimal, error) {
	if address == s.stalled {
		<-ctx.Done()
		return decimal.Zero, ctx.Err()
	}
	return s.price, nil
}

func TestCache_StalledTokenDoesNotStarveOthers(t *testing.T) {
	c := NewCache(stallProvider{stalled: "STUCK", price: decimal.NewFromInt(2)})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	got := c.BatchPrices(ctx, []string{"STUCK", "HEALTHY"})
	cancel()

	assert.True(t, got["HEALTHY"].Equal(decimal.NewFromInt(2)))
	assert.True(t, got["STUCK"].IsZero())

	st := c.Status()
	require.Len(t, st, 1, "timed out lookup must not be cached")
	assert.Equal(t, "HEALTHY", st[0].Address)
	assert.True(t, st[0].Fresh)
	assert.True(t, st[0].Price.Equal(decimal.NewFromInt(2)))
}

func TestCache_CancelledLookupNotCached(t *testing.T) {
	p := newFake()
	p.err = fmt.Errorf("fake fetch: %w", context.DeadlineExceeded)
	c := NewCache(p)

	assert.True(t, c.Price(context.Background(), "X").IsZero())
	assert.True(t, c.Price(context.Background(), "X").IsZero())
	assert.Equal(t, 2, p.callCount(), "cancelled result is asked for again")
	assert.Empty(t, c.Status())
}
