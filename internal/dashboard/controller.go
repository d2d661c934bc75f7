// Package dashboard owns the live dashboard state: the trade list, the
// positions derived from it and the latest prices. It reloads on store
// changes, refreshes prices on a timer and publishes a rendered View after
// every change.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kjannette/ape-dashboard/internal/ledger"
	"github.com/kjannette/ape-dashboard/internal/logger"
	"github.com/kjannette/ape-dashboard/internal/metrics"
	"github.com/kjannette/ape-dashboard/internal/models"
	"github.com/kjannette/ape-dashboard/internal/pricing"
	"github.com/kjannette/ape-dashboard/internal/scheduler"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type TradeStore interface {
	Insert(ctx context.Context, t *models.Trade) (*models.Trade, error)
	List(ctx context.Context, limit int) ([]models.Trade, error)
	Subscribe(ctx context.Context, onChange func()) error
}

type PriceSource interface {
	BatchPrices(ctx context.Context, addresses []string) map[string]decimal.Decimal
	Provider() pricing.Provider
}

type SOLPricer interface {
	SOLPrice(ctx context.Context) (decimal.Decimal, error)
}

type BalanceReader interface {
	SOLBalance(ctx context.Context) (decimal.Decimal, error)
}

type PriceRecorder interface {
	Record(ctx context.Context, points []models.PricePoint) error
}

type Notifier interface {
	TradeRecorded(ctx context.Context, t *models.Trade)
}

// Deps are the collaborators. Store and Prices are required; the rest may
// be nil.
type Deps struct {
	Store    TradeStore
	Prices   PriceSource
	SOL      SOLPricer
	Balance  BalanceReader
	History  PriceRecorder
	Notifier Notifier
}

type Options struct {
	RefreshInterval time.Duration
	Realtime        bool
	RealtimeLimit   int
	RecentLimit     int
	ExplorerTxURL   string
	Location        *time.Location
}

type Controller struct {
	deps Deps
	opts Options
	now  func() time.Time
	log  *zap.Logger

	start   time.Time
	refresh *scheduler.Scheduler

	mu         sync.RWMutex
	trades     []models.Trade
	positions  map[string]models.Position
	prices     map[string]decimal.Decimal
	solPrice   decimal.Decimal
	solBalance decimal.Decimal
	hasBalance bool
	lastUpdate time.Time

	lmu       sync.Mutex
	nextID    int
	listeners map[int]func(View)
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func New(deps Deps, opts Options, extra ...Option) *Controller {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 30 * time.Second
	}
	if opts.RealtimeLimit <= 0 {
		opts.RealtimeLimit = 50
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 20
	}

	c := &Controller{
		deps:      deps,
		opts:      opts,
		now:       time.Now,
		log:       logger.Named("dashboard"),
		positions: map[string]models.Position{},
		prices:    map[string]decimal.Decimal{},
		listeners: map[int]func(View){},
	}
	for _, o := range extra {
		o(c)
	}
	c.start = c.now()
	c.refresh = scheduler.New(c.RefreshPrices, scheduler.Config{
		Name:       "price-refresh",
		Interval:   opts.RefreshInterval,
		RunOnStart: true,
	})
	return c
}

// Load replaces the trade list with every stored trade and re-renders. On
// failure the current state is kept.
func (c *Controller) Load(ctx context.Context) error {
	trades, err := c.deps.Store.List(ctx, 0)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("list").Inc()
		c.log.Error("load trades failed", zap.Error(err))
		return fmt.Errorf("load trades: %w", err)
	}
	c.setTrades(trades)
	c.publish("load")
	return nil
}

// RefreshPrices fetches SOL, the wallet balance and every held token's
// price, merges them in and re-renders. If ctx ends first, the prices that
// did arrive are still merged and ctx's error is returned.
func (c *Controller) RefreshPrices(ctx context.Context) error {
	c.mu.RLock()
	addrs := make([]string, 0, len(c.positions))
	for _, sym := range ledger.Symbols(c.positions) {
		addrs = append(addrs, c.positions[sym].TokenAddress)
	}
	c.mu.RUnlock()

	var (
		tokenPrices map[string]decimal.Decimal
		solPrice    decimal.Decimal
		solOK       bool
		balance     decimal.Decimal
		balanceOK   bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tokenPrices = c.deps.Prices.BatchPrices(gctx, addrs)
		return nil
	})
	if c.deps.SOL != nil {
		g.Go(func() error {
			p, err := c.deps.SOL.SOLPrice(gctx)
			if err != nil {
				c.log.Warn("sol price fetch failed", zap.Error(err))
				return nil
			}
			solPrice, solOK = p, true
			return nil
		})
	}
	if c.deps.Balance != nil {
		g.Go(func() error {
			b, err := c.deps.Balance.SOLBalance(gctx)
			if err != nil {
				c.log.Warn("sol balance fetch failed", zap.Error(err))
				return nil
			}
			balance, balanceOK = b, true
			return nil
		})
	}
	_ = g.Wait()

	// keep whatever arrived before a deadline
	now := c.now()
	cut := ctx.Err() != nil
	c.mu.Lock()
	for addr, p := range tokenPrices {
		if cut && !p.IsPositive() {
			continue
		}
		c.prices[addr] = p
	}
	if solOK {
		c.solPrice = solPrice
	}
	if balanceOK {
		c.solBalance, c.hasBalance = balance, true
	}
	c.lastUpdate = now
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		c.publish("refresh")
		return err
	}

	c.recordHistory(ctx, tokenPrices, now)
	c.publish("refresh")
	return nil
}

func (c *Controller) recordHistory(ctx context.Context, prices map[string]decimal.Decimal, at time.Time) {
	if c.deps.History == nil || len(prices) == 0 {
		return
	}
	source := c.deps.Prices.Provider().Name()
	points := make([]models.PricePoint, 0, len(prices))
	for addr, p := range prices {
		if !p.IsPositive() {
			continue
		}
		points = append(points, models.PricePoint{TokenAddress: addr, Price: p, Source: source, Timestamp: at})
	}
	if err := c.deps.History.Record(ctx, points); err != nil {
		metrics.StoreErrors.WithLabelValues("record_price").Inc()
		c.log.Warn("record price history failed", zap.Error(err))
	}
}

// Run loads, starts the price refresh and elapsed-time tickers and the live
// subscription when enabled, then blocks until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	_ = c.Load(ctx)

	c.refresh.Start()
	defer c.refresh.Stop()

	clock := scheduler.New(func(context.Context) error {
		c.publish("tick")
		return nil
	}, scheduler.Config{Name: "elapsed", Interval: time.Second})
	clock.Start()
	defer clock.Stop()

	if c.opts.Realtime {
		go c.listen(ctx)
	}

	<-ctx.Done()
	return nil
}

// RefreshNow runs the price refresh job outside its schedule.
func (c *Controller) RefreshNow(ctx context.Context) error {
	return c.refresh.TriggerNow(ctx)
}

// Refreshing reports whether the periodic price refresh is running.
func (c *Controller) Refreshing() bool {
	return c.refresh.Running()
}

// listen keeps the store subscription alive, reconnecting after failures.
func (c *Controller) listen(ctx context.Context) {
	backoff := time.Second
	for {
		err := c.deps.Store.Subscribe(ctx, func() { c.onTradesChanged(ctx) })
		if ctx.Err() != nil {
			return
		}
		metrics.StoreErrors.WithLabelValues("subscribe").Inc()
		c.log.Warn("trade subscription dropped", zap.Error(err), zap.Duration("retry_in", backoff))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// onTradesChanged swaps in the newest trades wholesale.
func (c *Controller) onTradesChanged(ctx context.Context) {
	metrics.SubscriptionEvents.Inc()
	trades, err := c.deps.Store.List(ctx, c.opts.RealtimeLimit)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("list").Inc()
		c.log.Error("reload after change notification failed", zap.Error(err))
		return
	}
	c.setTrades(trades)
	c.publish("subscription")
}

func (c *Controller) setTrades(trades []models.Trade) {
	positions := ledger.Positions(trades)
	now := c.now()

	c.mu.Lock()
	c.trades = trades
	c.positions = positions
	c.lastUpdate = now
	c.mu.Unlock()
}

// SubmitTrade validates and stores a trade, then reloads. The stored trade
// is returned even if the reload fails.
func (c *Controller) SubmitTrade(ctx context.Context, in models.TradeInput) (*models.Trade, error) {
	t, err := ParseTrade(in, c.now())
	if err != nil {
		return nil, err
	}

	stored, err := c.deps.Store.Insert(ctx, t)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("insert").Inc()
		c.log.Error("insert trade failed", zap.Error(err))
		return nil, fmt.Errorf("save trade: %w", err)
	}
	c.log.Info("trade recorded",
		zap.Int64("id", stored.ID),
		zap.String("side", string(stored.Side)),
		zap.String("symbol", stored.Symbol),
		zap.String("amount", stored.Amount.String()),
	)

	if c.deps.Notifier != nil {
		c.deps.Notifier.TradeRecorded(ctx, stored)
	}
	if err := c.Load(ctx); err != nil && !errors.Is(err, context.Canceled) {
		c.log.Warn("reload after submit failed", zap.Error(err))
	}
	return stored, nil
}

func (c *Controller) snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	trades := make([]models.Trade, len(c.trades))
	copy(trades, c.trades)
	positions := make(map[string]models.Position, len(c.positions))
	for k, v := range c.positions {
		positions[k] = v
	}
	prices := make(map[string]decimal.Decimal, len(c.prices))
	for k, v := range c.prices {
		prices[k] = v
	}

	return State{
		Trades:       trades,
		Positions:    positions,
		Prices:       prices,
		SOLPrice:     c.solPrice,
		SOLBalance:   c.solBalance,
		HasBalance:   c.hasBalance,
		SessionStart: c.start,
		LastUpdate:   c.lastUpdate,
	}
}

func (c *Controller) View() View {
	return Render(c.snapshot(), RenderOptions{
		RecentLimit:   c.opts.RecentLimit,
		ExplorerTxURL: c.opts.ExplorerTxURL,
		Location:      c.opts.Location,
	}, c.now())
}

// Elapsed is the session clock as HH:MM:SS.
func (c *Controller) Elapsed() string {
	return Elapsed(c.start, c.now())
}

// Trades returns the current trade list, newest first.
func (c *Controller) Trades() []models.Trade {
	return c.snapshot().Trades
}

func (c *Controller) Positions() []models.Position {
	s := c.snapshot()
	out := make([]models.Position, 0, len(s.Positions))
	for _, sym := range ledger.Symbols(s.Positions) {
		out = append(out, s.Positions[sym])
	}
	return out
}

func (c *Controller) CompletedTrades() []models.CompletedTrade {
	return ledger.CompletedTrades(c.snapshot().Trades)
}

// OnRender registers fn to receive every published View. The returned func
// removes it.
func (c *Controller) OnRender(fn func(View)) func() {
	c.lmu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.lmu.Unlock()

	return func() {
		c.lmu.Lock()
		delete(c.listeners, id)
		c.lmu.Unlock()
	}
}

func (c *Controller) publish(trigger string) {
	v := c.View()
	metrics.Renders.WithLabelValues(trigger).Inc()
	metrics.PortfolioValue.Set(v.PortfolioValueUSD.InexactFloat64())

	c.lmu.Lock()
	fns := make([]func(View), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.lmu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
