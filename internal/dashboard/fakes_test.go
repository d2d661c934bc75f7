package dashboard

import (
	"context"
	"errors"
	"sync"

	"github.com/kjannette/ape-dashboard/internal/models"
	"github.com/kjannette/ape-dashboard/internal/pricing"
	"github.com/shopspring/decimal"
)

type fakeStore struct {
	mu        sync.Mutex
	trades    []models.Trade // newest first
	listErr   error
	insertErr error
	lastLimit int
	nextID    int64
}

func (s *fakeStore) Insert(_ context.Context, t *models.Trade) (*models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	s.nextID++
	stored := *t
	stored.ID = s.nextID
	s.trades = append([]models.Trade{stored}, s.trades...)
	return &stored, nil
}

func (s *fakeStore) List(_ context.Context, limit int) ([]models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLimit = limit
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := s.trades
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return append([]models.Trade(nil), out...), nil
}

func (s *fakeStore) Subscribe(ctx context.Context, _ func()) error {
	<-ctx.Done()
	return ctx.Err()
}

type fakePrices struct {
	prices map[string]decimal.Decimal
	asked  []string
}

func (p *fakePrices) BatchPrices(_ context.Context, addrs []string) map[string]decimal.Decimal {
	p.asked = addrs
	out := make(map[string]decimal.Decimal, len(addrs))
	for _, a := range addrs {
		out[a] = p.prices[a]
	}
	return out
}

func (p *fakePrices) Provider() pricing.Provider { return pricing.Manual{} }

type fakeSOL struct {
	price decimal.Decimal
	err   error
}

func (f fakeSOL) SOLPrice(context.Context) (decimal.Decimal, error) { return f.price, f.err }
func (f fakeSOL) SOLBalance(context.Context) (decimal.Decimal, error) {
	return f.price, f.err
}

type fakeHistory struct {
	points []models.PricePoint
}

func (h *fakeHistory) Record(_ context.Context, points []models.PricePoint) error {
	h.points = append(h.points, points...)
	return nil
}

type fakeNotifier struct {
	got []*models.Trade
}

func (n *fakeNotifier) TradeRecorded(_ context.Context, t *models.Trade) {
	n.got = append(n.got, t)
}

var errStoreDown = errors.New("store unavailable")
