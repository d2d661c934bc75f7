// Package ledger derives holdings and profit/loss from the trade log.
//
// Every function here is a pure pass over its inputs. Trades are processed in
// timestamp order (oldest first, ties broken by ascending ID) regardless of
// the order the caller hands them in, since the store returns newest first.
package ledger

import (
	"sort"
	"time"

	"github.com/kjannette/ape-dashboard/internal/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Positions replays the trade log per symbol and returns the symbols still
// held. A SELL subtracts its recorded value from the running cost, so cost can
// go negative when more is sold than was bought; that is accepted as-is.
func Positions(trades []models.Trade) map[string]models.Position {
	out := make(map[string]models.Position)

	for _, t := range chronological(trades) {
		p, ok := out[t.Symbol]
		if !ok {
			p = models.Position{
				Symbol:       t.Symbol,
				TokenAddress: t.TokenAddress,
			}
		}

		switch t.Side {
		case models.SideBuy:
			p.Amount = p.Amount.Add(t.Amount)
			p.TotalCost = p.TotalCost.Add(t.Value)
		case models.SideSell:
			p.Amount = p.Amount.Sub(t.Amount)
			p.TotalCost = p.TotalCost.Sub(t.Value)
		}

		// avg is left stale once the holding is flat or short
		if p.Amount.IsPositive() {
			p.AvgBuyPrice = safeDiv(p.TotalCost, p.Amount)
		}
		out[t.Symbol] = p
	}

	for sym, p := range out {
		if !p.Amount.IsPositive() {
			delete(out, sym)
		}
	}
	return out
}

// CompletedTrades returns every SELL that closed against an open holding,
// with profit measured against the average cost at the time of the sale.
// Sells made while nothing was held are skipped; there is no short accounting.
func CompletedTrades(trades []models.Trade) []models.CompletedTrade {
	completed, _ := realize(trades)
	return completed
}

// RemainingCost is the average-cost basis left per symbol after realizing
// every completed sell. Unlike Position.TotalCost it removes sold units at
// their average cost rather than at their sale value.
func RemainingCost(trades []models.Trade) map[string]decimal.Decimal {
	_, books := realize(trades)
	out := make(map[string]decimal.Decimal, len(books))
	for sym, b := range books {
		out[sym] = b.cost
	}
	return out
}

type book struct {
	holding decimal.Decimal
	cost    decimal.Decimal
}

func realize(trades []models.Trade) ([]models.CompletedTrade, map[string]*book) {
	books := make(map[string]*book)
	var completed []models.CompletedTrade

	for _, t := range chronological(trades) {
		b, ok := books[t.Symbol]
		if !ok {
			b = &book{}
			books[t.Symbol] = b
		}

		switch {
		case t.Side == models.SideBuy:
			b.holding = b.holding.Add(t.Amount)
			b.cost = b.cost.Add(t.Value)
		case t.Side == models.SideSell && b.holding.IsPositive():
			avg := safeDiv(b.cost, b.holding)
			profit := t.PricePerToken.Sub(avg).Mul(t.Amount)
			completed = append(completed, models.CompletedTrade{Trade: t, Profit: profit})
			b.holding = b.holding.Sub(t.Amount)
			b.cost = b.cost.Sub(avg.Mul(t.Amount))
		}
	}
	return completed, books
}

// Unrealized values a position at livePrice. A zero livePrice means the price
// is unknown and the average buy price is used instead.
type Unrealized struct {
	Price      decimal.Decimal
	LiveValue  decimal.Decimal
	PnL        decimal.Decimal
	PnLPercent decimal.Decimal
}

func Value(p models.Position, livePrice decimal.Decimal) Unrealized {
	price := MarkPrice(p, livePrice)
	live := p.Amount.Mul(price)
	pnl := live.Sub(p.TotalCost)
	return Unrealized{
		Price:      price,
		LiveValue:  live,
		PnL:        pnl,
		PnLPercent: safeDiv(pnl, p.TotalCost).Mul(hundred),
	}
}

// MarkPrice picks the price a position is valued at.
func MarkPrice(p models.Position, livePrice decimal.Decimal) decimal.Decimal {
	if livePrice.IsPositive() {
		return livePrice
	}
	return p.AvgBuyPrice
}

// ChangePercent is the move of price against the position's average buy price.
func ChangePercent(p models.Position, price decimal.Decimal) decimal.Decimal {
	return safeDiv(price.Sub(p.AvgBuyPrice), p.AvgBuyPrice).Mul(hundred)
}

// Stats are the headline numbers of the dashboard.
type Stats struct {
	PortfolioValue  decimal.Decimal
	WinRate         decimal.Decimal
	CompletedTrades int
	Wins            int
	Trades24h       int
	Volume24h       decimal.Decimal
	TotalTrades     int
	ActivePositions int
}

// Summarize computes Stats. prices maps token address to live price; a missing
// or zero entry falls back to the position's average buy price.
func Summarize(trades []models.Trade, positions map[string]models.Position, prices map[string]decimal.Decimal, now time.Time) Stats {
	var s Stats

	for _, p := range positions {
		s.PortfolioValue = s.PortfolioValue.Add(Value(p, prices[p.TokenAddress]).LiveValue)
	}

	completed := CompletedTrades(trades)
	for _, c := range completed {
		if c.Profit.IsPositive() {
			s.Wins++
		}
	}
	s.CompletedTrades = len(completed)
	if s.CompletedTrades > 0 {
		s.WinRate = decimal.NewFromInt(int64(s.Wins)).
			Div(decimal.NewFromInt(int64(s.CompletedTrades))).
			Mul(hundred)
	}

	cutoff := now.Add(-24 * time.Hour)
	for _, t := range trades {
		if t.Timestamp.After(cutoff) {
			s.Trades24h++
			s.Volume24h = s.Volume24h.Add(t.Value)
		}
	}

	s.TotalTrades = len(trades)
	s.ActivePositions = len(positions)
	return s
}

// Symbols returns the held symbols in alphabetical order.
func Symbols(positions map[string]models.Position) []string {
	out := make([]string, 0, len(positions))
	for sym := range positions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func chronological(trades []models.Trade) []models.Trade {
	out := make([]models.Trade, len(trades))
	copy(out, trades)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func safeDiv(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}
