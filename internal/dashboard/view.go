package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/kjannette/ape-dashboard/internal/ledger"
	"github.com/kjannette/ape-dashboard/internal/models"
	"github.com/shopspring/decimal"
)

// State is everything a render reads. Callers hand Render a copy so a
// concurrent refresh can never be observed half applied.
type State struct {
	Trades       []models.Trade // newest first
	Positions    map[string]models.Position
	Prices       map[string]decimal.Decimal
	SOLPrice     decimal.Decimal
	SOLBalance   decimal.Decimal
	HasBalance   bool
	SessionStart time.Time
	LastUpdate   time.Time
}

type RenderOptions struct {
	RecentLimit   int
	ExplorerTxURL string
	Location      *time.Location
}

type View struct {
	PortfolioValue    string           `json:"portfolioValue"`
	PortfolioValueUSD decimal.Decimal  `json:"portfolioValueUsd"`
	WinRate           string           `json:"winRate"`
	CompletedTrades   int              `json:"completedTrades"`
	Volume24h         string           `json:"volume24h"`
	Trades24h         int              `json:"trades24h"`
	SOLBalance        string           `json:"solBalance,omitempty"`
	TotalTrades       int              `json:"totalTrades"`
	ActivePositions   int              `json:"activePositions"`
	Positions         []PositionRow    `json:"positions"`
	Transactions      []TransactionRow `json:"transactions"`
	Ticker            []TickerItem     `json:"ticker"`
	TickerText        string           `json:"tickerText"`
	Elapsed           string           `json:"elapsed"`
	LastUpdate        string           `json:"lastUpdate"`
	RenderedAt        int64            `json:"renderedAt"`
}

type PositionRow struct {
	Symbol       string `json:"symbol"`
	TokenAddress string `json:"tokenAddress"`
	Amount       string `json:"amount"`
	LiveValue    string `json:"liveValue"`
	PnL          string `json:"pnl"`
	PnLPercent   string `json:"pnlPercent"`
	Positive     bool   `json:"positive"`
}

type TransactionRow struct {
	ID     int64  `json:"id"`
	Time   string `json:"time"`
	Side   string `json:"type"`
	Amount string `json:"amount"`
	Symbol string `json:"symbol"`
	Value  string `json:"value"`
	TxURL  string `json:"txUrl,omitempty"`
}

type TickerItem struct {
	Pair     string `json:"pair"`
	Price    string `json:"price"`
	Change   string `json:"change"`
	Positive bool   `json:"positive"`
}

// Render is a pure function of its inputs.
func Render(s State, opts RenderOptions, now time.Time) View {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	stats := ledger.Summarize(s.Trades, s.Positions, s.Prices, now)

	v := View{
		PortfolioValue:    money(stats.PortfolioValue),
		PortfolioValueUSD: stats.PortfolioValue,
		WinRate:           stats.WinRate.StringFixed(0) + "%",
		CompletedTrades:   stats.CompletedTrades,
		Volume24h:         money(stats.Volume24h),
		Trades24h:         stats.Trades24h,
		TotalTrades:       stats.TotalTrades,
		ActivePositions:   stats.ActivePositions,
		Positions:         []PositionRow{},
		Transactions:      []TransactionRow{},
		Elapsed:           Elapsed(s.SessionStart, now),
		RenderedAt:        now.UnixMilli(),
	}
	if s.HasBalance {
		v.SOLBalance = s.SOLBalance.StringFixed(2) + " SOL"
	}
	if !s.LastUpdate.IsZero() {
		v.LastUpdate = s.LastUpdate.In(loc).Format("03:04:05 PM")
	}

	symbols := ledger.Symbols(s.Positions)
	for _, sym := range symbols {
		p := s.Positions[sym]
		u := ledger.Value(p, s.Prices[p.TokenAddress])
		v.Positions = append(v.Positions, PositionRow{
			Symbol:       p.Symbol,
			TokenAddress: p.TokenAddress,
			Amount:       FormatNumber(p.Amount),
			LiveValue:    money(u.LiveValue),
			PnL:          signedMoney(u.PnL),
			PnLPercent:   u.PnLPercent.StringFixed(2) + "%",
			Positive:     !u.PnL.IsNegative(),
		})
	}

	limit := opts.RecentLimit
	if limit <= 0 || limit > len(s.Trades) {
		limit = len(s.Trades)
	}
	for _, t := range s.Trades[:limit] {
		row := TransactionRow{
			ID:     t.ID,
			Time:   t.Timestamp.In(loc).Format("Jan 2, 03:04 PM"),
			Side:   string(t.Side),
			Amount: FormatNumber(t.Amount),
			Symbol: t.Symbol,
			Value:  money(t.Value),
		}
		if t.TxHash != "" {
			row.TxURL = opts.ExplorerTxURL + t.TxHash
		}
		v.Transactions = append(v.Transactions, row)
	}

	v.Ticker = ticker(s, symbols)
	v.TickerText = tickerText(v.Ticker)
	return v
}

func ticker(s State, symbols []string) []TickerItem {
	sol := TickerItem{
		Pair:     "SOL/USD",
		Price:    money(s.SOLPrice),
		Positive: s.SOLPrice.IsPositive(),
	}
	if sol.Positive {
		sol.Change = "▲"
	} else {
		sol.Change = "▼"
	}
	items := []TickerItem{sol}

	for _, sym := range symbols {
		p := s.Positions[sym]
		price := ledger.MarkPrice(p, s.Prices[p.TokenAddress])
		change := ledger.ChangePercent(p, price)
		items = append(items, TickerItem{
			Pair:     p.Symbol + "/USD",
			Price:    "$" + price.StringFixed(6),
			Change:   signed(change.StringFixed(2), change) + "%",
			Positive: !change.IsNegative(),
		})
	}
	return items
}

// tickerText is the items run together twice so a marquee can loop.
func tickerText(items []TickerItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("%s %s %s", it.Pair, it.Price, it.Change)
	}
	once := strings.Join(parts, "   ")
	return once + "   " + once
}

// Elapsed formats the time since start as HH:MM:SS. Hours do not wrap.
func Elapsed(start, now time.Time) string {
	d := now.Sub(start)
	if d < 0 || start.IsZero() {
		d = 0
	}
	h := int64(d / time.Hour)
	m := int64(d%time.Hour) / int64(time.Minute)
	sec := int64(d%time.Minute) / int64(time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
)

// FormatNumber abbreviates large amounts: 1500000 -> "1.50M", 2500 -> "2.50K".
func FormatNumber(d decimal.Decimal) string {
	abs := d.Abs()
	switch {
	case abs.GreaterThanOrEqual(million):
		return d.Div(million).StringFixed(2) + "M"
	case abs.GreaterThanOrEqual(thousand):
		return d.Div(thousand).StringFixed(2) + "K"
	default:
		return d.StringFixed(2)
	}
}

func money(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

func signedMoney(d decimal.Decimal) string {
	if d.IsNegative() {
		return money(d)
	}
	return "+" + money(d)
}

func signed(s string, d decimal.Decimal) string {
	if d.IsNegative() {
		return s
	}
	return "+" + s
}
