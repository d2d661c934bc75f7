package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Trade is a recorded manual fill. Value is stored as submitted and is not
// re-derived from Amount and PricePerToken.
type Trade struct {
	ID            int64           `json:"id"`
	Side          Side            `json:"type"`
	Symbol        string          `json:"symbol"`
	TokenAddress  string          `json:"tokenAddress"`
	Amount        decimal.Decimal `json:"amount"`
	PricePerToken decimal.Decimal `json:"pricePerToken"`
	TxHash        string          `json:"txHash"`
	Value         decimal.Decimal `json:"value"`
	Timestamp     time.Time       `json:"timestamp"`
}

// MarshalJSON writes Timestamp as milliseconds since the epoch.
func (t Trade) MarshalJSON() ([]byte, error) {
	type alias Trade
	return json.Marshal(struct {
		alias
		Timestamp int64 `json:"timestamp"`
	}{alias(t), t.Timestamp.UnixMilli()})
}

// TradeInput is what the admin form submits. Amount and PricePerToken
// accept JSON numbers or numeric strings.
type TradeInput struct {
	Side          string      `json:"type"`
	Symbol        string      `json:"symbol"`
	TokenAddress  string      `json:"tokenAddress"`
	Amount        json.Number `json:"amount"`
	PricePerToken json.Number `json:"pricePerToken"`
	TxHash        string      `json:"txHash"`
}

type Position struct {
	Symbol       string          `json:"symbol"`
	TokenAddress string          `json:"tokenAddress"`
	Amount       decimal.Decimal `json:"amount"`
	TotalCost    decimal.Decimal `json:"totalCost"`
	AvgBuyPrice  decimal.Decimal `json:"avgBuyPrice"`
}

// CompletedTrade is a SELL with the profit realized against the average
// holding cost at the time of the sale.
type CompletedTrade struct {
	Trade
	Profit decimal.Decimal `json:"profit"`
}

func (c CompletedTrade) MarshalJSON() ([]byte, error) {
	type alias Trade
	return json.Marshal(struct {
		alias
		Timestamp int64           `json:"timestamp"`
		Profit    decimal.Decimal `json:"profit"`
	}{alias(c.Trade), c.Timestamp.UnixMilli(), c.Profit})
}
