package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PricePoint struct {
	ID           int64           `json:"id"`
	TokenAddress string          `json:"tokenAddress"`
	Price        decimal.Decimal `json:"price"`
	Source       string          `json:"source"`
	Timestamp    time.Time       `json:"timestamp"`
}
