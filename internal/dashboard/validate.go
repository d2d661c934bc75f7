package dashboard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kjannette/ape-dashboard/internal/models"
	"github.com/kjannette/ape-dashboard/internal/solana"
	"github.com/shopspring/decimal"
)

// ErrInvalidTrade wraps every rejection from ParseTrade.
var ErrInvalidTrade = errors.New("invalid trade")

// ParseTrade turns admin input into a Trade stamped at now. Value is
// computed as amount × price. An empty transaction hash is allowed; a
// present one must be a valid signature.
func ParseTrade(in models.TradeInput, now time.Time) (*models.Trade, error) {
	side := models.Side(strings.ToUpper(strings.TrimSpace(in.Side)))
	if !side.Valid() {
		return nil, invalid("type must be BUY or SELL, got %q", in.Side)
	}

	symbol := strings.ToUpper(strings.TrimSpace(in.Symbol))
	if symbol == "" {
		return nil, invalid("symbol is required")
	}

	addr := strings.TrimSpace(in.TokenAddress)
	if err := solana.ValidateMint(addr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTrade, err)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(in.Amount.String()))
	if err != nil {
		return nil, invalid("amount %q is not a number", in.Amount)
	}
	if !amount.IsPositive() {
		return nil, invalid("amount must be positive")
	}

	price, err := decimal.NewFromString(strings.TrimSpace(in.PricePerToken.String()))
	if err != nil {
		return nil, invalid("pricePerToken %q is not a number", in.PricePerToken)
	}
	if price.IsNegative() {
		return nil, invalid("pricePerToken must not be negative")
	}

	txHash := strings.TrimSpace(in.TxHash)
	if txHash != "" {
		if err := solana.ValidateSignature(txHash); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTrade, err)
		}
	}

	return &models.Trade{
		Side:          side,
		Symbol:        symbol,
		TokenAddress:  addr,
		Amount:        amount,
		PricePerToken: price,
		TxHash:        txHash,
		Value:         amount.Mul(price),
		Timestamp:     now,
	}, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTrade, fmt.Sprintf(format, args...))
}
