package pricing

import (
	"context"
	"net/url"

	"github.com/kjannette/ape-dashboard/internal/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const birdeyeURL = "https://public-api.birdeye.so/public/price"

// Birdeye quotes one token per request and requires an API key.
type Birdeye struct {
	src    *source
	apiKey string
}

func NewBirdeye(apiKey string) *Birdeye {
	return &Birdeye{src: newSource("birdeye", birdeyeURL, 5, 1), apiKey: apiKey}
}

func (b *Birdeye) Name() string { return "birdeye" }

func (b *Birdeye) Price(ctx context.Context, address string) (decimal.Decimal, error) {
	if b.apiKey == "" {
		logger.Named("pricing").Warn("birdeye api key not set", zap.String("address", address))
		return decimal.Zero, ErrMissingAPIKey
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Value decimal.Decimal `json:"value"`
		} `json:"data"`
	}
	u := b.src.baseURL + "?" + url.Values{"address": {address}}.Encode()
	headers := map[string]string{"X-API-KEY": b.apiKey}
	if err := b.src.getJSON(ctx, u, headers, &resp); err != nil {
		return decimal.Zero, err
	}
	if !resp.Data.Value.IsPositive() {
		return decimal.Zero, ErrNotQuoted
	}
	return resp.Data.Value, nil
}
