package pricing

import (
	"context"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

const jupiterURL = "https://price.jup.ag/v4/price"

// Jupiter quotes many tokens per request and needs no key.
type Jupiter struct {
	src *source
}

func NewJupiter() *Jupiter {
	return &Jupiter{src: newSource("jupiter", jupiterURL, 10, 5)}
}

func (j *Jupiter) Name() string { return "jupiter" }

func (j *Jupiter) Price(ctx context.Context, address string) (decimal.Decimal, error) {
	prices, err := j.Prices(ctx, []string{address})
	if err != nil {
		return decimal.Zero, err
	}
	p, ok := prices[address]
	if !ok {
		return decimal.Zero, ErrNotQuoted
	}
	return p, nil
}

func (j *Jupiter) Prices(ctx context.Context, addresses []string) (map[string]decimal.Decimal, error) {
	q := url.Values{"ids": {strings.Join(addresses, ",")}}

	var resp struct {
		Data map[string]struct {
			Price decimal.Decimal `json:"price"`
		} `json:"data"`
	}
	if err := j.src.getJSON(ctx, j.src.baseURL+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	out := make(map[string]decimal.Decimal, len(resp.Data))
	for addr, d := range resp.Data {
		if d.Price.IsPositive() {
			out[addr] = d.Price
		}
	}
	return out, nil
}
