package pricing

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

const coingeckoURL = "https://api.coingecko.com/api/v3"

// CoinGecko quotes Solana tokens by contract address. The key is optional;
// without it requests go out on the public tier.
type CoinGecko struct {
	src    *source
	apiKey string
}

func NewCoinGecko(apiKey string) *CoinGecko {
	return &CoinGecko{src: newSource("coingecko", coingeckoURL, 0.5, 2), apiKey: apiKey}
}

func (c *CoinGecko) Name() string { return "coingecko" }

func (c *CoinGecko) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"x-cg-pro-api-key": c.apiKey}
}

func (c *CoinGecko) Price(ctx context.Context, address string) (decimal.Decimal, error) {
	q := url.Values{
		"contract_addresses": {address},
		"vs_currencies":      {"usd"},
	}

	var resp map[string]struct {
		USD decimal.Decimal `json:"usd"`
	}
	if err := c.src.getJSON(ctx, c.src.baseURL+"/simple/token_price/solana?"+q.Encode(), c.headers(), &resp); err != nil {
		return decimal.Zero, err
	}

	// keys come back lower-cased, mints are case sensitive
	entry, ok := resp[address]
	if !ok {
		entry, ok = resp[strings.ToLower(address)]
	}
	if !ok || !entry.USD.IsPositive() {
		return decimal.Zero, ErrNotQuoted
	}
	return entry.USD, nil
}

// SOLPrice returns the USD price of SOL itself.
func (c *CoinGecko) SOLPrice(ctx context.Context) (decimal.Decimal, error) {
	var resp struct {
		Solana struct {
			USD decimal.Decimal `json:"usd"`
		} `json:"solana"`
	}
	if err := c.src.getJSON(ctx, c.src.baseURL+"/simple/price?ids=solana&vs_currencies=usd", c.headers(), &resp); err != nil {
		return decimal.Zero, err
	}
	if !resp.Solana.USD.IsPositive() {
		return decimal.Zero, fmt.Errorf("invalid price: %s", resp.Solana.USD)
	}
	return resp.Solana.USD, nil
}
