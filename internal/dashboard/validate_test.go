package dashboard

import (
	"testing"

	"github.com/kjannette/ape-dashboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrade(t *testing.T) {
	valid := models.TradeInput{
		Side: "SELL", Symbol: "bonk", TokenAddress: bonkMint,
		Amount: "2.5", PricePerToken: "4", TxHash: "",
	}

	tr, err := ParseTrade(valid, t0)
	require.NoError(t, err)
	assert.True(t, tr.Value.Equal(dec("10")))
	assert.Equal(t, "BONK", tr.Symbol)
	assert.Empty(t, tr.TxHash)

	cases := map[string]func(in *models.TradeInput){
		"unknown side":     func(in *models.TradeInput) { in.Side = "SHORT" },
		"empty symbol":     func(in *models.TradeInput) { in.Symbol = "  " },
		"bad mint":         func(in *models.TradeInput) { in.TokenAddress = "0x1234" },
		"non-numeric":      func(in *models.TradeInput) { in.Amount = "ten" },
		"zero amount":      func(in *models.TradeInput) { in.Amount = "0" },
		"negative amount":  func(in *models.TradeInput) { in.Amount = "-1" },
		"bad price":        func(in *models.TradeInput) { in.PricePerToken = "NaN" },
		"negative price":   func(in *models.TradeInput) { in.PricePerToken = "-0.01" },
		"bad tx signature": func(in *models.TradeInput) { in.TxHash = "abc" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := valid
			mutate(&in)
			_, err := ParseTrade(in, t0)
			assert.ErrorIs(t, err, ErrInvalidTrade)
		})
	}
}

func TestParseTrade_ZeroPriceAllowed(t *testing.T) {
	tr, err := ParseTrade(models.TradeInput{
		Side: "buy", Symbol: "AIR", TokenAddress: bonkMint, Amount: "100", PricePerToken: "0", TxHash: txSig,
	}, t0)
	require.NoError(t, err)
	assert.True(t, tr.Value.IsZero())
	assert.Equal(t, txSig, tr.TxHash)
}
