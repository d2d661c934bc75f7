// Package solana wraps the bits of the Solana chain the dashboard needs:
// address and signature validation, and the wallet's SOL balance.
package solana

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

var lamportsPerSOL = decimal.New(1, 9)

// ValidateMint checks that s is a base58 encoded 32-byte public key.
func ValidateMint(s string) error {
	if _, err := solana.PublicKeyFromBase58(s); err != nil {
		return fmt.Errorf("invalid token address %q: %w", s, err)
	}
	return nil
}

// ValidateSignature checks that s is a base58 encoded 64-byte transaction
// signature.
func ValidateSignature(s string) error {
	if _, err := solana.SignatureFromBase58(s); err != nil {
		return fmt.Errorf("invalid transaction signature: %w", err)
	}
	return nil
}

// BalanceClient reads a single wallet's SOL balance over RPC.
type BalanceClient struct {
	rpcClient *rpc.Client
	wallet    solana.PublicKey
}

func NewBalanceClient(endpoint, wallet string) (*BalanceClient, error) {
	pk, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return nil, fmt.Errorf("wallet address: %w", err)
	}
	return &BalanceClient{
		rpcClient: rpc.New(endpoint),
		wallet:    pk,
	}, nil
}

// SOLBalance returns the confirmed balance in SOL.
func (c *BalanceClient) SOLBalance(ctx context.Context) (decimal.Decimal, error) {
	res, err := c.rpcClient.GetBalance(ctx, c.wallet, rpc.CommitmentConfirmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	return decimal.NewFromUint64(res.Value).Div(lamportsPerSOL), nil
}

func (c *BalanceClient) Close() error {
	return c.rpcClient.Close()
}
