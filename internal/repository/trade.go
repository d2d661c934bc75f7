package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/ape-dashboard/internal/models"
)

// TradesChannel is the NOTIFY channel fired by the insert trigger on trades.
const TradesChannel = "trades_changed"

const tradeColumns = `id, side, symbol, token_address, amount, price_per_token, tx_hash, value, timestamp`

type TradeRepo struct {
	pool *pgxpool.Pool
}

func NewTradeRepo(pool *pgxpool.Pool) *TradeRepo {
	return &TradeRepo{pool: pool}
}

// Insert persists t and returns the stored row. A zero Timestamp is stamped
// with the current time.
func (r *TradeRepo) Insert(ctx context.Context, t *models.Trade) (*models.Trade, error) {
	ts := t.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO trades
		 (side, symbol, token_address, amount, price_per_token, tx_hash, value, timestamp)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING `+tradeColumns,
		string(t.Side), t.Symbol, t.TokenAddress, t.Amount, t.PricePerToken, t.TxHash, t.Value, ts,
	)
	return scanTrade(row)
}

// List returns trades newest first. limit <= 0 returns all of them.
func (r *TradeRepo) List(ctx context.Context, limit int) ([]models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades ORDER BY timestamp DESC, id DESC`
	var args []any
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

// Subscribe holds a connection listening on TradesChannel and calls onChange
// for every notification until ctx is cancelled or the connection fails.
func (r *TradeRepo) Subscribe(ctx context.Context, onChange func()) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+TradesChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	for {
		if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		onChange()
	}
}

// --- scan helpers ---

func scanTrade(row scannable) (*models.Trade, error) {
	var t models.Trade
	var side string
	err := row.Scan(
		&t.ID, &side, &t.Symbol, &t.TokenAddress, &t.Amount, &t.PricePerToken,
		&t.TxHash, &t.Value, &t.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	t.Side = models.Side(side)
	return &t, nil
}

func collectTrades(rows rowsIter) ([]models.Trade, error) {
	out := []models.Trade{}
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
