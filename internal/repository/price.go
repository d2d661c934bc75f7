package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/ape-dashboard/internal/models"
)

type PriceRepo struct {
	pool *pgxpool.Pool
}

func NewPriceRepo(pool *pgxpool.Pool) *PriceRepo {
	return &PriceRepo{pool: pool}
}

// Record stores one snapshot per point in a single batch.
func (r *PriceRepo) Record(ctx context.Context, points []models.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, p := range points {
		b.Queue(
			`INSERT INTO price_history (token_address, price, source, timestamp) VALUES ($1, $2, $3, $4)`,
			p.TokenAddress, p.Price, p.Source, p.Timestamp,
		)
	}

	br := r.pool.SendBatch(ctx, b)
	defer br.Close()
	for range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("record price: %w", err)
		}
	}
	return nil
}

// History returns the newest snapshots for a token, newest first.
func (r *PriceRepo) History(ctx context.Context, address string, limit int) ([]models.PricePoint, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, token_address, price, source, timestamp
		 FROM price_history WHERE token_address = $1
		 ORDER BY timestamp DESC, id DESC LIMIT $2`,
		address, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPrices(rows)
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanPrice(row scannable) (*models.PricePoint, error) {
	var p models.PricePoint
	if err := row.Scan(&p.ID, &p.TokenAddress, &p.Price, &p.Source, &p.Timestamp); err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPrices(rows rowsIter) ([]models.PricePoint, error) {
	out := []models.PricePoint{}
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
