package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"canteen/internal/repository"
)

type CounterRepo struct {
	pool *pgxpool.Pool
}

func NewCounterRepo(pool *pgxpool.Pool) *CounterRepo { return &CounterRepo{pool: pool} }

var _ repository.CounterRepository = (*CounterRepo)(nil)

func (r *CounterRepo) Get(ctx context.Context, batch string) (int64, error) {
	var v int64
	err := db(ctx, r.pool).QueryRow(ctx, `SELECT value FROM queue_counters WHERE batch = $1`, batch).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cannot read counter: %w", mapError(err))
	}
	return v, nil
}

func (r *CounterRepo) Set(ctx context.Context, batch string, value int64) error {
	_, err := db(ctx, r.pool).Exec(ctx, `
		INSERT INTO queue_counters (batch, value) VALUES ($1, $2)
		ON CONFLICT (batch) DO UPDATE SET value = EXCLUDED.value`, batch, value)
	if err != nil {
		return fmt.Errorf("cannot write counter: %w", mapError(err))
	}
	return nil
}
