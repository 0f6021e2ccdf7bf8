package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"canteen/internal/repository"
)

type RecipientRepo struct {
	pool *pgxpool.Pool
}

func NewRecipientRepo(pool *pgxpool.Pool) *RecipientRepo { return &RecipientRepo{pool: pool} }

var _ repository.RecipientRepository = (*RecipientRepo)(nil)

func (r *RecipientRepo) Get(ctx context.Context, customerID string) (string, error) {
	var tok string
	err := r.pool.QueryRow(ctx, `SELECT device_token FROM customers WHERE id = $1`, customerID).Scan(&tok)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && tok == "") {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("cannot get recipient: %w", err)
	}
	return tok, nil
}

func (r *RecipientRepo) Set(ctx context.Context, customerID, token string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO customers (id, device_token, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET device_token = EXCLUDED.device_token, updated_at = EXCLUDED.updated_at`,
		customerID, token, now())
	if err != nil {
		return fmt.Errorf("cannot save recipient: %w", err)
	}
	return nil
}

func (r *RecipientRepo) Clear(ctx context.Context, customerID, token string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE customers SET device_token = '', updated_at = $3 WHERE id = $1 AND device_token = $2`,
		customerID, token, now())
	if err != nil {
		return fmt.Errorf("cannot clear recipient: %w", err)
	}
	return nil
}
