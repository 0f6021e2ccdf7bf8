package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"canteen/internal/domain"
	"canteen/internal/repository"
)

const feedbackColumns = `id::text, order_id, customer_id, rating, message, created_at`

type FeedbackRepo struct {
	pool *pgxpool.Pool
}

func NewFeedbackRepo(pool *pgxpool.Pool) *FeedbackRepo { return &FeedbackRepo{pool: pool} }

var _ repository.FeedbackRepository = (*FeedbackRepo)(nil)

func (r *FeedbackRepo) Create(ctx context.Context, f *domain.Feedback) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO feedback (id, order_id, customer_id, rating, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		f.ID, f.OrderID, f.CustomerID, f.Rating, f.Message, f.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: feedback for order %s", repository.ErrAlreadyExists, f.OrderID)
	}
	if err != nil {
		return fmt.Errorf("cannot create feedback: %w", err)
	}
	return nil
}

func (r *FeedbackRepo) GetByOrder(ctx context.Context, orderID string) (*domain.Feedback, error) {
	f, err := scanFeedback(r.pool.QueryRow(ctx, `SELECT `+feedbackColumns+` FROM feedback WHERE order_id = $1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cannot get feedback: %w", err)
	}
	return &f, nil
}

func (r *FeedbackRepo) List(ctx context.Context) ([]domain.Feedback, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+feedbackColumns+` FROM feedback ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("cannot list feedback: %w", err)
	}
	defer rows.Close()
	out := make([]domain.Feedback, 0)
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("cannot scan feedback: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cannot list feedback: %w", err)
	}
	return out, nil
}

func scanFeedback(row pgx.Row) (domain.Feedback, error) {
	var f domain.Feedback
	err := row.Scan(&f.ID, &f.OrderID, &f.CustomerID, &f.Rating, &f.Message, &f.CreatedAt)
	f.CreatedAt = f.CreatedAt.UTC()
	return f, err
}

// FavoriteRepo строка на пару (покупатель, позиция)
type FavoriteRepo struct {
	pool *pgxpool.Pool
}

func NewFavoriteRepo(pool *pgxpool.Pool) *FavoriteRepo { return &FavoriteRepo{pool: pool} }

var _ repository.FavoriteRepository = (*FavoriteRepo)(nil)

func (r *FavoriteRepo) List(ctx context.Context, customerID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT menu_item_id FROM favorites WHERE customer_id = $1 ORDER BY created_at, menu_item_id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("cannot list favorites: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("cannot list favorites: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func (r *FavoriteRepo) Add(ctx context.Context, customerID, menuItemID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO favorites (customer_id, menu_item_id, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (customer_id, menu_item_id) DO NOTHING`,
		customerID, menuItemID, now())
	if err != nil {
		return fmt.Errorf("cannot add favorite: %w", err)
	}
	return nil
}

func (r *FavoriteRepo) Remove(ctx context.Context, customerID, menuItemID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM favorites WHERE customer_id = $1 AND menu_item_id = $2`, customerID, menuItemID)
	if err != nil {
		return fmt.Errorf("cannot remove favorite: %w", err)
	}
	return nil
}
