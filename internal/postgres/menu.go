package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"canteen/internal/domain"
	"canteen/internal/repository"
)

const menuColumns = `id::text, name, category, price::text, prep_minutes, available, created_at, updated_at`

type MenuRepo struct {
	pool *pgxpool.Pool
}

func NewMenuRepo(pool *pgxpool.Pool) *MenuRepo { return &MenuRepo{pool: pool} }

var _ repository.MenuRepository = (*MenuRepo)(nil)

func (r *MenuRepo) Create(ctx context.Context, it *domain.MenuItem) error {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	it.CreatedAt = now()
	it.UpdatedAt = it.CreatedAt
	_, err := r.pool.Exec(ctx, `
		INSERT INTO menu_items (id, name, category, price, prep_minutes, available, created_at, updated_at)
		VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $8)`,
		it.ID, it.Name, it.Category, it.Price.String(), it.PrepMinutes, it.Available, it.CreatedAt, it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("cannot create menu item: %w", err)
	}
	return nil
}

func (r *MenuRepo) GetByID(ctx context.Context, id string) (*domain.MenuItem, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	it, err := scanMenuItem(r.pool.QueryRow(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cannot get menu item: %w", err)
	}
	return &it, nil
}

func (r *MenuRepo) Update(ctx context.Context, it *domain.MenuItem) error {
	it.UpdatedAt = now()
	tag, err := r.pool.Exec(ctx, `
		UPDATE menu_items SET name = $2, category = $3, price = $4::text::numeric, prep_minutes = $5,
			available = $6, updated_at = $7
		WHERE id = $1`,
		it.ID, it.Name, it.Category, it.Price.String(), it.PrepMinutes, it.Available, it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("cannot update menu item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *MenuRepo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("cannot delete menu item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *MenuRepo) List(ctx context.Context, f repository.MenuFilter) ([]domain.MenuItem, error) {
	var conds []string
	var args []any
	if f.NameSubstring != "" {
		args = append(args, "%"+f.NameSubstring+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("lower(category) = lower($%d)", len(args)))
	}
	if f.MinPrice != nil {
		args = append(args, f.MinPrice.String())
		conds = append(conds, fmt.Sprintf("price >= $%d::text::numeric", len(args)))
	}
	if f.MaxPrice != nil {
		args = append(args, f.MaxPrice.String())
		conds = append(conds, fmt.Sprintf("price <= $%d::text::numeric", len(args)))
	}
	if f.OnlyAvailable {
		conds = append(conds, "available")
	}
	q := `SELECT ` + menuColumns + ` FROM menu_items`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	rows, err := r.pool.Query(ctx, q+` ORDER BY category, name`, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot list menu: %w", err)
	}
	defer rows.Close()

	out := make([]domain.MenuItem, 0)
	for rows.Next() {
		it, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("cannot scan menu item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanMenuItem(row pgx.Row) (domain.MenuItem, error) {
	var it domain.MenuItem
	var price string
	if err := row.Scan(&it.ID, &it.Name, &it.Category, &price, &it.PrepMinutes, &it.Available, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return domain.MenuItem{}, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return domain.MenuItem{}, fmt.Errorf("menu item %s: bad price %q: %w", it.ID, price, err)
	}
	it.Price = p
	return it, nil
}
