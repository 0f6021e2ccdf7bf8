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

const orderColumns = `id::text, customer_id, recipient_ref, line_items, total_amount::text,
	payment_state, payment_id, order_state, queue_number, queue_batch, estimated_minutes,
	degraded_number, created_at, updated_at, queued_at, preparing_at, ready_at, completed_at, cancelled_at`

type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo { return &OrderRepo{pool: pool} }

var _ repository.OrderRepository = (*OrderRepo)(nil)

func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now()
	}
	o.UpdatedAt = o.CreatedAt
	// numeric передаётся текстом
	_, err := db(ctx, r.pool).Exec(ctx, `
		INSERT INTO orders (id, customer_id, recipient_ref, line_items, total_amount,
			payment_state, payment_id, order_state, queue_number, queue_batch, estimated_minutes,
			degraded_number, created_at, updated_at, queued_at, preparing_at, ready_at, completed_at, cancelled_at)
		VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		o.ID, o.CustomerID, o.RecipientRef, o.LineItems, o.TotalAmount.String(),
		string(o.PaymentState), o.PaymentID, string(o.State), o.QueueNumber, o.QueueBatch, o.EstimatedMinutes,
		o.DegradedNumber, o.CreatedAt, o.UpdatedAt, o.QueuedAt, o.PreparingAt, o.ReadyAt, o.CompletedAt, o.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("cannot create order: %w", mapError(err))
	}
	return notifyOrders(ctx, r.pool)
}

func (r *OrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	row := db(ctx, r.pool).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cannot get order: %w", mapError(err))
	}
	return &o, nil
}

// Update line_items и total_amount не меняются после создания
func (r *OrderRepo) Update(ctx context.Context, o *domain.Order) error {
	return r.update(ctx, o, "")
}

// UpdateIfState условный UPDATE: строка меняется, только если статус всё ещё expected
func (r *OrderRepo) UpdateIfState(ctx context.Context, o *domain.Order, expected domain.OrderState) error {
	err := r.update(ctx, o, " AND order_state = ANY($16)", repository.StoredStateValues([]domain.OrderState{expected}))
	if errors.Is(err, repository.ErrNotFound) {
		cur, gerr := r.GetByID(ctx, o.ID)
		if gerr != nil {
			return gerr
		}
		return repository.StateMismatch(o.ID, expected, cur.State)
	}
	return err
}

func (r *OrderRepo) update(ctx context.Context, o *domain.Order, cond string, condArgs ...any) error {
	o.UpdatedAt = now()
	args := []any{
		o.ID, string(o.PaymentState), o.PaymentID, string(o.State), o.QueueNumber,
		o.QueueBatch, o.EstimatedMinutes, o.DegradedNumber, o.UpdatedAt,
		o.QueuedAt, o.PreparingAt, o.ReadyAt, o.CompletedAt, o.CancelledAt,
		o.RecipientRef,
	}
	tag, err := db(ctx, r.pool).Exec(ctx, `
		UPDATE orders SET payment_state = $2, payment_id = $3, order_state = $4, queue_number = $5,
			queue_batch = $6, estimated_minutes = $7, degraded_number = $8, updated_at = $9,
			queued_at = $10, preparing_at = $11, ready_at = $12, completed_at = $13, cancelled_at = $14,
			recipient_ref = $15
		WHERE id = $1`+cond, append(args, condArgs...)...)
	if err != nil {
		return fmt.Errorf("cannot update order: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return notifyOrders(ctx, r.pool)
}

func (r *OrderRepo) List(ctx context.Context, f repository.OrderFilter) ([]domain.Order, error) {
	where, args := buildOrderFilter(f)
	rows, err := db(ctx, r.pool).Query(ctx, `SELECT `+orderColumns+` FROM orders`+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot list orders: %w", mapError(err))
	}
	defer rows.Close()

	out := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("cannot scan order: %w", err)
		}
		if f.Match(o) {
			out = append(out, o)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cannot list orders: %w", mapError(err))
	}
	return out, nil
}

func buildOrderFilter(f repository.OrderFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.CustomerID != "" {
		add("customer_id = $%d", f.CustomerID)
	}
	// старые выгрузки могли оставить другие написания; scanOrder их нормализует
	if len(f.States) > 0 {
		add("order_state = ANY($%d)", repository.StoredStateValues(f.States))
	}
	if len(f.PaymentStates) > 0 {
		values, withEmpty := repository.StoredPaymentValues(f.PaymentStates)
		if withEmpty {
			values = append(values, "")
		}
		add("payment_state = ANY($%d)", values)
	}
	if f.QueueBatch != "" {
		add("queue_batch = $%d", f.QueueBatch)
	}
	if f.CreatedFrom != nil {
		add("created_at >= $%d", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		add("created_at < $%d", *f.CreatedTo)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o            domain.Order
		total        string
		paymentState string
		orderState   string
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.RecipientRef, &o.LineItems, &total,
		&paymentState, &o.PaymentID, &orderState, &o.QueueNumber, &o.QueueBatch, &o.EstimatedMinutes,
		&o.DegradedNumber, &o.CreatedAt, &o.UpdatedAt, &o.QueuedAt, &o.PreparingAt, &o.ReadyAt, &o.CompletedAt, &o.CancelledAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return domain.Order{}, fmt.Errorf("order %s: bad total %q: %w", o.ID, total, err)
	}
	// колонки могли заполнить старые выгрузки
	if o.State, o.PaymentState, err = repository.NormalizeLegacy(repository.LegacyStatus{
		Status:        orderState,
		PaymentStatus: paymentState,
	}); err != nil {
		return domain.Order{}, fmt.Errorf("order %s: %w", o.ID, err)
	}
	return o, nil
}
