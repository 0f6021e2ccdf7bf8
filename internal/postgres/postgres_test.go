package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"canteen/internal/domain"
	"canteen/internal/repository"
)

func TestMapError(t *testing.T) {
	serial := &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	assert.ErrorIs(t, mapError(fmt.Errorf("commit: %w", serial)), repository.ErrConflict)

	deadlock := &pgconn.PgError{Code: "40P01"}
	assert.ErrorIs(t, mapError(deadlock), repository.ErrConflict)

	unique := &pgconn.PgError{Code: "23505"}
	assert.False(t, errors.Is(mapError(unique), repository.ErrConflict))

	assert.NoError(t, mapError(nil))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "40001"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
	assert.False(t, isUniqueViolation(nil))
}

func TestBuildOrderFilter(t *testing.T) {
	where, args := buildOrderFilter(repository.OrderFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	where, args = buildOrderFilter(repository.OrderFilter{
		CustomerID:  "c1",
		States:      []domain.OrderState{domain.OrderStateQueued, domain.OrderStateReady},
		CreatedFrom: &from,
	})
	assert.Equal(t, " WHERE customer_id = $1 AND order_state = ANY($2) AND created_at >= $3", where)
	assert.Equal(t, []any{"c1", repository.StoredStateValues([]domain.OrderState{domain.OrderStateQueued, domain.OrderStateReady}), from}, args)
	assert.Contains(t, args[1], "placed")

	_, args = buildOrderFilter(repository.OrderFilter{PaymentStates: []domain.PaymentState{domain.PaymentPending}})
	assert.Contains(t, args[0], "")
	assert.Contains(t, args[0], "PENDING")
}

func TestWithTransaction_JoinsOuter(t *testing.T) {
	tm := NewTxManager(nil, repository.DefaultRetryPolicy)
	ctx := context.WithValue(context.Background(), txKey{}, &txState{})
	called := false
	err := tm.WithTransaction(ctx, func(ctx context.Context) error {
		called = true
		assert.NotNil(t, txFrom(ctx))
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
}
