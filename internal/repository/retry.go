package repository

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy ограничение автоматических повторов транзакции
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, BaseDelay: 5 * time.Millisecond}

// Retry повторяет attempt, пока тот возвращает ErrConflict, не более MaxAttempts раз.
// Задержка растёт линейно.
func Retry(ctx context.Context, p RetryPolicy, attempt func(ctx context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	var err error
	for i := 1; i <= p.MaxAttempts; i++ {
		err = attempt(ctx)
		if err == nil || !errors.Is(err, ErrConflict) {
			return err
		}
		if i == p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i) * p.BaseDelay):
		}
	}
	return err
}
