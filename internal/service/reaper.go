package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"canteen/internal/domain"
	"canteen/internal/repository"
)

// Reaper отменяет заказы, зависшие в CREATED/PENDING дольше ttl
type Reaper struct {
	orders   *OrderService
	ttl      time.Duration
	interval time.Duration
	log      *zap.Logger
}

func NewReaper(orders *OrderService, ttl, interval time.Duration, log *zap.Logger) *Reaper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reaper{orders: orders, ttl: ttl, interval: interval, log: log}
}

// Sweep один проход; возвращает число отменённых заказов
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := r.orders.now().Add(-r.ttl)
	stale, err := r.orders.ListOrders(ctx, repository.OrderFilter{
		States:        []domain.OrderState{domain.OrderStateCreated},
		PaymentStates: []domain.PaymentState{domain.PaymentPending},
		CreatedTo:     &cutoff,
	})
	if err != nil {
		return 0, err
	}
	cancelled := 0
	for _, o := range stale {
		_, err := r.orders.Cancel(ctx, o.ID)
		switch {
		case err == nil:
			cancelled++
		case errors.Is(err, domain.ErrInvalidTransition):
			// оплата пришла между выборкой и отменой
		default:
			r.log.Warn("reaper cannot cancel order", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	return cancelled, nil
}

func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := r.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.log.Error("reaper sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				r.log.Info("stale orders cancelled", zap.Int("count", n))
			}
		}
	}
}
