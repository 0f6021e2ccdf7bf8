package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"canteen/internal/domain"
	"canteen/internal/repository"
)

// Feed слушает LISTEN canteen_orders_changed на выделенном соединении
// и на каждое уведомление публикует полный снимок заказов.
type Feed struct {
	pool   *pgxpool.Pool
	orders *OrderRepo
	hub    *repository.Hub
	log    *zap.Logger
}

func NewFeed(pool *pgxpool.Pool, orders *OrderRepo, log *zap.Logger) *Feed {
	return &Feed{pool: pool, orders: orders, hub: repository.NewHub(), log: log}
}

var _ repository.ChangeFeed = (*Feed)(nil)

func (f *Feed) Subscribe(ctx context.Context, match func(domain.Order) bool) (*repository.Subscription, error) {
	return f.hub.Subscribe(ctx, match)
}

func (f *Feed) Run(ctx context.Context) error {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("cannot acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("cannot listen: %w", err)
	}
	if err := f.refresh(ctx); err != nil {
		return err
	}
	f.log.Info("order notifications listener started", zap.String("channel", notifyChannel))

	for {
		if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		if err := f.refresh(ctx); err != nil {
			f.log.Error("cannot refresh order snapshot", zap.Error(err))
		}
	}
}

func (f *Feed) Close() { f.hub.Close() }

func (f *Feed) refresh(ctx context.Context) error {
	list, err := f.orders.List(ctx, repository.OrderFilter{})
	if err != nil {
		return err
	}
	f.hub.Publish(list, now())
	return nil
}
