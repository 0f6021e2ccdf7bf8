package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"canteen/internal/domain"
	"canteen/internal/repository"
)

// Feed следит за коллекцией заказов через change stream и на каждое событие
// перечитывает полный набор заказов.
type Feed struct {
	orders *OrderRepo
	hub    *repository.Hub
	log    *zap.Logger
}

func NewFeed(orders *OrderRepo, log *zap.Logger) *Feed {
	return &Feed{orders: orders, hub: repository.NewHub(), log: log}
}

var _ repository.ChangeFeed = (*Feed)(nil)

func (f *Feed) Subscribe(ctx context.Context, match func(domain.Order) bool) (*repository.Subscription, error) {
	return f.hub.Subscribe(ctx, match)
}

// Run блокируется до отмены ctx
func (f *Feed) Run(ctx context.Context) error {
	stream, err := f.orders.collection.Watch(ctx, mongo.Pipeline{},
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return fmt.Errorf("cannot watch orders: %w", err)
	}
	defer stream.Close(context.Background())

	// первый снимок после открытия потока, чтобы не потерять изменения между ними
	if err := f.refresh(ctx); err != nil {
		return err
	}
	f.log.Info("order change stream started")

	for stream.Next(ctx) {
		if err := f.refresh(ctx); err != nil {
			f.log.Error("cannot refresh order snapshot", zap.Error(err))
		}
	}
	if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("order change stream: %w", err)
	}
	return nil
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
