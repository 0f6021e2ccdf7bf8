package service

import (
	"context"
	"fmt"
	"time"

	"canteen/internal/domain"
	"canteen/internal/repository"
)

const (
	BatchDaily  = "daily"
	BatchManual = "manual"

	manualBatchKey = "manual"
)

// BatchPolicy определяет ключ партии, в которой выдаются номера
type BatchPolicy struct {
	Mode     string
	Location *time.Location
}

func NewBatchPolicy(mode string, loc *time.Location) BatchPolicy {
	if loc == nil {
		loc = time.Local
	}
	return BatchPolicy{Mode: mode, Location: loc}
}

// Key daily: YYYYMMDD в часовом поясе столовой; manual: постоянный ключ до сброса оператором
func (p BatchPolicy) Key(now time.Time) string {
	if p.Mode == BatchManual {
		return manualBatchKey
	}
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).Format("20060102")
}

// SequenceAllocator выдаёт следующий номер партии. Вызывать только внутри
// TxManager.WithTransaction вместе с записью номера в заказ.
type SequenceAllocator struct {
	counters repository.CounterRepository
}

func NewSequenceAllocator(counters repository.CounterRepository) *SequenceAllocator {
	return &SequenceAllocator{counters: counters}
}

func (a *SequenceAllocator) AllocateNext(ctx context.Context, batch string) (int64, error) {
	current, err := a.counters.Get(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("read counter %s: %w", batch, err)
	}
	next := current + 1
	if err := a.counters.Set(ctx, batch, next); err != nil {
		return 0, fmt.Errorf("write counter %s: %w", batch, err)
	}
	return next, nil
}

// DegradedAllocator оценка номера без счётчика: count(активных) + 1.
// Уникальность не гарантируется.
type DegradedAllocator struct {
	orders repository.OrderRepository
}

func NewDegradedAllocator(orders repository.OrderRepository) *DegradedAllocator {
	return &DegradedAllocator{orders: orders}
}

func (a *DegradedAllocator) Estimate(ctx context.Context, batch string) (int64, error) {
	active, err := a.orders.List(ctx, repository.OrderFilter{
		QueueBatch: batch,
		States:     activeStates,
	})
	if err != nil {
		return 0, fmt.Errorf("count active orders: %w", err)
	}
	return int64(len(active)) + 1, nil
}

var activeStates = []domain.OrderState{
	domain.OrderStateQueued,
	domain.OrderStatePreparing,
	domain.OrderStateReady,
}
