package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"canteen/internal/domain"
	"canteen/internal/repository"
)

// clock каждый вызов сдвигает время на секунду, чтобы CreatedAt различались
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(time.Second)
	return now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeSender struct {
	mu    sync.Mutex
	calls []domain.Notification
	to    []string
	err   error
}

func (f *fakeSender) Deliver(ctx context.Context, recipient string, n domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, n)
	f.to = append(f.to, recipient)
	return f.err
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeEvents struct {
	mu     sync.Mutex
	events []domain.StatusChangedEvent
	err    error
}

func (f *fakeEvents) PublishStatusChanged(ctx context.Context, ev domain.StatusChangedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEvents) countTo(to domain.OrderState) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ev := range f.events {
		if ev.To == to {
			n++
		}
	}
	return n
}

// flakyTx отвечает конфликтом, пока включён fail
type flakyTx struct {
	next repository.TxManager
	fail atomic.Bool
}

func (t *flakyTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if t.fail.Load() {
		return repository.ErrConflict
	}
	return t.next.WithTransaction(ctx, fn)
}

type env struct {
	store    *repository.Store
	tx       *flakyTx
	orders   *OrderService
	menu     *MenuService
	notifier *Notifier
	sender   *fakeSender
	events   *fakeEvents
	clock    *clock
}

func setup(t *testing.T) *env {
	t.Helper()
	return setupWith(t, true)
}

func setupWith(t *testing.T, fallback bool) *env {
	t.Helper()
	store := repository.NewMemoryBackend(repository.RetryPolicy{MaxAttempts: 64, BaseDelay: time.Millisecond})
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	e := &env{
		store:  store,
		tx:     &flakyTx{next: store.Tx},
		sender: &fakeSender{},
		events: &fakeEvents{},
		clock:  newClock(),
	}
	e.notifier = NewNotifier(e.sender, store.Recipients, nil, nil, time.Second)
	e.orders = NewOrderService(Deps{
		Orders:           store.Orders,
		Counters:         store.Counters,
		Menu:             store.Menu,
		Tx:               e.tx,
		Estimator:        UniformEstimator{AvgPrepMinutes: 4},
		Batch:            NewBatchPolicy(BatchDaily, time.UTC),
		Events:           e.events,
		Notifier:         e.notifier,
		DegradedFallback: fallback,
		Now:              e.clock.Now,
	})
	e.menu = NewMenuService(store.Menu)
	return e
}

func item(name string, price string, qty int) domain.LineItem {
	return domain.LineItem{Name: name, UnitPrice: decimal.RequireFromString(price), Quantity: qty}
}

// mustCreate создаёт заказ на одну позицию
func (e *env) mustCreate(t *testing.T, customer string) *domain.Order {
	t.Helper()
	o, err := e.orders.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID:   customer,
		RecipientRef: "token-" + customer + "-0123456789",
		LineItems:    []domain.LineItem{item("Tea", "20", 1)},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

// mustQueue создаёт и оплачивает заказ
func (e *env) mustQueue(t *testing.T, customer string) *domain.Order {
	t.Helper()
	o := e.mustCreate(t, customer)
	res, err := e.orders.Authorize(context.Background(), o.ID, "pay-"+o.ID)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	return res.Order
}

func (e *env) mustAdvance(t *testing.T, id string, states ...domain.OrderState) {
	t.Helper()
	ctx := context.Background()
	cur, err := e.orders.GetOrder(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	from := cur.State
	for _, to := range states {
		if _, err := e.orders.Transition(ctx, id, from, to); err != nil {
			t.Fatalf("transition %s -> %s: %v", from, to, err)
		}
		from = to
	}
}

func hasAnomaly(res *TransitionResult, kind string) bool {
	for _, a := range res.Anomalies {
		if a.Kind == kind {
			return true
		}
	}
	return false
}
