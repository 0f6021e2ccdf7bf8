package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"canteen/internal/domain"
)

var testPolicy = RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}

func TestMemoryStore_MenuCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	it := domain.MenuItem{Name: "Masala Dosa", Price: decimal.NewFromInt(60), Available: true}
	if err := store.Create(ctx, &it); err != nil {
		t.Fatalf("create: %v", err)
	}
	if it.ID == "" {
		t.Fatalf("no id")
	}

	got, err := store.GetByID(ctx, it.ID)
	if err != nil || got.ID != it.ID {
		t.Fatalf("get: %v", err)
	}

	it.Price = decimal.NewFromInt(65)
	if err := store.Update(ctx, &it); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := store.Delete(ctx, it.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetByID(ctx, it.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryTx_TransactionalCreate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tx := NewMemoryTx(store, testPolicy)
	orders := NewMemoryOrders(store)
	counters := NewMemoryCounters(store)

	var id string
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		v, err := counters.Get(ctx, "b1")
		if err != nil {
			return err
		}
		if err := counters.Set(ctx, "b1", v+1); err != nil {
			return err
		}
		n := v + 1
		o := domain.Order{CustomerID: "c1", State: domain.OrderStateQueued, QueueNumber: &n}
		if err := orders.Create(ctx, &o); err != nil {
			return err
		}
		id = o.ID
		// видно внутри транзакции
		if _, err := orders.GetByID(ctx, id); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	got, err := orders.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *got.QueueNumber != 1 {
		t.Fatalf("queue number expected 1, got %v", *got.QueueNumber)
	}
	if v, _ := counters.Get(ctx, "b1"); v != 1 {
		t.Fatalf("counter expected 1, got %v", v)
	}
}

func TestMemoryTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tx := NewMemoryTx(store, testPolicy)
	orders := NewMemoryOrders(store)
	counters := NewMemoryCounters(store)
	boom := errors.New("boom")

	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		_ = counters.Set(ctx, "b1", 5)
		o := domain.Order{CustomerID: "c1", State: domain.OrderStateCreated}
		if err := orders.Create(ctx, &o); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if v, _ := counters.Get(ctx, "b1"); v != 0 {
		t.Fatalf("counter leaked: %v", v)
	}
	list, _ := orders.List(ctx, OrderFilter{})
	if len(list) != 0 {
		t.Fatalf("order leaked: %v", len(list))
	}
}

func TestMemoryTx_ConflictRetried(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tx := NewMemoryTx(store, testPolicy)
	counters := NewMemoryCounters(store)

	var attempts atomic.Int32
	var barrier, wg sync.WaitGroup
	barrier.Add(2)
	results := make([]int64, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			first := true
			err := tx.WithTransaction(ctx, func(ctx context.Context) error {
				attempts.Add(1)
				v, _ := counters.Get(ctx, "b")
				if first {
					// оба читают 0 до первого коммита
					first = false
					barrier.Done()
					barrier.Wait()
				}
				results[i] = v + 1
				return counters.Set(ctx, "b", v+1)
			})
			if err != nil {
				t.Errorf("tx %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if v, _ := counters.Get(ctx, "b"); v != 2 {
		t.Fatalf("counter expected 2, got %v", v)
	}
	if attempts.Load() < 3 {
		t.Fatalf("expected a retry, attempts=%v", attempts.Load())
	}
	if results[0] == results[1] {
		t.Fatalf("duplicate values %v", results)
	}
}

func TestMemoryTx_RetriesExhausted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tx := NewMemoryTx(store, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond})
	counters := NewMemoryCounters(store)

	calls := 0
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		calls++
		_, _ = counters.Get(ctx, "b")
		// concurrent writer outside the transaction
		_ = counters.Set(context.Background(), "b", int64(10*calls))
		return counters.Set(ctx, "b", 1)
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %v", calls)
	}
	if v, _ := counters.Get(ctx, "b"); v != 30 {
		t.Fatalf("counter expected 30, got %v", v)
	}
}

func TestOrders_ListFiltering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	orders := NewMemoryOrders(store)
	add := func(customer string, st domain.OrderState, pay domain.PaymentState) {
		o := domain.Order{CustomerID: customer, State: st, PaymentState: pay}
		if err := orders.Create(ctx, &o); err != nil {
			t.Fatal(err)
		}
	}
	add("c1", domain.OrderStateQueued, domain.PaymentAuthorized)
	add("c1", domain.OrderStateCreated, domain.PaymentPending)
	add("c2", domain.OrderStateReady, domain.PaymentAuthorized)

	list, _ := orders.List(ctx, OrderFilter{CustomerID: "c1"})
	if len(list) != 2 {
		t.Fatalf("customer filter: %v", len(list))
	}
	list, _ = orders.List(ctx, OrderFilter{States: []domain.OrderState{domain.OrderStateQueued, domain.OrderStateReady}})
	if len(list) != 2 {
		t.Fatalf("state filter: %v", len(list))
	}
	list, _ = orders.List(ctx, OrderFilter{PaymentStates: []domain.PaymentState{domain.PaymentPending}})
	if len(list) != 1 || list[0].State != domain.OrderStateCreated {
		t.Fatalf("payment filter: %+v", list)
	}
}

func TestOrders_UpdateIfState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	orders := NewMemoryOrders(store)
	tx := NewMemoryTx(store, testPolicy)

	o := domain.Order{CustomerID: "c1", State: domain.OrderStateCreated, PaymentState: domain.PaymentPending}
	if err := orders.Create(ctx, &o); err != nil {
		t.Fatal(err)
	}
	stale := o
	stale.State = domain.OrderStateQueued

	// кто-то успел отменить заказ
	o.State = domain.OrderStateCancelled
	if err := orders.UpdateIfState(ctx, &o, domain.OrderStateCreated); err != nil {
		t.Fatalf("first write: %v", err)
	}
	err := orders.UpdateIfState(ctx, &stale, domain.OrderStateCreated)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	got, _ := orders.GetByID(ctx, o.ID)
	if got.State != domain.OrderStateCancelled {
		t.Fatalf("stale write overwrote state: %s", got.State)
	}

	// внутри транзакции проверка та же
	err = tx.WithTransaction(ctx, func(ctx context.Context) error {
		return orders.UpdateIfState(ctx, &stale, domain.OrderStateCreated)
	})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition in tx, got %v", err)
	}

	missing := domain.Order{ID: "nope"}
	if err := orders.UpdateIfState(ctx, &missing, domain.OrderStateCreated); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMenu_ListFiltering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	add := func(n, cat string, price int64, available bool) {
		it := domain.MenuItem{Name: n, Category: cat, Price: decimal.NewFromInt(price), Available: available}
		if err := store.Create(ctx, &it); err != nil {
			t.Fatal(err)
		}
	}
	add("Idli", "breakfast", 30, true)
	add("Masala Dosa", "breakfast", 60, true)
	add("Veg Thali", "lunch", 120, false)

	list, _ := store.List(ctx, MenuFilter{NameSubstring: "dosa"})
	if len(list) != 1 {
		t.Fatalf("name filter: %v", len(list))
	}

	min := decimal.NewFromInt(60)
	list, _ = store.List(ctx, MenuFilter{MinPrice: &min})
	for _, it := range list {
		if it.Price.LessThan(min) {
			t.Fatalf("min filter fail")
		}
	}

	list, _ = store.List(ctx, MenuFilter{OnlyAvailable: true})
	if len(list) != 2 {
		t.Fatalf("available filter: %v", len(list))
	}
	list, _ = store.List(ctx, MenuFilter{Category: "LUNCH"})
	if len(list) != 1 {
		t.Fatalf("category filter: %v", len(list))
	}
}

func TestRecipients_ClearOnlyMatching(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRecipients(NewMemoryStore())
	_ = r.Set(ctx, "c1", "tok-new")
	_ = r.Clear(ctx, "c1", "tok-old")
	if tok, err := r.Get(ctx, "c1"); err != nil || tok != "tok-new" {
		t.Fatalf("token cleared by stale value: %q %v", tok, err)
	}
	_ = r.Clear(ctx, "c1", "tok-new")
	if _, err := r.Get(ctx, "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFeedback_OnePerOrder(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryFeedback(NewMemoryStore())
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	first := &domain.Feedback{OrderID: "o1", CustomerID: "c1", Rating: 5, CreatedAt: base}
	if err := r.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ID == "" {
		t.Fatal("id not assigned")
	}
	err := r.Create(ctx, &domain.Feedback{OrderID: "o1", CustomerID: "c1", Rating: 1})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	_ = r.Create(ctx, &domain.Feedback{OrderID: "o2", CustomerID: "c2", Rating: 3, CreatedAt: base.Add(time.Minute)})

	got, err := r.GetByOrder(ctx, "o1")
	if err != nil || got.Rating != 5 {
		t.Fatalf("get: %+v %v", got, err)
	}
	if _, err := r.GetByOrder(ctx, "o3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	list, _ := r.List(ctx)
	if len(list) != 2 || list[0].OrderID != "o2" {
		t.Fatalf("list not newest first: %+v", list)
	}
}

func TestFavorites_AddRemoveIdempotent(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryFavorites(NewMemoryStore())
	if list, err := r.List(ctx, "c1"); err != nil || len(list) != 0 {
		t.Fatalf("empty list: %v %v", list, err)
	}
	_ = r.Add(ctx, "c1", "tea")
	_ = r.Add(ctx, "c1", "dosa")
	_ = r.Add(ctx, "c1", "tea")
	list, _ := r.List(ctx, "c1")
	if len(list) != 2 || list[0] != "tea" || list[1] != "dosa" {
		t.Fatalf("favorites %v", list)
	}
	if err := r.Remove(ctx, "c1", "tea"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := r.Remove(ctx, "c1", "tea"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if err := r.Remove(ctx, "nobody", "tea"); err != nil {
		t.Fatalf("remove for unknown customer: %v", err)
	}
	list, _ = r.List(ctx, "c1")
	if len(list) != 1 || list[0] != "dosa" {
		t.Fatalf("favorites after remove %v", list)
	}
}
