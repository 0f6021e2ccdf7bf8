package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"canteen/internal/domain"
	"canteen/internal/repository"
)

func TestCreateOrderScenario(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	// три заказа раньше A уже в очереди
	for _, c := range []string{"c1", "c2", "c3"} {
		e.mustQueue(t, c)
	}

	total := decimal.NewFromInt(140)
	a, err := e.orders.CreateOrder(ctx, CreateOrderInput{
		CustomerID:  "alice",
		LineItems:   []domain.LineItem{item("Thali", "40", 2), item("Dosa", "60", 1)},
		TotalAmount: &total,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !a.TotalAmount.Equal(total) {
		t.Fatalf("total %s, want 140", a.TotalAmount)
	}
	if a.State != domain.OrderStateCreated || a.PaymentState != domain.PaymentPending {
		t.Fatalf("unexpected initial state %s/%s", a.State, a.PaymentState)
	}
	if a.QueueNumber != nil || a.EstimatedMinutes != nil {
		t.Fatalf("queue number must be absent before payment")
	}

	res, err := e.orders.ConfirmPayment(ctx, PaymentCallback{OrderID: a.ID, PaymentID: "pay_A", Status: "captured"})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	got := res.Order
	if got.State != domain.OrderStateQueued || got.PaymentState != domain.PaymentAuthorized {
		t.Fatalf("unexpected state %s/%s", got.State, got.PaymentState)
	}
	if got.QueueNumber == nil || *got.QueueNumber != 4 {
		t.Fatalf("queue number %v, want 4", got.QueueNumber)
	}
	if got.EstimatedMinutes == nil || *got.EstimatedMinutes != 16 {
		t.Fatalf("eta %v, want 16", got.EstimatedMinutes)
	}
	if got.QueuedAt == nil {
		t.Fatalf("queued_at not stamped")
	}
	if e.events.countTo(domain.OrderStateQueued) != 4 {
		t.Fatalf("expected 4 queued events")
	}
}

func TestCreateOrderValidation(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	wrongTotal := decimal.NewFromInt(100)

	cases := []struct {
		name  string
		in    CreateOrderInput
		field string
	}{
		{"no customer", CreateOrderInput{LineItems: []domain.LineItem{item("Tea", "10", 1)}}, "customer_id"},
		{"no items", CreateOrderInput{CustomerID: "c"}, "line_items"},
		{"zero quantity", CreateOrderInput{CustomerID: "c", LineItems: []domain.LineItem{item("Tea", "10", 0)}}, "line_items[0].quantity"},
		{"negative price", CreateOrderInput{CustomerID: "c", LineItems: []domain.LineItem{item("Tea", "-1", 1)}}, "line_items[0].unit_price"},
		{"empty name", CreateOrderInput{CustomerID: "c", LineItems: []domain.LineItem{item("Tea", "1", 1), item(" ", "1", 1)}}, "line_items[1].name"},
		{"total mismatch", CreateOrderInput{CustomerID: "c", LineItems: []domain.LineItem{item("Tea", "10", 2)}, TotalAmount: &wrongTotal}, "total_amount"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.orders.CreateOrder(ctx, tc.in)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var ve *domain.ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("expected field %s, got %v", tc.field, err)
			}
		})
	}

	all, _ := e.orders.ListOrders(ctx, repository.OrderFilter{})
	if len(all) != 0 {
		t.Fatalf("invalid orders must not be stored, got %d", len(all))
	}
}

func TestCreateOrderFromMenu(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	biryani, err := e.menu.Create(ctx, domain.MenuItem{Name: "Biryani", Price: decimal.NewFromInt(55), PrepMinutes: 7, Available: true})
	if err != nil {
		t.Fatalf("menu: %v", err)
	}
	soldOut, _ := e.menu.Create(ctx, domain.MenuItem{Name: "Kheer", Price: decimal.NewFromInt(30)})

	// цена клиента игнорируется
	o, err := e.orders.CreateOrder(ctx, CreateOrderInput{
		CustomerID: "c",
		LineItems:  []domain.LineItem{{MenuItemID: biryani.ID, UnitPrice: decimal.NewFromInt(1), Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	li := o.LineItems[0]
	if li.Name != "Biryani" || !li.UnitPrice.Equal(decimal.NewFromInt(55)) || li.PrepMinutes != 7 {
		t.Fatalf("menu data not applied: %+v", li)
	}
	if !o.TotalAmount.Equal(decimal.NewFromInt(110)) {
		t.Fatalf("total %s", o.TotalAmount)
	}

	_, err = e.orders.CreateOrder(ctx, CreateOrderInput{
		CustomerID: "c",
		LineItems:  []domain.LineItem{{MenuItemID: soldOut.ID, Quantity: 1}},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unavailable item: expected validation error, got %v", err)
	}
	_, err = e.orders.CreateOrder(ctx, CreateOrderInput{
		CustomerID: "c",
		LineItems:  []domain.LineItem{{MenuItemID: "missing", Quantity: 1}},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown item: expected validation error, got %v", err)
	}
}

func TestConfirmPayment(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	if _, err := e.orders.ConfirmPayment(ctx, PaymentCallback{OrderID: "x", Status: "captured"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing paymentId: %v", err)
	}
	if _, err := e.orders.ConfirmPayment(ctx, PaymentCallback{PaymentID: "p", Status: "captured"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing orderId: %v", err)
	}
	if _, err := e.orders.ConfirmPayment(ctx, PaymentCallback{OrderID: "nope", PaymentID: "p", Status: "captured"}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("unknown order: %v", err)
	}

	o := e.mustCreate(t, "bob")
	res, err := e.orders.ConfirmPayment(ctx, PaymentCallback{OrderID: o.ID, PaymentID: "pay_1", Status: "CAPTURED"})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if *res.Order.QueueNumber != 1 {
		t.Fatalf("first number must be 1, got %d", *res.Order.QueueNumber)
	}

	// повтор того же callback
	again, err := e.orders.ConfirmPayment(ctx, PaymentCallback{OrderID: o.ID, PaymentID: "pay_1", Status: "captured"})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !again.Replayed || *again.Order.QueueNumber != 1 {
		t.Fatalf("replay must return current order unchanged")
	}
	if e.events.countTo(domain.OrderStateQueued) != 1 {
		t.Fatalf("replay must not publish")
	}

	// другой платёж по уже оплаченному заказу: недопустимый переход
	if _, err := e.orders.ConfirmPayment(ctx, PaymentCallback{OrderID: o.ID, PaymentID: "pay_2", Status: "captured"}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("second capture: %v", err)
	}

	failed := e.mustCreate(t, "carol")
	res, err = e.orders.ConfirmPayment(ctx, PaymentCallback{OrderID: failed.ID, PaymentID: "pay_3", Status: "failed"})
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if res.Order.State != domain.OrderStateCancelled || res.Order.PaymentState != domain.PaymentFailed {
		t.Fatalf("unexpected %s/%s", res.Order.State, res.Order.PaymentState)
	}
	if res.Order.QueueNumber != nil {
		t.Fatalf("failed payment must not get a number")
	}
}

func TestAuthorizeConcurrentUniqueness(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	const n = 20

	ids := make([]string, n)
	for i := range ids {
		ids[i] = e.mustCreate(t, "c").ID
	}

	var (
		mu      sync.Mutex
		numbers []int64
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			res, err := e.orders.Authorize(gctx, id, "pay-"+id)
			if err != nil {
				return err
			}
			if res.Order.DegradedNumber {
				return errors.New("degraded allocation under contention")
			}
			mu.Lock()
			numbers = append(numbers, *res.Order.QueueNumber)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("authorize: %v", err)
	}

	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	for i, num := range numbers {
		if num != int64(i+1) {
			t.Fatalf("numbers not unique/consecutive: %v", numbers)
		}
	}
	counter, _ := e.store.Counters.Get(ctx, e.orders.CurrentBatch())
	if counter != n {
		t.Fatalf("counter %d, want %d", counter, n)
	}
}

func TestTransitionLegality(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	o := e.mustQueue(t, "c")
	if _, err := e.orders.Transition(ctx, o.ID, domain.OrderStateQueued, domain.OrderStateReady); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("skip QUEUED->READY: %v", err)
	}
	e.mustAdvance(t, o.ID, domain.OrderStatePreparing)

	if _, err := e.orders.Transition(ctx, o.ID, domain.OrderStatePreparing, domain.OrderStateQueued); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("PREPARING->QUEUED: %v", err)
	}
	// устаревший from
	if _, err := e.orders.StartPreparing(ctx, o.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("stale from: %v", err)
	}
	stored, _ := e.orders.GetOrder(ctx, o.ID)
	if stored.State != domain.OrderStatePreparing {
		t.Fatalf("state changed to %s", stored.State)
	}

	e.mustAdvance(t, o.ID, domain.OrderStateReady)
	if _, err := e.orders.Transition(ctx, o.ID, domain.OrderStateReady, domain.OrderStatePreparing); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("READY->PREPARING: %v", err)
	}
	if _, err := e.orders.Cancel(ctx, o.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("cancel READY: %v", err)
	}
	stored, _ = e.orders.GetOrder(ctx, o.ID)
	if stored.State != domain.OrderStateReady || stored.ReadyAt == nil || stored.CompletedAt != nil {
		t.Fatalf("unexpected stored order %+v", stored)
	}

	res, err := e.orders.MarkCompleted(ctx, o.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Order.CompletedAt == nil || *res.Order.QueueNumber != *o.QueueNumber {
		t.Fatalf("queue number must stay after completion")
	}
}

func TestConcurrentMarkReadyNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	o := e.mustQueue(t, "c")
	e.mustAdvance(t, o.ID, domain.OrderStatePreparing)

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		errs    = make([]error, 2)
		results = make([]*TransitionResult, 2)
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = e.orders.MarkReady(ctx, o.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	ok, invalid := 0, 0
	for i, err := range errs {
		switch {
		case err == nil:
			ok++
			if results[i].Order.State != domain.OrderStateReady {
				t.Fatalf("winner state %s", results[i].Order.State)
			}
		case errors.Is(err, domain.ErrInvalidTransition):
			invalid++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || invalid != 1 {
		t.Fatalf("expected one commit and one invalid transition, got %d/%d", ok, invalid)
	}
	if e.sender.count() != 1 {
		t.Fatalf("expected one notification, got %d", e.sender.count())
	}
	if e.events.countTo(domain.OrderStateReady) != 1 {
		t.Fatalf("expected one READY event")
	}
	n := e.sender.calls[0]
	if n.Data.OrderID != o.ID || n.Data.Type != "order_ready" || n.Data.QueueNumber != "1" || n.Data.Status != "READY" {
		t.Fatalf("unexpected payload %+v", n)
	}
}

func TestDegradedAllocation(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	first := e.mustQueue(t, "c1")
	second := e.mustCreate(t, "c2")

	e.tx.fail.Store(true)
	res, err := e.orders.Authorize(ctx, second.ID, "pay-2")
	if err != nil {
		t.Fatalf("degraded authorize: %v", err)
	}
	if !res.Order.DegradedNumber || *res.Order.QueueNumber != 2 {
		t.Fatalf("expected degraded number 2, got %v degraded=%v", *res.Order.QueueNumber, res.Order.DegradedNumber)
	}
	if !hasAnomaly(res, AnomalyDegradedAllocation) {
		t.Fatalf("degraded allocation must be reported")
	}
	if *first.QueueNumber != 1 {
		t.Fatalf("first number %d", *first.QueueNumber)
	}
}

// cancellingOrders перед первой выборкой отменяет заказ напрямую в хранилище,
// как если бы отказ платежа закоммитился между чтением и записью
type cancellingOrders struct {
	repository.OrderRepository
	once   sync.Once
	cancel func()
}

func (r *cancellingOrders) List(ctx context.Context, f repository.OrderFilter) ([]domain.Order, error) {
	r.once.Do(r.cancel)
	return r.OrderRepository.List(ctx, f)
}

func TestDegradedAllocationKeepsCancelTerminal(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	o := e.mustCreate(t, "c1")

	racing := &cancellingOrders{OrderRepository: e.store.Orders}
	racing.cancel = func() {
		cur, err := e.store.Orders.GetByID(ctx, o.ID)
		if err != nil {
			t.Errorf("get: %v", err)
			return
		}
		if err := cur.Apply(domain.OrderStateCreated, domain.OrderStateCancelled, e.clock.Now()); err != nil {
			t.Errorf("apply: %v", err)
			return
		}
		cur.PaymentState = domain.PaymentFailed
		if err := e.store.Orders.Update(ctx, cur); err != nil {
			t.Errorf("cancel: %v", err)
		}
	}
	svc := NewOrderService(Deps{
		Orders:           racing,
		Counters:         e.store.Counters,
		Tx:               e.tx,
		Estimator:        UniformEstimator{AvgPrepMinutes: 4},
		Batch:            NewBatchPolicy(BatchDaily, time.UTC),
		DegradedFallback: true,
		Now:              e.clock.Now,
	})

	e.tx.fail.Store(true)
	_, err := svc.Authorize(ctx, o.ID, "pay-1")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	stored, _ := e.store.Orders.GetByID(ctx, o.ID)
	if stored.State != domain.OrderStateCancelled || stored.PaymentState != domain.PaymentFailed {
		t.Fatalf("cancelled order came back as %s/%s", stored.State, stored.PaymentState)
	}
	if stored.QueueNumber != nil {
		t.Fatalf("cancelled order got number %d", *stored.QueueNumber)
	}
}

func TestDegradedAllocationReplay(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	o := e.mustCreate(t, "c1")

	e.tx.fail.Store(true)
	first, err := e.orders.Authorize(ctx, o.ID, "pay-1")
	if err != nil {
		t.Fatalf("degraded authorize: %v", err)
	}
	again, err := e.orders.Authorize(ctx, o.ID, "pay-1")
	if err != nil {
		t.Fatalf("replayed callback: %v", err)
	}
	if !again.Replayed || *again.Order.QueueNumber != *first.Order.QueueNumber {
		t.Fatalf("expected replay of number %d, got %+v", *first.Order.QueueNumber, again)
	}
	if _, err := e.orders.Authorize(ctx, o.ID, "pay-2"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("second payment must be rejected, got %v", err)
	}
}

func TestAllocationFailedWithoutFallback(t *testing.T) {
	ctx := context.Background()
	e := setupWith(t, false)
	o := e.mustCreate(t, "c")

	e.tx.fail.Store(true)
	if _, err := e.orders.Authorize(ctx, o.ID, "pay"); !errors.Is(err, ErrAllocationFailed) {
		t.Fatalf("expected allocation failed, got %v", err)
	}
	e.tx.fail.Store(false)
	stored, _ := e.orders.GetOrder(ctx, o.ID)
	if stored.State != domain.OrderStateCreated || stored.QueueNumber != nil {
		t.Fatalf("order must stay CREATED without a number")
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	queued := e.mustQueue(t, "c")
	res, err := e.orders.Cancel(ctx, queued.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if res.Order.State != domain.OrderStateCancelled || res.Order.CancelledAt == nil || res.Order.PaymentState != domain.PaymentFailed {
		t.Fatalf("unexpected %+v", res.Order)
	}
	if _, err := e.orders.Cancel(ctx, queued.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("double cancel: %v", err)
	}

	preparing := e.mustQueue(t, "c")
	e.mustAdvance(t, preparing.ID, domain.OrderStatePreparing)
	if _, err := e.orders.Cancel(ctx, preparing.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("cancel PREPARING: %v", err)
	}
}

func TestResetBatch(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	o := e.mustQueue(t, "c")

	if err := e.orders.ResetBatch(ctx, ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("reset with active orders: %v", err)
	}
	e.mustAdvance(t, o.ID, domain.OrderStatePreparing, domain.OrderStateReady, domain.OrderStateCompleted)
	if err := e.orders.ResetBatch(ctx, ""); err != nil {
		t.Fatalf("reset: %v", err)
	}
	next := e.mustQueue(t, "c")
	if *next.QueueNumber != 1 {
		t.Fatalf("number after reset %d, want 1", *next.QueueNumber)
	}
}

func TestEventPublishFailureIsAnomaly(t *testing.T) {
	e := setup(t)
	e.events.err = errors.New("broker down")
	o := e.mustCreate(t, "c")
	res, err := e.orders.Authorize(context.Background(), o.ID, "pay")
	if err != nil {
		t.Fatalf("authorize must succeed: %v", err)
	}
	if !hasAnomaly(res, AnomalyEventPublishFailed) {
		t.Fatalf("expected event publish anomaly")
	}
}
