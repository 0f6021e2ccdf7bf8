package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"canteen/internal/domain"
	"canteen/internal/metrics"
	"canteen/internal/repository"
)

// ErrAllocationFailed номер не выдан: транзакции исчерпали попытки
var ErrAllocationFailed = errors.New("queue number allocation failed")

const (
	AnomalyDegradedAllocation = "degraded_allocation"
	AnomalyStaleRecipient     = "stale_recipient"
	AnomalyNoRecipient        = "no_recipient"
	AnomalyDeliveryFailed     = "delivery_failed"
	AnomalyEventPublishFailed = "event_publish_failed"
)

// Anomaly восстановимая проблема, не отменяющая закоммиченный переход
type Anomaly struct {
	Kind    string
	OrderID string
	Err     error
}

func (a Anomaly) Error() string {
	if a.Err == nil {
		return a.Kind
	}
	return a.Kind + ": " + a.Err.Error()
}

func (a Anomaly) Unwrap() error { return a.Err }

// TransitionResult итог перехода. Replayed: повтор уже применённого платёжного callback.
type TransitionResult struct {
	Order     *domain.Order
	Anomalies []Anomaly
	Replayed  bool
}

// EventPublisher публикация событий о переходах
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, ev domain.StatusChangedEvent) error
}

// TransitionHook получает каждый закоммиченный переход
type TransitionHook interface {
	OnTransition(ctx context.Context, o domain.Order, from, to domain.OrderState) *Anomaly
}

type Deps struct {
	Orders    repository.OrderRepository
	Counters  repository.CounterRepository
	Menu      repository.MenuRepository
	Tx        repository.TxManager
	Estimator Estimator
	Batch     BatchPolicy
	Events    EventPublisher
	Notifier  TransitionHook
	Metrics   *metrics.Metrics
	Log       *zap.Logger
	// DegradedFallback разрешает оценочный номер после исчерпания повторов
	DegradedFallback bool
	Now              func() time.Time
}

// OrderService жизненный цикл заказа: создание, оплата, этапы приготовления
type OrderService struct {
	orders    repository.OrderRepository
	counters  repository.CounterRepository
	menu      repository.MenuRepository
	tx        repository.TxManager
	allocator *SequenceAllocator
	degraded  *DegradedAllocator
	estimator Estimator
	batch     BatchPolicy
	events    EventPublisher
	hook      TransitionHook
	metrics   *metrics.Metrics
	log       *zap.Logger
	fallback  bool
	now       func() time.Time
}

func NewOrderService(d Deps) *OrderService {
	s := &OrderService{
		orders:    d.Orders,
		counters:  d.Counters,
		menu:      d.Menu,
		tx:        d.Tx,
		allocator: NewSequenceAllocator(d.Counters),
		degraded:  NewDegradedAllocator(d.Orders),
		estimator: d.Estimator,
		batch:     d.Batch,
		events:    d.Events,
		hook:      d.Notifier,
		metrics:   d.Metrics,
		log:       d.Log,
		fallback:  d.DegradedFallback,
		now:       d.Now,
	}
	if s.estimator == nil {
		s.estimator = UniformEstimator{AvgPrepMinutes: DefaultAvgPrepMinutes}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

type CreateOrderInput struct {
	CustomerID   string
	RecipientRef string
	LineItems    []domain.LineItem
	// TotalAmount сумма, посчитанная клиентом; nil означает без проверки
	TotalAmount *decimal.Decimal
}

// CreateOrder проверяет корзину и создаёт заказ в CREATED/PENDING без номера
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if strings.TrimSpace(in.CustomerID) == "" {
		return nil, domain.NewValidationError("customer_id", "is required")
	}
	if len(in.LineItems) == 0 {
		return nil, domain.NewValidationError("line_items", "must not be empty")
	}
	items, err := s.resolveItems(ctx, in.LineItems)
	if err != nil {
		return nil, err
	}
	total := domain.SumLineItems(items)
	if in.TotalAmount != nil && !in.TotalAmount.Equal(total) {
		return nil, domain.NewValidationError("total_amount", fmt.Sprintf("%s does not match line items sum %s", in.TotalAmount, total))
	}

	var created *domain.Order
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o := domain.Order{
			CustomerID:   in.CustomerID,
			RecipientRef: in.RecipientRef,
			LineItems:    items,
			TotalAmount:  total,
			PaymentState: domain.PaymentPending,
			State:        domain.OrderStateCreated,
			CreatedAt:    s.now(),
		}
		if err := s.orders.Create(ctx, &o); err != nil {
			return err
		}
		created = &o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("order created",
		zap.String("order_id", created.ID),
		zap.String("customer_id", created.CustomerID),
		zap.String("total", created.TotalAmount.String()),
	)
	return created, nil
}

// resolveItems позиции из меню берут название, цену и время из меню
func (s *OrderService) resolveItems(ctx context.Context, in []domain.LineItem) ([]domain.LineItem, error) {
	out := make([]domain.LineItem, 0, len(in))
	for i, it := range in {
		field := fmt.Sprintf("line_items[%d]", i)
		if it.Quantity <= 0 {
			return nil, domain.NewValidationError(field+".quantity", "must be positive")
		}
		if it.MenuItemID != "" && s.menu != nil {
			m, err := s.menu.GetByID(ctx, it.MenuItemID)
			if errors.Is(err, repository.ErrNotFound) {
				return nil, domain.NewValidationError(field+".menu_item_id", "unknown menu item "+it.MenuItemID)
			}
			if err != nil {
				return nil, err
			}
			if !m.Available {
				return nil, domain.NewValidationError(field+".menu_item_id", m.Name+" is not available")
			}
			it.Name = m.Name
			it.UnitPrice = m.Price
			it.PrepMinutes = m.PrepMinutes
		}
		if strings.TrimSpace(it.Name) == "" {
			return nil, domain.NewValidationError(field+".name", "is required")
		}
		if it.UnitPrice.IsNegative() {
			return nil, domain.NewValidationError(field+".unit_price", "must not be negative")
		}
		out = append(out, it)
	}
	return out, nil
}

// PaymentCallback уведомление платёжного шлюза
type PaymentCallback struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
}

const paymentCaptured = "captured"

// ConfirmPayment captured -> Authorize, любой другой статус -> FailPayment
func (s *OrderService) ConfirmPayment(ctx context.Context, cb PaymentCallback) (*TransitionResult, error) {
	if cb.OrderID == "" {
		return nil, domain.NewValidationError("orderId", "is required")
	}
	if cb.PaymentID == "" {
		return nil, domain.NewValidationError("paymentId", "is required")
	}
	if strings.EqualFold(strings.TrimSpace(cb.Status), paymentCaptured) {
		return s.Authorize(ctx, cb.OrderID, cb.PaymentID)
	}
	return s.FailPayment(ctx, cb.OrderID, cb.PaymentID)
}

// Authorize одной транзакцией: CREATED -> QUEUED, номер очереди и ETA
func (s *OrderService) Authorize(ctx context.Context, id, paymentID string) (*TransitionResult, error) {
	if id == "" {
		return nil, domain.NewValidationError("id", "is required")
	}
	var (
		updated *domain.Order
		replay  bool
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		replay = false
		o, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if paymentID != "" && o.PaymentID == paymentID && o.PaymentState == domain.PaymentAuthorized {
			updated, replay = o, true
			return nil
		}
		now := s.now()
		if err := o.Apply(domain.OrderStateCreated, domain.OrderStateQueued, now); err != nil {
			return err
		}
		batch := s.batch.Key(now)
		number, err := s.allocator.AllocateNext(ctx, batch)
		if err != nil {
			return err
		}
		if err := s.assignQueue(ctx, o, batch, number, paymentID); err != nil {
			return err
		}
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return s.authorizeDegraded(ctx, id, paymentID, err)
		}
		return nil, err
	}
	if replay {
		return &TransitionResult{Order: updated, Replayed: true}, nil
	}
	s.metrics.ObserveAllocation("sequence")
	return s.afterCommit(ctx, domain.OrderStateCreated, updated), nil
}

// assignQueue номер, партия и ETA выставляются один раз при постановке в очередь
func (s *OrderService) assignQueue(ctx context.Context, o *domain.Order, batch string, number int64, paymentID string) error {
	backlog, err := s.orders.List(ctx, repository.OrderFilter{
		States: []domain.OrderState{domain.OrderStateQueued, domain.OrderStatePreparing},
	})
	if err != nil {
		return err
	}
	eta := s.estimator.Estimate(*o, backlog)
	o.QueueNumber = &number
	o.QueueBatch = batch
	o.EstimatedMinutes = &eta
	o.PaymentState = domain.PaymentAuthorized
	if paymentID != "" {
		o.PaymentID = paymentID
	}
	return nil
}

// authorizeDegraded последний резерв: номер по числу активных заказов, без счётчика.
// Заказ помечается DegradedNumber для проверки оператором. Сама запись остаётся
// условной: если заказ успели отменить, переход не применяется.
func (s *OrderService) authorizeDegraded(ctx context.Context, id, paymentID string, cause error) (*TransitionResult, error) {
	s.metrics.ObserveAllocation("failed")
	if !s.fallback {
		return nil, fmt.Errorf("%w: %v", ErrAllocationFailed, cause)
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocationFailed, err)
	}
	if paymentID != "" && o.PaymentID == paymentID && o.PaymentState == domain.PaymentAuthorized {
		return &TransitionResult{Order: o, Replayed: true}, nil
	}
	now := s.now()
	if err := o.Apply(domain.OrderStateCreated, domain.OrderStateQueued, now); err != nil {
		return nil, err
	}
	batch := s.batch.Key(now)
	number, err := s.degraded.Estimate(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocationFailed, err)
	}
	if err := s.assignQueue(ctx, o, batch, number, paymentID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocationFailed, err)
	}
	o.DegradedNumber = true
	if err := s.orders.UpdateIfState(ctx, o, domain.OrderStateCreated); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrAllocationFailed, err)
	}
	s.metrics.ObserveAllocation("degraded")

	anomaly := s.report(Anomaly{Kind: AnomalyDegradedAllocation, OrderID: o.ID, Err: cause})
	res := s.afterCommit(ctx, domain.OrderStateCreated, o)
	res.Anomalies = append([]Anomaly{anomaly}, res.Anomalies...)
	return res, nil
}

// FailPayment отказ платежа: CREATED|QUEUED -> CANCELLED
func (s *OrderService) FailPayment(ctx context.Context, id, paymentID string) (*TransitionResult, error) {
	return s.cancel(ctx, id, paymentID)
}

// Cancel явная отмена (void) до начала приготовления
func (s *OrderService) Cancel(ctx context.Context, id string) (*TransitionResult, error) {
	return s.cancel(ctx, id, "")
}

func (s *OrderService) cancel(ctx context.Context, id, paymentID string) (*TransitionResult, error) {
	if id == "" {
		return nil, domain.NewValidationError("id", "is required")
	}
	var (
		updated *domain.Order
		from    domain.OrderState
		replay  bool
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		replay = false
		o, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if paymentID != "" && o.PaymentID == paymentID && o.PaymentState == domain.PaymentFailed {
			updated, replay = o, true
			return nil
		}
		from = o.State
		if err := o.Apply(from, domain.OrderStateCancelled, s.now()); err != nil {
			return err
		}
		o.PaymentState = domain.PaymentFailed
		if paymentID != "" {
			o.PaymentID = paymentID
		}
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	if replay {
		return &TransitionResult{Order: updated, Replayed: true}, nil
	}
	return s.afterCommit(ctx, from, updated), nil
}

// Transition действие персонала. Если заказ уже не в from, возвращается
// ErrInvalidTransition и ничего не меняется.
func (s *OrderService) Transition(ctx context.Context, id string, from, to domain.OrderState) (*TransitionResult, error) {
	if id == "" {
		return nil, domain.NewValidationError("id", "is required")
	}
	if trig, ok := domain.TriggerFor(from, to); !ok || trig != domain.TriggerStaff {
		return nil, fmt.Errorf("%w: %s -> %s is not a staff action", domain.ErrInvalidTransition, from, to)
	}
	var updated *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := o.Apply(from, to, s.now()); err != nil {
			return err
		}
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.afterCommit(ctx, from, updated), nil
}

func (s *OrderService) StartPreparing(ctx context.Context, id string) (*TransitionResult, error) {
	return s.Transition(ctx, id, domain.OrderStateQueued, domain.OrderStatePreparing)
}

func (s *OrderService) MarkReady(ctx context.Context, id string) (*TransitionResult, error) {
	return s.Transition(ctx, id, domain.OrderStatePreparing, domain.OrderStateReady)
}

// MarkCompleted заказ выдан
func (s *OrderService) MarkCompleted(ctx context.Context, id string) (*TransitionResult, error) {
	return s.Transition(ctx, id, domain.OrderStateReady, domain.OrderStateCompleted)
}

// GetOrder возвращает заказ по id
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if id == "" {
		return nil, domain.NewValidationError("id", "is required")
	}
	return s.orders.GetByID(ctx, id)
}

func (s *OrderService) ListOrders(ctx context.Context, f repository.OrderFilter) ([]domain.Order, error) {
	return s.orders.List(ctx, f)
}

// CurrentBatch ключ партии на текущий момент
func (s *OrderService) CurrentBatch() string { return s.batch.Key(s.now()) }

// ResetBatch обнуляет счётчик партии. Пока у активных заказов есть номера
// этой партии, сброс запрещён.
func (s *OrderService) ResetBatch(ctx context.Context, batch string) error {
	if batch == "" {
		batch = s.CurrentBatch()
	}
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		active, err := s.orders.List(ctx, repository.OrderFilter{QueueBatch: batch, States: activeStates})
		if err != nil {
			return err
		}
		for _, o := range active {
			if o.HasQueueNumber() {
				return fmt.Errorf("%w: batch %s still has %d active orders", domain.ErrInvalidTransition, batch, len(active))
			}
		}
		return s.counters.Set(ctx, batch, 0)
	})
	if err != nil {
		return err
	}
	s.log.Info("queue batch reset", zap.String("batch", batch))
	return nil
}

// afterCommit событие, метрики и уведомление. Ошибки здесь становятся Anomaly.
func (s *OrderService) afterCommit(ctx context.Context, from domain.OrderState, o *domain.Order) *TransitionResult {
	res := &TransitionResult{Order: o}
	s.metrics.ObserveTransition(string(from), string(o.State))
	s.log.Info("order transition",
		zap.String("order_id", o.ID),
		zap.String("step", string(from)+"->"+string(o.State)),
		zap.String("status", string(o.State)),
	)
	if s.events != nil {
		ev := domain.NewStatusChangedEvent(*o, from, o.UpdatedAt)
		if err := s.events.PublishStatusChanged(ctx, ev); err != nil {
			res.Anomalies = append(res.Anomalies, s.report(Anomaly{Kind: AnomalyEventPublishFailed, OrderID: o.ID, Err: err}))
		}
	}
	if s.hook != nil {
		if a := s.hook.OnTransition(ctx, *o, from, o.State); a != nil {
			res.Anomalies = append(res.Anomalies, s.report(*a))
		}
	}
	return res
}

func (s *OrderService) report(a Anomaly) Anomaly {
	s.metrics.ObserveAnomaly(a.Kind)
	s.log.Warn("order anomaly",
		zap.String("kind", a.Kind),
		zap.String("order_id", a.OrderID),
		zap.Error(a.Err),
	)
	return a
}
