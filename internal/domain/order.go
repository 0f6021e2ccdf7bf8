package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderState состояние заказа
type OrderState string

const (
	OrderStateCreated   OrderState = "CREATED"
	OrderStateQueued    OrderState = "QUEUED"
	OrderStatePreparing OrderState = "PREPARING"
	OrderStateReady     OrderState = "READY"
	OrderStateCompleted OrderState = "COMPLETED"
	OrderStateCancelled OrderState = "CANCELLED"
)

// Valid сообщает, известно ли состояние
func (s OrderState) Valid() bool {
	switch s {
	case OrderStateCreated, OrderStateQueued, OrderStatePreparing,
		OrderStateReady, OrderStateCompleted, OrderStateCancelled:
		return true
	}
	return false
}

// Active: заказ стоит в живой очереди
func (s OrderState) Active() bool {
	return s == OrderStateQueued || s == OrderStatePreparing || s == OrderStateReady
}

func (s OrderState) Terminal() bool {
	return s == OrderStateCompleted || s == OrderStateCancelled
}

// PaymentState состояние оплаты
type PaymentState string

const (
	PaymentPending    PaymentState = "PENDING"
	PaymentAuthorized PaymentState = "AUTHORIZED"
	PaymentFailed     PaymentState = "FAILED"
)

func (p PaymentState) Valid() bool {
	return p == PaymentPending || p == PaymentAuthorized || p == PaymentFailed
}

// LineItem позиция в заказе. PrepMinutes копируется из меню при создании.
type LineItem struct {
	MenuItemID  string          `json:"menu_item_id,omitempty"`
	Name        string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	PrepMinutes int             `json:"prep_minutes,omitempty"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// SumLineItems считает итог заказа
func SumLineItems(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// Order сущность заказа
type Order struct {
	ID               string          `json:"id"`
	CustomerID       string          `json:"customer_id"`
	RecipientRef     string          `json:"-"`
	LineItems        []LineItem      `json:"line_items"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PaymentState     PaymentState    `json:"payment_state"`
	PaymentID        string          `json:"payment_id,omitempty"`
	State            OrderState      `json:"order_state"`
	QueueNumber      *int64          `json:"queue_number,omitempty"`
	QueueBatch       string          `json:"queue_batch,omitempty"`
	EstimatedMinutes *int            `json:"estimated_minutes,omitempty"`
	DegradedNumber   bool            `json:"degraded_number,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	QueuedAt         *time.Time      `json:"queued_at,omitempty"`
	PreparingAt      *time.Time      `json:"preparing_at,omitempty"`
	ReadyAt          *time.Time      `json:"ready_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	CancelledAt      *time.Time      `json:"cancelled_at,omitempty"`
}

func (o *Order) HasQueueNumber() bool { return o.QueueNumber != nil && *o.QueueNumber > 0 }

// Clone возвращает глубокую копию (репозитории не отдают общие указатели)
func (o Order) Clone() Order {
	cp := o
	if o.LineItems != nil {
		cp.LineItems = append([]LineItem(nil), o.LineItems...)
	}
	cp.QueueNumber = clonePtr(o.QueueNumber)
	cp.EstimatedMinutes = clonePtr(o.EstimatedMinutes)
	cp.QueuedAt = clonePtr(o.QueuedAt)
	cp.PreparingAt = clonePtr(o.PreparingAt)
	cp.ReadyAt = clonePtr(o.ReadyAt)
	cp.CompletedAt = clonePtr(o.CompletedAt)
	cp.CancelledAt = clonePtr(o.CancelledAt)
	return cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
