package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"canteen/internal/domain"
	"canteen/internal/repository"
)

type lineItemDocument struct {
	MenuItemID  string               `bson:"menu_item_id,omitempty"`
	Name        string               `bson:"name"`
	UnitPrice   primitive.Decimal128 `bson:"unit_price"`
	Quantity    int                  `bson:"quantity"`
	PrepMinutes int                  `bson:"prep_minutes,omitempty"`
}

// orderDocument хранимое представление заказа. Поля в camelCase остались от
// старых записей: читаются, но при записи не выставляются (ReplaceOne их убирает).
type orderDocument struct {
	ID               string                `bson:"_id"`
	CustomerID       string                `bson:"customer_id,omitempty"`
	RecipientRef     string                `bson:"recipient_ref,omitempty"`
	LineItems        []lineItemDocument    `bson:"line_items"`
	TotalAmount      *primitive.Decimal128 `bson:"total_amount,omitempty"`
	PaymentState     string                `bson:"payment_state,omitempty"`
	PaymentID        string                `bson:"payment_id,omitempty"`
	Status           string                `bson:"status,omitempty"`
	QueueNumber      *int64                `bson:"queue_number,omitempty"`
	QueueBatch       string                `bson:"queue_batch,omitempty"`
	EstimatedMinutes *int                  `bson:"estimated_minutes,omitempty"`
	DegradedNumber   bool                  `bson:"degraded_number"`
	CreatedAt        time.Time             `bson:"created_at"`
	UpdatedAt        time.Time             `bson:"updated_at"`
	QueuedAt         *time.Time            `bson:"queued_at,omitempty"`
	PreparingAt      *time.Time            `bson:"preparing_at,omitempty"`
	ReadyAt          *time.Time            `bson:"ready_at,omitempty"`
	CompletedAt      *time.Time            `bson:"completed_at,omitempty"`
	CancelledAt      *time.Time            `bson:"cancelled_at,omitempty"`

	// legacy
	UserID            string  `bson:"userId,omitempty"`
	DeviceToken       string  `bson:"deviceToken,omitempty"`
	OrderStatus       string  `bson:"orderStatus,omitempty"`
	PaymentStatus     string  `bson:"paymentStatus,omitempty"`
	LegacyTotal       float64 `bson:"totalAmount,omitempty"`
	LegacyQueueNumber *int64  `bson:"queueNumber,omitempty"`
	LegacyEstimate    *int    `bson:"estimatedTime,omitempty"`
}

func toDocument(o domain.Order) (orderDocument, error) {
	total, err := toDecimal128(o.TotalAmount)
	if err != nil {
		return orderDocument{}, err
	}
	items := make([]lineItemDocument, 0, len(o.LineItems))
	for _, it := range o.LineItems {
		price, err := toDecimal128(it.UnitPrice)
		if err != nil {
			return orderDocument{}, err
		}
		items = append(items, lineItemDocument{
			MenuItemID:  it.MenuItemID,
			Name:        it.Name,
			UnitPrice:   price,
			Quantity:    it.Quantity,
			PrepMinutes: it.PrepMinutes,
		})
	}
	return orderDocument{
		ID:               o.ID,
		CustomerID:       o.CustomerID,
		RecipientRef:     o.RecipientRef,
		LineItems:        items,
		TotalAmount:      &total,
		PaymentState:     string(o.PaymentState),
		PaymentID:        o.PaymentID,
		Status:           string(o.State),
		QueueNumber:      o.QueueNumber,
		QueueBatch:       o.QueueBatch,
		EstimatedMinutes: o.EstimatedMinutes,
		DegradedNumber:   o.DegradedNumber,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		QueuedAt:         o.QueuedAt,
		PreparingAt:      o.PreparingAt,
		ReadyAt:          o.ReadyAt,
		CompletedAt:      o.CompletedAt,
		CancelledAt:      o.CancelledAt,
	}, nil
}

// toDomain нормализует и новые, и старые записи
func (d orderDocument) toDomain() (domain.Order, error) {
	state, pay, err := repository.NormalizeLegacy(repository.LegacyStatus{
		Status:        d.Status,
		OrderStatus:   d.OrderStatus,
		PaymentStatus: firstNonEmpty(d.PaymentState, d.PaymentStatus),
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s: %w", d.ID, err)
	}

	var total decimal.Decimal
	if d.TotalAmount != nil {
		if total, err = fromDecimal128(*d.TotalAmount); err != nil {
			return domain.Order{}, fmt.Errorf("order %s: %w", d.ID, err)
		}
	} else {
		total = decimal.NewFromFloat(d.LegacyTotal)
	}

	items := make([]domain.LineItem, 0, len(d.LineItems))
	for _, it := range d.LineItems {
		price, err := fromDecimal128(it.UnitPrice)
		if err != nil {
			return domain.Order{}, fmt.Errorf("order %s: %w", d.ID, err)
		}
		items = append(items, domain.LineItem{
			MenuItemID:  it.MenuItemID,
			Name:        it.Name,
			UnitPrice:   price,
			Quantity:    it.Quantity,
			PrepMinutes: it.PrepMinutes,
		})
	}

	o := domain.Order{
		ID:               d.ID,
		CustomerID:       firstNonEmpty(d.CustomerID, d.UserID),
		RecipientRef:     firstNonEmpty(d.RecipientRef, d.DeviceToken),
		LineItems:        items,
		TotalAmount:      total,
		PaymentState:     pay,
		PaymentID:        d.PaymentID,
		State:            state,
		QueueNumber:      d.QueueNumber,
		QueueBatch:       d.QueueBatch,
		EstimatedMinutes: d.EstimatedMinutes,
		DegradedNumber:   d.DegradedNumber,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
		QueuedAt:         d.QueuedAt,
		PreparingAt:      d.PreparingAt,
		ReadyAt:          d.ReadyAt,
		CompletedAt:      d.CompletedAt,
		CancelledAt:      d.CancelledAt,
	}
	if o.QueueNumber == nil {
		o.QueueNumber = d.LegacyQueueNumber
	}
	if o.EstimatedMinutes == nil {
		o.EstimatedMinutes = d.LegacyEstimate
	}
	return o, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("cannot encode decimal %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("cannot decode decimal %s: %w", v, err)
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
