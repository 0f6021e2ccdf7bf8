package domain

import "time"

const (
	TopicOrderStatusChanged     = "canteen.orders.status_changed"
	EventTypeOrderStatusChanged = "order.status_changed"
)

// StatusChangedEvent публикуется после каждого закоммиченного перехода
type StatusChangedEvent struct {
	EventType    string       `json:"event_type"`
	OccurredAt   time.Time    `json:"occurred_at"`
	OrderID      string       `json:"order_id"`
	CustomerID   string       `json:"customer_id"`
	QueueNumber  *int64       `json:"queue_number,omitempty"`
	From         OrderState   `json:"from"`
	To           OrderState   `json:"to"`
	PaymentState PaymentState `json:"payment_state"`
}

func NewStatusChangedEvent(o Order, from OrderState, at time.Time) StatusChangedEvent {
	return StatusChangedEvent{
		EventType:    EventTypeOrderStatusChanged,
		OccurredAt:   at,
		OrderID:      o.ID,
		CustomerID:   o.CustomerID,
		QueueNumber:  clonePtr(o.QueueNumber),
		From:         from,
		To:           o.State,
		PaymentState: o.PaymentState,
	}
}
