package domain

import (
	"fmt"
	"strconv"
)

const NotificationTypeOrderReady = "order_ready"

// Notification payload for the push delivery collaborator.
// queueNumber is a string on the wire.
type Notification struct {
	Title string           `json:"title"`
	Body  string           `json:"body"`
	Data  NotificationData `json:"data"`
}

type NotificationData struct {
	OrderID     string `json:"orderId"`
	QueueNumber string `json:"queueNumber"`
	Status      string `json:"status"`
	Type        string `json:"type"`
}

// ReadyNotification уведомление о готовности заказа
func ReadyNotification(o Order) Notification {
	num := ""
	if o.QueueNumber != nil {
		num = strconv.FormatInt(*o.QueueNumber, 10)
	}
	return Notification{
		Title: "Order Ready for Pickup!",
		Body:  fmt.Sprintf("Your order #%s is ready. Please collect it from the counter.", num),
		Data: NotificationData{
			OrderID:     o.ID,
			QueueNumber: num,
			Status:      string(OrderStateReady),
			Type:        NotificationTypeOrderReady,
		},
	}
}
