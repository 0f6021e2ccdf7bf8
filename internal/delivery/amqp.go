package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"canteen/internal/domain"
)

const notificationsQueue = "notifications.q"

// AMQPSender публикует уведомления в fanout exchange с подтверждениями брокера
type AMQPSender struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func DialAMQP(url, exchange string) (*AMQPSender, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("cannot open channel: %w", err)
	}
	s := &AMQPSender{conn: conn, ch: ch, exchange: exchange}
	if err := s.declare(); err != nil {
		s.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		s.Close()
		return nil, fmt.Errorf("cannot enable publisher confirms: %w", err)
	}
	return s, nil
}

func (s *AMQPSender) declare() error {
	if err := s.ch.ExchangeDeclare(s.exchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("cannot declare exchange %s: %w", s.exchange, err)
	}
	if _, err := s.ch.QueueDeclare(notificationsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("cannot declare queue: %w", err)
	}
	if err := s.ch.QueueBind(notificationsQueue, "", s.exchange, false, nil); err != nil {
		return fmt.Errorf("cannot bind queue: %w", err)
	}
	return nil
}

func (s *AMQPSender) Deliver(ctx context.Context, recipient string, n domain.Notification) error {
	if err := ValidateRecipient(recipient); err != nil {
		return err
	}
	body, err := json.Marshal(Message{Recipient: recipient, Notification: n})
	if err != nil {
		return fmt.Errorf("cannot encode notification: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conf, err := s.ch.PublishWithDeferredConfirmWithContext(ctx, s.exchange, "", false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    n.Data.OrderID + ":" + n.Data.Type,
		Timestamp:    time.Now().UTC(),
		Headers:      amqp.Table{"order_id": n.Data.OrderID},
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("cannot publish notification: %w", err)
	}
	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("notification confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("notification for order %s was nacked", n.Data.OrderID)
	}
	return nil
}

func (s *AMQPSender) Close() {
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
}
