package events

import (
	"context"
	"encoding/json"
	"fmt"

	"canteen/internal/domain"
)

// Publisher транспорт событий. key задаёт порядок внутри одного заказа там,
// где брокер это поддерживает.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
	Close() error
}

// StatusPublisher публикует StatusChangedEvent в JSON
type StatusPublisher struct {
	pub   Publisher
	topic string
}

func NewStatusPublisher(pub Publisher, topic string) *StatusPublisher {
	if topic == "" {
		topic = domain.TopicOrderStatusChanged
	}
	return &StatusPublisher{pub: pub, topic: topic}
}

func (p *StatusPublisher) PublishStatusChanged(ctx context.Context, ev domain.StatusChangedEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("cannot encode event: %w", err)
	}
	if err := p.pub.Publish(ctx, p.topic, ev.OrderID, data); err != nil {
		return fmt.Errorf("cannot publish %s: %w", ev.EventType, err)
	}
	return nil
}

func (p *StatusPublisher) Close() error { return p.pub.Close() }

// Noop используется, когда брокер не настроен
type Noop struct{}

func (Noop) Publish(context.Context, string, string, []byte) error { return nil }
func (Noop) Close() error                                          { return nil }
