package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"canteen/internal/domain"
	"canteen/internal/metrics"
	"canteen/internal/repository"
)

// Sender внешний сервис доставки push-уведомлений
type Sender interface {
	Deliver(ctx context.Context, recipient string, n domain.Notification) error
}

const notifiedKeysLimit = 10000

// Notifier отправляет уведомление о готовности один раз на заказ
type Notifier struct {
	sender     Sender
	recipients repository.RecipientRepository
	metrics    *metrics.Metrics
	log        *zap.Logger
	timeout    time.Duration

	mu   sync.Mutex
	sent map[string]struct{}
	ring []string
	next int
}

func NewNotifier(sender Sender, recipients repository.RecipientRepository, m *metrics.Metrics, log *zap.Logger, timeout time.Duration) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		sender:     sender,
		recipients: recipients,
		metrics:    m,
		log:        log,
		timeout:    timeout,
		sent:       make(map[string]struct{}),
		ring:       make([]string, notifiedKeysLimit),
	}
}

// OnTransition вызывается после коммита перехода. Ошибки доставки
// возвращаются как Anomaly и на переход не влияют.
func (n *Notifier) OnTransition(ctx context.Context, o domain.Order, from, to domain.OrderState) *Anomaly {
	if to != domain.OrderStateReady {
		return nil
	}
	if !n.claim(o.ID + ":" + string(to)) {
		n.metrics.ObserveNotification("duplicate")
		return nil
	}

	// доставка не зависит от отмены запроса, только от своего таймаута
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	recipient := o.RecipientRef
	if recipient == "" {
		tok, err := n.recipients.Get(ctx, o.CustomerID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				n.metrics.ObserveNotification("no_recipient")
				return &Anomaly{Kind: AnomalyNoRecipient, OrderID: o.ID, Err: err}
			}
			n.metrics.ObserveNotification("failed")
			return &Anomaly{Kind: AnomalyDeliveryFailed, OrderID: o.ID, Err: err}
		}
		recipient = tok
	}

	err := n.sender.Deliver(ctx, recipient, domain.ReadyNotification(o))
	switch {
	case err == nil:
		n.metrics.ObserveNotification("sent")
		n.log.Info("ready notification sent", zap.String("order_id", o.ID), zap.String("customer_id", o.CustomerID))
		return nil
	case errors.Is(err, domain.ErrInvalidRecipient):
		n.metrics.ObserveNotification("stale_recipient")
		if cerr := n.recipients.Clear(ctx, o.CustomerID, recipient); cerr != nil {
			n.log.Warn("cannot clear stale recipient", zap.String("customer_id", o.CustomerID), zap.Error(cerr))
		}
		return &Anomaly{Kind: AnomalyStaleRecipient, OrderID: o.ID, Err: err}
	default:
		n.metrics.ObserveNotification("failed")
		return &Anomaly{Kind: AnomalyDeliveryFailed, OrderID: o.ID, Err: err}
	}
}

// claim false, если ключ уже был; старые ключи вытесняются по кругу
func (n *Notifier) claim(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.sent[key]; ok {
		return false
	}
	if old := n.ring[n.next]; old != "" {
		delete(n.sent, old)
	}
	n.ring[n.next] = key
	n.next = (n.next + 1) % len(n.ring)
	n.sent[key] = struct{}{}
	return true
}
