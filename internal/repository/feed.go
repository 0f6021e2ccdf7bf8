package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"canteen/internal/domain"
)

var ErrFeedClosed = errors.New("change feed closed")

// Snapshot полный набор заказов после изменения. Это не дифф.
type Snapshot struct {
	Version uint64
	At      time.Time
	Orders  []domain.Order
}

// Subscription подписка на снимки. C закрывается после Close или отмены ctx.
type Subscription struct {
	C    <-chan Snapshot
	hub  *Hub
	id   uint64
	done chan struct{}
	once sync.Once
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.hub.remove(s.id)
	})
}

type subscriber struct {
	match func(domain.Order) bool
	ch    chan Snapshot
}

// Hub раздаёт снимки подписчикам в порядке версий. Писатель не блокируется:
// у подписчика в буфере лежит не больше одного снимка, новый вытесняет старый.
type Hub struct {
	mu      sync.Mutex
	nextID  uint64
	version uint64
	at      time.Time
	latest  []domain.Order
	subs    map[uint64]*subscriber
	closed  bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*subscriber)}
}

// Publish принимает полный набор заказов хранилища
func (h *Hub) Publish(orders []domain.Order, at time.Time) {
	sorted := append([]domain.Order(nil), orders...)
	sortByCreated(sorted)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.version++
	h.at = at
	h.latest = sorted
	for _, s := range h.subs {
		h.deliver(s)
	}
}

func (h *Hub) Subscribe(ctx context.Context, match func(domain.Order) bool) (*Subscription, error) {
	if match == nil {
		match = func(domain.Order) bool { return true }
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrFeedClosed
	}
	h.nextID++
	s := &subscriber{match: match, ch: make(chan Snapshot, 1)}
	h.subs[h.nextID] = s
	sub := &Subscription{C: s.ch, hub: h, id: h.nextID, done: make(chan struct{})}
	// первый снимок сразу
	h.deliver(s)

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// Version номер последнего опубликованного снимка
func (h *Hub) Version() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.version
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.subs {
		close(s.ch)
		delete(h.subs, id)
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		close(s.ch)
		delete(h.subs, id)
	}
}

// deliver вызывается под h.mu
func (h *Hub) deliver(s *subscriber) {
	snap := Snapshot{Version: h.version, At: h.at, Orders: make([]domain.Order, 0)}
	for _, o := range h.latest {
		if s.match(o) {
			snap.Orders = append(snap.Orders, o.Clone())
		}
	}
	select {
	case s.ch <- snap:
		return
	default:
	}
	// вытесняем непрочитанный снимок
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}

func sortByCreated(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}
