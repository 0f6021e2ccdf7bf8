package service

import (
	"context"
	"sort"
	"time"

	"canteen/internal/domain"
	"canteen/internal/repository"
)

// Filter оставляет заказы, прошедшие pred
func Filter(orders []domain.Order, pred func(domain.Order) bool) []domain.Order {
	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if pred(o) {
			out = append(out, o)
		}
	}
	return out
}

// SortByQueueNumber по возрастанию номера, заказы без номера в конце
func SortByQueueNumber(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i].QueueNumber, orders[j].QueueNumber
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return *a < *b
	})
}

// SortNewestFirst по убыванию времени создания
func SortNewestFirst(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func inActiveQueue(o domain.Order) bool {
	return o.PaymentState == domain.PaymentAuthorized && o.State.Active() && o.HasQueueNumber()
}

// ActiveQueue живая очередь: оплаченные QUEUED/PREPARING/READY с номером, по возрастанию номера
func ActiveQueue(orders []domain.Order) []domain.Order {
	out := Filter(orders, inActiveQueue)
	SortByQueueNumber(out)
	return out
}

// CustomerOrders заказы покупателя, новые сверху
func CustomerOrders(orders []domain.Order, customerID string) []domain.Order {
	out := Filter(orders, func(o domain.Order) bool { return o.CustomerID == customerID })
	SortNewestFirst(out)
	return out
}

// View представление поверх полного набора заказов.
// Filter сужает подписку и выборку, Derive строит итоговый список.
type View struct {
	Name   string
	Filter repository.OrderFilter
	Derive func([]domain.Order) []domain.Order
}

func ActiveQueueView() View {
	return View{
		Name: "active_queue",
		Filter: repository.OrderFilter{
			PaymentStates: []domain.PaymentState{domain.PaymentAuthorized},
			States:        activeStates,
		},
		Derive: ActiveQueue,
	}
}

func CustomerView(customerID string) View {
	return View{
		Name:   "customer_orders",
		Filter: repository.OrderFilter{CustomerID: customerID},
		Derive: func(orders []domain.Order) []domain.Order { return CustomerOrders(orders, customerID) },
	}
}

// Update полностью заменяет предыдущий список у потребителя
type Update struct {
	Version uint64
	At      time.Time
	Orders  []domain.Order
}

// Projection пересчитывает представления на каждом снимке хранилища
type Projection struct {
	orders repository.OrderRepository
	feed   repository.ChangeFeed
}

func NewProjection(orders repository.OrderRepository, feed repository.ChangeFeed) *Projection {
	return &Projection{orders: orders, feed: feed}
}

// Current одноразовое чтение представления
func (p *Projection) Current(ctx context.Context, v View) ([]domain.Order, error) {
	orders, err := p.orders.List(ctx, v.Filter)
	if err != nil {
		return nil, err
	}
	return v.Derive(orders), nil
}

// Watch канал обновлений представления. Медленный потребитель получает
// самое свежее состояние: неполученное обновление заменяется новым.
// Канал закрывается при отмене ctx или закрытии ленты.
func (p *Projection) Watch(ctx context.Context, v View) (<-chan Update, error) {
	sub, err := p.feed.Subscribe(ctx, v.Filter.Match)
	if err != nil {
		return nil, err
	}
	out := make(chan Update, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-sub.C:
				if !ok {
					return
				}
				u := Update{Version: snap.Version, At: snap.At, Orders: v.Derive(snap.Orders)}
				select {
				case out <- u:
					continue
				default:
				}
				select {
				case <-out:
				default:
				}
				out <- u
			}
		}
	}()
	return out, nil
}
