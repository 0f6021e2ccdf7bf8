package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"canteen/internal/domain"
	"canteen/internal/repository"
)

const topItemsLimit = 5

type ItemStat struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// DashboardStats сводка за день для администратора
type DashboardStats struct {
	Day               string                    `json:"day"`
	TotalOrders       int                       `json:"total_orders"`
	PaidOrders        int                       `json:"paid_orders"`
	Revenue           decimal.Decimal           `json:"revenue"`
	AverageOrderValue decimal.Decimal           `json:"average_order_value"`
	ByState           map[domain.OrderState]int `json:"by_state"`
	OrdersByHour      [24]int                   `json:"orders_by_hour"`
	TopItems          []ItemStat                `json:"top_items"`
	DegradedNumbers   int                       `json:"degraded_numbers"`
	ActiveQueue       int                       `json:"active_queue"`
}

type StatsService struct {
	orders repository.OrderRepository
	loc    *time.Location
}

func NewStatsService(orders repository.OrderRepository, loc *time.Location) *StatsService {
	if loc == nil {
		loc = time.Local
	}
	return &StatsService{orders: orders, loc: loc}
}

// Dashboard считает заказы, созданные в календарный день day (часовой пояс столовой).
// Выручка и средний чек только по оплаченным заказам.
func (s *StatsService) Dashboard(ctx context.Context, day time.Time) (*DashboardStats, error) {
	local := day.In(s.loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	to := from.AddDate(0, 0, 1)

	orders, err := s.orders.List(ctx, repository.OrderFilter{CreatedFrom: &from, CreatedTo: &to})
	if err != nil {
		return nil, err
	}

	st := &DashboardStats{
		Day:               from.Format(time.DateOnly),
		TotalOrders:       len(orders),
		Revenue:           decimal.Zero,
		AverageOrderValue: decimal.Zero,
		ByState:           make(map[domain.OrderState]int),
		TopItems:          make([]ItemStat, 0),
	}
	items := make(map[string]*ItemStat)
	for _, o := range orders {
		st.ByState[o.State]++
		st.OrdersByHour[o.CreatedAt.In(s.loc).Hour()]++
		if o.DegradedNumber {
			st.DegradedNumbers++
		}
		if inActiveQueue(o) {
			st.ActiveQueue++
		}
		if o.PaymentState != domain.PaymentAuthorized {
			continue
		}
		st.PaidOrders++
		st.Revenue = st.Revenue.Add(o.TotalAmount)
		for _, it := range o.LineItems {
			agg, ok := items[it.Name]
			if !ok {
				agg = &ItemStat{Name: it.Name, Revenue: decimal.Zero}
				items[it.Name] = agg
			}
			agg.Quantity += it.Quantity
			agg.Revenue = agg.Revenue.Add(it.Subtotal())
		}
	}
	if st.PaidOrders > 0 {
		st.AverageOrderValue = st.Revenue.Div(decimal.NewFromInt(int64(st.PaidOrders))).Round(2)
	}
	for _, agg := range items {
		st.TopItems = append(st.TopItems, *agg)
	}
	sort.Slice(st.TopItems, func(i, j int) bool {
		if st.TopItems[i].Quantity != st.TopItems[j].Quantity {
			return st.TopItems[i].Quantity > st.TopItems[j].Quantity
		}
		return st.TopItems[i].Name < st.TopItems[j].Name
	})
	if len(st.TopItems) > topItemsLimit {
		st.TopItems = st.TopItems[:topItemsLimit]
	}
	return st, nil
}
