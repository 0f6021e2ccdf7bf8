package service

import "canteen/internal/domain"

const DefaultAvgPrepMinutes = 4

// Estimator оценка минут до готовности заказа target
type Estimator interface {
	Estimate(target domain.Order, orders []domain.Order) int
}

// Backlog заказы в QUEUED/PREPARING, созданные строго раньше target
func Backlog(target domain.Order, orders []domain.Order) []domain.Order {
	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if o.ID == target.ID {
			continue
		}
		if o.State != domain.OrderStateQueued && o.State != domain.OrderStatePreparing {
			continue
		}
		if !o.CreatedAt.Before(target.CreatedAt) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// UniformEstimator одинаковое время на каждый заказ в очереди
type UniformEstimator struct {
	AvgPrepMinutes int
}

func (e UniformEstimator) Estimate(target domain.Order, orders []domain.Order) int {
	avg := normalizeAvg(e.AvgPrepMinutes)
	eta := len(Backlog(target, orders))*avg + avg
	if eta < avg {
		return avg
	}
	return eta
}

// WeightedEstimator учитывает время приготовления позиций меню.
// Заказ занимает столько, сколько его самая долгая позиция; без данных считается avg.
type WeightedEstimator struct {
	AvgPrepMinutes int
}

func (e WeightedEstimator) Estimate(target domain.Order, orders []domain.Order) int {
	avg := normalizeAvg(e.AvgPrepMinutes)
	eta := e.orderMinutes(target, avg)
	for _, o := range Backlog(target, orders) {
		eta += e.orderMinutes(o, avg)
	}
	if eta < avg {
		return avg
	}
	return eta
}

func (e WeightedEstimator) orderMinutes(o domain.Order, avg int) int {
	longest := 0
	for _, it := range o.LineItems {
		if it.PrepMinutes > longest {
			longest = it.PrepMinutes
		}
	}
	if longest == 0 {
		return avg
	}
	return longest
}

// NewEstimator по имени стратегии из конфигурации
func NewEstimator(strategy string, avgPrepMinutes int) Estimator {
	if strategy == "weighted" {
		return WeightedEstimator{AvgPrepMinutes: avgPrepMinutes}
	}
	return UniformEstimator{AvgPrepMinutes: avgPrepMinutes}
}

func normalizeAvg(avg int) int {
	if avg <= 0 {
		return DefaultAvgPrepMinutes
	}
	return avg
}
