package repository

import (
	"fmt"
	"sort"
	"strings"

	"canteen/internal/domain"
)

// LegacyStatus поля статуса в том виде, как они лежат в старых записях:
// status и orderStatus означают одно и то же, paymentStatus хранит paid/pending/failed.
type LegacyStatus struct {
	Status        string
	OrderStatus   string
	PaymentStatus string
}

// NormalizeLegacy приводит запись к (OrderState, PaymentState).
// status главнее orderStatus; orderStatus читается, только если status пуст.
func NormalizeLegacy(rec LegacyStatus) (domain.OrderState, domain.PaymentState, error) {
	pay, err := NormalizePaymentState(rec.PaymentStatus)
	if err != nil {
		return "", "", err
	}
	raw := strings.TrimSpace(rec.Status)
	if raw == "" {
		raw = strings.TrimSpace(rec.OrderStatus)
	}
	switch strings.ToLower(raw) {
	case "created":
		return domain.OrderStateCreated, pay, nil
	case "placed", "new", "queued":
		// placed до оплаты ещё не в очереди
		switch pay {
		case domain.PaymentAuthorized:
			return domain.OrderStateQueued, pay, nil
		case domain.PaymentFailed:
			return domain.OrderStateCancelled, pay, nil
		}
		return domain.OrderStateCreated, pay, nil
	case "preparing", "in_progress", "cooking":
		return domain.OrderStatePreparing, pay, nil
	case "ready":
		return domain.OrderStateReady, pay, nil
	case "completed", "picked", "picked_up", "delivered":
		return domain.OrderStateCompleted, pay, nil
	case "cancelled", "canceled", "failed":
		return domain.OrderStateCancelled, pay, nil
	case "":
		return "", "", fmt.Errorf("order record has no status")
	}
	return "", "", fmt.Errorf("unknown order status %q", raw)
}

// NormalizePaymentState paid/captured -> AUTHORIZED, пусто -> PENDING
func NormalizePaymentState(raw string) (domain.PaymentState, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "pending":
		return domain.PaymentPending, nil
	case "paid", "captured", "authorized":
		return domain.PaymentAuthorized, nil
	case "failed":
		return domain.PaymentFailed, nil
	}
	return "", fmt.Errorf("unknown payment status %q", raw)
}

// stateAliases написания статуса, которые NormalizeLegacy может привести к состоянию.
// placed/new/queued зависят от оплаты, поэтому встречаются у трёх состояний.
var stateAliases = map[domain.OrderState][]string{
	domain.OrderStateCreated:   {"created", "placed", "new", "queued"},
	domain.OrderStateQueued:    {"placed", "new", "queued"},
	domain.OrderStatePreparing: {"preparing", "in_progress", "cooking"},
	domain.OrderStateReady:     {"ready"},
	domain.OrderStateCompleted: {"completed", "picked", "picked_up", "delivered"},
	domain.OrderStateCancelled: {"cancelled", "canceled", "failed", "placed", "new", "queued"},
}

var paymentAliases = map[domain.PaymentState][]string{
	domain.PaymentPending:    {"pending"},
	domain.PaymentAuthorized: {"paid", "captured", "authorized"},
	domain.PaymentFailed:     {"failed"},
}

// StoredStateValues хранимые значения статуса, которые могут означать одно из states.
// Это надмножество: после чтения запись всё равно проходит OrderFilter.Match.
func StoredStateValues(states []domain.OrderState) []string {
	set := make(map[string]struct{})
	for _, st := range states {
		set[string(st)] = struct{}{}
		for _, a := range stateAliases[st] {
			set[a] = struct{}{}
			set[strings.ToUpper(a)] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// StoredPaymentValues то же для статуса оплаты. withEmpty: пустое или
// отсутствующее поле тоже подходит (оно читается как PENDING).
func StoredPaymentValues(states []domain.PaymentState) (values []string, withEmpty bool) {
	set := make(map[string]struct{})
	for _, ps := range states {
		if ps == domain.PaymentPending {
			withEmpty = true
		}
		set[string(ps)] = struct{}{}
		for _, a := range paymentAliases[ps] {
			set[a] = struct{}{}
			set[strings.ToUpper(a)] = struct{}{}
		}
	}
	return sortedKeys(set), withEmpty
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
