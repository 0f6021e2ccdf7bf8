package domain

import (
	"fmt"
	"strings"
	"time"
)

// Trigger кто инициирует переход
type Trigger string

const (
	TriggerPaymentAuthorized Trigger = "payment_authorized"
	TriggerPaymentFailed     Trigger = "payment_failed"
	TriggerStaff             Trigger = "staff"
)

// таблица допустимых переходов
var transitions = map[OrderState]map[OrderState]Trigger{
	OrderStateCreated: {
		OrderStateQueued:    TriggerPaymentAuthorized,
		OrderStateCancelled: TriggerPaymentFailed,
	},
	OrderStateQueued: {
		OrderStatePreparing: TriggerStaff,
		OrderStateCancelled: TriggerPaymentFailed,
	},
	OrderStatePreparing: {
		OrderStateReady: TriggerStaff,
	},
	OrderStateReady: {
		OrderStateCompleted: TriggerStaff,
	},
}

func CanTransition(from, to OrderState) bool {
	_, ok := transitions[from][to]
	return ok
}

// TriggerFor возвращает инициатора перехода from -> to
func TriggerFor(from, to OrderState) (Trigger, bool) {
	t, ok := transitions[from][to]
	return t, ok
}

// StaffPredecessor состояние, из которого персонал переводит заказ в to
func StaffPredecessor(to OrderState) (OrderState, bool) {
	for from, targets := range transitions {
		if t, ok := targets[to]; ok && t == TriggerStaff {
			return from, true
		}
	}
	return "", false
}

// Apply проверяет ожидаемое состояние и выполняет переход, проставляя отметки времени.
// При несовпадении ничего не меняет.
func (o *Order) Apply(expected, to OrderState, now time.Time) error {
	if o.State != expected {
		return fmt.Errorf("%w: order %s is %s, expected %s", ErrInvalidTransition, o.ID, o.State, expected)
	}
	if !CanTransition(o.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.State, to)
	}
	o.State = to
	o.UpdatedAt = now
	stamp := now
	switch to {
	case OrderStateQueued:
		o.QueuedAt = &stamp
	case OrderStatePreparing:
		o.PreparingAt = &stamp
	case OrderStateReady:
		o.ReadyAt = &stamp
	case OrderStateCompleted:
		o.CompletedAt = &stamp
	case OrderStateCancelled:
		o.CancelledAt = &stamp
	}
	return nil
}

func ParseOrderState(s string) (OrderState, error) {
	st := OrderState(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", NewValidationError("order_state", fmt.Sprintf("unknown value %q", s))
	}
	return st, nil
}

func ParsePaymentState(s string) (PaymentState, error) {
	ps := PaymentState(strings.ToUpper(strings.TrimSpace(s)))
	if !ps.Valid() {
		return "", NewValidationError("payment_state", fmt.Sprintf("unknown value %q", s))
	}
	return ps, nil
}
