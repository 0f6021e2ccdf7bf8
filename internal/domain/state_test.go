package domain

import (
	"errors"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderState
		want     bool
	}{
		{OrderStateCreated, OrderStateQueued, true},
		{OrderStateCreated, OrderStateCancelled, true},
		{OrderStateQueued, OrderStatePreparing, true},
		{OrderStateQueued, OrderStateCancelled, true},
		{OrderStatePreparing, OrderStateReady, true},
		{OrderStateReady, OrderStateCompleted, true},
		{OrderStatePreparing, OrderStateQueued, false},
		{OrderStateReady, OrderStatePreparing, false},
		{OrderStateQueued, OrderStateReady, false},
		{OrderStatePreparing, OrderStateCancelled, false},
		{OrderStateCompleted, OrderStateCancelled, false},
		{OrderStateCancelled, OrderStateQueued, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Fatalf("CanTransition = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApply_StampsAndGuards(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	o := Order{ID: "o1", State: OrderStateQueued}

	if err := o.Apply(OrderStateQueued, OrderStatePreparing, now); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if o.State != OrderStatePreparing || !o.UpdatedAt.Equal(now) || o.PreparingAt == nil {
		t.Fatalf("unexpected order after apply: %+v", o)
	}

	// stale expected state
	err := o.Apply(OrderStateQueued, OrderStatePreparing, now.Add(time.Minute))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if !o.UpdatedAt.Equal(now) {
		t.Fatalf("rejected apply changed UpdatedAt")
	}

	// backwards
	err = o.Apply(OrderStatePreparing, OrderStateQueued, now.Add(time.Minute))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if o.State != OrderStatePreparing {
		t.Fatalf("state changed to %s", o.State)
	}
}

func TestStaffPredecessor(t *testing.T) {
	from, ok := StaffPredecessor(OrderStateReady)
	if !ok || from != OrderStatePreparing {
		t.Fatalf("READY predecessor = %s, %v", from, ok)
	}
	if _, ok := StaffPredecessor(OrderStateQueued); ok {
		t.Fatalf("QUEUED is not a staff target")
	}
	if _, ok := StaffPredecessor(OrderStateCancelled); ok {
		t.Fatalf("CANCELLED is not a staff target")
	}
}

func TestParseOrderState(t *testing.T) {
	st, err := ParseOrderState(" ready ")
	if err != nil || st != OrderStateReady {
		t.Fatalf("parse: %v %v", st, err)
	}
	if _, err := ParseOrderState("placed"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
