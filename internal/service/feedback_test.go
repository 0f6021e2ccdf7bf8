package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"canteen/internal/domain"
	"canteen/internal/repository"
)

func TestSubmitFeedback(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	fs := NewFeedbackService(e.store.Feedback, e.store.Orders, nil)
	fs.now = e.clock.Now

	done := e.mustQueue(t, "c1")
	e.mustAdvance(t, done.ID, domain.OrderStatePreparing, domain.OrderStateReady, domain.OrderStateCompleted)
	pending := e.mustQueue(t, "c1")

	tests := []struct {
		name string
		in   SubmitFeedbackInput
		want error
	}{
		{"rating too low", SubmitFeedbackInput{OrderID: done.ID, CustomerID: "c1", Rating: 0}, domain.ErrValidation},
		{"rating too high", SubmitFeedbackInput{OrderID: done.ID, CustomerID: "c1", Rating: 6}, domain.ErrValidation},
		{"no customer", SubmitFeedbackInput{OrderID: done.ID, Rating: 4}, domain.ErrValidation},
		{"foreign order", SubmitFeedbackInput{OrderID: done.ID, CustomerID: "c2", Rating: 4}, domain.ErrValidation},
		{"unknown order", SubmitFeedbackInput{OrderID: "missing", CustomerID: "c1", Rating: 4}, repository.ErrNotFound},
		{"not picked up", SubmitFeedbackInput{OrderID: pending.ID, CustomerID: "c1", Rating: 4}, domain.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := fs.Submit(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if ok, _ := fs.Exists(ctx, done.ID); ok {
		t.Fatal("feedback exists before submit")
	}
	f, err := fs.Submit(ctx, SubmitFeedbackInput{OrderID: done.ID, CustomerID: "c1", Rating: 5, Message: "  great dosa \n"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if f.Message != "great dosa" || f.ID == "" || f.CreatedAt.IsZero() {
		t.Fatalf("unexpected feedback %+v", f)
	}
	if ok, err := fs.Exists(ctx, done.ID); err != nil || !ok {
		t.Fatalf("exists: %v %v", ok, err)
	}

	_, err = fs.Submit(ctx, SubmitFeedbackInput{OrderID: done.ID, CustomerID: "c1", Rating: 1})
	if !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	list, _ := fs.List(ctx)
	if len(list) != 1 || list[0].Rating != 5 {
		t.Fatalf("list %+v", list)
	}
}

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	fav := NewFavoritesService(e.store.Favorites, e.store.Menu)

	tea, err := e.menu.Create(ctx, domain.MenuItem{Name: "Tea", Price: decimal.NewFromInt(20), Available: true, PrepMinutes: 2})
	if err != nil {
		t.Fatalf("menu: %v", err)
	}
	if err := fav.Add(ctx, "c1", "no-such-item"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := fav.Add(ctx, "", tea.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := fav.Add(ctx, "c1", tea.ID); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	list, _ := fav.List(ctx, "c1")
	if len(list) != 1 || list[0] != tea.ID {
		t.Fatalf("favorites %v", list)
	}
	if ok, _ := fav.IsFavorite(ctx, "c1", tea.ID); !ok {
		t.Fatal("tea is not favorite")
	}
	if ok, _ := fav.IsFavorite(ctx, "c2", tea.ID); ok {
		t.Fatal("favorites leaked to another customer")
	}

	// позиция удалена из меню, но убрать её из избранного можно
	if err := e.menu.Delete(ctx, tea.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := fav.Remove(ctx, "c1", tea.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if ok, _ := fav.IsFavorite(ctx, "c1", tea.ID); ok {
		t.Fatal("still favorite after remove")
	}
}

func TestFeedbackTimestampsFromClock(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	fs := NewFeedbackService(e.store.Feedback, e.store.Orders, nil)
	fixed := time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)
	fs.now = func() time.Time { return fixed }

	o := e.mustQueue(t, "c1")
	e.mustAdvance(t, o.ID, domain.OrderStatePreparing, domain.OrderStateReady, domain.OrderStateCompleted)
	f, err := fs.Submit(ctx, SubmitFeedbackInput{OrderID: o.ID, CustomerID: "c1", Rating: 3})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	got, err := fs.GetByOrder(ctx, o.ID)
	if err != nil || !got.CreatedAt.Equal(fixed) || got.ID != f.ID {
		t.Fatalf("stored %+v %v", got, err)
	}
}
