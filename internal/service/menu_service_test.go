package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"canteen/internal/domain"
	"canteen/internal/repository"
)

func TestMenuCRUD(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	m, err := e.menu.Create(ctx, domain.MenuItem{Name: "Masala Dosa", Category: "south", Price: decimal.NewFromInt(60), PrepMinutes: 6, Available: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.ID == "" {
		t.Fatalf("id not assigned")
	}
	m.Price = decimal.NewFromInt(65)
	if _, err := e.menu.Update(ctx, *m); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := e.menu.GetByID(ctx, m.ID)
	if err != nil || !got.Price.Equal(decimal.NewFromInt(65)) {
		t.Fatalf("get: %v %v", got, err)
	}

	minPrice := decimal.NewFromInt(50)
	list, err := e.menu.List(ctx, repository.MenuFilter{NameSubstring: "dosa", MinPrice: &minPrice})
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %v", list, err)
	}

	if err := e.menu.Delete(ctx, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := e.menu.GetByID(ctx, m.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMenuValidation(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	if _, err := e.menu.Create(ctx, domain.MenuItem{Price: decimal.NewFromInt(1)}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty name: %v", err)
	}
	if _, err := e.menu.Create(ctx, domain.MenuItem{Name: "x", Price: decimal.NewFromInt(-1)}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("negative price: %v", err)
	}
	if _, err := e.menu.Update(ctx, domain.MenuItem{Name: "x"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing id: %v", err)
	}
	lo, hi := decimal.NewFromInt(10), decimal.NewFromInt(5)
	if _, err := e.menu.List(ctx, repository.MenuFilter{MinPrice: &lo, MaxPrice: &hi}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("inverted range: %v", err)
	}
}
