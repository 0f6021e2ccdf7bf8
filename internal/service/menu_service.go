package service

import (
	"context"
	"strings"

	"canteen/internal/domain"
	"canteen/internal/repository"
)

// MenuService инкапсулирует бизнес-логику вокруг меню
type MenuService struct {
	repo repository.MenuRepository
}

func NewMenuService(repo repository.MenuRepository) *MenuService {
	return &MenuService{repo: repo}
}

func validateMenuItem(m domain.MenuItem) error {
	if strings.TrimSpace(m.Name) == "" {
		return domain.NewValidationError("name", "is required")
	}
	if m.Price.IsNegative() {
		return domain.NewValidationError("price", "must not be negative")
	}
	if m.PrepMinutes < 0 {
		return domain.NewValidationError("prep_minutes", "must not be negative")
	}
	return nil
}

func (s *MenuService) Create(ctx context.Context, m domain.MenuItem) (*domain.MenuItem, error) {
	if err := validateMenuItem(m); err != nil {
		return nil, err
	}
	cp := m
	if err := s.repo.Create(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *MenuService) GetByID(ctx context.Context, id string) (*domain.MenuItem, error) {
	if id == "" {
		return nil, domain.NewValidationError("id", "is required")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *MenuService) Update(ctx context.Context, m domain.MenuItem) (*domain.MenuItem, error) {
	if m.ID == "" {
		return nil, domain.NewValidationError("id", "is required")
	}
	if err := validateMenuItem(m); err != nil {
		return nil, err
	}
	cp := m
	if err := s.repo.Update(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *MenuService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return domain.NewValidationError("id", "is required")
	}
	return s.repo.Delete(ctx, id)
}

func (s *MenuService) List(ctx context.Context, f repository.MenuFilter) ([]domain.MenuItem, error) {
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return nil, domain.NewValidationError("min_price", "must not exceed max_price")
	}
	return s.repo.List(ctx, f)
}
