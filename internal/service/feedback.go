package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"canteen/internal/domain"
	"canteen/internal/repository"
)

type SubmitFeedbackInput struct {
	OrderID    string
	CustomerID string
	Rating     int
	Message    string
}

// FeedbackService отзывы о выданных заказах
type FeedbackService struct {
	feedback repository.FeedbackRepository
	orders   repository.OrderRepository
	log      *zap.Logger
	now      func() time.Time
}

func NewFeedbackService(feedback repository.FeedbackRepository, orders repository.OrderRepository, log *zap.Logger) *FeedbackService {
	if log == nil {
		log = zap.NewNop()
	}
	return &FeedbackService{
		feedback: feedback,
		orders:   orders,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Submit принимает отзыв только от владельца заказа и только после выдачи
func (s *FeedbackService) Submit(ctx context.Context, in SubmitFeedbackInput) (*domain.Feedback, error) {
	if strings.TrimSpace(in.OrderID) == "" {
		return nil, domain.NewValidationError("order_id", "is required")
	}
	if strings.TrimSpace(in.CustomerID) == "" {
		return nil, domain.NewValidationError("customer_id", "is required")
	}
	f := domain.Feedback{
		OrderID:    in.OrderID,
		CustomerID: in.CustomerID,
		Rating:     in.Rating,
		Message:    in.Message,
	}
	if err := f.Normalize(); err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != in.CustomerID {
		return nil, domain.NewValidationError("customer_id", "does not match the order")
	}
	if o.State != domain.OrderStateCompleted {
		return nil, fmt.Errorf("%w: order %s is %s, feedback needs %s",
			domain.ErrInvalidTransition, o.ID, o.State, domain.OrderStateCompleted)
	}
	f.CreatedAt = s.now()
	if err := s.feedback.Create(ctx, &f); err != nil {
		return nil, err
	}
	s.log.Info("feedback received",
		zap.String("order_id", f.OrderID),
		zap.Int("rating", f.Rating))
	return &f, nil
}

func (s *FeedbackService) Exists(ctx context.Context, orderID string) (bool, error) {
	_, err := s.feedback.GetByOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *FeedbackService) GetByOrder(ctx context.Context, orderID string) (*domain.Feedback, error) {
	return s.feedback.GetByOrder(ctx, orderID)
}

func (s *FeedbackService) List(ctx context.Context) ([]domain.Feedback, error) {
	return s.feedback.List(ctx)
}

// FavoritesService избранные позиции меню
type FavoritesService struct {
	favorites repository.FavoriteRepository
	menu      repository.MenuRepository
}

func NewFavoritesService(favorites repository.FavoriteRepository, menu repository.MenuRepository) *FavoritesService {
	return &FavoritesService{favorites: favorites, menu: menu}
}

func (s *FavoritesService) List(ctx context.Context, customerID string) ([]string, error) {
	if customerID == "" {
		return nil, domain.NewValidationError("customer_id", "is required")
	}
	return s.favorites.List(ctx, customerID)
}

// Add позиция должна быть в меню
func (s *FavoritesService) Add(ctx context.Context, customerID, menuItemID string) error {
	if customerID == "" {
		return domain.NewValidationError("customer_id", "is required")
	}
	if menuItemID == "" {
		return domain.NewValidationError("menu_item_id", "is required")
	}
	if _, err := s.menu.GetByID(ctx, menuItemID); err != nil {
		return err
	}
	return s.favorites.Add(ctx, customerID, menuItemID)
}

func (s *FavoritesService) Remove(ctx context.Context, customerID, menuItemID string) error {
	if customerID == "" || menuItemID == "" {
		return domain.NewValidationError("menu_item_id", "is required")
	}
	return s.favorites.Remove(ctx, customerID, menuItemID)
}

func (s *FavoritesService) IsFavorite(ctx context.Context, customerID, menuItemID string) (bool, error) {
	list, err := s.List(ctx, customerID)
	if err != nil {
		return false, err
	}
	for _, id := range list {
		if id == menuItemID {
			return true, nil
		}
	}
	return false, nil
}
