package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"canteen/internal/domain"
)

var (
	// ErrNotFound возвращается, когда сущность не найдена
	ErrNotFound = errors.New("not found")
	// ErrConflict конкурентная запись в те же документы; транзакцию можно повторить
	ErrConflict = errors.New("write conflict")
	// ErrAlreadyExists запись с тем же ключом уже сохранена
	ErrAlreadyExists = errors.New("already exists")
)

// OrderFilter параметры выборки заказов. Пустые поля не фильтруют.
type OrderFilter struct {
	CustomerID    string
	States        []domain.OrderState
	PaymentStates []domain.PaymentState
	QueueBatch    string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

func (f OrderFilter) Match(o domain.Order) bool {
	if f.CustomerID != "" && o.CustomerID != f.CustomerID {
		return false
	}
	if len(f.States) > 0 && !containsState(f.States, o.State) {
		return false
	}
	if len(f.PaymentStates) > 0 && !containsPayment(f.PaymentStates, o.PaymentState) {
		return false
	}
	if f.QueueBatch != "" && o.QueueBatch != f.QueueBatch {
		return false
	}
	if f.CreatedFrom != nil && o.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && !o.CreatedAt.Before(*f.CreatedTo) {
		return false
	}
	return true
}

// OrderRepository интерфейс репозитория заказов
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	Update(ctx context.Context, o *domain.Order) error
	// UpdateIfState пишет заказ, только если в хранилище он всё ещё в expected.
	// Иначе domain.ErrInvalidTransition и хранилище не меняется.
	UpdateIfState(ctx context.Context, o *domain.Order, expected domain.OrderState) error
	List(ctx context.Context, f OrderFilter) ([]domain.Order, error)
}

// CounterRepository счётчики номеров очереди по партиям. Отсутствующий счётчик равен 0.
type CounterRepository interface {
	Get(ctx context.Context, batch string) (int64, error)
	Set(ctx context.Context, batch string, value int64) error
}

// RecipientRepository токены устройств покупателей
type RecipientRepository interface {
	Get(ctx context.Context, customerID string) (string, error)
	Set(ctx context.Context, customerID, token string) error
	// Clear удаляет токен, только если сохранён именно он
	Clear(ctx context.Context, customerID, token string) error
}

// MenuFilter параметры фильтрации меню
type MenuFilter struct {
	NameSubstring string
	Category      string
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	OnlyAvailable bool
}

func (f MenuFilter) Match(m domain.MenuItem) bool {
	if !containsIgnoreCase(m.Name, f.NameSubstring) {
		return false
	}
	if f.Category != "" && !strings.EqualFold(m.Category, f.Category) {
		return false
	}
	if f.MinPrice != nil && m.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && m.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.OnlyAvailable && !m.Available {
		return false
	}
	return true
}

// MenuRepository интерфейс репозитория меню
type MenuRepository interface {
	Create(ctx context.Context, m *domain.MenuItem) error
	GetByID(ctx context.Context, id string) (*domain.MenuItem, error)
	Update(ctx context.Context, m *domain.MenuItem) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f MenuFilter) ([]domain.MenuItem, error)
}

// FeedbackRepository отзывы о заказах, один на заказ
type FeedbackRepository interface {
	// Create возвращает ErrAlreadyExists, если отзыв на заказ уже есть
	Create(ctx context.Context, f *domain.Feedback) error
	GetByOrder(ctx context.Context, orderID string) (*domain.Feedback, error)
	// List новые сверху
	List(ctx context.Context) ([]domain.Feedback, error)
}

// FavoriteRepository избранные позиции меню покупателя.
// Add и Remove идемпотентны.
type FavoriteRepository interface {
	List(ctx context.Context, customerID string) ([]string, error)
	Add(ctx context.Context, customerID, menuItemID string) error
	Remove(ctx context.Context, customerID, menuItemID string) error
}

// TxManager абстракция транзакции: всё или ничего, повтор при ErrConflict.
// Репозитории находят транзакцию в ctx.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ChangeFeed поток полных снимков заказов, прошедших match
type ChangeFeed interface {
	Subscribe(ctx context.Context, match func(domain.Order) bool) (*Subscription, error)
}

// Store набор репозиториев одного хранилища
type Store struct {
	Orders     OrderRepository
	Counters   CounterRepository
	Recipients RecipientRepository
	Menu       MenuRepository
	Feedback   FeedbackRepository
	Favorites  FavoriteRepository
	Tx         TxManager
	Feed       ChangeFeed
	// Run фоновая доставка изменений (nil, если хранилище публикует само)
	Run        func(ctx context.Context) error
	Close      func(ctx context.Context) error
}

// StateMismatch ошибка условной записи UpdateIfState
func StateMismatch(id string, expected, actual domain.OrderState) error {
	return fmt.Errorf("%w: order %s is %s, expected %s", domain.ErrInvalidTransition, id, actual, expected)
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func containsState(list []domain.OrderState, s domain.OrderState) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsPayment(list []domain.PaymentState, p domain.PaymentState) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}

func sortFeedback(list []domain.Feedback) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
}

func sortMenu(items []domain.MenuItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Category != items[j].Category {
			return items[i].Category < items[j].Category
		}
		return items[i].Name < items[j].Name
	})
}
