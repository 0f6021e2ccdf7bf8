package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MenuItem позиция меню столовой
type MenuItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category,omitempty"`
	Price       decimal.Decimal `json:"price"`
	PrepMinutes int             `json:"prep_minutes,omitempty"`
	Available   bool            `json:"available"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
