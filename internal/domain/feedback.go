package domain

import (
	"strings"
	"time"
)

const (
	MinRating = 1
	MaxRating = 5
	// MaxFeedbackMessage в символах
	MaxFeedbackMessage = 1000
)

// Feedback отзыв покупателя о выданном заказе, не больше одного на заказ
type Feedback struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	Rating     int       `json:"rating"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// Normalize обрезает пробелы в сообщении и проверяет оценку
func (f *Feedback) Normalize() error {
	f.Message = strings.TrimSpace(f.Message)
	if f.Rating < MinRating || f.Rating > MaxRating {
		return NewValidationError("rating", "must be between 1 and 5")
	}
	if len([]rune(f.Message)) > MaxFeedbackMessage {
		return NewValidationError("message", "is too long")
	}
	return nil
}
