package delivery

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"canteen/internal/domain"
)

const minTokenLength = 16

// Message конверт для push-воркера
type Message struct {
	Recipient    string              `json:"recipient"`
	Notification domain.Notification `json:"notification"`
}

// ValidateRecipient отсекает заведомо негодные адреса
func ValidateRecipient(recipient string) error {
	if len(recipient) < minTokenLength {
		return fmt.Errorf("%w: token too short", domain.ErrInvalidRecipient)
	}
	if strings.IndexFunc(recipient, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: token contains whitespace", domain.ErrInvalidRecipient)
	}
	return nil
}

// LogSender пишет уведомления в лог вместо отправки
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender { return &LogSender{log: log} }

func (s *LogSender) Deliver(ctx context.Context, recipient string, n domain.Notification) error {
	if err := ValidateRecipient(recipient); err != nil {
		return err
	}
	s.log.Info("push notification",
		zap.String("order_id", n.Data.OrderID),
		zap.String("queue_number", n.Data.QueueNumber),
		zap.String("type", n.Data.Type),
		zap.String("title", n.Title),
	)
	return nil
}
