package notification

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"bar-pos/internal/logger"
	"bar-pos/internal/messaging"
	"bar-pos/internal/models"
)

// Subscriber prints every recorded sale it receives
type Subscriber struct {
	consumer *messaging.Consumer
	logger   *logger.Logger
	out      io.Writer
}

// NewSubscriber creates a new sales notification subscriber
func NewSubscriber(consumer *messaging.Consumer, logger *logger.Logger) *Subscriber {
	return &Subscriber{
		consumer: consumer,
		logger:   logger,
		out:      os.Stdout,
	}
}

// Start consumes sale notifications until ctx is cancelled
func (s *Subscriber) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()
	s.logger.Info("service_started", "Sales notifier started", requestID, nil)

	err := s.consumer.StartConsuming(ctx, s.handleNotification)
	if err != nil && ctx.Err() == nil {
		s.logger.Error("consumer_failed", "Sales consumer failed", requestID, err, nil)
		return err
	}

	s.logger.Info("graceful_shutdown", "Sales notifier stopped", requestID, nil)
	return nil
}

// handleNotification processes one sale notification. Malformed bodies are
// dropped so they are not redelivered forever.
func (s *Subscriber) handleNotification(ctx context.Context, body []byte) error {
	requestID := logger.GenerateRequestID()

	var sale models.SaleRecordedMessage
	if err := messaging.ParseMessage(body, &sale); err != nil {
		s.logger.Error("message_parsing_failed", "Failed to parse sale notification", requestID, err, nil)
		return nil
	}

	s.logger.Debug("notification_received", "Received sale notification", requestID, map[string]interface{}{
		"sale_id":      sale.SaleID,
		"category_key": sale.CategoryKey,
	})

	if _, err := fmt.Fprintln(s.out, formatNotification(&sale)); err != nil {
		return fmt.Errorf("failed to print notification: %w", err)
	}

	s.logger.Info("notification_displayed", "Sale notification displayed", requestID, map[string]interface{}{
		"sale_id":    sale.SaleID,
		"total":      sale.Total.String(),
		"line_count": sale.LineCount,
	})
	return nil
}

// formatNotification creates a human-readable line for a sale
func formatNotification(sale *models.SaleRecordedMessage) string {
	timestamp := sale.RecordedAt.Local().Format("2006-01-02 15:04:05")

	items := "items"
	if sale.LineCount == 1 {
		items = "item"
	}

	category := sale.CategoryKey
	if category == "" {
		category = models.CategoryNormal
	}

	return fmt.Sprintf("[%s] Sale %s: %d %s, total %s€ (%s prices)",
		timestamp, shortID(sale.SaleID), sale.LineCount, items, sale.Total, strings.ToLower(category))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Close stops the consumer
func (s *Subscriber) Close() error {
	if s.consumer == nil {
		return nil
	}
	return s.consumer.Close()
}
