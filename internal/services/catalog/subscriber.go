package catalog

import (
	"context"

	"bar-pos/internal/logger"
	"bar-pos/internal/messaging"
	"bar-pos/internal/models"
)

// Refresher reloads a catalog snapshot.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Subscriber refreshes the till's catalog whenever a change is broadcast.
type Subscriber struct {
	consumer *messaging.Consumer
	cache    Refresher
	logger   *logger.Logger
}

func NewSubscriber(consumer *messaging.Consumer, cache Refresher, log *logger.Logger) *Subscriber {
	return &Subscriber{
		consumer: consumer,
		cache:    cache,
		logger:   log,
	}
}

// Start consumes change messages until ctx is done.
func (s *Subscriber) Start(ctx context.Context) error {
	return s.consumer.StartConsuming(ctx, s.handleChange)
}

// handleChange acks malformed messages so they are not redelivered forever.
// A failed refresh is returned so the message is requeued.
func (s *Subscriber) handleChange(ctx context.Context, body []byte) error {
	requestID := logger.GenerateRequestID()

	var msg models.CatalogChangedMessage
	if err := messaging.ParseMessage(body, &msg); err != nil {
		s.logger.Error("catalog_message_invalid", "Dropping unparsable catalog message", requestID, err, nil)
		return nil
	}
	if err := msg.Validate(); err != nil {
		s.logger.Error("catalog_message_invalid", "Dropping invalid catalog message", requestID, err, nil)
		return nil
	}

	s.logger.Debug("catalog_change_received", "Catalog changed, refreshing", requestID, map[string]interface{}{
		"entity":    msg.Entity,
		"entity_id": msg.EntityID,
		"action":    msg.Action,
	})

	return s.cache.Refresh(ctx)
}

// Close stops the consumer.
func (s *Subscriber) Close() error {
	if s.consumer == nil {
		return nil
	}
	return s.consumer.Close()
}
