package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"bar-pos/internal/logger"
	"bar-pos/internal/models"
)

// ChangesChannel is the NOTIFY channel the catalog triggers write to.
const ChangesChannel = "catalog_changes"

// NotificationSource delivers Postgres notifications. *pgx.Conn satisfies it.
type NotificationSource interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

// ChangePublisher broadcasts catalog changes to the tills.
type ChangePublisher interface {
	PublishCatalogChange(ctx context.Context, msg *models.CatalogChangedMessage) error
}

// Bridge forwards database catalog notifications to the broker.
type Bridge struct {
	source    NotificationSource
	publisher ChangePublisher
	logger    *logger.Logger
}

func NewBridge(source NotificationSource, publisher ChangePublisher, log *logger.Logger) *Bridge {
	return &Bridge{
		source:    source,
		publisher: publisher,
		logger:    log,
	}
}

// Run forwards notifications until ctx is done or the connection fails.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info("bridge_started", "Forwarding catalog notifications", "", map[string]interface{}{
		"channel": ChangesChannel,
	})

	for {
		n, err := b.source.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				b.logger.Info("bridge_stopped", "Catalog bridge stopped", "", nil)
				return ctx.Err()
			}
			return fmt.Errorf("failed to wait for notification: %w", err)
		}
		if n.Channel != ChangesChannel {
			continue
		}
		b.forward(ctx, n.Payload)
	}
}

func (b *Bridge) forward(ctx context.Context, payload string) {
	requestID := logger.GenerateRequestID()

	var msg models.CatalogChangedMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		b.logger.Error("catalog_notification_invalid", "Skipping unparsable notification", requestID, err, map[string]interface{}{
			"payload": payload,
		})
		return
	}
	if err := msg.Validate(); err != nil {
		b.logger.Error("catalog_notification_invalid", "Skipping invalid notification", requestID, err, map[string]interface{}{
			"payload": payload,
		})
		return
	}

	if err := b.publisher.PublishCatalogChange(ctx, &msg); err != nil {
		b.logger.Error("catalog_publish_failed", "Failed to broadcast catalog change", requestID, err, map[string]interface{}{
			"entity":    msg.Entity,
			"entity_id": msg.EntityID,
		})
		return
	}

	b.logger.Debug("catalog_change_forwarded", "Catalog change broadcast", requestID, map[string]interface{}{
		"entity":    msg.Entity,
		"entity_id": msg.EntityID,
		"action":    msg.Action,
	})
}
