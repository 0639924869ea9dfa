package ledger

import (
	"context"

	"bar-pos/internal/logger"
	"bar-pos/internal/models"
)

// SalePublisher broadcasts recorded sales.
type SalePublisher interface {
	PublishSaleRecorded(ctx context.Context, msg *models.SaleRecordedMessage) error
}

// Notifying records through next and then announces the sale. A failed
// announcement is logged only; the sale is already stored.
type Notifying struct {
	next      Recorder
	publisher SalePublisher
	logger    *logger.Logger
}

func NewNotifying(next Recorder, publisher SalePublisher, log *logger.Logger) *Notifying {
	return &Notifying{next: next, publisher: publisher, logger: log}
}

func (n *Notifying) Append(ctx context.Context, record models.SalesRecord) error {
	_, err := n.Record(ctx, record)
	return err
}

func (n *Notifying) Record(ctx context.Context, record models.SalesRecord) (string, error) {
	id, err := n.next.Record(ctx, record)
	if err != nil {
		return "", err
	}

	msg := models.CreateSaleRecordedMessage(id, record)
	if err := n.publisher.PublishSaleRecorded(ctx, msg); err != nil {
		n.logger.Error("sale_publish_failed", "Sale stored but not announced", "", err, map[string]interface{}{
			"sale_id": id,
		})
	}
	return id, nil
}
