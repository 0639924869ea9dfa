package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bar-pos/internal/localstore"
	"bar-pos/internal/logger"
	"bar-pos/internal/models"
)

// SalesKey is the store key holding the sales array.
const SalesKey = "sales"

// LocalLedger appends sales to the till's own storage.
type LocalLedger struct {
	store  *localstore.Store
	logger *logger.Logger
}

func NewLocalLedger(store *localstore.Store, log *logger.Logger) *LocalLedger {
	return &LocalLedger{store: store, logger: log}
}

func (l *LocalLedger) Append(ctx context.Context, record models.SalesRecord) error {
	_, err := l.Record(ctx, record)
	return err
}

// Record appends record to the sales array. The file is rewritten
// atomically, so a failed write leaves earlier sales intact.
func (l *LocalLedger) Record(ctx context.Context, record models.SalesRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var sales []models.SalesRecord
	err := l.store.Update(SalesKey, &sales, func() error {
		sales = append(sales, record)
		return nil
	})
	if err != nil {
		l.logger.Error("ledger_append_failed", "Failed to store sale", "", err, map[string]interface{}{
			"path": l.store.Path(),
		})
		return "", fmt.Errorf("failed to store sale: %w", err)
	}

	id := uuid.NewString()
	l.logger.Info("sale_recorded", "Sale stored", "", map[string]interface{}{
		"sale_id":      id,
		"total":        record.Total.String(),
		"category_key": record.CategoryKey,
		"sale_count":   len(sales),
	})
	return id, nil
}

// Sales returns every stored sale in append order.
func (l *LocalLedger) Sales() ([]models.SalesRecord, error) {
	var sales []models.SalesRecord
	err := l.store.Get(SalesKey, &sales)
	if errors.Is(err, localstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sales: %w", err)
	}
	return sales, nil
}
