package ledger

import (
	"context"
	"fmt"

	"bar-pos/internal/database"
	"bar-pos/internal/logger"
	"bar-pos/internal/models"
)

// PostgresLedger appends sales to the sales table.
type PostgresLedger struct {
	db     database.Querier
	logger *logger.Logger
}

func NewPostgresLedger(db database.Querier, log *logger.Logger) *PostgresLedger {
	return &PostgresLedger{db: db, logger: log}
}

// Append stores record in a single insert.
func (l *PostgresLedger) Append(ctx context.Context, record models.SalesRecord) error {
	_, err := l.Record(ctx, record)
	return err
}

func (l *PostgresLedger) Record(ctx context.Context, record models.SalesRecord) (string, error) {
	soldAt, err := record.SoldAt()
	if err != nil {
		return "", fmt.Errorf("invalid sale timestamp %q: %w", record.Timestamp, err)
	}

	descriptions := record.LineDescriptions
	if descriptions == nil {
		descriptions = []string{}
	}

	var id string
	err = l.db.QueryRow(ctx, database.InsertSaleSQL,
		descriptions,
		record.Total.String(),
		record.CategoryKey,
		soldAt,
		record.PaymentAmount.String(),
		record.Change.String(),
	).Scan(&id)
	if err != nil {
		l.logger.Error("ledger_append_failed", "Failed to insert sale", "", err, map[string]interface{}{
			"total":        record.Total.String(),
			"category_key": record.CategoryKey,
		})
		return "", fmt.Errorf("failed to insert sale: %w", err)
	}

	l.logger.Info("sale_recorded", "Sale stored", "", map[string]interface{}{
		"sale_id":      id,
		"total":        record.Total.String(),
		"category_key": record.CategoryKey,
		"line_count":   len(record.LineDescriptions),
	})
	return id, nil
}
