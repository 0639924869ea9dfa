package models

import (
	"fmt"
	"time"
)

// CatalogChangedMessage is broadcast whenever a category, product or price
// changes. Receivers reload the whole catalog; the payload is informational.
type CatalogChangedMessage struct {
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	Action    string    `json:"action"`
	ChangedAt time.Time `json:"changed_at"`
}

// SaleRecordedMessage is broadcast after a sale has been appended to the ledger.
type SaleRecordedMessage struct {
	SaleID      string    `json:"sale_id"`
	Total       Money     `json:"total"`
	CategoryKey string    `json:"category_key"`
	LineCount   int       `json:"line_count"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// CreateSaleRecordedMessage creates a SaleRecordedMessage for a stored record
func CreateSaleRecordedMessage(saleID string, record SalesRecord) *SaleRecordedMessage {
	return &SaleRecordedMessage{
		SaleID:      saleID,
		Total:       record.Total,
		CategoryKey: record.CategoryKey,
		LineCount:   len(record.LineDescriptions),
		RecordedAt:  time.Now().UTC(),
	}
}

// Validate checks the fields a catalog subscriber relies on.
func (m CatalogChangedMessage) Validate() error {
	switch m.Entity {
	case "category", "product", "price":
	default:
		return fmt.Errorf("unknown catalog entity: %q", m.Entity)
	}
	return nil
}
