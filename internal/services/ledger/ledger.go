// Package ledger stores settled orders.
package ledger

import (
	"context"

	"bar-pos/internal/models"
)

// Recorder appends a sale and returns the id it was stored under.
type Recorder interface {
	Record(ctx context.Context, record models.SalesRecord) (string, error)
}
