package models

import (
	"fmt"
	"time"
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// OrderLine is one product in the order being built. UnitPrice is captured
// when the product is first added and never follows later catalog edits.
type OrderLine struct {
	ProductID string `json:"productId"`
	UnitPrice Money  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

func (l OrderLine) LineTotal() Money {
	return l.UnitPrice.Times(l.Quantity)
}

// OrderLineView is an OrderLine with its display name and line total.
type OrderLineView struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice Money  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	LineTotal Money  `json:"lineTotal"`
}

// OrderView is a read-only snapshot of the order being built.
type OrderView struct {
	Lines         []OrderLineView `json:"lines"`
	Total         Money           `json:"total"`
	PaymentAmount Money           `json:"paymentAmount"`
	Change        Money           `json:"change"`
	CategoryKey   string          `json:"categoryKey"`
}

// SalesRecord is a settled order as stored in the sales ledger.
type SalesRecord struct {
	LineDescriptions []string `json:"lineDescriptions"`
	Total            Money    `json:"total"`
	CategoryKey      string   `json:"categoryKey"`
	Timestamp        string   `json:"timestamp"`
	PaymentAmount    Money    `json:"paymentAmount"`
	Change           Money    `json:"change"`
}

// FormatTimestamp renders t in the ledger timestamp layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// SoldAt parses the record timestamp.
func (r SalesRecord) SoldAt() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, r.Timestamp)
}

// DescribeLine renders a ledger line, e.g. "Caña x 2 = 5.00€".
func DescribeLine(name string, quantity int, lineTotal Money) string {
	return fmt.Sprintf("%s x %d = %s€", name, quantity, lineTotal)
}
