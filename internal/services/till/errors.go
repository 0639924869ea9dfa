package till

import (
	"errors"
	"fmt"
)

// ErrEmptyOrder is returned by Settle when the order has no lines.
var ErrEmptyOrder = errors.New("order has no lines")

// ErrUnknownProduct is returned when a product id is not priced in the
// active category.
var ErrUnknownProduct = errors.New("product not found in category")

// LedgerAppendError reports a failed ledger write. The order is left as it was
// so the cashier can retry.
type LedgerAppendError struct {
	Err error
}

func (e *LedgerAppendError) Error() string {
	return fmt.Sprintf("append sale to ledger: %v", e.Err)
}

func (e *LedgerAppendError) Unwrap() error { return e.Err }

// CatalogFetchError reports a failed catalog read.
type CatalogFetchError struct {
	Op  string
	Err error
}

func (e *CatalogFetchError) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *CatalogFetchError) Unwrap() error { return e.Err }
