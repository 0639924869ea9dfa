package till

import (
	"context"
	"errors"
	"sort"
	"time"

	"bar-pos/internal/logger"
	"bar-pos/internal/models"
)

// CatalogProvider supplies categories and priced products.
type CatalogProvider interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.PricedProduct, error)
}

// SalesLedger is the append-only store settled orders are written to.
type SalesLedger interface {
	Append(ctx context.Context, record models.SalesRecord) error
}

// Engine owns the order being built at one till. It is not safe for
// concurrent use; callers serialise cashier actions.
type Engine struct {
	catalog CatalogProvider
	ledger  SalesLedger
	logger  *logger.Logger
	now     func() time.Time

	lines       map[string]*models.OrderLine
	payment     models.Money
	categoryKey string

	// last name seen per product id, used when the catalog cannot be reached
	knownNames map[string]string

	total  models.Money
	change models.Money
}

type Option func(*Engine)

// WithClock overrides the settlement clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(log *logger.Logger) Option {
	return func(e *Engine) { e.logger = log }
}

// NewEngine creates an engine with an empty order in categoryKey.
func NewEngine(catalog CatalogProvider, ledger SalesLedger, categoryKey string, opts ...Option) *Engine {
	e := &Engine{
		catalog:     catalog,
		ledger:      ledger,
		logger:      logger.Discard(),
		now:         time.Now,
		lines:       make(map[string]*models.OrderLine),
		categoryKey: categoryKey,
		knownNames:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddItem adds one unit of product, capturing its price on first add.
func (e *Engine) AddItem(product models.PricedProduct) {
	if product.Name != "" {
		e.knownNames[product.ID] = product.Name
	}
	if line, ok := e.lines[product.ID]; ok {
		line.Quantity++
	} else {
		e.lines[product.ID] = &models.OrderLine{
			ProductID: product.ID,
			UnitPrice: product.UnitPrice,
			Quantity:  1,
		}
	}
	e.recompute()
}

// IncrementLine adds one unit to an existing line. Unknown ids are ignored.
func (e *Engine) IncrementLine(productID string) {
	line, ok := e.lines[productID]
	if !ok {
		return
	}
	line.Quantity++
	e.recompute()
}

// DecrementLine removes one unit, dropping the line when it reaches zero.
// Unknown ids are ignored.
func (e *Engine) DecrementLine(productID string) {
	line, ok := e.lines[productID]
	if !ok {
		return
	}
	if line.Quantity <= 1 {
		delete(e.lines, productID)
	} else {
		line.Quantity--
	}
	e.recompute()
}

// SetPaymentAmount records what the customer handed over. Input that does
// not parse counts as zero.
func (e *Engine) SetPaymentAmount(raw string) {
	e.payment = models.ParseMoney(raw)
	e.recompute()
}

// SelectCategory switches the active price list. Lines already in the order
// keep the price they were added at.
func (e *Engine) SelectCategory(key string) {
	e.categoryKey = key
}

// Clear empties the order and resets the payment.
func (e *Engine) Clear() {
	e.lines = make(map[string]*models.OrderLine)
	e.payment = models.Zero
	e.recompute()
}

func (e *Engine) recompute() {
	total := models.Zero
	for _, line := range e.lines {
		total = total.Add(line.LineTotal())
	}
	e.total = total
	e.change = e.payment.SubFloor(total)
}

func (e *Engine) Total() models.Money         { return e.total }
func (e *Engine) Change() models.Money        { return e.change }
func (e *Engine) PaymentAmount() models.Money { return e.payment }
func (e *Engine) CategoryKey() string         { return e.categoryKey }
func (e *Engine) IsEmpty() bool               { return len(e.lines) == 0 }

// Lines returns copies of the order lines sorted by product id.
func (e *Engine) Lines() []models.OrderLine {
	ids := e.sortedIDs()
	out := make([]models.OrderLine, 0, len(ids))
	for _, id := range ids {
		out = append(out, *e.lines[id])
	}
	return out
}

// Line returns the line for productID, if present.
func (e *Engine) Line(productID string) (models.OrderLine, bool) {
	line, ok := e.lines[productID]
	if !ok {
		return models.OrderLine{}, false
	}
	return *line, true
}

// View renders the order using the last known product names.
func (e *Engine) View() models.OrderView {
	view := models.OrderView{
		Lines:         make([]models.OrderLineView, 0, len(e.lines)),
		Total:         e.total,
		PaymentAmount: e.payment,
		Change:        e.change,
		CategoryKey:   e.categoryKey,
	}
	for _, line := range e.Lines() {
		view.Lines = append(view.Lines, models.OrderLineView{
			ProductID: line.ProductID,
			Name:      e.fallbackName(line.ProductID),
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			LineTotal: line.LineTotal(),
		})
	}
	return view
}

// LookupProduct finds productID in the active category.
func (e *Engine) LookupProduct(ctx context.Context, productID string) (models.PricedProduct, error) {
	products, err := e.catalog.ListProducts(ctx, models.ProductFilter{CategoryKey: e.categoryKey})
	if err != nil {
		return models.PricedProduct{}, &CatalogFetchError{Op: "list products", Err: err}
	}
	for _, p := range products {
		if p.ID == productID {
			return p, nil
		}
	}
	return models.PricedProduct{}, ErrUnknownProduct
}

// Settle turns the order into a sales record and appends it to the ledger.
// The order is cleared only after the ledger accepted the record.
func (e *Engine) Settle(ctx context.Context) (models.SalesRecord, error) {
	if e.IsEmpty() {
		return models.SalesRecord{}, ErrEmptyOrder
	}

	names := e.resolveNames(ctx)

	ids := e.sortedIDs()
	descriptions := make([]string, 0, len(ids))
	for _, id := range ids {
		line := e.lines[id]
		descriptions = append(descriptions, models.DescribeLine(names[id], line.Quantity, line.LineTotal()))
	}

	e.recompute()
	record := models.SalesRecord{
		LineDescriptions: descriptions,
		Total:            e.total,
		CategoryKey:      e.categoryKey,
		Timestamp:        models.FormatTimestamp(e.now()),
		PaymentAmount:    e.payment,
		Change:           e.change,
	}

	if err := e.ledger.Append(ctx, record); err != nil {
		return models.SalesRecord{}, &LedgerAppendError{Err: err}
	}

	e.Clear()
	return record, nil
}

// resolveNames maps every line to a display name, preferring the catalog's
// current name. Catalog failures fall back to the last known name.
func (e *Engine) resolveNames(ctx context.Context) map[string]string {
	names := make(map[string]string, len(e.lines))

	products, err := e.catalog.ListProducts(ctx, models.ProductFilter{CategoryKey: e.categoryKey})
	if err != nil {
		fetchErr := &CatalogFetchError{Op: "resolve names", Err: err}
		e.logger.Error("catalog_fetch_failed", "Falling back to last known product names", "", fetchErr, map[string]interface{}{
			"category_key": e.categoryKey,
			"line_count":   len(e.lines),
		})
	}
	for _, p := range products {
		if _, inOrder := e.lines[p.ID]; inOrder && p.Name != "" {
			names[p.ID] = p.Name
			e.knownNames[p.ID] = p.Name
		}
	}

	for id := range e.lines {
		if _, ok := names[id]; !ok {
			names[id] = e.fallbackName(id)
		}
	}
	return names
}

func (e *Engine) fallbackName(productID string) string {
	if name, ok := e.knownNames[productID]; ok {
		return name
	}
	return productID
}

func (e *Engine) sortedIDs() []string {
	ids := make([]string, 0, len(e.lines))
	for id := range e.lines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsCatalogError reports whether err came from the catalog.
func IsCatalogError(err error) bool {
	var fetchErr *CatalogFetchError
	return errors.As(err, &fetchErr)
}
