package till

import (
	"context"
	"errors"
	"sync"

	"bar-pos/internal/models"
)

type fakeCatalog struct {
	mu         sync.Mutex
	categories []models.Category
	products   []models.PricedProduct
	err        error
	calls      int
}

func newFakeCatalog(products ...models.PricedProduct) *fakeCatalog {
	return &fakeCatalog{
		categories: []models.Category{{ID: "1", Name: models.CategoryNormal}, {ID: "2", Name: models.CategoryFiestas}},
		products:   products,
	}
}

func (c *fakeCatalog) ListCategories(ctx context.Context) ([]models.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return append([]models.Category(nil), c.categories...), nil
}

func (c *fakeCatalog) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.PricedProduct, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return models.FilterProducts(c.products, filter), nil
}

func (c *fakeCatalog) setPrice(id, categoryKey string, price models.Money) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.products {
		if c.products[i].ID == id && c.products[i].CategoryKey == categoryKey {
			c.products[i].UnitPrice = price
		}
	}
}

func (c *fakeCatalog) rename(id, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.products {
		if c.products[i].ID == id {
			c.products[i].Name = name
		}
	}
}

func (c *fakeCatalog) product(id, categoryKey string) models.PricedProduct {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.products {
		if p.ID == id && p.CategoryKey == categoryKey {
			return p
		}
	}
	return models.PricedProduct{}
}

type fakeLedger struct {
	mu      sync.Mutex
	records []models.SalesRecord
	err     error
}

func (l *fakeLedger) Append(ctx context.Context, record models.SalesRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.records = append(l.records, record)
	return nil
}

func (l *fakeLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func (l *fakeLedger) last() models.SalesRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records[len(l.records)-1]
}

var errUnavailable = errors.New("backend unavailable")

func product(id, name, typ, category, price string) models.PricedProduct {
	return models.PricedProduct{
		ID:          id,
		Name:        name,
		Type:        typ,
		CategoryKey: category,
		UnitPrice:   models.MustMoney(price),
	}
}
