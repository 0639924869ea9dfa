package catalog

import (
	"context"
	"sync"
	"time"

	"bar-pos/internal/logger"
	"bar-pos/internal/models"
	"bar-pos/internal/services/till"
)

// Cache keeps a full snapshot of a provider's catalog in memory. Readers are
// served from the snapshot; Refresh replaces it.
type Cache struct {
	source till.CatalogProvider
	logger *logger.Logger
	now    func() time.Time

	// held across fetch and swap so snapshots commit in fetch order
	refreshMu sync.Mutex

	mu          sync.RWMutex
	loaded      bool
	categories  []models.Category
	products    []models.PricedProduct
	version     uint64
	refreshedAt time.Time
}

func NewCache(source till.CatalogProvider, log *logger.Logger) *Cache {
	return &Cache{
		source: source,
		logger: log,
		now:    time.Now,
	}
}

// Refresh reloads the snapshot. On failure the previous snapshot is kept and
// a *till.CatalogFetchError is returned.
func (c *Cache) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Cache) refreshLocked(ctx context.Context) error {
	categories, err := c.source.ListCategories(ctx)
	if err != nil {
		return c.fetchFailed("list categories", err)
	}
	products, err := c.source.ListProducts(ctx, models.ProductFilter{})
	if err != nil {
		return c.fetchFailed("list products", err)
	}

	c.mu.Lock()
	c.categories = categories
	c.products = products
	c.loaded = true
	c.version++
	c.refreshedAt = c.now()
	version := c.version
	c.mu.Unlock()

	c.logger.Info("catalog_refreshed", "Catalog snapshot reloaded", "", map[string]interface{}{
		"version":    version,
		"categories": len(categories),
		"products":   len(products),
	})
	return nil
}

func (c *Cache) fetchFailed(op string, err error) error {
	fetchErr := &till.CatalogFetchError{Op: op, Err: err}
	c.logger.Error("catalog_refresh_failed", "Keeping previous catalog snapshot", "", fetchErr, map[string]interface{}{
		"version": c.Version(),
	})
	return fetchErr
}

func (c *Cache) isLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *Cache) ensureLoaded(ctx context.Context) error {
	if c.isLoaded() {
		return nil
	}
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	if c.isLoaded() {
		return nil
	}
	return c.refreshLocked(ctx)
}

func (c *Cache) ListCategories(ctx context.Context) ([]models.Category, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Category, len(c.categories))
	copy(out, c.categories)
	return out, nil
}

func (c *Cache) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.PricedProduct, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.FilterProducts(c.products, filter), nil
}

// Version counts successful refreshes.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// RefreshedAt is the time of the last successful refresh, zero if none.
func (c *Cache) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}
