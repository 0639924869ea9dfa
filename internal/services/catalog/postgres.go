package catalog

import (
	"context"
	"fmt"

	"bar-pos/internal/database"
	"bar-pos/internal/models"
)

// PostgresProvider reads categories and prices from the catalog tables.
type PostgresProvider struct {
	db database.Querier
}

func NewPostgresProvider(db database.Querier) *PostgresProvider {
	return &PostgresProvider{db: db}
}

// ListCategories returns categories in creation order.
func (p *PostgresProvider) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := p.db.Query(ctx, database.ListCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read categories: %w", err)
	}
	return categories, nil
}

// ListProducts returns the priced products matching filter, ordered by name.
func (p *PostgresProvider) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.PricedProduct, error) {
	rows, err := p.db.Query(ctx, database.ListProductsSQL,
		filter.CategoryKey,
		filter.TypeTag,
		database.ContainsPattern(filter.TextQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []models.PricedProduct
	for rows.Next() {
		var (
			pp    models.PricedProduct
			price string
		)
		if err := rows.Scan(&pp.ID, &pp.Name, &pp.Type, &pp.CategoryKey, &price); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		pp.UnitPrice, err = models.MoneyFromString(price)
		if err != nil {
			return nil, fmt.Errorf("product %s has invalid price %q: %w", pp.ID, price, err)
		}
		products = append(products, pp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}
	return products, nil
}
