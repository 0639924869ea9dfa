package database

// Migration bookkeeping
const (
	CreateMigrationsTableSQL = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			migration_name VARCHAR(255) NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`

	SelectAppliedMigrationsSQL = `SELECT migration_name FROM schema_migrations`

	InsertMigrationSQL = `INSERT INTO schema_migrations (migration_name) VALUES ($1)`
)

// Catalog queries. Prices travel as text so they can be parsed into exact
// decimals without going through float64.
const (
	ListCategoriesSQL = `
		SELECT id::text, name
		FROM categories
		ORDER BY created_at ASC, name ASC`

	// $1 category name ('' = any), $2 product type ('' or 'all' = any),
	// $3 LIKE pattern already escaped and wrapped in %.
	ListProductsSQL = `
		SELECT p.id::text, p.name, p.type, c.name, pp.price::text
		FROM product_prices pp
		JOIN products p ON p.id = pp.product_id
		JOIN categories c ON c.id = pp.category_id
		WHERE ($1::text = '' OR c.name = $1::text)
		  AND ($2::text = '' OR $2::text = 'all' OR p.type = $2::text)
		  AND p.name ILIKE $3::text ESCAPE '\'
		ORDER BY p.name ASC, c.name ASC`
)

// Sales ledger queries
const (
	InsertSaleSQL = `
		INSERT INTO sales (line_descriptions, total, category_key, sold_at, payment_amount, change_amount)
		VALUES ($1, $2::text::numeric, $3, $4, $5::text::numeric, $6::text::numeric)
		RETURNING id::text`
)
