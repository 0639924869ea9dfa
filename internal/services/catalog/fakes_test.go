package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"bar-pos/internal/models"
)

var errUnavailable = errors.New("catalog unavailable")

// fakeRows serves canned string rows through the pgx.Rows interface.
type fakeRows struct {
	rows [][]string
	pos  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		s, ok := d.(*string)
		if !ok {
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
		*s = row[i]
	}
	return nil
}

func (r *fakeRows) Values() ([]any, error) {
	row := r.rows[r.pos-1]
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out, nil
}

type queryCall struct {
	sql  string
	args []interface{}
}

type fakeQuerier struct {
	rows  [][]string
	err   error
	calls []queryCall
}

func (q *fakeQuerier) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not implemented")
}

func (q *fakeQuerier) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	q.calls = append(q.calls, queryCall{sql: sql, args: args})
	if q.err != nil {
		return nil, q.err
	}
	return &fakeRows{rows: q.rows}, nil
}

func (q *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return nil
}

// fakeSource is an in-memory catalog provider.
type fakeSource struct {
	mu         sync.Mutex
	categories []models.Category
	products   []models.PricedProduct
	err        error
	calls      int
}

func (s *fakeSource) ListCategories(ctx context.Context) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.Category(nil), s.categories...), nil
}

func (s *fakeSource) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.PricedProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return models.FilterProducts(s.products, filter), nil
}

func (s *fakeSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeSource) setProducts(products ...models.PricedProduct) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = products
}

func product(id, name, typ, category, price string) models.PricedProduct {
	return models.PricedProduct{
		ID:          id,
		Name:        name,
		Type:        typ,
		CategoryKey: category,
		UnitPrice:   models.MustMoney(price),
	}
}

type fakeRefresher struct {
	err   error
	calls int
}

func (r *fakeRefresher) Refresh(ctx context.Context) error {
	r.calls++
	return r.err
}

type fakeChangePublisher struct {
	published []*models.CatalogChangedMessage
	err       error
}

func (p *fakeChangePublisher) PublishCatalogChange(ctx context.Context, msg *models.CatalogChangedMessage) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, msg)
	return nil
}

// fakeNotifications replays notifications, then blocks until ctx is done.
type fakeNotifications struct {
	queue []*pgconn.Notification
	err   error
}

func (n *fakeNotifications) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	if len(n.queue) > 0 {
		next := n.queue[0]
		n.queue = n.queue[1:]
		return next, nil
	}
	if n.err != nil {
		return nil, n.err
	}
	<-ctx.Done()
	return nil, ctx.Err()
}
