package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bar-pos/internal/database"
	"bar-pos/internal/localstore"
	"bar-pos/internal/logger"
	"bar-pos/internal/models"
	"bar-pos/internal/services/till"
)

var (
	_ till.SalesLedger = (*PostgresLedger)(nil)
	_ till.SalesLedger = (*LocalLedger)(nil)
	_ till.SalesLedger = (*Notifying)(nil)
)

func sampleRecord() models.SalesRecord {
	return models.SalesRecord{
		LineDescriptions: []string{"Caña x 2 = 3.00€", "Tortilla x 1 = 2.50€"},
		Total:            models.MustMoney("5.50"),
		CategoryKey:      "normal",
		Timestamp:        "2024-06-01T21:30:00.000Z",
		PaymentAmount:    models.MustMoney("10.00"),
		Change:           models.MustMoney("4.50"),
	}
}

type fakeRow struct {
	id  string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.id
	return nil
}

type fakeQuerier struct {
	row  fakeRow
	sql  string
	args []interface{}
}

func (q *fakeQuerier) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not implemented")
}

func (q *fakeQuerier) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (q *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	q.sql = sql
	q.args = args
	return q.row
}

func TestPostgresLedger_Record(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{id: "0b8f"}}
	ledger := NewPostgresLedger(q, logger.Discard())

	id, err := ledger.Record(context.Background(), sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, "0b8f", id)

	assert.Equal(t, database.InsertSaleSQL, q.sql)
	require.Len(t, q.args, 6)
	assert.Equal(t, []string{"Caña x 2 = 3.00€", "Tortilla x 1 = 2.50€"}, q.args[0])
	assert.Equal(t, "5.50", q.args[1])
	assert.Equal(t, "normal", q.args[2])
	assert.True(t, q.args[3].(time.Time).Equal(time.Date(2024, 6, 1, 21, 30, 0, 0, time.UTC)))
	assert.Equal(t, "10.00", q.args[4])
	assert.Equal(t, "4.50", q.args[5])
}

func TestPostgresLedger_Errors(t *testing.T) {
	dbErr := errors.New("connection refused")

	err := NewPostgresLedger(&fakeQuerier{row: fakeRow{err: dbErr}}, logger.Discard()).
		Append(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, dbErr)

	bad := sampleRecord()
	bad.Timestamp = "yesterday"
	q := &fakeQuerier{}
	err = NewPostgresLedger(q, logger.Discard()).Append(context.Background(), bad)
	require.Error(t, err)
	assert.Empty(t, q.sql, "nothing should be inserted")
}

func TestLocalLedger_AppendsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	store, err := localstore.Open(path)
	require.NoError(t, err)
	ledger := NewLocalLedger(store, logger.Discard())

	sales, err := ledger.Sales()
	require.NoError(t, err)
	assert.Empty(t, sales)

	first := sampleRecord()
	second := sampleRecord()
	second.CategoryKey = "fiestas"

	id, err := ledger.Record(context.Background(), first)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, ledger.Append(context.Background(), second))

	reopened, err := localstore.Open(path)
	require.NoError(t, err)
	sales, err = NewLocalLedger(reopened, logger.Discard()).Sales()
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, "normal", sales[0].CategoryKey)
	assert.Equal(t, "fiestas", sales[1].CategoryKey)
	assert.Equal(t, first.LineDescriptions, sales[0].LineDescriptions)
	assert.True(t, sales[0].Total.Equal(models.MustMoney("5.50")))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"lineDescriptions"`)
	assert.Contains(t, string(raw), `"timestamp": "2024-06-01T21:30:00.000Z"`)
}

func TestLocalLedger_WriteFailureKeepsEarlierSales(t *testing.T) {
	dir := t.TempDir()
	store, err := localstore.Open(filepath.Join(dir, "missing", "store.json"))
	require.NoError(t, err)
	ledger := NewLocalLedger(store, logger.Discard())

	err = ledger.Append(context.Background(), sampleRecord())
	require.Error(t, err)

	sales, err := ledger.Sales()
	require.NoError(t, err)
	assert.Empty(t, sales)
}

type fakeRecorder struct {
	id      string
	err     error
	records []models.SalesRecord
}

func (r *fakeRecorder) Record(ctx context.Context, record models.SalesRecord) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.records = append(r.records, record)
	return r.id, nil
}

type fakeSalePublisher struct {
	err  error
	msgs []*models.SaleRecordedMessage
}

func (p *fakeSalePublisher) PublishSaleRecorded(ctx context.Context, msg *models.SaleRecordedMessage) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

func TestNotifying_PublishesAfterRecord(t *testing.T) {
	next := &fakeRecorder{id: "sale-1"}
	publisher := &fakeSalePublisher{}

	id, err := NewNotifying(next, publisher, logger.Discard()).Record(context.Background(), sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, "sale-1", id)

	require.Len(t, publisher.msgs, 1)
	msg := publisher.msgs[0]
	assert.Equal(t, "sale-1", msg.SaleID)
	assert.Equal(t, "5.50", msg.Total.String())
	assert.Equal(t, "normal", msg.CategoryKey)
	assert.Equal(t, 2, msg.LineCount)
}

func TestNotifying_PublishFailureIsNotReturned(t *testing.T) {
	next := &fakeRecorder{id: "sale-1"}
	publisher := &fakeSalePublisher{err: errors.New("broker down")}

	err := NewNotifying(next, publisher, logger.Discard()).Append(context.Background(), sampleRecord())
	assert.NoError(t, err)
	assert.Len(t, next.records, 1)
}

func TestNotifying_RecordFailureSkipsPublish(t *testing.T) {
	storeErr := errors.New("disk full")
	publisher := &fakeSalePublisher{}

	err := NewNotifying(&fakeRecorder{err: storeErr}, publisher, logger.Discard()).
		Append(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, storeErr)
	assert.Empty(t, publisher.msgs)
}
