package till

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bar-pos/internal/models"
)

var fixedNow = time.Date(2024, 6, 1, 21, 30, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *fakeCatalog, *fakeLedger) {
	t.Helper()
	catalog := newFakeCatalog(
		product("a", "A", "cervezas", models.CategoryNormal, "2.50"),
		product("b", "B", "refrescos", models.CategoryNormal, "1.00"),
		product("c", "Tinto", "vinos", models.CategoryNormal, "0.10"),
		product("a", "A", "cervezas", models.CategoryFiestas, "3.50"),
	)
	ledger := &fakeLedger{}
	engine := NewEngine(catalog, ledger, models.CategoryNormal, WithClock(func() time.Time { return fixedNow }))
	return engine, catalog, ledger
}

func TestEngine_AddItem(t *testing.T) {
	engine, catalog, _ := newTestEngine(t)

	engine.AddItem(catalog.product("a", models.CategoryNormal))
	engine.AddItem(catalog.product("a", models.CategoryNormal))
	engine.AddItem(catalog.product("b", models.CategoryNormal))

	line, ok := engine.Line("a")
	require.True(t, ok)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, "2.50", line.UnitPrice.String())
	assert.Equal(t, "6.00", engine.Total().String())
	assert.Len(t, engine.Lines(), 2)
}

func TestEngine_IncrementAndDecrement(t *testing.T) {
	engine, catalog, _ := newTestEngine(t)
	engine.AddItem(catalog.product("a", models.CategoryNormal))

	engine.IncrementLine("a")
	line, _ := engine.Line("a")
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, "5.00", engine.Total().String())

	engine.DecrementLine("a")
	line, _ = engine.Line("a")
	assert.Equal(t, 1, line.Quantity)

	engine.DecrementLine("a")
	_, ok := engine.Line("a")
	assert.False(t, ok, "line with quantity 1 should be removed on decrement")
	assert.True(t, engine.IsEmpty())
	assert.True(t, engine.Total().IsZero())
}

func TestEngine_MissingLineIsNoOp(t *testing.T) {
	engine, catalog, _ := newTestEngine(t)
	engine.AddItem(catalog.product("b", models.CategoryNormal))

	engine.IncrementLine("ghost")
	engine.DecrementLine("ghost")

	assert.Len(t, engine.Lines(), 1)
	assert.Equal(t, "1.00", engine.Total().String())
}

func TestEngine_Change(t *testing.T) {
	tests := []struct {
		name       string
		payment    string
		wantChange string
	}{
		{name: "exact", payment: "6", wantChange: "0.00"},
		{name: "overpay", payment: "10", wantChange: "4.00"},
		{name: "underpay never negative", payment: "5", wantChange: "0.00"},
		{name: "unparsable", payment: "1x", wantChange: "0.00"},
		{name: "empty", payment: "", wantChange: "0.00"},
		{name: "exponent notation", payment: "5e6000000", wantChange: "0.00"},
		{name: "sub-cent rounds to cents", payment: "6.005", wantChange: "0.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, catalog, _ := newTestEngine(t)
			engine.AddItem(catalog.product("a", models.CategoryNormal))
			engine.AddItem(catalog.product("a", models.CategoryNormal))
			engine.AddItem(catalog.product("b", models.CategoryNormal))

			engine.SetPaymentAmount(tt.payment)
			assert.Equal(t, tt.wantChange, engine.Change().String())
		})
	}
}

func TestEngine_ChangeFollowsLineMutations(t *testing.T) {
	engine, catalog, _ := newTestEngine(t)
	engine.SetPaymentAmount("3")
	engine.AddItem(catalog.product("a", models.CategoryNormal))
	assert.Equal(t, "0.50", engine.Change().String())

	engine.IncrementLine("a")
	assert.Equal(t, "0.00", engine.Change().String())

	engine.DecrementLine("a")
	assert.Equal(t, "0.50", engine.Change().String())
}

func TestEngine_Clear(t *testing.T) {
	engine, catalog, _ := newTestEngine(t)
	engine.AddItem(catalog.product("a", models.CategoryNormal))
	engine.SetPaymentAmount("20")

	engine.Clear()

	assert.True(t, engine.IsEmpty())
	assert.True(t, engine.Total().IsZero())
	assert.True(t, engine.PaymentAmount().IsZero())
	assert.True(t, engine.Change().IsZero())
}

func TestEngine_Scenario(t *testing.T) {
	engine, catalog, ledger := newTestEngine(t)

	engine.AddItem(catalog.product("a", models.CategoryNormal))
	engine.AddItem(catalog.product("a", models.CategoryNormal))
	engine.AddItem(catalog.product("b", models.CategoryNormal))
	engine.SetPaymentAmount("10")
	assert.Equal(t, "6.00", engine.Total().String())
	assert.Equal(t, "4.00", engine.Change().String())

	engine.DecrementLine("a")
	assert.Equal(t, "3.50", engine.Total().String())
	assert.Equal(t, "6.50", engine.Change().String())

	record, err := engine.Settle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"A x 1 = 2.50€", "B x 1 = 1.00€"}, record.LineDescriptions)
	assert.Equal(t, "3.50", record.Total.String())
	assert.Equal(t, "10.00", record.PaymentAmount.String())
	assert.Equal(t, "6.50", record.Change.String())
	assert.Equal(t, models.CategoryNormal, record.CategoryKey)
	assert.Equal(t, "2024-06-01T21:30:00.000Z", record.Timestamp)

	require.Equal(t, 1, ledger.count())
	assert.Equal(t, record, ledger.last())
	assert.True(t, engine.IsEmpty())
	assert.True(t, engine.PaymentAmount().IsZero())
}

func TestEngine_SettleEmptyOrder(t *testing.T) {
	engine, _, ledger := newTestEngine(t)
	engine.SetPaymentAmount("5")

	_, err := engine.Settle(context.Background())

	assert.ErrorIs(t, err, ErrEmptyOrder)
	assert.Equal(t, 0, ledger.count())
	assert.Equal(t, "5.00", engine.PaymentAmount().String())
}

func TestEngine_SettleLedgerFailureLeavesOrder(t *testing.T) {
	engine, catalog, ledger := newTestEngine(t)
	engine.AddItem(catalog.product("a", models.CategoryNormal))
	engine.SetPaymentAmount("5")
	ledger.err = errUnavailable

	_, err := engine.Settle(context.Background())

	var appendErr *LedgerAppendError
	require.True(t, errors.As(err, &appendErr))
	assert.ErrorIs(t, err, errUnavailable)
	assert.False(t, engine.IsEmpty())
	assert.Equal(t, "2.50", engine.Total().String())
	assert.Equal(t, "2.50", engine.Change().String())

	// retry succeeds once the ledger is back
	ledger.err = nil
	_, err = engine.Settle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.count())
	assert.True(t, engine.IsEmpty())
}

func TestEngine_SettleResolvesCurrentNames(t *testing.T) {
	engine, catalog, ledger := newTestEngine(t)
	engine.AddItem(catalog.product("a", models.CategoryNormal))
	catalog.rename("a", "Caña")

	_, err := engine.Settle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Caña x 1 = 2.50€"}, ledger.last().LineDescriptions)
}

func TestEngine_SettleCatalogFailureFallsBack(t *testing.T) {
	engine, catalog, ledger := newTestEngine(t)
	engine.AddItem(catalog.product("a", models.CategoryNormal))
	engine.AddItem(models.PricedProduct{ID: "nameless", UnitPrice: models.MustMoney("1")})
	catalog.err = errUnavailable

	_, err := engine.Settle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A x 1 = 2.50€", "nameless x 1 = 1.00€"}, ledger.last().LineDescriptions)
}

func TestEngine_PriceSnapshot(t *testing.T) {
	engine, catalog, _ := newTestEngine(t)
	engine.AddItem(catalog.product("a", models.CategoryNormal))

	catalog.setPrice("a", models.CategoryNormal, models.MustMoney("3.00"))

	// a further tap on the stale product keeps the captured price
	engine.AddItem(catalog.product("a", models.CategoryNormal))
	line, _ := engine.Line("a")
	assert.Equal(t, "2.50", line.UnitPrice.String())
	assert.Equal(t, "5.00", engine.Total().String())

	engine.Clear()
	engine.AddItem(catalog.product("a", models.CategoryNormal))
	line, _ = engine.Line("a")
	assert.Equal(t, "3.00", line.UnitPrice.String())
}

func TestEngine_SelectCategoryKeepsPrices(t *testing.T) {
	engine, catalog, _ := newTestEngine(t)
	engine.AddItem(catalog.product("a", models.CategoryNormal))

	engine.SelectCategory(models.CategoryFiestas)
	engine.AddItem(catalog.product("a", models.CategoryFiestas))

	line, _ := engine.Line("a")
	assert.Equal(t, "2.50", line.UnitPrice.String())
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, models.CategoryFiestas, engine.CategoryKey())
}

func TestEngine_LookupProduct(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	p, err := engine.LookupProduct(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "B", p.Name)

	_, err = engine.LookupProduct(context.Background(), "zzz")
	assert.ErrorIs(t, err, ErrUnknownProduct)

	engine.SelectCategory(models.CategoryFiestas)
	_, err = engine.LookupProduct(context.Background(), "b")
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestEngine_LookupProductCatalogError(t *testing.T) {
	engine, catalog, _ := newTestEngine(t)
	catalog.err = errUnavailable

	_, err := engine.LookupProduct(context.Background(), "a")
	assert.True(t, IsCatalogError(err))
	assert.ErrorIs(t, err, errUnavailable)
}

func TestEngine_View(t *testing.T) {
	engine, catalog, _ := newTestEngine(t)
	engine.AddItem(catalog.product("b", models.CategoryNormal))
	engine.AddItem(catalog.product("a", models.CategoryNormal))
	engine.IncrementLine("a")
	engine.SetPaymentAmount("10")

	view := engine.View()

	require.Len(t, view.Lines, 2)
	assert.Equal(t, "a", view.Lines[0].ProductID)
	assert.Equal(t, "A", view.Lines[0].Name)
	assert.Equal(t, "5.00", view.Lines[0].LineTotal.String())
	assert.Equal(t, "6.00", view.Total.String())
	assert.Equal(t, "4.00", view.Change.String())
	assert.Equal(t, models.CategoryNormal, view.CategoryKey)
}

// Random tap sequences must always leave total equal to an independent sum
// over surviving lines, change never negative and no zero-quantity lines.
func TestEngine_RandomSequencesKeepDerivedValues(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	catalog := newFakeCatalog(
		product("p1", "Caña", "cervezas", models.CategoryNormal, "1.20"),
		product("p2", "Vino", "vinos", models.CategoryNormal, "0.10"),
		product("p3", "Copa", "copas", models.CategoryNormal, "6.35"),
	)
	ids := []string{"p1", "p2", "p3", "missing"}

	for run := 0; run < 50; run++ {
		engine := NewEngine(catalog, &fakeLedger{}, models.CategoryNormal)
		qty := map[string]int{}
		for step := 0; step < 200; step++ {
			id := ids[rng.Intn(len(ids))]
			switch rng.Intn(4) {
			case 0:
				if id != "missing" {
					engine.AddItem(catalog.product(id, models.CategoryNormal))
					qty[id]++
				}
			case 1:
				engine.IncrementLine(id)
				if qty[id] > 0 {
					qty[id]++
				}
			case 2:
				engine.DecrementLine(id)
				if qty[id] > 0 {
					qty[id]--
				}
			case 3:
				engine.SetPaymentAmount([]string{"", "5", "12.5", "oops", "100"}[rng.Intn(5)])
			}

			want := models.Zero
			for pid, q := range qty {
				if q > 0 {
					want = want.Add(catalog.product(pid, models.CategoryNormal).UnitPrice.Times(q))
				}
			}
			require.True(t, engine.Total().Equal(want), "run %d step %d: total %s want %s", run, step, engine.Total(), want)
			require.True(t, engine.Change().Equal(engine.PaymentAmount().SubFloor(want)))
			for _, line := range engine.Lines() {
				require.GreaterOrEqual(t, line.Quantity, 1)
			}
		}
	}
}
