package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/loadmap/api/internal/apperr"
	"github.com/loadmap/api/internal/database"
	"github.com/loadmap/api/internal/enum"
	"github.com/loadmap/api/internal/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) pending(t *testing.T) []database.Order {
	t.Helper()
	orders, err := f.store.ListOrders(context.Background(), database.ListOrdersParams{Status: database.OrderStatusPENDING})
	require.NoError(t, err)
	return orders
}

func (f *fixture) enRoute(t *testing.T, id int64) database.Order {
	t.Helper()
	orders, err := f.store.ListOrders(context.Background(), database.ListOrdersParams{Status: database.OrderStatusENROUTE, OrderID: id})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	return orders[0]
}

func TestRoundTrip_PartialDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enter(t, 1, "Mercado Sul (RS)", "Arroz 5kg", 10)

	res, err := f.lifecycle.ConfirmLoad(ctx, operator, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowsAffected())

	row := f.enRoute(t, 1)
	out, err := f.lifecycle.ConfirmDelivery(ctx, operator, ConfirmDeliveryRequest{RowID: row.RowID, DeliveredBoxes: 4})
	require.NoError(t, err)

	pending := f.pending(t)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(1), pending[0].ID)
	assert.Equal(t, int64(6), pending[0].BoxCount)
	assert.True(t, pending[0].TotalWeight.Equal(decimal.NewFromInt(60)), pending[0].TotalWeight.String())
	assert.Equal(t, "RS", pending[0].Region)
	require.NotNil(t, out.Remainder)
	assert.Equal(t, pending[0].RowID, out.Remainder.RowID)

	all, err := f.store.ListOrders(ctx, database.ListOrdersParams{})
	require.NoError(t, err)
	assert.Len(t, all, 1, "the EN_ROUTE row is gone")

	ledger, err := f.reports.Ledger(ctx, 0, "")
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, database.OrderStatusDELIVERED, ledger[0].Status)
	assert.Equal(t, int64(4), ledger[0].DeliveredBoxes)
	assert.True(t, ledger[0].DeliveredWeight.Equal(decimal.NewFromInt(40)))
}

func TestConfirmLoad_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enter(t, 1, "A", "Arroz 5kg", 2)
	f.enter(t, 1, "A", "Feijao 1kg", 3)
	f.enter(t, 2, "B", "Arroz 5kg", 1)

	res, err := f.lifecycle.ConfirmLoad(ctx, operator, []int64{1, 2, 1})
	require.NoError(t, err)
	assert.Equal(t, 3, res.RowsAffected())

	res, err = f.lifecycle.ConfirmLoad(ctx, operator, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 0, res.RowsAffected())
	assert.Empty(t, res.Conflicts)

	entries, err := f.audit.List(ctx, 100)
	require.NoError(t, err)
	var confirms int
	for _, e := range entries {
		if e.Action == "LOAD_CONFIRMED" {
			confirms++
		}
	}
	assert.Equal(t, 1, confirms)
}

func TestConfirmLoad_NoMatch(t *testing.T) {
	f := newFixture(t)
	res, err := f.lifecycle.ConfirmLoad(context.Background(), operator, []int64{99})
	require.NoError(t, err)
	assert.Equal(t, 0, res.RowsAffected())

	_, err = f.lifecycle.ConfirmLoad(context.Background(), operator, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestConfirmLoad_DuplicateIDOnlyTouchesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.enter(t, 7, "A", "Arroz 5kg", 10)
	_, err := f.lifecycle.ConfirmLoad(ctx, operator, []int64{7})
	require.NoError(t, err)

	// a prior split left id 7 EN_ROUTE; a fresh id 7 row is PENDING
	enRoute := f.enRoute(t, 7)
	fresh := f.enter(t, 7, "A", "Feijao 1kg", 5)

	res, err := f.lifecycle.ConfirmLoad(ctx, operator, []int64{7})
	require.NoError(t, err)
	require.Equal(t, 1, res.RowsAffected())
	assert.Equal(t, fresh.RowID, res.Affected[0].RowID)

	still, err := f.store.GetOrder(ctx, enRoute.RowID)
	require.NoError(t, err)
	assert.Equal(t, database.OrderStatusENROUTE, still.Status)
	assert.Equal(t, enRoute.UpdatedAt, still.UpdatedAt)
}

func TestCancelLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enter(t, 3, "A", "Arroz 5kg", 2)
	f.enter(t, 4, "B", "Arroz 5kg", 2)

	_, err := f.lifecycle.ConfirmLoad(ctx, operator, []int64{3})
	require.NoError(t, err)

	res, err := f.lifecycle.CancelLoad(ctx, operator, []int64{3, 4})
	require.NoError(t, err)
	require.Equal(t, 1, res.RowsAffected())
	assert.Equal(t, int64(3), res.Affected[0].ID)
	assert.Equal(t, database.OrderStatusPENDING, res.Affected[0].Status)
	assert.Len(t, f.pending(t), 2)
}

func TestLedgerMerge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enter(t, 7, "A", "Arroz 5kg", 10)

	_, err := f.lifecycle.ConfirmLoad(ctx, operator, []int64{7})
	require.NoError(t, err)
	_, err = f.lifecycle.ConfirmDelivery(ctx, operator, ConfirmDeliveryRequest{RowID: f.enRoute(t, 7).RowID, DeliveredBoxes: 2})
	require.NoError(t, err)

	_, err = f.lifecycle.ConfirmLoad(ctx, operator, []int64{7})
	require.NoError(t, err)
	out, err := f.lifecycle.ConfirmDelivery(ctx, operator, ConfirmDeliveryRequest{RowID: f.enRoute(t, 7).RowID, DeliveredBoxes: 3})
	require.NoError(t, err)

	ledger, err := f.reports.Ledger(ctx, 7, "Arroz 5kg")
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, int64(5), ledger[0].DeliveredBoxes)
	assert.True(t, ledger[0].DeliveredWeight.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, ledger[0].ID, out.Ledger.ID)

	pending := f.pending(t)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(5), pending[0].BoxCount)
}

func TestConfirmDelivery_FullLeavesNoRemainder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enter(t, 1, "A", "Arroz 5kg", 10)
	_, err := f.lifecycle.ConfirmLoad(ctx, operator, []int64{1})
	require.NoError(t, err)

	out, err := f.lifecycle.ConfirmDelivery(ctx, operator, ConfirmDeliveryRequest{RowID: f.enRoute(t, 1).RowID, DeliveredBoxes: 10})
	require.NoError(t, err)
	assert.Nil(t, out.Remainder)

	all, err := f.store.ListOrders(ctx, database.ListOrdersParams{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestConfirmDelivery_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.enter(t, 1, "A", "Arroz 5kg", 10)

	_, err := f.lifecycle.ConfirmDelivery(ctx, operator, ConfirmDeliveryRequest{RowID: o.RowID, DeliveredBoxes: 1})
	assert.ErrorIs(t, err, apperr.ErrConflict, "row is still PENDING")

	_, err = f.lifecycle.ConfirmLoad(ctx, operator, []int64{1})
	require.NoError(t, err)

	_, err = f.lifecycle.ConfirmDelivery(ctx, operator, ConfirmDeliveryRequest{RowID: o.RowID, DeliveredBoxes: 11})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.lifecycle.ConfirmDelivery(ctx, operator, ConfirmDeliveryRequest{RowID: o.RowID, DeliveredBoxes: -1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.lifecycle.ConfirmDelivery(ctx, operator, ConfirmDeliveryRequest{RowID: uuid.New(), DeliveredBoxes: 1})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	ledger, err := f.reports.Ledger(ctx, 0, "")
	require.NoError(t, err)
	assert.Empty(t, ledger)
}

// flakyStore fails UpdateOrderStatus once failAfter calls have succeeded.
type flakyStore struct {
	*memstore.Store
	calls     int
	failAfter int
	err       error
}

func (s *flakyStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	if s.calls >= s.failAfter {
		return database.Order{}, s.err
	}
	s.calls++
	return s.Store.UpdateOrderStatus(ctx, arg)
}

func TestConfirmLoad_StorageFailureAbortsBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enter(t, 1, "A", "Arroz 5kg", 1)
	f.enter(t, 2, "B", "Feijao 1kg", 1)
	f.enter(t, 3, "C", "Arroz 5kg", 1)

	cause := errors.New("timeout")
	store := &flakyStore{Store: f.store, failAfter: 1, err: cause}
	svc := NewLifecycleService(store, f.audit, f.log, decimal.Zero)

	res, err := svc.ConfirmLoad(ctx, operator, []int64{1, 2, 3})
	require.Error(t, err)

	var batch *apperr.BatchError
	require.ErrorAs(t, err, &batch)
	assert.Equal(t, []apperr.RowRef{{OrderID: 1, Product: "Arroz 5kg"}}, batch.Succeeded)
	assert.Equal(t, apperr.RowRef{OrderID: 2, Product: "Feijao 1kg"}, batch.Failed)
	assert.ErrorIs(t, err, apperr.ErrStorage)
	assert.ErrorIs(t, err, cause)

	require.NotNil(t, res)
	assert.Equal(t, 1, res.RowsAffected())
	assert.Len(t, f.pending(t), 2, "rows after the failure are untouched")
}

// racingStore lets a second writer move a row between the candidate read
// and the status-gated write.
type racingStore struct {
	*memstore.Store
	afterList func()
	afterGet  func()
}

func (s *racingStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	orders, err := s.Store.ListOrders(ctx, arg)
	if s.afterList != nil {
		s.afterList()
		s.afterList = nil
	}
	return orders, err
}

func (s *racingStore) GetOrder(ctx context.Context, rowID uuid.UUID) (database.Order, error) {
	o, err := s.Store.GetOrder(ctx, rowID)
	if s.afterGet != nil {
		s.afterGet()
		s.afterGet = nil
	}
	return o, err
}

func TestConfirmLoad_RowMovedByAnotherWriter(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *racingStore, move func())
	}{
		{"after candidate read", func(s *racingStore, move func()) { s.afterList = move }},
		{"after re-read", func(s *racingStore, move func()) { s.afterGet = move }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			row := f.enter(t, 7, "A", "Arroz 5kg", 10)

			move := func() {
				_, err := f.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
					RowID:          row.RowID,
					Status:         database.OrderStatusENROUTE,
					ExpectedStatus: database.OrderStatusPENDING,
				})
				require.NoError(t, err)
			}
			store := &racingStore{Store: f.store}
			tt.setup(store, move)
			svc := NewLifecycleService(store, f.audit, f.log, decimal.Zero)

			res, err := svc.ConfirmLoad(ctx, operator, []int64{7})
			require.NoError(t, err)
			assert.Equal(t, 0, res.RowsAffected())
			assert.Equal(t, []apperr.RowRef{{OrderID: 7, Product: "Arroz 5kg"}}, res.Conflicts)

			entries, err := f.audit.List(ctx, 10)
			require.NoError(t, err)
			for _, e := range entries {
				assert.NotEqual(t, enum.AuditLoadConfirmed, e.Action, "nothing moved, nothing to audit")
			}
		})
	}
}

// deleteMissStore makes the status-gated delete inside a delivery miss, as
// if another writer had already consumed the row.
type deleteMissStore struct {
	*memstore.Store
}

func (s *deleteMissStore) ExecTx(ctx context.Context, fn func(database.Querier) error) error {
	return s.Store.ExecTx(ctx, func(q database.Querier) error {
		return fn(deleteMissQuerier{q})
	})
}

type deleteMissQuerier struct {
	database.Querier
}

func (deleteMissQuerier) DeleteOrder(context.Context, database.DeleteOrderParams) error {
	return database.ErrNoRows
}

func TestConfirmDelivery_GateMissRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enter(t, 7, "A", "Arroz 5kg", 10)

	_, err := f.lifecycle.ConfirmLoad(ctx, operator, []int64{7})
	require.NoError(t, err)
	_, err = f.lifecycle.ConfirmDelivery(ctx, operator, ConfirmDeliveryRequest{RowID: f.enRoute(t, 7).RowID, DeliveredBoxes: 2})
	require.NoError(t, err)
	_, err = f.lifecycle.ConfirmLoad(ctx, operator, []int64{7})
	require.NoError(t, err)
	enRoute := f.enRoute(t, 7)

	svc := NewLifecycleService(&deleteMissStore{Store: f.store}, f.audit, f.log, decimal.Zero)
	out, err := svc.ConfirmDelivery(ctx, operator, ConfirmDeliveryRequest{RowID: enRoute.RowID, DeliveredBoxes: 3})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Contains(t, err.Error(), "order 7")

	ledger, err := f.reports.Ledger(ctx, 7, "Arroz 5kg")
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, int64(2), ledger[0].DeliveredBoxes, "ledger merge rolled back")
	assert.True(t, ledger[0].DeliveredWeight.Equal(decimal.NewFromInt(20)), ledger[0].DeliveredWeight.String())

	assert.Empty(t, f.pending(t), "remainder insert rolled back")
	still := f.enRoute(t, 7)
	assert.Equal(t, enRoute.RowID, still.RowID)
	assert.Equal(t, int64(8), still.BoxCount)
}

func TestConfirmLoadWithinCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enter(t, 1, "A", "Arroz 5kg", 100)
	f.enter(t, 2, "B", "Arroz 5kg", 60)

	res, err := f.lifecycle.ConfirmLoadWithinCapacity(ctx, operator, []int64{1, 2}, decimal.Zero)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Contains(t, err.Error(), "reduce 100.00 kg")
	assert.Len(t, f.pending(t), 2, "over-limit load moves nothing")

	res, err = f.lifecycle.ConfirmLoadWithinCapacity(ctx, operator, []int64{1, 2}, decimal.NewFromInt(2000))
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowsAffected())

	res, err = f.lifecycle.ConfirmLoadWithinCapacity(ctx, operator, []int64{1}, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, 0, res.RowsAffected(), "no PENDING rows left, nothing to check")

	_, err = f.lifecycle.ConfirmLoadWithinCapacity(ctx, operator, nil, decimal.Zero)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPreviewLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enter(t, 1, "A", "Arroz 5kg", 100)
	f.enter(t, 2, "A", "Feijao 1kg", 600)

	p, err := f.lifecycle.PreviewLoad(ctx, PreviewLoadRequest{OrderIDs: []int64{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(700), p.Matrix.GrandTotalBoxes)
	assert.True(t, p.Matrix.GrandTotalWeight.Equal(decimal.NewFromInt(1600)))
	assert.True(t, p.Capacity.Exceeded)
	assert.True(t, p.Capacity.ExcessKg.Equal(decimal.NewFromInt(100)))

	p, err = f.lifecycle.PreviewLoad(ctx, PreviewLoadRequest{OrderIDs: []int64{1}, CapacityKg: decimal.NewFromInt(2000)})
	require.NoError(t, err)
	assert.False(t, p.Capacity.Exceeded)

	_, err = f.lifecycle.PreviewLoad(ctx, PreviewLoadRequest{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.lifecycle.PreviewLoad(ctx, PreviewLoadRequest{RowIDs: []uuid.UUID{uuid.New()}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSplitDelivery_Conservation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("delivered plus remainder equals the original row", prop.ForAll(
		func(boxes, grams, pct int64) bool {
			row := database.Order{
				ID:          1,
				Product:     "Frango",
				BoxCount:    boxes,
				TotalWeight: decimal.New(grams, -database.WeightPlaces),
				Status:      database.OrderStatusENROUTE,
			}
			delivered := boxes * pct / 100

			s, err := SplitDelivery(row, delivered)
			if err != nil {
				return false
			}
			return s.DeliveredBoxes+s.RemainderBoxes == row.BoxCount &&
				s.DeliveredWeight.Add(s.RemainderWeight).Equal(row.TotalWeight) &&
				!s.DeliveredWeight.IsNegative() &&
				!s.RemainderWeight.IsNegative()
		},
		gen.Int64Range(1, 1000),
		gen.Int64Range(0, 10_000_000),
		gen.Int64Range(0, 100),
	))

	properties.TestingRun(t)
}

func TestSplitDelivery_ZeroBoxes(t *testing.T) {
	_, err := SplitDelivery(database.Order{ID: 4, Product: "X"}, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enter(t, 1, "A (RS)", "Arroz 5kg", 2)
	f.enter(t, 2, "B (RS)", "Feijao 1kg", 3)
	f.enter(t, 3, "C (SC)", "Arroz 5kg", 1)

	regions, err := f.reports.PendingByRegion(ctx)
	require.NoError(t, err)
	require.Len(t, regions, 2)
	assert.Equal(t, "RS", regions[0].Region)
	assert.Equal(t, 2, regions[0].Orders)
	assert.Equal(t, int64(5), regions[0].Boxes)
	assert.True(t, regions[0].WeightKg.Equal(decimal.NewFromInt(23)))

	_, err = f.lifecycle.ConfirmLoad(ctx, operator, []int64{1, 3})
	require.NoError(t, err)
	for _, id := range []int64{1, 3} {
		_, err = f.lifecycle.ConfirmDelivery(ctx, operator, ConfirmDeliveryRequest{RowID: f.enRoute(t, id).RowID, DeliveredBoxes: 1})
		require.NoError(t, err)
	}

	delivered, err := f.reports.DeliveredByProduct(ctx)
	require.NoError(t, err)
	require.Len(t, delivered, 1)
	assert.Equal(t, "Arroz 5kg", delivered[0].Product)
	assert.Equal(t, int64(2), delivered[0].Boxes)
	assert.True(t, delivered[0].WeightKg.Equal(decimal.NewFromInt(20)))
}
