package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/loadmap/api/internal/apperr"
	"github.com/loadmap/api/internal/database"
	"github.com/loadmap/api/internal/enum"
	"github.com/loadmap/api/internal/manifest"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// LifecycleStore defines the DB methods needed to move orders through
// PENDING → EN_ROUTE → DELIVERED. Satisfied by every database.Store.
type LifecycleStore interface {
	ListProducts(ctx context.Context) ([]database.Product, error)
	GetOrder(ctx context.Context, rowID uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	ExecTx(ctx context.Context, fn func(database.Querier) error) error
}

// BatchResult lists the rows a load transition changed and the rows it
// skipped because their status moved after they were read.
type BatchResult struct {
	Affected  []database.Order `json:"affected"`
	Conflicts []apperr.RowRef  `json:"conflicts"`
}

// RowsAffected is the number of rows that changed status.
func (r *BatchResult) RowsAffected() int { return len(r.Affected) }

// ConfirmDeliveryRequest targets one EN_ROUTE row.
type ConfirmDeliveryRequest struct {
	RowID          uuid.UUID
	DeliveredBoxes int64
}

// DeliveryResult is the outcome of a delivery. Remainder is nil when the
// row was delivered in full.
type DeliveryResult struct {
	Ledger          database.LedgerEntry `json:"ledger"`
	Remainder       *database.Order      `json:"remainder"`
	DeliveredBoxes  int64                `json:"delivered_boxes"`
	DeliveredWeight decimal.Decimal      `json:"delivered_weight"`
}

// PreviewLoadRequest selects rows either by row handle or by order id.
// CapacityKg zero means the configured truck capacity.
type PreviewLoadRequest struct {
	RowIDs     []uuid.UUID
	OrderIDs   []int64
	CapacityKg decimal.Decimal
}

// LoadPreview is the matrix and capacity check for a candidate load.
type LoadPreview struct {
	Orders   []database.Order       `json:"orders"`
	Matrix   *manifest.LoadMatrix   `json:"matrix"`
	Capacity manifest.CapacityCheck `json:"capacity"`
}

// LifecycleService drives load confirmation, cancellation and delivery.
type LifecycleService struct {
	store      LifecycleStore
	audit      Recorder
	log        logrus.FieldLogger
	capacityKg decimal.Decimal
	now        func() time.Time
}

func NewLifecycleService(store LifecycleStore, audit Recorder, log logrus.FieldLogger, capacityKg decimal.Decimal) *LifecycleService {
	return &LifecycleService{
		store:      store,
		audit:      audit,
		log:        log,
		capacityKg: capacityKg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ConfirmLoad moves every PENDING row whose id is in orderIDs to EN_ROUTE.
// Rows sharing an id but already EN_ROUTE or DELIVERED are left alone.
func (s *LifecycleService) ConfirmLoad(ctx context.Context, actor Actor, orderIDs []int64) (*BatchResult, error) {
	res, err := s.transition(ctx, orderIDs, database.OrderStatusPENDING, database.OrderStatusENROUTE)
	if res != nil && res.RowsAffected() > 0 {
		s.audit.Record(ctx, actor, enum.AuditLoadConfirmed, describeBatch(res))
	}
	return res, err
}

// ConfirmLoadWithinCapacity confirms the load only when the PENDING rows of
// orderIDs fit in capacityKg (zero means the configured capacity). An
// over-limit load is a conflict and nothing is moved.
func (s *LifecycleService) ConfirmLoadWithinCapacity(ctx context.Context, actor Actor, orderIDs []int64, capacityKg decimal.Decimal) (*BatchResult, error) {
	ids := uniqueIDs(orderIDs)
	if len(ids) == 0 {
		return s.ConfirmLoad(ctx, actor, ids)
	}

	pending, err := s.store.ListOrders(ctx, database.ListOrdersParams{Status: database.OrderStatusPENDING, OrderIDs: ids})
	if err != nil {
		return nil, apperr.Storage(0, "", err)
	}
	if len(pending) > 0 {
		preview, err := s.PreviewLoad(ctx, PreviewLoadRequest{OrderIDs: ids, CapacityKg: capacityKg})
		if err != nil {
			return nil, err
		}
		if preview.Capacity.Exceeded {
			return nil, apperr.Conflict(0, "", "%s", preview.Capacity.Message())
		}
	}
	return s.ConfirmLoad(ctx, actor, ids)
}

// CancelLoad reverts EN_ROUTE rows whose id is in orderIDs to PENDING.
func (s *LifecycleService) CancelLoad(ctx context.Context, actor Actor, orderIDs []int64) (*BatchResult, error) {
	res, err := s.transition(ctx, orderIDs, database.OrderStatusENROUTE, database.OrderStatusPENDING)
	if res != nil && res.RowsAffected() > 0 {
		s.audit.Record(ctx, actor, enum.AuditLoadCancelled, describeBatch(res))
	}
	return res, err
}

// transition re-reads each candidate row right before writing and gates the
// write on from. A gate miss skips that row. A storage failure stops the
// batch and is returned as *apperr.BatchError next to the partial result.
func (s *LifecycleService) transition(ctx context.Context, orderIDs []int64, from, to database.OrderStatus) (*BatchResult, error) {
	ids := uniqueIDs(orderIDs)
	if len(ids) == 0 {
		return nil, apperr.Validation(0, "", "order_ids is required")
	}
	for _, id := range ids {
		if id <= 0 {
			return nil, apperr.Validation(id, "", "order id must be > 0")
		}
	}

	candidates, err := s.store.ListOrders(ctx, database.ListOrdersParams{Status: from, OrderIDs: ids})
	if err != nil {
		return nil, apperr.Storage(0, "", fmt.Errorf("list %s orders: %w", from, err))
	}

	res := &BatchResult{Affected: []database.Order{}, Conflicts: []apperr.RowRef{}}
	succeeded := func() []apperr.RowRef {
		refs := make([]apperr.RowRef, 0, len(res.Affected))
		for _, o := range res.Affected {
			refs = append(refs, apperr.RowRef{OrderID: o.ID, Product: o.Product})
		}
		return refs
	}

	for _, row := range candidates {
		ref := apperr.RowRef{OrderID: row.ID, Product: row.Product}

		cur, err := s.store.GetOrder(ctx, row.RowID)
		if errors.Is(err, database.ErrNoRows) || (err == nil && cur.Status != from) {
			res.Conflicts = append(res.Conflicts, ref)
			continue
		}
		if err != nil {
			return res, &apperr.BatchError{Succeeded: succeeded(), Failed: ref, Err: apperr.Storage(row.ID, row.Product, err)}
		}

		updated, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			RowID:          row.RowID,
			Status:         to,
			ExpectedStatus: from,
		})
		if err != nil {
			if errors.Is(err, database.ErrNoRows) {
				res.Conflicts = append(res.Conflicts, ref)
				continue
			}
			return res, &apperr.BatchError{Succeeded: succeeded(), Failed: ref, Err: apperr.Storage(row.ID, row.Product, err)}
		}
		res.Affected = append(res.Affected, updated)
	}

	s.log.WithFields(logrus.Fields{
		"from":      from,
		"to":        to,
		"order_ids": ids,
		"affected":  len(res.Affected),
		"conflicts": len(res.Conflicts),
	}).Info("load transition")
	return res, nil
}

// ConfirmDelivery records delivered boxes for one EN_ROUTE row. Delivered
// quantities merge into the ledger entry of (id, product); any shortfall
// becomes a new PENDING row with the same id. The original row is removed.
func (s *LifecycleService) ConfirmDelivery(ctx context.Context, actor Actor, req ConfirmDeliveryRequest) (*DeliveryResult, error) {
	row, err := s.store.GetOrder(ctx, req.RowID)
	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return nil, apperr.NotFound(0, "", "order row %s not found", req.RowID)
		}
		return nil, apperr.Storage(0, "", err)
	}
	if row.Status != database.OrderStatusENROUTE {
		return nil, apperr.Conflict(row.ID, row.Product, "status is %s, only EN_ROUTE orders can be delivered", row.Status)
	}

	split, err := SplitDelivery(row, req.DeliveredBoxes)
	if err != nil {
		return nil, err
	}

	now := s.now()
	res := &DeliveryResult{DeliveredBoxes: split.DeliveredBoxes, DeliveredWeight: split.DeliveredWeight}

	err = s.store.ExecTx(ctx, func(q database.Querier) error {
		entry, err := q.GetLedgerEntry(ctx, database.GetLedgerEntryParams{OrderID: row.ID, Product: row.Product})
		switch {
		case err == nil:
			entry, err = q.AddLedgerDelivery(ctx, database.AddLedgerDeliveryParams{
				ID:              entry.ID,
				DeliveredBoxes:  split.DeliveredBoxes,
				DeliveredWeight: split.DeliveredWeight,
				UpdatedAt:       now,
			})
		case errors.Is(err, database.ErrNoRows):
			entry, err = q.CreateLedgerEntry(ctx, database.CreateLedgerEntryParams{
				OrderID:         row.ID,
				ClientName:      row.ClientName,
				Region:          row.Region,
				Product:         row.Product,
				DeliveredBoxes:  split.DeliveredBoxes,
				DeliveredWeight: split.DeliveredWeight,
				DeliveredAt:     now,
			})
		}
		if err != nil {
			return apperr.Storage(row.ID, row.Product, fmt.Errorf("ledger: %w", err))
		}
		res.Ledger = entry

		if split.RemainderBoxes > 0 {
			rem, err := q.CreateOrder(ctx, database.CreateOrderParams{
				OrderID:     row.ID,
				ClientName:  row.ClientName,
				Region:      row.Region,
				Product:     row.Product,
				BoxCount:    split.RemainderBoxes,
				TotalWeight: split.RemainderWeight,
				Status:      database.OrderStatusPENDING,
			})
			if err != nil {
				return apperr.Storage(row.ID, row.Product, fmt.Errorf("remainder: %w", err))
			}
			res.Remainder = &rem
		}

		err = q.DeleteOrder(ctx, database.DeleteOrderParams{RowID: row.RowID, ExpectedStatus: database.OrderStatusENROUTE})
		if err != nil {
			if errors.Is(err, database.ErrNoRows) {
				return apperr.Conflict(row.ID, row.Product, "order status changed, please retry")
			}
			return apperr.Storage(row.ID, row.Product, err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrConflict) && !errors.Is(err, apperr.ErrStorage) {
			err = apperr.Storage(row.ID, row.Product, err)
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_id":  row.ID,
		"product":   row.Product,
		"delivered": split.DeliveredBoxes,
		"remainder": split.RemainderBoxes,
	}).Info("delivery confirmed")
	s.audit.Record(ctx, actor, enum.AuditDeliveryConfirmed,
		fmt.Sprintf("order %d %s: delivered %d of %d boxes of %s (%s kg)",
			row.ID, row.ClientName, split.DeliveredBoxes, row.BoxCount, row.Product,
			split.DeliveredWeight.StringFixed(database.WeightPlaces)))
	return res, nil
}

// PreviewLoad re-reads the selected rows and builds their load matrix.
func (s *LifecycleService) PreviewLoad(ctx context.Context, req PreviewLoadRequest) (*LoadPreview, error) {
	var orders []database.Order
	switch {
	case len(req.RowIDs) > 0:
		for _, id := range req.RowIDs {
			o, err := s.store.GetOrder(ctx, id)
			if err != nil {
				if errors.Is(err, database.ErrNoRows) {
					return nil, apperr.NotFound(0, "", "order row %s not found", id)
				}
				return nil, apperr.Storage(0, "", err)
			}
			orders = append(orders, o)
		}
	case len(req.OrderIDs) > 0:
		var err error
		orders, err = s.store.ListOrders(ctx, database.ListOrdersParams{
			Status:   database.OrderStatusPENDING,
			OrderIDs: uniqueIDs(req.OrderIDs),
		})
		if err != nil {
			return nil, apperr.Storage(0, "", err)
		}
	}

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, apperr.Storage(0, "", err)
	}

	m, err := manifest.Build(manifest.NewCatalog(products), orders)
	if err != nil {
		return nil, err
	}

	capacity := req.CapacityKg
	if !capacity.IsPositive() {
		capacity = s.capacityKg
	}
	return &LoadPreview{Orders: orders, Matrix: m, Capacity: manifest.CheckCapacity(m, capacity)}, nil
}

// Split is how one delivery divides a row.
type Split struct {
	DeliveredBoxes  int64
	DeliveredWeight decimal.Decimal
	RemainderBoxes  int64
	RemainderWeight decimal.Decimal
}

// SplitDelivery divides row into delivered and remaining parts. The remainder
// weight is what is left after the rounded delivered weight, so both parts
// always add back to the original total.
func SplitDelivery(row database.Order, delivered int64) (Split, error) {
	if row.BoxCount <= 0 {
		return Split{}, apperr.Validation(row.ID, row.Product, "box count is %d, cannot derive unit weight", row.BoxCount)
	}
	if delivered < 0 || delivered > row.BoxCount {
		return Split{}, apperr.Validation(row.ID, row.Product, "delivered boxes must be between 0 and %d, got %d", row.BoxCount, delivered)
	}

	unit := row.TotalWeight.Div(decimal.NewFromInt(row.BoxCount))
	deliveredWeight := unit.Mul(decimal.NewFromInt(delivered)).Round(database.WeightPlaces)
	if delivered == row.BoxCount {
		deliveredWeight = row.TotalWeight
	}

	return Split{
		DeliveredBoxes:  delivered,
		DeliveredWeight: deliveredWeight,
		RemainderBoxes:  row.BoxCount - delivered,
		RemainderWeight: row.TotalWeight.Sub(deliveredWeight),
	}, nil
}

func uniqueIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func describeBatch(res *BatchResult) string {
	ids := make([]int64, 0, len(res.Affected))
	for _, o := range res.Affected {
		ids = append(ids, o.ID)
	}
	return fmt.Sprintf("orders %v: %d rows", uniqueIDs(ids), len(res.Affected))
}
