package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/loadmap/api/internal/apperr"
	"github.com/loadmap/api/internal/database"
	"github.com/loadmap/api/internal/enum"
	"github.com/shopspring/decimal"
)

// OrderStore defines the DB methods needed for order entry.
// Satisfied by every database.Querier.
type OrderStore interface {
	GetProductByDescription(ctx context.Context, description string) (database.Product, error)
	NextOrderID(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, rowID uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error)
	DeleteOrder(ctx context.Context, arg database.DeleteOrderParams) error
}

// CreateOrderRequest is the validated input for entering an order line.
// ID zero means "assign the next free id". TotalWeight is read only for
// VARIABLE products.
type CreateOrderRequest struct {
	ID          int64
	ClientName  string
	Region      string
	Product     string
	BoxCount    int64
	TotalWeight *decimal.Decimal
}

// UpdateOrderRequest replaces the editable fields of a PENDING row.
type UpdateOrderRequest struct {
	ClientName  string
	Region      string
	Product     string
	BoxCount    int64
	TotalWeight *decimal.Decimal
}

// ListOrdersRequest filters the active order rows. Zero values mean "any".
type ListOrdersRequest struct {
	Status  string
	Region  string
	OrderID int64
}

// OrderService handles order entry and editing of pending rows.
type OrderService struct {
	store OrderStore
	audit Recorder
}

func NewOrderService(store OrderStore, audit Recorder) *OrderService {
	return &OrderService{store: store, audit: audit}
}

// CreateOrder enters a new PENDING row. FIXED products get their weight from
// the catalog; VARIABLE products require one.
func (s *OrderService) CreateOrder(ctx context.Context, actor Actor, req CreateOrderRequest) (database.Order, error) {
	line, err := s.prepare(ctx, req.ID, req.ClientName, req.Region, req.Product, req.BoxCount, req.TotalWeight)
	if err != nil {
		return database.Order{}, err
	}

	if line.id == 0 {
		line.id, err = s.store.NextOrderID(ctx)
		if err != nil {
			return database.Order{}, apperr.Storage(0, line.product, fmt.Errorf("next order id: %w", err))
		}
	}

	o, err := s.store.CreateOrder(ctx, database.CreateOrderParams{
		OrderID:     line.id,
		ClientName:  line.client,
		Region:      line.region,
		Product:     line.product,
		BoxCount:    line.boxes,
		TotalWeight: line.weight,
		Status:      database.OrderStatusPENDING,
	})
	if err != nil {
		return database.Order{}, apperr.Storage(line.id, line.product, err)
	}

	s.audit.Record(ctx, actor, enum.AuditOrderCreated,
		fmt.Sprintf("order %d %s: %d boxes of %s", o.ID, o.ClientName, o.BoxCount, o.Product))
	return o, nil
}

// UpdateOrder edits a row that is still PENDING.
func (s *OrderService) UpdateOrder(ctx context.Context, actor Actor, rowID uuid.UUID, req UpdateOrderRequest) (database.Order, error) {
	cur, err := s.pendingRow(ctx, rowID)
	if err != nil {
		return database.Order{}, err
	}

	line, err := s.prepare(ctx, cur.ID, req.ClientName, req.Region, req.Product, req.BoxCount, req.TotalWeight)
	if err != nil {
		return database.Order{}, err
	}

	o, err := s.store.UpdateOrder(ctx, database.UpdateOrderParams{
		RowID:          rowID,
		ClientName:     line.client,
		Region:         line.region,
		Product:        line.product,
		BoxCount:       line.boxes,
		TotalWeight:    line.weight,
		ExpectedStatus: database.OrderStatusPENDING,
	})
	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return database.Order{}, apperr.Conflict(cur.ID, cur.Product, "order status changed, please retry")
		}
		return database.Order{}, apperr.Storage(cur.ID, cur.Product, err)
	}

	s.audit.Record(ctx, actor, enum.AuditOrderUpdated,
		fmt.Sprintf("order %d %s: %d boxes of %s", o.ID, o.ClientName, o.BoxCount, o.Product))
	return o, nil
}

// DeleteOrder removes a row that is still PENDING.
func (s *OrderService) DeleteOrder(ctx context.Context, actor Actor, rowID uuid.UUID) error {
	cur, err := s.pendingRow(ctx, rowID)
	if err != nil {
		return err
	}

	err = s.store.DeleteOrder(ctx, database.DeleteOrderParams{RowID: rowID, ExpectedStatus: database.OrderStatusPENDING})
	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return apperr.Conflict(cur.ID, cur.Product, "order status changed, please retry")
		}
		return apperr.Storage(cur.ID, cur.Product, err)
	}

	s.audit.Record(ctx, actor, enum.AuditOrderDeleted,
		fmt.Sprintf("order %d %s: %d boxes of %s", cur.ID, cur.ClientName, cur.BoxCount, cur.Product))
	return nil
}

func (s *OrderService) List(ctx context.Context, req ListOrdersRequest) ([]database.Order, error) {
	params := database.ListOrdersParams{Region: strings.ToUpper(strings.TrimSpace(req.Region)), OrderID: req.OrderID}
	if req.Status != "" {
		status, err := parseOrderStatus(req.Status)
		if err != nil {
			return nil, err
		}
		params.Status = status
	}
	orders, err := s.store.ListOrders(ctx, params)
	if err != nil {
		return nil, apperr.Storage(req.OrderID, "", err)
	}
	return orders, nil
}

func (s *OrderService) pendingRow(ctx context.Context, rowID uuid.UUID) (database.Order, error) {
	cur, err := s.store.GetOrder(ctx, rowID)
	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return database.Order{}, apperr.NotFound(0, "", "order row %s not found", rowID)
		}
		return database.Order{}, apperr.Storage(0, "", err)
	}
	if cur.Status != database.OrderStatusPENDING {
		return database.Order{}, apperr.Conflict(cur.ID, cur.Product, "status is %s, only PENDING orders can be edited", cur.Status)
	}
	return cur, nil
}

// orderLine is a fully validated order line ready to be stored.
type orderLine struct {
	id      int64
	client  string
	region  string
	product string
	boxes   int64
	weight  decimal.Decimal
}

func (s *OrderService) prepare(ctx context.Context, id int64, client, region, product string, boxes int64, weight *decimal.Decimal) (orderLine, error) {
	line := orderLine{
		id:      id,
		client:  strings.TrimSpace(client),
		product: strings.TrimSpace(product),
		boxes:   boxes,
	}
	if id < 0 {
		return orderLine{}, apperr.Validation(id, line.product, "id must be > 0")
	}
	if line.client == "" {
		return orderLine{}, apperr.Validation(id, line.product, "client_name is required")
	}
	if line.product == "" {
		return orderLine{}, apperr.Validation(id, "", "product is required")
	}
	if boxes <= 0 {
		return orderLine{}, apperr.Validation(id, line.product, "box_count must be > 0")
	}

	line.region = strings.ToUpper(strings.TrimSpace(region))
	if line.region == "" {
		line.region = RegionFromClient(line.client)
	}

	p, err := s.store.GetProductByDescription(ctx, line.product)
	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return orderLine{}, apperr.Validation(id, line.product, "product is not in the catalog")
		}
		return orderLine{}, apperr.Storage(id, line.product, err)
	}

	switch p.WeightMode {
	case database.WeightModeVARIABLE:
		if weight == nil {
			return orderLine{}, apperr.Validation(id, line.product, "total_weight is required for VARIABLE products")
		}
		if weight.IsNegative() {
			return orderLine{}, apperr.Validation(id, line.product, "total_weight must be >= 0")
		}
		line.weight = weight.Round(database.WeightPlaces)
	default:
		line.weight = p.UnitWeight.Mul(decimal.NewFromInt(boxes)).Round(database.WeightPlaces)
	}
	return line, nil
}

var regionSuffix = regexp.MustCompile(`\(\s*([A-Za-z]{2})\s*\)\s*$`)

// RegionFromClient extracts the state code of a "Client (UF)" name, or ""
// when the name carries none.
func RegionFromClient(client string) string {
	m := regionSuffix.FindStringSubmatch(client)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

func parseOrderStatus(s string) (database.OrderStatus, error) {
	switch st := database.OrderStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case database.OrderStatusPENDING, database.OrderStatusENROUTE, database.OrderStatusDELIVERED:
		return st, nil
	}
	return "", apperr.Validation(0, "", "invalid status %q", s)
}
