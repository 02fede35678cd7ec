package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/loadmap/api/internal/database"
	"github.com/loadmap/api/internal/enum"
	"github.com/loadmap/api/internal/middleware"
	"github.com/loadmap/api/internal/service"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// OrderServicer defines the order entry operations used by OrderHandler.
// Satisfied by *service.OrderService.
type OrderServicer interface {
	CreateOrder(ctx context.Context, actor service.Actor, req service.CreateOrderRequest) (database.Order, error)
	UpdateOrder(ctx context.Context, actor service.Actor, rowID uuid.UUID, req service.UpdateOrderRequest) (database.Order, error)
	DeleteOrder(ctx context.Context, actor service.Actor, rowID uuid.UUID) error
	List(ctx context.Context, req service.ListOrdersRequest) ([]database.Order, error)
}

// OrderHandler handles order entry and editing endpoints.
type OrderHandler struct {
	orders   OrderServicer
	notifier Notifier
	log      logrus.FieldLogger
}

// NewOrderHandler creates a new OrderHandler. notifier may be nil.
func NewOrderHandler(orders OrderServicer, notifier Notifier, log logrus.FieldLogger) *OrderHandler {
	return &OrderHandler{orders: orders, notifier: notifier, log: log}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted under /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireFullAccess)
		r.Post("/", h.Create)
		r.Put("/{rowID}", h.Update)
		r.Delete("/{rowID}", h.Delete)
	})
}

// --- Request types ---

type orderLineRequest struct {
	ClientName  string           `json:"client_name" validate:"required"`
	Region      string           `json:"region" validate:"omitempty,len=2"`
	Product     string           `json:"product" validate:"required"`
	BoxCount    int64            `json:"box_count" validate:"gt=0"`
	TotalWeight *decimal.Decimal `json:"total_weight"`
}

type createOrderRequest struct {
	ID int64 `json:"id" validate:"gte=0"`
	orderLineRequest
}

// --- Handlers ---

// List returns active order rows filtered by ?status=, ?region= and ?order_id=.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.ListOrdersRequest{Status: q.Get("status"), Region: q.Get("region")}
	if s := q.Get("order_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order_id"})
			return
		}
		req.OrderID = id
	}

	orders, err := h.orders.List(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), actor, service.CreateOrderRequest{
		ID:          req.ID,
		ClientName:  req.ClientName,
		Region:      req.Region,
		Product:     req.Product,
		BoxCount:    req.BoxCount,
		TotalWeight: req.TotalWeight,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	if h.notifier != nil {
		h.notifier.Publish(order.Region, enum.EventOrderCreated, order)
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	rowID, ok := parseRowID(w, r)
	if !ok {
		return
	}
	var req orderLineRequest
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := h.orders.UpdateOrder(r.Context(), actor, rowID, service.UpdateOrderRequest{
		ClientName:  req.ClientName,
		Region:      req.Region,
		Product:     req.Product,
		BoxCount:    req.BoxCount,
		TotalWeight: req.TotalWeight,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	rowID, ok := parseRowID(w, r)
	if !ok {
		return
	}

	if err := h.orders.DeleteOrder(r.Context(), actor, rowID); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseRowID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	rowID, err := uuid.Parse(chi.URLParam(r, "rowID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid row id"})
		return uuid.Nil, false
	}
	return rowID, true
}
