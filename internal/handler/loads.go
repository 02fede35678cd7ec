package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/loadmap/api/internal/apperr"
	"github.com/loadmap/api/internal/database"
	"github.com/loadmap/api/internal/enum"
	"github.com/loadmap/api/internal/manifest"
	"github.com/loadmap/api/internal/middleware"
	"github.com/loadmap/api/internal/service"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// LoadServicer defines the lifecycle operations used by LoadHandler.
// Satisfied by *service.LifecycleService.
type LoadServicer interface {
	PreviewLoad(ctx context.Context, req service.PreviewLoadRequest) (*service.LoadPreview, error)
	ConfirmLoad(ctx context.Context, actor service.Actor, orderIDs []int64) (*service.BatchResult, error)
	ConfirmLoadWithinCapacity(ctx context.Context, actor service.Actor, orderIDs []int64, capacityKg decimal.Decimal) (*service.BatchResult, error)
	CancelLoad(ctx context.Context, actor service.Actor, orderIDs []int64) (*service.BatchResult, error)
	ConfirmDelivery(ctx context.Context, actor service.Actor, req service.ConfirmDeliveryRequest) (*service.DeliveryResult, error)
}

// LoadHandler handles load building, confirmation and delivery endpoints.
type LoadHandler struct {
	loads    LoadServicer
	notifier Notifier
	log      logrus.FieldLogger
}

// NewLoadHandler creates a new LoadHandler. notifier may be nil.
func NewLoadHandler(loads LoadServicer, notifier Notifier, log logrus.FieldLogger) *LoadHandler {
	return &LoadHandler{loads: loads, notifier: notifier, log: log}
}

// RegisterRoutes registers load endpoints on the given Chi router.
func (h *LoadHandler) RegisterRoutes(r chi.Router) {
	r.Post("/loads/preview", h.Preview)
	r.Post("/loads/manifest.csv", h.Manifest)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireFullAccess)
		r.Post("/loads/confirm", h.Confirm)
		r.Post("/loads/cancel", h.Cancel)
		r.Post("/deliveries", h.Deliver)
	})
}

// --- Request / Response types ---

type previewRequest struct {
	RowIDs     []uuid.UUID     `json:"row_ids"`
	OrderIDs   []int64         `json:"order_ids"`
	CapacityKg decimal.Decimal `json:"capacity_kg"`
}

type batchRequest struct {
	OrderIDs []int64 `json:"order_ids" validate:"required,min=1"`
}

// confirmRequest adds an opt-in truck capacity gate to a batch.
type confirmRequest struct {
	OrderIDs        []int64         `json:"order_ids" validate:"required,min=1"`
	EnforceCapacity bool            `json:"enforce_capacity"`
	CapacityKg      decimal.Decimal `json:"capacity_kg"`
}

type deliveryRequest struct {
	RowID          uuid.UUID `json:"row_id" validate:"required"`
	DeliveredBoxes *int64    `json:"delivered_boxes" validate:"required"`
}

type previewResponse struct {
	*service.LoadPreview
	Message string `json:"message"`
}

type batchResponse struct {
	RowsAffected int              `json:"rows_affected"`
	Affected     []database.Order `json:"affected"`
	Conflicts    []apperr.RowRef  `json:"conflicts"`
}

type batchAbortResponse struct {
	Error     string          `json:"error"`
	Succeeded []apperr.RowRef `json:"succeeded"`
	Failed    apperr.RowRef   `json:"failed"`
}

// --- Handlers ---

// Preview builds the load matrix and capacity check for a selection.
func (h *LoadHandler) Preview(w http.ResponseWriter, r *http.Request) {
	preview, ok := h.preview(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{LoadPreview: preview, Message: preview.Capacity.Message()})
}

// Manifest renders the same selection as a CSV manifest.
func (h *LoadHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	preview, ok := h.preview(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="manifest.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := manifest.WriteCSV(w, preview.Matrix); err != nil {
		h.log.WithError(err).Error("write manifest")
	}
}

// Confirm moves the PENDING rows of the given ids to EN_ROUTE. With
// enforce_capacity an over-limit load is rejected with 409.
func (h *LoadHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req confirmRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var res *service.BatchResult
	var err error
	if req.EnforceCapacity {
		res, err = h.loads.ConfirmLoadWithinCapacity(r.Context(), actor, req.OrderIDs, req.CapacityKg)
	} else {
		res, err = h.loads.ConfirmLoad(r.Context(), actor, req.OrderIDs)
	}
	h.writeBatch(w, res, err, enum.EventLoadConfirmed)
}

func (h *LoadHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req batchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.loads.CancelLoad(r.Context(), actor, req.OrderIDs)
	h.writeBatch(w, res, err, enum.EventLoadCancelled)
}

// Deliver confirms delivered boxes for one EN_ROUTE row.
func (h *LoadHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req deliveryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.loads.ConfirmDelivery(r.Context(), actor, service.ConfirmDeliveryRequest{
		RowID:          req.RowID,
		DeliveredBoxes: *req.DeliveredBoxes,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	h.publish(res.Ledger.Region, enum.EventDeliveryConfirmed, res)
	writeJSON(w, http.StatusOK, res)
}

// --- Helpers ---

func (h *LoadHandler) preview(w http.ResponseWriter, r *http.Request) (*service.LoadPreview, bool) {
	var req previewRequest
	if !decodeBody(w, r, &req) {
		return nil, false
	}
	if len(req.RowIDs) == 0 && len(req.OrderIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "row_ids or order_ids is required"})
		return nil, false
	}

	preview, err := h.loads.PreviewLoad(r.Context(), service.PreviewLoadRequest{
		RowIDs:     req.RowIDs,
		OrderIDs:   req.OrderIDs,
		CapacityKg: req.CapacityKg,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return nil, false
	}
	return preview, true
}

// writeBatch publishes every moved row, including those moved before an
// aborted batch, then writes the batch outcome.
func (h *LoadHandler) writeBatch(w http.ResponseWriter, res *service.BatchResult, err error, event string) {
	if res != nil {
		for _, o := range res.Affected {
			h.publish(o.Region, event, o)
		}
	}
	if err != nil {
		var be *apperr.BatchError
		if errors.As(err, &be) {
			h.log.WithError(be.Err).WithField("succeeded", len(be.Succeeded)).Error("load batch aborted")
			writeJSON(w, http.StatusInternalServerError, batchAbortResponse{
				Error:     "batch aborted, some rows were already updated",
				Succeeded: be.Succeeded,
				Failed:    be.Failed,
			})
			return
		}
		writeServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, batchResponse{
		RowsAffected: res.RowsAffected(),
		Affected:     res.Affected,
		Conflicts:    res.Conflicts,
	})
}

func (h *LoadHandler) publish(region, event string, payload interface{}) {
	if h.notifier != nil {
		h.notifier.Publish(region, event, payload)
	}
}
