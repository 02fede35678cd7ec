package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/loadmap/api/internal/database"
	"github.com/loadmap/api/internal/service"
	"github.com/sirupsen/logrus"
)

// ReportServicer defines the reporting operations used by ReportHandler.
// Satisfied by *service.ReportService.
type ReportServicer interface {
	PendingByRegion(ctx context.Context) ([]service.RegionLoad, error)
	DeliveredByProduct(ctx context.Context) ([]service.ProductDelivery, error)
	Ledger(ctx context.Context, orderID int64, product string) ([]database.LedgerEntry, error)
}

// ReportHandler handles the delivery ledger and summary reports.
type ReportHandler struct {
	reports ReportServicer
	log     logrus.FieldLogger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reports ReportServicer, log logrus.FieldLogger) *ReportHandler {
	return &ReportHandler{reports: reports, log: log}
}

// RegisterRoutes registers report endpoints on the given Chi router.
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ledger", h.Ledger)
	r.Get("/reports/pending-by-region", h.PendingByRegion)
	r.Get("/reports/delivered-by-product", h.DeliveredByProduct)
}

// Ledger lists delivered entries, optionally filtered by ?order_id= and ?product=.
func (h *ReportHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var orderID int64
	if s := q.Get("order_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order_id"})
			return
		}
		orderID = id
	}

	entries, err := h.reports.Ledger(r.Context(), orderID, q.Get("product"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *ReportHandler) PendingByRegion(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reports.PendingByRegion(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *ReportHandler) DeliveredByProduct(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reports.DeliveredByProduct(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
