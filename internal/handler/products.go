package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/loadmap/api/internal/database"
	"github.com/loadmap/api/internal/middleware"
	"github.com/loadmap/api/internal/service"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CatalogServicer defines the catalog operations used by ProductHandler.
// Satisfied by *service.CatalogService.
type CatalogServicer interface {
	Register(ctx context.Context, actor service.Actor, req service.RegisterProductRequest) (database.Product, error)
	Resolve(ctx context.Context, description string) (database.Product, error)
	List(ctx context.Context) ([]database.Product, error)
}

// ProductHandler handles the product catalog endpoints.
type ProductHandler struct {
	catalog CatalogServicer
	log     logrus.FieldLogger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(catalog CatalogServicer, log logrus.FieldLogger) *ProductHandler {
	return &ProductHandler{catalog: catalog, log: log}
}

// RegisterRoutes registers product endpoints on the given Chi router.
// Expected to be mounted under /products.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/resolve", h.Resolve)
	r.With(middleware.RequireFullAccess).Post("/", h.Register)
}

// --- Request types ---

type registerProductRequest struct {
	Description string          `json:"description" validate:"required"`
	UnitWeight  decimal.Decimal `json:"unit_weight"`
	WeightMode  string          `json:"weight_mode" validate:"omitempty,oneof=FIXED VARIABLE fixed variable"`
}

// --- Handlers ---

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// Resolve looks a product up by its exact description (?description=).
func (h *ProductHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	desc := r.URL.Query().Get("description")
	if desc == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "description is required"})
		return
	}
	p, err := h.catalog.Resolve(r.Context(), desc)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Register(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req registerProductRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.catalog.Register(r.Context(), actor, service.RegisterProductRequest{
		Description: req.Description,
		UnitWeight:  req.UnitWeight,
		WeightMode:  req.WeightMode,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}
