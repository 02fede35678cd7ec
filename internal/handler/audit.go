package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/loadmap/api/internal/database"
	"github.com/sirupsen/logrus"
)

// AuditLister is satisfied by *service.AuditService.
type AuditLister interface {
	List(ctx context.Context, limit int) ([]database.AuditEntry, error)
}

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	audit AuditLister
	log   logrus.FieldLogger
}

func NewAuditHandler(audit AuditLister, log logrus.FieldLogger) *AuditHandler {
	return &AuditHandler{audit: audit, log: log}
}

func (h *AuditHandler) RegisterRoutes(r chi.Router) {
	r.Get("/audit", h.List)
}

// List returns the newest audit entries; ?limit= defaults to 100.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	var limit int
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	entries, err := h.audit.List(r.Context(), limit)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
