package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// InsightHandler handles insight endpoints
type InsightHandler struct {
	service InsightService
	logger  *logger.Logger
}

// NewInsightHandler creates a new insight handler
func NewInsightHandler(svc InsightService, log *logger.Logger) *InsightHandler {
	return &InsightHandler{
		service: svc,
		logger:  log,
	}
}

// List returns the open insights
func (h *InsightHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organization(w, r)
	if !ok {
		return
	}

	insights, err := h.service.Active(r.Context(), orgID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, insights)
}

// Generate runs the restocking and expiry scans
func (h *InsightHandler) Generate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organization(w, r)
	if !ok {
		return
	}

	candidates, err := h.service.Generate(r.Context(), orgID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, candidates)
}

// Action closes an insight
func (h *InsightHandler) Action(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organization(w, r)
	if !ok {
		return
	}

	if err := h.service.Action(r.Context(), orgID, chi.URLParam(r, "id"), httputil.GetUserID(r.Context())); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
