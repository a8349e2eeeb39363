package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-backend/internal/inventory/forecast"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

const defaultMaxForecastDays = 90

// ForecastHandler serves demand forecasts
type ForecastHandler struct {
	forecaster Forecaster
	maxDays    int
	logger     *logger.Logger
}

// NewForecastHandler creates a new forecast handler. maxDays <= 0 allows up to 90.
func NewForecastHandler(f Forecaster, maxDays int, log *logger.Logger) *ForecastHandler {
	if maxDays <= 0 {
		maxDays = defaultMaxForecastDays
	}
	return &ForecastHandler{
		forecaster: f,
		maxDays:    maxDays,
		logger:     log,
	}
}

// Get forecasts a medicine's demand for ?days= days (default 7)
func (h *ForecastHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organization(w, r)
	if !ok {
		return
	}

	days := forecast.DefaultHorizon
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httputil.Error(w, errors.BadRequest("days must be an integer"))
			return
		}
		if n > h.maxDays {
			httputil.Error(w, errors.Validation(map[string]string{"days": "must be at most " + strconv.Itoa(h.maxDays)}))
			return
		}
		days = n
	}

	result, err := h.forecaster.Run(r.Context(), orgID, chi.URLParam(r, "id"), days)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
