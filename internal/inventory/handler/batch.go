package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// BatchHandler handles batch endpoints
type BatchHandler struct {
	service InventoryService
	logger  *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(svc InventoryService, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		service: svc,
		logger:  log,
	}
}

type addBatchRequest struct {
	MedicineID        string          `json:"medicine_id" validate:"required,uuid"`
	BatchNumber       string          `json:"batch_number" validate:"required,max=100"`
	Quantity          int             `json:"quantity" validate:"min=0"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	ExpiryDate        string          `json:"expiry_date" validate:"required,datetime=2006-01-02"`
	ManufacturingDate string          `json:"manufacturing_date" validate:"omitempty,datetime=2006-01-02"`
	Location          *string         `json:"location" validate:"omitempty,max=100"`
}

type updateQuantityRequest struct {
	Quantity        *int   `json:"quantity" validate:"required,min=0"`
	TransactionType string `json:"transaction_type" validate:"required,oneof=inbound outbound adjustment disposal"`
	Reason          string `json:"reason" validate:"max=500"`
}

// List lists the organization's available batches
func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organization(w, r)
	if !ok {
		return
	}

	batches, err := h.service.ListBatches(r.Context(), orgID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// Get gets a batch by ID
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organization(w, r)
	if !ok {
		return
	}

	batch, err := h.service.GetBatch(r.Context(), orgID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// Create receives a new batch
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organization(w, r)
	if !ok {
		return
	}

	var req addBatchRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if req.UnitPrice.IsNegative() {
		httputil.Error(w, errors.Validation(map[string]string{"unit_price": "must not be negative"}))
		return
	}

	expiry, _ := time.Parse(time.DateOnly, req.ExpiryDate)
	batch := repository.Batch{
		OrganizationID: orgID,
		MedicineID:     req.MedicineID,
		BatchNumber:    req.BatchNumber,
		Quantity:       req.Quantity,
		UnitPrice:      req.UnitPrice,
		ExpiryDate:     expiry,
		Location:       req.Location,
	}
	if req.ManufacturingDate != "" {
		manufactured, _ := time.Parse(time.DateOnly, req.ManufacturingDate)
		batch.ManufacturingDate = &manufactured
	}

	if err := h.service.AddBatch(r.Context(), &batch); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, batch)
}

// UpdateQuantity sets a batch's quantity and records the transaction
func (h *BatchHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organization(w, r)
	if !ok {
		return
	}

	var req updateQuantityRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	change, err := h.service.UpdateBatchQuantity(
		r.Context(), orgID, chi.URLParam(r, "id"),
		*req.Quantity, req.TransactionType, req.Reason, httputil.GetUserID(r.Context()),
	)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, change)
}
