package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

var errForbiddenNoOrg = errors.Forbidden("missing organization context")

// MedicineHandler handles medicine catalogue endpoints
type MedicineHandler struct {
	service InventoryService
	logger  *logger.Logger
}

// NewMedicineHandler creates a new medicine handler
func NewMedicineHandler(svc InventoryService, log *logger.Logger) *MedicineHandler {
	return &MedicineHandler{
		service: svc,
		logger:  log,
	}
}

type medicineRequest struct {
	Name              string          `json:"name" validate:"required,max=255"`
	GenericName       *string         `json:"generic_name"`
	Strength          *string         `json:"strength" validate:"omitempty,max=100"`
	Manufacturer      *string         `json:"manufacturer" validate:"omitempty,max=255"`
	CategoryID        *string         `json:"category_id" validate:"omitempty,uuid"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	MinimumStockLevel int             `json:"minimum_stock_level" validate:"min=0"`
	ReorderQuantity   int             `json:"reorder_quantity" validate:"min=0"`
	IsActive          *bool           `json:"is_active"`
}

func (req *medicineRequest) apply(m *repository.Medicine) {
	m.Name = req.Name
	m.GenericName = req.GenericName
	m.Strength = req.Strength
	m.Manufacturer = req.Manufacturer
	m.CategoryID = req.CategoryID
	m.UnitPrice = req.UnitPrice
	m.MinimumStockLevel = req.MinimumStockLevel
	m.ReorderQuantity = req.ReorderQuantity
	m.IsActive = true
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}
}

// List lists active medicines
func (h *MedicineHandler) List(w http.ResponseWriter, r *http.Request) {
	medicines, err := h.service.ListMedicines(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicines)
}

// Get gets a medicine by ID
func (h *MedicineHandler) Get(w http.ResponseWriter, r *http.Request) {
	medicine, err := h.service.GetMedicine(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicine)
}

// Create adds a medicine to the catalogue
func (h *MedicineHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req medicineRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	var medicine repository.Medicine
	req.apply(&medicine)
	if err := h.service.CreateMedicine(r.Context(), &medicine); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, medicine)
}

// Update replaces a medicine's catalogue fields
func (h *MedicineHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req medicineRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	medicine := repository.Medicine{ID: chi.URLParam(r, "id")}
	req.apply(&medicine)
	if err := h.service.UpdateMedicine(r.Context(), &medicine); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicine)
}
