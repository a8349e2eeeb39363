package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-backend/internal/orders/repository"
	"github.com/medflow/pharmacy-backend/internal/orders/service"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/tenant"
)

// OrderService is the purchasing logic the handler calls
type OrderService interface {
	ListSuppliers(ctx context.Context, organizationID string) ([]*repository.Supplier, error)
	CreateSupplier(ctx context.Context, supplier *repository.Supplier) error
	ListOrders(ctx context.Context, organizationID string) ([]*repository.PurchaseOrder, error)
	GetOrder(ctx context.Context, organizationID, id string) (*repository.PurchaseOrder, error)
	CreateOrder(ctx context.Context, organizationID, userID string, in service.CreateOrderInput) (*repository.PurchaseOrder, error)
	CreateFromInsight(ctx context.Context, organizationID, userID, insightID, supplierID string) (*repository.PurchaseOrder, error)
	UpdateStatus(ctx context.Context, organizationID, id, status string) (*repository.PurchaseOrder, error)
}

// OrderHandler handles supplier and purchase order endpoints
type OrderHandler struct {
	service OrderService
	logger  *logger.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(svc OrderService, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  log,
	}
}

// Register mounts the purchasing routes
func (h *OrderHandler) Register(r chi.Router) {
	r.Route("/suppliers", func(r chi.Router) {
		r.Get("/", h.ListSuppliers)
		r.Post("/", h.CreateSupplier)
	})

	r.Route("/purchase-orders", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Post("/from-insight", h.CreateFromInsight)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}/status", h.UpdateStatus)
	})
}

type supplierRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	ContactName *string `json:"contact_name" validate:"omitempty,max=255"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Phone       *string `json:"phone" validate:"omitempty,max=50"`
	Address     *string `json:"address"`
}

type createOrderRequest struct {
	SupplierID           string              `json:"supplier_id" validate:"required,uuid"`
	ExpectedDeliveryDate string              `json:"expected_delivery_date" validate:"omitempty,datetime=2006-01-02"`
	Notes                *string             `json:"notes" validate:"omitempty,max=2000"`
	Items                []service.ItemInput `json:"items" validate:"required,min=1,dive"`
}

type fromInsightRequest struct {
	InsightID  string `json:"insight_id" validate:"required"`
	SupplierID string `json:"supplier_id" validate:"required,uuid"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed shipped delivered cancelled"`
}

func organization(w http.ResponseWriter, r *http.Request) (string, bool) {
	orgID, err := tenant.OrganizationID(r.Context())
	if err != nil {
		httputil.Error(w, errors.Forbidden("missing organization context"))
		return "", false
	}
	return orgID, true
}

// ListSuppliers lists suppliers
func (h *OrderHandler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organization(w, r)
	if !ok {
		return
	}

	suppliers, err := h.service.ListSuppliers(r.Context(), orgID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, suppliers)
}

// CreateSupplier adds a supplier
func (h *OrderHandler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organization(w, r)
	if !ok {
		return
	}

	var req supplierRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	supplier := repository.Supplier{
		OrganizationID: orgID,
		Name:           req.Name,
		ContactName:    req.ContactName,
		Email:          req.Email,
		Phone:          req.Phone,
		Address:        req.Address,
	}
	if err := h.service.CreateSupplier(r.Context(), &supplier); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, supplier)
}

// List lists purchase orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organization(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListOrders(r.Context(), orgID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, orders)
}

// Get gets a purchase order
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organization(w, r)
	if !ok {
		return
	}

	po, err := h.service.GetOrder(r.Context(), orgID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, po)
}

// Create places a purchase order
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organization(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	in := service.CreateOrderInput{
		SupplierID: req.SupplierID,
		Notes:      req.Notes,
		Items:      req.Items,
	}
	if req.ExpectedDeliveryDate != "" {
		expected, _ := time.Parse(time.DateOnly, req.ExpectedDeliveryDate)
		in.ExpectedDeliveryDate = &expected
	}

	po, err := h.service.CreateOrder(r.Context(), orgID, httputil.GetUserID(r.Context()), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, po)
}

// CreateFromInsight drafts an order from a restocking insight
func (h *OrderHandler) CreateFromInsight(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organization(w, r)
	if !ok {
		return
	}

	var req fromInsightRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	po, err := h.service.CreateFromInsight(r.Context(), orgID, httputil.GetUserID(r.Context()), req.InsightID, req.SupplierID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, po)
}

// UpdateStatus moves an order to a new status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organization(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	po, err := h.service.UpdateStatus(r.Context(), orgID, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, po)
}
