package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-backend/internal/inventory/forecast"
	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/internal/inventory/service"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/tenant"
)

// InventoryService is the catalogue, batch and dashboard logic the handlers call
type InventoryService interface {
	ListMedicines(ctx context.Context) ([]*repository.Medicine, error)
	GetMedicine(ctx context.Context, id string) (*repository.Medicine, error)
	CreateMedicine(ctx context.Context, m *repository.Medicine) error
	UpdateMedicine(ctx context.Context, m *repository.Medicine) error
	ListBatches(ctx context.Context, organizationID string) ([]*repository.BatchWithMedicine, error)
	GetBatch(ctx context.Context, organizationID, id string) (*repository.BatchWithMedicine, error)
	AddBatch(ctx context.Context, batch *repository.Batch) error
	UpdateBatchQuantity(ctx context.Context, organizationID, batchID string, newQuantity int, txType, reason, performedBy string) (*repository.QuantityChange, error)
	Dashboard(ctx context.Context, organizationID string) (*service.DashboardStats, error)
}

// AlertService runs and resolves stock alerts
type AlertService interface {
	CheckAndCreateAlerts(ctx context.Context, organizationID string) ([]*repository.StockAlert, error)
	ResolveAlert(ctx context.Context, alertID, userID string) error
	ListActive(ctx context.Context, organizationID string) ([]*repository.StockAlertView, error)
}

// InsightService generates and closes insights
type InsightService interface {
	Generate(ctx context.Context, organizationID string) ([]service.InsightCandidate, error)
	Active(ctx context.Context, organizationID string) ([]*repository.Insight, error)
	Action(ctx context.Context, organizationID, insightID, userID string) error
}

// Forecaster produces demand forecasts
type Forecaster interface {
	Run(ctx context.Context, organizationID, medicineID string, horizonDays int) (*forecast.Result, error)
}

// Handlers groups the inventory HTTP handlers
type Handlers struct {
	Medicines *MedicineHandler
	Batches   *BatchHandler
	Alerts    *AlertHandler
	Insights  *InsightHandler
	Forecasts *ForecastHandler
	Dashboard *DashboardHandler
}

// Register mounts the inventory routes. The caller applies authentication
// and httputil.RequireOrganization.
func (h *Handlers) Register(r chi.Router) {
	r.Route("/medicines", func(r chi.Router) {
		r.Get("/", h.Medicines.List)
		r.Post("/", h.Medicines.Create)
		r.Get("/{id}", h.Medicines.Get)
		r.Put("/{id}", h.Medicines.Update)
		r.Get("/{id}/forecast", h.Forecasts.Get)
	})

	r.Route("/batches", func(r chi.Router) {
		r.Get("/", h.Batches.List)
		r.Post("/", h.Batches.Create)
		r.Get("/{id}", h.Batches.Get)
		r.Patch("/{id}/quantity", h.Batches.UpdateQuantity)
	})

	r.Route("/alerts", func(r chi.Router) {
		r.Get("/", h.Alerts.List)
		r.Post("/scan", h.Alerts.Scan)
		r.Post("/{id}/resolve", h.Alerts.Resolve)
	})

	r.Route("/insights", func(r chi.Router) {
		r.Get("/", h.Insights.List)
		r.Post("/generate", h.Insights.Generate)
		r.Post("/{id}/action", h.Insights.Action)
	})

	r.Get("/dashboard/stats", h.Dashboard.GetStats)
}

// organization reads the tenant from the request, writing a 403 when absent
func organization(w http.ResponseWriter, r *http.Request) (string, bool) {
	orgID, err := tenant.OrganizationID(r.Context())
	if err != nil {
		httputil.Error(w, errForbiddenNoOrg)
		return "", false
	}
	return orgID, true
}
