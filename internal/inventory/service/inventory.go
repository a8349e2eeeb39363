package service

import (
	"context"
	"time"

	"github.com/medflow/pharmacy-backend/internal/inventory/cache"
	"github.com/medflow/pharmacy-backend/internal/inventory/events"
	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/pkg/clock"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// MedicineStore persists the medicine catalogue
type MedicineStore interface {
	Create(ctx context.Context, m *repository.Medicine) error
	GetByID(ctx context.Context, id string) (*repository.Medicine, error)
	ListActive(ctx context.Context) ([]*repository.Medicine, error)
	Update(ctx context.Context, m *repository.Medicine) error
}

// BatchStore persists batches and their quantity ledger
type BatchStore interface {
	Create(ctx context.Context, b *repository.Batch) error
	GetByID(ctx context.Context, organizationID, id string) (*repository.BatchWithMedicine, error)
	ListAvailable(ctx context.Context, organizationID string) ([]*repository.BatchWithMedicine, error)
	UpdateQuantity(ctx context.Context, organizationID, batchID string, newQuantity int, txType string, reason, performedBy *string) (*repository.QuantityChange, error)
	CountByOrganization(ctx context.Context, organizationID string) (int64, error)
	CountBelowMinimum(ctx context.Context, organizationID string) (int64, error)
}

// AlertCounter counts unresolved alerts
type AlertCounter interface {
	CountUnresolved(ctx context.Context, organizationID, alertType string) (int64, error)
}

// DashboardStats are the headline counts shown on the dashboard
type DashboardStats struct {
	TotalBatches    int64     `json:"total_batches"`
	LowStockCount   int64     `json:"low_stock_count"`
	ExpiringCount   int64     `json:"expiring_count"`
	ActiveAlerts    int64     `json:"active_alerts"`
	GeneratedAt     time.Time `json:"generated_at"`
	ServedFromCache bool      `json:"served_from_cache"`
}

// InventoryService handles inventory business logic
type InventoryService struct {
	medicines MedicineStore
	batches   BatchStore
	alerts    AlertCounter
	cache     cache.DashboardCache
	publisher *events.InventoryEventPublisher
	clock     clock.Clock
	logger    *logger.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	medicines MedicineStore,
	batches BatchStore,
	alerts AlertCounter,
	dashboardCache cache.DashboardCache,
	publisher *events.InventoryEventPublisher,
	c clock.Clock,
	log *logger.Logger,
) *InventoryService {
	if dashboardCache == nil {
		dashboardCache = cache.NewNoopDashboardCache()
	}
	if c == nil {
		c = clock.Real{}
	}
	return &InventoryService{
		medicines: medicines,
		batches:   batches,
		alerts:    alerts,
		cache:     dashboardCache,
		publisher: publisher,
		clock:     c,
		logger:    log.WithComponent("inventory"),
	}
}

// Medicine operations

// ListMedicines lists active medicines ordered by name
func (s *InventoryService) ListMedicines(ctx context.Context) ([]*repository.Medicine, error) {
	return s.medicines.ListActive(ctx)
}

// GetMedicine gets a medicine by ID
func (s *InventoryService) GetMedicine(ctx context.Context, id string) (*repository.Medicine, error) {
	return s.medicines.GetByID(ctx, id)
}

// CreateMedicine adds a medicine to the catalogue
func (s *InventoryService) CreateMedicine(ctx context.Context, m *repository.Medicine) error {
	if m.UnitPrice.IsNegative() {
		return errors.Validation(map[string]string{"unit_price": "must not be negative"})
	}
	return s.medicines.Create(ctx, m)
}

// UpdateMedicine updates a catalogue entry
func (s *InventoryService) UpdateMedicine(ctx context.Context, m *repository.Medicine) error {
	if m.UnitPrice.IsNegative() {
		return errors.Validation(map[string]string{"unit_price": "must not be negative"})
	}
	return s.medicines.Update(ctx, m)
}

// Batch operations

// ListBatches lists the organization's available batches, soonest expiry first
func (s *InventoryService) ListBatches(ctx context.Context, organizationID string) ([]*repository.BatchWithMedicine, error) {
	return s.batches.ListAvailable(ctx, organizationID)
}

// GetBatch gets one of the organization's batches
func (s *InventoryService) GetBatch(ctx context.Context, organizationID, id string) (*repository.BatchWithMedicine, error) {
	return s.batches.GetByID(ctx, organizationID, id)
}

// AddBatch receives a new batch into stock
func (s *InventoryService) AddBatch(ctx context.Context, batch *repository.Batch) error {
	if _, err := s.medicines.GetByID(ctx, batch.MedicineID); err != nil {
		return err
	}

	batch.IsAvailable = true
	if err := s.batches.Create(ctx, batch); err != nil {
		return err
	}

	s.invalidate(ctx, batch.OrganizationID)
	s.publisher.PublishBatchCreated(ctx, batch)
	return nil
}

// UpdateBatchQuantity sets a batch's quantity and logs the change as a transaction
func (s *InventoryService) UpdateBatchQuantity(ctx context.Context, organizationID, batchID string, newQuantity int, txType, reason, performedBy string) (*repository.QuantityChange, error) {
	switch txType {
	case repository.TransactionInbound, repository.TransactionOutbound,
		repository.TransactionAdjustment, repository.TransactionDisposal:
	default:
		return nil, errors.Validation(map[string]string{"transaction_type": "must be one of inbound outbound adjustment disposal"})
	}
	if newQuantity < 0 {
		return nil, errors.Validation(map[string]string{"quantity": "must not be negative"})
	}

	change, err := s.batches.UpdateQuantity(ctx, organizationID, batchID, newQuantity, txType, optional(reason), optional(performedBy))
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("organization_id", organizationID).
		Str("batch_id", batchID).
		Str("transaction_type", txType).
		Int("quantity_change", change.QuantityChange).
		Msg("batch quantity updated")

	s.invalidate(ctx, organizationID)
	s.publisher.PublishStockAdjusted(ctx, organizationID, change)
	return change, nil
}

// Dashboard returns the organization's headline counts, from cache when fresh
func (s *InventoryService) Dashboard(ctx context.Context, organizationID string) (*DashboardStats, error) {
	var cached DashboardStats
	hit, err := s.cache.Get(ctx, organizationID, &cached)
	if err != nil {
		s.logger.Warn().Err(err).Msg("dashboard cache read failed")
	}
	if hit {
		cached.ServedFromCache = true
		return &cached, nil
	}

	stats := &DashboardStats{GeneratedAt: s.clock.Now().UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.batches.CountByOrganization(gctx, organizationID)
		stats.TotalBatches = n
		return err
	})
	g.Go(func() error {
		n, err := s.batches.CountBelowMinimum(gctx, organizationID)
		stats.LowStockCount = n
		return err
	})
	g.Go(func() error {
		n, err := s.alerts.CountUnresolved(gctx, organizationID, repository.AlertExpiryWarning)
		stats.ExpiringCount = n
		return err
	})
	g.Go(func() error {
		n, err := s.alerts.CountUnresolved(gctx, organizationID, "")
		stats.ActiveAlerts = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, organizationID, stats); err != nil {
		s.logger.Warn().Err(err).Msg("dashboard cache write failed")
	}

	return stats, nil
}

func (s *InventoryService) invalidate(ctx context.Context, organizationID string) {
	if err := s.cache.Invalidate(ctx, organizationID); err != nil {
		s.logger.Warn().Err(err).Str("organization_id", organizationID).Msg("failed to invalidate dashboard cache")
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
