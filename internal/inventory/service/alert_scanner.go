package service

import (
	"context"
	"fmt"
	"time"

	"github.com/medflow/pharmacy-backend/internal/inventory/cache"
	"github.com/medflow/pharmacy-backend/internal/inventory/events"
	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/pkg/clock"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/metrics"
	"github.com/medflow/pharmacy-backend/pkg/tenant"
)

const activeAlertsLimit = 10

// AlertBatchReader is the batch data the alert scan reads
type AlertBatchReader interface {
	ListAvailable(ctx context.Context, organizationID string) ([]*repository.BatchWithMedicine, error)
}

// AlertStore persists stock alerts
type AlertStore interface {
	CreateIfAbsent(ctx context.Context, alert *repository.StockAlert) (bool, error)
	Resolve(ctx context.Context, organizationID, id, userID string, at time.Time) error
	ListUnresolved(ctx context.Context, organizationID string, limit int) ([]*repository.StockAlertView, error)
}

// AlertScanner checks every available batch for expiry and low stock and
// records one open alert per batch and alert type.
type AlertScanner struct {
	batches AlertBatchReader
	alerts  AlertStore
	clock   clock.Clock
	cache   cache.DashboardCache
	events  *events.InventoryEventPublisher
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewAlertScanner creates a new alert scanner. events and metrics may be nil.
func NewAlertScanner(
	batches AlertBatchReader,
	alerts AlertStore,
	c clock.Clock,
	dashboardCache cache.DashboardCache,
	eventPublisher *events.InventoryEventPublisher,
	m *metrics.Metrics,
	log *logger.Logger,
) *AlertScanner {
	if dashboardCache == nil {
		dashboardCache = cache.NewNoopDashboardCache()
	}
	return &AlertScanner{
		batches: batches,
		alerts:  alerts,
		clock:   c,
		cache:   dashboardCache,
		events:  eventPublisher,
		metrics: m,
		logger:  log.WithComponent("alert_scanner"),
	}
}

// classifyExpiry applies the expiry thresholds, first match wins.
// ok is false when the batch is more than 60 days from expiry.
func classifyExpiry(expiry, now time.Time) (alertType, level, message string, ok bool) {
	switch {
	case expiry.Before(now):
		return repository.AlertExpired, repository.LevelCritical, "Medicine has expired", true
	case expiry.Before(now.AddDate(0, 0, 30)):
		return repository.AlertExpiryWarning, repository.LevelWarning, "Medicine expiring within 30 days", true
	case expiry.Before(now.AddDate(0, 0, 60)):
		return repository.AlertExpiryWarning, repository.LevelInfo, "Medicine expiring within 60 days", true
	}
	return "", "", "", false
}

// CheckAndCreateAlerts scans the organization's available batches and
// returns the alerts created by this run
func (s *AlertScanner) CheckAndCreateAlerts(ctx context.Context, organizationID string) (created []*repository.StockAlert, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveScan("alerts", start, err) }()

	log := s.logger.WithOrganization(organizationID)

	batches, err := s.batches.ListAvailable(ctx, organizationID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list batches")
		return nil, fmt.Errorf("alert scan: list batches: %w", err)
	}

	now := s.clock.Now()
	created = []*repository.StockAlert{}

	for _, b := range batches {
		var emissions []*repository.StockAlert

		if alertType, level, message, ok := classifyExpiry(b.ExpiryDate, now); ok {
			emissions = append(emissions, &repository.StockAlert{
				BatchID: b.ID, AlertType: alertType, AlertLevel: level, Message: message,
			})
		}

		if b.Quantity < b.MinimumStockLevel {
			emissions = append(emissions, &repository.StockAlert{
				BatchID:    b.ID,
				AlertType:  repository.AlertLowStock,
				AlertLevel: repository.LevelCritical,
				Message:    "Stock below minimum level",
			})
		}

		for _, alert := range emissions {
			ok, err := s.alerts.CreateIfAbsent(ctx, alert)
			if err != nil {
				log.Error().Err(err).Str("batch_id", b.ID).Str("alert_type", alert.AlertType).Msg("failed to create alert")
				return nil, fmt.Errorf("alert scan: create %s alert for batch %s: %w", alert.AlertType, b.ID, err)
			}
			if !ok {
				continue
			}

			created = append(created, alert)
			s.metrics.AlertCreated(alert.AlertType, alert.AlertLevel)
			s.events.PublishAlertGenerated(ctx, organizationID, alert)
		}
	}

	if len(created) > 0 {
		if err := s.cache.Invalidate(ctx, organizationID); err != nil {
			log.Warn().Err(err).Msg("failed to invalidate dashboard cache")
		}
	}

	log.Info().
		Int("batches", len(batches)).
		Int("created", len(created)).
		Dur("duration", time.Since(start)).
		Msg("alert scan completed")

	return created, nil
}

// ResolveAlert marks an alert resolved by userID. Resolving twice is not an
// error. When the context carries an organization, only its alerts match.
func (s *AlertScanner) ResolveAlert(ctx context.Context, alertID, userID string) error {
	organizationID, _ := tenant.OrganizationID(ctx)

	if err := s.alerts.Resolve(ctx, organizationID, alertID, userID, s.clock.Now()); err != nil {
		return err
	}

	if organizationID != "" {
		if err := s.cache.Invalidate(ctx, organizationID); err != nil {
			s.logger.Warn().Err(err).Str("organization_id", organizationID).Msg("failed to invalidate dashboard cache")
		}
	}

	s.events.PublishAlertResolved(ctx, alertID, userID)
	return nil
}

// ListActive returns the 10 most recent unresolved alerts
func (s *AlertScanner) ListActive(ctx context.Context, organizationID string) ([]*repository.StockAlertView, error) {
	return s.alerts.ListUnresolved(ctx, organizationID, activeAlertsLimit)
}
