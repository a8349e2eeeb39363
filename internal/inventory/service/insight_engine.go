package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/medflow/pharmacy-backend/internal/inventory/events"
	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/pkg/clock"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/metrics"
)

const (
	expiryRiskWindowDays = 30
	urgentExpiryDays     = 7
	activeInsightsLimit  = 10
)

// InsightBatchReader is the batch data the insight scans read
type InsightBatchReader interface {
	ListAvailable(ctx context.Context, organizationID string) ([]*repository.BatchWithMedicine, error)
	ListExpiringBetween(ctx context.Context, organizationID string, after, until time.Time) ([]*repository.BatchWithMedicine, error)
}

// InsightStore persists insights
type InsightStore interface {
	CreateIfAbsent(ctx context.Context, insight *repository.Insight) (bool, error)
	ListActive(ctx context.Context, organizationID string, limit int) ([]*repository.Insight, error)
	MarkActioned(ctx context.Context, organizationID, id, userID string, at time.Time) error
}

// InsightCandidate is an insight produced by a scan, before deduplication.
// ID is derived from the subject: restock-<medicine> or expiry-<batch>.
type InsightCandidate struct {
	ID                string `json:"id"`
	InsightType       string `json:"insight_type"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	Recommendation    string `json:"recommendation"`
	Priority          string `json:"priority"`
	RelatedMedicineID string `json:"related_medicine_id"`
	// Stored is true when this run created the open insight
	Stored bool `json:"stored"`
}

// InsightEngine scans inventory for restocking and expiry risks
type InsightEngine struct {
	batches  InsightBatchReader
	insights InsightStore
	clock    clock.Clock
	events   *events.InventoryEventPublisher
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewInsightEngine creates a new insight engine. events and metrics may be nil.
func NewInsightEngine(
	batches InsightBatchReader,
	insights InsightStore,
	c clock.Clock,
	eventPublisher *events.InventoryEventPublisher,
	m *metrics.Metrics,
	log *logger.Logger,
) *InsightEngine {
	return &InsightEngine{
		batches:  batches,
		insights: insights,
		clock:    c,
		events:   eventPublisher,
		metrics:  m,
		logger:   log.WithComponent("insight_engine"),
	}
}

// RestockingScan emits one high-priority candidate per available batch
// holding less than its medicine's minimum stock level.
func (e *InsightEngine) RestockingScan(ctx context.Context, organizationID string) ([]InsightCandidate, error) {
	batches, err := e.batches.ListAvailable(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("restocking scan: list batches: %w", err)
	}

	candidates := []InsightCandidate{}
	for _, b := range batches {
		if b.Quantity >= b.MinimumStockLevel {
			continue
		}

		candidates = append(candidates, InsightCandidate{
			ID:                "restock-" + b.MedicineID,
			InsightType:       repository.InsightRestocking,
			Title:             fmt.Sprintf("Reorder %s", b.MedicineName),
			Description:       fmt.Sprintf("Current stock: %d units. Recommended reorder quantity: %d", b.Quantity, b.ReorderQuantity),
			Recommendation:    fmt.Sprintf("Place purchase order for at least %d units of %s", b.ReorderQuantity, b.MedicineName),
			Priority:          repository.PriorityHigh,
			RelatedMedicineID: b.MedicineID,
		})
	}

	return candidates, nil
}

// ExpiryRiskScan emits one candidate per available batch expiring after
// today and within 30 days, soonest first.
func (e *InsightEngine) ExpiryRiskScan(ctx context.Context, organizationID string) ([]InsightCandidate, error) {
	now := e.clock.Now()
	today := clock.Today(e.clock)

	batches, err := e.batches.ListExpiringBetween(ctx, organizationID, today, today.AddDate(0, 0, expiryRiskWindowDays))
	if err != nil {
		return nil, fmt.Errorf("expiry risk scan: list batches: %w", err)
	}

	candidates := []InsightCandidate{}
	for _, b := range batches {
		days := daysUntil(b.ExpiryDate, now)

		priority := repository.PriorityMedium
		recommendation := "Plan increased distribution to avoid expiry"
		if days <= urgentExpiryDays {
			priority = repository.PriorityHigh
			recommendation = "Prioritize using this batch immediately to prevent wastage"
		}

		candidates = append(candidates, InsightCandidate{
			ID:                "expiry-" + b.ID,
			InsightType:       repository.InsightExpiryRisk,
			Title:             fmt.Sprintf("%s expiring soon", b.MedicineName),
			Description:       fmt.Sprintf("Batch expires in %d days with %d units in stock", days, b.Quantity),
			Recommendation:    recommendation,
			Priority:          priority,
			RelatedMedicineID: b.MedicineID,
		})
	}

	return candidates, nil
}

// Generate runs both scans and stores each candidate unless an open insight
// with the same type and medicine already exists. It returns every candidate.
func (e *InsightEngine) Generate(ctx context.Context, organizationID string) (candidates []InsightCandidate, err error) {
	start := time.Now()
	defer func() { e.metrics.ObserveScan("insights", start, err) }()

	log := e.logger.WithOrganization(organizationID)

	restocking, err := e.RestockingScan(ctx, organizationID)
	if err != nil {
		log.Error().Err(err).Msg("restocking scan failed")
		return nil, err
	}

	expiry, err := e.ExpiryRiskScan(ctx, organizationID)
	if err != nil {
		log.Error().Err(err).Msg("expiry risk scan failed")
		return nil, err
	}

	candidates = append(restocking, expiry...)

	stored := 0
	for i := range candidates {
		c := &candidates[i]
		medicineID := c.RelatedMedicineID
		insight := &repository.Insight{
			OrganizationID:    organizationID,
			InsightType:       c.InsightType,
			Title:             c.Title,
			Description:       c.Description,
			Recommendation:    c.Recommendation,
			Priority:          c.Priority,
			RelatedMedicineID: &medicineID,
		}

		created, err := e.insights.CreateIfAbsent(ctx, insight)
		if err != nil {
			log.Error().Err(err).Str("candidate", c.ID).Msg("failed to store insight")
			return nil, fmt.Errorf("store insight %s: %w", c.ID, err)
		}
		if !created {
			continue
		}

		c.Stored = true
		stored++
		e.metrics.InsightCreated(insight.InsightType, insight.Priority)
		e.events.PublishInsightGenerated(ctx, insight)
	}

	log.Info().
		Int("candidates", len(candidates)).
		Int("stored", stored).
		Dur("duration", time.Since(start)).
		Msg("insights generated")

	return candidates, nil
}

// Active returns up to 10 open insights. Ordering is by the priority label
// descending, so "medium" sorts before "high".
func (e *InsightEngine) Active(ctx context.Context, organizationID string) ([]*repository.Insight, error) {
	return e.insights.ListActive(ctx, organizationID, activeInsightsLimit)
}

// Action closes an insight on behalf of a user
func (e *InsightEngine) Action(ctx context.Context, organizationID, insightID, userID string) error {
	return e.insights.MarkActioned(ctx, organizationID, insightID, userID, e.clock.Now())
}

// daysUntil rounds the remaining time up to whole days
func daysUntil(expiry, now time.Time) int {
	return int(math.Ceil(expiry.Sub(now).Hours() / 24))
}
