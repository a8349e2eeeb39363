package events

import (
	"context"
	"time"

	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
)

// InventoryEventPublisher publishes inventory-related events.
// A nil publisher drops events, which is how the service runs without RabbitMQ.
type InventoryEventPublisher struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "pharmacy-api", log)
	if err != nil {
		return nil, err
	}

	return NewWithPublisher(publisher, log), nil
}

// NewWithPublisher wraps any EventPublisher, e.g. a test double
func NewWithPublisher(publisher messaging.EventPublisher, log *logger.Logger) *InventoryEventPublisher {
	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log,
	}
}

// PublishStockAdjusted publishes a stock adjusted event
func (p *InventoryEventPublisher) PublishStockAdjusted(ctx context.Context, organizationID string, change *repository.QuantityChange) {
	if p == nil {
		return
	}

	data := messaging.StockAdjustedEvent{
		OrganizationID:  organizationID,
		BatchID:         change.BatchID,
		MedicineID:      change.MedicineID,
		TransactionType: change.TransactionType,
		PreviousQty:     change.PreviousQty,
		NewQty:          change.NewQty,
		QuantityChange:  change.QuantityChange,
		OccurredAt:      change.CreatedAt.UTC(),
	}
	if change.Reason != nil {
		data.Reason = *change.Reason
	}
	if change.PerformedBy != nil {
		data.PerformedBy = *change.PerformedBy
	}
	if data.OccurredAt.IsZero() {
		data.OccurredAt = time.Now().UTC()
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockAdjusted, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", change.BatchID).Msg("failed to publish stock adjusted event")
	}
}

// PublishBatchCreated publishes a batch created event
func (p *InventoryEventPublisher) PublishBatchCreated(ctx context.Context, batch *repository.Batch) {
	if p == nil {
		return
	}

	data := messaging.BatchCreatedEvent{
		OrganizationID: batch.OrganizationID,
		BatchID:        batch.ID,
		MedicineID:     batch.MedicineID,
		BatchNumber:    batch.BatchNumber,
		Quantity:       batch.Quantity,
		ExpiryDate:     batch.ExpiryDate.Format(time.DateOnly),
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchCreated, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish batch created event")
	}
}

// PublishAlertGenerated publishes an alert generated event
func (p *InventoryEventPublisher) PublishAlertGenerated(ctx context.Context, organizationID string, alert *repository.StockAlert) {
	if p == nil {
		return
	}

	data := messaging.AlertGeneratedEvent{
		OrganizationID: organizationID,
		AlertID:        alert.ID,
		BatchID:        alert.BatchID,
		AlertType:      alert.AlertType,
		AlertLevel:     alert.AlertLevel,
		Message:        alert.Message,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertGenerated, data); err != nil {
		p.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert generated event")
	}
}

// PublishAlertResolved publishes an alert resolved event
func (p *InventoryEventPublisher) PublishAlertResolved(ctx context.Context, alertID, userID string) {
	if p == nil {
		return
	}

	data := messaging.AlertResolvedEvent{AlertID: alertID, ResolvedBy: userID}
	if err := p.publisher.Publish(ctx, messaging.EventAlertResolved, data); err != nil {
		p.logger.Error().Err(err).Str("alert_id", alertID).Msg("failed to publish alert resolved event")
	}
}

// PublishInsightGenerated publishes an insight generated event
func (p *InventoryEventPublisher) PublishInsightGenerated(ctx context.Context, insight *repository.Insight) {
	if p == nil {
		return
	}

	data := messaging.InsightGeneratedEvent{
		OrganizationID: insight.OrganizationID,
		InsightID:      insight.ID,
		InsightType:    insight.InsightType,
		Priority:       insight.Priority,
		Title:          insight.Title,
	}
	if insight.RelatedMedicineID != nil {
		data.RelatedMedicineID = *insight.RelatedMedicineID
	}

	if err := p.publisher.Publish(ctx, messaging.EventInsightGenerated, data); err != nil {
		p.logger.Error().Err(err).Str("insight_id", insight.ID).Msg("failed to publish insight generated event")
	}
}
