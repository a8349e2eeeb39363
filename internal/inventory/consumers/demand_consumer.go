package consumers

import (
	"context"
	"fmt"
	"time"

	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
)

const demandQueue = "pharmacy-api.demand"

// DemandRecorder adds consumption to the daily demand history
type DemandRecorder interface {
	AddConsumption(ctx context.Context, organizationID, medicineID string, day time.Time, quantity int) error
}

// DemandConsumer turns outbound stock adjustments into demand records
type DemandConsumer struct {
	consumer *messaging.Consumer
	demand   DemandRecorder
	logger   *logger.Logger
}

// NewDemandConsumer creates a consumer bound to the inventory exchange
func NewDemandConsumer(rmq *messaging.RabbitMQ, demand DemandRecorder, log *logger.Logger) (*DemandConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, demandQueue, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeInventoryEvents, messaging.EventStockAdjusted); err != nil {
		return nil, err
	}

	c := NewDemandHandler(demand, log)
	c.consumer = consumer
	consumer.RegisterHandler(messaging.EventStockAdjusted, c.HandleStockAdjusted)

	return c, nil
}

// NewDemandHandler creates the handler without a broker connection
func NewDemandHandler(demand DemandRecorder, log *logger.Logger) *DemandConsumer {
	return &DemandConsumer{
		demand: demand,
		logger: log.WithComponent("demand_consumer"),
	}
}

// Start starts consuming messages
func (c *DemandConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// HandleStockAdjusted records the units removed by an outbound transaction
// against the day it occurred. Other transaction types are ignored.
func (c *DemandConsumer) HandleStockAdjusted(ctx context.Context, event *messaging.Event) error {
	var data messaging.StockAdjustedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("decode stock adjusted event: %w", err)
	}

	if data.TransactionType != repository.TransactionOutbound || data.QuantityChange >= 0 {
		return nil
	}

	occurred := data.OccurredAt.UTC()
	day := time.Date(occurred.Year(), occurred.Month(), occurred.Day(), 0, 0, 0, 0, time.UTC)
	consumed := -data.QuantityChange

	if err := c.demand.AddConsumption(ctx, data.OrganizationID, data.MedicineID, day, consumed); err != nil {
		return err
	}

	c.logger.Debug().
		Str("organization_id", data.OrganizationID).
		Str("medicine_id", data.MedicineID).
		Int("quantity", consumed).
		Msg("demand recorded")
	return nil
}
