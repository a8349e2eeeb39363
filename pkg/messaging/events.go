package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventStockAdjusted    = "inventory.stock.adjusted"
	EventBatchCreated     = "inventory.batch.created"
	EventAlertGenerated   = "inventory.alert.generated"
	EventAlertResolved    = "inventory.alert.resolved"
	EventInsightGenerated = "inventory.insight.generated"
	EventOrderStatus      = "orders.purchase_order.status_changed"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
	ExchangeOrderEvents     = "orders.events"
	ExchangeDeadLetter      = "dlx.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// StockAdjustedEvent is published after a batch quantity change is recorded.
// Outbound adjustments feed the demand history used by forecasting.
type StockAdjustedEvent struct {
	OrganizationID  string    `json:"organization_id"`
	BatchID         string    `json:"batch_id"`
	MedicineID      string    `json:"medicine_id"`
	TransactionType string    `json:"transaction_type"`
	PreviousQty     int       `json:"previous_quantity"`
	NewQty          int       `json:"new_quantity"`
	QuantityChange  int       `json:"quantity_change"`
	Reason          string    `json:"reason,omitempty"`
	PerformedBy     string    `json:"performed_by"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// BatchCreatedEvent is published when a batch is received into stock
type BatchCreatedEvent struct {
	OrganizationID string `json:"organization_id"`
	BatchID        string `json:"batch_id"`
	MedicineID     string `json:"medicine_id"`
	BatchNumber    string `json:"batch_number"`
	Quantity       int    `json:"quantity"`
	ExpiryDate     string `json:"expiry_date"`
}

// AlertGeneratedEvent is published when a new stock alert is stored
type AlertGeneratedEvent struct {
	OrganizationID string `json:"organization_id"`
	AlertID        string `json:"alert_id"`
	BatchID        string `json:"batch_id"`
	AlertType      string `json:"alert_type"`
	AlertLevel     string `json:"alert_level"`
	Message        string `json:"message"`
}

// AlertResolvedEvent is published when an operator resolves an alert
type AlertResolvedEvent struct {
	AlertID    string `json:"alert_id"`
	ResolvedBy string `json:"resolved_by"`
}

// InsightGeneratedEvent is published when a new insight is stored
type InsightGeneratedEvent struct {
	OrganizationID    string `json:"organization_id"`
	InsightID         string `json:"insight_id"`
	InsightType       string `json:"insight_type"`
	Priority          string `json:"priority"`
	RelatedMedicineID string `json:"related_medicine_id,omitempty"`
	Title             string `json:"title"`
}

// OrderStatusChangedEvent is published on purchase order transitions
type OrderStatusChangedEvent struct {
	OrganizationID string `json:"organization_id"`
	OrderID        string `json:"order_id"`
	OrderNumber    string `json:"order_number"`
	From           string `json:"from"`
	To             string `json:"to"`
}
