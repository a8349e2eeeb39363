package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	inventory "github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/internal/orders/repository"
	"github.com/medflow/pharmacy-backend/pkg/clock"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
	"github.com/shopspring/decimal"
)

// SupplierStore persists suppliers
type SupplierStore interface {
	Create(ctx context.Context, s *repository.Supplier) error
	List(ctx context.Context, organizationID string) ([]*repository.Supplier, error)
	GetByID(ctx context.Context, organizationID, id string) (*repository.Supplier, error)
}

// OrderStore persists purchase orders
type OrderStore interface {
	Create(ctx context.Context, po *repository.PurchaseOrder) error
	List(ctx context.Context, organizationID string) ([]*repository.PurchaseOrder, error)
	GetByID(ctx context.Context, organizationID, id string) (*repository.PurchaseOrder, error)
	UpdateStatus(ctx context.Context, organizationID, id, from, to string, deliveredOn *time.Time) (time.Time, error)
}

// MedicineLookup reads catalogue entries
type MedicineLookup interface {
	GetByID(ctx context.Context, id string) (*inventory.Medicine, error)
}

// InsightSource reads, claims and releases insights
type InsightSource interface {
	GetByID(ctx context.Context, organizationID, id string) (*inventory.Insight, error)
	MarkActioned(ctx context.Context, organizationID, id, userID string, at time.Time) error
	Reopen(ctx context.Context, organizationID, id string) error
}

// transitions lists the statuses each status may move to
var transitions = map[string][]string{
	repository.StatusPending:   {repository.StatusConfirmed, repository.StatusCancelled},
	repository.StatusConfirmed: {repository.StatusShipped, repository.StatusCancelled},
	repository.StatusShipped:   {repository.StatusDelivered},
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ItemInput is one requested order line
type ItemInput struct {
	MedicineID string          `json:"medicine_id" validate:"required,uuid"`
	Quantity   int             `json:"quantity" validate:"required,min=1"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// CreateOrderInput is a new purchase order request
type CreateOrderInput struct {
	SupplierID           string
	ExpectedDeliveryDate *time.Time
	Notes                *string
	Items                []ItemInput
}

// OrderService handles suppliers and purchase orders
type OrderService struct {
	suppliers SupplierStore
	orders    OrderStore
	medicines MedicineLookup
	insights  InsightSource
	publisher messaging.EventPublisher
	clock     clock.Clock
	logger    *logger.Logger
}

// NewOrderService creates a new order service. publisher may be nil.
func NewOrderService(
	suppliers SupplierStore,
	orders OrderStore,
	medicines MedicineLookup,
	insights InsightSource,
	publisher messaging.EventPublisher,
	c clock.Clock,
	log *logger.Logger,
) *OrderService {
	return &OrderService{
		suppliers: suppliers,
		orders:    orders,
		medicines: medicines,
		insights:  insights,
		publisher: publisher,
		clock:     c,
		logger:    log.WithComponent("orders"),
	}
}

// ListSuppliers lists the organization's suppliers
func (s *OrderService) ListSuppliers(ctx context.Context, organizationID string) ([]*repository.Supplier, error) {
	return s.suppliers.List(ctx, organizationID)
}

// CreateSupplier adds a supplier
func (s *OrderService) CreateSupplier(ctx context.Context, supplier *repository.Supplier) error {
	return s.suppliers.Create(ctx, supplier)
}

// ListOrders lists purchase orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, organizationID string) ([]*repository.PurchaseOrder, error) {
	return s.orders.List(ctx, organizationID)
}

// GetOrder gets a purchase order with its items
func (s *OrderService) GetOrder(ctx context.Context, organizationID, id string) (*repository.PurchaseOrder, error) {
	return s.orders.GetByID(ctx, organizationID, id)
}

// CreateOrder places a pending order. The total is the sum of quantity times
// unit price over all lines.
func (s *OrderService) CreateOrder(ctx context.Context, organizationID, userID string, in CreateOrderInput) (*repository.PurchaseOrder, error) {
	if len(in.Items) == 0 {
		return nil, errors.Validation(map[string]string{"items": "at least one item is required"})
	}

	supplier, err := s.suppliers.GetByID(ctx, organizationID, in.SupplierID)
	if err != nil {
		return nil, err
	}

	po := &repository.PurchaseOrder{
		OrganizationID:       organizationID,
		SupplierID:           supplier.ID,
		SupplierName:         supplier.Name,
		OrderNumber:          s.nextOrderNumber(),
		Status:               repository.StatusPending,
		TotalAmount:          decimal.Zero,
		ExpectedDeliveryDate: in.ExpectedDeliveryDate,
		Notes:                in.Notes,
	}
	if userID != "" {
		po.CreatedBy = &userID
	}

	for i, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, errors.Validation(map[string]string{fmt.Sprintf("items[%d].quantity", i): "must be positive"})
		}
		if item.UnitPrice.IsNegative() {
			return nil, errors.Validation(map[string]string{fmt.Sprintf("items[%d].unit_price", i): "must not be negative"})
		}

		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		po.Items = append(po.Items, &repository.OrderItem{
			MedicineID: item.MedicineID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			LineTotal:  lineTotal,
		})
		po.TotalAmount = po.TotalAmount.Add(lineTotal)
	}

	if err := s.orders.Create(ctx, po); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("organization_id", organizationID).
		Str("order_number", po.OrderNumber).
		Str("total", po.TotalAmount.StringFixed(2)).
		Msg("purchase order created")

	return po, nil
}

// CreateFromInsight drafts a pending order for the medicine a restocking
// insight points at, using its reorder quantity and unit price. The insight
// is closed before the order is written, so two concurrent calls yield one
// order; it is reopened if the order cannot be created.
func (s *OrderService) CreateFromInsight(ctx context.Context, organizationID, userID, insightID, supplierID string) (*repository.PurchaseOrder, error) {
	insight, err := s.insights.GetByID(ctx, organizationID, insightID)
	if err != nil {
		return nil, err
	}
	if insight.InsightType != inventory.InsightRestocking || insight.RelatedMedicineID == nil {
		return nil, errors.BadRequest("only restocking insights can become purchase orders")
	}
	if insight.IsActioned {
		return nil, errors.Conflict("insight has already been actioned")
	}

	medicine, err := s.medicines.GetByID(ctx, *insight.RelatedMedicineID)
	if err != nil {
		return nil, err
	}

	quantity := medicine.ReorderQuantity
	if quantity <= 0 {
		quantity = 1
	}

	if err := s.insights.MarkActioned(ctx, organizationID, insightID, userID, s.clock.Now()); err != nil {
		return nil, err
	}

	notes := "Drafted from insight: " + insight.Title
	po, err := s.CreateOrder(ctx, organizationID, userID, CreateOrderInput{
		SupplierID: supplierID,
		Notes:      &notes,
		Items: []ItemInput{{
			MedicineID: medicine.ID,
			Quantity:   quantity,
			UnitPrice:  medicine.UnitPrice,
		}},
	})
	if err != nil {
		if reopenErr := s.insights.Reopen(ctx, organizationID, insightID); reopenErr != nil {
			s.logger.Warn().Err(reopenErr).Str("insight_id", insightID).Msg("order failed and insight left actioned")
		}
		return nil, err
	}

	return po, nil
}

// UpdateStatus moves an order along its lifecycle. Delivered orders record
// today as the actual delivery date.
func (s *OrderService) UpdateStatus(ctx context.Context, organizationID, id, status string) (*repository.PurchaseOrder, error) {
	po, err := s.orders.GetByID(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(po.Status, status) {
		return nil, errors.BadRequest(fmt.Sprintf("cannot move order from %s to %s", po.Status, status))
	}

	var deliveredOn *time.Time
	if status == repository.StatusDelivered {
		today := clock.Today(s.clock)
		deliveredOn = &today
	}

	updatedAt, err := s.orders.UpdateStatus(ctx, organizationID, id, po.Status, status, deliveredOn)
	if err != nil {
		return nil, err
	}

	from := po.Status
	po.Status = status
	po.UpdatedAt = updatedAt
	if deliveredOn != nil {
		po.ActualDeliveryDate = deliveredOn
	}

	s.publishStatusChanged(ctx, po, from)
	return po, nil
}

func (s *OrderService) publishStatusChanged(ctx context.Context, po *repository.PurchaseOrder, from string) {
	if s.publisher == nil {
		return
	}

	event := messaging.OrderStatusChangedEvent{
		OrganizationID: po.OrganizationID,
		OrderID:        po.ID,
		OrderNumber:    po.OrderNumber,
		From:           from,
		To:             po.Status,
	}
	if err := s.publisher.Publish(ctx, messaging.EventOrderStatus, event); err != nil {
		s.logger.Error().Err(err).Str("order_id", po.ID).Msg("failed to publish order status event")
	}
}

// nextOrderNumber builds PO-<yyyymmdd>-<6 hex chars>
func (s *OrderService) nextOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("PO-%s-%s", s.clock.Now().UTC().Format("20060102"), suffix)
}
