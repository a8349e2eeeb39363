package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Purchase order statuses
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusShipped   = "shipped"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

// PurchaseOrder is an order placed with a supplier
type PurchaseOrder struct {
	ID                   string          `db:"id" json:"id"`
	OrganizationID       string          `db:"organization_id" json:"organization_id"`
	SupplierID           string          `db:"supplier_id" json:"supplier_id"`
	SupplierName         string          `db:"supplier_name" json:"supplier_name,omitempty"`
	OrderNumber          string          `db:"order_number" json:"order_number"`
	Status               string          `db:"status" json:"status"`
	TotalAmount          decimal.Decimal `db:"total_amount" json:"total_amount"`
	ExpectedDeliveryDate *time.Time      `db:"expected_delivery_date" json:"expected_delivery_date,omitempty"`
	ActualDeliveryDate   *time.Time      `db:"actual_delivery_date" json:"actual_delivery_date,omitempty"`
	Notes                *string         `db:"notes" json:"notes,omitempty"`
	CreatedBy            *string         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
	Items                []*OrderItem    `db:"-" json:"items,omitempty"`
}

// OrderItem is one medicine line of a purchase order
type OrderItem struct {
	ID              string          `db:"id" json:"id"`
	PurchaseOrderID string          `db:"purchase_order_id" json:"purchase_order_id"`
	MedicineID      string          `db:"medicine_id" json:"medicine_id"`
	MedicineName    string          `db:"medicine_name" json:"medicine_name,omitempty"`
	Quantity        int             `db:"quantity" json:"quantity"`
	UnitPrice       decimal.Decimal `db:"unit_price" json:"unit_price"`
	LineTotal       decimal.Decimal `db:"line_total" json:"line_total"`
}

// OrderRepository handles purchase order persistence
type OrderRepository struct {
	db *database.DB
}

// NewOrderRepository creates a new purchase order repository
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `po.id, po.organization_id, po.supplier_id, s.name AS supplier_name, po.order_number,
	po.status, po.total_amount, po.expected_delivery_date, po.actual_delivery_date, po.notes,
	po.created_by, po.created_at, po.updated_at`

// Create inserts the order and its items in one transaction
func (r *OrderRepository) Create(ctx context.Context, po *PurchaseOrder) error {
	if po.ID == "" {
		po.ID = uuid.New().String()
	}

	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO purchase_orders (
				id, organization_id, supplier_id, order_number, status, total_amount,
				expected_delivery_date, notes, created_by
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at, updated_at
		`, po.ID, po.OrganizationID, po.SupplierID, po.OrderNumber, po.Status, po.TotalAmount,
			dateArg(po.ExpectedDeliveryDate), po.Notes, po.CreatedBy,
		).Scan(&po.CreatedAt, &po.UpdatedAt)
		if err != nil {
			return err
		}

		for _, item := range po.Items {
			item.PurchaseOrderID = po.ID
			err := tx.QueryRowxContext(ctx, `
				INSERT INTO purchase_order_items (purchase_order_id, medicine_id, quantity, unit_price, line_total)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id
			`, po.ID, item.MedicineID, item.Quantity, item.UnitPrice, item.LineTotal).Scan(&item.ID)
			if err != nil {
				return fmt.Errorf("insert item %s: %w", item.MedicineID, err)
			}
		}
		return nil
	})
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// List lists the organization's purchase orders, newest first
func (r *OrderRepository) List(ctx context.Context, organizationID string) ([]*PurchaseOrder, error) {
	orders := []*PurchaseOrder{}
	query := `
		SELECT ` + orderColumns + `
		FROM purchase_orders po
		JOIN suppliers s ON s.id = po.supplier_id
		WHERE po.organization_id = $1
		ORDER BY po.created_at DESC
	`
	if err := r.db.SelectContext(ctx, &orders, query, organizationID); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetByID gets a purchase order with its items
func (r *OrderRepository) GetByID(ctx context.Context, organizationID, id string) (*PurchaseOrder, error) {
	var po PurchaseOrder
	query := `
		SELECT ` + orderColumns + `
		FROM purchase_orders po
		JOIN suppliers s ON s.id = po.supplier_id
		WHERE po.id = $1 AND po.organization_id = $2
	`
	if err := r.db.GetContext(ctx, &po, query, id, organizationID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("purchase order")
		}
		return nil, err
	}

	po.Items = []*OrderItem{}
	itemsQuery := `
		SELECT i.id, i.purchase_order_id, i.medicine_id, m.name AS medicine_name,
			i.quantity, i.unit_price, i.line_total
		FROM purchase_order_items i
		JOIN medicines m ON m.id = i.medicine_id
		WHERE i.purchase_order_id = $1
		ORDER BY m.name
	`
	if err := r.db.SelectContext(ctx, &po.Items, itemsQuery, id); err != nil {
		return nil, err
	}

	return &po, nil
}

// UpdateStatus moves an order from one status to another. It fails with a
// conflict when the stored status is no longer from.
func (r *OrderRepository) UpdateStatus(ctx context.Context, organizationID, id, from, to string, deliveredOn *time.Time) (time.Time, error) {
	var updatedAt time.Time
	query := `
		UPDATE purchase_orders
		SET status = $4,
			actual_delivery_date = COALESCE($5::date, actual_delivery_date),
			updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND status = $3
		RETURNING updated_at
	`

	err := r.db.QueryRowxContext(ctx, query, id, organizationID, from, to, dateArg(deliveredOn)).Scan(&updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, errors.Conflict("purchase order status changed, reload and retry")
		}
		if appErr := database.MapPQError(err); appErr != nil {
			return time.Time{}, appErr
		}
		return time.Time{}, err
	}

	return updatedAt, nil
}

func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.DateOnly)
}
