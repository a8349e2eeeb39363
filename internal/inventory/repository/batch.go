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

// Transaction types accepted by UpdateQuantity
const (
	TransactionInbound    = "inbound"
	TransactionOutbound   = "outbound"
	TransactionAdjustment = "adjustment"
	TransactionDisposal   = "disposal"
)

// Batch is a received lot of a medicine held by an organization
type Batch struct {
	ID                string          `db:"id" json:"id"`
	OrganizationID    string          `db:"organization_id" json:"organization_id"`
	MedicineID        string          `db:"medicine_id" json:"medicine_id"`
	BatchNumber       string          `db:"batch_number" json:"batch_number"`
	Quantity          int             `db:"quantity" json:"quantity"`
	UnitPrice         decimal.Decimal `db:"unit_price" json:"unit_price"`
	ExpiryDate        time.Time       `db:"expiry_date" json:"expiry_date"`
	ManufacturingDate *time.Time      `db:"manufacturing_date" json:"manufacturing_date,omitempty"`
	Location          *string         `db:"location" json:"location,omitempty"`
	ReceivedDate      time.Time       `db:"received_date" json:"received_date"`
	IsAvailable       bool            `db:"is_available" json:"is_available"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// BatchWithMedicine is a batch joined with the catalogue fields the scans
// and the batch list need
type BatchWithMedicine struct {
	Batch
	MedicineName      string  `db:"medicine_name" json:"medicine_name"`
	Strength          *string `db:"strength" json:"strength,omitempty"`
	Manufacturer      *string `db:"manufacturer" json:"manufacturer,omitempty"`
	MinimumStockLevel int     `db:"minimum_stock_level" json:"minimum_stock_level"`
	ReorderQuantity   int     `db:"reorder_quantity" json:"reorder_quantity"`
}

// QuantityChange is the ledger row written for every quantity update
type QuantityChange struct {
	ID              string    `db:"id" json:"id"`
	BatchID         string    `db:"batch_id" json:"batch_id"`
	MedicineID      string    `db:"-" json:"medicine_id"`
	TransactionType string    `db:"transaction_type" json:"transaction_type"`
	PreviousQty     int       `db:"-" json:"previous_quantity"`
	NewQty          int       `db:"-" json:"new_quantity"`
	QuantityChange  int       `db:"quantity_change" json:"quantity_change"`
	Reason          *string   `db:"reason" json:"reason,omitempty"`
	PerformedBy     *string   `db:"performed_by" json:"performed_by,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// BatchRepository handles batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

const batchWithMedicineSelect = `
	SELECT b.id, b.organization_id, b.medicine_id, b.batch_number, b.quantity, b.unit_price,
		b.expiry_date, b.manufacturing_date, b.location, b.received_date, b.is_available,
		b.created_at, b.updated_at,
		m.name AS medicine_name, m.strength, m.manufacturer,
		m.minimum_stock_level, m.reorder_quantity
	FROM inventory_batches b
	JOIN medicines m ON m.id = b.medicine_id
`

// Create creates a new batch
func (r *BatchRepository) Create(ctx context.Context, b *Batch) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}

	query := `
		INSERT INTO inventory_batches (
			id, organization_id, medicine_id, batch_number, quantity, unit_price,
			expiry_date, manufacturing_date, location, received_date, is_available
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()), $11)
		RETURNING received_date, created_at, updated_at
	`

	var received *time.Time
	if !b.ReceivedDate.IsZero() {
		received = &b.ReceivedDate
	}

	err := r.db.Handle(ctx).QueryRowxContext(ctx, query,
		b.ID, b.OrganizationID, b.MedicineID, b.BatchNumber, b.Quantity, b.UnitPrice,
		b.ExpiryDate, b.ManufacturingDate, b.Location, received, b.IsAvailable,
	).Scan(&b.ReceivedDate, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a batch of the organization by ID
func (r *BatchRepository) GetByID(ctx context.Context, organizationID, id string) (*BatchWithMedicine, error) {
	var b BatchWithMedicine
	query := batchWithMedicineSelect + ` WHERE b.id = $1 AND b.organization_id = $2`
	if err := r.db.GetContext(ctx, &b, query, id, organizationID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &b, nil
}

// ListAvailable lists the organization's available batches ordered by expiry
func (r *BatchRepository) ListAvailable(ctx context.Context, organizationID string) ([]*BatchWithMedicine, error) {
	batches := []*BatchWithMedicine{}
	query := batchWithMedicineSelect + `
		WHERE b.organization_id = $1 AND b.is_available = true
		ORDER BY b.expiry_date, b.batch_number
	`
	if err := r.db.SelectContext(ctx, &batches, query, organizationID); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListExpiringBetween lists available batches with after < expiry_date <= until,
// soonest first. Both bounds are calendar dates.
func (r *BatchRepository) ListExpiringBetween(ctx context.Context, organizationID string, after, until time.Time) ([]*BatchWithMedicine, error) {
	batches := []*BatchWithMedicine{}
	query := batchWithMedicineSelect + `
		WHERE b.organization_id = $1 AND b.is_available = true
		AND b.expiry_date > $2 AND b.expiry_date <= $3
		ORDER BY b.expiry_date ASC
	`
	err := r.db.SelectContext(ctx, &batches, query,
		organizationID, after.Format(time.DateOnly), until.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// UpdateQuantity sets a batch's quantity and records the difference in
// inventory_transactions inside one transaction
func (r *BatchRepository) UpdateQuantity(ctx context.Context, organizationID, batchID string, newQuantity int, txType string, reason, performedBy *string) (*QuantityChange, error) {
	change := &QuantityChange{
		BatchID:         batchID,
		TransactionType: txType,
		NewQty:          newQuantity,
		Reason:          reason,
		PerformedBy:     performedBy,
	}

	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var current struct {
			Quantity   int    `db:"quantity"`
			MedicineID string `db:"medicine_id"`
		}
		err := tx.GetContext(ctx, &current, `
			SELECT quantity, medicine_id FROM inventory_batches
			WHERE id = $1 AND organization_id = $2
			FOR UPDATE
		`, batchID, organizationID)
		if err != nil {
			if err == sql.ErrNoRows {
				return errors.NotFound("batch")
			}
			return fmt.Errorf("lock batch: %w", err)
		}

		change.MedicineID = current.MedicineID
		change.PreviousQty = current.Quantity
		change.QuantityChange = newQuantity - current.Quantity

		if _, err := tx.ExecContext(ctx,
			`UPDATE inventory_batches SET quantity = $2, updated_at = NOW() WHERE id = $1`,
			batchID, newQuantity,
		); err != nil {
			return err
		}

		return tx.QueryRowxContext(ctx, `
			INSERT INTO inventory_transactions (batch_id, transaction_type, quantity_change, reason, performed_by)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`, batchID, txType, change.QuantityChange, reason, performedBy).Scan(&change.ID, &change.CreatedAt)
	})
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}

	return change, nil
}

// CountByOrganization counts all batches of the organization
func (r *BatchRepository) CountByOrganization(ctx context.Context, organizationID string) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM inventory_batches WHERE organization_id = $1`
	if err := r.db.Handle(ctx).GetContext(ctx, &count, query, organizationID); err != nil {
		return 0, err
	}
	return count, nil
}

// CountBelowMinimum counts available batches below their medicine's minimum level
func (r *BatchRepository) CountBelowMinimum(ctx context.Context, organizationID string) (int64, error) {
	var count int64
	query := `
		SELECT COUNT(*) FROM inventory_batches b
		JOIN medicines m ON m.id = b.medicine_id
		WHERE b.organization_id = $1 AND b.is_available = true
		AND b.quantity < m.minimum_stock_level
	`
	if err := r.db.GetContext(ctx, &count, query, organizationID); err != nil {
		return 0, err
	}
	return count, nil
}

// ListOrganizations returns every organization that holds at least one batch
func (r *BatchRepository) ListOrganizations(ctx context.Context) ([]string, error) {
	ids := []string{}
	query := `SELECT DISTINCT organization_id FROM inventory_batches ORDER BY organization_id`
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, err
	}
	return ids, nil
}
