package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Medicine is an entry of the shared medicine catalogue
type Medicine struct {
	ID                string          `db:"id" json:"id"`
	Name              string          `db:"name" json:"name"`
	GenericName       *string         `db:"generic_name" json:"generic_name,omitempty"`
	Strength          *string         `db:"strength" json:"strength,omitempty"`
	Manufacturer      *string         `db:"manufacturer" json:"manufacturer,omitempty"`
	CategoryID        *string         `db:"category_id" json:"category_id,omitempty"`
	UnitPrice         decimal.Decimal `db:"unit_price" json:"unit_price"`
	MinimumStockLevel int             `db:"minimum_stock_level" json:"minimum_stock_level"`
	ReorderQuantity   int             `db:"reorder_quantity" json:"reorder_quantity"`
	IsActive          bool            `db:"is_active" json:"is_active"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// MedicineRepository handles medicine persistence
type MedicineRepository struct {
	db *database.DB
}

// NewMedicineRepository creates a new medicine repository
func NewMedicineRepository(db *database.DB) *MedicineRepository {
	return &MedicineRepository{db: db}
}

const medicineColumns = `id, name, generic_name, strength, manufacturer, category_id, unit_price,
	minimum_stock_level, reorder_quantity, is_active, created_at, updated_at`

// Create creates a new medicine
func (r *MedicineRepository) Create(ctx context.Context, m *Medicine) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO medicines (
			id, name, generic_name, strength, manufacturer, category_id, unit_price,
			minimum_stock_level, reorder_quantity, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		m.ID, m.Name, m.GenericName, m.Strength, m.Manufacturer, m.CategoryID, m.UnitPrice,
		m.MinimumStockLevel, m.ReorderQuantity, m.IsActive,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a medicine by ID
func (r *MedicineRepository) GetByID(ctx context.Context, id string) (*Medicine, error) {
	var m Medicine
	query := `SELECT ` + medicineColumns + ` FROM medicines WHERE id = $1`
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("medicine")
		}
		return nil, err
	}
	return &m, nil
}

// ListActive lists active medicines ordered by name
func (r *MedicineRepository) ListActive(ctx context.Context) ([]*Medicine, error) {
	medicines := []*Medicine{}
	query := `SELECT ` + medicineColumns + ` FROM medicines WHERE is_active = true ORDER BY name`
	if err := r.db.SelectContext(ctx, &medicines, query); err != nil {
		return nil, err
	}
	return medicines, nil
}

// ListFirst returns up to limit medicines in catalogue order
func (r *MedicineRepository) ListFirst(ctx context.Context, limit int) ([]*Medicine, error) {
	medicines := []*Medicine{}
	query := `SELECT ` + medicineColumns + ` FROM medicines ORDER BY created_at, name LIMIT $1`
	if err := r.db.Handle(ctx).SelectContext(ctx, &medicines, query, limit); err != nil {
		return nil, err
	}
	return medicines, nil
}

// Update updates a medicine
func (r *MedicineRepository) Update(ctx context.Context, m *Medicine) error {
	query := `
		UPDATE medicines SET
			name = $2, generic_name = $3, strength = $4, manufacturer = $5, category_id = $6,
			unit_price = $7, minimum_stock_level = $8, reorder_quantity = $9, is_active = $10,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		m.ID, m.Name, m.GenericName, m.Strength, m.Manufacturer, m.CategoryID,
		m.UnitPrice, m.MinimumStockLevel, m.ReorderQuantity, m.IsActive,
	).Scan(&m.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return errors.NotFound("medicine")
		}
		return err
	}
	return nil
}

// Count returns the number of catalogue entries
func (r *MedicineRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM medicines`); err != nil {
		return 0, err
	}
	return count, nil
}
