package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

// Supplier is a vendor purchase orders are placed with
type Supplier struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	Name           string    `db:"name" json:"name"`
	ContactName    *string   `db:"contact_name" json:"contact_name,omitempty"`
	Email          *string   `db:"email" json:"email,omitempty"`
	Phone          *string   `db:"phone" json:"phone,omitempty"`
	Address        *string   `db:"address" json:"address,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// SupplierRepository handles supplier persistence
type SupplierRepository struct {
	db *database.DB
}

// NewSupplierRepository creates a new supplier repository
func NewSupplierRepository(db *database.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

// Create creates a new supplier
func (r *SupplierRepository) Create(ctx context.Context, s *Supplier) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}

	query := `
		INSERT INTO suppliers (id, organization_id, name, contact_name, email, phone, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	return r.db.QueryRowxContext(ctx, query,
		s.ID, s.OrganizationID, s.Name, s.ContactName, s.Email, s.Phone, s.Address,
	).Scan(&s.CreatedAt)
}

// List lists the organization's suppliers by name
func (r *SupplierRepository) List(ctx context.Context, organizationID string) ([]*Supplier, error) {
	suppliers := []*Supplier{}
	query := `
		SELECT id, organization_id, name, contact_name, email, phone, address, created_at
		FROM suppliers
		WHERE organization_id = $1
		ORDER BY name
	`
	if err := r.db.SelectContext(ctx, &suppliers, query, organizationID); err != nil {
		return nil, err
	}
	return suppliers, nil
}

// GetByID gets one of the organization's suppliers
func (r *SupplierRepository) GetByID(ctx context.Context, organizationID, id string) (*Supplier, error) {
	var s Supplier
	query := `
		SELECT id, organization_id, name, contact_name, email, phone, address, created_at
		FROM suppliers
		WHERE id = $1 AND organization_id = $2
	`
	if err := r.db.GetContext(ctx, &s, query, id, organizationID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("supplier")
		}
		return nil, err
	}
	return &s, nil
}
