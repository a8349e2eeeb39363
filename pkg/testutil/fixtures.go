package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/stretchr/testify/require"
)

// MedicineFixture represents test medicine data
type MedicineFixture struct {
	ID                string
	Name              string
	Strength          string
	Manufacturer      string
	UnitPrice         string
	MinimumStockLevel int
	ReorderQuantity   int
}

// BatchFixture represents test batch data
type BatchFixture struct {
	ID             string
	OrganizationID string
	MedicineID     string
	BatchNumber    string
	Quantity       int
	ExpiryDate     time.Time
	Location       string
	IsAvailable    bool
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{}
}

func (f *FixtureFactory) next() int {
	f.sequence++
	return f.sequence
}

// Medicine returns a medicine fixture with unique name
func (f *FixtureFactory) Medicine() MedicineFixture {
	n := f.next()
	return MedicineFixture{
		ID:                uuid.New().String(),
		Name:              fmt.Sprintf("Medicine %d", n),
		Strength:          "500mg",
		Manufacturer:      "Acme Pharma",
		UnitPrice:         "12.50",
		MinimumStockLevel: 50,
		ReorderQuantity:   200,
	}
}

// Batch returns an available batch fixture for the medicine and organization
func (f *FixtureFactory) Batch(organizationID, medicineID string, quantity int, expiry time.Time) BatchFixture {
	n := f.next()
	return BatchFixture{
		ID:             uuid.New().String(),
		OrganizationID: organizationID,
		MedicineID:     medicineID,
		BatchNumber:    fmt.Sprintf("TEST-%04d", n),
		Quantity:       quantity,
		ExpiryDate:     expiry,
		Location:       "Shelf-T1",
		IsAvailable:    true,
	}
}

// InsertMedicine persists a medicine fixture
func InsertMedicine(t *testing.T, ctx context.Context, db *database.DB, m MedicineFixture) {
	t.Helper()
	_, err := db.ExecContext(ctx, `
		INSERT INTO medicines (id, name, strength, manufacturer, unit_price, minimum_stock_level, reorder_quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.Name, m.Strength, m.Manufacturer, m.UnitPrice, m.MinimumStockLevel, m.ReorderQuantity,
	)
	require.NoError(t, err)
}

// InsertBatch persists a batch fixture
func InsertBatch(t *testing.T, ctx context.Context, db *database.DB, b BatchFixture) {
	t.Helper()
	_, err := db.ExecContext(ctx, `
		INSERT INTO inventory_batches (id, organization_id, medicine_id, batch_number, quantity, expiry_date, location, is_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, b.OrganizationID, b.MedicineID, b.BatchNumber, b.Quantity, b.ExpiryDate, b.Location, b.IsAvailable,
	)
	require.NoError(t, err)
}
