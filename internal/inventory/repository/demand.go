package repository

import (
	"context"
	"time"

	"github.com/medflow/pharmacy-backend/pkg/database"
)

// DemandRecord is the quantity of a medicine consumed by an organization on one day
type DemandRecord struct {
	MedicineID       string    `db:"medicine_id" json:"medicine_id"`
	OrganizationID   string    `db:"organization_id" json:"organization_id"`
	TransactionDate  time.Time `db:"transaction_date" json:"transaction_date"`
	QuantityConsumed int       `db:"quantity_consumed" json:"quantity_consumed"`
}

// DemandRepository reads and records daily consumption
type DemandRepository struct {
	db *database.DB
}

// NewDemandRepository creates a new demand repository
func NewDemandRepository(db *database.DB) *DemandRepository {
	return &DemandRepository{db: db}
}

// ListHistory returns the per-day records on or after since, oldest first
func (r *DemandRepository) ListHistory(ctx context.Context, organizationID, medicineID string, since time.Time) ([]DemandRecord, error) {
	records := []DemandRecord{}
	query := `
		SELECT medicine_id, organization_id, transaction_date, quantity_consumed
		FROM demand_history
		WHERE medicine_id = $1 AND organization_id = $2 AND transaction_date >= $3
		ORDER BY transaction_date ASC
	`
	if err := r.db.SelectContext(ctx, &records, query, medicineID, organizationID, since.Format(time.DateOnly)); err != nil {
		return nil, err
	}
	return records, nil
}

// AddConsumption adds quantity to the record of the given day, creating it if needed
func (r *DemandRepository) AddConsumption(ctx context.Context, organizationID, medicineID string, day time.Time, quantity int) error {
	day = day.UTC()
	query := `
		INSERT INTO demand_history (
			organization_id, medicine_id, transaction_date, quantity_consumed, day_of_week, month
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (organization_id, medicine_id, transaction_date)
		DO UPDATE SET quantity_consumed = demand_history.quantity_consumed + EXCLUDED.quantity_consumed
	`
	_, err := r.db.Handle(ctx).ExecContext(ctx, query,
		organizationID, medicineID, day.Format(time.DateOnly), quantity, int(day.Weekday()), int(day.Month()),
	)
	return err
}
