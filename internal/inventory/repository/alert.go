package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

// Alert types
const (
	AlertExpired       = "expired"
	AlertExpiryWarning = "expiry_warning"
	AlertLowStock      = "low_stock"
)

// Alert levels
const (
	LevelCritical = "critical"
	LevelWarning  = "warning"
	LevelInfo     = "info"
)

// StockAlert is a warning about one batch's stock or expiry state
type StockAlert struct {
	ID         string     `db:"id" json:"id"`
	BatchID    string     `db:"batch_id" json:"batch_id"`
	AlertType  string     `db:"alert_type" json:"alert_type"`
	AlertLevel string     `db:"alert_level" json:"alert_level"`
	Message    string     `db:"message" json:"message"`
	IsResolved bool       `db:"is_resolved" json:"is_resolved"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy *string    `db:"resolved_by" json:"resolved_by,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// StockAlertView is an alert with its batch number and medicine name
type StockAlertView struct {
	StockAlert
	BatchNumber  string `db:"batch_number" json:"batch_number"`
	MedicineName string `db:"medicine_name" json:"medicine_name"`
}

// AlertRepository handles alert persistence
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// CreateIfAbsent stores the alert unless an unresolved alert of the same type
// exists for the batch. It reports whether a row was written.
func (r *AlertRepository) CreateIfAbsent(ctx context.Context, alert *StockAlert) (bool, error) {
	query := `
		INSERT INTO stock_alerts (batch_id, alert_type, alert_level, message)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (batch_id, alert_type) WHERE NOT is_resolved
		DO NOTHING
		RETURNING id, created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		alert.BatchID, alert.AlertType, alert.AlertLevel, alert.Message,
	).Scan(&alert.ID, &alert.CreatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Resolve marks an alert resolved. Resolving an already resolved alert
// overwrites resolved_at and resolved_by. An empty organizationID skips
// the ownership check.
func (r *AlertRepository) Resolve(ctx context.Context, organizationID, id, userID string, at time.Time) error {
	var (
		result sql.Result
		err    error
	)

	if organizationID == "" {
		result, err = r.db.ExecContext(ctx, `
			UPDATE stock_alerts
			SET is_resolved = true, resolved_at = $2, resolved_by = $3
			WHERE id = $1
		`, id, at, userID)
	} else {
		result, err = r.db.ExecContext(ctx, `
			UPDATE stock_alerts
			SET is_resolved = true, resolved_at = $2, resolved_by = $3
			WHERE id = $1
			AND batch_id IN (SELECT id FROM inventory_batches WHERE organization_id = $4)
		`, id, at, userID, organizationID)
	}
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("alert")
	}

	return nil
}

// ListUnresolved returns the most recent unresolved alerts of the organization
func (r *AlertRepository) ListUnresolved(ctx context.Context, organizationID string, limit int) ([]*StockAlertView, error) {
	alerts := []*StockAlertView{}
	query := `
		SELECT a.id, a.batch_id, a.alert_type, a.alert_level, a.message, a.is_resolved,
			a.resolved_at, a.resolved_by, a.created_at,
			b.batch_number, m.name AS medicine_name
		FROM stock_alerts a
		JOIN inventory_batches b ON b.id = a.batch_id
		JOIN medicines m ON m.id = b.medicine_id
		WHERE b.organization_id = $1 AND a.is_resolved = false
		ORDER BY a.created_at DESC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &alerts, query, organizationID, limit); err != nil {
		return nil, err
	}
	return alerts, nil
}

// CountUnresolved counts the organization's unresolved alerts, optionally of one type
func (r *AlertRepository) CountUnresolved(ctx context.Context, organizationID, alertType string) (int64, error) {
	var count int64
	query := `
		SELECT COUNT(*) FROM stock_alerts a
		JOIN inventory_batches b ON b.id = a.batch_id
		WHERE b.organization_id = $1 AND a.is_resolved = false
		AND ($2 = '' OR a.alert_type = $2)
	`
	if err := r.db.GetContext(ctx, &count, query, organizationID, alertType); err != nil {
		return 0, err
	}
	return count, nil
}
