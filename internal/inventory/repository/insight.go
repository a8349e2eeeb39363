package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

// Insight types
const (
	InsightRestocking = "restocking"
	InsightExpiryRisk = "expiry_risk"
)

// Insight priorities
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
)

// Insight is a stored recommendation for an organization
type Insight struct {
	ID                string     `db:"id" json:"id"`
	OrganizationID    string     `db:"organization_id" json:"organization_id"`
	InsightType       string     `db:"insight_type" json:"insight_type"`
	Title             string     `db:"title" json:"title"`
	Description       string     `db:"description" json:"description"`
	Recommendation    string     `db:"recommendation" json:"recommendation"`
	Priority          string     `db:"priority" json:"priority"`
	RelatedMedicineID *string    `db:"related_medicine_id" json:"related_medicine_id,omitempty"`
	IsActioned        bool       `db:"is_actioned" json:"is_actioned"`
	ActionedAt        *time.Time `db:"actioned_at" json:"actioned_at,omitempty"`
	ActionedBy        *string    `db:"actioned_by" json:"actioned_by,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// InsightRepository handles insight persistence
type InsightRepository struct {
	db *database.DB
}

// NewInsightRepository creates a new insight repository
func NewInsightRepository(db *database.DB) *InsightRepository {
	return &InsightRepository{db: db}
}

// CreateIfAbsent stores the insight unless an unactioned one with the same
// organization, type and medicine exists. It reports whether a row was written.
func (r *InsightRepository) CreateIfAbsent(ctx context.Context, in *Insight) (bool, error) {
	query := `
		INSERT INTO ai_insights (
			organization_id, insight_type, title, description, recommendation, priority, related_medicine_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (organization_id, insight_type, related_medicine_id) WHERE NOT is_actioned
		DO NOTHING
		RETURNING id, created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		in.OrganizationID, in.InsightType, in.Title, in.Description,
		in.Recommendation, in.Priority, in.RelatedMedicineID,
	).Scan(&in.ID, &in.CreatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListActive returns up to limit unactioned insights ordered by the priority label descending
func (r *InsightRepository) ListActive(ctx context.Context, organizationID string, limit int) ([]*Insight, error) {
	insights := []*Insight{}
	query := `
		SELECT id, organization_id, insight_type, title, description, recommendation, priority,
			related_medicine_id, is_actioned, actioned_at, actioned_by, created_at
		FROM ai_insights
		WHERE organization_id = $1 AND is_actioned = false
		ORDER BY priority DESC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &insights, query, organizationID, limit); err != nil {
		return nil, err
	}
	return insights, nil
}

// GetByID gets an insight of the organization by ID
func (r *InsightRepository) GetByID(ctx context.Context, organizationID, id string) (*Insight, error) {
	var in Insight
	query := `
		SELECT id, organization_id, insight_type, title, description, recommendation, priority,
			related_medicine_id, is_actioned, actioned_at, actioned_by, created_at
		FROM ai_insights
		WHERE id = $1 AND organization_id = $2
	`
	if err := r.db.GetContext(ctx, &in, query, id, organizationID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("insight")
		}
		return nil, err
	}
	return &in, nil
}

// MarkActioned closes an open insight on behalf of a user. Only one caller
// can close a given insight; the others get a Conflict.
func (r *InsightRepository) MarkActioned(ctx context.Context, organizationID, id, userID string, at time.Time) error {
	query := `
		UPDATE ai_insights
		SET is_actioned = true, actioned_at = $3, actioned_by = $4
		WHERE id = $1 AND organization_id = $2 AND is_actioned = false
	`

	result, err := r.db.ExecContext(ctx, query, id, organizationID, at, userID)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return r.notOpen(ctx, organizationID, id)
	}

	return nil
}

// Reopen clears the actioned state set by MarkActioned
func (r *InsightRepository) Reopen(ctx context.Context, organizationID, id string) error {
	query := `
		UPDATE ai_insights
		SET is_actioned = false, actioned_at = NULL, actioned_by = NULL
		WHERE id = $1 AND organization_id = $2 AND is_actioned = true
	`

	result, err := r.db.ExecContext(ctx, query, id, organizationID)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("insight")
	}

	return nil
}

// notOpen tells a missing insight apart from one that is already actioned
func (r *InsightRepository) notOpen(ctx context.Context, organizationID, id string) error {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM ai_insights WHERE id = $1 AND organization_id = $2)`
	if err := r.db.GetContext(ctx, &exists, query, id, organizationID); err != nil {
		return err
	}
	if exists {
		return errors.Conflict("insight has already been actioned")
	}
	return errors.NotFound("insight")
}
