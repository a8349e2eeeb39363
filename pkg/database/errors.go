package database

import (
	stderrors "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

// pgError is the subset of a PostgreSQL error both drivers expose.
type pgError struct {
	code       string
	constraint string
	column     string
}

func extractPGError(err error) (pgError, bool) {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pgError{code: string(pqErr.Code), constraint: pqErr.Constraint, column: pqErr.Column}, true
	}

	var pgxErr *pgconn.PgError
	if stderrors.As(err, &pgxErr) {
		return pgError{code: pgxErr.Code, constraint: pgxErr.ConstraintName, column: pgxErr.ColumnName}, true
	}

	return pgError{}, false
}

// MapPQError converts a PostgreSQL error from lib/pq or pgx to an AppError.
// Returns nil if the error did not originate from PostgreSQL.
func MapPQError(err error) *errors.AppError {
	pgErr, ok := extractPGError(err)
	if !ok {
		return nil
	}

	switch pgErr.code {
	// Check constraint violation
	case "23514":
		return mapCheckConstraint(pgErr.constraint)

	// Unique constraint violation
	case "23505":
		return errors.Conflict(formatConstraintMessage(pgErr.constraint))

	// Foreign key violation
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation
	case "23502":
		col := pgErr.column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

func mapCheckConstraint(constraint string) *errors.AppError {
	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.Validation(map[string]string{
			"quantity": "must not be negative",
		})

	case strings.Contains(constraint, "transaction_type_valid"):
		return errors.Validation(map[string]string{
			"transaction_type": "must be one of: inbound, outbound, adjustment, disposal",
		})

	case strings.Contains(constraint, "order_status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: pending, confirmed, shipped, delivered, cancelled",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func formatConstraintMessage(constraint string) string {
	switch {
	case strings.Contains(constraint, "batch_number"):
		return "a batch with this batch number already exists"
	case strings.Contains(constraint, "order_number"):
		return "a purchase order with this number already exists"
	case strings.Contains(constraint, "email"):
		return "an account with this email already exists"
	default:
		return "a record with these values already exists"
	}
}
