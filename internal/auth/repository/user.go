package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

// User is an account that can sign in
type User struct {
	ID             string    `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	PasswordHash   string    `db:"password_hash" json:"-"`
	FullName       string    `db:"full_name" json:"full_name"`
	Role           string    `db:"role" json:"role"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// UserRepository handles user persistence
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user, resolving Role by name. An empty OrganizationID
// makes the user the owner of a new organization keyed by its own id.
func (r *UserRepository) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.OrganizationID == "" {
		u.OrganizationID = u.ID
	}

	query := `
		INSERT INTO users (id, email, password_hash, full_name, role_id, organization_id)
		VALUES ($1, $2, $3, $4, (SELECT id FROM roles WHERE name = $5), $6)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		u.ID, u.Email, u.PasswordHash, u.FullName, u.Role, u.OrganizationID,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

const selectUser = `
	SELECT u.id, u.email, u.password_hash, u.full_name, COALESCE(r.name, '') AS role,
	       u.organization_id, u.created_at, u.updated_at
	FROM users u
	LEFT JOIN roles r ON r.id = u.role_id
`

// GetByEmail looks a user up by email (case-insensitive)
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	if err := r.db.GetContext(ctx, &u, selectUser+`WHERE LOWER(u.email) = LOWER($1)`, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("user")
		}
		return nil, err
	}
	return &u, nil
}

// GetByID gets a user by id
func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	var u User
	if err := r.db.GetContext(ctx, &u, selectUser+`WHERE u.id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("user")
		}
		return nil, err
	}
	return &u, nil
}
