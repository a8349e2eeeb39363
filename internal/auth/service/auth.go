package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-backend/internal/auth/jwt"
	"github.com/medflow/pharmacy-backend/internal/auth/repository"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultRole is assigned when a request leaves the role empty
	DefaultRole = "staff"
	// RoleAdmin may add members to its own organization
	RoleAdmin = "admin"
)

// UserStore is the persistence the auth service needs
type UserStore interface {
	Create(ctx context.Context, u *repository.User) error
	GetByEmail(ctx context.Context, email string) (*repository.User, error)
	GetByID(ctx context.Context, id string) (*repository.User, error)
}

// AuthService handles sign-up, sign-in and profile lookup
type AuthService struct {
	users      UserStore
	jwtManager *jwt.Manager
	hashCost   int
	logger     *logger.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users UserStore, jwtManager *jwt.Manager, log *logger.Logger) *AuthService {
	return &AuthService{
		users:      users,
		jwtManager: jwtManager,
		hashCost:   bcrypt.DefaultCost,
		logger:     log.WithComponent("auth"),
	}
}

// SignUpRequest represents a sign-up request
type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	FullName string `json:"full_name" validate:"required,max=255"`
	Role     string `json:"role" validate:"omitempty,oneof=admin pharmacist staff"`
}

// AddMemberRequest creates an account inside the caller's organization
type AddMemberRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	FullName string `json:"full_name" validate:"required,max=255"`
	Role     string `json:"role" validate:"omitempty,oneof=admin pharmacist staff"`
}

// SignInRequest represents a sign-in request
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by sign-up and sign-in
type AuthResponse struct {
	AccessToken string           `json:"access_token"`
	ExpiresAt   time.Time        `json:"expires_at"`
	TokenType   string           `json:"token_type"`
	User        *repository.User `json:"user"`
}

// SignUp creates an account that owns a new organization and signs it in.
// The organization id is always the new user's id.
func (s *AuthService) SignUp(ctx context.Context, req *SignUpRequest) (*AuthResponse, error) {
	id := uuid.New().String()
	user, err := s.newUser(id, id, req.Email, req.Password, req.FullName, req.Role)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("organization_id", user.OrganizationID).
		Str("role", user.Role).
		Msg("user signed up")

	return s.issue(user)
}

// AddMember creates an account in organizationID. Only an admin of that
// organization may call it.
func (s *AuthService) AddMember(ctx context.Context, organizationID, callerRole string, req *AddMemberRequest) (*repository.User, error) {
	if organizationID == "" {
		return nil, errors.Forbidden("organization required")
	}
	if callerRole != RoleAdmin {
		return nil, errors.Forbidden("only an admin can add members")
	}

	user, err := s.newUser(uuid.New().String(), organizationID, req.Email, req.Password, req.FullName, req.Role)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("organization_id", organizationID).
		Str("role", user.Role).
		Msg("member added")

	return user, nil
}

func (s *AuthService) newUser(id, organizationID, email, password, fullName, role string) (*repository.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, errors.Internal("failed to hash password")
	}
	if role == "" {
		role = DefaultRole
	}
	return &repository.User{
		ID:             id,
		Email:          strings.ToLower(strings.TrimSpace(email)),
		PasswordHash:   string(hash),
		FullName:       strings.TrimSpace(fullName),
		Role:           role,
		OrganizationID: organizationID,
	}, nil
}

// SignIn verifies credentials and issues an access token
func (s *AuthService) SignIn(ctx context.Context, req *SignInRequest) (*AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.InvalidCredentials()
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Debug().Str("user_id", user.ID).Msg("password mismatch")
		return nil, errors.InvalidCredentials()
	}

	return s.issue(user)
}

// Me returns the signed-in user's profile
func (s *AuthService) Me(ctx context.Context, userID string) (*repository.User, error) {
	if userID == "" {
		return nil, errors.Unauthorized("not authenticated")
	}
	return s.users.GetByID(ctx, userID)
}

func (s *AuthService) issue(user *repository.User) (*AuthResponse, error) {
	tok, err := s.jwtManager.GenerateAccessToken(jwt.Identity{
		UserID:         user.ID,
		Email:          user.Email,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
	})
	if err != nil {
		return nil, errors.Internal("failed to generate token")
	}

	return &AuthResponse{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.ExpiresAt,
		TokenType:   tok.TokenType,
		User:        user,
	}, nil
}
