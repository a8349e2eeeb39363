package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-backend/internal/auth/repository"
	"github.com/medflow/pharmacy-backend/internal/auth/service"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/tenant"
)

// AuthService is implemented by service.AuthService
type AuthService interface {
	SignUp(ctx context.Context, req *service.SignUpRequest) (*service.AuthResponse, error)
	SignIn(ctx context.Context, req *service.SignInRequest) (*service.AuthResponse, error)
	Me(ctx context.Context, userID string) (*repository.User, error)
	AddMember(ctx context.Context, organizationID, callerRole string, req *service.AddMemberRequest) (*repository.User, error)
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	service AuthService
	logger  *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc AuthService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service: svc,
		logger:  log,
	}
}

// Register mounts /auth. authenticate guards /auth/me and /auth/members.
func (h *AuthHandler) Register(r chi.Router, authenticate func(http.Handler) http.Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.SignUp)
		r.Post("/signin", h.SignIn)
		r.With(authenticate).Get("/me", h.Me)
		r.With(authenticate).Post("/members", h.AddMember)
	})
}

// SignUp handles account creation
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req service.SignUpRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	response, err := h.service.SignUp(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, response)
}

// SignIn handles user login
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req service.SignInRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	response, err := h.service.SignIn(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, response)
}

// Me returns the current user's profile
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Me(r.Context(), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, user)
}

// AddMember creates an account in the caller's organization
func (h *AuthHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req service.AddMemberRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	// organization and role come from the verified token, never the body
	orgID, _ := tenant.OrganizationID(r.Context())
	user, err := h.service.AddMember(r.Context(), orgID, httputil.GetUserRole(r.Context()), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, user)
}
