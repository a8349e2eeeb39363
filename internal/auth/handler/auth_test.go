package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-backend/internal/auth/handler"
	"github.com/medflow/pharmacy-backend/internal/auth/repository"
	"github.com/medflow/pharmacy-backend/internal/auth/service"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/tenant"
	"github.com/medflow/pharmacy-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
)

type stubAuthService struct {
	signUp    *service.SignUpRequest
	memberOrg string
}

func (s *stubAuthService) SignUp(_ context.Context, req *service.SignUpRequest) (*service.AuthResponse, error) {
	s.signUp = req
	return &service.AuthResponse{
		AccessToken: "token",
		TokenType:   "Bearer",
		User:        &repository.User{ID: "user-1", Email: req.Email, OrganizationID: "user-1"},
	}, nil
}

func (s *stubAuthService) SignIn(_ context.Context, req *service.SignInRequest) (*service.AuthResponse, error) {
	if req.Password != "secret1" {
		return nil, errors.InvalidCredentials()
	}
	return &service.AuthResponse{AccessToken: "token", TokenType: "Bearer"}, nil
}

func (s *stubAuthService) Me(_ context.Context, userID string) (*repository.User, error) {
	if userID == "" {
		return nil, errors.Unauthorized("not authenticated")
	}
	return &repository.User{ID: userID, Email: "ana@example.com"}, nil
}

func (s *stubAuthService) AddMember(_ context.Context, organizationID, callerRole string, req *service.AddMemberRequest) (*repository.User, error) {
	if callerRole != service.RoleAdmin {
		return nil, errors.Forbidden("only an admin can add members")
	}
	s.memberOrg = organizationID
	return &repository.User{ID: "user-2", Email: req.Email, OrganizationID: organizationID}, nil
}

// passThrough stands in for the bearer middleware; identity comes from the request.
func passThrough(next http.Handler) http.Handler { return next }

func newRouter(svc handler.AuthService) chi.Router {
	r := chi.NewRouter()
	handler.NewAuthHandler(svc, logger.Nop()).Register(r, passThrough)
	return r
}

func TestAuthHandler_SignUp(t *testing.T) {
	svc := &stubAuthService{}
	router := newRouter(svc)

	req := testutil.NewHTTPRequest(http.MethodPost, "/auth/signup", map[string]string{
		"email":     "ana@example.com",
		"password":  "secret1",
		"full_name": "Ana Costa",
		"role":      "pharmacist",
	})
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusCreated)
	testutil.AssertBodyContains(t, rr, `"access_token":"token"`)
	assert.Equal(t, "pharmacist", svc.signUp.Role)
}

func TestAuthHandler_SignUp_Validation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]string
	}{
		{"short password", map[string]string{"email": "ana@example.com", "password": "123", "full_name": "Ana"}},
		{"bad email", map[string]string{"email": "ana", "password": "secret1", "full_name": "Ana"}},
		{"unknown role", map[string]string{"email": "ana@example.com", "password": "secret1", "full_name": "Ana", "role": "owner"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubAuthService{}
			rr := testutil.ExecuteRequest(newRouter(svc), testutil.NewHTTPRequest(http.MethodPost, "/auth/signup", tt.body))

			testutil.AssertStatus(t, rr, http.StatusBadRequest)
			assert.Nil(t, svc.signUp)
		})
	}
}

func TestAuthHandler_AddMember(t *testing.T) {
	asCaller := func(req *http.Request, role, org string) *http.Request {
		ctx := httputil.WithUserContext(req.Context(), "user-1", "ana@example.com", role)
		return req.WithContext(tenant.WithOrganization(ctx, org))
	}
	body := map[string]string{
		"email":           "ben@example.com",
		"password":        "secret1",
		"full_name":       "Ben",
		"role":            "pharmacist",
		"organization_id": "org-foreign",
	}

	t.Run("admin adds to its own organization", func(t *testing.T) {
		svc := &stubAuthService{}
		req := asCaller(testutil.NewHTTPRequest(http.MethodPost, "/auth/members", body), service.RoleAdmin, "org-1")
		rr := testutil.ExecuteRequest(newRouter(svc), req)

		testutil.AssertStatus(t, rr, http.StatusCreated)
		assert.Equal(t, "org-1", svc.memberOrg)
		testutil.AssertBodyContains(t, rr, `"organization_id":"org-1"`)
	})

	t.Run("staff is forbidden", func(t *testing.T) {
		svc := &stubAuthService{}
		req := asCaller(testutil.NewHTTPRequest(http.MethodPost, "/auth/members", body), "staff", "org-1")
		rr := testutil.ExecuteRequest(newRouter(svc), req)

		testutil.AssertStatus(t, rr, http.StatusForbidden)
		assert.Empty(t, svc.memberOrg)
	})
}

func TestAuthHandler_SignIn(t *testing.T) {
	router := newRouter(&stubAuthService{})

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/auth/signin",
		map[string]string{"email": "ana@example.com", "password": "secret1"}))
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/auth/signin",
		map[string]string{"email": "ana@example.com", "password": "wrong"}))
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)

	var resp httputil.Response
	testutil.ParseJSONBody(t, rr, &resp)
	assert.False(t, resp.Success)
	assert.Equal(t, "INVALID_CREDENTIALS", resp.Error.Code)
}

func TestAuthHandler_Me(t *testing.T) {
	router := newRouter(&stubAuthService{})

	req := testutil.WithIdentity(testutil.NewHTTPRequest(http.MethodGet, "/auth/me", nil), "user-1", "org-1")
	rr := testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, `"id":"user-1"`)

	rr = testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/auth/me", nil))
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}
