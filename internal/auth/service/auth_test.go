package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-backend/internal/auth/jwt"
	"github.com/medflow/pharmacy-backend/internal/auth/repository"
	"github.com/medflow/pharmacy-backend/pkg/clock"
	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*repository.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[string]*repository.User{}}
}

func (m *memoryUsers) Create(_ context.Context, u *repository.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return errors.Conflict("an account with this email already exists")
		}
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.OrganizationID == "" {
		u.OrganizationID = u.ID
	}
	copied := *u
	m.users[u.ID] = &copied
	return nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, errors.NotFound("user")
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, errors.NotFound("user")
}

func newTestAuthService(users UserStore) (*AuthService, *jwt.Manager) {
	manager := jwt.NewManager(&config.JWTConfig{
		Secret:       "test-secret",
		AccessExpiry: time.Hour,
		Issuer:       "pharmacy-api",
	}, clock.Fixed{At: time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)})

	svc := NewAuthService(users, manager, logger.Nop())
	svc.hashCost = bcrypt.MinCost
	return svc, manager
}

func TestAuthService_SignUp(t *testing.T) {
	users := newMemoryUsers()
	svc, manager := newTestAuthService(users)

	resp, err := svc.SignUp(context.Background(), &SignUpRequest{
		Email:    " Ana@Example.com ",
		Password: "secret1",
		FullName: "Ana Costa",
	})
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", resp.User.Email)
	assert.Equal(t, DefaultRole, resp.User.Role)
	assert.Equal(t, resp.User.ID, resp.User.OrganizationID)
	assert.NotEqual(t, "secret1", resp.User.PasswordHash)

	claims, err := manager.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.Subject)
	assert.Equal(t, resp.User.OrganizationID, claims.OrganizationID)
}

func TestAuthService_SignUp_IgnoresForeignOrganization(t *testing.T) {
	svc, manager := newTestAuthService(newMemoryUsers())

	var req SignUpRequest
	foreign := uuid.New().String()
	body := `{"email":"ben@example.com","password":"secret1","full_name":"Ben Ade","role":"admin","organization_id":"` + foreign + `"}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	resp, err := svc.SignUp(context.Background(), &req)
	require.NoError(t, err)
	assert.NotEqual(t, foreign, resp.User.OrganizationID)
	assert.Equal(t, resp.User.ID, resp.User.OrganizationID)

	claims, err := manager.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.OrganizationID)
}

func TestAuthService_AddMember(t *testing.T) {
	ctx := context.Background()
	users := newMemoryUsers()
	svc, _ := newTestAuthService(users)

	owner, err := svc.SignUp(ctx, &SignUpRequest{Email: "ana@example.com", Password: "secret1", FullName: "Ana", Role: RoleAdmin})
	require.NoError(t, err)
	org := owner.User.OrganizationID

	t.Run("admin adds a member to its organization", func(t *testing.T) {
		member, err := svc.AddMember(ctx, org, RoleAdmin, &AddMemberRequest{
			Email: "Ben@Example.com", Password: "secret1", FullName: "Ben", Role: "pharmacist",
		})
		require.NoError(t, err)
		assert.Equal(t, org, member.OrganizationID)
		assert.NotEqual(t, org, member.ID)
		assert.Equal(t, "pharmacist", member.Role)
		assert.Equal(t, "ben@example.com", member.Email)

		signedIn, err := svc.SignIn(ctx, &SignInRequest{Email: "ben@example.com", Password: "secret1"})
		require.NoError(t, err)
		assert.Equal(t, org, signedIn.User.OrganizationID)
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		_, err := svc.AddMember(ctx, org, "pharmacist", &AddMemberRequest{
			Email: "cara@example.com", Password: "secret1", FullName: "Cara",
		})
		assert.True(t, errors.Is(err, errors.ErrForbidden))

		_, err = users.GetByEmail(ctx, "cara@example.com")
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})

	t.Run("missing organization is forbidden", func(t *testing.T) {
		_, err := svc.AddMember(ctx, "", RoleAdmin, &AddMemberRequest{
			Email: "dan@example.com", Password: "secret1", FullName: "Dan",
		})
		assert.True(t, errors.Is(err, errors.ErrForbidden))
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		_, err := svc.AddMember(ctx, org, RoleAdmin, &AddMemberRequest{
			Email: "ana@example.com", Password: "secret1", FullName: "Ana again",
		})
		assert.True(t, errors.Is(err, errors.ErrConflict))
	})
}

func TestAuthService_SignUp_DuplicateEmail(t *testing.T) {
	svc, _ := newTestAuthService(newMemoryUsers())
	req := &SignUpRequest{Email: "ana@example.com", Password: "secret1", FullName: "Ana"}

	_, err := svc.SignUp(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.SignUp(context.Background(), req)
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestAuthService_SignIn(t *testing.T) {
	svc, _ := newTestAuthService(newMemoryUsers())
	ctx := context.Background()

	_, err := svc.SignUp(ctx, &SignUpRequest{Email: "ana@example.com", Password: "secret1", FullName: "Ana"})
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		resp, err := svc.SignIn(ctx, &SignInRequest{Email: "ana@example.com", Password: "secret1"})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
		assert.Equal(t, "Bearer", resp.TokenType)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.SignIn(ctx, &SignInRequest{Email: "ana@example.com", Password: "nope"})
		assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.SignIn(ctx, &SignInRequest{Email: "who@example.com", Password: "secret1"})
		assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))
	})
}

func TestAuthService_Me(t *testing.T) {
	svc, _ := newTestAuthService(newMemoryUsers())
	ctx := context.Background()

	resp, err := svc.SignUp(ctx, &SignUpRequest{Email: "ana@example.com", Password: "secret1", FullName: "Ana"})
	require.NoError(t, err)

	me, err := svc.Me(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", me.Email)

	_, err = svc.Me(ctx, "")
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	_, err = svc.Me(ctx, uuid.New().String())
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
