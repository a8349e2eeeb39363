package testutil

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/tenant"
)

var (
	// Global test suite (shared across all integration tests in a package)
	globalSuite *IntegrationSuite
	suiteOnce   sync.Once
	suiteErr    error
)

// IntegrationSuite provides a base for integration tests with real PostgreSQL
type IntegrationSuite struct {
	Container *PostgresContainer
	DB        *database.DB
	Fixtures  *FixtureFactory
	Logger    *logger.Logger
}

// NewIntegrationSuite starts the container and applies the schema.
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, err := NewPostgresContainer(ctx, DefaultPostgresConfig())
	if err != nil {
		return nil, err
	}

	log := logger.Nop()
	db, err := database.NewWithDSN(container.DSN, log)
	if err != nil {
		container.Terminate(ctx)
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		container.Terminate(ctx)
		return nil, err
	}

	return &IntegrationSuite{
		Container: container,
		DB:        db,
		Fixtures:  NewFixtureFactory(),
		Logger:    log,
	}, nil
}

// RequireIntegrationSuite returns the shared suite, skipping the test in
// -short mode or when no container runtime is available. In CI a missing
// runtime fails the test instead.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    suite := testutil.RequireIntegrationSuite(t)
//	    ctx, orgID := suite.OrganizationContext(t)
//	    // ... run tests against suite.DB
//	}
func RequireIntegrationSuite(t *testing.T) *IntegrationSuite {
	t.Helper()
	SkipIfShort(t)

	suiteOnce.Do(func() {
		globalSuite, suiteErr = NewIntegrationSuite(context.Background())
	})
	if suiteErr != nil {
		if IsCI() {
			t.Fatalf("integration database unavailable: %v", suiteErr)
		}
		t.Skipf("integration database unavailable: %v", suiteErr)
	}
	return globalSuite
}

// OrganizationContext returns a context scoped to a fresh organization and
// bounded by DefaultTestContext. Each test gets its own organization, so tests
// sharing the database stay isolated.
func (s *IntegrationSuite) OrganizationContext(t *testing.T) (context.Context, string) {
	orgID := uuid.New().String()
	return tenant.WithOrganization(DefaultTestContext(t), orgID), orgID
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalSuite != nil && globalSuite.Container != nil {
		globalSuite.Container.Terminate(ctx)
	}
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// IsCI returns true if running in CI environment
func IsCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}
