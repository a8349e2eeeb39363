package service

import (
	"context"
	"testing"
	"time"

	"github.com/medflow/pharmacy-backend/internal/inventory/cache"
	"github.com/medflow/pharmacy-backend/internal/inventory/events"
	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/pkg/clock"
	apperrors "github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
	"github.com/medflow/pharmacy-backend/pkg/tenant"
	"github.com/medflow/pharmacy-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expiryClass struct {
	alertType, level string
	ok               bool
}

func TestClassifyExpiry(t *testing.T) {
	testutil.RunTestCases(t, []testutil.TestCase[time.Time, expiryClass]{
		{Name: "expires today", Input: date(2026, 3, 2), Expected: expiryClass{repository.AlertExpired, repository.LevelCritical, true}},
		{Name: "expired last year", Input: date(2025, 3, 2), Expected: expiryClass{repository.AlertExpired, repository.LevelCritical, true}},
		{Name: "tomorrow", Input: date(2026, 3, 3), Expected: expiryClass{repository.AlertExpiryWarning, repository.LevelWarning, true}},
		{Name: "30 days out before now", Input: date(2026, 4, 1), Expected: expiryClass{repository.AlertExpiryWarning, repository.LevelWarning, true}},
		{Name: "just past 30 days", Input: date(2026, 4, 2), Expected: expiryClass{repository.AlertExpiryWarning, repository.LevelInfo, true}},
		{Name: "60 days out before now", Input: date(2026, 5, 1), Expected: expiryClass{repository.AlertExpiryWarning, repository.LevelInfo, true}},
		{Name: "past 60 days", Input: date(2026, 5, 2), Expected: expiryClass{}},
	}, func(expiry time.Time) (expiryClass, error) {
		alertType, level, _, ok := classifyExpiry(expiry, testNow)
		return expiryClass{alertType, level, ok}, nil
	})
}

func newTestAlertScanner(batches *fakeBatches, alerts *fakeAlerts, c *mapCache, pub *testutil.MockPublisher) *AlertScanner {
	var ep *events.InventoryEventPublisher
	if pub != nil {
		ep = events.NewWithPublisher(pub, logger.Nop())
	}
	var dc cache.DashboardCache
	if c != nil {
		dc = c
	}
	return NewAlertScanner(batches, alerts, clock.Fixed{At: testNow}, dc, ep, nil, logger.Nop())
}

func TestCheckAndCreateAlerts(t *testing.T) {
	batches := &fakeBatches{}
	expiredLow := batches.add(orgA, "med-1", "Amoxicillin", 10, 100, 300, date(2026, 3, 2))
	warning := batches.add(orgA, "med-2", "Ibuprofen", 500, 150, 500, date(2026, 3, 20))
	info := batches.add(orgA, "med-3", "Metformin", 400, 120, 360, date(2026, 4, 20))
	batches.add(orgA, "med-4", "Paracetamol", 900, 200, 600, date(2027, 1, 1))

	alerts := newFakeAlerts(batches)
	dash := newMapCache()
	pub := testutil.NewMockPublisher()
	scanner := newTestAlertScanner(batches, alerts, dash, pub)

	created, err := scanner.CheckAndCreateAlerts(context.Background(), orgA)
	require.NoError(t, err)
	require.Len(t, created, 4)

	expired := alerts.find(expiredLow.ID, repository.AlertExpired)
	require.NotNil(t, expired)
	assert.Equal(t, repository.LevelCritical, expired.AlertLevel)
	assert.Equal(t, "Medicine has expired", expired.Message)

	low := alerts.find(expiredLow.ID, repository.AlertLowStock)
	require.NotNil(t, low)
	assert.Equal(t, repository.LevelCritical, low.AlertLevel)
	assert.Equal(t, "Stock below minimum level", low.Message)

	w := alerts.find(warning.ID, repository.AlertExpiryWarning)
	require.NotNil(t, w)
	assert.Equal(t, repository.LevelWarning, w.AlertLevel)
	assert.Equal(t, "Medicine expiring within 30 days", w.Message)

	i := alerts.find(info.ID, repository.AlertExpiryWarning)
	require.NotNil(t, i)
	assert.Equal(t, repository.LevelInfo, i.AlertLevel)
	assert.Equal(t, "Medicine expiring within 60 days", i.Message)

	assert.Equal(t, []string{orgA}, dash.invalidated)
	assert.Len(t, pub.Events(), 4)
	pub.AssertEventPublished(t, messaging.EventAlertGenerated)
}

func TestCheckAndCreateAlerts_SecondRunIsNoop(t *testing.T) {
	batches := &fakeBatches{}
	batches.add(orgA, "med-1", "Amoxicillin", 10, 100, 300, date(2026, 3, 2))
	alerts := newFakeAlerts(batches)
	dash := newMapCache()
	scanner := newTestAlertScanner(batches, alerts, dash, nil)
	ctx := context.Background()

	created, err := scanner.CheckAndCreateAlerts(ctx, orgA)
	require.NoError(t, err)
	assert.Len(t, created, 2)

	created, err = scanner.CheckAndCreateAlerts(ctx, orgA)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Len(t, alerts.rows, 2)
	assert.Len(t, dash.invalidated, 1, "nothing new, nothing to invalidate")
}

func TestCheckAndCreateAlerts_StoreErrorPropagates(t *testing.T) {
	batches := &fakeBatches{}
	batches.add(orgA, "med-1", "Amoxicillin", 10, 100, 300, date(2026, 3, 2))
	alerts := newFakeAlerts(batches)
	alerts.err = assert.AnError
	scanner := newTestAlertScanner(batches, alerts, nil, nil)

	_, err := scanner.CheckAndCreateAlerts(context.Background(), orgA)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestResolveAlert_Idempotent(t *testing.T) {
	batches := &fakeBatches{}
	batches.add(orgA, "med-1", "Amoxicillin", 10, 100, 300, date(2026, 9, 1))
	alerts := newFakeAlerts(batches)
	pub := testutil.NewMockPublisher()
	scanner := newTestAlertScanner(batches, alerts, nil, pub)
	ctx := context.Background()

	created, err := scanner.CheckAndCreateAlerts(ctx, orgA)
	require.NoError(t, err)
	require.Len(t, created, 1)
	id := created[0].ID

	require.NoError(t, scanner.ResolveAlert(ctx, id, "user-1"))
	require.NoError(t, scanner.ResolveAlert(ctx, id, "user-2"))

	stored := alerts.rows[0]
	assert.True(t, stored.IsResolved)
	require.NotNil(t, stored.ResolvedBy)
	assert.Equal(t, "user-2", *stored.ResolvedBy)
	assert.Equal(t, testNow, *stored.ResolvedAt)
	pub.AssertEventPublished(t, messaging.EventAlertResolved)

	active, err := scanner.ListActive(ctx, orgA)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestResolveAlert_ScopedToContextOrganization(t *testing.T) {
	batches := &fakeBatches{}
	batches.add(orgA, "med-1", "Amoxicillin", 10, 100, 300, date(2026, 9, 1))
	alerts := newFakeAlerts(batches)
	dash := newMapCache()
	scanner := newTestAlertScanner(batches, alerts, dash, nil)

	created, err := scanner.CheckAndCreateAlerts(context.Background(), orgA)
	require.NoError(t, err)
	require.Len(t, created, 1)

	otherOrg := tenant.WithOrganization(context.Background(), "org-b")
	err = scanner.ResolveAlert(otherOrg, created[0].ID, "user-1")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	assert.False(t, alerts.rows[0].IsResolved)

	ownOrg := tenant.WithOrganization(context.Background(), orgA)
	require.NoError(t, scanner.ResolveAlert(ownOrg, created[0].ID, "user-1"))
	assert.Contains(t, dash.invalidated, orgA)
}

func TestResolveAlert_Unknown(t *testing.T) {
	batches := &fakeBatches{}
	scanner := newTestAlertScanner(batches, newFakeAlerts(batches), nil, nil)

	err := scanner.ResolveAlert(context.Background(), "missing", "user-1")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
