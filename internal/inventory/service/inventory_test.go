package service

import (
	"context"
	"testing"

	"github.com/medflow/pharmacy-backend/internal/inventory/events"
	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/pkg/clock"
	apperrors "github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
	"github.com/medflow/pharmacy-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inventoryFixture struct {
	medicines *fakeMedicines
	batches   *fakeBatches
	alerts    *fakeAlerts
	cache     *mapCache
	publisher *testutil.MockPublisher
	svc       *InventoryService
}

func newInventoryFixture() *inventoryFixture {
	f := &inventoryFixture{
		medicines: &fakeMedicines{},
		batches:   &fakeBatches{},
		cache:     newMapCache(),
		publisher: testutil.NewMockPublisher(),
	}
	f.alerts = newFakeAlerts(f.batches)
	f.svc = NewInventoryService(f.medicines, f.batches, f.alerts, f.cache,
		events.NewWithPublisher(f.publisher, logger.Nop()), clock.Fixed{At: testNow}, logger.Nop())
	return f
}

func TestCreateMedicine_RejectsNegativePrice(t *testing.T) {
	f := newInventoryFixture()

	err := f.svc.CreateMedicine(context.Background(), &repository.Medicine{
		Name:      "Amoxicillin",
		UnitPrice: decimal.NewFromInt(-1),
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	assert.Empty(t, f.medicines.rows)
}

func TestAddBatch(t *testing.T) {
	f := newInventoryFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.CreateMedicine(ctx, &repository.Medicine{Name: "Amoxicillin", UnitPrice: decimal.RequireFromString("8.40")}))
	medID := f.medicines.rows[0].ID

	t.Run("unknown medicine", func(t *testing.T) {
		err := f.svc.AddBatch(ctx, &repository.Batch{OrganizationID: orgA, MedicineID: "missing"})
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("received", func(t *testing.T) {
		batch := &repository.Batch{
			OrganizationID: orgA,
			MedicineID:     medID,
			BatchNumber:    "BATCH-2026-001",
			Quantity:       200,
			ExpiryDate:     date(2026, 12, 31),
		}
		require.NoError(t, f.svc.AddBatch(ctx, batch))

		assert.True(t, batch.IsAvailable)
		assert.NotEmpty(t, batch.ID)
		assert.Contains(t, f.cache.invalidated, orgA)
		f.publisher.AssertEventPublished(t, messaging.EventBatchCreated)
	})
}

func TestUpdateBatchQuantity(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects unknown transaction type", func(t *testing.T) {
		f := newInventoryFixture()
		_, err := f.svc.UpdateBatchQuantity(ctx, orgA, "b", 10, "theft", "", "")
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	})

	t.Run("rejects negative quantity", func(t *testing.T) {
		f := newInventoryFixture()
		_, err := f.svc.UpdateBatchQuantity(ctx, orgA, "b", -1, repository.TransactionAdjustment, "", "")
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	})

	t.Run("unknown batch", func(t *testing.T) {
		f := newInventoryFixture()
		_, err := f.svc.UpdateBatchQuantity(ctx, orgA, "missing", 10, repository.TransactionOutbound, "", "")
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
		f.publisher.AssertNoEventsPublished(t)
	})

	t.Run("records change", func(t *testing.T) {
		f := newInventoryFixture()
		batch := f.batches.add(orgA, "med-1", "Amoxicillin", 50, 100, 300, date(2026, 9, 1))

		change, err := f.svc.UpdateBatchQuantity(ctx, orgA, batch.ID, 40, repository.TransactionOutbound, "dispensed", "user-1")
		require.NoError(t, err)

		assert.Equal(t, 50, change.PreviousQty)
		assert.Equal(t, 40, change.NewQty)
		assert.Equal(t, -10, change.QuantityChange)
		require.NotNil(t, change.Reason)
		assert.Equal(t, "dispensed", *change.Reason)
		assert.Equal(t, []string{orgA}, f.cache.invalidated)

		evts := f.publisher.Events()
		require.Len(t, evts, 1)
		payload, ok := evts[0].Payload.(messaging.StockAdjustedEvent)
		require.True(t, ok)
		assert.Equal(t, "med-1", payload.MedicineID)
		assert.Equal(t, -10, payload.QuantityChange)
	})

	t.Run("empty reason stays null", func(t *testing.T) {
		f := newInventoryFixture()
		batch := f.batches.add(orgA, "med-1", "Amoxicillin", 50, 100, 300, date(2026, 9, 1))

		change, err := f.svc.UpdateBatchQuantity(ctx, orgA, batch.ID, 80, repository.TransactionInbound, "", "")
		require.NoError(t, err)
		assert.Nil(t, change.Reason)
		assert.Nil(t, change.PerformedBy)
	})
}

func TestDashboard(t *testing.T) {
	f := newInventoryFixture()
	ctx := context.Background()

	f.batches.add(orgA, "med-1", "Amoxicillin", 10, 100, 300, date(2026, 3, 20))
	f.batches.add(orgA, "med-2", "Ibuprofen", 500, 150, 500, date(2026, 3, 25))
	f.batches.add(orgA, "med-3", "Metformin", 400, 120, 360, date(2027, 1, 1))
	f.alerts = newFakeAlerts(f.batches)
	f.svc.alerts = f.alerts

	scanner := newTestAlertScanner(f.batches, f.alerts, nil, nil)
	_, err := scanner.CheckAndCreateAlerts(ctx, orgA)
	require.NoError(t, err)

	stats, err := f.svc.Dashboard(ctx, orgA)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalBatches)
	assert.Equal(t, int64(1), stats.LowStockCount)
	assert.Equal(t, int64(2), stats.ExpiringCount)
	assert.Equal(t, int64(3), stats.ActiveAlerts)
	assert.Equal(t, testNow, stats.GeneratedAt)
	assert.False(t, stats.ServedFromCache)

	f.batches.add(orgA, "med-4", "Paracetamol", 900, 200, 600, date(2027, 1, 1))

	cached, err := f.svc.Dashboard(ctx, orgA)
	require.NoError(t, err)
	assert.True(t, cached.ServedFromCache)
	assert.Equal(t, int64(3), cached.TotalBatches)

	require.NoError(t, f.cache.Invalidate(ctx, orgA))
	fresh, err := f.svc.Dashboard(ctx, orgA)
	require.NoError(t, err)
	assert.False(t, fresh.ServedFromCache)
	assert.Equal(t, int64(4), fresh.TotalBatches)
}

func TestDashboard_StoreError(t *testing.T) {
	f := newInventoryFixture()
	f.batches.failOrg = orgA

	_, err := f.svc.Dashboard(context.Background(), orgA)
	require.Error(t, err)
	assert.Empty(t, f.cache.entries)
}
