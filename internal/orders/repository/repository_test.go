package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/medflow/pharmacy-backend/internal/orders/repository"
	apperrors "github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	orgID      = "6f1c1c4e-2d2a-4a57-9a0e-6f5a4d4d0a01"
	supplierID = "5e4d3c2b-1a09-4876-9543-210fedcba905"
	orderID    = "1d2c3b4a-5f6e-4d7c-8b9a-0f1e2d3c4b06"
	medicineID = "0b8f3c1e-7f0e-4b8a-9d55-2b1a0e4c9f02"
)

var orderColumns = []string{
	"id", "organization_id", "supplier_id", "supplier_name", "order_number", "status",
	"total_amount", "expected_delivery_date", "actual_delivery_date", "notes",
	"created_by", "created_at", "updated_at",
}

func TestOrderRepository_Create(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	expected := testutil.PtrTime(testutil.Date(2026, 3, 9))
	now := time.Now()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO purchase_orders").
		WithArgs(testutil.AnyUUID{}, orgID, supplierID, "PO-20260302-ABC123", repository.StatusPending,
			sqlmock.AnyArg(), "2026-03-09", nil, nil).
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	mockDB.ExpectQuery("INSERT INTO purchase_order_items").
		WithArgs(testutil.AnyUUID{}, medicineID, 300, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(testutil.MockRows("id").AddRow("item-1"))
	mockDB.ExpectCommit()

	po := &repository.PurchaseOrder{
		OrganizationID:       orgID,
		SupplierID:           supplierID,
		OrderNumber:          "PO-20260302-ABC123",
		Status:               repository.StatusPending,
		TotalAmount:          decimal.RequireFromString("2520.00"),
		ExpectedDeliveryDate: expected,
		Items: []*repository.OrderItem{{
			MedicineID: medicineID,
			Quantity:   300,
			UnitPrice:  decimal.RequireFromString("8.40"),
			LineTotal:  decimal.RequireFromString("2520.00"),
		}},
	}

	repo := repository.NewOrderRepository(mockDB.Database())
	require.NoError(t, repo.Create(context.Background(), po))

	assert.NotEmpty(t, po.ID)
	assert.Equal(t, "item-1", po.Items[0].ID)
	assert.Equal(t, po.ID, po.Items[0].PurchaseOrderID)
	mockDB.ExpectationsWereMet(t)
}

func TestOrderRepository_Create_ItemFailureRollsBack(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	now := time.Now()
	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO purchase_orders").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	mockDB.ExpectQuery("INSERT INTO purchase_order_items").
		WillReturnError(assert.AnError)
	mockDB.ExpectRollback()

	po := &repository.PurchaseOrder{
		OrganizationID: orgID,
		SupplierID:     supplierID,
		OrderNumber:    "PO-1",
		Status:         repository.StatusPending,
		Items:          []*repository.OrderItem{{MedicineID: medicineID, Quantity: 1}},
	}

	repo := repository.NewOrderRepository(mockDB.Database())
	err := repo.Create(context.Background(), po)
	assert.ErrorIs(t, err, assert.AnError)
	mockDB.ExpectationsWereMet(t)
}

func TestOrderRepository_GetByID(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	now := time.Now()
	mockDB.ExpectQuery("FROM purchase_orders po").
		WithArgs(orderID, orgID).
		WillReturnRows(testutil.MockRows(orderColumns...).AddRow(
			orderID, orgID, supplierID, "MedSupply", "PO-1", repository.StatusPending,
			"2520.00", nil, nil, nil, nil, now, now,
		))
	mockDB.ExpectQuery("FROM purchase_order_items i").
		WithArgs(orderID).
		WillReturnRows(testutil.MockRows("id", "purchase_order_id", "medicine_id", "medicine_name", "quantity", "unit_price", "line_total").
			AddRow("item-1", orderID, medicineID, "Amoxicillin", 300, "8.40", "2520.00"))

	repo := repository.NewOrderRepository(mockDB.Database())
	po, err := repo.GetByID(context.Background(), orgID, orderID)
	require.NoError(t, err)

	assert.Equal(t, "MedSupply", po.SupplierName)
	assert.True(t, po.TotalAmount.Equal(decimal.NewFromInt(2520)))
	require.Len(t, po.Items, 1)
	assert.Equal(t, "Amoxicillin", po.Items[0].MedicineName)
	mockDB.ExpectationsWereMet(t)
}

func TestOrderRepository_GetByID_NotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("FROM purchase_orders po").
		WithArgs(orderID, orgID).
		WillReturnRows(testutil.MockRows(orderColumns...))

	repo := repository.NewOrderRepository(mockDB.Database())
	_, err := repo.GetByID(context.Background(), orgID, orderID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestOrderRepository_UpdateStatus(t *testing.T) {
	delivered := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	t.Run("delivered sets date", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()

		mockDB.ExpectQuery("UPDATE purchase_orders").
			WithArgs(orderID, orgID, repository.StatusShipped, repository.StatusDelivered, "2026-03-02").
			WillReturnRows(testutil.MockRows("updated_at").AddRow(time.Now()))

		repo := repository.NewOrderRepository(mockDB.Database())
		_, err := repo.UpdateStatus(context.Background(), orgID, orderID, repository.StatusShipped, repository.StatusDelivered, &delivered)
		require.NoError(t, err)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("stale status conflicts", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()

		mockDB.ExpectQuery("UPDATE purchase_orders").
			WithArgs(orderID, orgID, repository.StatusPending, repository.StatusConfirmed, nil).
			WillReturnRows(testutil.MockRows("updated_at"))

		repo := repository.NewOrderRepository(mockDB.Database())
		_, err := repo.UpdateStatus(context.Background(), orgID, orderID, repository.StatusPending, repository.StatusConfirmed, nil)
		assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
		mockDB.ExpectationsWereMet(t)
	})
}

func TestSupplierRepository(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("INSERT INTO suppliers").
		WithArgs(testutil.AnyUUID{}, orgID, "MedSupply", nil, "orders@medsupply.test", nil, nil).
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mockDB.ExpectQuery("FROM suppliers").
		WithArgs(supplierID, orgID).
		WillReturnRows(testutil.MockRows("id", "organization_id", "name", "contact_name", "email", "phone", "address", "created_at"))

	repo := repository.NewSupplierRepository(mockDB.Database())

	s := &repository.Supplier{OrganizationID: orgID, Name: "MedSupply", Email: testutil.PtrString("orders@medsupply.test")}
	require.NoError(t, repo.Create(context.Background(), s))
	assert.NotEmpty(t, s.ID)

	_, err := repo.GetByID(context.Background(), orgID, supplierID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}
