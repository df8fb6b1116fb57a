package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"checkout-svc/models"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap/zaptest"
)

func setupStoreTest(t *testing.T) (*OrderStore, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	return NewOrderStore(db, zaptest.NewLogger(t)), mock, db
}

func sampleOrder() *models.Order {
	return &models.Order{
		UserID:             7,
		TotalAmount:        105.90,
		Status:             models.OrderStatusPending,
		PaymentStatus:      models.PaymentStatusPending,
		PaymentMethod:      models.PaymentMethodDirectTransfer,
		ShippingCarrier:    "Correios",
		ShippingService:    "PAC",
		ShippingCost:       15.90,
		ShippingName:       "Maria Souza",
		ShippingPhone:      "11 99999-8888",
		ShippingPostalCode: "01310-100",
		ShippingStreet:     "Av. Paulista",
		ShippingNumber:     "1000",
		ShippingCity:       "São Paulo",
		ShippingState:      "SP",
		DiscountAmount:     10,
		AttemptKey:         "3f2c8e1a-0000-0000-0000-000000000001",
	}
}

func TestOrderStore_CreateOrder(t *testing.T) {
	store, mock, db := setupStoreTest(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(42, now, now))

	order := sampleOrder()
	duplicate, err := store.CreateOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if duplicate {
		t.Error("Expected a fresh insert, not a duplicate")
	}
	if order.ID != 42 {
		t.Errorf("Expected order id 42, got %d", order.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestOrderStore_CreateOrder_DuplicateAttemptKey(t *testing.T) {
	store, mock, db := setupStoreTest(t)
	defer db.Close()

	now := time.Now()
	// ON CONFLICT DO NOTHING returns no row on conflict.
	mock.ExpectQuery("INSERT INTO orders").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT id, total_amount, created_at, updated_at FROM orders WHERE attempt_key").
		WithArgs("3f2c8e1a-0000-0000-0000-000000000001").
		WillReturnRows(sqlmock.NewRows([]string{"id", "total_amount", "created_at", "updated_at"}).
			AddRow(42, 105.90, now, now))

	order := sampleOrder()
	duplicate, err := store.CreateOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if !duplicate {
		t.Error("Expected the duplicate flag for a resubmitted attempt key")
	}
	if order.ID != 42 {
		t.Errorf("Expected the existing order id 42, got %d", order.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestOrderStore_CreateItems_MalformedProductRef(t *testing.T) {
	store, mock, db := setupStoreTest(t)
	defer db.Close()

	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(42, 1, 2, 30.0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	// The malformed reference lands as NULL, not as a batch failure.
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(42, nil, 1, 5.0).
		WillReturnResult(sqlmock.NewResult(2, 1))

	lines := []models.CartLine{
		{ProductID: "1", UnitPrice: 30, Quantity: 2},
		{ProductID: "abc", UnitPrice: 5, Quantity: 1},
	}
	if err := store.CreateItems(context.Background(), 42, lines); err != nil {
		t.Fatalf("CreateItems failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestOrderStore_DeleteOrder(t *testing.T) {
	store, mock, db := setupStoreTest(t)
	defer db.Close()

	mock.ExpectExec("DELETE FROM orders WHERE id").
		WithArgs(42).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.DeleteOrder(context.Background(), 42); err != nil {
		t.Fatalf("DeleteOrder failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
