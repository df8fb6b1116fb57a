package coupons

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap/zaptest"
)

func TestReserver_Reserve_ClaimsAUse(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE coupons SET current_uses = current_uses \\+ 1").
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	reserver := NewReserver(db, zaptest.NewLogger(t))
	res, err := reserver.Reserve(context.Background(), 1)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if !res.Success {
		t.Error("Expected the reservation to succeed")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestReserver_Reserve_RefusesExhaustedCoupon(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	// The conditional UPDATE matches no row once current_uses == max_uses.
	mock.ExpectExec("UPDATE coupons SET current_uses = current_uses \\+ 1").
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	reserver := NewReserver(db, zaptest.NewLogger(t))
	res, err := reserver.Reserve(context.Background(), 1)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if res.Success {
		t.Error("Expected the reservation to be refused")
	}
	if res.Message != "Cupom esgotado ou expirado" {
		t.Errorf("Unexpected refusal message: %q", res.Message)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestReserver_Reserve_UnknownCoupon(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE coupons SET current_uses = current_uses \\+ 1").
		WithArgs(99).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	reserver := NewReserver(db, zaptest.NewLogger(t))
	res, err := reserver.Reserve(context.Background(), 99)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if res.Success || res.Message != "Cupom não encontrado" {
		t.Errorf("Expected a not-found refusal, got %+v", res)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestReserver_Release(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE coupons SET current_uses = GREATEST").
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	reserver := NewReserver(db, zaptest.NewLogger(t))
	if err := reserver.Release(context.Background(), 1); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
