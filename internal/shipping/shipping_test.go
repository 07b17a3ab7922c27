package shipping

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/wichananm65/storefront/internal/infrastructure/database/postgres"
)

func TestCost(t *testing.T) {
	m := Method{BaseCost: decimal.RequireFromString("4.50"), HandlingFee: decimal.RequireFromString("0.50")}
	if !m.Cost().Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected 5, got %s", m.Cost())
	}
}

func TestPostgresGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(postgres.NewTxManager(db))

	mock.ExpectQuery("FROM shipping_methods").WithArgs(int64(1), int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "store_id", "name", "base_cost", "handling_fee", "active"}).
			AddRow(4, 1, "Express", "9.00", "1.00", true))
	mock.ExpectQuery("FROM shipping_methods").WithArgs(int64(1), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "store_id", "name", "base_cost", "handling_fee", "active"}))

	m, err := repo.GetByID(context.Background(), 1, 4)
	if err != nil || m.Name != "Express" || !m.Cost().Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected method %+v err %v", m, err)
	}
	if _, err := repo.GetByID(context.Background(), 1, 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
