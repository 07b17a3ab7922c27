package product

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/wichananm65/storefront/internal/infrastructure/database/postgres"
)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return NewPostgresRepository(postgres.NewTxManager(db)), mock, func() { db.Close() }
}

func TestDecrementStock_Success(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectQuery("UPDATE products SET stock = stock - \\$1").WithArgs(int64(2), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(3))

	available, ok, err := repo.DecrementStock(context.Background(), 5, 2)
	if err != nil || !ok {
		t.Fatalf("expected success, got ok=%v err=%v", ok, err)
	}
	if available != 5 {
		t.Fatalf("expected 5 available before decrement, got %d", available)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDecrementStock_Insufficient(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectQuery("UPDATE products SET stock = stock - \\$1").WithArgs(int64(4), int64(5)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT stock FROM products").WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(1))

	available, ok, err := repo.DecrementStock(context.Background(), 5, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || available != 1 {
		t.Fatalf("expected shortfall with 1 available, got ok=%v available=%d", ok, available)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListByIDs_ScansSalePrice(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	rows := sqlmock.NewRows([]string{"id", "store_id", "name", "sku", "price", "sale_price", "stock", "active"}).
		AddRow(1, 7, "A", "SKU-A", "10.00", "8.50", 4, true).
		AddRow(2, 7, "B", "SKU-B", "20.00", nil, 0, true)
	mock.ExpectQuery("FROM products WHERE store_id = \\$1 AND active").WillReturnRows(rows)

	got, err := repo.ListByIDs(context.Background(), 7, []int64{1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 products, got %d", len(got))
	}
	if got[1].SalePrice == nil || got[1].SalePrice.String() != "8.5" {
		t.Fatalf("expected sale price 8.5, got %+v", got[1].SalePrice)
	}
	if got[2].SalePrice != nil {
		t.Fatalf("expected nil sale price for product 2")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
