package order

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/wichananm65/storefront/internal/infrastructure/database/postgres"
)

var columns = []string{"id", "number", "store_id", "customer_id", "session_id", "status", "payment_status",
	"customer_name", "customer_email", "customer_phone", "shipping_address", "billing_address",
	"subtotal", "tax_amount", "shipping_amount", "discount_amount", "total_amount", "currency",
	"payment_method", "payment_gateway", "payment_transaction_id", "payment_details",
	"coupon_code", "coupon_discount", "shipping_method_id", "notes", "cancel_reason",
	"cancelled_at", "confirmed_at", "fulfilled_at", "created_at", "updated_at"}

func orderRow(now time.Time) []driver.Value {
	return []driver.Value{int64(5), "ORD-20260101-AAAAAAAA", int64(1), nil, "s-1", "pending", "pending",
		"Ann", "ann@example.com", "", []byte(`{"line1":"1 Main","city":"Town","postalCode":"1","country":"US"}`), []byte(`{}`),
		"50.00", "5.00", "5.00", "0.00", "60.00", "USD",
		"stripe", "stripe", "", []byte(`{"stripe":{"sessionId":"cs_1"}}`),
		"", "0.00", nil, "", "",
		nil, nil, nil, now, now}
}

func TestPostgresGetByNumber(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM orders WHERE store_id = \\$1 AND number = \\$2").
		WithArgs(int64(1), "ORD-20260101-AAAAAAAA").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(orderRow(now)...))
	mock.ExpectQuery("SELECT (.+) FROM order_items").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "product_name", "sku", "unit_price", "quantity", "variants", "total_price"}).
			AddRow(int64(1), int64(5), int64(3), "Kibble", "KB", "25.00", 2, []byte(`{"size":"L"}`), "50.00"))

	repo := NewPostgresRepository(postgres.NewTxManager(db))
	o, err := repo.GetByNumber(context.Background(), 1, "ORD-20260101-AAAAAAAA")
	if err != nil {
		t.Fatalf("expected nil err, got %v", err)
	}
	if o.ID != 5 || o.CustomerID != nil || o.PaymentDetails.Stripe == nil || o.PaymentDetails.Stripe.SessionID != "cs_1" {
		t.Fatalf("unexpected order %+v", o)
	}
	if len(o.Items) != 1 || o.Items[0].Variants["size"] != "L" || o.ShippingAddress.City != "Town" {
		t.Fatalf("unexpected items or address %+v", o)
	}
	if err := o.CheckTotals(); err != nil {
		t.Fatalf("scanned totals inconsistent: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresLock_RequiresTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	tm := postgres.NewTxManager(db)
	repo := NewPostgresRepository(tm)
	if _, err := repo.Lock(context.Background(), 5); err == nil {
		t.Fatalf("expected error outside a transaction")
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id = \\$1 FOR UPDATE").
		WithArgs(int64(5)).
		WillReturnError(errors.New("no rows in result set"))
	mock.ExpectRollback()
	err = tm.WithinTx(context.Background(), func(ctx context.Context) error {
		_, err := repo.Lock(ctx, 5)
		return err
	})
	if err == nil {
		t.Fatalf("expected query error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresUpdatePayment_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE orders SET status").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPostgresRepository(postgres.NewTxManager(db))
	o := sampleOrder()
	o.ID = 99
	if err := repo.UpdatePayment(context.Background(), o); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresCreate_InsertsItems(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("INSERT INTO orders").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectQuery("INSERT INTO order_items").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("INSERT INTO order_items").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))

	repo := NewPostgresRepository(postgres.NewTxManager(db))
	o := sampleOrder()
	if err := repo.Create(context.Background(), &o); err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.ID != 11 || o.Items[0].ID != 1 || o.Items[1].ID != 2 {
		t.Fatalf("ids not assigned: %+v", o)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
