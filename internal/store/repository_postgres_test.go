package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestGetBySlug_DecodesGateways(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	rows := sqlmock.NewRows([]string{"id", "slug", "name", "currency", "tax_rate", "gateways"}).
		AddRow(3, "pets", "Pet Shop", "USD", "7.5", []byte(`{"stripe":{"secretKey":"sk_test_1"},"cod":{"enabled":true}}`))
	mock.ExpectQuery("FROM stores WHERE slug").WithArgs("pets").WillReturnRows(rows)

	s, err := repo.GetBySlug(context.Background(), "pets")
	if err != nil {
		t.Fatalf("expected nil err, got %v", err)
	}
	if s.ID != 3 || s.Gateways.Stripe.SecretKey != "sk_test_1" || !s.Gateways.COD.Enabled {
		t.Fatalf("unexpected store %+v", s)
	}
	if s.TaxRate.String() != "7.5" {
		t.Fatalf("unexpected tax rate %s", s.TaxRate)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectQuery("FROM stores WHERE id").WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "name", "currency", "tax_rate", "gateways"}))

	if _, err := repo.GetByID(context.Background(), 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
