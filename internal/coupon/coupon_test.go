package coupon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/storefront/internal/infrastructure/database/inmemory"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestValidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	one := 1

	cases := []struct {
		name string
		c    Coupon
		want error
	}{
		{"ok", Coupon{Active: true, MinSubtotal: d("10")}, nil},
		{"inactive", Coupon{Active: false}, ErrInactive},
		{"not started", Coupon{Active: true, StartsAt: &future}, ErrNotStarted},
		{"expired", Coupon{Active: true, ExpiresAt: &past}, ErrExpired},
		{"exhausted", Coupon{Active: true, UsageLimit: &one, UsedCount: 1}, ErrUsageExhausted},
		{"below minimum", Coupon{Active: true, MinSubtotal: d("100")}, ErrMinSubtotal},
	}
	for _, tc := range cases {
		if got := tc.c.Validate(now, d("50")); !errors.Is(got, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestDiscount(t *testing.T) {
	pct := Coupon{Kind: KindPercentage, Value: d("15")}
	if got := pct.Discount(d("40")); !got.Equal(d("6")) {
		t.Errorf("15%% of 40: expected 6, got %s", got)
	}
	fixed := Coupon{Kind: KindFixed, Value: d("25")}
	if got := fixed.Discount(d("20")); !got.Equal(d("20")) {
		t.Errorf("fixed discount must be capped at subtotal, got %s", got)
	}
	full := Coupon{Kind: KindPercentage, Value: d("150")}
	if got := full.Discount(d("20")); !got.Equal(d("20")) {
		t.Errorf("percentage discount must be capped at subtotal, got %s", got)
	}
}

func TestIncrementUsage_RespectsLimitAndRollback(t *testing.T) {
	limit := 1
	repo := NewInMemoryRepository([]Coupon{{StoreID: 1, Code: "SAVE", Active: true, UsageLimit: &limit}})
	tm := inmemory.NewTxManager()

	err := tm.WithinTx(context.Background(), func(ctx context.Context) error {
		if err := repo.IncrementUsage(ctx, 1, "save"); err != nil {
			return err
		}
		return errors.New("order failed")
	})
	if err == nil {
		t.Fatalf("expected rollback error")
	}
	c, _ := repo.FindByCode(context.Background(), 1, "SAVE")
	if c.UsedCount != 0 {
		t.Fatalf("expected usage rolled back, got %d", c.UsedCount)
	}

	if err := repo.IncrementUsage(context.Background(), 1, "SAVE"); err != nil {
		t.Fatalf("first redemption: %v", err)
	}
	if err := repo.IncrementUsage(context.Background(), 1, "SAVE"); !errors.Is(err, ErrUsageExhausted) {
		t.Fatalf("expected ErrUsageExhausted, got %v", err)
	}
}

func TestReleaseUsage(t *testing.T) {
	limit := 1
	repo := NewInMemoryRepository([]Coupon{{StoreID: 1, Code: "ONE", Active: true, UsageLimit: &limit, UsedCount: 1}})
	if err := repo.ReleaseUsage(context.Background(), 1, "one"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := repo.ReleaseUsage(context.Background(), 1, "one"); err != nil {
		t.Fatalf("release below zero must be a no-op: %v", err)
	}
	c, _ := repo.FindByCode(context.Background(), 1, "ONE")
	if c.UsedCount != 0 {
		t.Fatalf("expected usage 0, got %d", c.UsedCount)
	}
	if err := repo.IncrementUsage(context.Background(), 1, "ONE"); err != nil {
		t.Fatalf("released redemption should be usable again: %v", err)
	}
}
