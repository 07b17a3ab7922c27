package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/storefront/internal/cart"
	"github.com/wichananm65/storefront/internal/coupon"
	"github.com/wichananm65/storefront/internal/product"
	"github.com/wichananm65/storefront/internal/shipping"
	"github.com/wichananm65/storefront/internal/store"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	testStore = store.Store{ID: 1, Slug: "pets", Currency: "USD", TaxRate: d("10")}
	guest     = cart.Owner{StoreID: 1, SessionID: "guest"}
)

func setup(t *testing.T, items ...cart.Item) *Resolver {
	t.Helper()
	carts := cart.NewInMemoryRepository()
	if len(items) > 0 {
		if err := carts.Seed(guest, items...); err != nil {
			t.Fatalf("seed cart: %v", err)
		}
	}
	sale := d("8")
	products := product.NewInMemoryRepository([]product.Product{
		{ID: 1, StoreID: 1, Name: "Food", Price: d("20"), Stock: 10, Active: true},
		{ID: 2, StoreID: 1, Name: "Toy", Price: d("10"), Stock: 10, Active: true},
		{ID: 3, StoreID: 1, Name: "Treat", Price: d("10"), SalePrice: &sale, Stock: 10, Active: true},
		{ID: 4, StoreID: 2, Name: "Elsewhere", Price: d("1"), Stock: 10, Active: true},
	})
	yesterday := time.Now().Add(-24 * time.Hour)
	limit := 1
	coupons := coupon.NewInMemoryRepository([]coupon.Coupon{
		{ID: 1, StoreID: 1, Code: "TEN", Kind: coupon.KindPercentage, Value: d("10"), Active: true},
		{ID: 2, StoreID: 1, Code: "BIG", Kind: coupon.KindFixed, Value: d("500"), Active: true},
		{ID: 3, StoreID: 1, Code: "OLD", Kind: coupon.KindFixed, Value: d("5"), ExpiresAt: &yesterday, Active: true},
		{ID: 4, StoreID: 1, Code: "USED", Kind: coupon.KindFixed, Value: d("5"), UsageLimit: &limit, UsedCount: 1, Active: true},
	})
	methods := shipping.NewInMemoryRepository([]shipping.Method{
		{ID: 1, StoreID: 1, Name: "Standard", BaseCost: d("3"), HandlingFee: d("2"), Active: true},
		{ID: 2, StoreID: 1, Name: "Retired", BaseCost: d("1"), Active: false},
	})
	return NewResolver(carts, products, coupons, methods)
}

func ptr(v int64) *int64 { return &v }

func TestResolve_CODExample(t *testing.T) {
	r := setup(t, cart.Item{ProductID: 1, Quantity: 2}, cart.Item{ProductID: 2, Quantity: 1})

	snap, err := r.Resolve(context.Background(), Request{Store: testStore, Owner: guest, ShippingMethodID: ptr(1)})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !snap.Subtotal.Equal(d("50")) || !snap.Shipping.Equal(d("5")) || !snap.Tax.Equal(d("5")) || !snap.Total.Equal(d("60")) {
		t.Fatalf("unexpected amounts: subtotal %s shipping %s tax %s total %s", snap.Subtotal, snap.Shipping, snap.Tax, snap.Total)
	}
	items := snap.Items()
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.TotalPrice)
	}
	if !sum.Equal(snap.Subtotal) {
		t.Fatalf("items sum %s != subtotal %s", sum, snap.Subtotal)
	}
}

func TestResolve_SalePriceAndPercentageCoupon(t *testing.T) {
	r := setup(t, cart.Item{ProductID: 3, Quantity: 5}, cart.Item{ProductID: 2, Quantity: 1})

	snap, err := r.Resolve(context.Background(), Request{Store: testStore, Owner: guest, CouponCode: "ten"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// 5 x 8 + 10 = 50, 10% off = 5, tax 10% of 45
	if !snap.Subtotal.Equal(d("50")) || !snap.Discount.Equal(d("5")) || !snap.Tax.Equal(d("4.5")) || !snap.Total.Equal(d("49.5")) {
		t.Fatalf("unexpected amounts: subtotal %s discount %s tax %s total %s", snap.Subtotal, snap.Discount, snap.Tax, snap.Total)
	}
	if snap.Coupon == nil || snap.Coupon.Code != "TEN" {
		t.Fatalf("expected resolved coupon")
	}
}

func TestResolve_FixedCouponCappedAtSubtotal(t *testing.T) {
	r := setup(t, cart.Item{ProductID: 2, Quantity: 1})

	snap, err := r.Resolve(context.Background(), Request{Store: testStore, Owner: guest, CouponCode: "BIG", ShippingMethodID: ptr(1)})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !snap.Discount.Equal(d("10")) || !snap.Tax.IsZero() || !snap.Total.Equal(d("5")) {
		t.Fatalf("unexpected amounts: discount %s tax %s total %s", snap.Discount, snap.Tax, snap.Total)
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name   string
		items  []cart.Item
		req    Request
		want   error
		reason error
	}{
		{name: "empty cart", req: Request{}, want: ErrEmptyCart},
		{name: "unknown product", items: []cart.Item{{ProductID: 4, Quantity: 1}}, want: ErrUnknownProduct},
		{name: "missing coupon", items: []cart.Item{{ProductID: 1, Quantity: 1}}, req: Request{CouponCode: "NOPE"}, want: ErrInvalidCoupon, reason: coupon.ErrNotFound},
		{name: "expired coupon", items: []cart.Item{{ProductID: 1, Quantity: 1}}, req: Request{CouponCode: "OLD"}, want: ErrInvalidCoupon, reason: coupon.ErrExpired},
		{name: "exhausted coupon", items: []cart.Item{{ProductID: 1, Quantity: 1}}, req: Request{CouponCode: "USED"}, want: ErrInvalidCoupon, reason: coupon.ErrUsageExhausted},
		{name: "unknown shipping", items: []cart.Item{{ProductID: 1, Quantity: 1}}, req: Request{ShippingMethodID: ptr(9)}, want: ErrInvalidShippingMethod},
		{name: "inactive shipping", items: []cart.Item{{ProductID: 1, Quantity: 1}}, req: Request{ShippingMethodID: ptr(2)}, want: ErrInvalidShippingMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setup(t, tt.items...)
			tt.req.Store = testStore
			tt.req.Owner = guest
			_, err := r.Resolve(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if tt.reason != nil && !errors.Is(err, tt.reason) {
				t.Fatalf("expected reason %v in %v", tt.reason, err)
			}
		})
	}
}

func TestResolve_DoesNotCountCouponUsage(t *testing.T) {
	carts := cart.NewInMemoryRepository()
	carts.Seed(guest, cart.Item{ProductID: 1, Quantity: 1})
	limit := 1
	coupons := coupon.NewInMemoryRepository([]coupon.Coupon{{ID: 1, StoreID: 1, Code: "ONCE", Kind: coupon.KindFixed, Value: d("1"), UsageLimit: &limit, Active: true}})
	r := NewResolver(carts, product.NewInMemoryRepository([]product.Product{{ID: 1, StoreID: 1, Price: d("5"), Stock: 1, Active: true}}), coupons, shipping.NewInMemoryRepository(nil))

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), Request{Store: testStore, Owner: guest, CouponCode: "ONCE"}); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	c, _ := coupons.FindByCode(context.Background(), 1, "ONCE")
	if c.UsedCount != 0 {
		t.Fatalf("resolving must not count usage, got %d", c.UsedCount)
	}
}
