// Package snapshot prices a cart at the moment of checkout.
//
// A Snapshot is computed fresh for every checkout attempt from the live cart,
// catalog, coupon and shipping method, and is never stored.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/storefront/internal/cart"
	"github.com/wichananm65/storefront/internal/coupon"
	"github.com/wichananm65/storefront/internal/order"
	"github.com/wichananm65/storefront/internal/product"
	"github.com/wichananm65/storefront/internal/shipping"
	"github.com/wichananm65/storefront/internal/store"
)

var (
	ErrEmptyCart             = errors.New("cart is empty")
	ErrUnknownProduct        = errors.New("cart references a product that is not available")
	ErrInvalidCoupon         = errors.New("coupon cannot be applied")
	ErrInvalidShippingMethod = errors.New("shipping method is not available")
)

type CartReader interface {
	GetItems(ctx context.Context, owner cart.Owner) ([]cart.Item, error)
}

type Catalog interface {
	ListByIDs(ctx context.Context, storeID int64, ids []int64) (map[int64]product.Product, error)
}

type Coupons interface {
	FindByCode(ctx context.Context, storeID int64, code string) (coupon.Coupon, error)
}

type ShippingMethods interface {
	GetByID(ctx context.Context, storeID, id int64) (shipping.Method, error)
}

// Request names the cart to price and the optional adjustments.
type Request struct {
	Store            store.Store
	Owner            cart.Owner
	CouponCode       string
	ShippingMethodID *int64
}

// Line is a priced cart line.
type Line struct {
	Product    product.Product
	Quantity   int
	Variants   map[string]string
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

type Snapshot struct {
	Lines          []Line
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	Shipping       decimal.Decimal
	Tax            decimal.Decimal
	Total          decimal.Decimal
	Currency       string
	Coupon         *coupon.Coupon
	ShippingMethod *shipping.Method
}

// Totals returns the order totals for the snapshot.
func (s Snapshot) Totals() order.Totals {
	return order.NewTotals(s.Subtotal, s.Tax, s.Shipping, s.Discount)
}

// Items returns order items with the product data copied from the catalog.
func (s Snapshot) Items() []order.Item {
	items := make([]order.Item, 0, len(s.Lines))
	for _, ln := range s.Lines {
		items = append(items, order.NewItem(ln.Product.ID, ln.Product.Name, ln.Product.SKU, ln.UnitPrice, ln.Quantity, ln.Variants))
	}
	return items
}

type Resolver struct {
	carts    CartReader
	catalog  Catalog
	coupons  Coupons
	shipping ShippingMethods
	now      func() time.Time
}

func NewResolver(carts CartReader, catalog Catalog, coupons Coupons, methods ShippingMethods) *Resolver {
	return &Resolver{carts: carts, catalog: catalog, coupons: coupons, shipping: methods, now: time.Now}
}

// Resolve prices the cart. It has no side effects; coupon usage is counted
// only when an order is created.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Snapshot, error) {
	items, err := r.carts.GetItems(ctx, req.Owner)
	if err != nil {
		return Snapshot{}, err
	}
	if len(items) == 0 {
		return Snapshot{}, ErrEmptyCart
	}

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := r.catalog.ListByIDs(ctx, req.Store.ID, ids)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{Currency: req.Store.Currency, Subtotal: decimal.Zero}
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		p, ok := products[it.ProductID]
		if !ok {
			return Snapshot{}, fmt.Errorf("%w: product %d", ErrUnknownProduct, it.ProductID)
		}
		unit := p.UnitPrice().Round(2)
		line := Line{
			Product:    p,
			Quantity:   it.Quantity,
			Variants:   it.Variants,
			UnitPrice:  unit,
			TotalPrice: unit.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2),
		}
		snap.Lines = append(snap.Lines, line)
		snap.Subtotal = snap.Subtotal.Add(line.TotalPrice)
	}
	if len(snap.Lines) == 0 {
		return Snapshot{}, ErrEmptyCart
	}

	snap.Discount = decimal.Zero
	if code := strings.TrimSpace(req.CouponCode); code != "" {
		c, err := r.coupons.FindByCode(ctx, req.Store.ID, code)
		if err != nil {
			if errors.Is(err, coupon.ErrNotFound) {
				return Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidCoupon, err)
			}
			return Snapshot{}, err
		}
		if err := c.Validate(r.now(), snap.Subtotal); err != nil {
			return Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidCoupon, err)
		}
		snap.Coupon = &c
		snap.Discount = c.Discount(snap.Subtotal)
	}

	snap.Shipping = decimal.Zero
	if req.ShippingMethodID != nil {
		m, err := r.shipping.GetByID(ctx, req.Store.ID, *req.ShippingMethodID)
		if err != nil {
			if errors.Is(err, shipping.ErrNotFound) {
				return Snapshot{}, ErrInvalidShippingMethod
			}
			return Snapshot{}, err
		}
		if !m.Active {
			return Snapshot{}, ErrInvalidShippingMethod
		}
		snap.ShippingMethod = &m
		snap.Shipping = m.Cost()
	}

	snap.Tax = snap.Subtotal.Sub(snap.Discount).Mul(req.Store.TaxRate).Div(decimal.NewFromInt(100)).Round(2)
	if snap.Tax.IsNegative() {
		snap.Tax = decimal.Zero
	}
	snap.Total = snap.Totals().TotalAmount
	return snap, nil
}
