package coupon

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindPercentage Kind = "percentage"
	KindFixed      Kind = "fixed"
)

var (
	ErrNotFound       = errors.New("coupon not found")
	ErrInactive       = errors.New("coupon is not active")
	ErrNotStarted     = errors.New("coupon is not valid yet")
	ErrExpired        = errors.New("coupon has expired")
	ErrUsageExhausted = errors.New("coupon usage limit reached")
	ErrMinSubtotal    = errors.New("order subtotal is below the coupon minimum")
)

// Coupon is a store discount code.
type Coupon struct {
	ID          int64           `json:"id"`
	StoreID     int64           `json:"storeId"`
	Code        string          `json:"code"`
	Kind        Kind            `json:"kind"`
	Value       decimal.Decimal `json:"value"`
	MinSubtotal decimal.Decimal `json:"minSubtotal"`
	UsageLimit  *int            `json:"usageLimit,omitempty"`
	UsedCount   int             `json:"usedCount"`
	StartsAt    *time.Time      `json:"startsAt,omitempty"`
	ExpiresAt   *time.Time      `json:"expiresAt,omitempty"`
	Active      bool            `json:"active"`
}

// Validate reports why the coupon cannot be applied to subtotal at now.
func (c Coupon) Validate(now time.Time, subtotal decimal.Decimal) error {
	switch {
	case !c.Active:
		return ErrInactive
	case c.StartsAt != nil && now.Before(*c.StartsAt):
		return ErrNotStarted
	case c.ExpiresAt != nil && !now.Before(*c.ExpiresAt):
		return ErrExpired
	case c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit:
		return ErrUsageExhausted
	case subtotal.LessThan(c.MinSubtotal):
		return ErrMinSubtotal
	}
	return nil
}

// Discount is the amount taken off subtotal, never more than subtotal.
func (c Coupon) Discount(subtotal decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch c.Kind {
	case KindPercentage:
		d = subtotal.Mul(c.Value).Div(decimal.NewFromInt(100))
	case KindFixed:
		d = c.Value
	}
	d = d.Round(2)
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(subtotal) {
		return subtotal
	}
	return d
}
