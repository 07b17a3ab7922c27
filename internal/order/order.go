package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("order state does not allow this transition")
	ErrTotalsMismatch    = errors.New("order totals do not add up")
)

type Status string

const (
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusPending         Status = "pending"
	StatusConfirmed       Status = "confirmed"
	StatusFulfilled       Status = "fulfilled"
	StatusCancelled       Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentAwaiting PaymentStatus = "awaiting_payment"
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
)

// PaymentMethod is the gateway a customer picked at checkout.
type PaymentMethod string

const (
	MethodCOD         PaymentMethod = "cod"
	MethodStripe      PaymentMethod = "stripe"
	MethodPayPal      PaymentMethod = "paypal"
	MethodPayFast     PaymentMethod = "payfast"
	MethodMercadoPago PaymentMethod = "mercadopago"
)

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Totals are the monetary fields of an order. Build them with NewTotals so the
// total is always derived from its components.
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	ShippingAmount decimal.Decimal `json:"shippingAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
}

// NewTotals rounds every component to cents and derives the total, floored at
// zero.
func NewTotals(subtotal, tax, shipping, discount decimal.Decimal) Totals {
	t := Totals{
		Subtotal:       subtotal.Round(2),
		TaxAmount:      tax.Round(2),
		ShippingAmount: shipping.Round(2),
		DiscountAmount: discount.Round(2),
	}
	total := t.Subtotal.Add(t.TaxAmount).Add(t.ShippingAmount).Sub(t.DiscountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	t.TotalAmount = total
	return t
}

// Item is a line of an order with the product data copied at purchase time.
type Item struct {
	ID          int64             `json:"id"`
	ProductID   int64             `json:"productID"`
	ProductName string            `json:"productName"`
	SKU         string            `json:"sku,omitempty"`
	UnitPrice   decimal.Decimal   `json:"unitPrice"`
	Quantity    int               `json:"quantity"`
	Variants    map[string]string `json:"variants,omitempty"`
	TotalPrice  decimal.Decimal   `json:"totalPrice"`
}

// NewItem derives the line total from unit price and quantity.
func NewItem(productID int64, name, sku string, unitPrice decimal.Decimal, qty int, variants map[string]string) Item {
	unit := unitPrice.Round(2)
	return Item{
		ProductID:   productID,
		ProductName: name,
		SKU:         sku,
		UnitPrice:   unit,
		Quantity:    qty,
		Variants:    variants,
		TotalPrice:  unit.Mul(decimal.NewFromInt(int64(qty))).Round(2),
	}
}

// Order represents a purchase attempt in a store.
type Order struct {
	ID                   int64           `json:"id"`
	Number               string          `json:"number"`
	StoreID              int64           `json:"storeID"`
	CustomerID           *int64          `json:"customerID,omitempty"`
	SessionID            string          `json:"-"`
	Status               Status          `json:"status"`
	PaymentStatus        PaymentStatus   `json:"paymentStatus"`
	CustomerName         string          `json:"customerName"`
	CustomerEmail        string          `json:"customerEmail"`
	CustomerPhone        string          `json:"customerPhone,omitempty"`
	ShippingAddress      Address         `json:"shippingAddress"`
	BillingAddress       Address         `json:"billingAddress"`
	Totals
	Currency             string          `json:"currency"`
	PaymentMethod        PaymentMethod   `json:"paymentMethod"`
	PaymentGateway       string          `json:"paymentGateway,omitempty"`
	PaymentTransactionID string          `json:"paymentTransactionID,omitempty"`
	PaymentDetails       PaymentDetails  `json:"paymentDetails"`
	CouponCode           string          `json:"couponCode,omitempty"`
	CouponDiscount       decimal.Decimal `json:"couponDiscount"`
	ShippingMethodID     *int64          `json:"shippingMethodID,omitempty"`
	Notes                string          `json:"notes,omitempty"`
	CancelReason         string          `json:"cancelReason,omitempty"`
	CancelledAt          *time.Time      `json:"cancelledAt,omitempty"`
	ConfirmedAt          *time.Time      `json:"confirmedAt,omitempty"`
	FulfilledAt          *time.Time      `json:"fulfilledAt,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
	Items                []Item          `json:"items"`
}

// CheckTotals verifies that the items add up to the subtotal and that the
// total is derived from its components.
func (o Order) CheckTotals() error {
	sum := decimal.Zero
	for _, it := range o.Items {
		if it.Quantity <= 0 {
			return ErrTotalsMismatch
		}
		if !it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2).Equal(it.TotalPrice) {
			return ErrTotalsMismatch
		}
		sum = sum.Add(it.TotalPrice)
	}
	if !sum.Equal(o.Subtotal) {
		return ErrTotalsMismatch
	}
	for _, v := range []decimal.Decimal{o.Subtotal, o.TaxAmount, o.ShippingAmount, o.DiscountAmount, o.TotalAmount} {
		if v.IsNegative() {
			return ErrTotalsMismatch
		}
	}
	if !NewTotals(o.Subtotal, o.TaxAmount, o.ShippingAmount, o.DiscountAmount).TotalAmount.Equal(o.TotalAmount) {
		return ErrTotalsMismatch
	}
	return nil
}

// Paid reports whether payment for the order has been received.
func (o Order) Paid() bool {
	return o.PaymentStatus == PaymentPaid
}

// Closed reports whether the order can no longer be settled.
func (o Order) Closed() bool {
	return o.Status == StatusCancelled || o.Status == StatusFulfilled
}

// Confirm marks the order paid and merges the provider metadata. A second
// confirmation of a paid order changes nothing and reports false.
func (o *Order) Confirm(details PaymentDetails, transactionID string, now time.Time) (bool, error) {
	if o.Paid() {
		return false, nil
	}
	if o.Status != StatusPending && o.Status != StatusAwaitingPayment {
		return false, ErrInvalidTransition
	}
	o.Status = StatusConfirmed
	o.PaymentStatus = PaymentPaid
	o.PaymentDetails = o.PaymentDetails.Merge(details)
	if transactionID != "" {
		o.PaymentTransactionID = transactionID
	}
	o.ConfirmedAt = &now
	o.UpdatedAt = now
	return true, nil
}

// Cancel moves the order to cancelled. Callers must release the reserved stock
// in the same transaction; repeated cancellation reports false.
func (o *Order) Cancel(reason string, now time.Time) (bool, error) {
	switch o.Status {
	case StatusCancelled:
		return false, nil
	case StatusFulfilled:
		return false, ErrInvalidTransition
	}
	o.Status = StatusCancelled
	o.PaymentStatus = PaymentFailed
	o.CancelReason = reason
	o.CancelledAt = &now
	o.UpdatedAt = now
	return true, nil
}

// Fulfill ships a confirmed order.
func (o *Order) Fulfill(now time.Time) (bool, error) {
	switch o.Status {
	case StatusFulfilled:
		return false, nil
	case StatusConfirmed:
	default:
		return false, ErrInvalidTransition
	}
	o.Status = StatusFulfilled
	o.FulfilledAt = &now
	o.UpdatedAt = now
	return true, nil
}

// AttachPayment records what a gateway returned when the payment was started.
func (o *Order) AttachPayment(gateway, reference string, details PaymentDetails, now time.Time) {
	o.PaymentGateway = gateway
	if reference != "" {
		o.PaymentTransactionID = reference
	}
	o.PaymentDetails = o.PaymentDetails.Merge(details)
	o.UpdatedAt = now
}
