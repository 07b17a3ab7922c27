package checkout

import (
	"net/mail"
	"strings"

	"github.com/wichananm65/storefront/internal/order"
)

const maxNotes = 1000

func (c *Coordinator) validate(req Request) error {
	fields := map[string]string{}
	if req.Actor.StoreID <= 0 {
		fields["store_id"] = "must be positive"
	}
	if req.Actor.CustomerID == nil && strings.TrimSpace(req.Actor.SessionID) == "" {
		fields["session"] = "customer or guest session required"
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		fields["customer_name"] = "required"
	}
	if email := strings.TrimSpace(req.CustomerEmail); email == "" {
		fields["customer_email"] = "required"
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		fields["customer_email"] = "invalid email address"
	}
	checkAddress(fields, "shipping_address", req.ShippingAddress)
	if req.BillingAddress != nil {
		checkAddress(fields, "billing_address", *req.BillingAddress)
	}
	if req.PaymentMethod == "" {
		fields["payment_method"] = "required"
	} else if _, err := c.Gateways.Lookup(req.PaymentMethod); err != nil {
		fields["payment_method"] = "unsupported payment method"
	}
	if len(req.Notes) > maxNotes {
		fields["notes"] = "too long"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func checkAddress(fields map[string]string, prefix string, a order.Address) {
	if strings.TrimSpace(a.Line1) == "" {
		fields[prefix+".line1"] = "required"
	}
	if strings.TrimSpace(a.City) == "" {
		fields[prefix+".city"] = "required"
	}
	if strings.TrimSpace(a.Country) == "" {
		fields[prefix+".country"] = "required"
	}
}
