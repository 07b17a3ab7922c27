// Package cod is the cash-on-delivery gateway. It settles in the store without
// any provider call.
package cod

import (
	"context"
	"fmt"

	"github.com/wichananm65/storefront/internal/order"
	"github.com/wichananm65/storefront/internal/payment"
	"github.com/wichananm65/storefront/internal/store"
)

type Gateway struct{}

func New() *Gateway {
	return &Gateway{}
}

func (g *Gateway) Method() order.PaymentMethod { return order.MethodCOD }

func (g *Gateway) Settlement() payment.SettlementMode { return payment.ModeSynchronous }

func (g *Gateway) Ready(s store.Store) error {
	if !s.Gateways.COD.Enabled {
		return &payment.ConfigError{Method: order.MethodCOD, Missing: "cod.enabled"}
	}
	return nil
}

// Initiate leaves the order pending until the courier collects payment.
func (g *Gateway) Initiate(_ context.Context, req payment.InitiateRequest) (payment.Outcome, error) {
	msg := fmt.Sprintf("Order %s placed. Please pay %s %s on delivery.", req.Order.Number, req.Order.TotalAmount.StringFixed(2), req.Order.Currency)
	return payment.Outcome{
		Kind:    payment.OutcomeSynchronous,
		URL:     req.URLs.Return,
		Message: msg,
		Details: order.PaymentDetails{COD: &order.CODDetails{Instructions: msg}},
	}, nil
}
