// Package paypal starts payments as PayPal orders and captures them
// server-side when the customer returns from approval.
package paypal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	paypalsdk "github.com/plutov/paypal/v4"
	"github.com/wichananm65/storefront/internal/order"
	"github.com/wichananm65/storefront/internal/payment"
	"github.com/wichananm65/storefront/internal/store"
)

const statusCompleted = "COMPLETED"

// API is the part of the PayPal client the adapter uses.
type API interface {
	GetAccessToken(ctx context.Context) (*paypalsdk.TokenResponse, error)
	CreateOrder(ctx context.Context, intent string, units []paypalsdk.PurchaseUnitRequest, payer *paypalsdk.CreateOrderPayer, app *paypalsdk.ApplicationContext) (*paypalsdk.Order, error)
	CaptureOrder(ctx context.Context, orderID string, req paypalsdk.CaptureOrderRequest) (*paypalsdk.CaptureOrderResponse, error)
	GetOrder(ctx context.Context, orderID string) (*paypalsdk.Order, error)
}

type ClientFactory func(settings store.PayPalSettings) (API, error)

func defaultClient(s store.PayPalSettings) (API, error) {
	base := paypalsdk.APIBaseLive
	if s.Sandbox {
		base = paypalsdk.APIBaseSandBox
	}
	c, err := paypalsdk.NewClient(s.ClientID, s.ClientSecret, base)
	if err != nil {
		return nil, err
	}
	return c, nil
}

type Gateway struct {
	client ClientFactory
}

func New() *Gateway {
	return &Gateway{client: defaultClient}
}

func NewWithClient(f ClientFactory) *Gateway {
	return &Gateway{client: f}
}

func (g *Gateway) Method() order.PaymentMethod { return order.MethodPayPal }

func (g *Gateway) Settlement() payment.SettlementMode { return payment.ModeRedirect }

func (g *Gateway) Ready(s store.Store) error {
	switch {
	case strings.TrimSpace(s.Gateways.PayPal.ClientID) == "":
		return &payment.ConfigError{Method: order.MethodPayPal, Missing: "paypal.clientId"}
	case strings.TrimSpace(s.Gateways.PayPal.ClientSecret) == "":
		return &payment.ConfigError{Method: order.MethodPayPal, Missing: "paypal.clientSecret"}
	}
	return nil
}

func (g *Gateway) connect(ctx context.Context, s store.Store) (API, error) {
	c, err := g.client(s.Gateways.PayPal)
	if err != nil {
		return nil, &payment.ProviderError{Method: order.MethodPayPal, Op: "create client", Err: err}
	}
	if _, err := c.GetAccessToken(ctx); err != nil {
		return nil, &payment.ProviderError{Method: order.MethodPayPal, Op: "oauth token", Err: err}
	}
	return c, nil
}

func (g *Gateway) Initiate(ctx context.Context, req payment.InitiateRequest) (payment.Outcome, error) {
	c, err := g.connect(ctx, req.Store)
	if err != nil {
		return payment.Outcome{}, err
	}
	o := req.Order
	created, err := c.CreateOrder(ctx, paypalsdk.OrderIntentCapture, []paypalsdk.PurchaseUnitRequest{{
		ReferenceID: o.Number,
		InvoiceID:   o.Number,
		Description: fmt.Sprintf("%s order %s", req.Store.Name, o.Number),
		Amount: &paypalsdk.PurchaseUnitAmount{
			Currency: strings.ToUpper(o.Currency),
			Value:    o.TotalAmount.StringFixed(2),
		},
	}}, nil, &paypalsdk.ApplicationContext{
		BrandName:  req.Store.Name,
		UserAction: "PAY_NOW",
		ReturnURL:  req.URLs.Return,
		CancelURL:  req.URLs.Cancel,
	})
	if err != nil {
		return payment.Outcome{}, &payment.ProviderError{Method: order.MethodPayPal, Op: "create order", Err: err}
	}

	approve := ""
	for _, l := range created.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			approve = l.Href
			break
		}
	}
	if approve == "" {
		return payment.Outcome{}, &payment.ProviderError{Method: order.MethodPayPal, Op: "create order", Err: errors.New("no approval link")}
	}
	return payment.Outcome{
		Kind:      payment.OutcomeRedirect,
		URL:       approve,
		Reference: created.ID,
		Details:   order.PaymentDetails{PayPal: &order.PayPalDetails{OrderID: created.ID, Status: created.Status}},
	}, nil
}

// Confirm captures the approved PayPal order. The return visit alone is not
// accepted as proof of payment.
func (g *Gateway) Confirm(ctx context.Context, req payment.ConfirmRequest) (payment.Confirmation, error) {
	stored := req.Order.PaymentDetails.PayPal
	if stored == nil || stored.OrderID == "" {
		return payment.Confirmation{}, fmt.Errorf("%w: order has no paypal order id", payment.ErrVerification)
	}
	if token := req.Query["token"]; token != stored.OrderID {
		return payment.Confirmation{}, fmt.Errorf("%w: token does not match the paypal order", payment.ErrVerification)
	}

	c, err := g.connect(ctx, req.Store)
	if err != nil {
		return payment.Confirmation{}, err
	}
	details := order.PayPalDetails{OrderID: stored.OrderID, PayerID: req.Query["PayerID"]}

	captured, err := c.CaptureOrder(ctx, stored.OrderID, paypalsdk.CaptureOrderRequest{})
	if err != nil {
		// a repeated capture fails; the order status tells whether an earlier
		// one went through
		current, getErr := c.GetOrder(ctx, stored.OrderID)
		if getErr != nil || current.Status != statusCompleted {
			return payment.Confirmation{}, &payment.ProviderError{Method: order.MethodPayPal, Op: "capture order", Err: err}
		}
		details.Status = current.Status
		return payment.Confirmation{Verdict: payment.VerdictApproved, Reference: current.ID, Details: order.PaymentDetails{PayPal: &details}}, nil
	}

	details.Status = captured.Status
	details.CaptureID = captureID(captured)
	reference := details.CaptureID
	if reference == "" {
		reference = captured.ID
	}
	conf := payment.Confirmation{Reference: reference, Details: order.PaymentDetails{PayPal: &details}}
	switch captured.Status {
	case statusCompleted:
		conf.Verdict = payment.VerdictApproved
	case "VOIDED", "DECLINED":
		conf.Verdict = payment.VerdictDeclined
		conf.Reason = "paypal capture " + strings.ToLower(captured.Status)
	default:
		conf.Verdict = payment.VerdictPending
	}
	return conf, nil
}

// captureID returns the id of the first capture in the response. The
// response id itself is the PayPal order id.
func captureID(resp *paypalsdk.CaptureOrderResponse) string {
	for _, u := range resp.PurchaseUnits {
		if u.Payments == nil {
			continue
		}
		for _, c := range u.Payments.Captures {
			if c.ID != "" {
				return c.ID
			}
		}
	}
	return ""
}
