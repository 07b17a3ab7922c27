// Package stripe starts payments as hosted Stripe Checkout sessions and
// confirms them by reading the session back from Stripe.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/wichananm65/storefront/internal/order"
	"github.com/wichananm65/storefront/internal/payment"
	"github.com/wichananm65/storefront/internal/store"
)

// Sessions is the part of the Stripe checkout session client the adapter
// uses.
type Sessions interface {
	New(params *stripego.CheckoutSessionParams) (*stripego.CheckoutSession, error)
	Get(id string, params *stripego.CheckoutSessionParams) (*stripego.CheckoutSession, error)
}

// ClientFactory builds a session client for a store's secret key.
type ClientFactory func(secretKey string) Sessions

func defaultClient(secretKey string) Sessions {
	return &session.Client{B: stripego.GetBackend(stripego.APIBackend), Key: secretKey}
}

type Gateway struct {
	client ClientFactory
}

func New() *Gateway {
	return &Gateway{client: defaultClient}
}

// NewWithClient is New with a custom session client, used by tests.
func NewWithClient(f ClientFactory) *Gateway {
	return &Gateway{client: f}
}

func (g *Gateway) Method() order.PaymentMethod { return order.MethodStripe }

func (g *Gateway) Settlement() payment.SettlementMode { return payment.ModeRedirect }

func (g *Gateway) Ready(s store.Store) error {
	if strings.TrimSpace(s.Gateways.Stripe.SecretKey) == "" {
		return &payment.ConfigError{Method: order.MethodStripe, Missing: "stripe.secretKey"}
	}
	return nil
}

func (g *Gateway) Initiate(ctx context.Context, req payment.InitiateRequest) (payment.Outcome, error) {
	o := req.Order
	params := &stripego.CheckoutSessionParams{
		Mode:              stripego.String(string(stripego.CheckoutSessionModePayment)),
		SuccessURL:        stripego.String(req.URLs.Return + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripego.String(req.URLs.Cancel),
		ClientReferenceID: stripego.String(o.Number),
		LineItems: []*stripego.CheckoutSessionLineItemParams{{
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency: stripego.String(strings.ToLower(o.Currency)),
				ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripego.String(fmt.Sprintf("%s order %s", req.Store.Name, o.Number)),
				},
				UnitAmount: stripego.Int64(minorUnits(o)),
			},
			Quantity: stripego.Int64(1),
		}},
	}
	if o.CustomerEmail != "" {
		params.CustomerEmail = stripego.String(o.CustomerEmail)
	}
	params.Context = ctx
	params.AddMetadata("order_number", o.Number)
	params.AddMetadata("store_id", strconv.FormatInt(req.Store.ID, 10))

	s, err := g.client(req.Store.Gateways.Stripe.SecretKey).New(params)
	if err != nil {
		return payment.Outcome{}, &payment.ProviderError{Method: order.MethodStripe, Op: "create checkout session", Err: err}
	}
	if s.URL == "" {
		return payment.Outcome{}, &payment.ProviderError{Method: order.MethodStripe, Op: "create checkout session", Err: errors.New("session has no url")}
	}
	return payment.Outcome{
		Kind:      payment.OutcomeRedirect,
		URL:       s.URL,
		Reference: s.ID,
		Details:   order.PaymentDetails{Stripe: &order.StripeDetails{SessionID: s.ID}},
	}, nil
}

// Confirm re-fetches the session stored on the order. The session_id sent back
// by the browser is only checked against it.
func (g *Gateway) Confirm(ctx context.Context, req payment.ConfirmRequest) (payment.Confirmation, error) {
	stored := req.Order.PaymentDetails.Stripe
	if stored == nil || stored.SessionID == "" {
		return payment.Confirmation{}, fmt.Errorf("%w: order has no checkout session", payment.ErrVerification)
	}
	if sid := req.Query["session_id"]; sid != "" && sid != stored.SessionID {
		return payment.Confirmation{}, fmt.Errorf("%w: session mismatch", payment.ErrVerification)
	}

	params := &stripego.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")
	s, err := g.client(req.Store.Gateways.Stripe.SecretKey).Get(stored.SessionID, params)
	if err != nil {
		return payment.Confirmation{}, &payment.ProviderError{Method: order.MethodStripe, Op: "get checkout session", Err: err}
	}
	if s.ClientReferenceID != "" && s.ClientReferenceID != req.Order.Number {
		return payment.Confirmation{}, fmt.Errorf("%w: session belongs to %s", payment.ErrVerification, s.ClientReferenceID)
	}

	details := order.StripeDetails{SessionID: s.ID, PaymentStatus: string(s.PaymentStatus)}
	reference := s.ID
	if s.PaymentIntent != nil && s.PaymentIntent.ID != "" {
		details.PaymentIntentID = s.PaymentIntent.ID
		reference = s.PaymentIntent.ID
	}
	c := payment.Confirmation{Reference: reference, Details: order.PaymentDetails{Stripe: &details}}
	switch {
	case s.PaymentStatus == stripego.CheckoutSessionPaymentStatusPaid:
		c.Verdict = payment.VerdictApproved
	case s.Status == stripego.CheckoutSessionStatusExpired:
		c.Verdict = payment.VerdictDeclined
		c.Reason = "checkout session expired"
	default:
		c.Verdict = payment.VerdictPending
	}
	return c, nil
}

// minorUnits converts the order total to the smallest currency unit.
func minorUnits(o order.Order) int64 {
	return o.TotalAmount.Shift(2).Round(0).IntPart()
}
