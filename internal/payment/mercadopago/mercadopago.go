// Package mercadopago starts payments as Mercado Pago checkout preferences and
// confirms them by fetching the payment from the Mercado Pago API.
package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mercadopago/sdk-go/pkg/config"
	mppayment "github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
	"github.com/shopspring/decimal"
	"github.com/wichananm65/storefront/internal/order"
	"github.com/wichananm65/storefront/internal/payment"
	"github.com/wichananm65/storefront/internal/store"
)

type Preferences interface {
	Create(ctx context.Context, request preference.Request) (*preference.Response, error)
}

type Payments interface {
	Get(ctx context.Context, id int) (*mppayment.Response, error)
}

type ClientFactory func(accessToken string) (Preferences, Payments, error)

func defaultClient(accessToken string) (Preferences, Payments, error) {
	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, nil, err
	}
	return preference.NewClient(cfg), mppayment.NewClient(cfg), nil
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

func (g *Gateway) Method() order.PaymentMethod { return order.MethodMercadoPago }

func (g *Gateway) Settlement() payment.SettlementMode { return payment.ModeRedirect }

func (g *Gateway) Ready(s store.Store) error {
	if strings.TrimSpace(s.Gateways.MercadoPago.AccessToken) == "" {
		return &payment.ConfigError{Method: order.MethodMercadoPago, Missing: "mercadopago.accessToken"}
	}
	return nil
}

func (g *Gateway) Initiate(ctx context.Context, req payment.InitiateRequest) (payment.Outcome, error) {
	prefs, _, err := g.client(req.Store.Gateways.MercadoPago.AccessToken)
	if err != nil {
		return payment.Outcome{}, &payment.ProviderError{Method: order.MethodMercadoPago, Op: "configure", Err: err}
	}
	o := req.Order
	total, _ := o.TotalAmount.Round(2).Float64()
	res, err := prefs.Create(ctx, preference.Request{
		Items: []preference.ItemRequest{{
			ID:         o.Number,
			Title:      fmt.Sprintf("%s order %s", req.Store.Name, o.Number),
			Quantity:   1,
			UnitPrice:  total,
			CurrencyID: strings.ToUpper(o.Currency),
		}},
		Payer: &preference.PayerRequest{Name: o.CustomerName, Email: o.CustomerEmail},
		BackURLs: &preference.BackURLsRequest{
			Success: req.URLs.Return,
			Pending: req.URLs.Return,
			Failure: req.URLs.Cancel,
		},
		AutoReturn:        "approved",
		ExternalReference: o.Number,
		NotificationURL:   req.URLs.Notify,
	})
	if err != nil {
		return payment.Outcome{}, &payment.ProviderError{Method: order.MethodMercadoPago, Op: "create preference", Err: err}
	}

	url := res.InitPoint
	if req.Store.Gateways.MercadoPago.Sandbox {
		url = res.SandboxInitPoint
	}
	if url == "" {
		return payment.Outcome{}, &payment.ProviderError{Method: order.MethodMercadoPago, Op: "create preference", Err: fmt.Errorf("preference %s has no init point", res.ID)}
	}
	return payment.Outcome{
		Kind:      payment.OutcomeRedirect,
		URL:       url,
		Reference: res.ID,
		Details:   order.PaymentDetails{MercadoPago: &order.MercadoPagoDetails{PreferenceID: res.ID}},
	}, nil
}

// Confirm looks the payment up by id. The status in the return URL is
// ignored; only the API answer counts.
func (g *Gateway) Confirm(ctx context.Context, req payment.ConfirmRequest) (payment.Confirmation, error) {
	id, ok := paymentID(req)
	if !ok {
		return payment.Confirmation{Verdict: payment.VerdictPending, Reason: "no payment id yet"}, nil
	}
	_, payments, err := g.client(req.Store.Gateways.MercadoPago.AccessToken)
	if err != nil {
		return payment.Confirmation{}, &payment.ProviderError{Method: order.MethodMercadoPago, Op: "configure", Err: err}
	}
	p, err := payments.Get(ctx, id)
	if err != nil {
		return payment.Confirmation{}, &payment.ProviderError{Method: order.MethodMercadoPago, Op: "get payment", Err: err}
	}
	if p.ExternalReference != req.Order.Number {
		return payment.Confirmation{}, fmt.Errorf("%w: payment %d belongs to %q", payment.ErrVerification, id, p.ExternalReference)
	}
	if paid := decimal.NewFromFloat(p.TransactionAmount).Round(2); !paid.Equal(req.Order.TotalAmount.Round(2)) {
		return payment.Confirmation{}, fmt.Errorf("%w: payment %d amount %s does not match order total %s",
			payment.ErrVerification, id, paid.StringFixed(2), req.Order.TotalAmount.StringFixed(2))
	}

	ref := strconv.Itoa(id)
	c := payment.Confirmation{
		Reference: ref,
		Details:   order.PaymentDetails{MercadoPago: &order.MercadoPagoDetails{PaymentID: ref, Status: p.Status}},
	}
	switch p.Status {
	case "approved":
		c.Verdict = payment.VerdictApproved
	case "rejected", "cancelled", "refunded", "charged_back":
		c.Verdict = payment.VerdictDeclined
		c.Reason = "mercadopago payment " + p.Status
	default:
		c.Verdict = payment.VerdictPending
	}
	return c, nil
}

// paymentID reads the payment id from a browser return (payment_id), a
// webhook query (data.id) or a webhook JSON body.
func paymentID(req payment.ConfirmRequest) (int, bool) {
	for _, key := range []string{"payment_id", "collection_id", "data.id"} {
		if v := req.Query[key]; v != "" {
			if id, err := strconv.Atoi(v); err == nil && id > 0 {
				return id, true
			}
		}
	}
	if len(req.Body) > 0 {
		var hook struct {
			Type string `json:"type"`
			Data struct {
				ID json.Number `json:"id"`
			} `json:"data"`
		}
		if err := json.Unmarshal(req.Body, &hook); err == nil && (hook.Type == "" || hook.Type == "payment") {
			if id, err := strconv.Atoi(hook.Data.ID.String()); err == nil && id > 0 {
				return id, true
			}
		}
	}
	return 0, false
}
