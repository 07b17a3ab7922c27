// Package payfast builds signed PayFast payment forms and verifies PayFast's
// server-to-server payment notifications (ITN).
package payfast

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/storefront/internal/order"
	"github.com/wichananm65/storefront/internal/payment"
	"github.com/wichananm65/storefront/internal/store"
)

const (
	liveHost    = "https://www.payfast.co.za"
	sandboxHost = "https://sandbox.payfast.co.za"
)

// Doer sends the ITN validation request back to PayFast.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Gateway struct {
	http Doer
}

func New(client Doer) *Gateway {
	if client == nil {
		client = http.DefaultClient
	}
	return &Gateway{http: client}
}

func (g *Gateway) Method() order.PaymentMethod { return order.MethodPayFast }

// Settlement is deferred: an order is only paid once a signed ITN arrives.
func (g *Gateway) Settlement() payment.SettlementMode { return payment.ModeDeferred }

func (g *Gateway) Ready(s store.Store) error {
	switch {
	case strings.TrimSpace(s.Gateways.PayFast.MerchantID) == "":
		return &payment.ConfigError{Method: order.MethodPayFast, Missing: "payfast.merchantId"}
	case strings.TrimSpace(s.Gateways.PayFast.MerchantKey) == "":
		return &payment.ConfigError{Method: order.MethodPayFast, Missing: "payfast.merchantKey"}
	}
	return nil
}

func host(s store.PayFastSettings) string {
	if s.Sandbox {
		return sandboxHost
	}
	return liveHost
}

// Initiate returns the fields of an auto-submitting form in the order PayFast
// signs them.
func (g *Gateway) Initiate(_ context.Context, req payment.InitiateRequest) (payment.Outcome, error) {
	cfg := req.Store.Gateways.PayFast
	o := req.Order
	first, last := splitName(o.CustomerName)
	candidates := []payment.Field{
		{Name: "merchant_id", Value: cfg.MerchantID},
		{Name: "merchant_key", Value: cfg.MerchantKey},
		{Name: "return_url", Value: req.URLs.Return},
		{Name: "cancel_url", Value: req.URLs.Cancel},
		{Name: "notify_url", Value: req.URLs.Notify},
		{Name: "name_first", Value: first},
		{Name: "name_last", Value: last},
		{Name: "email_address", Value: o.CustomerEmail},
		{Name: "m_payment_id", Value: o.Number},
		{Name: "amount", Value: o.TotalAmount.StringFixed(2)},
		{Name: "item_name", Value: fmt.Sprintf("%s order %s", req.Store.Name, o.Number)},
	}
	fields := make([]payment.Field, 0, len(candidates)+1)
	for _, f := range candidates {
		if v := strings.TrimSpace(f.Value); v != "" {
			fields = append(fields, payment.Field{Name: f.Name, Value: v})
		}
	}
	fields = append(fields, payment.Field{Name: "signature", Value: Signature(fields, cfg.Passphrase)})

	return payment.Outcome{
		Kind:      payment.OutcomeFormPost,
		URL:       host(cfg) + "/eng/process",
		Fields:    fields,
		Reference: o.Number,
		Details:   order.PaymentDetails{PayFast: &order.PayFastDetails{PaymentStatus: "AWAITING"}},
	}, nil
}

// Signature is the lowercase MD5 of the url-encoded key=value pairs joined by
// '&', with the passphrase appended when the merchant set one.
func Signature(fields []payment.Field, passphrase string) string {
	sum := md5.Sum([]byte(paramString(fields, passphrase)))
	return hex.EncodeToString(sum[:])
}

func paramString(fields []payment.Field, passphrase string) string {
	var b strings.Builder
	for _, f := range fields {
		if f.Name == "signature" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(strings.TrimSpace(f.Value)))
	}
	if passphrase != "" {
		b.WriteString("&passphrase=")
		b.WriteString(url.QueryEscape(strings.TrimSpace(passphrase)))
	}
	return b.String()
}

// Confirm verifies an ITN: signature, merchant, order reference and amount,
// then asks PayFast to validate the notification. Browser returns are never
// accepted.
func (g *Gateway) Confirm(ctx context.Context, req payment.ConfirmRequest) (payment.Confirmation, error) {
	if req.Source != payment.SourceNotify {
		return payment.Confirmation{Verdict: payment.VerdictPending, Reason: "awaiting payfast notification"}, nil
	}
	cfg := req.Store.Gateways.PayFast
	fields, err := ParseOrdered(string(req.Body))
	if err != nil {
		return payment.Confirmation{}, fmt.Errorf("%w: %v", payment.ErrVerification, err)
	}
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		values[f.Name] = f.Value
	}

	if values["signature"] == "" || !strings.EqualFold(values["signature"], Signature(fields, cfg.Passphrase)) {
		return payment.Confirmation{}, fmt.Errorf("%w: signature mismatch", payment.ErrVerification)
	}
	if values["merchant_id"] != cfg.MerchantID {
		return payment.Confirmation{}, fmt.Errorf("%w: merchant mismatch", payment.ErrVerification)
	}
	if values["m_payment_id"] != req.Order.Number {
		return payment.Confirmation{}, fmt.Errorf("%w: notification is for %q", payment.ErrVerification, values["m_payment_id"])
	}
	gross, err := decimal.NewFromString(values["amount_gross"])
	if err != nil || !gross.Round(2).Equal(req.Order.TotalAmount.Round(2)) {
		return payment.Confirmation{}, fmt.Errorf("%w: amount %q does not match order total", payment.ErrVerification, values["amount_gross"])
	}
	if err := g.validate(ctx, cfg, fields); err != nil {
		return payment.Confirmation{}, err
	}

	details := order.PayFastDetails{
		PaymentID:     values["pf_payment_id"],
		PaymentStatus: values["payment_status"],
		AmountGross:   values["amount_gross"],
	}
	c := payment.Confirmation{Reference: values["pf_payment_id"], Details: order.PaymentDetails{PayFast: &details}}
	switch values["payment_status"] {
	case "COMPLETE":
		c.Verdict = payment.VerdictApproved
	case "CANCELLED", "FAILED":
		c.Verdict = payment.VerdictDeclined
		c.Reason = "payfast payment " + strings.ToLower(values["payment_status"])
	default:
		c.Verdict = payment.VerdictPending
	}
	return c, nil
}

// validate posts the notification back to PayFast, which answers VALID for
// notifications it sent.
func (g *Gateway) validate(ctx context.Context, cfg store.PayFastSettings, fields []payment.Field) error {
	body := paramString(fields, "")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host(cfg)+"/eng/query/validate", strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := g.http.Do(req)
	if err != nil {
		return &payment.ProviderError{Method: order.MethodPayFast, Op: "validate notification", Err: err}
	}
	defer res.Body.Close()
	answer, err := io.ReadAll(io.LimitReader(res.Body, 1024))
	if err != nil {
		return &payment.ProviderError{Method: order.MethodPayFast, Op: "validate notification", Err: err}
	}
	if strings.TrimSpace(string(answer)) != "VALID" {
		return fmt.Errorf("%w: payfast did not validate the notification", payment.ErrVerification)
	}
	return nil
}

// ParseOrdered decodes a form body keeping the field order, which the ITN
// signature depends on.
func ParseOrdered(body string) ([]payment.Field, error) {
	fields := make([]payment.Field, 0)
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		name, err := url.QueryUnescape(k)
		if err != nil {
			return nil, err
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, err
		}
		fields = append(fields, payment.Field{Name: name, Value: value})
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty notification")
	}
	return fields, nil
}

func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	first, last, _ := strings.Cut(full, " ")
	return first, strings.TrimSpace(last)
}
