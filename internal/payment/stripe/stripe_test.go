package stripe

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/wichananm65/storefront/internal/order"
	"github.com/wichananm65/storefront/internal/payment"
	"github.com/wichananm65/storefront/internal/store"
)

type fakeSessions struct {
	key     string
	created *stripego.CheckoutSessionParams
	newErr  error
	session *stripego.CheckoutSession
	gotID   string
}

func (f *fakeSessions) New(p *stripego.CheckoutSessionParams) (*stripego.CheckoutSession, error) {
	f.created = p
	if f.newErr != nil {
		return nil, f.newErr
	}
	return &stripego.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func (f *fakeSessions) Get(id string, _ *stripego.CheckoutSessionParams) (*stripego.CheckoutSession, error) {
	f.gotID = id
	return f.session, nil
}

var testStore = store.Store{ID: 3, Name: "Pets", Gateways: store.Gateways{Stripe: store.StripeSettings{SecretKey: "sk_test"}}}

func testOrder() order.Order {
	o := order.Order{Number: "ORD-1", Currency: "USD", CustomerEmail: "a@b.c"}
	o.TotalAmount = decimal.RequireFromString("60.05")
	return o
}

func gateway(f *fakeSessions) *Gateway {
	return NewWithClient(func(key string) Sessions {
		f.key = key
		return f
	})
}

func TestReady(t *testing.T) {
	var ce *payment.ConfigError
	if err := New().Ready(store.Store{}); !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if err := New().Ready(testStore); err != nil {
		t.Fatalf("expected ready, got %v", err)
	}
}

func TestInitiate_CreatesSession(t *testing.T) {
	f := &fakeSessions{}
	out, err := gateway(f).Initiate(context.Background(), payment.InitiateRequest{
		Store: testStore,
		Order: testOrder(),
		URLs:  payment.URLs{Return: "https://shop/return", Cancel: "https://shop/cancel"},
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if out.Kind != payment.OutcomeRedirect || out.URL == "" || out.Details.Stripe.SessionID != "cs_test_1" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if f.key != "sk_test" {
		t.Fatalf("expected store key, got %q", f.key)
	}
	li := f.created.LineItems[0]
	if *li.PriceData.UnitAmount != 6005 || *li.PriceData.Currency != "usd" || *f.created.ClientReferenceID != "ORD-1" {
		t.Fatalf("unexpected session params: amount %d currency %s", *li.PriceData.UnitAmount, *li.PriceData.Currency)
	}
	if f.created.Metadata["order_number"] != "ORD-1" {
		t.Fatalf("expected order number metadata")
	}
}

func TestInitiate_ProviderFailure(t *testing.T) {
	f := &fakeSessions{newErr: errors.New("Invalid API Key provided")}
	_, err := gateway(f).Initiate(context.Background(), payment.InitiateRequest{Store: testStore, Order: testOrder()})
	var pe *payment.ProviderError
	if !errors.As(err, &pe) || pe.Method != order.MethodStripe {
		t.Fatalf("expected ProviderError, got %v", err)
	}
}

func TestConfirm(t *testing.T) {
	o := testOrder()
	o.PaymentDetails = order.PaymentDetails{Stripe: &order.StripeDetails{SessionID: "cs_test_1"}}

	tests := []struct {
		name    string
		session stripego.CheckoutSession
		want    payment.Verdict
	}{
		{"paid", stripego.CheckoutSession{ID: "cs_test_1", ClientReferenceID: "ORD-1", PaymentStatus: stripego.CheckoutSessionPaymentStatusPaid, PaymentIntent: &stripego.PaymentIntent{ID: "pi_1"}}, payment.VerdictApproved},
		{"unpaid", stripego.CheckoutSession{ID: "cs_test_1", ClientReferenceID: "ORD-1", PaymentStatus: stripego.CheckoutSessionPaymentStatusUnpaid, Status: stripego.CheckoutSessionStatusOpen}, payment.VerdictPending},
		{"expired", stripego.CheckoutSession{ID: "cs_test_1", ClientReferenceID: "ORD-1", PaymentStatus: stripego.CheckoutSessionPaymentStatusUnpaid, Status: stripego.CheckoutSessionStatusExpired}, payment.VerdictDeclined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.session
			f := &fakeSessions{session: &s}
			c, err := gateway(f).Confirm(context.Background(), payment.ConfirmRequest{Store: testStore, Order: o, Query: map[string]string{"session_id": "cs_test_1"}})
			if err != nil {
				t.Fatalf("confirm: %v", err)
			}
			if c.Verdict != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, c.Verdict)
			}
			if f.gotID != "cs_test_1" {
				t.Fatalf("expected the stored session to be fetched, got %q", f.gotID)
			}
		})
	}
}

func TestConfirm_RejectsForeignSession(t *testing.T) {
	o := testOrder()
	o.PaymentDetails = order.PaymentDetails{Stripe: &order.StripeDetails{SessionID: "cs_test_1"}}
	f := &fakeSessions{session: &stripego.CheckoutSession{ID: "cs_test_1", PaymentStatus: stripego.CheckoutSessionPaymentStatusPaid}}

	_, err := gateway(f).Confirm(context.Background(), payment.ConfirmRequest{Store: testStore, Order: o, Query: map[string]string{"session_id": "cs_other"}})
	if !errors.Is(err, payment.ErrVerification) {
		t.Fatalf("expected ErrVerification, got %v", err)
	}
	if f.gotID != "" {
		t.Fatalf("no provider call expected for a mismatched session")
	}

	f.session.ClientReferenceID = "ORD-OTHER"
	_, err = gateway(f).Confirm(context.Background(), payment.ConfirmRequest{Store: testStore, Order: o})
	if !errors.Is(err, payment.ErrVerification) {
		t.Fatalf("expected ErrVerification for another order's session, got %v", err)
	}
}
