package cod

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/storefront/internal/order"
	"github.com/wichananm65/storefront/internal/payment"
	"github.com/wichananm65/storefront/internal/store"
)

func TestReady(t *testing.T) {
	g := New()
	var ce *payment.ConfigError
	if err := g.Ready(store.Store{}); !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError when cod is disabled, got %v", err)
	}
	s := store.Store{Gateways: store.Gateways{COD: store.CODSettings{Enabled: true}}}
	if err := g.Ready(s); err != nil {
		t.Fatalf("expected ready, got %v", err)
	}
}

func TestInitiate_Synchronous(t *testing.T) {
	o := order.Order{Number: "ORD-1", Currency: "USD"}
	o.TotalAmount = decimal.NewFromInt(60)
	out, err := New().Initiate(context.Background(), payment.InitiateRequest{Order: o})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if out.Kind != payment.OutcomeSynchronous || !strings.Contains(out.Message, "60.00 USD") {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Details.COD == nil {
		t.Fatalf("expected cod details")
	}
	if _, ok := any(New()).(payment.Confirmer); ok {
		t.Fatalf("cod must not need a confirmation step")
	}
}
