// Package payment defines the gateway adapters used by checkout and the
// registry that maps a payment method to its adapter.
//
// Every adapter can start a payment (Initiate). Gateways whose payment
// completes off-site also implement Confirmer, which verifies the result with
// the provider before an order is marked paid.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/wichananm65/storefront/internal/order"
	"github.com/wichananm65/storefront/internal/store"
)

var ErrUnknownMethod = errors.New("payment method is not supported")

// ErrVerification marks a callback whose payload does not match the order or
// fails signature checks.
var ErrVerification = errors.New("payment callback failed verification")

// SettlementMode is when and how a gateway's payment becomes final.
type SettlementMode string

const (
	// ModeSynchronous settles without leaving the store (cash on delivery).
	ModeSynchronous SettlementMode = "synchronous"
	// ModeRedirect sends the customer to the provider and confirms on return.
	ModeRedirect SettlementMode = "redirect"
	// ModeDeferred waits for a signed server-to-server notification.
	ModeDeferred SettlementMode = "deferred"
)

type OutcomeKind string

const (
	OutcomeRedirect    OutcomeKind = "redirect"
	OutcomeSynchronous OutcomeKind = "synchronous"
	OutcomeFormPost    OutcomeKind = "form_post"
)

// Field is one input of an auto-submitting form. Order matters for signed
// payloads, so fields are kept as a slice.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Outcome is what Initiate hands back to the customer.
type Outcome struct {
	Kind      OutcomeKind          `json:"kind"`
	URL       string               `json:"url,omitempty"`
	Message   string               `json:"message,omitempty"`
	Fields    []Field              `json:"fields,omitempty"`
	Reference string               `json:"reference,omitempty"`
	Details   order.PaymentDetails `json:"-"`
}

type Verdict string

const (
	VerdictApproved Verdict = "approved"
	VerdictPending  Verdict = "pending"
	VerdictDeclined Verdict = "declined"
)

// Confirmation is the provider's verified answer about an order's payment.
type Confirmation struct {
	Verdict   Verdict
	Reference string
	Details   order.PaymentDetails
	Reason    string
}

// URLs are the absolute store endpoints a provider sends the customer or its
// notifications to.
type URLs struct {
	Return string
	Cancel string
	Notify string
}

type InitiateRequest struct {
	Store store.Store
	Order order.Order
	URLs  URLs
}

// Source tells an adapter which endpoint delivered a callback.
type Source string

const (
	SourceReturn Source = "return"
	SourceNotify Source = "notify"
)

type ConfirmRequest struct {
	Store  store.Store
	Order  order.Order
	Source Source
	Query  map[string]string
	// Body is the raw request body, kept as received for signature checks.
	Body []byte
}

type Gateway interface {
	Method() order.PaymentMethod
	Settlement() SettlementMode
	// Ready reports a *ConfigError when the store lacks credentials for the
	// gateway. It makes no network calls.
	Ready(s store.Store) error
	Initiate(ctx context.Context, req InitiateRequest) (Outcome, error)
}

type Confirmer interface {
	Confirm(ctx context.Context, req ConfirmRequest) (Confirmation, error)
}

// ConfigError reports missing gateway settings for a store.
type ConfigError struct {
	Method  order.PaymentMethod
	Missing string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("payment: %s is not configured for this store (missing %s)", e.Method, e.Missing)
}

// ProviderError wraps a failed call to a payment provider.
type ProviderError struct {
	Method order.PaymentMethod
	Op     string
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment: %s %s: %v", e.Method, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Registry maps payment methods to their adapters.
type Registry struct {
	gateways map[order.PaymentMethod]Gateway
	methods  []order.PaymentMethod
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[order.PaymentMethod]Gateway, len(gateways))}
	for _, g := range gateways {
		if _, dup := r.gateways[g.Method()]; !dup {
			r.methods = append(r.methods, g.Method())
		}
		r.gateways[g.Method()] = g
	}
	return r
}

func (r *Registry) Lookup(method order.PaymentMethod) (Gateway, error) {
	g, ok := r.gateways[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	return g, nil
}

// Methods lists the registered methods in registration order.
func (r *Registry) Methods() []order.PaymentMethod {
	return append([]order.PaymentMethod(nil), r.methods...)
}
