// Package checkout coordinates order creation and payment settlement.
//
// Checkout prices the cart, creates the order and reserves its stock in one
// transaction, then starts the payment after commit. Settle applies verified
// gateway callbacks. Every failure after the order exists is compensated by
// Cancel, which releases the stock in the same transaction as the status
// change.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/wichananm65/storefront/internal/audit"
	"github.com/wichananm65/storefront/internal/cart"
	"github.com/wichananm65/storefront/internal/inventory"
	"github.com/wichananm65/storefront/internal/metrics"
	"github.com/wichananm65/storefront/internal/order"
	"github.com/wichananm65/storefront/internal/payment"
	"github.com/wichananm65/storefront/internal/snapshot"
	"github.com/wichananm65/storefront/internal/store"
	"go.uber.org/zap"
)

// ErrOrderClosed means the order was cancelled and cannot be settled.
var ErrOrderClosed = errors.New("order is closed")

// ValidationError lists the request fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid checkout request: " + strings.Join(parts, "; ")
}

// GatewayError is returned when a payment could not be started or verified
// with the provider. The order, if one was created, has been cancelled.
type GatewayError struct {
	Method      order.PaymentMethod
	OrderNumber string
	Err         error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("checkout: %s payment for %s failed: %v", e.Method, e.OrderNumber, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Actor is the explicit identity a checkout runs for.
type Actor struct {
	StoreID    int64
	CustomerID *int64
	SessionID  string
}

func (a Actor) owner() cart.Owner {
	return cart.Owner{StoreID: a.StoreID, CustomerID: a.CustomerID, SessionID: a.SessionID}
}

type Request struct {
	Actor            Actor
	CustomerName     string
	CustomerEmail    string
	CustomerPhone    string
	ShippingAddress  order.Address
	BillingAddress   *order.Address
	PaymentMethod    order.PaymentMethod
	ShippingMethodID *int64
	CouponCode       string
	Notes            string
}

type Result struct {
	Order   order.Order     `json:"order"`
	Outcome payment.Outcome `json:"outcome"`
	// AlreadySettled is set when a callback arrived for an order that was
	// already paid.
	AlreadySettled bool            `json:"alreadySettled,omitempty"`
	Verdict        payment.Verdict `json:"verdict,omitempty"`
}

// SettleRequest is a gateway return or notify call.
type SettleRequest struct {
	StoreSlug   string
	OrderNumber string
	Method      order.PaymentMethod
	Source      payment.Source
	Query       map[string]string
	Body        []byte
}

type Stores interface {
	GetByID(ctx context.Context, id int64) (store.Store, error)
	GetBySlug(ctx context.Context, slug string) (store.Store, error)
}

type Snapshots interface {
	Resolve(ctx context.Context, req snapshot.Request) (snapshot.Snapshot, error)
}

type Numbers interface {
	Next(ctx context.Context) (string, error)
}

type Ledger interface {
	Reserve(ctx context.Context, lines []inventory.Line) error
	Release(ctx context.Context, lines []inventory.Line) error
}

type Coupons interface {
	IncrementUsage(ctx context.Context, storeID int64, code string) error
	ReleaseUsage(ctx context.Context, storeID int64, code string) error
}

type Carts interface {
	Clear(ctx context.Context, owner cart.Owner) error
}

type Dependencies struct {
	Stores    Stores
	Orders    order.Repository
	Numbers   Numbers
	Snapshots Snapshots
	Ledger    Ledger
	Coupons   Coupons
	Carts     Carts
	Gateways  *payment.Registry
	Tx        order.TxManager
	Log       *zap.Logger
	Metrics   *metrics.Metrics
	Audit     audit.Recorder
}

type Config struct {
	// PublicBaseURL is the absolute origin used for gateway return and
	// notify URLs.
	PublicBaseURL  string
	GatewayTimeout time.Duration
}

type Coordinator struct {
	Dependencies
	cfg Config
	now func() time.Time
}

func NewCoordinator(deps Dependencies, cfg Config) *Coordinator {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Audit == nil {
		deps.Audit = audit.Nop{}
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 15 * time.Second
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &Coordinator{Dependencies: deps, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// Checkout turns the actor's cart into an order and starts its payment.
func (c *Coordinator) Checkout(ctx context.Context, req Request) (Result, error) {
	if err := c.validate(req); err != nil {
		return Result{}, err
	}
	method := string(req.PaymentMethod)

	s, err := c.Stores.GetByID(ctx, req.Actor.StoreID)
	if err != nil {
		return Result{}, err
	}
	gw, err := c.Gateways.Lookup(req.PaymentMethod)
	if err != nil {
		return Result{}, err
	}
	if err := gw.Ready(s); err != nil {
		c.Metrics.Checkout(method, "not_configured")
		c.Log.Warn("gateway not configured", zap.Int64("store_id", s.ID), zap.String("payment_method", method), zap.Error(err))
		return Result{}, err
	}

	snap, err := c.Snapshots.Resolve(ctx, snapshot.Request{
		Store:            s,
		Owner:            req.Actor.owner(),
		CouponCode:       req.CouponCode,
		ShippingMethodID: req.ShippingMethodID,
	})
	if err != nil {
		c.Metrics.Checkout(method, "rejected")
		return Result{}, err
	}
	number, err := c.Numbers.Next(ctx)
	if err != nil {
		return Result{}, err
	}

	o := c.newOrder(s, req, snap, number, gw.Settlement())
	err = c.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := c.Orders.Create(ctx, &o); err != nil {
			return err
		}
		if err := c.Ledger.Reserve(ctx, inventory.LinesFromItems(o.Items)); err != nil {
			return err
		}
		if o.CouponCode != "" {
			if err := c.Coupons.IncrementUsage(ctx, s.ID, o.CouponCode); err != nil {
				return fmt.Errorf("%w: %w", snapshot.ErrInvalidCoupon, err)
			}
		}
		return nil
	})
	if err != nil {
		c.Metrics.Checkout(method, "rejected")
		return Result{}, err
	}
	log := c.Log.With(zap.String("order_number", o.Number), zap.String("payment_method", method), zap.Int64("store_id", s.ID))

	initCtx, cancel := context.WithTimeout(ctx, c.cfg.GatewayTimeout)
	outcome, err := gw.Initiate(initCtx, payment.InitiateRequest{Store: s, Order: o, URLs: c.urls(s, o)})
	cancel()
	if err != nil {
		log.Error("payment initiation failed", zap.Error(err))
		c.record(ctx, o, audit.ActionFailed, map[string]any{"error": err.Error()})
		return c.compensate(ctx, o, err, log)
	}

	attached, err := c.attach(ctx, o.ID, gw, outcome)
	if err != nil {
		log.Error("storing payment reference failed", zap.Error(err))
		return c.compensate(ctx, o, err, log)
	}
	o = attached

	if err := c.Carts.Clear(ctx, req.Actor.owner()); err != nil {
		log.Warn("clearing cart after checkout failed", zap.Error(err))
	}
	c.record(ctx, o, audit.ActionInitiated, map[string]any{"outcome": string(outcome.Kind), "reference": outcome.Reference})
	c.Metrics.Checkout(method, "initiated")
	log.Info("checkout completed", zap.String("outcome", string(outcome.Kind)), zap.String("total", o.TotalAmount.StringFixed(2)))
	return Result{Order: o, Outcome: outcome}, nil
}

// compensate cancels an order whose payment could not be started. It runs
// detached from the request context so a disconnecting client cannot leave
// the stock reserved.
func (c *Coordinator) compensate(ctx context.Context, o order.Order, cause error, log *zap.Logger) (Result, error) {
	cancelled, err := c.Cancel(context.WithoutCancel(ctx), o.ID, "payment initiation failed")
	if err != nil {
		log.Error("compensating cancellation failed", zap.Error(err))
		cancelled = o
	}
	c.Metrics.Checkout(string(o.PaymentMethod), "gateway_failed")
	return Result{Order: cancelled}, &GatewayError{Method: o.PaymentMethod, OrderNumber: o.Number, Err: cause}
}

func (c *Coordinator) attach(ctx context.Context, id int64, gw payment.Gateway, outcome payment.Outcome) (order.Order, error) {
	var out order.Order
	err := c.Tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := c.Orders.Lock(ctx, id)
		if err != nil {
			return err
		}
		o.AttachPayment(string(gw.Method()), outcome.Reference, outcome.Details, c.now())
		if err := c.Orders.UpdatePayment(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	return out, err
}

// Cancel cancels the order and releases its stock and coupon redemption in
// one transaction. Cancelling a cancelled order changes nothing.
func (c *Coordinator) Cancel(ctx context.Context, orderID int64, reason string) (order.Order, error) {
	var out order.Order
	var changed bool
	err := c.Tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := c.Orders.Lock(ctx, orderID)
		if err != nil {
			return err
		}
		changed, err = o.Cancel(reason, c.now())
		if err != nil {
			return err
		}
		out = o
		if !changed {
			return nil
		}
		if err := c.Ledger.Release(ctx, inventory.LinesFromItems(o.Items)); err != nil {
			return err
		}
		if o.CouponCode != "" {
			if err := c.Coupons.ReleaseUsage(ctx, o.StoreID, o.CouponCode); err != nil {
				return err
			}
		}
		return c.Orders.UpdatePayment(ctx, o)
	})
	if err != nil {
		return order.Order{}, err
	}
	if changed {
		label, _, _ := strings.Cut(reason, ":")
		c.Metrics.Compensation(string(out.PaymentMethod), label)
		c.record(ctx, out, audit.ActionCancelled, map[string]any{"reason": reason})
		c.Log.Info("order cancelled", zap.String("order_number", out.Number), zap.String("reason", reason))
	}
	return out, nil
}

// Settle applies a gateway return or notification to the order. Duplicate
// deliveries for a paid order are no-ops.
func (c *Coordinator) Settle(ctx context.Context, req SettleRequest) (Result, error) {
	s, o, err := c.find(ctx, req.StoreSlug, req.OrderNumber, req.Method)
	if err != nil {
		return Result{}, err
	}
	log := c.Log.With(zap.String("order_number", o.Number), zap.String("payment_method", string(o.PaymentMethod)), zap.String("source", string(req.Source)))
	c.record(ctx, o, audit.ActionCallback, map[string]any{"source": string(req.Source)})

	if o.Paid() {
		return c.duplicate(ctx, o, log), nil
	}
	if o.Status == order.StatusCancelled {
		return Result{Order: o}, ErrOrderClosed
	}
	gw, err := c.Gateways.Lookup(o.PaymentMethod)
	if err != nil {
		return Result{}, err
	}
	confirmer, ok := gw.(payment.Confirmer)
	if !ok {
		return Result{Order: o, Verdict: payment.VerdictPending}, nil
	}

	confirmCtx, cancel := context.WithTimeout(ctx, c.cfg.GatewayTimeout)
	conf, err := confirmer.Confirm(confirmCtx, payment.ConfirmRequest{Store: s, Order: o, Source: req.Source, Query: req.Query, Body: req.Body})
	cancel()
	if err != nil {
		// a concurrent delivery may have settled the order meanwhile
		if cur, getErr := c.Orders.GetByID(ctx, o.ID); getErr == nil && cur.Paid() {
			return c.duplicate(ctx, cur, log), nil
		}
		log.Warn("payment confirmation failed", zap.Error(err))
		c.Metrics.Settlement(string(o.PaymentMethod), "error")
		if errors.Is(err, payment.ErrVerification) {
			return Result{Order: o}, err
		}
		return Result{Order: o}, &GatewayError{Method: o.PaymentMethod, OrderNumber: o.Number, Err: err}
	}
	c.Metrics.Settlement(string(o.PaymentMethod), string(conf.Verdict))

	switch conf.Verdict {
	case payment.VerdictApproved:
		return c.confirm(ctx, o, conf, log)
	case payment.VerdictDeclined:
		c.record(ctx, o, audit.ActionDeclined, map[string]any{"reason": conf.Reason})
		cancelled, err := c.Cancel(ctx, o.ID, "payment declined: "+conf.Reason)
		if err != nil {
			return Result{}, err
		}
		return Result{Order: cancelled, Verdict: payment.VerdictDeclined}, nil
	default:
		return Result{Order: o, Verdict: payment.VerdictPending}, nil
	}
}

func (c *Coordinator) confirm(ctx context.Context, o order.Order, conf payment.Confirmation, log *zap.Logger) (Result, error) {
	var out order.Order
	var changed bool
	err := c.Tx.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := c.Orders.Lock(ctx, o.ID)
		if err != nil {
			return err
		}
		changed, err = locked.Confirm(conf.Details, conf.Reference, c.now())
		if err != nil {
			return err
		}
		out = locked
		if !changed {
			return nil
		}
		return c.Orders.UpdatePayment(ctx, locked)
	})
	if errors.Is(err, order.ErrInvalidTransition) {
		log.Error("payment approved for a closed order", zap.String("reference", conf.Reference))
		return Result{Order: o}, ErrOrderClosed
	}
	if err != nil {
		return Result{}, err
	}
	if !changed {
		return c.duplicate(ctx, out, log), nil
	}
	c.record(ctx, out, audit.ActionConfirmed, map[string]any{"reference": conf.Reference})
	log.Info("payment confirmed", zap.String("reference", conf.Reference))
	return Result{Order: out, Verdict: payment.VerdictApproved}, nil
}

func (c *Coordinator) duplicate(ctx context.Context, o order.Order, log *zap.Logger) Result {
	log.Info("duplicate payment callback ignored")
	c.record(ctx, o, audit.ActionDuplicate, nil)
	return Result{Order: o, AlreadySettled: true, Verdict: payment.VerdictApproved}
}

// Abandon handles the gateway cancel return: an unpaid order is cancelled and
// its stock released.
func (c *Coordinator) Abandon(ctx context.Context, slug, number string, method order.PaymentMethod) (Result, error) {
	_, o, err := c.find(ctx, slug, number, method)
	if err != nil {
		return Result{}, err
	}
	if o.Paid() {
		return Result{Order: o, AlreadySettled: true}, nil
	}
	cancelled, err := c.Cancel(ctx, o.ID, "customer cancelled payment")
	if err != nil {
		return Result{}, err
	}
	return Result{Order: cancelled, Verdict: payment.VerdictDeclined}, nil
}

func (c *Coordinator) find(ctx context.Context, slug, number string, method order.PaymentMethod) (store.Store, order.Order, error) {
	s, err := c.Stores.GetBySlug(ctx, slug)
	if err != nil {
		return store.Store{}, order.Order{}, err
	}
	o, err := c.Orders.GetByNumber(ctx, s.ID, number)
	if err != nil {
		return store.Store{}, order.Order{}, err
	}
	if o.PaymentMethod != method {
		return store.Store{}, order.Order{}, order.ErrNotFound
	}
	return s, o, nil
}

func (c *Coordinator) newOrder(s store.Store, req Request, snap snapshot.Snapshot, number string, mode payment.SettlementMode) order.Order {
	now := c.now()
	billing := req.ShippingAddress
	if req.BillingAddress != nil {
		billing = *req.BillingAddress
	}
	o := order.Order{
		Number:          number,
		StoreID:         s.ID,
		CustomerID:      req.Actor.CustomerID,
		SessionID:       req.Actor.SessionID,
		Status:          order.StatusPending,
		PaymentStatus:   order.PaymentPending,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerEmail:   strings.TrimSpace(req.CustomerEmail),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billing,
		Totals:          snap.Totals(),
		Currency:        s.Currency,
		PaymentMethod:   req.PaymentMethod,
		Notes:           strings.TrimSpace(req.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           snap.Items(),
	}
	if mode == payment.ModeDeferred {
		o.Status = order.StatusAwaitingPayment
		o.PaymentStatus = order.PaymentAwaiting
	}
	if snap.Coupon != nil {
		o.CouponCode = snap.Coupon.Code
		o.CouponDiscount = snap.Discount
	}
	if snap.ShippingMethod != nil {
		id := snap.ShippingMethod.ID
		o.ShippingMethodID = &id
	}
	return o
}

func (c *Coordinator) urls(s store.Store, o order.Order) payment.URLs {
	base := fmt.Sprintf("%s/stores/%s/orders/%s/%s", c.cfg.PublicBaseURL, url.PathEscape(s.Slug), url.PathEscape(o.Number), o.PaymentMethod)
	return payment.URLs{Return: base + "/return", Cancel: base + "/cancel", Notify: base + "/notify"}
}

func (c *Coordinator) record(ctx context.Context, o order.Order, action audit.Action, data map[string]any) {
	e := audit.Event{StoreID: o.StoreID, OrderNumber: o.Number, Method: string(o.PaymentMethod), Action: action, Data: data, CreatedAt: c.now()}
	if err := c.Audit.Record(context.WithoutCancel(ctx), e); err != nil {
		c.Log.Warn("audit record failed", zap.String("order_number", o.Number), zap.String("action", string(action)), zap.Error(err))
	}
}
