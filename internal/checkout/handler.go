package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/storefront/internal/auth"
	"github.com/wichananm65/storefront/internal/cart"
	"github.com/wichananm65/storefront/internal/idempotency"
	"github.com/wichananm65/storefront/internal/inventory"
	"github.com/wichananm65/storefront/internal/order"
	"github.com/wichananm65/storefront/internal/payment"
	"github.com/wichananm65/storefront/internal/snapshot"
	"github.com/wichananm65/storefront/internal/store"
	"go.uber.org/zap"
)

// IdempotencyHeader lets clients retry a checkout without creating a second
// order.
const IdempotencyHeader = "Idempotency-Key"

type Handler struct {
	coordinator *Coordinator
	keys        idempotency.Store
	log         *zap.Logger
}

// NewHandler builds the checkout endpoints. keys may be nil, in which case
// the Idempotency-Key header is ignored.
func NewHandler(c *Coordinator, keys idempotency.Store) *Handler {
	return &Handler{coordinator: c, keys: keys, log: c.Log}
}

// RegisterRoutes expects auth.Optional in front of the checkout route.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Post("/api/v1/stores/:storeID<[0-9]+>/checkout", h.checkout)
	app.Get("/stores/:slug/orders/:number/:gateway/return", h.settle(payment.SourceReturn))
	app.Post("/stores/:slug/orders/:number/:gateway/return", h.settle(payment.SourceReturn))
	app.Post("/stores/:slug/orders/:number/:gateway/notify", h.settle(payment.SourceNotify))
	app.Get("/stores/:slug/orders/:number/:gateway/cancel", h.abandon)
}

type addressRequest struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (a addressRequest) toAddress() order.Address {
	return order.Address{Line1: a.Line1, Line2: a.Line2, City: a.City, State: a.State, PostalCode: a.PostalCode, Country: a.Country}
}

type checkoutRequest struct {
	CustomerName     string          `json:"customer_name"`
	CustomerEmail    string          `json:"customer_email"`
	CustomerPhone    string          `json:"customer_phone"`
	ShippingAddress  addressRequest  `json:"shipping_address"`
	BillingAddress   *addressRequest `json:"billing_address"`
	PaymentMethod    string          `json:"payment_method"`
	ShippingMethodID *int64          `json:"shipping_method_id"`
	CouponCode       string          `json:"coupon_code"`
	Notes            string          `json:"notes"`
}

func (h *Handler) checkout(c *fiber.Ctx) error {
	storeID, err := strconv.ParseInt(c.Params("storeID"), 10, 64)
	if err != nil || storeID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid store id"})
	}
	payload := new(checkoutRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	req := Request{
		Actor:            Actor{StoreID: storeID, CustomerID: auth.CustomerRef(c), SessionID: auth.SessionID(c)},
		CustomerName:     payload.CustomerName,
		CustomerEmail:    payload.CustomerEmail,
		CustomerPhone:    payload.CustomerPhone,
		ShippingAddress:  payload.ShippingAddress.toAddress(),
		PaymentMethod:    order.PaymentMethod(payload.PaymentMethod),
		ShippingMethodID: payload.ShippingMethodID,
		CouponCode:       payload.CouponCode,
		Notes:            payload.Notes,
	}
	if payload.BillingAddress != nil {
		billing := payload.BillingAddress.toAddress()
		req.BillingAddress = &billing
	}

	key := c.Get(IdempotencyHeader)
	if key == "" || h.keys == nil {
		return h.runCheckout(c, req)
	}
	scoped, err := scopeKey(req.Actor, key)
	if err != nil {
		return h.writeError(c, err)
	}
	ctx := c.UserContext()
	stored, err := h.keys.Begin(ctx, scoped)
	if err != nil {
		return h.writeError(c, err)
	}
	if stored != nil {
		c.Set("Idempotent-Replayed", "true")
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(stored.Status).Send(stored.Body)
	}

	if err := h.runCheckout(c, req); err != nil {
		_ = h.keys.Abort(context.WithoutCancel(ctx), scoped)
		return err
	}
	res := c.Response()
	if res.StatusCode() >= fiber.StatusInternalServerError {
		if err := h.keys.Abort(context.WithoutCancel(ctx), scoped); err != nil {
			h.log.Warn("releasing idempotency key failed", zap.Error(err))
		}
		return nil
	}
	body := append([]byte(nil), res.Body()...)
	if err := h.keys.Complete(context.WithoutCancel(ctx), scoped, idempotency.Response{Status: res.StatusCode(), Body: body}); err != nil {
		h.log.Warn("storing idempotent response failed", zap.Error(err))
	}
	return nil
}

func scopeKey(a Actor, key string) (string, error) {
	ownerKey, err := a.owner().Key()
	if err != nil {
		return "", &ValidationError{Fields: map[string]string{"session": "customer or guest session required"}}
	}
	return fmt.Sprintf("checkout:%d:%s:%s", a.StoreID, ownerKey, key), nil
}

func (h *Handler) runCheckout(c *fiber.Ctx, req Request) error {
	res, err := h.coordinator.Checkout(c.UserContext(), req)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"order": res.Order, "outcome": res.Outcome})
}

func (h *Handler) settle(source payment.Source) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := h.coordinator.Settle(c.UserContext(), SettleRequest{
			StoreSlug:   c.Params("slug"),
			OrderNumber: c.Params("number"),
			Method:      order.PaymentMethod(c.Params("gateway")),
			Source:      source,
			Query:       c.Queries(),
			Body:        append([]byte(nil), c.Body()...),
		})
		if err != nil {
			return h.writeError(c, err)
		}
		return c.JSON(settlementResponse(res))
	}
}

func (h *Handler) abandon(c *fiber.Ctx) error {
	res, err := h.coordinator.Abandon(c.UserContext(), c.Params("slug"), c.Params("number"), order.PaymentMethod(c.Params("gateway")))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(settlementResponse(res))
}

func settlementResponse(res Result) fiber.Map {
	return fiber.Map{
		"orderNumber":    res.Order.Number,
		"status":         res.Order.Status,
		"paymentStatus":  res.Order.PaymentStatus,
		"verdict":        res.Verdict,
		"alreadySettled": res.AlreadySettled,
	}
}

func (h *Handler) writeError(c *fiber.Ctx, err error) error {
	var validation *ValidationError
	var stock *inventory.InsufficientStockError
	var config *payment.ConfigError
	var gateway *GatewayError

	switch {
	case errors.As(err, &validation):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"message": "invalid checkout request", "fields": validation.Fields})
	case errors.As(err, &stock):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": stock.Error(), "productID": stock.ProductID, "available": stock.Available})
	case errors.As(err, &config):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": config.Error()})
	case errors.As(err, &gateway):
		// provider detail stays in the logs
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"message": "payment provider is unavailable, please try again", "orderNumber": gateway.OrderNumber})
	case errors.Is(err, snapshot.ErrInvalidCoupon):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error(), "fields": fiber.Map{"coupon_code": err.Error()}})
	case errors.Is(err, snapshot.ErrInvalidShippingMethod):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error(), "fields": fiber.Map{"shipping_method_id": err.Error()}})
	case errors.Is(err, snapshot.ErrEmptyCart),
		errors.Is(err, snapshot.ErrUnknownProduct),
		errors.Is(err, payment.ErrUnknownMethod),
		errors.Is(err, payment.ErrVerification),
		errors.Is(err, inventory.ErrInvalidQuantity):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, ErrOrderClosed),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, idempotency.ErrInFlight):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "store not found"})
	case errors.Is(err, order.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "order not found"})
	case errors.Is(err, cart.ErrInvalidOwner):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	default:
		h.log.Error("checkout request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "internal server error"})
	}
}
