package order

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/wichananm65/storefront/internal/audit"
	"github.com/wichananm65/storefront/internal/auth"
)

const maxHistory = 200

// Handler exposes the actor's orders and the staff endpoints.
type Handler struct {
	service *Service
	history audit.Reader
}

func NewHandler(s *Service, history audit.Reader) *Handler {
	if history == nil {
		history = audit.Nop{}
	}
	return &Handler{service: s, history: history}
}

// RegisterRoutes serves the orders of the current customer or guest session.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get("/api/v1/stores/:storeID<[0-9]+>/orders", h.getOrders)
	app.Get("/api/v1/stores/:storeID<[0-9]+>/orders/:number", h.getOrder)
}

// RegisterProtectedRoutes expects a JWT middleware in front of it. Only staff
// of the store may fulfil its orders or read their payment trail.
func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	app.Post("/api/v1/stores/:storeID<[0-9]+>/orders/:number/fulfill", h.fulfill)
	app.Get("/api/v1/stores/:storeID<[0-9]+>/orders/:number/audit", h.getAudit)
}

func actor(c *fiber.Ctx) Actor {
	return Actor{CustomerID: auth.CustomerRef(c), SessionID: auth.SessionID(c)}
}

func storeID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("storeID"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) getOrders(c *fiber.Ctx) error {
	sid, ok := storeID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid store id"})
	}
	a := actor(c)
	if a.CustomerID == nil && a.SessionID == "" {
		return c.JSON([]Order{})
	}
	orders, err := h.service.List(c.UserContext(), sid, a)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(orders)
}

func (h *Handler) getOrder(c *fiber.Ctx) error {
	sid, ok := storeID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid store id"})
	}
	o, err := h.service.Get(c.UserContext(), sid, c.Params("number"), actor(c))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "order not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(o)
}

// requireStaff checks the token and role; a false return means the response is written.
func requireStaff(c *fiber.Ctx) (int64, bool, error) {
	sid, ok := storeID(c)
	if !ok {
		return 0, false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid store id"})
	}
	if _, ok := c.Locals("user").(*jwt.Token); !ok {
		return 0, false, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	if !auth.Staff(c, sid) {
		return 0, false, c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "staff role required"})
	}
	return sid, true, nil
}

func (h *Handler) fulfill(c *fiber.Ctx) error {
	sid, ok, err := requireStaff(c)
	if !ok {
		return err
	}
	o, err := h.service.Fulfill(c.UserContext(), sid, c.Params("number"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "order not found"})
		case errors.Is(err, ErrInvalidTransition):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "only confirmed orders can be fulfilled"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
		}
	}
	return c.JSON(o)
}

func (h *Handler) getAudit(c *fiber.Ctx) error {
	sid, ok, err := requireStaff(c)
	if !ok {
		return err
	}
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > maxHistory {
		limit = maxHistory
	}
	events, err := h.history.History(c.UserContext(), c.Params("number"), int64(limit))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	out := make([]audit.Event, 0, len(events))
	for _, e := range events {
		if e.StoreID == sid {
			out = append(out, e)
		}
	}
	return c.JSON(out)
}
