package cart

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/storefront/internal/auth"
)

// Handler delegates cart operations to the cart service.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

// RegisterRoutes expects auth.Optional to run before it so signed-in
// customers get their own cart.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get("/api/v1/stores/:storeID<[0-9]+>/cart", h.getCart)
	app.Post("/api/v1/stores/:storeID<[0-9]+>/cart", h.addToCart)
	app.Delete("/api/v1/stores/:storeID<[0-9]+>/cart", h.clearCart)
}

type cartRequest struct {
	ProductID int64             `json:"productID"`
	Quantity  int               `json:"quantity,omitempty"`
	Variants  map[string]string `json:"variants,omitempty"`
}

func owner(c *fiber.Ctx) (Owner, error) {
	storeID, err := strconv.ParseInt(c.Params("storeID"), 10, 64)
	if err != nil || storeID <= 0 {
		return Owner{}, fiber.NewError(fiber.StatusBadRequest, "invalid store id")
	}
	o := Owner{StoreID: storeID, CustomerID: auth.CustomerRef(c)}
	if o.CustomerID == nil {
		o.SessionID = auth.EnsureSession(c)
	}
	return o, nil
}

func (h *Handler) addToCart(c *fiber.Ctx) error {
	payload := new(cartRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.ProductID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid productID"})
	}
	if payload.Quantity == 0 {
		payload.Quantity = 1
	}
	o, err := owner(c)
	if err != nil {
		return err
	}

	items, err := h.service.AddToCart(c.UserContext(), o, payload.ProductID, payload.Quantity, payload.Variants)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.Status(fiber.StatusOK).JSON(items)
}

func (h *Handler) getCart(c *fiber.Ctx) error {
	o, err := owner(c)
	if err != nil {
		return err
	}
	items, err := h.service.GetCart(c.UserContext(), o)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(items)
}

func (h *Handler) clearCart(c *fiber.Ctx) error {
	o, err := owner(c)
	if err != nil {
		return err
	}
	if err := h.service.ClearCart(c.UserContext(), o); err != nil {
		if errors.Is(err, ErrInvalidOwner) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
