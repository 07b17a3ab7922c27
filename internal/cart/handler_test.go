package cart

import (
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

func makeAppWithCartHandler(cHandler *Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			id, err := strconv.Atoi(v)
			if err == nil {
				claims := jwt.MapClaims{"user_id": id}
				tok := &jwt.Token{Claims: claims}
				c.Locals("user", tok)
			}
		}
		return c.Next()
	})
	cHandler.RegisterRoutes(app)
	return app
}

func post(app *fiber.App, body, user string) (*httptestResult, error) {
	req := httptest.NewRequest("POST", "/api/v1/stores/1/cart", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	res, err := app.Test(req)
	if err != nil {
		return nil, err
	}
	b, _ := io.ReadAll(res.Body)
	return &httptestResult{status: res.StatusCode, body: string(b)}, nil
}

type httptestResult struct {
	status int
	body   string
}

func TestCartRoutes_Basic(t *testing.T) {
	repo := NewInMemoryRepository()
	app := makeAppWithCartHandler(NewHandler(NewService(repo)))

	// ensure routes registered
	routes := map[string]bool{}
	for _, grp := range app.Stack() {
		for _, r := range grp {
			routes[r.Method+" "+r.Path] = true
		}
	}
	for _, want := range []string{"GET /api/v1/stores/:storeID<[0-9]+>/cart", "POST /api/v1/stores/:storeID<[0-9]+>/cart", "DELETE /api/v1/stores/:storeID<[0-9]+>/cart"} {
		if !routes[want] {
			t.Fatalf("expected route %q to be registered", want)
		}
	}

	// authorized POST add product with explicit quantity=2
	r, err := post(app, `{"productID":3,"quantity":2}`, "42")
	if err != nil || r.status != fiber.StatusOK {
		t.Fatalf("expected 200 for adding to cart, got %+v err %v", r, err)
	}
	// add same product again, should increment quantity
	r, _ = post(app, `{"productID":3,"quantity":1}`, "42")
	if !strings.Contains(r.body, `"quantity":3`) {
		t.Fatalf("expected quantity 3 after second add, got %s", r.body)
	}
	// decrease quantity by one using negative quantity
	r, _ = post(app, `{"productID":3,"quantity":-1}`, "42")
	if !strings.Contains(r.body, `"quantity":2`) {
		t.Fatalf("expected quantity 2 after decrement, got %s", r.body)
	}
	// reduce to zero and ensure item removed
	r, _ = post(app, `{"productID":3,"quantity":-2}`, "42")
	if strings.Contains(r.body, `"productID":3`) {
		t.Fatalf("expected product 3 to be removed after quantity zero, got %s", r.body)
	}

	// a different variant is its own line
	post(app, `{"productID":5,"quantity":1,"variants":{"size":"M"}}`, "42")
	r, _ = post(app, `{"productID":5,"quantity":1,"variants":{"size":"L"}}`, "42")
	if strings.Count(r.body, `"productID":5`) != 2 {
		t.Fatalf("expected two lines for product 5, got %s", r.body)
	}

	// clear the cart via DELETE endpoint
	req := httptest.NewRequest("DELETE", "/api/v1/stores/1/cart", nil)
	req.Header.Set("X-User-ID", "42")
	res, _ := app.Test(req)
	if res.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204 for clear cart, got %d", res.StatusCode)
	}
	req2 := httptest.NewRequest("GET", "/api/v1/stores/1/cart", nil)
	req2.Header.Set("X-User-ID", "42")
	res2, _ := app.Test(req2)
	b, _ := io.ReadAll(res2.Body)
	if strings.Contains(string(b), "productID") {
		t.Fatalf("expected empty cart after clear, got %s", string(b))
	}
}

func TestCartRoutes_GuestSession(t *testing.T) {
	repo := NewInMemoryRepository()
	app := makeAppWithCartHandler(NewHandler(NewService(repo)))

	req := httptest.NewRequest("POST", "/api/v1/stores/1/cart", strings.NewReader(`{"productID":9}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-ID", "guest-1")
	res, err := app.Test(req)
	if err != nil || res.StatusCode != fiber.StatusOK {
		t.Fatalf("guest add failed: %v", err)
	}

	items, _ := repo.GetItems(req.Context(), Owner{StoreID: 1, SessionID: "guest-1"})
	if len(items) != 1 || items[0].Quantity != 1 {
		t.Fatalf("expected one unit in guest cart, got %+v", items)
	}
	// other users do not see the guest cart
	other, _ := repo.GetItems(req.Context(), Owner{StoreID: 1, SessionID: "guest-2"})
	if len(other) != 0 {
		t.Fatalf("expected empty cart for another session, got %+v", other)
	}
}

func TestVariantKey_OrderIndependent(t *testing.T) {
	a := VariantKey(map[string]string{"size": "M", "color": "red"})
	b := VariantKey(map[string]string{"color": "red", "size": "M"})
	if a != b || a != "color=red;size=M" {
		t.Fatalf("unexpected keys %q %q", a, b)
	}
}
