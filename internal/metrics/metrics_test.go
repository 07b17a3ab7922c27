package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

func TestMiddlewareAndHandler(t *testing.T) {
	m := New("test")
	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	if _, err := app.Test(httptest.NewRequest("GET", "/ping", nil)); err != nil {
		t.Fatalf("ping: %v", err)
	}
	m.Checkout("cod", "ok")

	res, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, _ := io.ReadAll(res.Body)
	for _, want := range []string{
		`storefront_test_checkouts_total{method="cod",result="ok"} 1`,
		`storefront_test_http_requests_total{route="/ping",status="200"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("%s missing from exposition:\n%s", want, body)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Checkout("cod", "ok")
	m.Settlement("stripe", "approved")
	m.Compensation("stripe", "gateway_failure")
}
