package auth

import (
	"io"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

func TestOptional_AllowsAnonymousAndReadsClaims(t *testing.T) {
	secret := "test-secret"
	app := fiber.New()
	app.Use(Optional(secret))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		id, ok := CustomerID(c)
		if !ok {
			return c.SendString("guest:" + SessionID(c))
		}
		return c.SendString(strconv.FormatInt(id, 10))
	})

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set(SessionHeader, "abc")
	res, err := app.Test(req)
	if err != nil || res.StatusCode != fiber.StatusOK {
		t.Fatalf("anonymous request: status %v err %v", res.StatusCode, err)
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 42, "exp": time.Now().Add(time.Hour).Unix()})
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req2 := httptest.NewRequest("GET", "/whoami", nil)
	req2.Header.Set("Authorization", "Bearer "+signed)
	res2, err := app.Test(req2)
	if err != nil || res2.StatusCode != fiber.StatusOK {
		t.Fatalf("authenticated request: status %v err %v", res2.StatusCode, err)
	}

	req3 := httptest.NewRequest("GET", "/whoami", nil)
	req3.Header.Set("Authorization", "Bearer not-a-token")
	res3, _ := app.Test(req3)
	if res3.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", res3.StatusCode)
	}
}

func TestEnsureSession_IssuesCookie(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(EnsureSession(c))
	})
	res, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.Header.Get(SessionHeader) == "" {
		t.Fatalf("expected a session header to be issued")
	}
	found := false
	for _, ck := range res.Cookies() {
		if ck.Name == SessionCookie && ck.Value != "" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected session cookie")
	}
}

func TestStaff_RoleAndStoreScope(t *testing.T) {
	cases := []struct {
		name   string
		claims jwt.MapClaims
		want   bool
	}{
		{"shopper", jwt.MapClaims{"user_id": 9}, false},
		{"staff of store", jwt.MapClaims{"user_id": 1, "role": RoleStaff, "store_id": float64(1)}, true},
		{"staff of other store", jwt.MapClaims{"user_id": 1, "role": RoleStaff, "store_id": float64(2)}, false},
		{"staff without store", jwt.MapClaims{"user_id": 1, "role": RoleStaff}, false},
		{"admin", jwt.MapClaims{"user_id": 1, "role": RoleAdmin}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				c.Locals("user", &jwt.Token{Claims: tc.claims})
				return c.SendString(strconv.FormatBool(Staff(c, 1)))
			})
			res, err := app.Test(httptest.NewRequest("GET", "/", nil))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			body, _ := io.ReadAll(res.Body)
			if string(body) != strconv.FormatBool(tc.want) {
				t.Fatalf("expected %v, got %s", tc.want, body)
			}
		})
	}

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(strconv.FormatBool(Staff(c, 1))) })
	res, _ := app.Test(httptest.NewRequest("GET", "/", nil))
	if body, _ := io.ReadAll(res.Body); string(body) != "false" {
		t.Fatalf("anonymous request must not be staff, got %s", body)
	}
}
