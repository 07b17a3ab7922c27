// Command api runs the storefront against in-memory repositories with a demo
// store, for local development without Postgres.
package main

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/shopspring/decimal"
	"github.com/wichananm65/storefront/internal/audit"
	"github.com/wichananm65/storefront/internal/auth"
	"github.com/wichananm65/storefront/internal/cart"
	"github.com/wichananm65/storefront/internal/checkout"
	"github.com/wichananm65/storefront/internal/config"
	"github.com/wichananm65/storefront/internal/coupon"
	"github.com/wichananm65/storefront/internal/idempotency"
	"github.com/wichananm65/storefront/internal/infrastructure/database/inmemory"
	"github.com/wichananm65/storefront/internal/inventory"
	"github.com/wichananm65/storefront/internal/logger"
	"github.com/wichananm65/storefront/internal/metrics"
	"github.com/wichananm65/storefront/internal/order"
	"github.com/wichananm65/storefront/internal/payment"
	"github.com/wichananm65/storefront/internal/payment/cod"
	"github.com/wichananm65/storefront/internal/payment/mercadopago"
	"github.com/wichananm65/storefront/internal/payment/payfast"
	"github.com/wichananm65/storefront/internal/payment/paypal"
	"github.com/wichananm65/storefront/internal/payment/stripe"
	"github.com/wichananm65/storefront/internal/product"
	"github.com/wichananm65/storefront/internal/shipping"
	"github.com/wichananm65/storefront/internal/snapshot"
	"github.com/wichananm65/storefront/internal/store"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.LogLevel, "console")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// PayFast publishes these sandbox merchant credentials
	sandboxPayFast := store.PayFastSettings{MerchantID: "10000100", MerchantKey: "46f0cd694581a", Passphrase: "jt7NOE43FZPn", Sandbox: true}
	price := decimal.RequireFromString
	sale := price("8.50")
	stores := store.NewInMemoryRepository([]store.Store{{
		ID: 1, Slug: "demo", Name: "Demo Pet Shop", Currency: "USD", TaxRate: price("10"),
		Gateways: store.Gateways{COD: store.CODSettings{Enabled: true}, PayFast: sandboxPayFast},
	}})
	products := product.NewInMemoryRepository([]product.Product{
		{ID: 1, StoreID: 1, Name: "Dog food 2kg", SKU: "DF-2", Price: price("20"), Stock: 25, Active: true},
		{ID: 2, StoreID: 1, Name: "Chew toy", SKU: "CT-1", Price: price("10"), Stock: 40, Active: true},
		{ID: 3, StoreID: 1, Name: "Cat treats", SKU: "CAT-T", Price: price("10"), SalePrice: &sale, Stock: 3, Active: true},
	})
	coupons := coupon.NewInMemoryRepository([]coupon.Coupon{
		{ID: 1, StoreID: 1, Code: "WELCOME10", Kind: coupon.KindPercentage, Value: price("10"), Active: true},
	})
	methods := shipping.NewInMemoryRepository([]shipping.Method{
		{ID: 1, StoreID: 1, Name: "Standard", BaseCost: price("3"), HandlingFee: price("2"), Active: true},
	})
	carts := cart.NewInMemoryRepository()
	orders := order.NewInMemoryRepository()
	tm := inmemory.NewTxManager()
	m := metrics.New("demo")

	trail := &audit.Memory{}
	coordinator := checkout.NewCoordinator(checkout.Dependencies{
		Stores:    stores,
		Orders:    orders,
		Numbers:   order.NewNumberGenerator(orders),
		Snapshots: snapshot.NewResolver(carts, products, coupons, methods),
		Ledger:    inventory.NewLedger(products),
		Coupons:   coupons,
		Carts:     carts,
		Gateways: payment.NewRegistry(
			cod.New(),
			stripe.New(),
			paypal.New(),
			payfast.New(&http.Client{Timeout: cfg.GatewayTimeout}),
			mercadopago.New(),
		),
		Tx:      tm,
		Log:     log,
		Metrics: m,
		Audit:   trail,
	}, checkout.Config{PublicBaseURL: cfg.PublicBaseURL, GatewayTimeout: cfg.GatewayTimeout})

	app := fiber.New(fiber.Config{ReadTimeout: 30 * time.Second})
	app.Use(logger.Middleware(log))
	app.Use(m.Middleware())
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	app.Use(auth.Optional(cfg.JWTSecret))
	product.NewHandler(product.NewService(products)).RegisterPublicRoutes(app)
	cart.NewHandler(cart.NewService(carts)).RegisterRoutes(app)
	checkout.NewHandler(coordinator, idempotency.NewMemoryStore(cfg.IdempotencyTTL)).RegisterRoutes(app)
	orderHandler := order.NewHandler(order.NewService(orders, tm), trail)
	orderHandler.RegisterRoutes(app)

	app.Use(auth.Required(cfg.JWTSecret))
	orderHandler.RegisterProtectedRoutes(app)

	log.Info("starting demo server", zap.String("addr", cfg.Addr))
	if err := app.Listen(cfg.Addr); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
