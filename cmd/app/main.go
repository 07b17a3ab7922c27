package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"
	"github.com/wichananm65/storefront/internal/audit"
	"github.com/wichananm65/storefront/internal/auth"
	"github.com/wichananm65/storefront/internal/cart"
	"github.com/wichananm65/storefront/internal/checkout"
	"github.com/wichananm65/storefront/internal/config"
	"github.com/wichananm65/storefront/internal/coupon"
	"github.com/wichananm65/storefront/internal/idempotency"
	"github.com/wichananm65/storefront/internal/infrastructure/database/postgres"
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
	log, err := logger.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("migrate database", zap.Error(err))
	}
	tm := postgres.NewTxManager(db)

	stores := store.NewPostgresRepository(db)
	products := product.NewPostgresRepository(tm)
	carts := cart.NewPostgresRepository(db)
	coupons := coupon.NewPostgresRepository(tm)
	methods := shipping.NewPostgresRepository(tm)
	orders := order.NewPostgresRepository(tm)

	var keys idempotency.Store = idempotency.NewMemoryStore(cfg.IdempotencyTTL)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("connect redis", zap.Error(err))
		}
		keys = idempotency.NewRedisStore(rdb, "storefront", cfg.IdempotencyTTL)
	}

	var (
		recorder audit.Recorder = audit.Nop{}
		history  audit.Reader   = audit.Nop{}
	)
	if cfg.MongoURI != "" {
		mongoRec, err := audit.NewMongoRecorder(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			log.Fatal("connect mongo", zap.Error(err))
		}
		defer mongoRec.Close(context.Background())
		recorder, history = mongoRec, mongoRec
	}

	m := metrics.New("api")
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
		Audit:   recorder,
	}, checkout.Config{PublicBaseURL: cfg.PublicBaseURL, GatewayTimeout: cfg.GatewayTimeout})

	app := fiber.New(fiber.Config{ReadTimeout: 30 * time.Second, WriteTimeout: 30 * time.Second})
	setupCORS(app)
	app.Use(logger.Middleware(log))
	app.Use(m.Middleware())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := db.PingContext(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	checkoutHandler := checkout.NewHandler(coordinator, keys)
	orderHandler := order.NewHandler(order.NewService(orders, tm), history)

	app.Use(auth.Optional(cfg.JWTSecret))
	product.NewHandler(product.NewService(products)).RegisterPublicRoutes(app)
	cart.NewHandler(cart.NewService(carts)).RegisterRoutes(app)
	checkoutHandler.RegisterRoutes(app)
	orderHandler.RegisterRoutes(app)

	app.Use(auth.Required(cfg.JWTSecret))
	orderHandler.RegisterProtectedRoutes(app)

	go func() {
		<-ctx.Done()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()
	log.Info("starting server", zap.String("addr", cfg.Addr))
	if err := app.Listen(cfg.Addr); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func setupCORS(app *fiber.App) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Session-ID, Idempotency-Key",
	}))
}
