package main

import (
	"invoice-ledger/config"
	"invoice-ledger/controllers"
	"invoice-ledger/database"
	"invoice-ledger/middlewares"
	"invoice-ledger/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func newApp(cfg *config.Config) *fiber.App {
	// ---- Fiber app with global error handler + body limit
	app := fiber.New(fiber.Config{
		AppName:      "invoice-ledger",
		ErrorHandler: middlewares.ErrorHandler,
		BodyLimit:    cfg.BodyLimitBytes,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	// ---- CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: false, // using Bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
		ExposeHeaders:    "Idempotent-Replayed",
	}))

	// ---- Global rate limiter (applies to all routes; tune via env)
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: cfg.RateLimitWindow,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/healthz"
		},
	}))

	// ---- Routes
	routes.Register(app)
	return app
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(cfg.LogLevel)

	middlewares.SetJWTSecret(cfg.JWTSecret)
	controllers.SetTaxRate(cfg.TaxRate)

	// ---- Database
	if err := database.Connect(cfg); err != nil {
		log.Fatal(err)
	}
	if err := database.AutoMigrate(database.DB); err != nil {
		log.Fatal(err)
	}

	app := newApp(cfg)

	// ---- Start
	log.Infow("API server starting", "port", cfg.Port, "db", cfg.DBDriver, "tax_rate", cfg.TaxRate.String())
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
