package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/merchantlens/merchantlens/internal/config"
	"github.com/merchantlens/merchantlens/internal/handlers"
	"github.com/merchantlens/merchantlens/internal/logging"
	"github.com/merchantlens/merchantlens/internal/metrics"
	"github.com/merchantlens/merchantlens/internal/middleware"
)

// Setup configures all routes and middlewares. recorder may be nil when
// metrics are disabled.
func Setup(app *fiber.App, logger *logging.Logger, analytics handlers.Analytics,
	recorder *metrics.Recorder, cfg config.Config,
) *handlers.Handler {
	h := handlers.New(logger, analytics)

	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Request-ID",
	}))

	logCfg := logging.DefaultMiddlewareConfig()
	if cfg.Metrics.Path != "" {
		logCfg.SkipPaths = append(logCfg.SkipPaths, cfg.Metrics.Path)
	}
	app.Use(logging.FiberMiddleware(logger, logCfg))

	app.Get("/health", h.Health)

	if cfg.Metrics.Enabled && recorder != nil {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, adaptor.HTTPHandler(recorder.Handler()))
	}

	// Analytics routes (read-only)
	v1 := app.Group("/v1")
	merchants := v1.Group("/merchants/:merchant_id")
	merchants.Get("/anomalies", h.Anomalies)
	merchants.Get("/forecast", h.Forecast)
	merchants.Get("/insights", h.Insights)

	// 404 handler
	app.Use(h.NotFound)

	return h
}

// New creates a new Fiber app with configuration
func New(logger *logging.Logger, analytics handlers.Analytics,
	recorder *metrics.Recorder, cfg config.Config,
) (*fiber.App, *handlers.Handler) {
	app := fiber.New(fiber.Config{
		AppName:               "MerchantLens",
		DisableStartupMessage: !cfg.IsDevelopment(),
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	h := Setup(app, logger, analytics, recorder, cfg)

	return app, h
}
