// Package server assembles the Fiber application: middleware, error pages and
// the page, API and infrastructure routes.
package server

import (
	"errors"
	"time"

	"catalog/internal/applog"
	"catalog/internal/handlers"
	"catalog/internal/metrics"
	"catalog/internal/middleware"
	"catalog/internal/services"
	"catalog/internal/views"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Service   *services.ProductService
	Presenter views.Presenter
	Metrics   *metrics.Metrics
	// AccessLog enables the per-request access log line.
	AccessLog bool
}

// NewApp builds the Fiber application with every route registered.
func NewApp(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		Views:        views.NewEngine(),
		ErrorHandler: errorHandler(deps.Presenter.Locale),
	})
	app.Server().MaxRequestBodySize = 1 << 20

	app.Use(recover.New())
	app.Use(requestid.New())
	if deps.AccessLog {
		app.Use(logger.New())
	}
	app.Use(helmet.New())
	if deps.Metrics != nil {
		app.Use(deps.Metrics.Middleware())
		app.Get("/metrics", deps.Metrics.Handler())
	}
	app.Use(middleware.Flash())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	apiV1 := app.Group("/api/v1")
	handlers.NewProductHandler(deps.Service).RegisterRoutes(apiV1)

	handlers.NewPageHandler(deps.Service, deps.Presenter).RegisterRoutes(app)

	return app
}

// errorHandler renders the not-found or error page. The cause is logged, never
// shown.
func errorHandler(lang string) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		tmpl, title, msg := "error", "Error", "Something went wrong. Please try again."
		if code == fiber.StatusNotFound {
			tmpl, title, msg = "notfound", "Not Found", "Page not found"
		}
		if code >= fiber.StatusInternalServerError {
			applog.Error(c, "server.error", err, nil)
		}

		rerr := c.Status(code).Render(tmpl, fiber.Map{
			"Title":   title,
			"Message": msg,
			"Lang":    lang,
		}, views.Layout)
		if rerr != nil {
			return c.Status(code).SendString(msg)
		}
		return nil
	}
}
