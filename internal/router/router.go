package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-results-api/internal/config"
	"github.com/noah-isme/gema-results-api/internal/handler"
	"github.com/noah-isme/gema-results-api/internal/middleware"
	"github.com/noah-isme/gema-results-api/internal/observability"
)

// Role names carried in the JWT role claim.
const (
	RoleTeacher = "teacher"
	RoleManager = "manager"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	MarkHandler         *handler.MarkHandler
	PublicationHandler  *handler.PublicationHandler
	NotificationHandler *handler.NotificationHandler
	HealthDB            handler.Pinger
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthDB))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}

	if deps.MarkHandler != nil {
		marks := api.Group("/marks", jwtMiddleware)
		marks.Post("/",
			middleware.RequireRole(RoleTeacher),
			middleware.RateLimit("marks:submit", cfg.SubmitRateLimit, time.Minute),
			deps.MarkHandler.Submit,
		)
		marks.Get("/:id", middleware.RequireRole(RoleTeacher, RoleManager), deps.MarkHandler.Get)
		marks.Post("/:id/action", middleware.RequireRole(RoleManager), deps.MarkHandler.Action)
	}

	if deps.PublicationHandler != nil {
		publications := api.Group("/publications", jwtMiddleware, middleware.RequireRole(RoleManager))
		deps.PublicationHandler.Register(publications)
	}

	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}
}
