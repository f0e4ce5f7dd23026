package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/coding-coach-api/internal/config"
	"github.com/noah-isme/coding-coach-api/internal/handler"
	"github.com/noah-isme/coding-coach-api/internal/middleware"
	"github.com/noah-isme/coding-coach-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SessionHandler      *handler.SessionHandler
	ConversationHandler *handler.ConversationHandler
	RepositoryHandler   *handler.RepositoryHandler
	JWTMiddleware       fiber.Handler
	// ModelLimiter guards routes that call the model. Nil disables limiting.
	ModelLimiter fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.SessionHandler != nil {
		sessions := api.Group("/sessions", jwtMiddleware, middleware.RequireUser())
		deps.SessionHandler.Register(sessions, deps.ModelLimiter)

		if deps.ConversationHandler != nil {
			deps.ConversationHandler.Register(sessions, deps.ModelLimiter)
		}

		admin := api.Group("/admin", jwtMiddleware, middleware.RequireRole("admin"))
		deps.SessionHandler.RegisterAdmin(admin)
	}

	if deps.RepositoryHandler != nil {
		github := api.Group("/github", jwtMiddleware, middleware.RequireUser())
		deps.RepositoryHandler.Register(github)
	}
}
