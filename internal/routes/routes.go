package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/apps"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/config"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"
)

// Setup mounts every route under /api. limiterStorage may be nil, in which
// case the limiter keeps its counters in process memory.
func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	limiterStorage fiber.Storage,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	healthHandler *handlers.HealthHandler,
	plugins []apps.Plugin,
) {
	api := app.Group("/api")

	// General API rate limiter per IP
	api.Use(limiter.New(limiter.Config{
		Max:               cfg.RateLimitMax,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
		Storage:           limiterStorage,
	}))

	api.Get("/health", healthHandler.Check)

	// Credential endpoints: 10 req/min per IP (stricter)
	credentials := limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return "auth:" + c.IP() },
		Storage:           limiterStorage,
	})

	users := api.Group("/users")
	users.Post("/register", credentials, authHandler.Register)
	users.Post("/login", credentials, authHandler.Login)
	users.Post("/refresh", authHandler.Refresh)
	users.Post("/logout", authHandler.Logout)

	// JWT is applied per route so the public endpoints above stay public
	protected := middleware.JWTProtected(cfg)
	admin := middleware.AdminRequired(db)

	users.Get("/me", protected, userHandler.Me)
	users.Put("/me", protected, userHandler.UpdateMe)

	users.Get("/", protected, admin, userHandler.List)
	users.Post("/", protected, admin, userHandler.Create)
	users.Get("/:id", protected, admin, userHandler.Get)
	users.Put("/:id", protected, admin, userHandler.Update)
	users.Patch("/:id/approve", protected, admin, userHandler.Approve)
	users.Delete("/:id", protected, admin, userHandler.Delete)

	for _, p := range plugins {
		p.RegisterRoutes(api.Group("/"+p.ID(), protected), db, cfg)
	}
}
