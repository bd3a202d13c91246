package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/zhfeed/hnzh/internal/config"
	"github.com/zhfeed/hnzh/internal/middleware"
)

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, h *Handlers, cfg *config.Config) {
	app.Get("/health", h.HealthCheck)

	// API group with versioning
	api := app.Group("/api/v1")

	// Ingestion triggers
	api.Get("/cron", middleware.CronAuth(cfg), h.Cron)
	api.Get("/fetch", h.Fetch)

	// Read surface
	stories := api.Group("/stories")
	{
		stories.Get("", h.ListStories)
		stories.Get("/:id", h.GetStory)
	}
	api.Get("/home", h.Home)
	api.Get("/debug", h.Debug)

	// 404 Handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
		})
	})
}
