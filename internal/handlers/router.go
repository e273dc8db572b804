package handlers

import (
	"dgisync/internal/app"
	"dgisync/internal/handlers/middleware"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	middleware middleware.Middleware
	log        logger.Logger
	router     fiber.Router
}

func Router(router fiber.Router, app *app.App) error {
	api := router.Group("/api", app.Middleware.TraceID())
	HealthHandler(api, app.Config)
	NewRunsHandler(*app, api).Register()

	return nil
}
