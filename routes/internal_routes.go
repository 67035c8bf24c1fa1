package routes

import (
	"github.com/edlight123/eventhaiti-payouts/handlers"
	"github.com/edlight123/eventhaiti-payouts/middleware"
	"github.com/gofiber/fiber/v2"
)

// InternalRoutes serves service-to-service calls from the ticketing platform.
func InternalRoutes(app *fiber.App, h *handlers.Handler, internalToken string) {
	internal := app.Group("/api/v1/internal", middleware.InternalTokenRequired(internalToken))
	internal.Post("/ticket-sales", h.RecordTicketSale)
}

// Register mounts every route group.
func Register(app *fiber.App, h *handlers.Handler, internalToken string) {
	PublicRoutes(app, h)
	InternalRoutes(app, h, internalToken)
	OrganizerRoutes(app, h)
	AdminRoutes(app, h)
}
