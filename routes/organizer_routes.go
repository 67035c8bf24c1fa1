package routes

import (
	"github.com/edlight123/eventhaiti-payouts/handlers"
	"github.com/edlight123/eventhaiti-payouts/middleware"
	"github.com/gofiber/fiber/v2"
)

func OrganizerRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	organizer := api.Group("/organizer", middleware.Protected(h.JWTSecret), middleware.OrganizerRequired())

	organizer.Get("/balance", h.GetBalance)
	organizer.Get("/payout-status", h.GetPayoutStatus)

	payouts := organizer.Group("/payouts")
	payouts.Get("", h.ListMyPayouts)
	payouts.Get("/available-tickets", h.GetAvailableTickets)
	payouts.Post("/request", h.RequestPayout)

	events := organizer.Group("/events/:eventId")
	events.Get("/payout-quote", h.GetPayoutQuote)
	events.Post("/withdrawals", h.CreateWithdrawal)
	organizer.Get("/withdrawals", h.ListMyWithdrawals)

	destinations := organizer.Group("/destinations")
	destinations.Get("", h.ListDestinations)
	destinations.Post("", h.AddBankDestination)
	destinations.Put("/primary", h.UpsertPrimaryBankDestination)
	destinations.Put("/mobile-money", h.UpsertMobileMoneyDestination)
	destinations.Post("/:destinationId/verification", h.SubmitBankVerification)

	organizer.Post("/verifications/:type", h.SubmitVerification)
	organizer.Get("/uploads/signature", h.GenerateUploadSignature)
}
