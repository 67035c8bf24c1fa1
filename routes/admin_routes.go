package routes

import (
	"github.com/edlight123/eventhaiti-payouts/handlers"
	"github.com/edlight123/eventhaiti-payouts/middleware"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	// The feed authenticates through its first message, so it is registered ahead
	// of the JWT-guarded group.
	api.Get("/admin/ws", handlers.UpgradeFeed, h.ServeAdminFeed())

	admin := api.Group("/admin", middleware.Protected(h.JWTSecret), middleware.AdminRequired())

	admin.Get("/payouts", h.ListPayouts)

	organizers := admin.Group("/organizers/:organizerId")
	payout := organizers.Group("/payouts/:payoutId")
	payout.Post("/approve", h.ApprovePayout)
	payout.Post("/decline", h.DeclinePayout)
	payout.Post("/mark-paid", h.MarkPayoutPaid)
	payout.Post("/process", h.StartPayoutProcessing)
	payout.Post("/complete", h.CompletePayoutProcessing)

	organizers.Put("/verifications/:type", h.ReviewVerification)
	organizers.Get("/destinations/:destinationId", h.GetDestinationDetails)
	organizers.Put("/hold", h.SetManualHold)
	organizers.Put("/instant-payouts", h.SetInstantPayouts)

	admin.Post("/withdrawals/:withdrawalId", h.UpdateWithdrawal)

	platform := admin.Group("/platform")
	platform.Get("/payout-config", h.GetPlatformConfig)
	platform.Put("/payout-config", h.UpdatePlatformConfig)
	platform.Post("/prefunding/refresh", h.RefreshPrefunding)

	admin.Post("/settlement/run", h.RunSettlement)
	admin.Post("/events/:eventId/lock", h.LockEventEarnings)
}
