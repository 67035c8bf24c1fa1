package handlers

import (
	"strings"

	"github.com/edlight123/eventhaiti-payouts/services"
	"github.com/gofiber/fiber/v2"
)

// GetConversionRate exposes the spot rate used for instant payout conversion,
// USD to HTG unless from/to are given.
func (h *Handler) GetConversionRate(c *fiber.Ctx) error {
	from := strings.ToUpper(c.Query("from", "USD"))
	to := strings.ToUpper(c.Query("to", services.InstantPayoutCurrency))
	if len(from) != 3 || len(to) != 3 {
		return &services.ValidationError{Field: "currency", Message: "must be a 3-letter code"}
	}
	rate, err := h.Rates.Rate(c.UserContext(), from, to)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"from": from, "to": to, "rate": rate.String()})
}
