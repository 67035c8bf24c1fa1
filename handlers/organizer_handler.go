package handlers

import (
	"github.com/edlight123/eventhaiti-payouts/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CreateWithdrawalRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Method string `json:"method" validate:"required,oneof=bank moncash_instant"`
}

func (h *Handler) GetBalance(c *fiber.Ctx) error {
	balance, err := h.Balances.GetOrganizerBalance(c.UserContext(), principal(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": balance})
}

func (h *Handler) GetAvailableTickets(c *fiber.Ctx) error {
	tickets, err := h.Balances.GetAvailableTicketsForPayout(c.UserContext(), principal(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": tickets})
}

func (h *Handler) RequestPayout(c *fiber.Ctx) error {
	payout, err := h.Payouts.RequestPayout(c.UserContext(), principal(c).ID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "success", "payout": payout})
}

func (h *Handler) ListMyPayouts(c *fiber.Ctx) error {
	payouts, err := h.Payouts.ListOrganizerPayouts(c.UserContext(), principal(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": payouts})
}

func (h *Handler) GetPayoutQuote(c *fiber.Ctx) error {
	eventID, err := uuidParam(c, "eventId", "event_id")
	if err != nil {
		return err
	}
	quote, err := h.Quotes.Quote(c.UserContext(), eventID, principal(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": quote})
}

func (h *Handler) CreateWithdrawal(c *fiber.Ctx) error {
	eventID, err := uuidParam(c, "eventId", "event_id")
	if err != nil {
		return err
	}
	var req CreateWithdrawalRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	withdrawal, err := h.Withdrawals.CreateWithdrawal(c.UserContext(), principal(c).ID, services.WithdrawalInput{
		EventID: eventID,
		Amount:  req.Amount,
		Method:  req.Method,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "success", "withdrawal": withdrawal})
}

func (h *Handler) ListMyWithdrawals(c *fiber.Ctx) error {
	withdrawals, err := h.Withdrawals.ListOrganizerWithdrawals(c.UserContext(), principal(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": withdrawals})
}

func (h *Handler) GetPayoutStatus(c *fiber.Ctx) error {
	view, err := h.Verifications.GetPayoutStatus(c.UserContext(), principal(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": view})
}

// optionalUUID parses an optional id body field; empty means absent.
func optionalUUID(raw, field string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, &services.ValidationError{Field: field, Message: "must be a valid id"}
	}
	return &id, nil
}
