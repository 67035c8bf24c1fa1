package handlers

import (
	"time"

	"github.com/edlight123/eventhaiti-payouts/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// TicketSaleRequest is posted by the ticketing service for every confirmed ticket.
type TicketSaleRequest struct {
	TicketID    string    `json:"ticket_id" validate:"required,uuid"`
	EventID     string    `json:"event_id" validate:"required,uuid"`
	OrganizerID string    `json:"organizer_id" validate:"required,uuid"`
	PriceCents  int64     `json:"price_cents" validate:"gte=0"`
	FeeCents    int64     `json:"platform_fee_cents" validate:"gte=0"`
	Currency    string    `json:"currency" validate:"required,len=3"`
	PurchasedAt time.Time `json:"purchased_at" validate:"required"`
	EventEndsAt time.Time `json:"event_ends_at" validate:"required"`
}

func (h *Handler) RecordTicketSale(c *fiber.Ctx) error {
	var req TicketSaleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	earnings, recorded, err := h.Earnings.RecordConfirmedSale(c.UserContext(), services.ConfirmedSale{
		TicketID:    uuid.MustParse(req.TicketID),
		EventID:     uuid.MustParse(req.EventID),
		OrganizerID: uuid.MustParse(req.OrganizerID),
		PriceCents:  req.PriceCents,
		FeeCents:    req.FeeCents,
		Currency:    req.Currency,
		PurchasedAt: req.PurchasedAt.UTC(),
		EventEndsAt: req.EventEndsAt.UTC(),
	})
	if err != nil {
		return err
	}
	status := fiber.StatusCreated
	if !recorded {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{"status": "success", "recorded": recorded, "earnings": earnings})
}
