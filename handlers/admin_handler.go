package handlers

import (
	"errors"
	"time"

	"github.com/edlight123/eventhaiti-payouts/models"
	"github.com/edlight123/eventhaiti-payouts/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type DeclinePayoutRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type CompletePayoutRequest struct {
	PaymentReferenceID string `json:"payment_reference_id" validate:"required,max=255"`
}

type UpdateWithdrawalRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject complete fail"`
	Note   string `json:"note" validate:"max=1000"`
}

type ReviewVerificationRequest struct {
	Approve       *bool  `json:"approve" validate:"required"`
	Reason        string `json:"reason" validate:"max=1000"`
	DestinationID string `json:"destination_id"`
}

type ManualHoldRequest struct {
	Hold   *bool  `json:"hold" validate:"required"`
	Reason string `json:"reason" validate:"max=1000"`
}

type InstantPayoutsRequest struct {
	Allow *bool `json:"allow" validate:"required"`
}

type PlatformConfigRequest struct {
	SettlementHoldDays *int   `json:"settlement_hold_days" validate:"omitempty,min=0"`
	MinimumPayoutCents *int64 `json:"minimum_payout_cents" validate:"omitempty,min=0"`
	PrefundingEnabled  *bool  `json:"prefunding_enabled"`
}

type LockEarningsRequest struct {
	Until  time.Time `json:"until" validate:"required"`
	Reason string    `json:"reason" validate:"required,max=1000"`
}

// payoutTarget reads the organizer and payout ids shared by every admin payout route.
func payoutTarget(c *fiber.Ctx) (organizerID, payoutID uuid.UUID, err error) {
	if organizerID, err = uuidParam(c, "organizerId", "organizer_id"); err != nil {
		return
	}
	payoutID, err = uuidParam(c, "payoutId", "payout_id")
	return
}

func (h *Handler) ListPayouts(c *fiber.Ctx) error {
	payouts, err := h.Payouts.ListPayouts(c.UserContext(), c.Query("status"), c.QueryInt("limit", 50))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": payouts})
}

func (h *Handler) ApprovePayout(c *fiber.Ctx) error {
	organizerID, payoutID, err := payoutTarget(c)
	if err != nil {
		return err
	}
	payout, err := h.Payouts.ApprovePayout(c.UserContext(), principal(c).ID, organizerID, payoutID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "payout": payout})
}

func (h *Handler) DeclinePayout(c *fiber.Ctx) error {
	organizerID, payoutID, err := payoutTarget(c)
	if err != nil {
		return err
	}
	var req DeclinePayoutRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.Payouts.DeclinePayout(c.UserContext(), principal(c).ID, organizerID, payoutID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "payout": result.Payout, "idempotent": result.Idempotent})
}

func (h *Handler) MarkPayoutPaid(c *fiber.Ctx) error {
	organizerID, payoutID, err := payoutTarget(c)
	if err != nil {
		return err
	}
	var req CompletePayoutRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	payout, err := h.Payouts.MarkPaid(c.UserContext(), principal(c).ID, organizerID, payoutID, req.PaymentReferenceID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "payout": payout})
}

func (h *Handler) StartPayoutProcessing(c *fiber.Ctx) error {
	organizerID, payoutID, err := payoutTarget(c)
	if err != nil {
		return err
	}
	payout, err := h.Payouts.StartProcessing(c.UserContext(), principal(c).ID, organizerID, payoutID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "payout": payout})
}

func (h *Handler) CompletePayoutProcessing(c *fiber.Ctx) error {
	organizerID, payoutID, err := payoutTarget(c)
	if err != nil {
		return err
	}
	var req CompletePayoutRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	payout, err := h.Payouts.CompleteProcessing(c.UserContext(), principal(c).ID, organizerID, payoutID, req.PaymentReferenceID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "payout": payout})
}

// UpdateWithdrawal reports an invalid transition as a 400, unlike payout transitions.
func (h *Handler) UpdateWithdrawal(c *fiber.Ctx) error {
	withdrawalID, err := uuidParam(c, "withdrawalId", "withdrawal_id")
	if err != nil {
		return err
	}
	var req UpdateWithdrawalRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	withdrawal, err := h.Withdrawals.UpdateWithdrawal(c.UserContext(), principal(c).ID, withdrawalID,
		services.WithdrawalAction(req.Action), req.Note)
	if errors.Is(err, services.ErrInvalidTransition) {
		_, body := errorBody(err)
		return c.Status(fiber.StatusBadRequest).JSON(body)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "success": true, "withdrawal": withdrawal})
}

func (h *Handler) ReviewVerification(c *fiber.Ctx) error {
	organizerID, err := uuidParam(c, "organizerId", "organizer_id")
	if err != nil {
		return err
	}
	vType, err := services.ParseVerificationType(c.Params("type"))
	if err != nil {
		return err
	}
	var req ReviewVerificationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	destinationID, err := optionalUUID(req.DestinationID, "destination_id")
	if err != nil {
		return err
	}
	if vType == models.VerificationBank && destinationID == nil {
		return &services.ValidationError{Field: "destination_id", Message: "is required for bank verification"}
	}

	doc, payoutStatus, err := h.Verifications.ReviewVerification(c.UserContext(), principal(c).ID, organizerID, services.VerificationReview{
		Type:          vType,
		DestinationID: destinationID,
		Approve:       *req.Approve,
		Reason:        req.Reason,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "verification": doc, "payout_status": payoutStatus})
}

// GetDestinationDetails returns decrypted account details for verification review.
func (h *Handler) GetDestinationDetails(c *fiber.Ctx) error {
	organizerID, err := uuidParam(c, "organizerId", "organizer_id")
	if err != nil {
		return err
	}
	destinationID, err := uuidParam(c, "destinationId", "destination_id")
	if err != nil {
		return err
	}
	dest, err := h.Destinations.GetDecryptedBankDestination(c.UserContext(), organizerID, destinationID)
	if err != nil {
		return err
	}
	h.log.Info().
		Str("admin_id", principal(c).ID.String()).
		Str("destination_id", destinationID.String()).
		Msg("admin viewed destination details")
	return c.JSON(fiber.Map{"status": "success", "data": dest})
}

func (h *Handler) SetManualHold(c *fiber.Ctx) error {
	organizerID, err := uuidParam(c, "organizerId", "organizer_id")
	if err != nil {
		return err
	}
	var req ManualHoldRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	profile, err := h.Verifications.SetManualHold(c.UserContext(), principal(c).ID, organizerID, *req.Hold, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "profile": profile})
}

func (h *Handler) SetInstantPayouts(c *fiber.Ctx) error {
	organizerID, err := uuidParam(c, "organizerId", "organizer_id")
	if err != nil {
		return err
	}
	var req InstantPayoutsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	profile, err := h.Verifications.SetInstantPayouts(c.UserContext(), principal(c).ID, organizerID, *req.Allow)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "profile": profile})
}

func (h *Handler) GetPlatformConfig(c *fiber.Ctx) error {
	cfg, err := h.PlatformConfig.Get(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": cfg})
}

func (h *Handler) UpdatePlatformConfig(c *fiber.Ctx) error {
	var req PlatformConfigRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	cfg, err := h.PlatformConfig.Update(c.UserContext(), services.UpdatePlatformConfigInput{
		SettlementHoldDays: req.SettlementHoldDays,
		MinimumPayoutCents: req.MinimumPayoutCents,
		PrefundingEnabled:  req.PrefundingEnabled,
	})
	if err != nil {
		return err
	}
	h.log.Info().Str("admin_id", principal(c).ID.String()).Msg("platform payout config updated")
	return c.JSON(fiber.Map{"status": "success", "data": cfg})
}

// RefreshPrefunding runs the prefunding balance check on demand. A failed check
// still returns the stored config, which now reports the pool unavailable.
func (h *Handler) RefreshPrefunding(c *fiber.Ctx) error {
	cfg, err := h.Prefunding.Refresh(c.UserContext())
	if err != nil && !errors.Is(err, services.ErrExternalDependency) {
		return err
	}
	body := fiber.Map{"status": "success", "data": cfg}
	if err != nil {
		body["warning"] = err.Error()
	}
	return c.JSON(body)
}

func (h *Handler) RunSettlement(c *fiber.Ctx) error {
	report, err := h.Settlement.Run(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": report})
}

func (h *Handler) LockEventEarnings(c *fiber.Ctx) error {
	eventID, err := uuidParam(c, "eventId", "event_id")
	if err != nil {
		return err
	}
	var req LockEarningsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	earnings, err := h.Earnings.LockEarnings(c.UserContext(), principal(c).ID, eventID, req.Until.UTC(), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": earnings})
}
