package handlers

import (
	"github.com/edlight123/eventhaiti-payouts/models"
	"github.com/edlight123/eventhaiti-payouts/services"
	"github.com/gofiber/fiber/v2"
)

type BankDestinationRequest struct {
	BankName      string `json:"bank_name" validate:"required,max=255"`
	AccountName   string `json:"account_name" validate:"max=255"`
	AccountHolder string `json:"account_holder" validate:"required,max=255"`
	AccountNumber string `json:"account_number" validate:"required"`
	RoutingNumber string `json:"routing_number"`
	SwiftCode     string `json:"swift_code"`
	IBAN          string `json:"iban"`
}

func (r BankDestinationRequest) input() services.BankDestinationInput {
	return services.BankDestinationInput{
		BankName:    r.BankName,
		AccountName: r.AccountName,
		Details: services.BankDetails{
			AccountHolder: r.AccountHolder,
			AccountNumber: r.AccountNumber,
			RoutingNumber: r.RoutingNumber,
			SwiftCode:     r.SwiftCode,
			IBAN:          r.IBAN,
		},
	}
}

type MobileMoneyDestinationRequest struct {
	Provider      string `json:"provider"`
	AccountHolder string `json:"account_holder" validate:"required,max=255"`
	PhoneNumber   string `json:"phone_number" validate:"required"`
	MakePrimary   bool   `json:"make_primary"`
}

// VerificationRequest carries evidence references, typically the Cloudinary URL of an
// uploaded document under "proof".
type VerificationRequest struct {
	DestinationID string            `json:"destination_id"`
	Evidence      map[string]string `json:"evidence" validate:"required,min=1"`
}

func (h *Handler) ListDestinations(c *fiber.Ctx) error {
	destinations, err := h.Destinations.ListDestinations(c.UserContext(), principal(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": destinations})
}

func (h *Handler) UpsertPrimaryBankDestination(c *fiber.Ctx) error {
	var req BankDestinationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	dest, err := h.Destinations.UpsertPrimaryBankDestination(c.UserContext(), principal(c).ID, req.input())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "destination": dest})
}

func (h *Handler) AddBankDestination(c *fiber.Ctx) error {
	var req BankDestinationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	dest, err := h.Destinations.AddSecondaryBankDestination(c.UserContext(), principal(c).ID, req.input())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "success", "destination": dest})
}

func (h *Handler) UpsertMobileMoneyDestination(c *fiber.Ctx) error {
	var req MobileMoneyDestinationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	dest, err := h.Destinations.UpsertMobileMoneyDestination(c.UserContext(), principal(c).ID, services.MobileMoneyInput{
		Provider:    req.Provider,
		MakePrimary: req.MakePrimary,
		Details: services.MobileMoneyDetails{
			AccountHolder: req.AccountHolder,
			PhoneNumber:   req.PhoneNumber,
		},
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "destination": dest})
}

// SubmitBankVerification submits proof for one bank destination.
func (h *Handler) SubmitBankVerification(c *fiber.Ctx) error {
	destinationID, err := uuidParam(c, "destinationId", "destination_id")
	if err != nil {
		return err
	}
	var req VerificationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	doc, err := h.Verifications.SubmitVerification(c.UserContext(), principal(c).ID, services.VerificationSubmission{
		Type:          models.VerificationBank,
		DestinationID: &destinationID,
		Evidence:      req.Evidence,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": string(doc.Status), "verification": doc})
}

func (h *Handler) SubmitVerification(c *fiber.Ctx) error {
	vType, err := services.ParseVerificationType(c.Params("type"))
	if err != nil {
		return err
	}
	var req VerificationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	destinationID, err := optionalUUID(req.DestinationID, "destination_id")
	if err != nil {
		return err
	}
	doc, err := h.Verifications.SubmitVerification(c.UserContext(), principal(c).ID, services.VerificationSubmission{
		Type:          vType,
		DestinationID: destinationID,
		Evidence:      req.Evidence,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": string(doc.Status), "verification": doc})
}
