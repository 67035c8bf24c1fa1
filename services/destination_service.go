package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/edlight123/eventhaiti-payouts/database"
	"github.com/edlight123/eventhaiti-payouts/models"
	"github.com/edlight123/eventhaiti-payouts/secrets"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	accountNumberPattern = regexp.MustCompile(`^[0-9]{4,34}$`)
	phonePattern         = regexp.MustCompile(`^\+?[0-9]{8,15}$`)
)

// BankDetails is the sealed payload of a bank destination.
type BankDetails struct {
	AccountHolder string `json:"account_holder"`
	AccountNumber string `json:"account_number"`
	RoutingNumber string `json:"routing_number,omitempty"`
	SwiftCode     string `json:"swift_code,omitempty"`
	IBAN          string `json:"iban,omitempty"`
}

type BankDestinationInput struct {
	BankName    string
	AccountName string
	Details     BankDetails
}

func (in *BankDestinationInput) normalize() error {
	in.BankName = strings.TrimSpace(in.BankName)
	in.AccountName = strings.TrimSpace(in.AccountName)
	in.Details.AccountHolder = strings.TrimSpace(in.Details.AccountHolder)
	in.Details.AccountNumber = strings.ReplaceAll(strings.TrimSpace(in.Details.AccountNumber), " ", "")
	in.Details.SwiftCode = strings.ToUpper(strings.TrimSpace(in.Details.SwiftCode))
	in.Details.IBAN = strings.ToUpper(strings.ReplaceAll(in.Details.IBAN, " ", ""))

	switch {
	case in.BankName == "":
		return invalid("bank_name", "is required")
	case in.Details.AccountHolder == "":
		return invalid("account_holder", "is required")
	case !accountNumberPattern.MatchString(in.Details.AccountNumber):
		return invalid("account_number", "must be 4 to 34 digits")
	}
	if in.AccountName == "" {
		in.AccountName = in.Details.AccountHolder
	}
	return nil
}

// MobileMoneyDetails is the sealed payload of a mobile-money destination.
type MobileMoneyDetails struct {
	AccountHolder string `json:"account_holder"`
	PhoneNumber   string `json:"phone_number"`
}

type MobileMoneyInput struct {
	Provider    string
	Details     MobileMoneyDetails
	MakePrimary bool
}

// DecryptedDestination is only produced for verification review and payout execution.
type DecryptedDestination struct {
	Destination models.PayoutDestination `json:"destination"`
	Bank        *BankDetails             `json:"bank,omitempty"`
	MobileMoney *MobileMoneyDetails      `json:"mobile_money,omitempty"`
}

// DestinationService stores payout destinations with their sensitive fields sealed.
type DestinationService struct {
	db     *gorm.DB
	sealer secrets.Sealer
	log    zerolog.Logger
	now    func() time.Time
}

func NewDestinationService(db *gorm.DB, sealer secrets.Sealer, log zerolog.Logger) *DestinationService {
	return &DestinationService{
		db:     db,
		sealer: sealer,
		log:    log.With().Str("component", "destinations").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *DestinationService) seal(v interface{}) (string, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return s.sealer.Seal(plain)
}

// UpsertPrimaryBankDestination creates or edits the organizer's primary bank account.
// Changing the account number voids an existing bank verification for it.
func (s *DestinationService) UpsertPrimaryBankDestination(ctx context.Context, organizerID uuid.UUID, in BankDestinationInput) (models.PayoutDestination, error) {
	if err := in.normalize(); err != nil {
		return models.PayoutDestination{}, err
	}
	sealed, err := s.seal(in.Details)
	if err != nil {
		return models.PayoutDestination{}, fmt.Errorf("seal bank details: %w", err)
	}

	now := s.now()
	var dest models.PayoutDestination
	err = database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := lockProfile(tx, organizerID); err != nil {
			return err
		}

		err := tx.Where("organizer_id = ? AND type = ? AND is_primary = ?", organizerID, models.DestinationTypeBank, true).
			First(&dest).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := demotePrimary(tx, organizerID); err != nil {
				return err
			}
			dest = models.PayoutDestination{
				OrganizerID: organizerID,
				Type:        models.DestinationTypeBank,
				IsPrimary:   true,
			}
		case err != nil:
			return fmt.Errorf("load primary destination: %w", err)
		default:
			if !s.sameAccount(dest, in.Details.AccountNumber) {
				if err := voidBankVerification(tx, organizerID, dest.ID, now); err != nil {
					return err
				}
			}
		}

		dest.BankName = in.BankName
		dest.AccountName = in.AccountName
		dest.AccountNumberLast4 = last4(in.Details.AccountNumber)
		dest.SealedDetails = sealed
		if err := tx.Save(&dest).Error; err != nil {
			return fmt.Errorf("save primary destination: %w", err)
		}

		_, err = recomputePayoutStatus(tx, organizerID, now)
		return err
	})
	if err != nil {
		return models.PayoutDestination{}, err
	}

	s.log.Info().Str("organizer_id", organizerID.String()).Str("destination_id", dest.ID.String()).Msg("primary bank destination saved")
	return dest, nil
}

func (s *DestinationService) sameAccount(dest models.PayoutDestination, accountNumber string) bool {
	plain, err := s.sealer.Open(dest.SealedDetails)
	if err != nil {
		return false
	}
	var details BankDetails
	if err := json.Unmarshal(plain, &details); err != nil {
		return false
	}
	return details.AccountNumber == accountNumber
}

func (s *DestinationService) AddSecondaryBankDestination(ctx context.Context, organizerID uuid.UUID, in BankDestinationInput) (models.PayoutDestination, error) {
	if err := in.normalize(); err != nil {
		return models.PayoutDestination{}, err
	}
	sealed, err := s.seal(in.Details)
	if err != nil {
		return models.PayoutDestination{}, fmt.Errorf("seal bank details: %w", err)
	}

	dest := models.PayoutDestination{
		OrganizerID:        organizerID,
		Type:               models.DestinationTypeBank,
		BankName:           in.BankName,
		AccountName:        in.AccountName,
		AccountNumberLast4: last4(in.Details.AccountNumber),
		SealedDetails:      sealed,
	}
	if err := s.db.WithContext(ctx).Create(&dest).Error; err != nil {
		return models.PayoutDestination{}, fmt.Errorf("create destination: %w", err)
	}
	return dest, nil
}

// UpsertMobileMoneyDestination keeps one mobile-money destination per organizer.
func (s *DestinationService) UpsertMobileMoneyDestination(ctx context.Context, organizerID uuid.UUID, in MobileMoneyInput) (models.PayoutDestination, error) {
	in.Provider = strings.ToLower(strings.TrimSpace(in.Provider))
	if in.Provider == "" {
		in.Provider = "moncash"
	}
	in.Details.AccountHolder = strings.TrimSpace(in.Details.AccountHolder)
	in.Details.PhoneNumber = strings.ReplaceAll(strings.TrimSpace(in.Details.PhoneNumber), " ", "")
	if in.Details.AccountHolder == "" {
		return models.PayoutDestination{}, invalid("account_holder", "is required")
	}
	if !phonePattern.MatchString(in.Details.PhoneNumber) {
		return models.PayoutDestination{}, invalid("phone_number", "must be 8 to 15 digits")
	}
	sealed, err := s.seal(in.Details)
	if err != nil {
		return models.PayoutDestination{}, fmt.Errorf("seal mobile money details: %w", err)
	}

	now := s.now()
	var dest models.PayoutDestination
	err = database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := lockProfile(tx, organizerID); err != nil {
			return err
		}

		err := tx.Where("organizer_id = ? AND type = ?", organizerID, models.DestinationTypeMobileMoney).First(&dest).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			dest = models.PayoutDestination{OrganizerID: organizerID, Type: models.DestinationTypeMobileMoney}
		case err != nil:
			return fmt.Errorf("load mobile money destination: %w", err)
		}

		if in.MakePrimary && !dest.IsPrimary {
			if err := demotePrimary(tx, organizerID); err != nil {
				return err
			}
			dest.IsPrimary = true
		}
		dest.Provider = in.Provider
		dest.AccountName = in.Details.AccountHolder
		dest.AccountNumberLast4 = last4(in.Details.PhoneNumber)
		dest.SealedDetails = sealed
		if err := tx.Save(&dest).Error; err != nil {
			return fmt.Errorf("save mobile money destination: %w", err)
		}

		_, err = recomputePayoutStatus(tx, organizerID, now)
		return err
	})
	if err != nil {
		return models.PayoutDestination{}, err
	}
	return dest, nil
}

// ListBankDestinations returns masked metadata only. SealedDetails is never serialized.
func (s *DestinationService) ListBankDestinations(ctx context.Context, organizerID uuid.UUID) ([]models.PayoutDestination, error) {
	return s.list(ctx, organizerID, models.DestinationTypeBank)
}

func (s *DestinationService) ListDestinations(ctx context.Context, organizerID uuid.UUID) ([]models.PayoutDestination, error) {
	return s.list(ctx, organizerID, "")
}

func (s *DestinationService) list(ctx context.Context, organizerID uuid.UUID, destType string) ([]models.PayoutDestination, error) {
	q := s.db.WithContext(ctx).
		Select("id", "organizer_id", "type", "bank_name", "provider", "account_name", "account_number_last4", "is_primary", "created_at", "updated_at").
		Where("organizer_id = ?", organizerID)
	if destType != "" {
		q = q.Where("type = ?", destType)
	}

	destinations := []models.PayoutDestination{}
	if err := q.Order("is_primary DESC, created_at ASC").Find(&destinations).Error; err != nil {
		return nil, fmt.Errorf("list destinations: %w", err)
	}
	return destinations, nil
}

// GetDecryptedBankDestination opens one destination's sealed payload. Callers are limited
// to admin verification review and payout execution.
func (s *DestinationService) GetDecryptedBankDestination(ctx context.Context, organizerID, destinationID uuid.UUID) (DecryptedDestination, error) {
	var dest models.PayoutDestination
	err := s.db.WithContext(ctx).Where("id = ? AND organizer_id = ?", destinationID, organizerID).First(&dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DecryptedDestination{}, notFound("payout destination")
	}
	if err != nil {
		return DecryptedDestination{}, fmt.Errorf("load destination: %w", err)
	}

	plain, err := s.sealer.Open(dest.SealedDetails)
	if err != nil {
		s.log.Error().Err(err).Str("destination_id", destinationID.String()).Msg("cannot open sealed destination")
		return DecryptedDestination{}, fmt.Errorf("open destination details: %w", err)
	}

	out := DecryptedDestination{Destination: dest}
	if dest.Type == models.DestinationTypeMobileMoney {
		out.MobileMoney = &MobileMoneyDetails{}
		err = json.Unmarshal(plain, out.MobileMoney)
	} else {
		out.Bank = &BankDetails{}
		err = json.Unmarshal(plain, out.Bank)
	}
	if err != nil {
		return DecryptedDestination{}, fmt.Errorf("decode destination details: %w", err)
	}

	s.log.Info().Str("destination_id", destinationID.String()).Msg("destination details decrypted")
	return out, nil
}

func demotePrimary(tx *gorm.DB, organizerID uuid.UUID) error {
	err := tx.Model(&models.PayoutDestination{}).
		Where("organizer_id = ? AND is_primary = ?", organizerID, true).
		Update("is_primary", false).Error
	if err != nil {
		return fmt.Errorf("demote primary destination: %w", err)
	}
	return nil
}

func voidBankVerification(tx *gorm.DB, organizerID, destinationID uuid.UUID, now time.Time) error {
	err := tx.Model(&models.VerificationDocument{}).
		Where("organizer_id = ? AND type = ? AND destination_key = ? AND status <> ?",
			organizerID, models.VerificationBank, destinationID.String(), models.VerificationRejected).
		Updates(map[string]interface{}{
			"status":           models.VerificationRejected,
			"rejection_reason": "destination details changed",
			"reviewed_at":      now,
		}).Error
	if err != nil {
		return fmt.Errorf("void bank verification: %w", err)
	}
	return nil
}

func last4(s string) string {
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}
