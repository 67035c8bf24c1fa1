package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/edlight123/eventhaiti-payouts/database"
	"github.com/edlight123/eventhaiti-payouts/models"
	"github.com/edlight123/eventhaiti-payouts/notifications"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VerificationService struct {
	db       *gorm.DB
	notifier AdminNotifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewVerificationService(db *gorm.DB, notifier AdminNotifier, log zerolog.Logger) *VerificationService {
	return &VerificationService{
		db:       db,
		notifier: notifierOrNoop(notifier),
		log:      log.With().Str("component", "verification").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type VerificationSubmission struct {
	Type          models.VerificationType
	DestinationID *uuid.UUID
	Evidence      map[string]string
}

func ParseVerificationType(raw string) (models.VerificationType, error) {
	switch t := models.VerificationType(strings.ToLower(strings.TrimSpace(raw))); t {
	case models.VerificationIdentity, models.VerificationBank, models.VerificationPhone:
		return t, nil
	default:
		return "", invalid("type", "must be identity, bank or phone")
	}
}

func destinationKey(t models.VerificationType, destinationID *uuid.UUID) string {
	if t == models.VerificationBank && destinationID != nil {
		return destinationID.String()
	}
	return ""
}

// SubmitVerification stores the document as pending, recomputes the organizer's payout
// status and notifies admins without waiting for delivery.
func (s *VerificationService) SubmitVerification(ctx context.Context, organizerID uuid.UUID, sub VerificationSubmission) (models.VerificationDocument, error) {
	if _, err := ParseVerificationType(string(sub.Type)); err != nil {
		return models.VerificationDocument{}, err
	}
	if sub.Type == models.VerificationBank && sub.DestinationID == nil {
		return models.VerificationDocument{}, invalid("destination_id", "is required for bank verification")
	}
	if len(sub.Evidence) == 0 {
		return models.VerificationDocument{}, invalid("evidence", "is required")
	}
	evidence, err := json.Marshal(sub.Evidence)
	if err != nil {
		return models.VerificationDocument{}, invalid("evidence", "is not serializable")
	}

	now := s.now()
	var doc models.VerificationDocument
	err = database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if sub.DestinationID != nil {
			var count int64
			err := tx.Model(&models.PayoutDestination{}).
				Where("id = ? AND organizer_id = ?", *sub.DestinationID, organizerID).
				Count(&count).Error
			if err != nil {
				return fmt.Errorf("check destination: %w", err)
			}
			if count == 0 {
				return notFound("payout destination")
			}
		}

		doc = models.VerificationDocument{
			OrganizerID:    organizerID,
			Type:           sub.Type,
			DestinationKey: destinationKey(sub.Type, sub.DestinationID),
			Status:         models.VerificationPending,
			Evidence:       datatypes.JSON(evidence),
			SubmittedAt:    now,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "organizer_id"}, {Name: "type"}, {Name: "destination_key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"status":           models.VerificationPending,
				"evidence":         datatypes.JSON(evidence),
				"submitted_at":     now,
				"reviewed_at":      nil,
				"reviewed_by":      nil,
				"rejection_reason": nil,
				"updated_at":       now,
			}),
		}).Create(&doc).Error
		if err != nil {
			return fmt.Errorf("store verification document: %w", err)
		}

		err = tx.Where("organizer_id = ? AND type = ? AND destination_key = ?", organizerID, doc.Type, doc.DestinationKey).
			First(&doc).Error
		if err != nil {
			return err
		}
		_, err = recomputePayoutStatus(tx, organizerID, now)
		return err
	})
	if err != nil {
		return models.VerificationDocument{}, err
	}

	s.log.Info().Str("organizer_id", organizerID.String()).Str("type", string(doc.Type)).Msg("verification submitted")
	s.notifier.NotifyAdmins(notifications.AdminEvent{
		Type:        notifications.EventVerificationSubmitted,
		OrganizerID: organizerID,
		EntityID:    doc.ID,
		Status:      string(doc.Status),
		Message:     fmt.Sprintf("New %s verification submitted for review", doc.Type),
		OccurredAt:  now,
	})
	return doc, nil
}

type VerificationReview struct {
	Type          models.VerificationType
	DestinationID *uuid.UUID
	Approve       bool
	Reason        string
}

func (s *VerificationService) ReviewVerification(ctx context.Context, adminID, organizerID uuid.UUID, review VerificationReview) (models.VerificationDocument, models.OrganizerPayoutStatus, error) {
	if _, err := ParseVerificationType(string(review.Type)); err != nil {
		return models.VerificationDocument{}, "", err
	}
	review.Reason = strings.TrimSpace(review.Reason)
	if !review.Approve && review.Reason == "" {
		return models.VerificationDocument{}, "", invalid("reason", "is required when rejecting")
	}

	now := s.now()
	var (
		doc    models.VerificationDocument
		status models.OrganizerPayoutStatus
	)
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		err := tx.Clauses(forUpdate).
			Where("organizer_id = ? AND type = ? AND destination_key = ?", organizerID, review.Type, destinationKey(review.Type, review.DestinationID)).
			First(&doc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("verification document")
		}
		if err != nil {
			return err
		}

		doc.ReviewedAt = &now
		doc.ReviewedBy = actorRef(adminID)
		if review.Approve {
			doc.Status = models.VerificationVerified
			doc.RejectionReason = nil
		} else {
			doc.Status = models.VerificationRejected
			doc.RejectionReason = strPtr(review.Reason)
		}
		if err := tx.Save(&doc).Error; err != nil {
			return fmt.Errorf("save verification review: %w", err)
		}

		status, err = recomputePayoutStatus(tx, organizerID, now)
		return err
	})
	if err != nil {
		return models.VerificationDocument{}, "", err
	}

	s.log.Info().
		Str("organizer_id", organizerID.String()).
		Str("type", string(doc.Type)).
		Str("status", string(doc.Status)).
		Str("payout_status", string(status)).
		Msg("verification reviewed")
	return doc, status, nil
}

// RecomputePayoutStatus is idempotent: the same destinations, documents and hold flag
// always produce the same status.
func (s *VerificationService) RecomputePayoutStatus(ctx context.Context, organizerID uuid.UUID) (models.OrganizerPayoutStatus, error) {
	var status models.OrganizerPayoutStatus
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		status, err = recomputePayoutStatus(tx, organizerID, s.now())
		return err
	})
	return status, err
}

func (s *VerificationService) SetManualHold(ctx context.Context, adminID, organizerID uuid.UUID, hold bool, reason string) (models.OrganizerProfile, error) {
	reason = strings.TrimSpace(reason)
	if hold && reason == "" {
		return models.OrganizerProfile{}, invalid("reason", "is required when placing a hold")
	}

	now := s.now()
	var profile models.OrganizerProfile
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		current, err := lockProfile(tx, organizerID)
		if err != nil {
			return err
		}
		from := current.PayoutStatus

		current.ManualHold = hold
		current.HoldReason = nil
		if hold {
			current.HoldReason = strPtr(reason)
		}
		if err := tx.Save(&current).Error; err != nil {
			return fmt.Errorf("save hold flag: %w", err)
		}
		status, err := recomputePayoutStatus(tx, organizerID, now)
		if err != nil {
			return err
		}

		action := "release_hold"
		if hold {
			action = "hold"
		}
		if err := recordAudit(tx, auditEntityProfile, organizerID, action, actorRef(adminID), string(from), string(status),
			map[string]interface{}{"reason": reason}); err != nil {
			return err
		}
		return tx.First(&profile, "organizer_id = ?", organizerID).Error
	})
	return profile, err
}

func (s *VerificationService) SetInstantPayouts(ctx context.Context, adminID, organizerID uuid.UUID, allow bool) (models.OrganizerProfile, error) {
	var profile models.OrganizerProfile
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		current, err := lockProfile(tx, organizerID)
		if err != nil {
			return err
		}
		current.AllowInstantMoncash = allow
		if err := tx.Save(&current).Error; err != nil {
			return fmt.Errorf("save instant payout flag: %w", err)
		}
		profile = current
		return recordAudit(tx, auditEntityProfile, organizerID, "instant_payouts", actorRef(adminID), "", "",
			map[string]interface{}{"allow_instant_moncash": allow})
	})
	return profile, err
}

type PayoutStatusView struct {
	OrganizerID         uuid.UUID                     `json:"organizer_id"`
	Status              models.OrganizerPayoutStatus  `json:"status"`
	ManualHold          bool                          `json:"manual_hold"`
	HoldReason          *string                       `json:"hold_reason,omitempty"`
	AllowInstantMoncash bool                          `json:"allow_instant_moncash"`
	Verifications       []models.VerificationDocument `json:"verifications"`
}

func (s *VerificationService) GetPayoutStatus(ctx context.Context, organizerID uuid.UUID) (PayoutStatusView, error) {
	db := s.db.WithContext(ctx)
	view := PayoutStatusView{OrganizerID: organizerID, Status: models.PayoutStatusNotSetup, Verifications: []models.VerificationDocument{}}

	var profile models.OrganizerProfile
	err := db.First(&profile, "organizer_id = ?", organizerID).Error
	switch {
	case err == nil:
		view.Status = profile.PayoutStatus
		view.ManualHold = profile.ManualHold
		view.HoldReason = profile.HoldReason
		view.AllowInstantMoncash = profile.AllowInstantMoncash
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return view, fmt.Errorf("load organizer profile: %w", err)
	}

	if err := db.Where("organizer_id = ?", organizerID).Order("type, destination_key").Find(&view.Verifications).Error; err != nil {
		return view, fmt.Errorf("load verification documents: %w", err)
	}
	return view, nil
}

// recomputePayoutStatus locks the profile, derives the status from the primary destination
// and the current documents, and stores it when it changed.
func recomputePayoutStatus(tx *gorm.DB, organizerID uuid.UUID, now time.Time) (models.OrganizerPayoutStatus, error) {
	profile, err := lockProfile(tx, organizerID)
	if err != nil {
		return "", err
	}

	var primary *models.PayoutDestination
	var dest models.PayoutDestination
	err = tx.Where("organizer_id = ? AND is_primary = ?", organizerID, true).First(&dest).Error
	switch {
	case err == nil:
		primary = &dest
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return "", fmt.Errorf("load primary destination: %w", err)
	}

	var docs []models.VerificationDocument
	if err := tx.Where("organizer_id = ?", organizerID).Find(&docs).Error; err != nil {
		return "", fmt.Errorf("load verification documents: %w", err)
	}

	status := DerivePayoutStatus(profile.ManualHold, primary, docs)
	if status == profile.PayoutStatus {
		return status, nil
	}

	err = tx.Model(&models.OrganizerProfile{}).
		Where("organizer_id = ?", organizerID).
		Updates(map[string]interface{}{"payout_status": status, "status_updated_at": now}).Error
	if err != nil {
		return "", fmt.Errorf("update payout status: %w", err)
	}
	return status, nil
}

// RequiredVerifications lists what must be verified before the destination can be paid.
func RequiredVerifications(primary models.PayoutDestination) []models.VerificationType {
	if primary.Type == models.DestinationTypeMobileMoney {
		return []models.VerificationType{models.VerificationIdentity, models.VerificationPhone}
	}
	return []models.VerificationType{models.VerificationIdentity, models.VerificationBank}
}

// DerivePayoutStatus maps destinations and documents to a payout status. A manual hold
// wins over everything else.
func DerivePayoutStatus(manualHold bool, primary *models.PayoutDestination, docs []models.VerificationDocument) models.OrganizerPayoutStatus {
	if manualHold {
		return models.PayoutStatusOnHold
	}
	if primary == nil {
		return models.PayoutStatusNotSetup
	}

	for _, required := range RequiredVerifications(*primary) {
		key := ""
		if required == models.VerificationBank {
			key = primary.ID.String()
		}
		verified := false
		for _, d := range docs {
			if d.Type == required && d.DestinationKey == key && d.Status == models.VerificationVerified {
				verified = true
				break
			}
		}
		if !verified {
			return models.PayoutStatusPendingVerification
		}
	}
	return models.PayoutStatusActive
}
