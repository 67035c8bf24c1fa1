package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/edlight123/eventhaiti-payouts/database"
	"github.com/edlight123/eventhaiti-payouts/models"
	"github.com/edlight123/eventhaiti-payouts/notifications"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// blockingPayoutStatuses allow no second request for the same organizer.
var blockingPayoutStatuses = []models.PayoutStatus{models.PayoutPending, models.PayoutProcessing}

type PayoutService struct {
	db       *gorm.DB
	config   *PlatformConfigService
	notifier AdminNotifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewPayoutService(db *gorm.DB, config *PlatformConfigService, notifier AdminNotifier, log zerolog.Logger) *PayoutService {
	return &PayoutService{
		db:       db,
		config:   config,
		notifier: notifierOrNoop(notifier),
		log:      log.With().Str("component", "payouts").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RequestPayout reserves the organizer's whole available balance in a new pending
// request. The organizer profile row lock serializes concurrent requests so only one can
// pass the in-progress check.
func (s *PayoutService) RequestPayout(ctx context.Context, organizerID uuid.UUID) (models.PayoutRequest, error) {
	if organizerID == uuid.Nil {
		return models.PayoutRequest{}, invalid("organizer_id", "is required")
	}
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return models.PayoutRequest{}, err
	}

	now := s.now()
	var payout models.PayoutRequest
	err = database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		profile, err := lockProfile(tx, organizerID)
		if err != nil {
			return err
		}

		var existing models.PayoutRequest
		err = tx.Select("id", "status").
			Where("organizer_id = ? AND status IN ?", organizerID, blockingPayoutStatuses).
			Order("created_at ASC").
			First(&existing).Error
		switch {
		case err == nil:
			return &PayoutInProgressError{PayoutID: existing.ID.String(), Status: string(existing.Status)}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("check in-flight payouts: %w", err)
		}

		balance, err := computeBalance(tx, organizerID)
		if err != nil {
			return err
		}
		if balance.Available <= 0 || balance.Available < cfg.MinimumPayoutCents {
			return &InsufficientBalanceError{Available: balance.Available, Minimum: cfg.MinimumPayoutCents, Currency: balance.Currency}
		}

		if profile.PayoutStatus != models.PayoutStatusActive {
			return &AccountNotActiveError{Status: string(profile.PayoutStatus)}
		}

		tickets, err := availableTickets(tx, organizerID, balance)
		if err != nil {
			return err
		}
		if tickets.TotalAmount != balance.Available {
			return fmt.Errorf("payout snapshot covers %d of %d available", tickets.TotalAmount, balance.Available)
		}

		payout = models.PayoutRequest{
			OrganizerID:   organizerID,
			Amount:        tickets.TotalAmount,
			AmountUnit:    models.AmountUnitMinor,
			Currency:      balance.Currency,
			Status:        models.PayoutPending,
			Method:        models.DestinationTypeBank,
			ScheduledDate: now,
			PeriodStart:   tickets.PeriodStart,
			PeriodEnd:     tickets.PeriodEnd,
		}
		if err := payout.SetTicketIDs(tickets.TicketIDs()); err != nil {
			return err
		}
		if err := payout.SetAllocations(tickets.Allocations); err != nil {
			return err
		}

		var primary models.PayoutDestination
		err = tx.Select("id", "type").Where("organizer_id = ? AND is_primary = ?", organizerID, true).First(&primary).Error
		switch {
		case err == nil:
			payout.DestinationID = &primary.ID
			payout.Method = primary.Type
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("load primary destination: %w", err)
		}

		if err := tx.Create(&payout).Error; err != nil {
			return fmt.Errorf("create payout request: %w", err)
		}
		return recordAudit(tx, auditEntityPayout, payout.ID, "request", actorRef(organizerID), "", string(models.PayoutPending),
			map[string]interface{}{"amount": payout.Amount, "currency": payout.Currency, "tickets": len(tickets.Tickets)})
	})
	if err != nil {
		return models.PayoutRequest{}, err
	}

	s.log.Info().
		Str("organizer_id", organizerID.String()).
		Str("payout_id", payout.ID.String()).
		Int64("amount", payout.Amount).
		Str("currency", payout.Currency).
		Msg("payout requested")
	s.notify(notifications.EventPayoutRequested, payout,
		fmt.Sprintf("Payout of %s requested", FormatMinor(payout.Amount, payout.Currency)))
	return payout, nil
}

type DeclineResult struct {
	Payout     models.PayoutRequest `json:"payout"`
	Idempotent bool                 `json:"idempotent"`
}

// DeclinePayout cancels a pending request. Declining an already cancelled request is a
// no-op reported as idempotent.
func (s *PayoutService) DeclinePayout(ctx context.Context, adminID, organizerID, payoutID uuid.UUID, reason string) (DeclineResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return DeclineResult{}, invalid("reason", "is required")
	}

	now := s.now()
	var result DeclineResult
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		result = DeclineResult{}
		payout, err := lockPayout(tx, organizerID, payoutID)
		if err != nil {
			return err
		}

		if payout.Status == models.PayoutCancelled {
			result = DeclineResult{Payout: payout, Idempotent: true}
			return nil
		}
		if payout.Status != models.PayoutPending {
			return &ConflictError{Kind: ErrConflict, Resource: "payout", Action: "decline", Current: string(payout.Status)}
		}

		payout.Status = models.PayoutCancelled
		payout.DeclinedBy = actorRef(adminID)
		payout.DeclinedAt = &now
		payout.DeclineReason = &reason
		if err := tx.Save(&payout).Error; err != nil {
			return fmt.Errorf("save payout: %w", err)
		}
		result.Payout = payout
		return recordAudit(tx, auditEntityPayout, payout.ID, "decline", actorRef(adminID),
			string(models.PayoutPending), string(models.PayoutCancelled), map[string]interface{}{"reason": reason})
	})
	if err != nil {
		return DeclineResult{}, err
	}

	if !result.Idempotent {
		s.log.Info().Str("payout_id", payoutID.String()).Str("admin_id", adminID.String()).Msg("payout declined")
		s.notify(notifications.EventPayoutUpdated, result.Payout, "Payout declined: "+reason)
	}
	return result, nil
}

// MarkPaid completes a pending or approved request against external proof of transfer.
func (s *PayoutService) MarkPaid(ctx context.Context, adminID, organizerID, payoutID uuid.UUID, paymentReferenceID string) (models.PayoutRequest, error) {
	return s.complete(ctx, adminID, organizerID, payoutID, paymentReferenceID, "mark paid",
		models.PayoutPending, models.PayoutApproved)
}

// CompleteProcessing finishes a request that went through the processing state.
func (s *PayoutService) CompleteProcessing(ctx context.Context, adminID, organizerID, payoutID uuid.UUID, paymentReferenceID string) (models.PayoutRequest, error) {
	return s.complete(ctx, adminID, organizerID, payoutID, paymentReferenceID, "complete",
		models.PayoutProcessing)
}

func (s *PayoutService) complete(ctx context.Context, adminID, organizerID, payoutID uuid.UUID, reference, action string, allowed ...models.PayoutStatus) (models.PayoutRequest, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return models.PayoutRequest{}, invalid("payment_reference_id", "is required")
	}

	now := s.now()
	var payout models.PayoutRequest
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		current, err := lockPayout(tx, organizerID, payoutID)
		if err != nil {
			return err
		}
		from := current.Status

		if from == models.PayoutCompleted {
			return &ConflictError{Kind: ErrAlreadyPaid, Resource: "payout", Action: action, Current: string(from)}
		}
		if !statusIn(from, allowed) {
			return &ConflictError{Kind: ErrInvalidTransition, Resource: "payout", Action: action, Current: string(from)}
		}

		if _, err := lockProfile(tx, organizerID); err != nil {
			return err
		}
		if err := s.consumeEarnings(tx, current); err != nil {
			return err
		}

		current.Status = models.PayoutCompleted
		current.CompletedAt = &now
		current.PaymentReferenceID = &reference
		if err := tx.Save(&current).Error; err != nil {
			return fmt.Errorf("save payout: %w", err)
		}
		payout = current
		return recordAudit(tx, auditEntityPayout, current.ID, strings.ReplaceAll(action, " ", "_"), actorRef(adminID),
			string(from), string(models.PayoutCompleted), map[string]interface{}{"payment_reference_id": reference})
	})
	if err != nil {
		return models.PayoutRequest{}, err
	}

	s.log.Info().Str("payout_id", payoutID.String()).Str("reference", reference).Msg("payout completed")
	s.notify(notifications.EventPayoutUpdated, payout, "Payout completed")
	return payout, nil
}

// ApprovePayout moves a pending request to approved. Approving twice is a no-op.
func (s *PayoutService) ApprovePayout(ctx context.Context, adminID, organizerID, payoutID uuid.UUID) (models.PayoutRequest, error) {
	now := s.now()
	changed := false
	var payout models.PayoutRequest
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		changed = false
		current, err := lockPayout(tx, organizerID, payoutID)
		if err != nil {
			return err
		}
		payout = current

		switch current.Status {
		case models.PayoutApproved:
			return nil
		case models.PayoutPending:
		default:
			return &ConflictError{Kind: ErrInvalidTransition, Resource: "payout", Action: "approve", Current: string(current.Status)}
		}

		current.Status = models.PayoutApproved
		current.ApprovedBy = actorRef(adminID)
		current.ApprovedAt = &now
		if err := tx.Save(&current).Error; err != nil {
			return fmt.Errorf("save payout: %w", err)
		}
		payout = current
		changed = true
		return recordAudit(tx, auditEntityPayout, current.ID, "approve", actorRef(adminID),
			string(models.PayoutPending), string(models.PayoutApproved), nil)
	})
	if err != nil {
		return models.PayoutRequest{}, err
	}

	if changed {
		s.log.Info().Str("payout_id", payoutID.String()).Msg("payout approved")
		s.notify(notifications.EventPayoutUpdated, payout, "Payout approved")
	}
	return payout, nil
}

// StartProcessing hands a pending or approved request to the transfer step.
func (s *PayoutService) StartProcessing(ctx context.Context, adminID, organizerID, payoutID uuid.UUID) (models.PayoutRequest, error) {
	var payout models.PayoutRequest
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		current, err := lockPayout(tx, organizerID, payoutID)
		if err != nil {
			return err
		}
		from := current.Status
		if from != models.PayoutPending && from != models.PayoutApproved {
			return &ConflictError{Kind: ErrInvalidTransition, Resource: "payout", Action: "start processing", Current: string(from)}
		}

		current.Status = models.PayoutProcessing
		if err := tx.Save(&current).Error; err != nil {
			return fmt.Errorf("save payout: %w", err)
		}
		payout = current
		return recordAudit(tx, auditEntityPayout, current.ID, "process", actorRef(adminID),
			string(from), string(models.PayoutProcessing), nil)
	})
	if err != nil {
		return models.PayoutRequest{}, err
	}

	s.notify(notifications.EventPayoutUpdated, payout, "Payout processing")
	return payout, nil
}

func (s *PayoutService) ListOrganizerPayouts(ctx context.Context, organizerID uuid.UUID) ([]models.PayoutRequest, error) {
	payouts := []models.PayoutRequest{}
	err := s.db.WithContext(ctx).
		Where("organizer_id = ?", organizerID).
		Order("created_at DESC").
		Find(&payouts).Error
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	return payouts, nil
}

// ListPayouts is the admin queue, optionally filtered by status.
func (s *PayoutService) ListPayouts(ctx context.Context, status string, limit int) ([]models.PayoutRequest, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Order("created_at ASC").Limit(limit)
	if status != "" {
		switch st := models.PayoutStatus(status); st {
		case models.PayoutPending, models.PayoutProcessing, models.PayoutApproved, models.PayoutCompleted, models.PayoutCancelled:
			q = q.Where("status = ?", st)
		default:
			return nil, invalid("status", "unknown payout status")
		}
	}

	payouts := []models.PayoutRequest{}
	if err := q.Find(&payouts).Error; err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	return payouts, nil
}

// consumeEarnings debits a completed payout from the events it was allocated to,
// whatever their settlement status. A lock placed after the request keeps the
// reservation. Any shortfall is taken from ready earnings, oldest ready date
// first. A payout that still cannot be covered fails so the completion rolls back.
func (s *PayoutService) consumeEarnings(tx *gorm.DB, payout models.PayoutRequest) error {
	remaining := NormalizeAmount(payout.Amount, payout.AmountUnit)

	for _, a := range payout.AllocationList() {
		if remaining <= 0 {
			break
		}
		e, err := lockEarnings(tx, a.EventID)
		if err != nil {
			return err
		}
		if e.OrganizerID != payout.OrganizerID || e.Currency != payout.Currency {
			continue
		}
		take := a.Amount
		if take > remaining {
			take = remaining
		}
		taken, err := debitEarnings(tx, &e, take)
		if err != nil {
			return err
		}
		remaining -= taken
	}
	if remaining <= 0 {
		return nil
	}

	var ready []models.EventEarnings
	err := tx.Clauses(forUpdate).
		Where("organizer_id = ? AND settlement_status = ? AND currency = ? AND available_to_withdraw > 0",
			payout.OrganizerID, models.SettlementReady, payout.Currency).
		Order("settlement_ready_date ASC, event_id ASC").
		Find(&ready).Error
	if err != nil {
		return fmt.Errorf("load earnings to consume: %w", err)
	}
	for i := range ready {
		if remaining <= 0 {
			break
		}
		e := &ready[i]
		toMinorUnits(e)
		taken, err := debitEarnings(tx, e, remaining)
		if err != nil {
			return err
		}
		remaining -= taken
	}

	if remaining > 0 {
		s.log.Error().
			Str("payout_id", payout.ID.String()).
			Int64("unmatched", remaining).
			Msg("payout exceeds its earnings, completion refused")
		return &ConflictError{Resource: "payout", Action: "complete", Current: "not covered by event earnings"}
	}
	return nil
}

// debitEarnings moves up to amount minor units of e into withdrawn and returns what it took.
func debitEarnings(tx *gorm.DB, e *models.EventEarnings, amount int64) (int64, error) {
	take := e.AvailableToWithdraw
	if take > amount {
		take = amount
	}
	if take <= 0 {
		return 0, nil
	}
	e.WithdrawnAmount += take
	e.Recalculate()
	if err := tx.Save(e).Error; err != nil {
		return 0, fmt.Errorf("consume earnings for event %s: %w", e.EventID, err)
	}
	return take, nil
}

func (s *PayoutService) notify(t notifications.EventType, payout models.PayoutRequest, message string) {
	s.notifier.NotifyAdmins(notifications.AdminEvent{
		Type:        t,
		OrganizerID: payout.OrganizerID,
		EntityID:    payout.ID,
		Status:      string(payout.Status),
		Message:     message,
	})
}

func lockPayout(tx *gorm.DB, organizerID, payoutID uuid.UUID) (models.PayoutRequest, error) {
	var payout models.PayoutRequest
	err := tx.Clauses(forUpdate).
		Where("id = ? AND organizer_id = ?", payoutID, organizerID).
		First(&payout).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return payout, notFound("payout request")
	}
	if err != nil {
		return payout, fmt.Errorf("load payout request: %w", err)
	}
	return payout, nil
}

func statusIn(s models.PayoutStatus, allowed []models.PayoutStatus) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
