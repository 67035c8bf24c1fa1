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

type WithdrawalAction string

const (
	WithdrawalApprove  WithdrawalAction = "approve"
	WithdrawalReject   WithdrawalAction = "reject"
	WithdrawalComplete WithdrawalAction = "complete"
	WithdrawalFail     WithdrawalAction = "fail"
)

type withdrawalTransition struct {
	from   []models.WithdrawalStatus
	to     models.WithdrawalStatus
	refund bool
}

var withdrawalTransitions = map[WithdrawalAction]withdrawalTransition{
	WithdrawalApprove:  {from: []models.WithdrawalStatus{models.WithdrawalPending}, to: models.WithdrawalProcessing},
	WithdrawalReject:   {from: []models.WithdrawalStatus{models.WithdrawalPending}, to: models.WithdrawalFailed, refund: true},
	WithdrawalComplete: {from: []models.WithdrawalStatus{models.WithdrawalProcessing}, to: models.WithdrawalCompleted},
	WithdrawalFail:     {from: []models.WithdrawalStatus{models.WithdrawalPending, models.WithdrawalProcessing}, to: models.WithdrawalFailed, refund: true},
}

type WithdrawalService struct {
	db       *gorm.DB
	quotes   *QuoteService
	config   *PlatformConfigService
	notifier AdminNotifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewWithdrawalService(db *gorm.DB, quotes *QuoteService, config *PlatformConfigService, notifier AdminNotifier, log zerolog.Logger) *WithdrawalService {
	return &WithdrawalService{
		db:       db,
		quotes:   quotes,
		config:   config,
		notifier: notifierOrNoop(notifier),
		log:      log.With().Str("component", "withdrawals").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type WithdrawalInput struct {
	EventID uuid.UUID
	Amount  int64
	Method  string
}

// CreateWithdrawal reserves amount out of one event's ready earnings. Instant withdrawals
// are priced before the transaction so no external call runs while rows are locked.
func (s *WithdrawalService) CreateWithdrawal(ctx context.Context, organizerID uuid.UUID, in WithdrawalInput) (models.Withdrawal, error) {
	in.Method = strings.ToLower(strings.TrimSpace(in.Method))
	switch {
	case in.EventID == uuid.Nil:
		return models.Withdrawal{}, invalid("event_id", "is required")
	case in.Amount <= 0:
		return models.Withdrawal{}, invalid("amount", "must be positive")
	case in.Method != models.WithdrawalMethodBank && in.Method != models.WithdrawalMethodMoncashInstant:
		return models.Withdrawal{}, invalid("method", "must be bank or moncash_instant")
	}

	var quote *Quote
	if in.Method == models.WithdrawalMethodMoncashInstant {
		q, err := s.instantQuote(ctx, organizerID, in)
		if err != nil {
			return models.Withdrawal{}, err
		}
		quote = &q
	}

	var withdrawal models.Withdrawal
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		profile, err := lockProfile(tx, organizerID)
		if err != nil {
			return err
		}
		if profile.PayoutStatus != models.PayoutStatusActive {
			return &AccountNotActiveError{Status: string(profile.PayoutStatus)}
		}
		if quote != nil && !profile.AllowInstantMoncash {
			return &ConflictError{Resource: "instant payouts", Action: "withdraw instantly", Current: "disabled for this account"}
		}

		earnings, err := lockEarnings(tx, in.EventID)
		if err != nil {
			return err
		}
		if earnings.OrganizerID != organizerID {
			return notFound("event earnings")
		}
		if earnings.SettlementStatus != models.SettlementReady {
			return &ConflictError{Resource: "event earnings", Action: "withdraw", Current: string(earnings.SettlementStatus)}
		}
		if in.Amount > earnings.AvailableToWithdraw {
			return &InsufficientBalanceError{Available: earnings.AvailableToWithdraw, Requested: in.Amount, Currency: earnings.Currency}
		}

		balance, err := computeBalance(tx, organizerID)
		if err != nil {
			return err
		}
		if balance.Currency == earnings.Currency && in.Amount > balance.Available {
			return &InsufficientBalanceError{Available: balance.Available, Requested: in.Amount, Currency: balance.Currency}
		}

		earnings.WithdrawnAmount += in.Amount
		earnings.Recalculate()
		if err := tx.Save(&earnings).Error; err != nil {
			return fmt.Errorf("reserve earnings: %w", err)
		}

		withdrawal = models.Withdrawal{
			OrganizerID:       organizerID,
			EventID:           in.EventID,
			Amount:            in.Amount,
			AmountUnit:        models.AmountUnitMinor,
			Currency:          earnings.Currency,
			Method:            in.Method,
			Status:            models.WithdrawalPending,
			PayoutAmountCents: in.Amount,
			PayoutCurrency:    earnings.Currency,
		}
		if quote != nil {
			withdrawal.FeeCents = quote.FeeCents
			withdrawal.PayoutAmountCents = quote.PayoutAmountCents
			withdrawal.PayoutCurrency = quote.PayoutCurrency
			withdrawal.ExchangeRate = quote.ExchangeRate
		}
		if err := tx.Create(&withdrawal).Error; err != nil {
			return fmt.Errorf("create withdrawal: %w", err)
		}
		return recordAudit(tx, auditEntityWithdrawal, withdrawal.ID, "create", actorRef(organizerID), "", string(models.WithdrawalPending),
			map[string]interface{}{"amount": in.Amount, "method": in.Method, "event_id": in.EventID})
	})
	if err != nil {
		return models.Withdrawal{}, err
	}

	s.log.Info().
		Str("withdrawal_id", withdrawal.ID.String()).
		Str("event_id", in.EventID.String()).
		Int64("amount", in.Amount).
		Str("method", in.Method).
		Msg("withdrawal created")
	s.notifier.NotifyAdmins(notifications.AdminEvent{
		Type:        notifications.EventWithdrawalCreated,
		OrganizerID: organizerID,
		EntityID:    withdrawal.ID,
		Status:      string(withdrawal.Status),
		Message:     fmt.Sprintf("Withdrawal of %s via %s", FormatMinor(withdrawal.Amount, withdrawal.Currency), withdrawal.Method),
	})
	return withdrawal, nil
}

func (s *WithdrawalService) instantQuote(ctx context.Context, organizerID uuid.UUID, in WithdrawalInput) (Quote, error) {
	if s.quotes == nil {
		return Quote{}, &ConflictError{Resource: "instant payouts", Action: "withdraw instantly", Current: "not configured"}
	}
	db := s.db.WithContext(ctx)

	var earnings models.EventEarnings
	err := db.First(&earnings, "event_id = ? AND organizer_id = ?", in.EventID, organizerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Quote{}, notFound("event earnings")
	}
	if err != nil {
		return Quote{}, fmt.Errorf("load event earnings: %w", err)
	}

	var profile models.OrganizerProfile
	if err := db.First(&profile, "organizer_id = ?", organizerID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return Quote{}, fmt.Errorf("load organizer profile: %w", err)
	}
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return Quote{}, err
	}

	q := s.quotes.price(ctx, earnings, in.Amount, profile.AllowInstantMoncash, cfg)
	if !q.InstantAvailable {
		return Quote{}, &ConflictError{Resource: "instant payout", Action: "withdraw instantly", Current: "unavailable (" + q.UnavailableReason + ")"}
	}
	return q, nil
}

// UpdateWithdrawal applies an admin action. Reject and fail hand the reserved amount back
// to the event and reset its settlement to ready.
func (s *WithdrawalService) UpdateWithdrawal(ctx context.Context, adminID, withdrawalID uuid.UUID, action WithdrawalAction, note string) (models.Withdrawal, error) {
	transition, ok := withdrawalTransitions[action]
	if !ok {
		return models.Withdrawal{}, invalid("action", "must be approve, reject, complete or fail")
	}
	note = strings.TrimSpace(note)

	now := s.now()
	var withdrawal models.Withdrawal
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		var current models.Withdrawal
		err := tx.Clauses(forUpdate).First(&current, "id = ?", withdrawalID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("withdrawal")
		}
		if err != nil {
			return fmt.Errorf("load withdrawal: %w", err)
		}
		from := current.Status

		allowed := false
		for _, st := range transition.from {
			if st == from {
				allowed = true
				break
			}
		}
		if !allowed {
			return &ConflictError{Kind: ErrInvalidTransition, Resource: "withdrawal", Action: string(action), Current: string(from)}
		}

		if transition.refund {
			if err := s.refund(tx, current); err != nil {
				return err
			}
		}

		current.Status = transition.to
		current.ProcessedBy = actorRef(adminID)
		current.ProcessedAt = &now
		if transition.to == models.WithdrawalCompleted {
			current.CompletedAt = &now
		}
		if note != "" {
			current.Note = &note
		}
		if err := tx.Save(&current).Error; err != nil {
			return fmt.Errorf("save withdrawal: %w", err)
		}
		withdrawal = current

		return recordAudit(tx, auditEntityWithdrawal, current.ID, string(action), actorRef(adminID),
			string(from), string(transition.to), map[string]interface{}{"note": note, "refunded": transition.refund})
	})
	if err != nil {
		return models.Withdrawal{}, err
	}

	s.log.Info().
		Str("withdrawal_id", withdrawalID.String()).
		Str("action", string(action)).
		Str("status", string(withdrawal.Status)).
		Msg("withdrawal updated")
	s.notifier.NotifyAdmins(notifications.AdminEvent{
		Type:        notifications.EventWithdrawalUpdated,
		OrganizerID: withdrawal.OrganizerID,
		EntityID:    withdrawal.ID,
		Status:      string(withdrawal.Status),
		Message:     fmt.Sprintf("Withdrawal %s", action),
	})
	return withdrawal, nil
}

// refund returns a withdrawal's normalized amount to its event. A refund larger than
// what was withdrawn is clamped so withdrawn never goes negative.
func (s *WithdrawalService) refund(tx *gorm.DB, w models.Withdrawal) error {
	earnings, err := lockEarnings(tx, w.EventID)
	if err != nil {
		return err
	}

	amount := NormalizeAmount(w.Amount, w.AmountUnit)
	if amount > earnings.WithdrawnAmount {
		s.log.Warn().
			Str("withdrawal_id", w.ID.String()).
			Int64("refund", amount).
			Int64("withdrawn", earnings.WithdrawnAmount).
			Msg("refund exceeds withdrawn amount, clamping")
		amount = earnings.WithdrawnAmount
	}

	earnings.WithdrawnAmount -= amount
	earnings.SettlementStatus = models.SettlementReady
	earnings.LockReason = nil
	earnings.Recalculate()
	if err := tx.Save(&earnings).Error; err != nil {
		return fmt.Errorf("refund earnings: %w", err)
	}
	return nil
}

func (s *WithdrawalService) ListOrganizerWithdrawals(ctx context.Context, organizerID uuid.UUID) ([]models.Withdrawal, error) {
	withdrawals := []models.Withdrawal{}
	err := s.db.WithContext(ctx).Where("organizer_id = ?", organizerID).Order("created_at DESC").Find(&withdrawals).Error
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	return withdrawals, nil
}
