package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/edlight123/eventhaiti-payouts/database"
	"github.com/edlight123/eventhaiti-payouts/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConfirmedSale struct {
	TicketID    uuid.UUID
	EventID     uuid.UUID
	OrganizerID uuid.UUID
	PriceCents  int64
	FeeCents    int64
	Currency    string
	PurchasedAt time.Time
	EventEndsAt time.Time
}

func (s ConfirmedSale) validate() error {
	switch {
	case s.TicketID == uuid.Nil:
		return invalid("ticket_id", "is required")
	case s.EventID == uuid.Nil:
		return invalid("event_id", "is required")
	case s.OrganizerID == uuid.Nil:
		return invalid("organizer_id", "is required")
	case s.PriceCents < 0:
		return invalid("price_cents", "cannot be negative")
	case s.FeeCents < 0 || s.FeeCents > s.PriceCents:
		return invalid("fee_cents", "must be between 0 and the ticket price")
	case len(s.Currency) != 3:
		return invalid("currency", "must be a 3-letter ISO code")
	case s.PurchasedAt.IsZero():
		return invalid("purchased_at", "is required")
	}
	return nil
}

type EarningsService struct {
	db     *gorm.DB
	config *PlatformConfigService
	log    zerolog.Logger
}

func NewEarningsService(db *gorm.DB, config *PlatformConfigService, log zerolog.Logger) *EarningsService {
	return &EarningsService{
		db:     db,
		config: config,
		log:    log.With().Str("component", "earnings").Logger(),
	}
}

// RecordConfirmedSale adds a confirmed ticket to its event's earnings. Replaying a ticket
// that is already recorded returns the current earnings and recorded=false.
func (s *EarningsService) RecordConfirmedSale(ctx context.Context, sale ConfirmedSale) (earnings models.EventEarnings, recorded bool, err error) {
	if err := sale.validate(); err != nil {
		return models.EventEarnings{}, false, err
	}
	sale.Currency = strings.ToUpper(sale.Currency)

	cfg, err := s.config.Get(ctx)
	if err != nil {
		return models.EventEarnings{}, false, err
	}

	readyFrom := sale.EventEndsAt
	if readyFrom.Before(sale.PurchasedAt) {
		readyFrom = sale.PurchasedAt
	}
	readyDate := readyFrom.UTC().AddDate(0, 0, cfg.SettlementHoldDays)

	err = database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		recorded = false

		ticket := models.Ticket{
			ID:          sale.TicketID,
			EventID:     sale.EventID,
			OrganizerID: sale.OrganizerID,
			PriceCents:  sale.PriceCents,
			FeeCents:    sale.FeeCents,
			Currency:    sale.Currency,
			Status:      models.TicketStatusConfirmed,
			PurchasedAt: sale.PurchasedAt.UTC(),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ticket)
		if res.Error != nil {
			return fmt.Errorf("insert ticket: %w", res.Error)
		}

		seed := models.EventEarnings{
			EventID:             sale.EventID,
			OrganizerID:         sale.OrganizerID,
			Currency:            sale.Currency,
			AmountUnit:          models.AmountUnitMinor,
			SettlementStatus:    models.SettlementPending,
			SettlementReadyDate: readyDate,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return fmt.Errorf("create event earnings: %w", err)
		}

		current, err := lockEarnings(tx, sale.EventID)
		if err != nil {
			return err
		}
		earnings = current

		if res.RowsAffected == 0 {
			return nil
		}
		if current.OrganizerID != sale.OrganizerID {
			return &ConflictError{Resource: "event earnings", Action: "record sale", Current: "owned by another organizer"}
		}
		if current.Currency != sale.Currency {
			return invalid("currency", fmt.Sprintf("event earnings are in %s", current.Currency))
		}

		net := sale.PriceCents - sale.FeeCents
		earnings.GrossAmount += sale.PriceCents
		earnings.PlatformFee += sale.FeeCents
		earnings.NetAmount += net
		earnings.TicketCount++
		if earnings.SettlementStatus == models.SettlementPending && readyDate.After(earnings.SettlementReadyDate) {
			earnings.SettlementReadyDate = readyDate
		}
		earnings.Recalculate()
		if err := tx.Save(&earnings).Error; err != nil {
			return fmt.Errorf("save event earnings: %w", err)
		}

		recorded = true
		return nil
	})
	if err != nil {
		return models.EventEarnings{}, false, err
	}

	if recorded {
		s.log.Info().
			Str("event_id", sale.EventID.String()).
			Str("ticket_id", sale.TicketID.String()).
			Int64("net_cents", sale.PriceCents-sale.FeeCents).
			Msg("confirmed sale recorded")
	}
	return earnings, recorded, nil
}

// LockEarnings holds an event's earnings until the given date. The settlement repair scan
// releases them once that date passes.
func (s *EarningsService) LockEarnings(ctx context.Context, adminID, eventID uuid.UUID, until time.Time, reason string) (models.EventEarnings, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.EventEarnings{}, invalid("reason", "is required")
	}
	if until.IsZero() {
		return models.EventEarnings{}, invalid("until", "is required")
	}

	var earnings models.EventEarnings
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		current, err := lockEarnings(tx, eventID)
		if err != nil {
			return err
		}
		from := current.SettlementStatus

		current.SettlementStatus = models.SettlementLocked
		current.SettlementReadyDate = until.UTC()
		current.LockReason = strPtr(reason)
		if err := tx.Save(&current).Error; err != nil {
			return fmt.Errorf("lock event earnings: %w", err)
		}
		earnings = current

		return recordAudit(tx, auditEntityEarnings, eventID, "lock", actorRef(adminID), string(from), string(models.SettlementLocked),
			map[string]interface{}{"reason": reason, "until": until.UTC()})
	})
	if err != nil {
		return models.EventEarnings{}, err
	}

	s.log.Info().Str("event_id", eventID.String()).Time("until", until).Msg("event earnings locked")
	return earnings, nil
}
