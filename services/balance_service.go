package services

import (
	"context"
	"fmt"
	"time"

	"github.com/edlight123/eventhaiti-payouts/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const defaultCurrency = "HTG"

// inFlightPayoutStatuses hold reserved funds. Approved requests still reserve their amount
// although only pending and processing block a new request.
var inFlightPayoutStatuses = []models.PayoutStatus{
	models.PayoutPending,
	models.PayoutProcessing,
	models.PayoutApproved,
}

type Balance struct {
	OrganizerID uuid.UUID `json:"organizer_id"`
	Available   int64     `json:"available"`
	Currency    string    `json:"currency"`
	Ready       int64     `json:"ready"`
	Reserved    int64     `json:"reserved"`
	OnHold      int64     `json:"on_hold"`
	ReadyEvents int       `json:"ready_events"`
}

// AvailableTickets is the snapshot backing a payout. TotalAmount is the reserved amount,
// split across events by Allocations.
type AvailableTickets struct {
	Tickets     []models.Ticket          `json:"tickets"`
	Allocations []models.EventAllocation `json:"allocations"`
	TotalAmount int64                    `json:"total_amount"`
	Currency    string                   `json:"currency"`
	PeriodStart *time.Time               `json:"period_start,omitempty"`
	PeriodEnd   *time.Time               `json:"period_end,omitempty"`
}

// TicketIDs returns the snapshot ids in purchase order.
func (a AvailableTickets) TicketIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(a.Tickets))
	for _, t := range a.Tickets {
		ids = append(ids, t.ID)
	}
	return ids
}

type BalanceService struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewBalanceService(db *gorm.DB, log zerolog.Logger) *BalanceService {
	return &BalanceService{db: db, log: log.With().Str("component", "balance").Logger()}
}

func (s *BalanceService) GetOrganizerBalance(ctx context.Context, organizerID uuid.UUID) (Balance, error) {
	return computeBalance(s.db.WithContext(ctx), organizerID)
}

func (s *BalanceService) GetAvailableTicketsForPayout(ctx context.Context, organizerID uuid.UUID) (AvailableTickets, error) {
	db := s.db.WithContext(ctx)
	balance, err := computeBalance(db, organizerID)
	if err != nil {
		return AvailableTickets{}, err
	}
	return availableTickets(db, organizerID, balance)
}

// computeBalance sums ready earnings in the organizer's payout currency and subtracts
// amounts reserved by in-flight payout requests. Callers that reserve funds pass a
// transaction holding the organizer profile lock.
func computeBalance(db *gorm.DB, organizerID uuid.UUID) (Balance, error) {
	var earnings []models.EventEarnings
	if err := db.Where("organizer_id = ?", organizerID).Find(&earnings).Error; err != nil {
		return Balance{}, fmt.Errorf("load event earnings: %w", err)
	}

	balance := Balance{OrganizerID: organizerID, Currency: payoutCurrencyFor(earnings)}
	for _, e := range earnings {
		if e.Currency != balance.Currency {
			continue
		}
		if e.SettlementStatus == models.SettlementReady {
			balance.Ready += availableMinor(e)
			balance.ReadyEvents++
		} else {
			balance.OnHold += availableMinor(e)
		}
	}

	var inFlight []models.PayoutRequest
	err := db.Select("amount", "amount_unit", "currency").
		Where("organizer_id = ? AND status IN ?", organizerID, inFlightPayoutStatuses).
		Find(&inFlight).Error
	if err != nil {
		return Balance{}, fmt.Errorf("load in-flight payouts: %w", err)
	}
	for _, p := range inFlight {
		if p.Currency == balance.Currency {
			balance.Reserved += NormalizeAmount(p.Amount, p.AmountUnit)
		}
	}

	balance.Available = balance.Ready - balance.Reserved
	if balance.Available < 0 {
		balance.Available = 0
	}
	return balance, nil
}

// payoutCurrencyFor picks the currency holding the most ready money.
func payoutCurrencyFor(earnings []models.EventEarnings) string {
	totals := map[string]int64{}
	best := ""
	for _, e := range earnings {
		if e.SettlementStatus != models.SettlementReady {
			continue
		}
		totals[e.Currency] += availableMinor(e)
		if best == "" || totals[e.Currency] > totals[best] {
			best = e.Currency
		}
	}
	if best == "" {
		if len(earnings) > 0 {
			return earnings[0].Currency
		}
		return defaultCurrency
	}
	return best
}

// availableTickets picks the ready events backing balance.Available, oldest ready date
// first, and returns their tickets that no live payout request has snapshotted yet.
// Amounts already allocated to in-flight requests are skipped, so TotalAmount always
// equals balance.Available. Cancelled requests release their tickets.
func availableTickets(db *gorm.DB, organizerID uuid.UUID, balance Balance) (AvailableTickets, error) {
	result := AvailableTickets{
		Tickets:     []models.Ticket{},
		Allocations: []models.EventAllocation{},
		Currency:    balance.Currency,
	}
	if balance.Available <= 0 {
		return result, nil
	}

	var ready []models.EventEarnings
	err := db.Where("organizer_id = ? AND settlement_status = ? AND currency = ? AND available_to_withdraw > 0",
		organizerID, models.SettlementReady, balance.Currency).
		Order("settlement_ready_date ASC, event_id ASC").
		Find(&ready).Error
	if err != nil {
		return result, fmt.Errorf("load ready events: %w", err)
	}

	var live []models.PayoutRequest
	err = db.Select("amount", "amount_unit", "currency", "status", "ticket_ids", "allocations").
		Where("organizer_id = ? AND status <> ?", organizerID, models.PayoutCancelled).
		Find(&live).Error
	if err != nil {
		return result, fmt.Errorf("load claimed tickets: %w", err)
	}

	taken := make(map[uuid.UUID]struct{})
	reservedOn := make(map[uuid.UUID]int64)
	var unallocated int64
	for _, p := range live {
		for _, id := range p.TicketIDList() {
			taken[id] = struct{}{}
		}
		if p.Status == models.PayoutCompleted || p.Currency != balance.Currency {
			continue
		}
		allocations := p.AllocationList()
		if len(allocations) == 0 {
			unallocated += NormalizeAmount(p.Amount, p.AmountUnit)
			continue
		}
		for _, a := range allocations {
			reservedOn[a.EventID] += a.Amount
		}
	}

	budget := balance.Available
	var events []uuid.UUID
	for _, e := range ready {
		if budget <= 0 {
			break
		}
		free := availableMinor(e) - reservedOn[e.EventID]
		if unallocated > 0 && free > 0 {
			skip := free
			if skip > unallocated {
				skip = unallocated
			}
			free -= skip
			unallocated -= skip
		}
		if free <= 0 {
			continue
		}
		if free > budget {
			free = budget
		}
		result.Allocations = append(result.Allocations, models.EventAllocation{EventID: e.EventID, Amount: free})
		result.TotalAmount += free
		budget -= free
		events = append(events, e.EventID)
	}
	if len(events) == 0 {
		return result, nil
	}

	var tickets []models.Ticket
	err = db.Where("organizer_id = ? AND event_id IN ? AND status = ?", organizerID, events, models.TicketStatusConfirmed).
		Order("purchased_at ASC").
		Find(&tickets).Error
	if err != nil {
		return result, fmt.Errorf("load tickets: %w", err)
	}

	for _, t := range tickets {
		if _, ok := taken[t.ID]; ok {
			continue
		}
		result.Tickets = append(result.Tickets, t)

		purchased := t.PurchasedAt
		if result.PeriodStart == nil || purchased.Before(*result.PeriodStart) {
			result.PeriodStart = &purchased
		}
		if result.PeriodEnd == nil || purchased.After(*result.PeriodEnd) {
			result.PeriodEnd = &purchased
		}
	}
	return result, nil
}
