package models

import (
	"time"

	"github.com/google/uuid"
)

type SettlementStatus string

const (
	SettlementLocked  SettlementStatus = "locked"
	SettlementPending SettlementStatus = "pending"
	SettlementReady   SettlementStatus = "ready"
)

// AmountUnitMinor tags amounts stored in the currency's smallest unit. Rows written
// before the tag existed carry an empty unit.
const (
	AmountUnitMinor = "minor"
	AmountUnitMajor = "major"
)

// EventEarnings is the per-event revenue record. WithdrawnAmount never exceeds NetAmount.
type EventEarnings struct {
	EventID             uuid.UUID        `gorm:"type:uuid;primary_key" json:"event_id"`
	OrganizerID         uuid.UUID        `gorm:"type:uuid;not null;index" json:"organizer_id"`
	GrossAmount         int64            `gorm:"not null;default:0" json:"gross_amount"`
	PlatformFee         int64            `gorm:"not null;default:0" json:"platform_fee"`
	NetAmount           int64            `gorm:"not null;default:0" json:"net_amount"`
	WithdrawnAmount     int64            `gorm:"not null;default:0" json:"withdrawn_amount"`
	AvailableToWithdraw int64            `gorm:"not null;default:0" json:"available_to_withdraw"`
	Currency            string           `gorm:"size:3;not null" json:"currency"`
	AmountUnit          string           `gorm:"size:10;not null;default:'minor'" json:"amount_unit"`
	SettlementStatus    SettlementStatus `gorm:"size:20;not null;index" json:"settlement_status"`
	SettlementReadyDate time.Time        `gorm:"not null;index" json:"settlement_ready_date"`
	LockReason          *string          `gorm:"type:text" json:"lock_reason,omitempty"`
	TicketCount         int64            `gorm:"not null;default:0" json:"ticket_count"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

func (EventEarnings) TableName() string {
	return "event_earnings"
}

// Recalculate refreshes the derived AvailableToWithdraw.
func (e *EventEarnings) Recalculate() {
	available := e.NetAmount - e.WithdrawnAmount
	if available < 0 {
		available = 0
	}
	e.AvailableToWithdraw = available
}

// Withdrawable is AvailableToWithdraw when settlement is ready and zero otherwise.
func (e EventEarnings) Withdrawable() int64 {
	if e.SettlementStatus != SettlementReady {
		return 0
	}
	return e.AvailableToWithdraw
}
