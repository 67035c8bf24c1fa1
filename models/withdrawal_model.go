package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalFailed     WithdrawalStatus = "failed"
)

const (
	WithdrawalMethodBank           = "bank"
	WithdrawalMethodMoncashInstant = "moncash_instant"
)

// Withdrawal is a per-event withdrawal attempt. Its amount is reserved in
// EventEarnings.WithdrawnAmount from creation until it fails or is rejected.
type Withdrawal struct {
	ID                uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	OrganizerID       uuid.UUID        `gorm:"type:uuid;not null;index" json:"organizer_id"`
	EventID           uuid.UUID        `gorm:"type:uuid;not null;index" json:"event_id"`
	Amount            int64            `gorm:"not null" json:"amount"`
	AmountUnit        string           `gorm:"size:10" json:"amount_unit"`
	Currency          string           `gorm:"size:3;not null" json:"currency"`
	Method            string           `gorm:"size:30;not null" json:"method"`
	Status            WithdrawalStatus `gorm:"size:20;not null;index" json:"status"`
	FeeCents          int64            `gorm:"not null;default:0" json:"fee_cents"`
	PayoutAmountCents int64            `gorm:"not null;default:0" json:"payout_amount_cents"`
	PayoutCurrency    string           `gorm:"size:3" json:"payout_currency"`
	ExchangeRate      *string          `gorm:"size:32" json:"exchange_rate,omitempty"`
	Note              *string          `gorm:"type:text" json:"note,omitempty"`
	ProcessedBy       *uuid.UUID       `gorm:"type:uuid" json:"processed_by,omitempty"`
	ProcessedAt       *time.Time       `json:"processed_at,omitempty"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

func (w *Withdrawal) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
