package models

import (
	"time"

	"github.com/google/uuid"
)

const TicketStatusConfirmed = "confirmed"

// Ticket is the confirmed-sale snapshot posted by the ticketing service. This engine
// never changes it after it is recorded.
type Ticket struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	EventID     uuid.UUID `gorm:"type:uuid;not null;index" json:"event_id"`
	OrganizerID uuid.UUID `gorm:"type:uuid;not null;index" json:"organizer_id"`
	PriceCents  int64     `gorm:"not null" json:"price_cents"`
	FeeCents    int64     `gorm:"not null;default:0" json:"fee_cents"`
	Currency    string    `gorm:"size:3;not null" json:"currency"`
	Status      string    `gorm:"size:20;not null" json:"status"`
	PurchasedAt time.Time `gorm:"not null;index" json:"purchased_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (t Ticket) NetCents() int64 {
	return t.PriceCents - t.FeeCents
}
