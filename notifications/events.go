package notifications

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventVerificationSubmitted EventType = "verification.submitted"
	EventVerificationReviewed  EventType = "verification.reviewed"
	EventPayoutRequested       EventType = "payout.requested"
	EventPayoutUpdated         EventType = "payout.updated"
	EventWithdrawalCreated     EventType = "withdrawal.created"
	EventWithdrawalUpdated     EventType = "withdrawal.updated"
)

// AdminEvent is what admins are told about. It never carries destination details.
type AdminEvent struct {
	Type        EventType `json:"type"`
	OrganizerID uuid.UUID `json:"organizer_id"`
	EntityID    uuid.UUID `json:"entity_id"`
	Status      string    `json:"status,omitempty"`
	Message     string    `json:"message"`
	OccurredAt  time.Time `json:"occurred_at"`
}
