package models

import (
	"time"

	"github.com/google/uuid"
)

type OrganizerPayoutStatus string

const (
	PayoutStatusNotSetup            OrganizerPayoutStatus = "not_setup"
	PayoutStatusPendingVerification OrganizerPayoutStatus = "pending_verification"
	PayoutStatusActive              OrganizerPayoutStatus = "active"
	PayoutStatusOnHold              OrganizerPayoutStatus = "on_hold"
)

// OrganizerProfile holds the payout-facing state of an organizer. Its row is also the
// per-organizer lock taken when a payout request is created.
type OrganizerProfile struct {
	OrganizerID         uuid.UUID             `gorm:"type:uuid;primary_key" json:"organizer_id"`
	Email               string                `gorm:"size:255" json:"email,omitempty"`
	PayoutStatus        OrganizerPayoutStatus `gorm:"size:30;not null;default:'not_setup'" json:"payout_status"`
	ManualHold          bool                  `gorm:"not null;default:false" json:"manual_hold"`
	HoldReason          *string               `gorm:"type:text" json:"hold_reason,omitempty"`
	AllowInstantMoncash bool                  `gorm:"not null;default:false" json:"allow_instant_moncash"`
	StatusUpdatedAt     *time.Time            `json:"status_updated_at,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}
