package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DestinationTypeBank        = "bank"
	DestinationTypeMobileMoney = "mobile_money"
)

// PayoutDestination keeps display metadata in the clear. Account numbers, routing codes
// and holder names live only inside SealedDetails.
type PayoutDestination struct {
	ID                 uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OrganizerID        uuid.UUID `gorm:"type:uuid;not null;index" json:"organizer_id"`
	Type               string    `gorm:"size:20;not null" json:"type"`
	BankName           string    `gorm:"size:255" json:"bank_name,omitempty"`
	Provider           string    `gorm:"size:50" json:"provider,omitempty"`
	AccountName        string    `gorm:"size:255" json:"account_name"`
	AccountNumberLast4 string    `gorm:"size:4" json:"account_number_last4"`
	IsPrimary          bool      `gorm:"not null;default:false" json:"is_primary"`
	SealedDetails      string    `gorm:"type:text;not null" json:"-"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (d *PayoutDestination) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
