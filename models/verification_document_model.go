package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type VerificationType string

const (
	VerificationIdentity VerificationType = "identity"
	VerificationBank     VerificationType = "bank"
	VerificationPhone    VerificationType = "phone"
)

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// VerificationDocument is unique per organizer, type and destination. DestinationKey is
// the destination id for bank documents and empty otherwise.
type VerificationDocument struct {
	ID              uuid.UUID          `gorm:"type:uuid;primary_key" json:"id"`
	OrganizerID     uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_verification_key" json:"organizer_id"`
	Type            VerificationType   `gorm:"size:20;not null;uniqueIndex:idx_verification_key" json:"type"`
	DestinationKey  string             `gorm:"size:36;not null;default:'';uniqueIndex:idx_verification_key" json:"destination_id,omitempty"`
	Status          VerificationStatus `gorm:"size:20;not null" json:"status"`
	Evidence        datatypes.JSON     `json:"evidence,omitempty"`
	SubmittedAt     time.Time          `gorm:"not null" json:"submitted_at"`
	ReviewedAt      *time.Time         `json:"reviewed_at,omitempty"`
	ReviewedBy      *uuid.UUID         `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	RejectionReason *string            `gorm:"type:text" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func (v *VerificationDocument) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
