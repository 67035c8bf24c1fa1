package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutApproved   PayoutStatus = "approved"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutCancelled  PayoutStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s PayoutStatus) Terminal() bool {
	return s == PayoutCompleted || s == PayoutCancelled
}

// EventAllocation is the share of a payout's amount drawn from one event, in minor units.
type EventAllocation struct {
	EventID uuid.UUID `json:"event_id"`
	Amount  int64     `json:"amount"`
}

type PayoutRequest struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	OrganizerID        uuid.UUID      `gorm:"type:uuid;not null;index:idx_payout_organizer_status" json:"organizer_id"`
	Amount             int64          `gorm:"not null" json:"amount"`
	AmountUnit         string         `gorm:"size:10;not null;default:'minor'" json:"amount_unit"`
	Currency           string         `gorm:"size:3;not null" json:"currency"`
	Status             PayoutStatus   `gorm:"size:20;not null;default:'pending';index:idx_payout_organizer_status" json:"status"`
	Method             string         `gorm:"size:30;not null" json:"method"`
	DestinationID      *uuid.UUID     `gorm:"type:uuid" json:"destination_id,omitempty"`
	ScheduledDate      time.Time      `gorm:"not null" json:"scheduled_date"`
	TicketIDs          datatypes.JSON `json:"ticket_ids"`
	Allocations        datatypes.JSON `json:"allocations"`
	PeriodStart        *time.Time     `json:"period_start,omitempty"`
	PeriodEnd          *time.Time     `json:"period_end,omitempty"`
	ApprovedBy         *uuid.UUID     `gorm:"type:uuid" json:"approved_by,omitempty"`
	ApprovedAt         *time.Time     `json:"approved_at,omitempty"`
	DeclinedBy         *uuid.UUID     `gorm:"type:uuid" json:"declined_by,omitempty"`
	DeclinedAt         *time.Time     `json:"declined_at,omitempty"`
	DeclineReason      *string        `gorm:"type:text" json:"decline_reason,omitempty"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	PaymentReferenceID *string        `gorm:"size:255" json:"payment_reference_id,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

func (p *PayoutRequest) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p PayoutRequest) TicketIDList() []uuid.UUID {
	var ids []uuid.UUID
	if len(p.TicketIDs) == 0 {
		return ids
	}
	_ = json.Unmarshal(p.TicketIDs, &ids)
	return ids
}

func (p *PayoutRequest) SetTicketIDs(ids []uuid.UUID) error {
	if ids == nil {
		ids = []uuid.UUID{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	p.TicketIDs = datatypes.JSON(data)
	return nil
}

func (p PayoutRequest) AllocationList() []EventAllocation {
	var allocations []EventAllocation
	if len(p.Allocations) == 0 {
		return allocations
	}
	_ = json.Unmarshal(p.Allocations, &allocations)
	return allocations
}

func (p *PayoutRequest) SetAllocations(allocations []EventAllocation) error {
	if allocations == nil {
		allocations = []EventAllocation{}
	}
	data, err := json.Marshal(allocations)
	if err != nil {
		return err
	}
	p.Allocations = datatypes.JSON(data)
	return nil
}
