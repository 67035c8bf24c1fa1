package services

import (
	"encoding/json"

	"github.com/edlight123/eventhaiti-payouts/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	auditEntityPayout     = "payout_request"
	auditEntityWithdrawal = "withdrawal"
	auditEntityEarnings   = "event_earnings"
	auditEntityProfile    = "organizer_profile"
)

func recordAudit(tx *gorm.DB, entityType string, entityID uuid.UUID, action string, actor *uuid.UUID, from, to string, details map[string]interface{}) error {
	entry := models.AuditLog{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    actor,
		FromStatus: from,
		ToStatus:   to,
	}
	if len(details) > 0 {
		data, err := json.Marshal(details)
		if err != nil {
			return err
		}
		entry.Details = datatypes.JSON(data)
	}
	return tx.Create(&entry).Error
}

func actorRef(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func strPtr(s string) *string {
	return &s
}

