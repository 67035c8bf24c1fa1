package services

import (
	"errors"
	"fmt"

	"github.com/edlight123/eventhaiti-payouts/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var forUpdate = clause.Locking{Strength: "UPDATE"}

// lockProfile row-locks the organizer profile, creating a not_setup profile first when
// the organizer has none yet. All balance-reserving writes for an organizer take this
// lock before reading anything else.
func lockProfile(tx *gorm.DB, organizerID uuid.UUID) (models.OrganizerProfile, error) {
	seed := models.OrganizerProfile{
		OrganizerID:  organizerID,
		PayoutStatus: models.PayoutStatusNotSetup,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return models.OrganizerProfile{}, fmt.Errorf("ensure organizer profile: %w", err)
	}

	var profile models.OrganizerProfile
	if err := tx.Clauses(forUpdate).First(&profile, "organizer_id = ?", organizerID).Error; err != nil {
		return models.OrganizerProfile{}, fmt.Errorf("lock organizer profile: %w", err)
	}
	return profile, nil
}

// lockEarnings row-locks an event's earnings and returns them in minor units. Callers
// that save the row persist the conversion.
func lockEarnings(tx *gorm.DB, eventID uuid.UUID) (models.EventEarnings, error) {
	var earnings models.EventEarnings
	err := tx.Clauses(forUpdate).First(&earnings, "event_id = ?", eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return earnings, notFound("event earnings")
	}
	if err != nil {
		return earnings, fmt.Errorf("lock event earnings: %w", err)
	}
	toMinorUnits(&earnings)
	return earnings, nil
}
