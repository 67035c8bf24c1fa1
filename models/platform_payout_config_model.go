package models

import "time"

const PlatformPayoutConfigID = 1

// PlatformPayoutConfig is a single-row table.
type PlatformPayoutConfig struct {
	ID                     uint       `gorm:"primary_key" json:"-"`
	SettlementHoldDays     int        `gorm:"not null" json:"settlement_hold_days"`
	MinimumPayoutCents     int64      `gorm:"not null" json:"minimum_payout_cents"`
	PrefundingEnabled      bool       `gorm:"not null;default:false" json:"prefunding_enabled"`
	PrefundingAvailable    bool       `gorm:"not null;default:false" json:"prefunding_available"`
	PrefundingBalanceCents int64      `gorm:"not null;default:0" json:"prefunding_balance_cents"`
	PrefundingCheckedAt    *time.Time `json:"prefunding_last_checked_at,omitempty"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

func (PlatformPayoutConfig) TableName() string {
	return "platform_payout_config"
}
