package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/edlight123/eventhaiti-payouts/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const defaultConfigTTL = 30 * time.Second

// PlatformConfigService reads the platform payout config row and caches it for a short
// TTL. Every write through this service invalidates the cache.
type PlatformConfigService struct {
	db  *gorm.DB
	ttl time.Duration
	log zerolog.Logger

	mu        sync.RWMutex
	cached    *models.PlatformPayoutConfig
	fetchedAt time.Time
}

func NewPlatformConfigService(db *gorm.DB, ttl time.Duration, log zerolog.Logger) *PlatformConfigService {
	if ttl <= 0 {
		ttl = defaultConfigTTL
	}
	return &PlatformConfigService{
		db:  db,
		ttl: ttl,
		log: log.With().Str("component", "platform_config").Logger(),
	}
}

func (s *PlatformConfigService) Get(ctx context.Context) (models.PlatformPayoutConfig, error) {
	s.mu.RLock()
	if s.cached != nil && time.Since(s.fetchedAt) < s.ttl {
		cfg := *s.cached
		s.mu.RUnlock()
		return cfg, nil
	}
	s.mu.RUnlock()

	var cfg models.PlatformPayoutConfig
	err := s.db.WithContext(ctx).First(&cfg, "id = ?", models.PlatformPayoutConfigID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PlatformPayoutConfig{}, notFound("platform payout config")
		}
		return models.PlatformPayoutConfig{}, fmt.Errorf("load platform payout config: %w", err)
	}

	s.mu.Lock()
	s.cached = &cfg
	s.fetchedAt = time.Now()
	s.mu.Unlock()
	return cfg, nil
}

func (s *PlatformConfigService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

type UpdatePlatformConfigInput struct {
	SettlementHoldDays *int
	MinimumPayoutCents *int64
	PrefundingEnabled  *bool
}

func (s *PlatformConfigService) Update(ctx context.Context, in UpdatePlatformConfigInput) (models.PlatformPayoutConfig, error) {
	updates := map[string]interface{}{}
	if in.SettlementHoldDays != nil {
		if *in.SettlementHoldDays < 0 {
			return models.PlatformPayoutConfig{}, invalid("settlement_hold_days", "cannot be negative")
		}
		updates["settlement_hold_days"] = *in.SettlementHoldDays
	}
	if in.MinimumPayoutCents != nil {
		if *in.MinimumPayoutCents < 0 {
			return models.PlatformPayoutConfig{}, invalid("minimum_payout_cents", "cannot be negative")
		}
		updates["minimum_payout_cents"] = *in.MinimumPayoutCents
	}
	if in.PrefundingEnabled != nil {
		updates["prefunding_enabled"] = *in.PrefundingEnabled
		if !*in.PrefundingEnabled {
			updates["prefunding_available"] = false
		}
	}
	if len(updates) == 0 {
		return models.PlatformPayoutConfig{}, invalid("", "nothing to update")
	}

	err := s.db.WithContext(ctx).Model(&models.PlatformPayoutConfig{}).
		Where("id = ?", models.PlatformPayoutConfigID).
		Updates(updates).Error
	s.Invalidate()
	if err != nil {
		return models.PlatformPayoutConfig{}, fmt.Errorf("update platform payout config: %w", err)
	}

	s.log.Info().Interface("changes", updates).Msg("platform payout config updated")
	return s.Get(ctx)
}

// RecordPrefundingCheck stores the outcome of a prefunded-balance check. The pool is
// never marked available while prefunding is disabled.
func (s *PlatformConfigService) RecordPrefundingCheck(ctx context.Context, balanceCents int64, available bool, checkedAt time.Time) (models.PlatformPayoutConfig, error) {
	s.Invalidate()
	current, err := s.Get(ctx)
	if err != nil {
		return models.PlatformPayoutConfig{}, err
	}

	err = s.db.WithContext(ctx).Model(&models.PlatformPayoutConfig{}).
		Where("id = ?", models.PlatformPayoutConfigID).
		Updates(map[string]interface{}{
			"prefunding_balance_cents": balanceCents,
			"prefunding_available":     current.PrefundingEnabled && available,
			"prefunding_checked_at":    checkedAt,
		}).Error
	s.Invalidate()
	if err != nil {
		return models.PlatformPayoutConfig{}, fmt.Errorf("record prefunding check: %w", err)
	}
	return s.Get(ctx)
}
