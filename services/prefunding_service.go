package services

import (
	"context"
	"fmt"
	"time"

	"github.com/edlight123/eventhaiti-payouts/models"
	"github.com/rs/zerolog"
)

// PrefundedBalanceChecker reports the platform's prefunded MonCash balance in minor units.
type PrefundedBalanceChecker interface {
	PrefundedBalance(ctx context.Context) (int64, error)
}

type PrefundingService struct {
	checker         PrefundedBalanceChecker
	config          *PlatformConfigService
	minBalanceCents int64
	timeout         time.Duration
	log             zerolog.Logger
	now             func() time.Time
}

func NewPrefundingService(checker PrefundedBalanceChecker, config *PlatformConfigService, minBalanceCents int64, timeout time.Duration, log zerolog.Logger) *PrefundingService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PrefundingService{
		checker:         checker,
		config:          config,
		minBalanceCents: minBalanceCents,
		timeout:         timeout,
		log:             log.With().Str("component", "prefunding").Logger(),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Refresh checks the pool and records the result. Any failure marks the pool unavailable;
// the returned error wraps ErrExternalDependency so callers can log it.
func (s *PrefundingService) Refresh(ctx context.Context) (models.PlatformPayoutConfig, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return models.PlatformPayoutConfig{}, err
	}
	if !cfg.PrefundingEnabled {
		if cfg.PrefundingAvailable {
			return s.config.RecordPrefundingCheck(ctx, cfg.PrefundingBalanceCents, false, s.now())
		}
		return cfg, nil
	}

	if s.checker == nil {
		cfg, err = s.config.RecordPrefundingCheck(ctx, cfg.PrefundingBalanceCents, false, s.now())
		if err != nil {
			return cfg, err
		}
		return cfg, fmt.Errorf("%w: prefunded balance provider not configured", ErrExternalDependency)
	}

	checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
	balance, checkErr := s.checker.PrefundedBalance(checkCtx)
	cancel()

	if checkErr != nil {
		s.log.Warn().Err(checkErr).Msg("prefunded balance check failed, instant payouts unavailable")
		cfg, err = s.config.RecordPrefundingCheck(ctx, cfg.PrefundingBalanceCents, false, s.now())
		if err != nil {
			return cfg, err
		}
		return cfg, fmt.Errorf("%w: %v", ErrExternalDependency, checkErr)
	}

	available := balance > 0 && balance >= s.minBalanceCents
	cfg, err = s.config.RecordPrefundingCheck(ctx, balance, available, s.now())
	if err != nil {
		return cfg, err
	}
	s.log.Info().Int64("balance_cents", balance).Bool("available", available).Msg("prefunded balance refreshed")
	return cfg, nil
}
