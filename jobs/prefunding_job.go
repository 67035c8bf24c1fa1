package jobs

import (
	"context"
	"time"

	"github.com/edlight123/eventhaiti-payouts/models"
	"github.com/rs/zerolog"
)

type prefundingRefresher interface {
	Refresh(ctx context.Context) (models.PlatformPayoutConfig, error)
}

// PrefundingJob refreshes the instant payout pool state.
type PrefundingJob struct {
	prefunding prefundingRefresher
	timeout    time.Duration
	log        zerolog.Logger
}

func NewPrefundingJob(prefunding prefundingRefresher, log zerolog.Logger) *PrefundingJob {
	return &PrefundingJob{
		prefunding: prefunding,
		timeout:    30 * time.Second,
		log:        log.With().Str("job", "prefunding").Logger(),
	}
}

func (j *PrefundingJob) Name() string { return "prefunding" }

func (j *PrefundingJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	cfg, err := j.prefunding.Refresh(ctx)
	if err != nil {
		j.log.Warn().Err(err).Bool("available", cfg.PrefundingAvailable).Msg("prefunding refresh degraded")
		return
	}
	j.log.Debug().Bool("available", cfg.PrefundingAvailable).Int64("balance_cents", cfg.PrefundingBalanceCents).Msg("prefunding refreshed")
}
