package jobs

import (
	"context"
	"time"

	"github.com/edlight123/eventhaiti-payouts/services"
	"github.com/rs/zerolog"
)

type settlementRunner interface {
	Run(ctx context.Context) (services.SettlementReport, error)
}

// SettlementJob releases earnings whose hold has elapsed.
type SettlementJob struct {
	settlement settlementRunner
	timeout    time.Duration
	log        zerolog.Logger
}

func NewSettlementJob(settlement settlementRunner, log zerolog.Logger) *SettlementJob {
	return &SettlementJob{
		settlement: settlement,
		timeout:    5 * time.Minute,
		log:        log.With().Str("job", "settlement").Logger(),
	}
}

func (j *SettlementJob) Name() string { return "settlement" }

func (j *SettlementJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	report, err := j.settlement.Run(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("settlement run failed")
		return
	}
	j.log.Debug().
		Int("released", report.Released).
		Int("unlocked", report.Unlocked).
		Int("failed", report.Failed).
		Dur("took", time.Since(start)).
		Msg("settlement run done")
}
