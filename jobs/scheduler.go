package jobs

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// cronLogger adapts zerolog to cron's logger so skipped and recovered runs are visible.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// NewScheduler returns a cron that never overlaps a job with its own previous run and
// recovers panics.
func NewScheduler(log zerolog.Logger) *cron.Cron {
	logger := cronLogger{log: log.With().Str("component", "cron").Logger()}
	return cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
}

type Job interface {
	Name() string
	Run()
}

func Register(c *cron.Cron, spec string, job Job, log zerolog.Logger) error {
	if _, err := c.AddJob(spec, job); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name(), spec, err)
	}
	log.Info().Str("job", job.Name()).Str("schedule", spec).Msg("job scheduled")
	return nil
}
