package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sink delivers an event to one channel (email, websocket feed).
type Sink interface {
	Name() string
	Deliver(ctx context.Context, evt AdminEvent) error
}

// Dispatcher fans admin events out to its sinks on detached goroutines. Delivery failures
// are logged and never reach the caller.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	log     zerolog.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(log zerolog.Logger, timeout time.Duration, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		sinks:   sinks,
		timeout: timeout,
		log:     log.With().Str("component", "notifications").Logger(),
	}
}

func (d *Dispatcher) NotifyAdmins(evt AdminEvent) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	for _, sink := range d.sinks {
		d.wg.Add(1)
		go d.deliver(sink, evt)
	}
}

func (d *Dispatcher) deliver(sink Sink, evt AdminEvent) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("sink", sink.Name()).Msg("notification sink panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := sink.Deliver(ctx, evt); err != nil {
		d.log.Warn().Err(err).
			Str("sink", sink.Name()).
			Str("event", string(evt.Type)).
			Str("entity_id", evt.EntityID.String()).
			Msg("admin notification failed")
		return
	}
	d.log.Debug().Str("sink", sink.Name()).Str("event", string(evt.Type)).Msg("admin notification delivered")
}

// Wait blocks until in-flight deliveries finish. Used on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
