package presence

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Monitor periodically sweeps the tracker for connections whose heartbeat
// has gone stale. Each sweep runs to completion before the next is
// scheduled: the timer is re-armed only after SweepExpired returns, so
// sweeps can never overlap, even when a sweep is slow relative to the
// interval.
type Monitor struct {
	tracker  *Tracker
	interval time.Duration
	timeout  time.Duration
}

// NewMonitor creates a monitor sweeping tracker every interval, evicting
// connections silent for longer than timeout.
func NewMonitor(tracker *Tracker, interval, timeout time.Duration) *Monitor {
	return &Monitor{
		tracker:  tracker,
		interval: interval,
		timeout:  timeout,
	}
}

// Run sweeps until ctx is cancelled. It blocks; callers start it in its own
// goroutine.
func (m *Monitor) Run(ctx context.Context) {
	log.Info().
		Dur("interval", m.interval).
		Dur("timeout", m.timeout).
		Msg("Heartbeat monitor started")
	timer := time.NewTimer(m.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Heartbeat monitor stopped")
			return
		case <-timer.C:
			m.tracker.SweepExpired(m.timeout)
			timer.Reset(m.interval)
		}
	}
}
