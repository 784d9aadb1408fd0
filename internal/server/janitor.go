package server

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSweepInterval is how often the janitor checks for idle sessions.
const DefaultSweepInterval = time.Minute

// Janitor evicts idle sessions on a fixed interval.
type Janitor struct {
	registry *Registry
	interval time.Duration
	log      zerolog.Logger
}

// NewJanitor creates a janitor sweeping registry every interval. A
// non-positive interval falls back to DefaultSweepInterval.
func NewJanitor(registry *Registry, interval time.Duration, log zerolog.Logger) *Janitor {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Janitor{
		registry: registry,
		interval: interval,
		log:      log,
	}
}

// Run starts the sweep loop and blocks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	j.log.Info().Dur("interval", j.interval).Msg("session janitor started")
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info().Msg("session janitor stopped")
			return
		case <-ticker.C:
			if evicted := j.registry.Sweep(); evicted > 0 {
				j.log.Info().Int("evicted", evicted).Int("live", j.registry.Len()).Msg("evicted idle sessions")
			}
		}
	}
}
