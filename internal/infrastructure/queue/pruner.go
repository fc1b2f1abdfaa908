package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
)

const defaultPruneInterval = time.Hour

// Pruner periodically drops revocation records whose token has expired. A
// token past its expiry fails validation on its own, so its record is dead
// weight in the index.
type Pruner struct {
	store    ports.RevocationStore
	clock    ports.Clock
	interval time.Duration
	log      zerolog.Logger
}

// NewPruner returns a Pruner. If interval <= 0, one hour is used.
func NewPruner(store ports.RevocationStore, clock ports.Clock, interval time.Duration, log zerolog.Logger) *Pruner {
	if interval <= 0 {
		interval = defaultPruneInterval
	}
	return &Pruner{store: store, clock: clock, interval: interval, log: log}
}

// Run prunes once per interval until ctx is cancelled.
func (p *Pruner) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PruneOnce(ctx); err != nil {
				p.log.Error().Err(err).Msg("revocation prune failed")
			}
		}
	}
}

// PruneOnce removes records expired as of the clock's current time.
func (p *Pruner) PruneOnce(ctx context.Context) (int64, error) {
	n, err := p.store.PruneExpired(ctx, p.clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.RevocationsPrunedTotal.Add(float64(n))
		p.log.Info().Int64("pruned", n).Msg("expired revocations pruned")
	}
	return n, nil
}
