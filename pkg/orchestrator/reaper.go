package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/taylored/runnerd/pkg/config"
	"github.com/taylored/runnerd/pkg/log"
	"github.com/taylored/runnerd/pkg/metrics"
)

// Reaper terminates runners idle beyond the inactivity timeout. Sweeps are
// serialized: the loop is a single goroutine and sweep() additionally holds
// a mutex so a manual sweep cannot overlap the ticker.
type Reaper struct {
	orch     *Orchestrator
	interval time.Duration
	timeout  time.Duration
	mu       sync.Mutex
}

// NewReaper creates a reaper over the orchestrator's registry.
func NewReaper(orch *Orchestrator) *Reaper {
	return &Reaper{
		orch:     orch,
		interval: config.SweepInterval,
		timeout:  orch.cfg.InactivityDuration(),
	}
}

// Run starts the sweep loop. It blocks until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	logger := log.WithComponent("reaper")
	logger.Info().
		Dur("interval", r.interval).
		Dur("timeout", r.timeout).
		Msg("reaper started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("reaper stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep performs one reap cycle. Errors are logged and never surfaced; the
// record is removed from the registry even when the daemon calls fail.
func (r *Reaper) Sweep(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	logger := log.WithComponent("reaper")
	now := time.Now()

	for _, rec := range r.orch.registry.Snapshot() {
		idle := now.Sub(rec.LastActivity)
		if idle <= r.timeout {
			continue
		}

		// Re-check under the registry: a heartbeat may have landed between
		// the snapshot and now.
		current, err := r.orch.registry.Lookup(rec.SessionID)
		if err != nil || now.Sub(current.LastActivity) <= r.timeout {
			continue
		}

		logger.Info().
			Str("session_id", rec.SessionID).
			Str("container_id", rec.ContainerID).
			Dur("idle", idle).
			Msg("reaping idle runner")

		if err := r.orch.destroyContainer(ctx, rec.ContainerID); err != nil {
			logger.Error().Err(err).Str("session_id", rec.SessionID).Msg("reap: container cleanup failed")
		}

		if _, err := r.orch.registry.Remove(rec.SessionID); err == nil {
			metrics.RunnersReaped.Inc()
		}
		if r.orch.store != nil {
			if err := r.orch.store.DeleteRunner(rec.SessionID); err != nil {
				logger.Warn().Err(err).Str("session_id", rec.SessionID).Msg("reap: journal delete failed")
			}
		}
	}

	metrics.ActiveRunners.Set(float64(r.orch.registry.Len()))
}
