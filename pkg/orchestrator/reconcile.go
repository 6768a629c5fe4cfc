package orchestrator

import (
	"context"

	"github.com/taylored/runnerd/pkg/log"
)

// Reconcile syncs the journal and the daemon after a restart. Every
// journaled record and every session-labelled container belongs to a
// registry that no longer exists, so both are swept. Errors are logged and
// reconciliation proceeds; a leftover container is the reaper's problem on
// the next daemon restart, not a startup failure.
func (o *Orchestrator) Reconcile(ctx context.Context) {
	logger := log.WithComponent("reconcile")
	logger.Info().Msg("startup reconciliation starting")

	// Containers to destroy, deduplicated across the two sources.
	targets := make(map[string]string) // containerID -> sessionID

	if o.store != nil {
		records, err := o.store.ListRunners()
		if err != nil {
			logger.Error().Err(err).Msg("failed to list journaled records")
		}
		for _, rec := range records {
			targets[rec.ContainerID] = rec.SessionID
		}
	}

	containers, err := o.driver.ListSessionContainers(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list session containers")
	}
	for _, ct := range containers {
		targets[ct.ContainerID] = ct.SessionID
	}

	for containerID, sessionID := range targets {
		logger.Warn().
			Str("session_id", sessionID).
			Str("container_id", containerID).
			Msg("removing orphaned runner container")
		if err := o.destroyContainer(ctx, containerID); err != nil {
			logger.Error().Err(err).Str("container_id", containerID).Msg("orphan cleanup failed")
		}
		if o.store != nil && sessionID != "" {
			if err := o.store.DeleteRunner(sessionID); err != nil {
				logger.Warn().Err(err).Str("session_id", sessionID).Msg("journal delete failed")
			}
		}
	}

	logger.Info().Int("orphans", len(targets)).Msg("startup reconciliation complete")
}
