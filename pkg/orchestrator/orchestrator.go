package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/taylored/runnerd/pkg/config"
	"github.com/taylored/runnerd/pkg/docker"
	"github.com/taylored/runnerd/pkg/log"
	"github.com/taylored/runnerd/pkg/metrics"
	"github.com/taylored/runnerd/pkg/network"
	"github.com/taylored/runnerd/pkg/registry"
	"github.com/taylored/runnerd/pkg/storage"
	"github.com/taylored/runnerd/pkg/types"
)

var (
	// ErrSessionRequired indicates a missing session id on heartbeat/deprovision.
	ErrSessionRequired = errors.New("session id is required")
	// ErrRunnerNotFound indicates no registry record matches the session id.
	ErrRunnerNotFound = errors.New("runner not found")
	// ErrImageNotFound indicates the runner image is missing from the daemon.
	ErrImageNotFound = docker.ErrImageNotFound
)

// Messages surfaced to clients. The front-end matches on these strings, so
// they are constants rather than ad-hoc literals.
const (
	MsgProvisioned       = "Runner provisioned successfully."
	MsgAlreadyExists     = "Runner already exists for this session."
	MsgSingletonReturned = "Returning existing singleton runner."
	MsgHeartbeatOK       = "Heartbeat received."
	MsgReuseDeprovision  = "Deprovisioning is disabled in reuse mode."
)

// Orchestrator owns the runner registry and drives the container daemon.
// There is no package-level state: handlers receive an *Orchestrator.
type Orchestrator struct {
	cfg      *config.Orchestrator
	registry *registry.Registry
	driver   docker.Driver
	store    storage.Store
	logger   zerolog.Logger
}

// New assembles an orchestrator from its collaborators. store may be nil
// when journaling is disabled (tests).
func New(cfg *config.Orchestrator, reg *registry.Registry, driver docker.Driver, store storage.Store) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		registry: reg,
		driver:   driver,
		store:    store,
		logger:   log.WithComponent("orchestrator"),
	}
}

// Registry exposes the registry for the API layer's list endpoint.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// Config returns the orchestrator configuration.
func (o *Orchestrator) Config() *config.Orchestrator {
	return o.cfg
}

// ProvisionResult is the outcome of a provision request.
type ProvisionResult struct {
	Message   string
	Endpoint  string
	SessionID string
	// Created is true when a new container was provisioned, false on an
	// idempotent hit or a reuse-mode return.
	Created bool
}

// Provision creates (or returns) the runner for the session. sessionID may
// be empty, in which case a fresh UUID is minted. networkMode is the raw
// client string; anything unrecognized means default.
func (o *Orchestrator) Provision(ctx context.Context, sessionID, networkMode string) (*ProvisionResult, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ProvisionDuration)

	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	mode := parseNetworkMode(networkMode)

	// Reuse mode: the singleton absorbs every provision.
	if o.registry.ReuseMode() {
		if existing, err := o.registry.Lookup(sessionID); err == nil {
			_ = o.registry.TouchAny(sessionID)
			metrics.ProvisionsTotal.WithLabelValues("reused").Inc()
			return &ProvisionResult{
				Message:   MsgSingletonReturned,
				Endpoint:  existing.Endpoint(o.cfg.RunnersHost),
				SessionID: existing.SessionID,
			}, nil
		}
	} else if existing, err := o.registry.Lookup(sessionID); err == nil {
		_ = o.registry.Touch(sessionID)
		metrics.ProvisionsTotal.WithLabelValues("existing").Inc()
		return &ProvisionResult{
			Message:   MsgAlreadyExists,
			Endpoint:  existing.Endpoint(o.cfg.RunnersHost),
			SessionID: existing.SessionID,
		}, nil
	}

	rec, err := o.provisionNew(ctx, sessionID, mode)
	if err != nil {
		metrics.ProvisionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.ProvisionsTotal.WithLabelValues("created").Inc()
	metrics.ActiveRunners.Set(float64(o.registry.Len()))
	return &ProvisionResult{
		Message:   MsgProvisioned,
		Endpoint:  rec.Endpoint(o.cfg.RunnersHost),
		SessionID: rec.SessionID,
		Created:   true,
	}, nil
}

func (o *Orchestrator) provisionNew(ctx context.Context, sessionID string, mode types.NetworkMode) (*types.RunnerRecord, error) {
	hostPort := 0
	if mode != types.NetworkModeNone {
		var err error
		hostPort, err = network.AllocatePort()
		if err != nil {
			return nil, fmt.Errorf("failed to allocate host port: %w", err)
		}
	}

	exists, err := o.driver.ImageExists(ctx, o.cfg.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to probe runner image: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, o.cfg.Image)
	}

	containerID, err := o.driver.Create(ctx, docker.CreateConfig{
		Image:         o.cfg.Image,
		SessionID:     sessionID,
		ContainerPort: o.cfg.ContainerPort,
		HostPort:      hostPort,
		NetworkMode:   mode,
	})
	if err != nil {
		return nil, err
	}

	logger := o.logger.With().Str("session_id", sessionID).Str("container_id", containerID).Logger()

	if err := o.driver.Start(ctx, containerID); err != nil {
		o.rollback(ctx, logger, containerID)
		return nil, err
	}

	state, err := o.driver.Inspect(ctx, containerID)
	if err != nil {
		o.rollback(ctx, logger, containerID)
		return nil, err
	}

	now := time.Now()
	rec := &types.RunnerRecord{
		SessionID:    sessionID,
		ContainerID:  state.ID,
		HostPort:     hostPort,
		NetworkMode:  mode,
		LastActivity: now,
		CreatedAt:    now,
	}

	if err := o.registry.Insert(rec); err != nil {
		// A concurrent provision won the race; discard our container and
		// return the winner.
		o.rollback(ctx, logger, containerID)
		if winner, lookupErr := o.registry.Lookup(sessionID); lookupErr == nil {
			return winner, nil
		}
		return nil, err
	}

	if o.store != nil {
		if err := o.store.PutRunner(rec); err != nil {
			logger.Warn().Err(err).Msg("failed to journal runner record")
		}
	}

	logger.Info().
		Int("host_port", hostPort).
		Str("network_mode", string(mode)).
		Msg("runner provisioned")
	return rec, nil
}

// rollback is the best-effort cleanup after a failed provision. Failures are
// logged and swallowed: the registry must not retain a record for a failed
// provision, but a zombie container is acceptable.
func (o *Orchestrator) rollback(ctx context.Context, logger zerolog.Logger, containerID string) {
	var result *multierror.Error
	result = multierror.Append(result, o.driver.Stop(ctx, containerID))
	result = multierror.Append(result, o.driver.Remove(ctx, containerID))
	if err := result.ErrorOrNil(); err != nil {
		logger.Warn().Err(err).Msg("provision rollback incomplete")
	}
}

// Heartbeat refreshes the last-activity timestamp for the session.
func (o *Orchestrator) Heartbeat(sessionID string) error {
	if sessionID == "" {
		return ErrSessionRequired
	}
	if err := o.registry.Touch(sessionID); err != nil {
		return ErrRunnerNotFound
	}
	metrics.HeartbeatsTotal.Inc()
	return nil
}

// Deprovision stops and removes the session's runner. In reuse mode it is a
// no-op that reports success.
func (o *Orchestrator) Deprovision(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrSessionRequired
	}
	if o.registry.ReuseMode() {
		metrics.DeprovisionsTotal.WithLabelValues("reuse_noop").Inc()
		return MsgReuseDeprovision, nil
	}

	// Registry removal happens before the driver calls: we prefer leaking a
	// zombie container over leaking a registry slot.
	rec, err := o.registry.Remove(sessionID)
	if err != nil {
		metrics.DeprovisionsTotal.WithLabelValues("not_found").Inc()
		return "", ErrRunnerNotFound
	}
	metrics.ActiveRunners.Set(float64(o.registry.Len()))

	if o.store != nil {
		if err := o.store.DeleteRunner(sessionID); err != nil {
			o.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to delete journaled record")
		}
	}

	if err := o.destroyContainer(ctx, rec.ContainerID); err != nil {
		metrics.DeprovisionsTotal.WithLabelValues("driver_error").Inc()
		return "", err
	}

	metrics.DeprovisionsTotal.WithLabelValues("removed").Inc()
	o.logger.Info().Str("session_id", sessionID).Str("container_id", rec.ContainerID).Msg("runner deprovisioned")
	return fmt.Sprintf("Runner for session %s deprovisioned successfully.", sessionID), nil
}

func (o *Orchestrator) destroyContainer(ctx context.Context, containerID string) error {
	var result *multierror.Error
	result = multierror.Append(result, o.driver.Stop(ctx, containerID))
	result = multierror.Append(result, o.driver.Remove(ctx, containerID))
	return result.ErrorOrNil()
}

func parseNetworkMode(raw string) types.NetworkMode {
	switch raw {
	case "", string(types.NetworkModeDefault):
		return types.NetworkModeDefault
	case string(types.NetworkModeNone):
		return types.NetworkModeNone
	default:
		return types.NetworkMode(raw)
	}
}
