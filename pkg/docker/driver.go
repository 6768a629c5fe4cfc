package docker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	containerapi "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/taylored/runnerd/pkg/types"
)

var (
	// ErrImageNotFound indicates the runner image is missing from the daemon.
	ErrImageNotFound = errors.New("runner image not found")
	// ErrNotFound indicates the referenced container does not exist.
	ErrNotFound = errors.New("container not found")
)

// stopTimeout bounds how long the daemon waits for the container's main
// process before killing it.
const stopTimeout = 10 * time.Second

// Driver is the narrow slice of the container daemon the orchestrator needs.
// The production implementation is Client; tests substitute a fake.
type Driver interface {
	ImageExists(ctx context.Context, image string) (bool, error)
	Create(ctx context.Context, cfg CreateConfig) (string, error)
	Start(ctx context.Context, containerID string) error
	Inspect(ctx context.Context, containerID string) (*ContainerState, error)
	Stop(ctx context.Context, containerID string) error
	Remove(ctx context.Context, containerID string) error
	ListSessionContainers(ctx context.Context) ([]SessionContainer, error)
	Close() error
}

// CreateConfig fixes everything the driver needs to create one runner
// container: the image, the session label, the agent port inside the
// container, and the network wiring.
type CreateConfig struct {
	Image         string
	SessionID     string
	ContainerPort int
	// HostPort is the published host port; ignored when NetworkMode is none.
	HostPort    int
	NetworkMode types.NetworkMode
}

// ContainerState is the subset of inspect output the orchestrator reads.
type ContainerState struct {
	ID      string
	Running bool
	Status  string
}

// SessionContainer pairs a live container with the session label it carries.
type SessionContainer struct {
	ContainerID string
	SessionID   string
}

// Client implements Driver against the local docker daemon.
type Client struct {
	cli *client.Client
}

// NewClient connects to the docker daemon. host overrides the socket when
// non-empty; otherwise the standard DOCKER_HOST resolution applies.
func NewClient(ctx context.Context, host string) (*Client, error) {
	opts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("failed to connect to docker daemon: %w", err)
	}

	return &Client{cli: cli}, nil
}

// Close releases the daemon connection.
func (c *Client) Close() error {
	return c.cli.Close()
}

// ImageExists probes the daemon for the named image.
func (c *Client) ImageExists(ctx context.Context, image string) (bool, error) {
	_, _, err := c.cli.ImageInspectWithRaw(ctx, image)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to inspect image %s: %w", image, err)
}

// Create creates a runner container and returns its id. The container is
// not started.
func (c *Client) Create(ctx context.Context, cfg CreateConfig) (string, error) {
	containerCfg := &containerapi.Config{
		Image: cfg.Image,
		Env:   []string{"PORT=" + strconv.Itoa(cfg.ContainerPort)},
		Labels: map[string]string{
			types.SessionLabelKey: cfg.SessionID,
		},
	}
	hostCfg := &containerapi.HostConfig{}

	switch {
	case cfg.NetworkMode == types.NetworkModeNone:
		hostCfg.NetworkMode = "none"
	case cfg.NetworkMode.CustomNetwork():
		hostCfg.NetworkMode = containerapi.NetworkMode(string(cfg.NetworkMode))
		bindPorts(containerCfg, hostCfg, cfg.ContainerPort, cfg.HostPort)
	default:
		bindPorts(containerCfg, hostCfg, cfg.ContainerPort, cfg.HostPort)
	}

	resp, err := c.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: %s", ErrImageNotFound, cfg.Image)
		}
		return "", fmt.Errorf("failed to create container: %w", err)
	}
	return resp.ID, nil
}

func bindPorts(containerCfg *containerapi.Config, hostCfg *containerapi.HostConfig, containerPort, hostPort int) {
	port := nat.Port(fmt.Sprintf("%d/tcp", containerPort))
	containerCfg.ExposedPorts = nat.PortSet{port: struct{}{}}
	hostCfg.PortBindings = nat.PortMap{
		port: []nat.PortBinding{{
			HostIP:   "0.0.0.0",
			HostPort: strconv.Itoa(hostPort),
		}},
	}
}

// Start starts a created container.
func (c *Client) Start(ctx context.Context, containerID string) error {
	if err := c.cli.ContainerStart(ctx, containerID, containerapi.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container %s: %w", containerID, err)
	}
	return nil
}

// Inspect returns the container's running state, or ErrNotFound.
func (c *Client) Inspect(ctx context.Context, containerID string) (*ContainerState, error) {
	info, err := c.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to inspect container %s: %w", containerID, err)
	}
	state := &ContainerState{ID: info.ID}
	if info.State != nil {
		state.Running = info.State.Running
		state.Status = info.State.Status
	}
	return state, nil
}

// Stop stops a container. A container that is already stopped or already
// gone counts as success, so deprovision and the reaper stay idempotent.
func (c *Client) Stop(ctx context.Context, containerID string) error {
	timeout := int(stopTimeout.Seconds())
	err := c.cli.ContainerStop(ctx, containerID, containerapi.StopOptions{Timeout: &timeout})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to stop container %s: %w", containerID, err)
	}
	return nil
}

// Remove force-removes a container. Not-found counts as success.
func (c *Client) Remove(ctx context.Context, containerID string) error {
	err := c.cli.ContainerRemove(ctx, containerID, containerapi.RemoveOptions{Force: true})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to remove container %s: %w", containerID, err)
	}
	return nil
}

// ListSessionContainers returns every container carrying the session label,
// running or not. Used by startup reconciliation to find orphans.
func (c *Client) ListSessionContainers(ctx context.Context) ([]SessionContainer, error) {
	list, err := c.cli.ContainerList(ctx, containerapi.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", types.SessionLabelKey)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list session containers: %w", err)
	}

	out := make([]SessionContainer, 0, len(list))
	for _, ct := range list {
		out = append(out, SessionContainer{
			ContainerID: ct.ID,
			SessionID:   ct.Labels[types.SessionLabelKey],
		})
	}
	return out, nil
}

func isNotFound(err error) bool {
	return cerrdefs.IsNotFound(err) || client.IsErrNotFound(err)
}
