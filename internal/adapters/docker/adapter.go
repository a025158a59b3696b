package docker

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/sirupsen/logrus"

	"github.com/slipway-sh/slipway/internal/core/domain"
	"github.com/slipway-sh/slipway/internal/core/ports"
)

// Adapter implements ports.ContainerService using Docker SDK
type Adapter struct {
	cli *client.Client
	log *logrus.Entry
}

// NewAdapter creates a new Docker adapter instance. An empty host defers
// to the DOCKER_HOST environment.
func NewAdapter(log *logrus.Logger, host string) (*Adapter, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli, log: log.WithField("component", "docker")}, nil
}

// ListContainers returns a list of running containers with details
func (a *Adapter) ListContainers(ctx context.Context) ([]domain.Container, error) {
	containers, err := a.cli.ContainerList(ctx, types.ContainerListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var result []domain.Container
	for _, c := range containers {
		// Use the first name if available, remove slash
		name := ""
		if len(c.Names) > 0 {
			name = c.Names[0][1:]
		}

		ip := ""
		if c.NetworkSettings != nil {
			for _, endpoint := range c.NetworkSettings.Networks {
				if endpoint.IPAddress != "" {
					ip = endpoint.IPAddress
					break
				}
			}
		}

		hostPort := 0
		for _, p := range c.Ports {
			if p.PublicPort != 0 {
				hostPort = int(p.PublicPort)
				break
			}
		}

		result = append(result, domain.Container{
			ID:        c.ID[:12], // Short ID
			Name:      name,
			Image:     c.Image,
			Status:    c.Status,
			State:     c.State,
			IPAddress: ip,
			Port:      hostPort,
		})
	}
	return result, nil
}

// StartContainer creates and starts a container from a locally built image.
// The workload port is published on the host and, when requested, all GPU
// devices are passed through. No restart policy is set: supervision after
// a crash is the orchestrator's job, not slipway's.
func (a *Adapter) StartContainer(ctx context.Context, image string, opts ports.RunOptions) (string, error) {
	port, err := nat.NewPort("tcp", strconv.Itoa(opts.Port))
	if err != nil {
		return "", fmt.Errorf("invalid workload port %d: %w", opts.Port, err)
	}

	hostPort := ""
	if opts.HostPort != 0 {
		hostPort = strconv.Itoa(opts.HostPort)
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: hostPort}},
		},
	}
	if opts.GPUs {
		hostConfig.DeviceRequests = []container.DeviceRequest{{
			Count:        -1, // all devices
			Capabilities: [][]string{{"gpu"}},
		}}
	}

	resp, err := a.cli.ContainerCreate(ctx, &container.Config{
		Image:        image,
		ExposedPorts: nat.PortSet{port: struct{}{}},
	}, hostConfig, nil, nil, opts.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	if err := a.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		// A container that never started must not linger half-created.
		_ = a.cli.ContainerRemove(ctx, resp.ID, types.ContainerRemoveOptions{Force: true})
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	a.log.WithFields(logrus.Fields{"container": resp.ID[:12], "image": image}).Info("container started")
	return resp.ID, nil
}

// StopContainer stops a running container
func (a *Adapter) StopContainer(ctx context.Context, id string) error {
	// Timeout can be configurable, but keeping it simple for now
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	graceSeconds := 10
	if err := a.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &graceSeconds}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}

	waitCh, errCh := a.cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case <-waitCh:
		return nil
	case err := <-errCh:
		return fmt.Errorf("failed waiting for container exit: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RemoveContainer removes a container, killing it first if needed.
func (a *Adapter) RemoveContainer(ctx context.Context, id string) error {
	if err := a.cli.ContainerRemove(ctx, id, types.ContainerRemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// InspectContainer reports whether the container still runs and, if not,
// how it exited.
func (a *Adapter) InspectContainer(ctx context.Context, id string) (*domain.ContainerState, error) {
	inspect, err := a.cli.ContainerInspect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}
	state := &domain.ContainerState{}
	if inspect.State != nil {
		state.Running = inspect.State.Running
		state.ExitCode = inspect.State.ExitCode
		state.Error = inspect.State.Error
	}
	return state, nil
}

// HostPort reports the host port a workload port was published on.
func (a *Adapter) HostPort(ctx context.Context, id string, port int) (int, error) {
	inspect, err := a.cli.ContainerInspect(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect container: %w", err)
	}
	natPort := nat.Port(fmt.Sprintf("%d/tcp", port))
	if inspect.NetworkSettings == nil {
		return 0, fmt.Errorf("container %s has no network settings", id)
	}
	bindings := inspect.NetworkSettings.Ports[natPort]
	for _, b := range bindings {
		hp, err := strconv.Atoi(b.HostPort)
		if err != nil {
			continue
		}
		return hp, nil
	}
	return 0, fmt.Errorf("port %d/tcp is not published for container %s", port, id)
}

// GetContainerLogs returns a stream of container logs
func (a *Adapter) GetContainerLogs(ctx context.Context, id string) (io.ReadCloser, error) {
	options := types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     false, // Can be true for streaming
		Timestamps: true,
	}
	return a.cli.ContainerLogs(ctx, id, options)
}
