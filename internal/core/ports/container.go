package ports

import (
	"context"
	"io"

	"github.com/slipway-sh/slipway/internal/core/domain"
)

// RunOptions controls how a built image is started.
type RunOptions struct {
	Name     string
	Port     int  // workload port inside the container
	HostPort int  // published port on the host; 0 lets the daemon pick
	GPUs     bool // request all GPU devices from the runtime
}

// ContainerService defines the core operations for managing containers.
// This interface allows us to switch between Docker, Podman, or Kubernetes
// without changing the business logic.
type ContainerService interface {
	ListContainers(ctx context.Context) ([]domain.Container, error)
	StartContainer(ctx context.Context, image string, opts RunOptions) (string, error)
	StopContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string) error
	InspectContainer(ctx context.Context, id string) (*domain.ContainerState, error)
	// HostPort reports the host port the workload port was published on.
	HostPort(ctx context.Context, id string, port int) (int, error)
	GetContainerLogs(ctx context.Context, id string) (io.ReadCloser, error)
}
