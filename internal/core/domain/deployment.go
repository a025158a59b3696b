package domain

import (
	"fmt"
	"time"
)

// DeploymentState tracks a deployment through its lifecycle. There is no
// restarting state: supervision after a crash belongs to an external
// orchestrator, not to slipway.
type DeploymentState string

const (
	StatePending  DeploymentState = "pending"
	StateBuilding DeploymentState = "building"
	StateBuilt    DeploymentState = "built"
	StateStarting DeploymentState = "starting"
	StateRunning  DeploymentState = "running"
	StateStopped  DeploymentState = "stopped"
	StateExited   DeploymentState = "exited"
	StateFailed   DeploymentState = "failed"
)

// Deployment is one build-and-run of an application tree. Its lifetime is
// the container's lifetime; slipway keeps no record across restarts.
type Deployment struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Image       string          `json:"image"`
	ContainerID string          `json:"container_id,omitempty"`
	Port        int             `json:"port"`      // workload port inside the container
	HostPort    int             `json:"host_port"` // published port on the host
	State       DeploymentState `json:"state"`
	Error       string          `json:"error,omitempty"`
	ImageSize   int64           `json:"image_size,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ReadyAt     *time.Time      `json:"ready_at,omitempty"`
}

// BuildError is a build-stage failure. Builds are atomic: when a BuildError
// is returned no usable image exists under the requested tag.
type BuildError struct {
	Stage string // "spec", "manifest", "source", "image"
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build failed (%s): %v", e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// StartupError is a startup-stage failure: the entry point never bound its
// listener. ExitCode is the container's exit code when it died before the
// readiness window closed, or -1 when it was still running but unreachable.
type StartupError struct {
	ContainerID string
	ExitCode    int
	Err         error
}

func (e *StartupError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("startup failed: container exited with code %d: %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("startup failed: %v", e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }
