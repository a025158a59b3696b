// Package deployer coordinates the build-and-run pipeline: build an
// immutable image, start exactly one foreground container from it, and
// refuse to call the deployment live until its listener accepts TCP
// connections within the bounded startup window.
package deployer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/slipway-sh/slipway/internal/core/domain"
	"github.com/slipway-sh/slipway/internal/core/ports"
	"github.com/slipway-sh/slipway/internal/spec"
)

// ErrNotFound reports an unknown deployment id.
var ErrNotFound = errors.New("deployment not found")

// Request describes one deployment to create.
type Request struct {
	Source   string // local tree or git URL
	Name     string // optional; derived from the descriptor when empty
	HostPort int    // optional fixed host port; 0 lets the daemon pick
	Spec     *spec.BuildSpec
}

type Deployer struct {
	builder ports.BuilderService
	runtime ports.ContainerService
	probe   ports.ProbeService
	log     *logrus.Entry

	// mu guards the registry and every field of the records inside it.
	// Records are live while a deploy is in flight, so all reads leaving
	// the package are snapshots.
	mu          sync.RWMutex
	deployments map[string]*domain.Deployment
}

func New(builder ports.BuilderService, runtime ports.ContainerService, probe ports.ProbeService, log *logrus.Logger) *Deployer {
	return &Deployer{
		builder:     builder,
		runtime:     runtime,
		probe:       probe,
		log:         log.WithField("component", "deployer"),
		deployments: make(map[string]*domain.Deployment),
	}
}

// Deploy runs the full pipeline synchronously. On a build failure no image
// is tagged; on a startup failure the container is removed. Either way the
// deployment record is kept in a failed state so the operator can read the
// error, but nothing half-running is left behind.
func (d *Deployer) Deploy(ctx context.Context, req Request) (*domain.Deployment, error) {
	dep := &domain.Deployment{
		ID:        uuid.NewString(),
		Name:      req.Name,
		State:     domain.StatePending,
		CreatedAt: time.Now().UTC(),
	}
	d.put(dep)

	result, bs, err := d.build(ctx, dep, req)
	if err != nil {
		d.fail(dep, err)
		return d.snapshot(dep), err
	}

	if err := d.start(ctx, dep, result, bs, req.HostPort); err != nil {
		d.fail(dep, err)
		return d.snapshot(dep), err
	}

	return d.snapshot(dep), nil
}

func (d *Deployer) build(ctx context.Context, dep *domain.Deployment, req Request) (*ports.BuildResult, *spec.BuildSpec, error) {
	name := dep.Name
	if name == "" {
		name = deploymentName(req)
	}
	imageRef := fmt.Sprintf("slipway/%s:%s", name, dep.ID[:8])
	d.update(dep, func(dep *domain.Deployment) {
		dep.Name = name
		dep.State = domain.StateBuilding
	})

	// For git sources the descriptor only exists once the tree is staged,
	// so the builder loads it and reports the effective spec back.
	result, err := d.builder.BuildImage(ctx, req.Source, imageRef, req.Spec)
	if err != nil {
		return nil, nil, err
	}

	bs := result.Spec
	if bs == nil {
		bs = spec.DefaultSpec()
	}
	d.update(dep, func(dep *domain.Deployment) {
		dep.Port = bs.Port
		dep.Image = result.ImageRef
		dep.ImageSize = result.Size
		dep.State = domain.StateBuilt
	})
	return result, bs, nil
}

// deploymentName derives a name ahead of the build: the request's, the
// passed descriptor's, the local tree's descriptor, in that order.
func deploymentName(req Request) string {
	if req.Spec != nil && req.Spec.Name != "" {
		return req.Spec.Name
	}
	if bs, err := spec.Load(req.Source); err == nil && bs.Name != "" {
		return bs.Name
	}
	return "app"
}

func (d *Deployer) start(ctx context.Context, dep *domain.Deployment, result *ports.BuildResult, bs *spec.BuildSpec, hostPort int) error {
	d.update(dep, func(dep *domain.Deployment) {
		dep.State = domain.StateStarting
	})

	containerID, err := d.runtime.StartContainer(ctx, result.ImageRef, ports.RunOptions{
		Name:     fmt.Sprintf("slipway-%s-%s", dep.Name, dep.ID[:8]),
		Port:     bs.Port,
		HostPort: hostPort,
		GPUs:     bs.GPUs,
	})
	if err != nil {
		return &domain.StartupError{ExitCode: -1, Err: err}
	}
	d.update(dep, func(dep *domain.Deployment) {
		dep.ContainerID = containerID
	})

	hostPort, err = d.runtime.HostPort(ctx, containerID, bs.Port)
	if err != nil {
		d.teardown(containerID)
		return &domain.StartupError{ContainerID: containerID, ExitCode: -1, Err: err}
	}
	d.update(dep, func(dep *domain.Deployment) {
		dep.HostPort = hostPort
	})

	if err := d.probe.WaitReady(ctx, probeAddr(hostPort)); err != nil {
		return d.startupFailure(ctx, containerID, err)
	}

	now := time.Now().UTC()
	d.update(dep, func(dep *domain.Deployment) {
		dep.ReadyAt = &now
		dep.State = domain.StateRunning
	})
	d.log.WithFields(logrus.Fields{
		"deployment": dep.ID,
		"container":  shortID(containerID),
		"host_port":  hostPort,
	}).Info("deployment ready")
	return nil
}

// startupFailure distinguishes a process that died before binding its
// listener from one that is alive but never became connectable. Both are
// startup-fatal; the exit code is surfaced when there is one.
func (d *Deployer) startupFailure(ctx context.Context, containerID string, probeErr error) error {
	exitCode := -1
	state, err := d.runtime.InspectContainer(ctx, containerID)
	if err == nil && !state.Running {
		exitCode = state.ExitCode
	}
	d.teardown(containerID)
	return &domain.StartupError{ContainerID: containerID, ExitCode: exitCode, Err: probeErr}
}

// teardown removes a failed container with a fresh context: the pipeline's
// context may already be cancelled, and a half-started container must not
// outlive the deployment attempt.
func (d *Deployer) teardown(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.runtime.RemoveContainer(ctx, containerID); err != nil {
		d.log.WithField("container", containerID).WithError(err).Warn("failed to remove container")
	}
}

// Stop delivers a termination signal and waits for the process to exit.
func (d *Deployer) Stop(ctx context.Context, id string) error {
	dep, err := d.get(id)
	if err != nil {
		return err
	}
	snap := d.snapshot(dep)
	if snap.ContainerID == "" {
		return fmt.Errorf("deployment %s has no container", id)
	}
	if err := d.runtime.StopContainer(ctx, snap.ContainerID); err != nil {
		return err
	}
	d.update(dep, func(dep *domain.Deployment) {
		dep.State = domain.StateStopped
	})
	return nil
}

// Check re-probes a running deployment's listener. The listener invariant
// says it must stay bound for the life of the process; a running container
// with an unreachable listener is reported as failed.
func (d *Deployer) Check(ctx context.Context, id string) (*domain.Deployment, error) {
	dep, err := d.get(id)
	if err != nil {
		return nil, err
	}
	snap := d.snapshot(dep)
	if snap.State != domain.StateRunning {
		return snap, nil
	}

	state, err := d.runtime.InspectContainer(ctx, snap.ContainerID)
	if err != nil {
		return nil, err
	}
	if !state.Running {
		d.update(dep, func(dep *domain.Deployment) {
			dep.Error = fmt.Sprintf("container exited with code %d", state.ExitCode)
			dep.State = domain.StateExited
		})
		return d.snapshot(dep), nil
	}
	if err := d.probe.Check(ctx, probeAddr(snap.HostPort)); err != nil {
		d.update(dep, func(dep *domain.Deployment) {
			dep.Error = fmt.Sprintf("listener unreachable: %v", err)
			dep.State = domain.StateFailed
		})
	}
	return d.snapshot(dep), nil
}

// Logs streams the container's output.
func (d *Deployer) Logs(ctx context.Context, id string) (io.ReadCloser, error) {
	dep, err := d.Get(id)
	if err != nil {
		return nil, err
	}
	if dep.ContainerID == "" {
		return nil, fmt.Errorf("deployment %s has no container", id)
	}
	return d.runtime.GetContainerLogs(ctx, dep.ContainerID)
}

// Get returns a snapshot of the deployment with the given id.
func (d *Deployer) Get(id string) (*domain.Deployment, error) {
	dep, err := d.get(id)
	if err != nil {
		return nil, err
	}
	return d.snapshot(dep), nil
}

// List returns snapshots of all deployments, newest first.
func (d *Deployer) List() []*domain.Deployment {
	d.mu.RLock()
	defer d.mu.RUnlock()
	result := make([]*domain.Deployment, 0, len(d.deployments))
	for _, dep := range d.deployments {
		cp := *dep
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// get returns the live record; callers must not expose it without
// snapshotting.
func (d *Deployer) get(id string) (*domain.Deployment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dep, ok := d.deployments[id]
	if !ok {
		return nil, fmt.Errorf("deployment %s: %w", id, ErrNotFound)
	}
	return dep, nil
}

func (d *Deployer) put(dep *domain.Deployment) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deployments[dep.ID] = dep
}

func (d *Deployer) snapshot(dep *domain.Deployment) *domain.Deployment {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cp := *dep
	return &cp
}

func (d *Deployer) update(dep *domain.Deployment, fn func(*domain.Deployment)) {
	d.mu.Lock()
	fn(dep)
	state := dep.State
	d.mu.Unlock()
	d.log.WithFields(logrus.Fields{"deployment": dep.ID, "state": state}).Debug("deployment updated")
}

func (d *Deployer) fail(dep *domain.Deployment, err error) {
	d.update(dep, func(dep *domain.Deployment) {
		dep.State = domain.StateFailed
		dep.Error = err.Error()
	})
	d.log.WithField("deployment", dep.ID).WithError(err).Error("deployment failed")
}

func probeAddr(hostPort int) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(hostPort))
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
