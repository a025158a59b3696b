package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/go-git/go-git/v5"
	"github.com/sirupsen/logrus"

	"github.com/slipway-sh/slipway/internal/core/domain"
	"github.com/slipway-sh/slipway/internal/core/ports"
	"github.com/slipway-sh/slipway/internal/spec"
)

type Adapter struct {
	cli      *client.Client
	log      *logrus.Entry
	buildDir string // root for staged contexts; empty uses the OS temp dir
}

// NewBuilderAdapter creates a builder against the docker daemon. An empty
// host defers to the DOCKER_HOST environment.
func NewBuilderAdapter(log *logrus.Logger, host, buildDir string) (*Adapter, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli, log: log.WithField("component", "builder"), buildDir: buildDir}, nil
}

// BuildImage fetches the source tree, validates the descriptor and the
// dependency manifest, and builds an image tagged imageRef. Every error
// path returns a domain.BuildError and leaves no usable image behind:
// the daemon only tags once the full instruction sequence has succeeded.
func (a *Adapter) BuildImage(ctx context.Context, source string, imageRef string, bs *spec.BuildSpec) (*ports.BuildResult, error) {
	ctxDir, err := a.stageContext(ctx, source)
	if err != nil {
		return nil, &domain.BuildError{Stage: "source", Err: err}
	}
	defer os.RemoveAll(ctxDir)

	if bs == nil {
		bs, err = spec.Load(ctxDir)
		if err != nil {
			return nil, &domain.BuildError{Stage: "spec", Err: err}
		}
	} else if err := bs.Validate(); err != nil {
		return nil, &domain.BuildError{Stage: "spec", Err: err}
	}

	if err := a.checkManifest(ctxDir, bs); err != nil {
		return nil, &domain.BuildError{Stage: "manifest", Err: err}
	}

	dockerfile := Dockerfile(bs)
	if err := os.WriteFile(filepath.Join(ctxDir, "Dockerfile"), []byte(dockerfile), 0o644); err != nil {
		return nil, &domain.BuildError{Stage: "source", Err: fmt.Errorf("failed to write Dockerfile: %w", err)}
	}

	tar, err := archive.TarWithOptions(ctxDir, &archive.TarOptions{})
	if err != nil {
		return nil, &domain.BuildError{Stage: "source", Err: fmt.Errorf("failed to create build context: %w", err)}
	}
	defer tar.Close()

	a.log.WithFields(logrus.Fields{"image": imageRef, "base": bs.BaseImage}).Info("building image")
	resp, err := a.cli.ImageBuild(ctx, tar, types.ImageBuildOptions{
		Tags:        []string{imageRef},
		Dockerfile:  "Dockerfile",
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return nil, &domain.BuildError{Stage: "image", Err: fmt.Errorf("failed to build image: %w", err)}
	}
	defer resp.Body.Close()

	if err := a.drainBuildStream(resp.Body); err != nil {
		return nil, &domain.BuildError{Stage: "image", Err: err}
	}

	inspect, _, err := a.cli.ImageInspectWithRaw(ctx, imageRef)
	if err != nil {
		return nil, &domain.BuildError{Stage: "image", Err: fmt.Errorf("built image is not inspectable: %w", err)}
	}

	a.log.WithFields(logrus.Fields{"image": imageRef, "id": inspect.ID}).Info("image built")
	return &ports.BuildResult{ImageRef: imageRef, ImageID: inspect.ID, Size: inspect.Size, Spec: bs}, nil
}

// stageContext materializes the build context in a temp directory: a git
// URL gets a shallow clone, a local path gets copied so the Dockerfile
// never touches the caller's tree.
func (a *Adapter) stageContext(ctx context.Context, source string) (string, error) {
	tmpDir, err := os.MkdirTemp(a.buildDir, "slipway-build-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	if isGitURL(source) {
		a.log.WithField("repo", source).Info("cloning repository")
		_, err = git.PlainCloneContext(ctx, tmpDir, false, &git.CloneOptions{
			URL:   source,
			Depth: 1,
		})
		if err != nil {
			os.RemoveAll(tmpDir)
			return "", fmt.Errorf("failed to clone repo: %w", err)
		}
		return tmpDir, nil
	}

	info, err := os.Stat(source)
	if err != nil {
		os.RemoveAll(tmpDir)
		return "", fmt.Errorf("source tree %s: %w", source, err)
	}
	if !info.IsDir() {
		os.RemoveAll(tmpDir)
		return "", fmt.Errorf("source tree %s is not a directory", source)
	}
	if err := os.CopyFS(tmpDir, os.DirFS(source)); err != nil {
		os.RemoveAll(tmpDir)
		return "", fmt.Errorf("failed to stage source tree: %w", err)
	}
	return tmpDir, nil
}

func isGitURL(source string) bool {
	return strings.HasPrefix(source, "http://") ||
		strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "git@") ||
		strings.HasPrefix(source, "ssh://") ||
		strings.HasSuffix(source, ".git")
}

// checkManifest validates the dependency manifest before the daemon is
// contacted. A missing or malformed manifest is build-fatal: shipping an
// image whose install step would have failed is exactly the partial-image
// state the contract forbids.
func (a *Adapter) checkManifest(ctxDir string, bs *spec.BuildSpec) error {
	if bs.Manifest == "" {
		return nil
	}
	content, err := os.ReadFile(filepath.Join(ctxDir, bs.Manifest))
	if err != nil {
		return fmt.Errorf("dependency manifest %s: %w", bs.Manifest, err)
	}
	entries, err := spec.ParseManifest(content)
	if err != nil {
		return err
	}
	a.log.WithField("packages", len(entries)).Debug("manifest validated")
	return nil
}

// drainBuildStream consumes the daemon's build output. Install failures
// inside RUN steps surface only as error frames in this stream, with the
// HTTP response already committed as 200, so the stream is the sole
// authority on whether the build actually succeeded.
func (a *Adapter) drainBuildStream(body io.Reader) error {
	dec := json.NewDecoder(body)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read build output: %w", err)
		}
		if msg.Error != nil {
			return fmt.Errorf("build step failed: %s", msg.Error.Message)
		}
		if stream := strings.TrimSpace(msg.Stream); stream != "" {
			a.log.WithField("step", stream).Debug("build output")
		}
	}
}
