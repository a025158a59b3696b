package ports

import (
	"context"

	"github.com/slipway-sh/slipway/internal/spec"
)

// BuildResult describes the image produced by a successful build. Spec is
// the effective descriptor: the caller's when one was passed, otherwise
// the one loaded from the staged source tree.
type BuildResult struct {
	ImageRef string
	ImageID  string
	Size     int64
	Spec     *spec.BuildSpec
}

// BuilderService defines operations for building container images from source code.
type BuilderService interface {
	// BuildImage fetches a source tree (local path or git URL), validates its
	// build spec and dependency manifest, and builds an image tagged imageRef.
	// The build is atomic: on error no usable image exists under imageRef.
	BuildImage(ctx context.Context, source string, imageRef string, bs *spec.BuildSpec) (*BuildResult, error)
}
