package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/slipway-sh/slipway/internal/core/domain"
)

// ContainerLister is the slice of the container runtime the listing
// endpoint needs.
type ContainerLister interface {
	ListContainers(ctx context.Context) ([]domain.Container, error)
}

// ContainerHandler exposes the runtime's raw container view, deployments
// or not. Useful for spotting leftover containers next to the deployment
// registry.
type ContainerHandler struct {
	service ContainerLister
}

func NewContainerHandler(service ContainerLister) *ContainerHandler {
	return &ContainerHandler{service: service}
}

func (h *ContainerHandler) ListContainers(c *fiber.Ctx) error {
	containers, err := h.service.ListContainers(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(containers)
}
