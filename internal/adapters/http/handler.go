package http

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"

	"github.com/slipway-sh/slipway/internal/core/domain"
	"github.com/slipway-sh/slipway/internal/deployer"
)

// DeploymentService is the slice of the deployer the handlers need.
type DeploymentService interface {
	Deploy(ctx context.Context, req deployer.Request) (*domain.Deployment, error)
	Stop(ctx context.Context, id string) error
	Check(ctx context.Context, id string) (*domain.Deployment, error)
	Logs(ctx context.Context, id string) (io.ReadCloser, error)
	Get(id string) (*domain.Deployment, error)
	List() []*domain.Deployment
}

type DeploymentHandler struct {
	service  DeploymentService
	allowGit bool
}

func NewDeploymentHandler(service DeploymentService, allowGit bool) *DeploymentHandler {
	return &DeploymentHandler{service: service, allowGit: allowGit}
}

type CreateDeploymentRequest struct {
	Source string `json:"source"` // local tree or git URL
	Name   string `json:"name"`
}

type deploymentResponse struct {
	*domain.Deployment
	ImageSizeHuman string `json:"image_size_human,omitempty"`
}

func render(dep *domain.Deployment) deploymentResponse {
	resp := deploymentResponse{Deployment: dep}
	if dep.ImageSize > 0 {
		resp.ImageSizeHuman = humanize.Bytes(uint64(dep.ImageSize))
	}
	return resp
}

func (h *DeploymentHandler) CreateDeployment(c *fiber.Ctx) error {
	var req CreateDeploymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Source == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Source is required",
		})
	}
	if !h.allowGit && looksLikeGit(req.Source) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Git sources are disabled",
		})
	}

	dep, err := h.service.Deploy(c.Context(), deployer.Request{Source: req.Source, Name: req.Name})
	if err != nil {
		status := fiber.StatusInternalServerError
		var buildErr *domain.BuildError
		var startErr *domain.StartupError
		switch {
		case errors.As(err, &buildErr):
			status = fiber.StatusUnprocessableEntity
		case errors.As(err, &startErr):
			status = fiber.StatusBadGateway
		}
		body := fiber.Map{"error": err.Error()}
		if dep != nil {
			body["deployment"] = render(dep)
		}
		return c.Status(status).JSON(body)
	}

	return c.Status(fiber.StatusCreated).JSON(render(dep))
}

func (h *DeploymentHandler) ListDeployments(c *fiber.Ctx) error {
	deployments := h.service.List()
	result := make([]deploymentResponse, 0, len(deployments))
	for _, dep := range deployments {
		result = append(result, render(dep))
	}
	return c.JSON(result)
}

func (h *DeploymentHandler) GetDeployment(c *fiber.Ctx) error {
	dep, err := h.service.Get(c.Params("id"))
	if err != nil {
		return c.Status(errStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(render(dep))
}

// CheckDeployment re-probes the deployment's listener and reports the
// refreshed state.
func (h *DeploymentHandler) CheckDeployment(c *fiber.Ctx) error {
	dep, err := h.service.Check(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(errStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	status := fiber.StatusOK
	if dep.State != domain.StateRunning {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(render(dep))
}

func (h *DeploymentHandler) StopDeployment(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.service.Stop(c.Context(), id); err != nil {
		return c.Status(errStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *DeploymentHandler) GetDeploymentLogs(c *fiber.Ctx) error {
	logs, err := h.service.Logs(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(errStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	c.Set("Content-Type", "text/plain")
	return c.SendStream(logs)
}

// errStatus maps deployer lookup failures to 404 and everything else to 500.
func errStatus(err error) int {
	if errors.Is(err, deployer.ErrNotFound) {
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

func looksLikeGit(source string) bool {
	return strings.HasPrefix(source, "http://") ||
		strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "git@") ||
		strings.HasPrefix(source, "ssh://") ||
		strings.HasSuffix(source, ".git")
}
