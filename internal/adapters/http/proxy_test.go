package http

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipway-sh/slipway/internal/core/domain"
)

func proxyApp(service DeploymentService) *fiber.App {
	app := fiber.New()
	proxy := NewProxyHandler(service, "localhost")
	app.Use(proxy.ProxyRequest)
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("control plane") })
	return app
}

func TestProxyRoutesToDeployment(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello from workload"))
	}))
	defer backend.Close()

	_, portStr, err := net.SplitHostPort(backend.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	service := new(mockService)
	service.On("List").Return([]*domain.Deployment{{
		ID:        "dep-1",
		Name:      "jewel-serve",
		HostPort:  port,
		State:     domain.StateRunning,
		CreatedAt: time.Now().UTC(),
	}})

	app := proxyApp(service)
	req := httptest.NewRequest("GET", "/", nil)
	req.Host = "jewel-serve.localhost"

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello from workload", string(body))
}

func TestProxyUnknownSubdomain(t *testing.T) {
	service := new(mockService)
	service.On("List").Return([]*domain.Deployment{})

	app := proxyApp(service)
	req := httptest.NewRequest("GET", "/", nil)
	req.Host = "ghost.localhost"

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestProxySkipsBareDomain(t *testing.T) {
	app := proxyApp(new(mockService))
	req := httptest.NewRequest("GET", "/", nil)
	req.Host = "localhost"

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "control plane", string(body))
}

func TestProxySkipsNonRunningDeployment(t *testing.T) {
	service := new(mockService)
	service.On("List").Return([]*domain.Deployment{{
		ID:    "dep-1",
		Name:  "jewel-serve",
		State: domain.StateStopped,
	}})

	app := proxyApp(service)
	req := httptest.NewRequest("GET", "/", nil)
	req.Host = "jewel-serve.localhost"

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
