package http

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/slipway-sh/slipway/internal/core/domain"
)

// ProxyHandler routes subdomain requests (e.g. jewel-serve.localhost) to
// the matching deployment's published port. This is an operator
// convenience for workloads known to speak HTTP; the deployment contract
// itself never assumes a protocol on the exposed port, so anything that
// isn't HTTP simply cannot be proxied and must be reached via the
// published host port directly.
type ProxyHandler struct {
	service DeploymentService
	domain  string
}

// NewProxyHandler creates a new proxy handler for the given base domain.
func NewProxyHandler(service DeploymentService, baseDomain string) *ProxyHandler {
	return &ProxyHandler{service: service, domain: baseDomain}
}

// ProxyRequest intercepts requests to subdomains of the configured base
// domain and forwards them to the corresponding deployment.
func (h *ProxyHandler) ProxyRequest(c *fiber.Ctx) error {
	host := c.Hostname()

	suffix := "." + h.domain
	if !strings.HasSuffix(host, suffix) {
		return c.Next()
	}
	subdomain := strings.TrimSuffix(host, suffix)
	if subdomain == "" || subdomain == "www" || strings.Contains(subdomain, ".") {
		return c.Next()
	}

	var target *domain.Deployment
	for _, dep := range h.service.List() {
		if dep.Name == subdomain && dep.State == domain.StateRunning {
			target = dep
			break
		}
	}
	if target == nil {
		return c.Status(fiber.StatusNotFound).SendString(fmt.Sprintf("App '%s' not found or not running", subdomain))
	}

	remote, err := url.Parse(fmt.Sprintf("http://127.0.0.1:%d", target.HostPort))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Invalid target URL")
	}

	proxy := httputil.NewSingleHostReverseProxy(remote)

	// Rewrite the Host header to the target so the workload sees a host
	// it expects instead of the subdomain.
	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = remote.Host
		req.URL.Host = remote.Host
		req.URL.Scheme = remote.Scheme
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(fmt.Sprintf("Proxy Info: target=%s error=%v", remote.Host, err)))
	}

	// Fiber <-> Net/HTTP Adaptor
	return adaptor.HTTPHandler(proxy)(c)
}
