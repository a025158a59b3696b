package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/internal/adapters/builder"
	"github.com/slipway-sh/slipway/internal/adapters/docker"
	slipwayhttp "github.com/slipway-sh/slipway/internal/adapters/http"
	"github.com/slipway-sh/slipway/internal/deployer"
	"github.com/slipway-sh/slipway/internal/probe"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the slipway control plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			// 1. Initialize Adapters (Infrastructure)
			dockerAdapter, err := docker.NewAdapter(log, cfg.DockerHost)
			if err != nil {
				return err
			}
			builderAdapter, err := builder.NewBuilderAdapter(log, cfg.DockerHost, cfg.BuildDir)
			if err != nil {
				return err
			}
			tcpProbe := probe.NewTCPProbe(cfg.ReadyWindow, cfg.ProbeInterval, log)

			// 2. Core service
			d := deployer.New(builderAdapter, dockerAdapter, tcpProbe, log)

			// 3. HTTP Handlers (Interface Adapters)
			deploymentHandler := slipwayhttp.NewDeploymentHandler(d, cfg.BuildFromGitOK)
			containerHandler := slipwayhttp.NewContainerHandler(dockerAdapter)
			proxyHandler := slipwayhttp.NewProxyHandler(d, cfg.ProxyDomain)

			// 4. Setup Framework (Fiber)
			app := fiber.New(fiber.Config{DisableStartupMessage: true})
			app.Use(proxyHandler.ProxyRequest)

			app.Get("/healthz", func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			api := app.Group("/api")
			v1 := api.Group("/v1")
			deployments := v1.Group("/deployments")
			deployments.Post("/", deploymentHandler.CreateDeployment)
			deployments.Get("/", deploymentHandler.ListDeployments)
			deployments.Get("/:id", deploymentHandler.GetDeployment)
			deployments.Get("/:id/health", deploymentHandler.CheckDeployment)
			deployments.Get("/:id/logs", deploymentHandler.GetDeploymentLogs)
			deployments.Delete("/:id", deploymentHandler.StopDeployment)

			containers := v1.Group("/containers")
			containers.Get("/", containerHandler.ListContainers)

			// 5. Start Server
			log.WithField("addr", cfg.ListenAddr).Info("control plane listening")
			return app.Listen(cfg.ListenAddr)
		},
	}
}
