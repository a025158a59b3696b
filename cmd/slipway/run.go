package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/internal/adapters/builder"
	"github.com/slipway-sh/slipway/internal/adapters/docker"
	"github.com/slipway-sh/slipway/internal/deployer"
	"github.com/slipway-sh/slipway/internal/probe"
)

func newRunCmd() *cobra.Command {
	var name string
	var hostPort int

	cmd := &cobra.Command{
		Use:   "run <path|git-url>",
		Short: "Build an image and run it until its listener is ready",
		Long:  "Run performs the full pipeline: build, start, and wait for the workload port to accept TCP connections. The command exits nonzero if the build fails or the listener never binds within the startup window.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			dockerAdapter, err := docker.NewAdapter(log, cfg.DockerHost)
			if err != nil {
				return err
			}
			builderAdapter, err := builder.NewBuilderAdapter(log, cfg.DockerHost, cfg.BuildDir)
			if err != nil {
				return err
			}
			tcpProbe := probe.NewTCPProbe(cfg.ReadyWindow, cfg.ProbeInterval, log)
			d := deployer.New(builderAdapter, dockerAdapter, tcpProbe, log)

			dep, err := d.Deploy(cmd.Context(), deployer.Request{
				Source:   args[0],
				Name:     name,
				HostPort: hostPort,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Deployment %s is running: %s on host port %d\n", dep.Name, dep.Image, dep.HostPort)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "deployment name (default: descriptor name)")
	cmd.Flags().IntVar(&hostPort, "host-port", 0, "fixed host port for the workload listener (default: daemon-assigned)")
	return cmd
}
