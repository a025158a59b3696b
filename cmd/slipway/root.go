package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "slipway",
	Short:        "Build-and-run contract service for GPU inference containers",
	Long:         "Slipway builds immutable runtime images from a build descriptor and runs them as single foreground containers, refusing to call a deployment live until its listener accepts connections.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (overrides SLIPWAY_* env)")
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newRunCmd())
}

func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	log.SetLevel(level)
	return cfg, log, nil
}
