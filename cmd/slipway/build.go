package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/internal/adapters/builder"
)

func newBuildCmd() *cobra.Command {
	var tag string

	cmd := &cobra.Command{
		Use:   "build <path|git-url>",
		Short: "Build an image from a source tree without running it",
		Long:  "Build validates the descriptor and dependency manifest, then builds the image. Any install failure aborts with a nonzero exit and no image is tagged.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			builderAdapter, err := builder.NewBuilderAdapter(log, cfg.DockerHost, cfg.BuildDir)
			if err != nil {
				return err
			}

			result, err := builderAdapter.BuildImage(cmd.Context(), args[0], tag, nil)
			if err != nil {
				return err
			}

			fmt.Printf("Built %s (%s, %s)\n", result.ImageRef, result.ImageID, humanize.Bytes(uint64(result.Size)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "slipway/app:latest", "image tag")
	return cmd
}
