// Package model3dcmder provides the model3d command, which turns images into
// 3D models.
package model3dcmder

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/formu/pkg/batch"
	"github.com/papercomputeco/formu/pkg/config"
	"github.com/papercomputeco/formu/pkg/jobs"
	"github.com/papercomputeco/formu/pkg/session"
	"github.com/papercomputeco/formu/pkg/tui"
)

type model3DCommander struct {
	prompt       string
	pollInterval string
	maxAttempts  int
	plain        bool
}

var registryKeys = []string{
	config.FlagModel3DPollInterval,
	config.FlagModel3DMaxAttempts,
}

const model3DLongDesc string = `Generate 3D models from one or more images.

Each image is submitted as a 3D generation job and polled until the backend
reports success or failure, showing its progress along the way. Finished jobs
print the model and preview URLs.

Requires a token (--token or FORMU_AUTH_TOKEN) with uses left.

Examples:
  formu model3d chair.png
  formu model3d chair.png --prompt "low poly" --max-attempts 200`

const model3DShortDesc string = "Generate 3D models from images"

func NewModel3DCmd() *cobra.Command {
	cmder := &model3DCommander{}

	cmd := &cobra.Command{
		Use:   "model3d <image...>",
		Short: model3DShortDesc,
		Long:  model3DLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interactive := !cmder.plain && tui.IsTerminal(cmd.OutOrStdout())

			sess, err := session.FromCommand(cmd, registryKeys, interactive)
			if err != nil {
				return err
			}
			defer sess.Close()

			list, err := batch.LoadJobs(jobs.KindModel3D, args, cmder.prompt)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return batch.RunList(ctx, batch.Config{
				Session:     sess,
				Title:       "formu model3d",
				Interactive: interactive,
				Out:         cmd.OutOrStdout(),
			}, list)
		},
	}

	cmd.Flags().StringVarP(&cmder.prompt, "prompt", "p", "", "Optional text guiding the model")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Print one line per job even when stdout is a terminal")
	config.AddStringFlag(cmd, config.Flags, config.FlagModel3DPollInterval, &cmder.pollInterval)
	config.AddIntFlag(cmd, config.Flags, config.FlagModel3DMaxAttempts, &cmder.maxAttempts)

	return cmd
}
