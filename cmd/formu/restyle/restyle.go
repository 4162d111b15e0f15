// Package restylecmder provides the restyle command, which turns images into
// new images guided by a prompt.
package restylecmder

import (
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/formu/pkg/batch"
	"github.com/papercomputeco/formu/pkg/config"
	"github.com/papercomputeco/formu/pkg/dotdir"
	"github.com/papercomputeco/formu/pkg/jobs"
	"github.com/papercomputeco/formu/pkg/session"
	"github.com/papercomputeco/formu/pkg/tui"
)

type restyleCommander struct {
	prompt       string
	model        string
	size         string
	strength     float64
	pollInterval string
	maxAttempts  int
	plain        bool
}

var registryKeys = []string{
	config.FlagRestyleModel,
	config.FlagRestyleSize,
	config.FlagRestyleStrength,
	config.FlagRestylePollInterval,
	config.FlagRestyleMaxAttempts,
}

const restyleLongDesc string = `Restyle one or more images with a prompt.

Each image is uploaded as an asynchronous restyle job, then polled until the
backend reports success or failure. Jobs run concurrently and each success is
counted against your usage allowance.

Without --prompt, the prompt saved by the last "formu prompt" run is used.
Requires a token (--token or FORMU_AUTH_TOKEN) with uses left.

Examples:
  formu restyle cat.png --prompt "a watercolor painting of a cat"
  formu restyle *.jpg --size 512x512 --strength 0.6
  formu prompt ref.png && formu restyle cat.png dog.png`

const restyleShortDesc string = "Restyle images with a prompt"

func NewRestyleCmd() *cobra.Command {
	cmder := &restyleCommander{}

	cmd := &cobra.Command{
		Use:   "restyle <image...>",
		Short: restyleShortDesc,
		Long:  restyleLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interactive := !cmder.plain && tui.IsTerminal(cmd.OutOrStdout())

			sess, err := session.FromCommand(cmd, registryKeys, interactive)
			if err != nil {
				return err
			}
			defer sess.Close()

			configDir, _ := cmd.Flags().GetString(session.FlagConfigDir)
			prompt, err := resolvePrompt(cmder.prompt, configDir)
			if err != nil {
				return err
			}

			list, err := batch.LoadJobs(jobs.KindRestyle, args, prompt)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return batch.RunList(ctx, batch.Config{
				Session:     sess,
				Title:       "formu restyle",
				Interactive: interactive,
				Out:         cmd.OutOrStdout(),
			}, list)
		},
	}

	cmd.Flags().StringVarP(&cmder.prompt, "prompt", "p", "", "Prompt describing the new style")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Print one line per job even when stdout is a terminal")
	config.AddStringFlag(cmd, config.Flags, config.FlagRestyleModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagRestyleSize, &cmder.size)
	config.AddFloatFlag(cmd, config.Flags, config.FlagRestyleStrength, &cmder.strength)
	config.AddStringFlag(cmd, config.Flags, config.FlagRestylePollInterval, &cmder.pollInterval)
	config.AddIntFlag(cmd, config.Flags, config.FlagRestyleMaxAttempts, &cmder.maxAttempts)

	return cmd
}

// resolvePrompt prefers an explicit prompt over the saved one.
func resolvePrompt(prompt, configDir string) (string, error) {
	if prompt != "" {
		return prompt, nil
	}

	last, err := dotdir.NewManager().LoadLastPrompt(configDir)
	if err != nil {
		return "", err
	}
	if last == nil || last.Prompt == "" {
		return "", errors.New(`no --prompt given and no saved prompt; run "formu prompt <image>" first`)
	}
	return last.Prompt, nil
}
