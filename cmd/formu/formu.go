// Package formucmder
package formucmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/formu/cmd/formu/config"
	model3dcmder "github.com/papercomputeco/formu/cmd/formu/model3d"
	promptcmder "github.com/papercomputeco/formu/cmd/formu/prompt"
	quotacmder "github.com/papercomputeco/formu/cmd/formu/quota"
	restylecmder "github.com/papercomputeco/formu/cmd/formu/restyle"
	watchcmder "github.com/papercomputeco/formu/cmd/formu/watch"
	versioncmder "github.com/papercomputeco/formu/cmd/version"
	"github.com/papercomputeco/formu/pkg/session"
)

const formuLongDesc string = `Formu turns pictures into prompts, restyled images, and 3D models.

Generate and reuse prompts:
  formu prompt cat.png          Stream an analysis and a prompt for an image
  formu restyle cat.png         Restyle with the last generated prompt

Run generation jobs:
  formu restyle <image...>      Restyle images with a prompt
  formu model3d <image...>      Generate 3D models from images
  formu watch <dir>             Process images as they land in a folder

Account and settings:
  formu quota                   Show remaining usage allowance
  formu config list             Show configuration`

const formuShortDesc string = "Formu - image prompts, restyles, and 3D models"

func NewFormuCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "formu",
		Short:         formuShortDesc,
		Long:          formuLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	session.AddPersistentFlags(cmd)

	// Add subcommands
	cmd.AddCommand(promptcmder.NewPromptCmd())
	cmd.AddCommand(restylecmder.NewRestyleCmd())
	cmd.AddCommand(model3dcmder.NewModel3DCmd())
	cmd.AddCommand(watchcmder.NewWatchCmd())
	cmd.AddCommand(quotacmder.NewQuotaCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
