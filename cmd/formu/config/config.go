// Package configcmder provides the config command for managing persistent
// formu configuration stored in the .formu/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent formu configuration.

Configuration is stored as config.toml in the .formu/ directory and provides
default values for command flags. CLI flags and FORMU_* environment variables
always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  api.base_url, api.timeout,
  prompt.style, typewriter.tick,
  restyle.poll_interval, restyle.max_attempts,
  restyle.model, restyle.size, restyle.strength,
  model3d.poll_interval, model3d.max_attempts,
  jobs.workers, jobs.queue_size,
  events.kafka_brokers, events.kafka_topic

The auth token is never stored here; use FORMU_AUTH_TOKEN or --token.

Use subcommands to get, set, or list configuration values:
  formu config set <key> <value>    Set a configuration value
  formu config get <key>            Get a configuration value
  formu config list                 List all configuration values

Examples:
  formu config set api.base_url https://formu.example.com
  formu config set restyle.poll_interval 2s
  formu config get prompt.style
  formu config list`

const configShortDesc string = "Manage persistent formu configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
