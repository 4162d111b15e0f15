package session

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/formu/pkg/config"
)

// Persistent flags registered on the root command.
const (
	FlagDebug     = "debug"
	FlagConfigDir = "config-dir"
	FlagLogFile   = "log-file"
	FlagToken     = "token"
)

// AddPersistentFlags registers the flags every formu subcommand inherits.
func AddPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolP(FlagDebug, "d", false, "Enable debug logging")
	cmd.PersistentFlags().String(FlagConfigDir, "", "Override path to the .formu/ config directory")
	cmd.PersistentFlags().String(FlagLogFile, "", "Also write JSON logs to this file")
	cmd.PersistentFlags().String(FlagToken, "", "Bearer token for usage tracking (or set FORMU_AUTH_TOKEN)")
}

// FromCommand resolves configuration for cmd and opens a Session. Call it from
// PreRunE or RunE once cobra has parsed the flags. registryKeys name the
// config.Flags entries cmd registered, so they take precedence over env and file.
func FromCommand(cmd *cobra.Command, registryKeys []string, quiet bool) (*Session, error) {
	configDir, _ := cmd.Flags().GetString(FlagConfigDir)
	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	config.BindRegisteredFlags(v, cmd, config.Flags, registryKeys)
	if f := cmd.Flags().Lookup(FlagToken); f != nil {
		_ = v.BindPFlag("auth.token", f)
	}

	debug, err := cmd.Flags().GetBool(FlagDebug)
	if err != nil {
		return nil, fmt.Errorf("could not get debug flag: %w", err)
	}
	logFile, _ := cmd.Flags().GetString(FlagLogFile)

	return New(v, Options{
		Command: cmd.Name(),
		Debug:   debug,
		LogFile: logFile,
		Quiet:   quiet,
		Stderr:  cmd.ErrOrStderr(),
	})
}
