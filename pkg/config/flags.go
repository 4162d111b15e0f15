package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --poll-interval
// on both "formu restyle" and "formu model3d", bound to different keys).
type Flag struct {
	// Name is the long flag name (e.g. "poll-interval").
	Name string

	// Shorthand is the one-letter short flag (e.g. "s"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "restyle.poll_interval").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddIntFlag, AddFloatFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagBaseURL         = "api-url"
	FlagTimeout         = "timeout"
	FlagStyle           = "style"
	FlagTick            = "tick"
	FlagRestyleModel    = "model"
	FlagRestyleSize     = "size"
	FlagRestyleStrength = "strength"
	FlagWorkers         = "workers"
	FlagQueueSize       = "queue-size"
	FlagKafkaBrokers    = "kafka-brokers"
	FlagKafkaTopic      = "kafka-topic"

	// Both job kinds use "poll-interval" and "max-attempts" as the flag
	// names but bind to different viper keys depending on the kind.
	FlagRestylePollInterval = "restyle-poll-interval"
	FlagRestyleMaxAttempts  = "restyle-max-attempts"
	FlagModel3DPollInterval = "model3d-poll-interval"
	FlagModel3DMaxAttempts  = "model3d-max-attempts"
)

// Flags is the shared registry used by the formu commands.
var Flags = FlagSet{
	FlagBaseURL:         {Name: "api-url", ViperKey: "api.base_url", Description: "Generation backend URL"},
	FlagTimeout:         {Name: "timeout", ViperKey: "api.timeout", Description: "Timeout for non-streaming requests"},
	FlagStyle:           {Name: "style", Shorthand: "s", ViperKey: "prompt.style", Description: "Prompt style"},
	FlagTick:            {Name: "tick", ViperKey: "typewriter.tick", Description: "Delay between revealed characters"},
	FlagRestyleModel:    {Name: "model", ViperKey: "restyle.model", Description: "Image model used for restyling"},
	FlagRestyleSize:     {Name: "size", ViperKey: "restyle.size", Description: "Output image size"},
	FlagRestyleStrength: {Name: "strength", ViperKey: "restyle.strength", Description: "How strongly the prompt restyles the image (0-1]"},
	FlagWorkers:         {Name: "workers", Shorthand: "w", ViperKey: "jobs.workers", Description: "Number of concurrent jobs"},
	FlagQueueSize:       {Name: "queue-size", ViperKey: "jobs.queue_size", Description: "Maximum number of waiting jobs"},
	FlagKafkaBrokers:    {Name: "kafka-brokers", ViperKey: "events.kafka_brokers", Description: "Comma separated Kafka brokers for job events"},
	FlagKafkaTopic:      {Name: "kafka-topic", ViperKey: "events.kafka_topic", Description: "Kafka topic for job events"},

	FlagRestylePollInterval: {Name: "poll-interval", ViperKey: "restyle.poll_interval", Description: "Delay between restyle status checks"},
	FlagRestyleMaxAttempts:  {Name: "max-attempts", ViperKey: "restyle.max_attempts", Description: "Status checks before a restyle times out"},
	FlagModel3DPollInterval: {Name: "poll-interval", ViperKey: "model3d.poll_interval", Description: "Delay between 3D status checks"},
	FlagModel3DMaxAttempts:  {Name: "max-attempts", ViperKey: "model3d.max_attempts", Description: "Status checks before a 3D job times out"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *int) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaults().GetInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddFloatFlag registers a float64 flag on cmd from the given FlagSet.
func AddFloatFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *float64) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaults().GetFloat64(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().Float64VarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().Float64Var(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	return defaults().GetString(viperKey)
}

// defaults returns a viper instance holding only NewDefaultConfig values.
func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
