package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/formu/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the FORMU_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (FORMU_API_BASE_URL, FORMU_JOBS_WORKERS, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: FORMU_API_BASE_URL, FORMU_RESTYLE_MAX_ATTEMPTS, etc.
	v.SetEnvPrefix("FORMU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// API
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout", d.API.Timeout)

	// Prompt
	v.SetDefault("prompt.style", d.Prompt.Style)
	v.SetDefault("typewriter.tick", d.Typewriter.Tick)

	// Restyle
	v.SetDefault("restyle.poll_interval", d.Restyle.PollInterval)
	v.SetDefault("restyle.max_attempts", d.Restyle.MaxAttempts)
	v.SetDefault("restyle.model", d.Restyle.Model)
	v.SetDefault("restyle.size", d.Restyle.Size)
	v.SetDefault("restyle.strength", d.Restyle.Strength)

	// 3D generation
	v.SetDefault("model3d.poll_interval", d.Model3D.PollInterval)
	v.SetDefault("model3d.max_attempts", d.Model3D.MaxAttempts)

	// Job pool
	v.SetDefault("jobs.workers", d.Jobs.Workers)
	v.SetDefault("jobs.queue_size", d.Jobs.QueueSize)

	// Events
	v.SetDefault("events.kafka_brokers", d.Events.KafkaBrokers)
	v.SetDefault("events.kafka_topic", d.Events.KafkaTopic)

	// Auth is env and flag only; the default keeps FORMU_AUTH_TOKEN visible to AutomaticEnv.
	v.SetDefault("auth.token", "")
}
