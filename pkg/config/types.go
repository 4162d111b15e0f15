package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent formu configuration stored as config.toml
// in the .formu/ directory. The TOML layout uses sections for logical grouping.
//
// Durations are stored as Go duration strings ("3s", "12ms"). The bearer
// token is deliberately absent: it only comes from FORMU_AUTH_TOKEN or --token.
type Config struct {
	Version    int              `toml:"version"`
	API        APIConfig        `toml:"api"`
	Prompt     PromptConfig     `toml:"prompt"`
	Typewriter TypewriterConfig `toml:"typewriter"`
	Restyle    RestyleConfig    `toml:"restyle"`
	Model3D    Model3DConfig    `toml:"model3d"`
	Jobs       JobsConfig       `toml:"jobs"`
	Events     EventsConfig     `toml:"events"`
}

// APIConfig holds settings for the generation backend.
type APIConfig struct {
	BaseURL string `toml:"base_url,omitempty"`
	Timeout string `toml:"timeout,omitempty"`
}

// PromptConfig holds prompt generation settings.
type PromptConfig struct {
	Style string `toml:"style,omitempty"`
}

// TypewriterConfig holds settings for the incremental text renderer.
type TypewriterConfig struct {
	Tick string `toml:"tick,omitempty"`
}

// RestyleConfig holds image-to-image settings and polling limits.
type RestyleConfig struct {
	PollInterval string  `toml:"poll_interval,omitempty"`
	MaxAttempts  int     `toml:"max_attempts,omitempty"`
	Model        string  `toml:"model,omitempty"`
	Size         string  `toml:"size,omitempty"`
	Strength     float64 `toml:"strength,omitempty"`
}

// Model3DConfig holds 3D generation polling limits.
type Model3DConfig struct {
	PollInterval string `toml:"poll_interval,omitempty"`
	MaxAttempts  int    `toml:"max_attempts,omitempty"`
}

// JobsConfig sizes the background job pool used by "formu watch".
type JobsConfig struct {
	Workers   int `toml:"workers,omitempty"`
	QueueSize int `toml:"queue_size,omitempty"`
}

// EventsConfig holds job lifecycle event publishing settings.
// Publishing is disabled when KafkaBrokers is empty.
type EventsConfig struct {
	// KafkaBrokers is a comma separated list of host:port pairs.
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func setDuration(key string, v string, target *string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid value for %s: must be positive", key)
	}
	*target = v
	return nil
}

func setPositiveInt(key string, v string, target *int) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if n <= 0 {
		return fmt.Errorf("invalid value for %s: must be positive", key)
	}
	*target = n
	return nil
}

func formatInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"api.base_url": {
		get: func(c *Config) string { return c.API.BaseURL },
		set: func(c *Config, v string) error { c.API.BaseURL = v; return nil },
	},
	"api.timeout": {
		get: func(c *Config) string { return c.API.Timeout },
		set: func(c *Config, v string) error { return setDuration("api.timeout", v, &c.API.Timeout) },
	},
	"prompt.style": {
		get: func(c *Config) string { return c.Prompt.Style },
		set: func(c *Config, v string) error { c.Prompt.Style = v; return nil },
	},
	"typewriter.tick": {
		get: func(c *Config) string { return c.Typewriter.Tick },
		set: func(c *Config, v string) error { return setDuration("typewriter.tick", v, &c.Typewriter.Tick) },
	},
	"restyle.poll_interval": {
		get: func(c *Config) string { return c.Restyle.PollInterval },
		set: func(c *Config, v string) error { return setDuration("restyle.poll_interval", v, &c.Restyle.PollInterval) },
	},
	"restyle.max_attempts": {
		get: func(c *Config) string { return formatInt(c.Restyle.MaxAttempts) },
		set: func(c *Config, v string) error { return setPositiveInt("restyle.max_attempts", v, &c.Restyle.MaxAttempts) },
	},
	"restyle.model": {
		get: func(c *Config) string { return c.Restyle.Model },
		set: func(c *Config, v string) error { c.Restyle.Model = v; return nil },
	},
	"restyle.size": {
		get: func(c *Config) string { return c.Restyle.Size },
		set: func(c *Config, v string) error { c.Restyle.Size = v; return nil },
	},
	"restyle.strength": {
		get: func(c *Config) string {
			if c.Restyle.Strength == 0 {
				return ""
			}
			return strconv.FormatFloat(c.Restyle.Strength, 'g', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for restyle.strength: %w", err)
			}
			if f <= 0 || f > 1 {
				return errors.New("invalid value for restyle.strength: must be in (0, 1]")
			}
			c.Restyle.Strength = f
			return nil
		},
	},
	"model3d.poll_interval": {
		get: func(c *Config) string { return c.Model3D.PollInterval },
		set: func(c *Config, v string) error { return setDuration("model3d.poll_interval", v, &c.Model3D.PollInterval) },
	},
	"model3d.max_attempts": {
		get: func(c *Config) string { return formatInt(c.Model3D.MaxAttempts) },
		set: func(c *Config, v string) error { return setPositiveInt("model3d.max_attempts", v, &c.Model3D.MaxAttempts) },
	},
	"jobs.workers": {
		get: func(c *Config) string { return formatInt(c.Jobs.Workers) },
		set: func(c *Config, v string) error { return setPositiveInt("jobs.workers", v, &c.Jobs.Workers) },
	},
	"jobs.queue_size": {
		get: func(c *Config) string { return formatInt(c.Jobs.QueueSize) },
		set: func(c *Config, v string) error { return setPositiveInt("jobs.queue_size", v, &c.Jobs.QueueSize) },
	},
	"events.kafka_brokers": {
		get: func(c *Config) string { return c.Events.KafkaBrokers },
		set: func(c *Config, v string) error { c.Events.KafkaBrokers = v; return nil },
	},
	"events.kafka_topic": {
		get: func(c *Config) string { return c.Events.KafkaTopic },
		set: func(c *Config, v string) error { c.Events.KafkaTopic = v; return nil },
	},
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(value string) []string {
	var out []string
	for part := range strings.SplitSeq(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
