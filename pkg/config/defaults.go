package config

const (
	defaultBaseURL = "http://localhost:8000"
	defaultTimeout = "60s"

	defaultPromptStyle = "realistic"

	defaultTypewriterTick = "12ms"

	defaultRestylePollInterval = "3s"
	defaultRestyleMaxAttempts  = 60
	defaultRestyleModel        = "sora_image"
	defaultRestyleSize         = "1024x1024"
	defaultRestyleStrength     = 0.8

	defaultModel3DPollInterval = "5s"
	defaultModel3DMaxAttempts  = 120

	defaultJobWorkers   = 3
	defaultJobQueueSize = 16

	defaultKafkaTopic = "formu.jobs"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			BaseURL: defaultBaseURL,
			Timeout: defaultTimeout,
		},
		Prompt: PromptConfig{
			Style: defaultPromptStyle,
		},
		Typewriter: TypewriterConfig{
			Tick: defaultTypewriterTick,
		},
		Restyle: RestyleConfig{
			PollInterval: defaultRestylePollInterval,
			MaxAttempts:  defaultRestyleMaxAttempts,
			Model:        defaultRestyleModel,
			Size:         defaultRestyleSize,
			Strength:     defaultRestyleStrength,
		},
		Model3D: Model3DConfig{
			PollInterval: defaultModel3DPollInterval,
			MaxAttempts:  defaultModel3DMaxAttempts,
		},
		Jobs: JobsConfig{
			Workers:   defaultJobWorkers,
			QueueSize: defaultJobQueueSize,
		},
		Events: EventsConfig{
			KafkaTopic: defaultKafkaTopic,
		},
	}
}
