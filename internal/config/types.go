package config

type Config struct {
	Version int     `yaml:"version"`
	Command Command `yaml:"command"`
	Watch   Watch   `yaml:"watch"`
	Output  Output  `yaml:"output"`
}

// Command is the supervised child invocation.
type Command struct {
	Bin       string   `yaml:"bin"`
	Args      []string `yaml:"args"`
	ExtraPath []string `yaml:"extra_path,omitempty"`
	Dir       string   `yaml:"dir,omitempty"`
	// EnvFile holds KEY=VALUE lines added to the child's environment.
	EnvFile string `yaml:"env_file,omitempty"`
}

type Watch struct {
	LowSpeedMBps           float64 `yaml:"low_speed_mbps"`
	ArmSpeedMBps           float64 `yaml:"arm_speed_mbps"`
	MinRunSeconds          int     `yaml:"min_run_seconds"`
	ProgressTimeoutSeconds int     `yaml:"progress_timeout_seconds"`
	CooldownSeconds        int     `yaml:"cooldown_seconds"`
	PollIntervalMS         int     `yaml:"poll_interval_ms"`
	LowSpeedSamples        int     `yaml:"low_speed_samples"`
	LaunchRetries          int     `yaml:"launch_retries"`
	MaxAttempts            int     `yaml:"max_attempts"`
	HeaderMarker           string  `yaml:"header_marker"`
}

type Output struct {
	Progress string `yaml:"progress"`
}

func DefaultConfig() Config {
	return Config{
		Version: 1,
		Command: Command{
			Bin:  "ollama",
			Args: []string{"pull", "deepseek-r1:7b"},
		},
		Watch: Watch{
			LowSpeedMBps:           1.0,
			ArmSpeedMBps:           0.1,
			MinRunSeconds:          20,
			ProgressTimeoutSeconds: 300,
			CooldownSeconds:        5,
			PollIntervalMS:         100,
			LowSpeedSamples:        1,
			LaunchRetries:          3,
			MaxAttempts:            0,
			HeaderMarker:           "pulling manifest",
		},
		Output: Output{
			Progress: "auto",
		},
	}
}
