package config

import "fmt"

func DefaultTemplate() string {
	d := DefaultConfig()
	return fmt.Sprintf(`version: 1
command:
  bin: %q
  args: ["pull", "deepseek-r1:7b"]
  # extra_path: ["~/.local/bin"]
  # env_file: "~/.config/pullguard/ollama.env"
watch:
  low_speed_mbps: %.1f
  arm_speed_mbps: %.1f
  min_run_seconds: %d
  progress_timeout_seconds: %d
  cooldown_seconds: %d
  poll_interval_ms: %d
  low_speed_samples: %d
  launch_retries: %d
  max_attempts: %d
  header_marker: %q
output:
  progress: %q
`,
		d.Command.Bin,
		d.Watch.LowSpeedMBps,
		d.Watch.ArmSpeedMBps,
		d.Watch.MinRunSeconds,
		d.Watch.ProgressTimeoutSeconds,
		d.Watch.CooldownSeconds,
		d.Watch.PollIntervalMS,
		d.Watch.LowSpeedSamples,
		d.Watch.LaunchRetries,
		d.Watch.MaxAttempts,
		d.Watch.HeaderMarker,
		d.Output.Progress,
	)
}
