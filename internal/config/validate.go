package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	minPollIntervalMS = 10
	maxPollIntervalMS = 10_000
)

var progressModes = []string{"auto", "always", "never", "compact"}

type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid config"
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Problems, "; "))
}

func Validate(cfg Config) error {
	problems := []string{}

	if cfg.Version != 1 {
		problems = append(problems, "version must be 1")
	}

	if strings.TrimSpace(cfg.Command.Bin) == "" {
		problems = append(problems, "command.bin must be set")
	}
	for _, dir := range cfg.Command.ExtraPath {
		if !filepath.IsAbs(dir) {
			problems = append(problems, fmt.Sprintf("command.extra_path entry %q must resolve to an absolute path", dir))
		}
	}

	w := cfg.Watch
	if w.LowSpeedMBps <= 0 {
		problems = append(problems, "watch.low_speed_mbps must be > 0")
	}
	if w.ArmSpeedMBps < 0 {
		problems = append(problems, "watch.arm_speed_mbps must be >= 0")
	}
	if w.MinRunSeconds < 0 {
		problems = append(problems, "watch.min_run_seconds must be >= 0")
	}
	if w.ProgressTimeoutSeconds < 0 {
		problems = append(problems, "watch.progress_timeout_seconds must be >= 0 (0 disables the timeout)")
	}
	if w.CooldownSeconds < 0 {
		problems = append(problems, "watch.cooldown_seconds must be >= 0")
	}
	if w.PollIntervalMS < minPollIntervalMS || w.PollIntervalMS > maxPollIntervalMS {
		problems = append(problems, fmt.Sprintf("watch.poll_interval_ms must be between %d and %d", minPollIntervalMS, maxPollIntervalMS))
	}
	if w.LowSpeedSamples < 1 {
		problems = append(problems, "watch.low_speed_samples must be >= 1")
	}
	if w.LaunchRetries < 0 {
		problems = append(problems, "watch.launch_retries must be >= 0")
	}
	if w.MaxAttempts < 0 {
		problems = append(problems, "watch.max_attempts must be >= 0 (0 means unlimited)")
	}

	if !validProgressMode(cfg.Output.Progress) {
		problems = append(problems, fmt.Sprintf("output.progress must be one of %s", strings.Join(progressModes, ", ")))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func validProgressMode(mode string) bool {
	for _, candidate := range progressModes {
		if mode == candidate {
			return true
		}
	}
	return false
}
