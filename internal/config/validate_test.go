package config

import (
	"strings"
	"testing"
)

func TestValidateSuccess(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Command.ExtraPath = []string{"/usr/local/bin"}
	cfg.Watch.ProgressTimeoutSeconds = 0

	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateFailure(t *testing.T) {
	cfg := Config{
		Version: 2,
		Command: Command{
			Bin:       " ",
			ExtraPath: []string{"relative/bin"},
		},
		Watch: Watch{
			LowSpeedMBps:           0,
			ArmSpeedMBps:           -1,
			MinRunSeconds:          -1,
			ProgressTimeoutSeconds: -1,
			CooldownSeconds:        -1,
			PollIntervalMS:         1,
			LowSpeedSamples:        0,
			LaunchRetries:          -1,
			MaxAttempts:            -1,
		},
		Output: Output{Progress: "sometimes"},
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	validationErr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(validationErr.Problems) != 13 {
		t.Fatalf("expected every problem to be reported, got %d: %v", len(validationErr.Problems), validationErr.Problems)
	}
	if !strings.Contains(err.Error(), "output.progress must be one of auto, always, never, compact") {
		t.Fatalf("expected progress mode problem, got %v", err)
	}
}
