package engine

import (
	"time"
)

type ExecSpec struct {
	Bin            string
	Args           []string
	Dir            string
	Env            []string
	DisplayCommand string
}

// ExitStatus describes how a child process ended.
type ExitStatus struct {
	Code   int
	Killed bool
}

func (s ExitStatus) Success() bool {
	return s.Code == 0 && !s.Killed
}

// WatchOptions holds every threshold and timing knob of the supervisor.
// Speeds are in MB/s.
type WatchOptions struct {
	LowSpeed        float64
	ArmSpeed        float64
	MinRunTime      time.Duration
	ProgressTimeout time.Duration
	Cooldown        time.Duration
	PollInterval    time.Duration
	// LowSpeedSamples is the number of consecutive below-threshold samples
	// needed before a restart. 1 restarts on the first slow sample.
	LowSpeedSamples int
	LaunchRetries   int
	// MaxAttempts caps the number of launches; 0 means unlimited.
	MaxAttempts  int
	HeaderMarker string
}

func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		LowSpeed:        1.0,
		ArmSpeed:        0.1,
		MinRunTime:      20 * time.Second,
		ProgressTimeout: 300 * time.Second,
		Cooldown:        5 * time.Second,
		PollInterval:    100 * time.Millisecond,
		LowSpeedSamples: 1,
		LaunchRetries:   3,
		MaxAttempts:     0,
		HeaderMarker:    "pulling manifest",
	}
}

func (o WatchOptions) normalized() WatchOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = 100 * time.Millisecond
	}
	if o.LowSpeedSamples <= 0 {
		o.LowSpeedSamples = 1
	}
	if o.LaunchRetries < 0 {
		o.LaunchRetries = 0
	}
	if o.MaxAttempts < 0 {
		o.MaxAttempts = 0
	}
	return o
}

type Result struct {
	RunID     string
	Attempts  int
	Restarts  int
	Completed bool
	Reason    Reason
	Duration  time.Duration
}
