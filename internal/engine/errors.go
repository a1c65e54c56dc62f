package engine

import (
	"errors"
	"fmt"
)

var (
	ErrInterrupted       = errors.New("supervision interrupted")
	ErrLaunchExhausted   = errors.New("child process could not be launched")
	ErrAttemptsExhausted = errors.New("maximum attempts reached without completion")
	ErrPollTimeout       = errors.New("no output within poll interval")
)

// LaunchError reports a child executable that is missing or cannot be spawned.
type LaunchError struct {
	Bin string
	Err error
}

func (e *LaunchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("launch %s", e.Bin)
	}
	return fmt.Sprintf("launch %s: %v", e.Bin, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
