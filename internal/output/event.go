package output

import "time"

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type EventName string

const (
	EventRunStarted      EventName = "run_started"
	EventAttemptStarted  EventName = "attempt_started"
	EventMonitoringArmed EventName = "monitoring_armed"
	EventLaunchFailed    EventName = "launch_failed"
	EventRestart         EventName = "restart"
	EventStalled         EventName = "stalled"
	EventCooldown        EventName = "cooldown"
	EventCompleted       EventName = "completed"
	EventFailed          EventName = "failed"
	EventInterrupted     EventName = "interrupted"
)

type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Event     EventName      `json:"event"`
	RunID     string         `json:"run_id,omitempty"`
	Attempt   int            `json:"attempt,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}
