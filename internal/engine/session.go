package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Session is the mutable record of one supervision attempt. It belongs to a
// single child process and is replaced when the next attempt begins.
type Session struct {
	ID                  string
	Attempt             int
	AttemptStart        time.Time
	LastProgressAt      time.Time
	BestProgress        int
	MonitoringArmed     bool
	RepeatedHeaderCount int
	LowSpeedSamples     int
	LastThroughput      float64
	SeenThroughput      bool
}

func NewSession(attempt int, now time.Time) *Session {
	return &Session{
		ID:             uuid.NewString(),
		Attempt:        attempt,
		AttemptStart:   now,
		LastProgressAt: now,
	}
}

// RecordProgress keeps BestProgress monotonic. It reports whether the value
// advanced; only an advance moves LastProgressAt.
func (s *Session) RecordProgress(progress int, now time.Time) bool {
	if progress <= s.BestProgress {
		return false
	}
	s.BestProgress = progress
	s.LastProgressAt = now
	return true
}

// RecordThroughput stores the sample and arms monitoring the first time a
// sample reaches armSpeed. It reports whether this sample armed it.
func (s *Session) RecordThroughput(speed float64, armSpeed float64) bool {
	s.LastThroughput = speed
	s.SeenThroughput = true
	if s.MonitoringArmed || speed < armSpeed {
		return false
	}
	s.MonitoringArmed = true
	return true
}

// ObserveHeader counts consecutive lines containing marker and reports
// whether this line is a repeat that should be hidden from the display.
func (s *Session) ObserveHeader(line string, marker string) bool {
	if marker == "" || !strings.Contains(line, marker) {
		s.RepeatedHeaderCount = 0
		return false
	}
	s.RepeatedHeaderCount++
	return s.RepeatedHeaderCount > 1
}

func (s *Session) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.AttemptStart)
}

func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastProgressAt)
}
