package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONEmitterSerializesEvent(t *testing.T) {
	buf := &bytes.Buffer{}
	emitter := NewJSONEmitter(buf)

	event := Event{
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:     LevelWarn,
		Event:     EventRestart,
		RunID:     "run-1",
		Attempt:   2,
		Message:   "speed 0.40 MB/s below 1.00 MB/s, restarting",
		Details: map[string]any{
			"reason": "low_throughput",
		},
	}

	require.NoError(t, emitter.Emit(event))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &decoded))
	assert.Equal(t, string(EventRestart), decoded["event"])
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.EqualValues(t, 2, decoded["attempt"])
	assert.Equal(t, "low_throughput", decoded["details"].(map[string]any)["reason"])
}

func TestHumanEmitterRoutesByLevel(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	emitter := NewHumanEmitter(stdout, stderr, HumanOptions{})

	require.NoError(t, emitter.Emit(Event{Level: LevelInfo, Event: EventCompleted, Message: "transfer complete"}))
	require.NoError(t, emitter.Emit(Event{Level: LevelWarn, Event: EventStalled, Message: "no progress"}))
	require.NoError(t, emitter.Emit(Event{Level: LevelError, Event: EventFailed, Message: "giving up"}))

	assert.Equal(t, "transfer complete\n", stdout.String())
	assert.Contains(t, stderr.String(), "WARN: no progress")
	assert.Contains(t, stderr.String(), "ERROR: giving up")
}

func TestHumanEmitterQuietKeepsCompletionAndErrors(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	emitter := NewHumanEmitter(stdout, stderr, HumanOptions{Quiet: true})

	require.NoError(t, emitter.Emit(Event{Level: LevelInfo, Event: EventAttemptStarted, Message: "attempt 1"}))
	require.NoError(t, emitter.Emit(Event{Level: LevelWarn, Event: EventRestart, Message: "restarting"}))
	require.NoError(t, emitter.Emit(Event{Level: LevelInfo, Event: EventCompleted, Message: "done"}))
	require.NoError(t, emitter.Emit(Event{Level: LevelError, Event: EventFailed, Message: "boom"}))

	assert.Equal(t, "done\n", stdout.String())
	assert.Equal(t, "ERROR: boom\n", stderr.String())
}

func TestHumanEmitterHidesCooldownUnlessVerbose(t *testing.T) {
	stdout := &bytes.Buffer{}
	emitter := NewHumanEmitter(stdout, &bytes.Buffer{}, HumanOptions{})
	require.NoError(t, emitter.Emit(Event{Level: LevelInfo, Event: EventCooldown, Message: "waiting 5s"}))
	assert.Empty(t, stdout.String())

	verbose := NewHumanEmitter(stdout, &bytes.Buffer{}, HumanOptions{Verbose: true})
	require.NoError(t, verbose.Emit(Event{Level: LevelInfo, Event: EventCooldown, Message: "waiting 5s"}))
	assert.Equal(t, "waiting 5s\n", stdout.String())
}

type recordingRenderer struct {
	interrupts int
}

func (r *recordingRenderer) BeginAttempt(int) {}

func (r *recordingRenderer) Render(Line) error { return nil }

func (r *recordingRenderer) Interrupt() error {
	r.interrupts++
	return nil
}

func (r *recordingRenderer) Flush() error { return nil }

func TestObservingEmitterClearsRendererFirst(t *testing.T) {
	renderer := &recordingRenderer{}
	buf := &bytes.Buffer{}
	emitter := NewObservingEmitter(renderer, NewMultiEmitter(NewJSONEmitter(buf)))

	require.NoError(t, emitter.Emit(Event{Level: LevelInfo, Event: EventAttemptStarted}))
	assert.Equal(t, 1, renderer.interrupts)
	assert.Contains(t, buf.String(), "attempt_started")
}
