package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

type EventEmitter interface {
	Emit(event Event) error
}

type JSONEmitter struct {
	enc *json.Encoder
	mu  sync.Mutex
}

func NewJSONEmitter(w io.Writer) *JSONEmitter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONEmitter{enc: enc}
}

func (e *JSONEmitter) Emit(event Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(event)
}

type HumanOptions struct {
	Quiet   bool
	Verbose bool
	Color   bool
}

type HumanEmitter struct {
	stdout io.Writer
	stderr io.Writer
	opts   HumanOptions
	styles map[EventName]lipgloss.Style
}

func NewHumanEmitter(stdout, stderr io.Writer, opts HumanOptions) *HumanEmitter {
	return &HumanEmitter{
		stdout: stdout,
		stderr: stderr,
		opts:   opts,
		styles: eventStyles(),
	}
}

func eventStyles() map[EventName]lipgloss.Style {
	bold := lipgloss.NewStyle().Bold(true)
	return map[EventName]lipgloss.Style{
		EventRunStarted:      bold.Foreground(lipgloss.Color("6")),
		EventAttemptStarted:  bold.Foreground(lipgloss.Color("6")),
		EventMonitoringArmed: bold.Foreground(lipgloss.Color("3")),
		EventLaunchFailed:    bold.Foreground(lipgloss.Color("1")),
		EventRestart:         bold.Foreground(lipgloss.Color("1")),
		EventStalled:         bold.Foreground(lipgloss.Color("1")),
		EventCooldown:        bold.Foreground(lipgloss.Color("5")),
		EventCompleted:       bold.Foreground(lipgloss.Color("2")),
		EventFailed:          bold.Foreground(lipgloss.Color("1")),
		EventInterrupted:     bold.Foreground(lipgloss.Color("3")),
	}
}

func (e *HumanEmitter) Emit(event Event) error {
	line := event.Message
	if line == "" {
		line = string(event.Event)
	}

	switch event.Level {
	case LevelError:
		_, err := fmt.Fprintln(e.stderr, e.style(event.Event, "ERROR: "+line))
		return err
	case LevelWarn:
		if e.opts.Quiet && event.Event != EventInterrupted {
			return nil
		}
		_, err := fmt.Fprintln(e.stderr, e.style(event.Event, "WARN: "+line))
		return err
	default:
		if e.opts.Quiet && event.Event != EventCompleted {
			return nil
		}
		if !e.opts.Verbose && event.Event == EventCooldown {
			return nil
		}
		_, err := fmt.Fprintln(e.stdout, e.style(event.Event, line))
		return err
	}
}

func (e *HumanEmitter) style(name EventName, text string) string {
	if !e.opts.Color {
		return text
	}
	style, ok := e.styles[name]
	if !ok {
		return text
	}
	return style.Render(text)
}

type MultiEmitter struct {
	emitters []EventEmitter
}

func NewMultiEmitter(emitters ...EventEmitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

func (e *MultiEmitter) Emit(event Event) error {
	for _, emitter := range e.emitters {
		if err := emitter.Emit(event); err != nil {
			return err
		}
	}
	return nil
}

// ObservingEmitter clears the renderer's in-place line before each event so
// that status messages never land in the middle of a progress bar.
type ObservingEmitter struct {
	renderer Renderer
	next     EventEmitter
}

func NewObservingEmitter(renderer Renderer, next EventEmitter) *ObservingEmitter {
	return &ObservingEmitter{renderer: renderer, next: next}
}

func (e *ObservingEmitter) Emit(event Event) error {
	if e.renderer != nil {
		if err := e.renderer.Interrupt(); err != nil {
			return err
		}
	}
	return e.next.Emit(event)
}
