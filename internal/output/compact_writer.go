package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/jaa/pullguard/internal/output/compact"
	"github.com/jaa/pullguard/internal/signals"
)

type CompactOptions struct {
	// Interactive redraws the status line in place instead of appending a
	// new line whenever the percent changes.
	Interactive  bool
	HeaderMarker string
}

// CompactRenderer condenses progress redraws into a single status line and
// passes every other line through.
type CompactRenderer struct {
	dst          io.Writer
	interactive  bool
	headerMarker string

	mu         sync.Mutex
	model      *compact.StatusModel
	stage      string
	activeLine string
}

func NewCompactRenderer(dst io.Writer, opts CompactOptions) *CompactRenderer {
	return &CompactRenderer{
		dst:          dst,
		interactive:  opts.Interactive,
		headerMarker: opts.HeaderMarker,
		model:        compact.NewStatusModel(),
	}
}

func (r *CompactRenderer) BeginAttempt(attempt int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.clearActiveLineLocked()
	r.model.Reset(attempt)
	r.stage = ""
}

func (r *CompactRenderer) Render(line Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if line.Suppress {
		return nil
	}
	if !line.Signal.Empty() {
		changed := r.model.Apply(line.Signal)
		if r.interactive {
			return r.renderStatusLocked()
		}
		if changed {
			return r.printPersistentLocked(compact.RenderStatusLine(r.model.Snapshot()))
		}
		return nil
	}

	text := signals.Clean(line.Text)
	switch compact.ClassifyLine(text, r.headerMarker) {
	case compact.LineKindBlank:
		return nil
	case compact.LineKindPhase:
		if r.interactive {
			r.stage = text
			return r.renderStatusLocked()
		}
	}
	return r.printPersistentLocked(text)
}

func (r *CompactRenderer) Interrupt() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clearActiveLineLocked()
}

// Flush leaves the last status on screen as a permanent line.
func (r *CompactRenderer) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeLine == "" {
		return nil
	}
	last := r.activeLine
	if err := r.clearActiveLineLocked(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(r.dst, last)
	return err
}

func (r *CompactRenderer) renderStatusLocked() error {
	status := r.model.Snapshot()
	line := compact.RenderStatusLine(status)
	if r.stage != "" && !status.Known() {
		line += " " + r.stage
	}
	if line == r.activeLine {
		return nil
	}
	r.activeLine = line
	_, err := fmt.Fprintf(r.dst, "\r\033[2K%s", line)
	return err
}

func (r *CompactRenderer) printPersistentLocked(line string) error {
	if err := r.clearActiveLineLocked(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(r.dst, line)
	return err
}

func (r *CompactRenderer) clearActiveLineLocked() error {
	if !r.interactive || r.activeLine == "" {
		return nil
	}
	r.activeLine = ""
	_, err := fmt.Fprint(r.dst, "\r\033[2K")
	return err
}
