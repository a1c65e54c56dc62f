package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/jaa/pullguard/internal/output/compact"
	"github.com/jaa/pullguard/internal/signals"
	"github.com/schollz/progressbar/v3"
)

const terminalBarWidth = 30

// TerminalRenderer draws a live progress bar for the current attempt and
// prints every other line above it.
type TerminalRenderer struct {
	dst          io.Writer
	headerMarker string

	mu      sync.Mutex
	model   *compact.StatusModel
	bar     *progressbar.ProgressBar
	drawn   bool
	attempt int
}

func NewTerminalRenderer(dst io.Writer, headerMarker string) *TerminalRenderer {
	r := &TerminalRenderer{
		dst:          dst,
		headerMarker: headerMarker,
		model:        compact.NewStatusModel(),
	}
	r.bar = r.newBar()
	return r
}

func (r *TerminalRenderer) newBar() *progressbar.ProgressBar {
	return progressbar.NewOptions(signals.MaxProgress,
		progressbar.OptionSetWriter(r.dst),
		progressbar.OptionSetWidth(terminalBarWidth),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetDescription(r.description(compact.TransferStatus{Attempt: r.attempt})),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "#",
			SaucerPadding: "-",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (r *TerminalRenderer) BeginAttempt(attempt int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.clearLocked()
	r.attempt = attempt
	r.model.Reset(attempt)
	r.bar = r.newBar()
}

func (r *TerminalRenderer) Render(line Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if line.Suppress {
		return nil
	}
	if line.Signal.Empty() {
		text := signals.Clean(line.Text)
		if compact.ClassifyLine(text, r.headerMarker) == compact.LineKindBlank {
			return nil
		}
		if err := r.clearLocked(); err != nil {
			return err
		}
		_, err := fmt.Fprintln(r.dst, text)
		return err
	}

	r.model.Apply(line.Signal)
	status := r.model.Snapshot()
	r.bar.Describe(r.description(status))
	if status.HasProgress {
		if err := r.bar.Set(status.Progress); err != nil {
			return err
		}
	}
	r.drawn = true
	return nil
}

func (r *TerminalRenderer) Interrupt() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clearLocked()
}

// Flush replaces the bar with a permanent summary of the last known status.
func (r *TerminalRenderer) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := r.model.Snapshot()
	r.model.Reset(r.attempt)
	if err := r.clearLocked(); err != nil {
		return err
	}
	if !status.Known() {
		return nil
	}
	_, err := fmt.Fprintln(r.dst, compact.RenderStatusLine(status))
	return err
}

func (r *TerminalRenderer) clearLocked() error {
	if !r.drawn {
		return nil
	}
	r.drawn = false
	return r.bar.Clear()
}

func (r *TerminalRenderer) description(status compact.TransferStatus) string {
	label := "pulling"
	if status.Attempt > 0 {
		label = fmt.Sprintf("attempt %d", status.Attempt)
	}
	if detail := compact.RenderStatusDetail(status); detail != "" {
		label += " " + detail
	}
	return label
}
