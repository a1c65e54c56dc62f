package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jaa/pullguard/internal/signals"
	"github.com/mattn/go-isatty"
)

// Line is one line of child output after the restart policy has seen it.
type Line struct {
	Text     string
	Signal   signals.Signal
	Suppress bool
}

// Renderer displays child output. Implementations are driven by the
// supervising goroutine; Interrupt may also be called by an emitter on the
// same goroutine before an event is printed.
type Renderer interface {
	BeginAttempt(attempt int)
	Render(line Line) error
	Interrupt() error
	Flush() error
}

type ProgressMode string

const (
	ProgressAuto   ProgressMode = "auto"
	ProgressAlways ProgressMode = "always"
	ProgressNever  ProgressMode = "never"
	// ProgressCompact keeps one status line, redrawn in place on terminals.
	ProgressCompact ProgressMode = "compact"
)

func ParseProgressMode(value string) (ProgressMode, error) {
	switch mode := ProgressMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case "", ProgressAuto:
		return ProgressAuto, nil
	case ProgressAlways, ProgressNever, ProgressCompact:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid progress mode %q (expected auto, always, never or compact)", value)
	}
}

type RendererOptions struct {
	Mode         ProgressMode
	HeaderMarker string
}

var inPlaceUpdates = SupportsInPlaceUpdates

// NewRenderer picks the renderer for dst: a live progress bar on terminals,
// a compact status log elsewhere, and raw lines when progress is disabled.
func NewRenderer(dst io.Writer, opts RendererOptions) Renderer {
	switch opts.Mode {
	case ProgressNever:
		return NewPlainRenderer(dst)
	case ProgressAlways:
		return NewTerminalRenderer(dst, opts.HeaderMarker)
	case ProgressCompact:
		return NewCompactRenderer(dst, CompactOptions{
			Interactive:  inPlaceUpdates(dst),
			HeaderMarker: opts.HeaderMarker,
		})
	default:
		if inPlaceUpdates(dst) {
			return NewTerminalRenderer(dst, opts.HeaderMarker)
		}
		return NewCompactRenderer(dst, CompactOptions{HeaderMarker: opts.HeaderMarker})
	}
}

func SupportsInPlaceUpdates(dst io.Writer) bool {
	file, ok := dst.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// PlainRenderer echoes every visible line unchanged.
type PlainRenderer struct {
	dst io.Writer
}

func NewPlainRenderer(dst io.Writer) *PlainRenderer {
	return &PlainRenderer{dst: dst}
}

func (r *PlainRenderer) BeginAttempt(int) {}

func (r *PlainRenderer) Render(line Line) error {
	if line.Suppress {
		return nil
	}
	text := signals.Clean(line.Text)
	if text == "" {
		return nil
	}
	_, err := fmt.Fprintln(r.dst, text)
	return err
}

func (r *PlainRenderer) Interrupt() error { return nil }

func (r *PlainRenderer) Flush() error { return nil }

// NopRenderer drops child output. It is used when stdout carries JSON events.
type NopRenderer struct{}

func (NopRenderer) BeginAttempt(int) {}

func (NopRenderer) Render(Line) error { return nil }

func (NopRenderer) Interrupt() error { return nil }

func (NopRenderer) Flush() error { return nil }
