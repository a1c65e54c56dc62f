package engine

import (
	"bytes"
	"strings"
)

const tailBytes = 4 * 1024

// tailBuffer keeps the last max bytes of child output for diagnostics when
// an attempt ends unexpectedly.
type tailBuffer struct {
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = tailBytes
	}
	return &tailBuffer{
		buf: make([]byte, 0, max),
		max: max,
	}
}

func (t *tailBuffer) WriteLine(line string) {
	p := []byte(line + "\n")
	if len(p) >= t.max {
		t.buf = append(t.buf[:0], p[len(p)-t.max:]...)
		return
	}
	overflow := len(t.buf) + len(p) - t.max
	if overflow > 0 {
		cut := overflow
		if t.buf[cut-1] != '\n' {
			if i := bytes.IndexByte(t.buf[cut:], '\n'); i >= 0 {
				cut += i + 1
			} else {
				cut = len(t.buf)
			}
		}
		t.buf = append(t.buf[:0], t.buf[cut:]...)
	}
	t.buf = append(t.buf, p...)
}

func (t *tailBuffer) Reset() {
	t.buf = t.buf[:0]
}

// Lines returns at most n of the most recent complete lines.
func (t *tailBuffer) Lines(n int) []string {
	text := strings.TrimRight(string(t.buf), "\n")
	if text == "" || n <= 0 {
		return nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
