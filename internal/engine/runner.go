package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const maxLineBytes = 64 * 1024

type Launcher interface {
	Launch(ctx context.Context, spec ExecSpec) (Child, error)
}

// Child is a running attempt as seen by the supervising loop.
type Child interface {
	PID() int
	// ReadLine returns the next output line. It returns ErrPollTimeout when
	// nothing arrived within wait, and io.EOF once the stream is drained or
	// the process has exited and stayed silent for wait.
	ReadLine(ctx context.Context, wait time.Duration) (string, error)
	// WaitTimeout returns the exit status once the child has exited,
	// ErrPollTimeout when it is still running after wait, or ctx.Err().
	WaitTimeout(ctx context.Context, wait time.Duration) (ExitStatus, error)
	// Terminate kills the child and every process in its group.
	Terminate() error
	Wait() (ExitStatus, error)
}

type SubprocessLauncher struct {
	// ExtraPath entries are searched before PATH and prepended to the
	// child's PATH.
	ExtraPath []string
	Environ   func() []string
}

func NewSubprocessLauncher(extraPath []string) *SubprocessLauncher {
	return &SubprocessLauncher{ExtraPath: extraPath, Environ: os.Environ}
}

func (l *SubprocessLauncher) Launch(ctx context.Context, spec ExecSpec) (Child, error) {
	if strings.TrimSpace(spec.Bin) == "" {
		return nil, &LaunchError{Bin: spec.Bin, Err: errors.New("missing binary")}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bin, err := ResolveBinary(spec.Bin, l.ExtraPath)
	if err != nil {
		return nil, &LaunchError{Bin: spec.Bin, Err: err}
	}

	environ := os.Environ
	if l.Environ != nil {
		environ = l.Environ
	}

	cmd := exec.Command(bin, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = buildEnv(environ(), spec.Env, l.ExtraPath)
	configureCommandForTermination(cmd)

	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, &LaunchError{Bin: spec.Bin, Err: err}
	}
	cmd.Stdout = writer
	cmd.Stderr = writer

	if err := cmd.Start(); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, &LaunchError{Bin: spec.Bin, Err: err}
	}
	_ = writer.Close()

	return newProcess(cmd, reader), nil
}

// ResolveBinary looks bin up in extraPath first, then in PATH.
func ResolveBinary(bin string, extraPath []string) (string, error) {
	if strings.ContainsAny(bin, `/\`) {
		return exec.LookPath(bin)
	}
	for _, dir := range extraPath {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		if resolved, err := exec.LookPath(filepath.Join(dir, bin)); err == nil {
			return resolved, nil
		}
	}
	return exec.LookPath(bin)
}

func buildEnv(base []string, overrides []string, extraPath []string) []string {
	env := make([]string, 0, len(base)+len(overrides)+1)
	env = append(env, base...)
	env = append(env, overrides...)
	if len(extraPath) == 0 {
		return env
	}

	prefix := strings.Join(extraPath, string(os.PathListSeparator))
	for i := len(env) - 1; i >= 0; i-- {
		key, value, ok := strings.Cut(env[i], "=")
		if !ok || !strings.EqualFold(key, "PATH") {
			continue
		}
		if value == "" {
			env[i] = key + "=" + prefix
		} else {
			env[i] = key + "=" + prefix + string(os.PathListSeparator) + value
		}
		return env
	}
	return append(env, "PATH="+prefix)
}

// Process wraps a started exec.Cmd whose stdout and stderr share one pipe.
type Process struct {
	cmd    *exec.Cmd
	lines  chan string
	exited chan struct{}
	// stop is closed by Terminate so the reader never blocks on a line
	// nobody will consume.
	stop chan struct{}

	status  ExitStatus
	waitErr error

	killed        atomic.Bool
	terminateOnce sync.Once
	terminateErr  error
}

func newProcess(cmd *exec.Cmd, stream io.ReadCloser) *Process {
	p := &Process{
		cmd:    cmd,
		lines:  make(chan string, 256),
		exited: make(chan struct{}),
		stop:   make(chan struct{}),
	}
	go p.readLines(stream)
	go p.wait()
	return p
}

func (p *Process) PID() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

func (p *Process) readLines(stream io.ReadCloser) {
	defer close(p.lines)
	defer stream.Close()

	scanner := bufio.NewScanner(transform.NewReader(stream, unicode.UTF8.NewDecoder()))
	scanner.Buffer(make([]byte, 0, 4096), 2*maxLineBytes)
	scanner.Split(ScanTerminalLines)
	for scanner.Scan() {
		select {
		case p.lines <- scanner.Text():
		case <-p.stop:
			return
		}
	}
}

func (p *Process) wait() {
	defer close(p.exited)

	err := p.cmd.Wait()
	status := ExitStatus{}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			status.Code = exitErr.ExitCode()
			err = nil
		} else {
			status.Code = 1
		}
	}
	if status.Code < 0 || p.killed.Load() {
		status.Killed = true
	}
	p.status = status
	p.waitErr = err
}

func (p *Process) ReadLine(ctx context.Context, wait time.Duration) (string, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case line, ok := <-p.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		select {
		case <-p.exited:
			return "", io.EOF
		default:
			return "", ErrPollTimeout
		}
	}
}

func (p *Process) WaitTimeout(ctx context.Context, wait time.Duration) (ExitStatus, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-p.exited:
		return p.status, p.waitErr
	case <-ctx.Done():
		return ExitStatus{}, ctx.Err()
	case <-timer.C:
		return ExitStatus{}, ErrPollTimeout
	}
}

func (p *Process) Terminate() error {
	p.terminateOnce.Do(func() {
		close(p.stop)
		select {
		case <-p.exited:
		default:
			p.killed.Store(true)
		}
		p.terminateErr = terminateCommand(p.cmd)
	})
	return p.terminateErr
}

func (p *Process) Wait() (ExitStatus, error) {
	<-p.exited
	return p.status, p.waitErr
}

// ScanTerminalLines splits on both \n and \r so that a progress bar redrawn
// with carriage returns yields one line per redraw. Empty segments are
// dropped and overlong lines are cut at maxLineBytes.
func ScanTerminalLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 && i < maxLineBytes {
		if i == 0 {
			return 1, nil, nil
		}
		return i + 1, data[:i], nil
	}
	if len(data) >= maxLineBytes {
		return maxLineBytes, data[:maxLineBytes], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
