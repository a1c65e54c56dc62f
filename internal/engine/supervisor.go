package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jaa/pullguard/internal/logging"
	"github.com/jaa/pullguard/internal/output"
	gologging "github.com/op/go-logging"
)

// drainLimit bounds the post-completion drain when no progress timeout is set.
const drainLimit = 30 * time.Second

type Supervisor struct {
	Launcher Launcher
	Options  WatchOptions
	Emitter  output.EventEmitter
	Renderer output.Renderer
	Log      *gologging.Logger
	Now      func() time.Time
	Sleep    func(ctx context.Context, d time.Duration) error
	// NewPolicy builds the restart policy for each Run.
	NewPolicy func(opts WatchOptions) *Policy
}

func NewSupervisor(launcher Launcher, opts WatchOptions, emitter output.EventEmitter, renderer output.Renderer, log *gologging.Logger) *Supervisor {
	s := &Supervisor{
		Launcher: launcher,
		Options:  opts,
		Emitter:  emitter,
		Renderer: renderer,
		Log:      log,
	}
	s.init()
	return s
}

type noOpEmitter struct{}

func (noOpEmitter) Emit(event output.Event) error {
	return nil
}

func (s *Supervisor) init() {
	if s.Emitter == nil {
		s.Emitter = noOpEmitter{}
	}
	if s.Renderer == nil {
		s.Renderer = output.NopRenderer{}
	}
	if s.Log == nil {
		s.Log = logging.Logger()
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	if s.Sleep == nil {
		s.Sleep = sleepContext
	}
	if s.NewPolicy == nil {
		s.NewPolicy = NewPolicy
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// runState is owned by the goroutine executing Run.
type runState struct {
	opts    WatchOptions
	policy  *Policy
	result  Result
	started time.Time
	tail    *tailBuffer
}

// Run supervises spec until the transfer completes, the context is
// cancelled, or a terminal failure occurs. A live child is always
// terminated before Run returns.
func (s *Supervisor) Run(ctx context.Context, spec ExecSpec) (Result, error) {
	s.init()
	opts := s.Options.normalized()
	run := &runState{
		opts:    opts,
		policy:  s.NewPolicy(opts),
		result:  Result{RunID: uuid.NewString()},
		started: s.Now(),
		tail:    newTailBuffer(tailBytes),
	}

	var live Child
	defer func() {
		if live != nil {
			s.stop(live)
		}
		_ = s.Renderer.Flush()
	}()

	s.emit(run, output.LevelInfo, output.EventRunStarted, fmt.Sprintf("supervising %s", displayCommand(spec)), map[string]any{
		"low_speed_mbps":   opts.LowSpeed,
		"arm_speed_mbps":   opts.ArmSpeed,
		"min_run":          opts.MinRunTime.String(),
		"progress_timeout": opts.ProgressTimeout.String(),
		"cooldown":         opts.Cooldown.String(),
	})

	for {
		if ctx.Err() != nil {
			return s.interrupted(run)
		}

		child, err := s.launch(ctx, run, spec)
		if err != nil {
			if errors.Is(err, ErrInterrupted) {
				return s.interrupted(run)
			}
			run.policy.Fail(ReasonLaunchFailed)
			return s.fail(run, ReasonLaunchFailed, err)
		}
		live = child

		decision, err := s.watch(ctx, run, child)
		if err != nil {
			s.stop(child)
			live = nil
			return s.interrupted(run)
		}

		if decision.Action == ActionComplete {
			if decision.Reason == ReasonProgressComplete {
				s.drain(ctx, run, child)
			}
			s.stop(child)
			live = nil
			_ = s.Renderer.Flush()
			return s.complete(run, decision)
		}

		s.stop(child)
		live = nil
		_ = s.Renderer.Flush()
		run.result.Restarts++
		s.reportRestart(run, decision)

		if opts.MaxAttempts > 0 && run.result.Attempts >= opts.MaxAttempts {
			run.policy.Fail(ReasonAttemptsExhausted)
			return s.fail(run, ReasonAttemptsExhausted, ErrAttemptsExhausted)
		}
		if err := s.cooldown(ctx, run, fmt.Sprintf("waiting %s before attempt %d", opts.Cooldown, run.result.Attempts+1)); err != nil {
			return s.interrupted(run)
		}
	}
}

// launch starts the next attempt, retrying launch errors after a cooldown.
func (s *Supervisor) launch(ctx context.Context, run *runState, spec ExecSpec) (Child, error) {
	tries := run.opts.LaunchRetries + 1
	var lastErr error
	for try := 1; try <= tries; try++ {
		if try > 1 {
			if err := s.cooldown(ctx, run, fmt.Sprintf("waiting %s before launch retry %d/%d", run.opts.Cooldown, try-1, run.opts.LaunchRetries)); err != nil {
				return nil, ErrInterrupted
			}
		}

		child, err := s.Launcher.Launch(ctx, spec)
		if err == nil {
			session := run.policy.Begin(s.Now())
			run.result.Attempts = session.Attempt
			run.tail.Reset()
			s.Renderer.BeginAttempt(session.Attempt)
			s.Log.Debugf("attempt %d session %s pid %d", session.Attempt, session.ID, child.PID())
			s.emit(run, output.LevelInfo, output.EventAttemptStarted, fmt.Sprintf("attempt %d started (pid %d)", session.Attempt, child.PID()), map[string]any{
				"pid":        child.PID(),
				"session_id": session.ID,
			})
			return child, nil
		}
		if ctx.Err() != nil {
			return nil, ErrInterrupted
		}

		lastErr = err
		s.Log.Warningf("launch try %d/%d failed: %v", try, tries, err)
		s.emit(run, output.LevelWarn, output.EventLaunchFailed, fmt.Sprintf("could not launch %s: %v", displayCommand(spec), err), map[string]any{
			"try":   try,
			"tries": tries,
		})
	}
	return nil, fmt.Errorf("%w after %d tries: %w", ErrLaunchExhausted, tries, lastErr)
}

// watch drives one attempt until the policy settles it. It returns
// ErrInterrupted when ctx is cancelled.
func (s *Supervisor) watch(ctx context.Context, run *runState, child Child) (Decision, error) {
	for {
		if ctx.Err() != nil {
			return Decision{}, ErrInterrupted
		}

		line, err := child.ReadLine(ctx, run.opts.PollInterval)
		now := s.Now()
		switch {
		case err == nil:
			obs := s.observe(run, line, now)
			if !obs.Decision.Continue() {
				return obs.Decision, nil
			}
		case errors.Is(err, ErrPollTimeout):
			if decision := run.policy.Tick(now); !decision.Continue() {
				return decision, nil
			}
		case errors.Is(err, io.EOF):
			return s.awaitExit(ctx, run, child)
		case ctx.Err() != nil:
			return Decision{}, ErrInterrupted
		default:
			s.Log.Warningf("read from pid %d: %v", child.PID(), err)
			_ = child.Terminate()
			status, _ := child.Wait()
			return run.policy.Exited(status), nil
		}
	}
}

// awaitExit follows a child whose output has closed. It may keep running
// silently, so timers and cancellation are still checked every poll.
func (s *Supervisor) awaitExit(ctx context.Context, run *runState, child Child) (Decision, error) {
	for {
		status, err := child.WaitTimeout(ctx, run.opts.PollInterval)
		switch {
		case err == nil:
			return run.policy.Exited(status), nil
		case errors.Is(err, ErrPollTimeout):
			if decision := run.policy.Tick(s.Now()); !decision.Continue() {
				return decision, nil
			}
		case ctx.Err() != nil:
			return Decision{}, ErrInterrupted
		default:
			s.Log.Warningf("wait for pid %d: %v", child.PID(), err)
			return run.policy.Exited(status), nil
		}
	}
}

func (s *Supervisor) observe(run *runState, line string, now time.Time) Observation {
	run.tail.WriteLine(line)
	obs := run.policy.Observe(line, now)
	if err := s.Renderer.Render(output.Line{Text: line, Signal: obs.Signal, Suppress: obs.Suppress}); err != nil {
		s.Log.Debugf("render: %v", err)
	}
	if obs.Armed && obs.Signal.Throughput != nil {
		s.emit(run, output.LevelInfo, output.EventMonitoringArmed, fmt.Sprintf("speed %s reached, low-speed monitoring armed", formatSpeed(*obs.Signal.Throughput)), map[string]any{
			"throughput_mbps": *obs.Signal.Throughput,
		})
	}
	if obs.Signal.Progress != nil {
		s.Log.Debugf("attempt %d %s", run.policy.Session().Attempt, obs.Signal)
	}
	return obs
}

// drain keeps rendering output after 100% until the child exits on its own,
// for at most the progress timeout.
func (s *Supervisor) drain(ctx context.Context, run *runState, child Child) {
	limit := run.opts.ProgressTimeout
	if limit <= 0 {
		limit = drainLimit
	}
	deadline := s.Now().Add(limit)
	for ctx.Err() == nil {
		line, err := child.ReadLine(ctx, run.opts.PollInterval)
		if err == nil {
			s.observe(run, line, s.Now())
			continue
		}
		if !errors.Is(err, ErrPollTimeout) {
			return
		}
		if !s.Now().Before(deadline) {
			s.Log.Warningf("pid %d still running %s after completion, terminating", child.PID(), limit)
			return
		}
	}
}

// stop terminates the child and its process group, then reaps it.
func (s *Supervisor) stop(child Child) ExitStatus {
	if err := child.Terminate(); err != nil {
		s.Log.Debugf("terminate pid %d: %v", child.PID(), err)
	}
	status, err := child.Wait()
	if err != nil {
		s.Log.Debugf("wait for pid %d: %v", child.PID(), err)
	}
	return status
}

func (s *Supervisor) cooldown(ctx context.Context, run *runState, message string) error {
	if run.opts.Cooldown <= 0 {
		return ctx.Err()
	}
	s.emit(run, output.LevelInfo, output.EventCooldown, message, map[string]any{
		"cooldown": run.opts.Cooldown.String(),
	})
	return s.Sleep(ctx, run.opts.Cooldown)
}

func (s *Supervisor) reportRestart(run *runState, decision Decision) {
	details := map[string]any{
		"reason":   string(decision.Reason),
		"progress": decision.Progress,
	}
	event := output.EventRestart
	var message string
	switch decision.Reason {
	case ReasonLowThroughput:
		details["throughput_mbps"] = decision.Throughput
		message = fmt.Sprintf("speed %s below %s at %d%%, restarting", formatSpeed(decision.Throughput), formatSpeed(run.opts.LowSpeed), decision.Progress)
	case ReasonProgressTimeout:
		event = output.EventStalled
		details["idle"] = decision.Idle.Round(time.Second).String()
		message = fmt.Sprintf("no progress for %s at %d%%, restarting", decision.Idle.Round(time.Second), decision.Progress)
	default:
		details["exit_code"] = decision.ExitCode
		if tail := run.tail.Lines(5); len(tail) > 0 {
			details["tail"] = tail
		}
		message = fmt.Sprintf("child exited with code %d at %d%%, restarting", decision.ExitCode, decision.Progress)
	}
	s.Log.Infof("attempt %d restart: %s", run.result.Attempts, decision.Reason)
	s.emit(run, output.LevelWarn, event, message, details)
}

func (s *Supervisor) complete(run *runState, decision Decision) (Result, error) {
	s.finish(run, decision.Reason)
	run.result.Completed = true
	s.emit(run, output.LevelInfo, output.EventCompleted, fmt.Sprintf("transfer complete after %d attempt(s) in %s", run.result.Attempts, run.result.Duration.Round(time.Second)), map[string]any{
		"reason":   string(decision.Reason),
		"attempts": run.result.Attempts,
		"restarts": run.result.Restarts,
	})
	return run.result, nil
}

func (s *Supervisor) fail(run *runState, reason Reason, err error) (Result, error) {
	s.finish(run, reason)
	s.emit(run, output.LevelError, output.EventFailed, err.Error(), map[string]any{
		"reason":   string(reason),
		"attempts": run.result.Attempts,
	})
	return run.result, err
}

func (s *Supervisor) interrupted(run *runState) (Result, error) {
	s.finish(run, ReasonInterrupted)
	s.emit(run, output.LevelWarn, output.EventInterrupted, "interrupted; child terminated", nil)
	return run.result, ErrInterrupted
}

func (s *Supervisor) finish(run *runState, reason Reason) {
	run.result.Reason = reason
	run.result.Duration = s.Now().Sub(run.started)
}

func (s *Supervisor) emit(run *runState, level output.Level, name output.EventName, message string, details map[string]any) {
	_ = s.Emitter.Emit(output.Event{
		Timestamp: s.Now(),
		Level:     level,
		Event:     name,
		RunID:     run.result.RunID,
		Attempt:   run.result.Attempts,
		Message:   message,
		Details:   details,
	})
}

func displayCommand(spec ExecSpec) string {
	if strings.TrimSpace(spec.DisplayCommand) != "" {
		return spec.DisplayCommand
	}
	return strings.TrimSpace(strings.Join(append([]string{spec.Bin}, spec.Args...), " "))
}

func formatSpeed(mbps float64) string {
	return fmt.Sprintf("%.2f MB/s", mbps)
}
