package engine

import (
	"time"

	"github.com/jaa/pullguard/internal/signals"
)

type Phase string

const (
	PhaseStarting   Phase = "starting"
	PhaseWarmingUp  Phase = "warming_up"
	PhaseMonitoring Phase = "monitoring"
	PhaseRestarting Phase = "restarting"
	PhaseStalled    Phase = "stalled"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// Settled reports whether the current attempt has already been decided.
func (p Phase) Settled() bool {
	switch p {
	case PhaseRestarting, PhaseStalled, PhaseCompleted, PhaseFailed:
		return true
	default:
		return false
	}
}

type Action string

const (
	ActionContinue Action = "continue"
	ActionRestart  Action = "restart"
	ActionComplete Action = "complete"
	ActionFail     Action = "fail"
)

type Reason string

const (
	ReasonNone              Reason = ""
	ReasonLowThroughput     Reason = "low_throughput"
	ReasonProgressTimeout   Reason = "progress_timeout"
	ReasonUnexpectedExit    Reason = "unexpected_exit"
	ReasonProgressComplete  Reason = "progress_complete"
	ReasonExitSuccess       Reason = "exit_success"
	ReasonLaunchFailed      Reason = "launch_failed"
	ReasonAttemptsExhausted Reason = "attempts_exhausted"
	ReasonInterrupted       Reason = "interrupted"
)

type Decision struct {
	Action     Action
	Reason     Reason
	Throughput float64
	Progress   int
	Idle       time.Duration
	ExitCode   int
}

func (d Decision) Continue() bool {
	return d.Action == ActionContinue
}

var continueDecision = Decision{Action: ActionContinue}

// Observation is the result of feeding one output line through the policy.
type Observation struct {
	Line     string
	Signal   signals.Signal
	Suppress bool
	// Armed is set on the line whose throughput first armed speed monitoring.
	Armed    bool
	Decision Decision
}

// Policy is the restart state machine for a sequence of attempts. It is
// driven by a single goroutine and holds no locks.
type Policy struct {
	opts    WatchOptions
	phase   Phase
	session *Session
	attempt int
}

func NewPolicy(opts WatchOptions) *Policy {
	return &Policy{opts: opts.normalized(), phase: PhaseStarting}
}

func (p *Policy) Phase() Phase {
	return p.phase
}

func (p *Policy) Session() *Session {
	return p.session
}

// Begin starts a new attempt with a fresh Session.
func (p *Policy) Begin(now time.Time) *Session {
	p.attempt++
	p.phase = PhaseStarting
	p.session = NewSession(p.attempt, now)
	p.phase = PhaseWarmingUp
	return p.session
}

func (p *Policy) Observe(line string, now time.Time) Observation {
	obs := Observation{Line: line, Decision: continueDecision}
	if p.session == nil {
		p.Begin(now)
	}

	clean := signals.Clean(line)
	obs.Suppress = p.session.ObserveHeader(clean, p.opts.HeaderMarker)
	obs.Signal = signals.Extract(clean)

	if p.phase.Settled() {
		return obs
	}

	if obs.Signal.Progress != nil {
		progress := *obs.Signal.Progress
		p.session.RecordProgress(progress, now)
		if progress >= signals.MaxProgress {
			p.phase = PhaseCompleted
			obs.Decision = Decision{Action: ActionComplete, Reason: ReasonProgressComplete, Progress: progress}
			return obs
		}
	}

	if obs.Signal.Throughput != nil {
		speed := *obs.Signal.Throughput
		obs.Armed = p.session.RecordThroughput(speed, p.opts.ArmSpeed)
		p.promote(now)
		if p.phase == PhaseMonitoring {
			if decision := p.checkThroughput(speed); !decision.Continue() {
				obs.Decision = decision
				return obs
			}
		}
	}

	obs.Decision = p.checkProgressTimeout(now)
	return obs
}

// Tick runs the checks that do not depend on output: the warm-up gate and
// the progress timeout. It is called on every idle poll.
func (p *Policy) Tick(now time.Time) Decision {
	if p.session == nil || p.phase.Settled() {
		return continueDecision
	}
	p.promote(now)
	return p.checkProgressTimeout(now)
}

// Exited settles an attempt whose child ended on its own.
func (p *Policy) Exited(status ExitStatus) Decision {
	if p.phase.Settled() {
		return continueDecision
	}
	progress := 0
	if p.session != nil {
		progress = p.session.BestProgress
	}
	if status.Success() {
		p.phase = PhaseCompleted
		return Decision{Action: ActionComplete, Reason: ReasonExitSuccess, Progress: progress}
	}
	p.phase = PhaseRestarting
	return Decision{Action: ActionRestart, Reason: ReasonUnexpectedExit, Progress: progress, ExitCode: status.Code}
}

func (p *Policy) Fail(reason Reason) Decision {
	p.phase = PhaseFailed
	return Decision{Action: ActionFail, Reason: reason}
}

func (p *Policy) promote(now time.Time) {
	if p.phase != PhaseWarmingUp {
		return
	}
	if p.session.MonitoringArmed && p.session.Elapsed(now) > p.opts.MinRunTime {
		p.phase = PhaseMonitoring
	}
}

func (p *Policy) checkThroughput(speed float64) Decision {
	if speed >= p.opts.LowSpeed {
		p.session.LowSpeedSamples = 0
		return continueDecision
	}
	p.session.LowSpeedSamples++
	if p.session.LowSpeedSamples < p.opts.LowSpeedSamples {
		return continueDecision
	}
	p.phase = PhaseRestarting
	return Decision{
		Action:     ActionRestart,
		Reason:     ReasonLowThroughput,
		Throughput: speed,
		Progress:   p.session.BestProgress,
	}
}

func (p *Policy) checkProgressTimeout(now time.Time) Decision {
	if p.opts.ProgressTimeout <= 0 {
		return continueDecision
	}
	idle := p.session.IdleFor(now)
	if idle <= p.opts.ProgressTimeout {
		return continueDecision
	}
	p.phase = PhaseStalled
	return Decision{
		Action:   ActionRestart,
		Reason:   ReasonProgressTimeout,
		Progress: p.session.BestProgress,
		Idle:     idle,
	}
}
