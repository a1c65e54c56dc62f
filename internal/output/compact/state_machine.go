package compact

import "github.com/jaa/pullguard/internal/signals"

type StatusModel struct {
	state TransferStatus
}

func NewStatusModel() *StatusModel {
	m := &StatusModel{}
	m.Reset(0)
	return m
}

// Reset clears every field for a new attempt.
func (m *StatusModel) Reset(attempt int) {
	m.state = TransferStatus{Attempt: attempt}
}

// Apply merges a signal and reports whether the percent or size changed.
func (m *StatusModel) Apply(sig signals.Signal) bool {
	changed := false
	if sig.Progress != nil {
		progress := int(ClampPercent(float64(*sig.Progress)))
		if !m.state.HasProgress || m.state.Progress != progress {
			changed = true
		}
		m.state.Progress = progress
		m.state.HasProgress = true
	}
	if sig.Throughput != nil {
		m.state.Throughput = *sig.Throughput
		m.state.HasThroughput = true
	}
	if sig.Downloaded != nil && sig.Total != nil {
		if m.state.Total != sig.Total.Text {
			changed = true
		}
		m.state.Downloaded = sig.Downloaded.Text
		m.state.Total = sig.Total.Text
	}
	if sig.Remaining != "" {
		m.state.Remaining = sig.Remaining
	}
	return changed
}

func (m *StatusModel) Snapshot() TransferStatus {
	return m.state
}
