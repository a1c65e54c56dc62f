package signals

import "fmt"

// Signal is the structured view of one line of child output. Every field is
// optional; a line that matches nothing yields the zero Signal.
type Signal struct {
	Progress   *int     `json:"progress,omitempty"`
	Throughput *float64 `json:"throughput_mbps,omitempty"`
	Downloaded *Size    `json:"downloaded,omitempty"`
	Total      *Size    `json:"total,omitempty"`
	Remaining  string   `json:"remaining,omitempty"`
}

// Size keeps the raw display token next to its parsed parts.
type Size struct {
	Text  string  `json:"text"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

func (s Signal) Empty() bool {
	return s.Progress == nil &&
		s.Throughput == nil &&
		s.Downloaded == nil &&
		s.Total == nil &&
		s.Remaining == ""
}

func (s Signal) HasProgress() bool {
	return s.Progress != nil
}

func (s Signal) HasThroughput() bool {
	return s.Throughput != nil
}

func (s Signal) String() string {
	if s.Empty() {
		return "no signal"
	}
	out := ""
	if s.Progress != nil {
		out += fmt.Sprintf("progress=%d%% ", *s.Progress)
	}
	if s.Throughput != nil {
		out += fmt.Sprintf("speed=%.2fMB/s ", *s.Throughput)
	}
	if s.Downloaded != nil && s.Total != nil {
		out += fmt.Sprintf("size=%s/%s ", s.Downloaded.Text, s.Total.Text)
	}
	if s.Remaining != "" {
		out += fmt.Sprintf("eta=%s ", s.Remaining)
	}
	return out[:len(out)-1]
}
