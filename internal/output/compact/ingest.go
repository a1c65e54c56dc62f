package compact

import (
	"regexp"
	"strings"
)

var digestPhasePattern = regexp.MustCompile(`^(verifying|writing|removing)\b.*$`)

type LineKind string

const (
	LineKindBlank   LineKind = "blank"
	LineKindHeader  LineKind = "header"
	LineKindPhase   LineKind = "phase"
	LineKindProblem LineKind = "problem"
	LineKindSuccess LineKind = "success"
	LineKindOther   LineKind = "other"
)

// ClassifyLine sorts a pass-through line so renderers can decide how loud
// to be about it. headerMarker may be empty.
func ClassifyLine(line string, headerMarker string) LineKind {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return LineKindBlank
	case headerMarker != "" && strings.Contains(trimmed, headerMarker):
		return LineKindHeader
	case LooksLikeProblem(trimmed):
		return LineKindProblem
	case strings.EqualFold(trimmed, "success"):
		return LineKindSuccess
	case digestPhasePattern.MatchString(strings.ToLower(trimmed)):
		return LineKindPhase
	default:
		return LineKindOther
	}
}

func LooksLikeProblem(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	return strings.HasPrefix(lower, "warning:") ||
		strings.HasPrefix(lower, "warn:") ||
		strings.HasPrefix(lower, "error:") ||
		strings.HasPrefix(lower, "error ") ||
		strings.Contains(lower, "traceback")
}
