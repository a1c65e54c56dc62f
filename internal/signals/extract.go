package signals

import (
	"regexp"
	"strconv"
	"strings"
)

var progressPattern = regexp.MustCompile(`(?:^|[^0-9.])([0-9]+)%`)
var throughputPattern = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*(KB/s|MB/s|GB/s)`)
var sizePairPattern = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?\s*(?:TB|GB|MB|KB|B))\s*/\s*([0-9]+(?:\.[0-9]+)?\s*(?:TB|GB|MB|KB|B))\b`)
var sizePattern = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)\s*(TB|GB|MB|KB|B)$`)
var remainingPattern = regexp.MustCompile(`(?:^|\s)((?:[0-9]+[hms])+)$`)

// controlSequencePattern covers the CSI escapes used for cursor movement and
// line erase while the child redraws its progress bars.
var controlSequencePattern = regexp.MustCompile("\x1b\\[[0-9;?]*[ -/]*[@-~]")

// MaxProgress is the highest accepted percent; larger values are rejected
// rather than clamped.
const MaxProgress = 100

var throughputMultipliers = map[string]float64{
	"KB/s": 1.0 / 1024,
	"MB/s": 1,
	"GB/s": 1024,
}

// Multiplier converts a throughput unit token to MB/s. Unknown units count as 1.
func Multiplier(unit string) float64 {
	if m, ok := throughputMultipliers[unit]; ok {
		return m
	}
	return 1
}

// Clean removes terminal control sequences and surrounding whitespace.
func Clean(line string) string {
	if strings.IndexByte(line, 0x1b) >= 0 {
		line = controlSequencePattern.ReplaceAllString(line, "")
	}
	return strings.TrimSpace(line)
}

// Extract parses one line of child output. It never fails: an unrecognised
// line returns the zero Signal.
func Extract(line string) Signal {
	line = Clean(line)
	if line == "" {
		return Signal{}
	}

	sig := Signal{}
	if progress, ok := parseProgress(line); ok {
		sig.Progress = &progress
	}
	if speed, ok := parseThroughput(line); ok {
		sig.Throughput = &speed
	}
	if downloaded, total, ok := parseSizePair(line); ok {
		sig.Downloaded = &downloaded
		sig.Total = &total
	}
	if remaining, ok := parseRemaining(line); ok {
		sig.Remaining = remaining
	}
	return sig
}

func parseProgress(line string) (int, bool) {
	match := progressPattern.FindStringSubmatch(line)
	if len(match) != 2 {
		return 0, false
	}
	value, err := strconv.Atoi(match[1])
	if err != nil || value < 0 || value > MaxProgress {
		return 0, false
	}
	return value, true
}

func parseThroughput(line string) (float64, bool) {
	match := throughputPattern.FindStringSubmatch(line)
	if len(match) != 3 {
		return 0, false
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return value * Multiplier(match[2]), true
}

func parseSizePair(line string) (Size, Size, bool) {
	match := sizePairPattern.FindStringSubmatch(line)
	if len(match) != 3 {
		return Size{}, Size{}, false
	}
	return ParseSize(match[1]), ParseSize(match[2]), true
}

func parseRemaining(line string) (string, bool) {
	match := remainingPattern.FindStringSubmatch(line)
	if len(match) != 2 {
		return "", false
	}
	return match[1], true
}

// ParseSize splits a size token such as "4.7 GB". When the token does not
// parse, only Text is set.
func ParseSize(text string) Size {
	text = strings.TrimSpace(text)
	size := Size{Text: text}
	match := sizePattern.FindStringSubmatch(text)
	if len(match) != 3 {
		return size
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return size
	}
	size.Value = value
	size.Unit = match[2]
	return size
}
