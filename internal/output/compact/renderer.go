package compact

import (
	"fmt"
	"strings"
)

// RenderStatusLine is the one-line summary used on non-interactive sinks.
func RenderStatusLine(status TransferStatus) string {
	line := "[transfer]"
	if status.Attempt > 0 {
		line = fmt.Sprintf("[attempt %d]", status.Attempt)
	}
	if status.HasProgress {
		line += " " + RenderProgress(float64(status.Progress), 20)
	}
	if detail := RenderStatusDetail(status); detail != "" {
		line += " " + detail
	}
	return line
}

// RenderStatusDetail joins size, speed and remaining time.
func RenderStatusDetail(status TransferStatus) string {
	bits := []string{}
	if status.Total != "" {
		bits = append(bits, fmt.Sprintf("%s/%s", status.Downloaded, status.Total))
	}
	if status.HasThroughput {
		bits = append(bits, RenderSpeed(status.Throughput))
	}
	if strings.TrimSpace(status.Remaining) != "" {
		bits = append(bits, "eta "+status.Remaining)
	}
	return strings.Join(bits, " | ")
}

func RenderSpeed(mbps float64) string {
	if mbps > 0 && mbps < 1 {
		return fmt.Sprintf("%.1f KB/s", mbps*1024)
	}
	return fmt.Sprintf("%.2f MB/s", mbps)
}

func RenderProgress(percent float64, width int) string {
	clamped := ClampPercent(percent)
	if width <= 0 {
		width = 16
	}
	filled := int((clamped / 100) * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
	return fmt.Sprintf("[%s] %3.0f%%", bar, clamped)
}

func ClampPercent(percent float64) float64 {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
