package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/jaa/pullguard/internal/config"
	"github.com/jaa/pullguard/internal/engine"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

type Check struct {
	Severity Severity `json:"severity"`
	Name     string   `json:"name"`
	Message  string   `json:"message"`
}

type Report struct {
	Checks []Check `json:"checks"`
}

func (r Report) HasErrors() bool {
	return r.ErrorCount() > 0
}

func (r Report) ErrorCount() int {
	count := 0
	for _, check := range r.Checks {
		if check.Severity == SeverityError {
			count++
		}
	}
	return count
}

func (r *Report) add(severity Severity, name string, format string, args ...any) {
	r.Checks = append(r.Checks, Check{Severity: severity, Name: name, Message: fmt.Sprintf(format, args...)})
}

type Checker struct {
	Resolve     func(bin string, extraPath []string) (string, error)
	ReadVersion func(context.Context, string) (string, error)
	Stat        func(string) (os.FileInfo, error)
}

func NewChecker() *Checker {
	return &Checker{
		Resolve:     engine.ResolveBinary,
		ReadVersion: defaultReadVersion,
		Stat:        os.Stat,
	}
}

func (c *Checker) Check(ctx context.Context, cfg config.Config) Report {
	report := Report{Checks: []Check{}}

	c.checkBinary(ctx, cfg.Command, &report)

	for _, dir := range cfg.Command.ExtraPath {
		info, err := c.Stat(dir)
		switch {
		case err != nil:
			report.add(SeverityWarn, "path", "extra path entry %s is not accessible: %v", dir, err)
		case !info.IsDir():
			report.add(SeverityWarn, "path", "extra path entry %s is not a directory", dir)
		default:
			report.add(SeverityInfo, "path", "extra path entry %s is present", dir)
		}
	}

	if dir := strings.TrimSpace(cfg.Command.Dir); dir != "" {
		info, err := c.Stat(dir)
		if err != nil || !info.IsDir() {
			report.add(SeverityError, "filesystem", "command.dir %s is not a directory", dir)
		} else {
			report.add(SeverityInfo, "filesystem", "command.dir %s is present", dir)
		}
	}

	if path := strings.TrimSpace(cfg.Command.EnvFile); path != "" {
		info, err := c.Stat(path)
		if err != nil || info.IsDir() {
			report.add(SeverityError, "filesystem", "command.env_file %s is not a readable file", path)
		} else {
			report.add(SeverityInfo, "filesystem", "command.env_file %s is present", path)
		}
	}

	checkThresholds(cfg.Watch, &report)
	return report
}

func (c *Checker) checkBinary(ctx context.Context, cmd config.Command, report *Report) {
	if strings.TrimSpace(cmd.Bin) == "" {
		report.add(SeverityError, "dependency", "command.bin is not set")
		return
	}

	location, err := c.Resolve(cmd.Bin, cmd.ExtraPath)
	if err != nil {
		report.add(SeverityError, "dependency", "%s not found in extra path or PATH", cmd.Bin)
		return
	}
	report.add(SeverityInfo, "dependency", "%s found at %s", cmd.Bin, location)

	output, err := c.ReadVersion(ctx, location)
	if err != nil {
		report.add(SeverityWarn, "dependency", "%s version could not be read: %v", cmd.Bin, err)
		return
	}
	version, err := extractVersion(output)
	if err != nil {
		report.add(SeverityWarn, "dependency", "%s version output is unrecognized: %q", cmd.Bin, strings.TrimSpace(output))
		return
	}
	report.add(SeverityInfo, "dependency", "%s version %s", cmd.Bin, version)
}

func checkThresholds(w config.Watch, report *Report) {
	if w.ArmSpeedMBps > w.LowSpeedMBps {
		report.add(SeverityWarn, "watch", "arm speed %.2f MB/s is above low speed %.2f MB/s; transfers that start slow are never restarted for speed", w.ArmSpeedMBps, w.LowSpeedMBps)
	}
	if w.ProgressTimeoutSeconds == 0 {
		report.add(SeverityWarn, "watch", "progress timeout is disabled; a stalled transfer is only restarted for low speed")
	} else if w.ProgressTimeoutSeconds <= w.MinRunSeconds {
		report.add(SeverityWarn, "watch", "progress timeout %ds is not longer than the minimum run time %ds", w.ProgressTimeoutSeconds, w.MinRunSeconds)
	}
	if w.MaxAttempts == 0 {
		report.add(SeverityInfo, "watch", "attempts are unlimited")
	} else {
		report.add(SeverityInfo, "watch", "at most %d attempt(s)", w.MaxAttempts)
	}
	if strings.TrimSpace(w.HeaderMarker) == "" {
		report.add(SeverityInfo, "watch", "header repeat suppression is off")
	}
}

func defaultReadVersion(ctx context.Context, binary string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, "--version")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", err
	}
	return string(output), nil
}

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)`)

func extractVersion(raw string) (string, error) {
	matches := versionPattern.FindStringSubmatch(raw)
	if len(matches) != 4 {
		return "", fmt.Errorf("no semantic version found")
	}
	return fmt.Sprintf("%s.%s.%s", matches[1], matches[2], matches[3]), nil
}
