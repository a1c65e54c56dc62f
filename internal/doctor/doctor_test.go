package doctor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jaa/pullguard/internal/config"
)

func fakeChecker(resolveErr error, version string) *Checker {
	return &Checker{
		Resolve: func(bin string, extraPath []string) (string, error) {
			if resolveErr != nil {
				return "", resolveErr
			}
			return "/usr/local/bin/" + bin, nil
		},
		ReadVersion: func(ctx context.Context, binary string) (string, error) {
			if version == "" {
				return "", fmt.Errorf("exit status 1")
			}
			return version, nil
		},
		Stat: os.Stat,
	}
}

func hasCheck(report Report, severity Severity, fragment string) bool {
	for _, check := range report.Checks {
		if check.Severity == severity && strings.Contains(check.Message, fragment) {
			return true
		}
	}
	return false
}

func TestDoctorMissingBinary(t *testing.T) {
	report := fakeChecker(fmt.Errorf("not found"), "").Check(context.Background(), config.DefaultConfig())
	if !report.HasErrors() {
		t.Fatalf("expected doctor errors for missing binary")
	}
	if !hasCheck(report, SeverityError, "ollama not found") {
		t.Fatalf("expected missing binary message, got %+v", report.Checks)
	}
}

func TestDoctorReportsVersion(t *testing.T) {
	report := fakeChecker(nil, "ollama version is 0.3.12\n").Check(context.Background(), config.DefaultConfig())
	if report.HasErrors() {
		t.Fatalf("expected no errors, got %+v", report.Checks)
	}
	if !hasCheck(report, SeverityInfo, "ollama version 0.3.12") {
		t.Fatalf("expected version check, got %+v", report.Checks)
	}
}

func TestDoctorWarnsOnUnreadableVersion(t *testing.T) {
	report := fakeChecker(nil, "").Check(context.Background(), config.DefaultConfig())
	if !hasCheck(report, SeverityWarn, "version could not be read") {
		t.Fatalf("expected version warning, got %+v", report.Checks)
	}

	report = fakeChecker(nil, "dev build").Check(context.Background(), config.DefaultConfig())
	if !hasCheck(report, SeverityWarn, "unrecognized") {
		t.Fatalf("expected unrecognized version warning, got %+v", report.Checks)
	}
}

func TestDoctorChecksDirectories(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Command.ExtraPath = []string{t.TempDir(), "/path/does/not/exist"}
	cfg.Command.Dir = "/path/does/not/exist"

	report := fakeChecker(nil, "0.3.12").Check(context.Background(), cfg)
	if !hasCheck(report, SeverityInfo, "is present") {
		t.Fatalf("expected present extra path, got %+v", report.Checks)
	}
	if !hasCheck(report, SeverityWarn, "/path/does/not/exist is not accessible") {
		t.Fatalf("expected missing extra path warning, got %+v", report.Checks)
	}
	if report.ErrorCount() != 1 || !hasCheck(report, SeverityError, "command.dir") {
		t.Fatalf("expected command.dir error, got %+v", report.Checks)
	}
}

func TestDoctorFlagsIncoherentThresholds(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Watch.ArmSpeedMBps = 5
	cfg.Watch.ProgressTimeoutSeconds = 10
	cfg.Watch.MaxAttempts = 4
	cfg.Watch.HeaderMarker = ""

	report := fakeChecker(nil, "0.3.12").Check(context.Background(), cfg)
	for _, fragment := range []string{"is above low speed", "is not longer than the minimum run time"} {
		if !hasCheck(report, SeverityWarn, fragment) {
			t.Fatalf("expected warning %q, got %+v", fragment, report.Checks)
		}
	}
	if !hasCheck(report, SeverityInfo, "at most 4 attempt(s)") || !hasCheck(report, SeverityInfo, "suppression is off") {
		t.Fatalf("expected info checks, got %+v", report.Checks)
	}

	cfg.Watch.ProgressTimeoutSeconds = 0
	report = fakeChecker(nil, "0.3.12").Check(context.Background(), cfg)
	if !hasCheck(report, SeverityWarn, "progress timeout is disabled") {
		t.Fatalf("expected disabled timeout warning, got %+v", report.Checks)
	}
}

func TestExtractVersion(t *testing.T) {
	got, err := extractVersion("ollama version is 0.5.7-rc1")
	if err != nil || got != "0.5.7" {
		t.Fatalf("unexpected version %q (%v)", got, err)
	}
	if _, err := extractVersion("unknown"); err == nil {
		t.Fatalf("expected error for missing version")
	}
}

func TestDoctorChecksEnvFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Command.EnvFile = t.TempDir()

	report := fakeChecker(nil, "0.3.12").Check(context.Background(), cfg)
	if !hasCheck(report, SeverityError, "env_file") {
		t.Fatalf("expected env_file error for a directory, got %+v", report.Checks)
	}

	file, err := os.CreateTemp(t.TempDir(), "ollama-*.env")
	if err != nil {
		t.Fatalf("create env file: %v", err)
	}
	_ = file.Close()
	cfg.Command.EnvFile = file.Name()
	report = fakeChecker(nil, "0.3.12").Check(context.Background(), cfg)
	if report.HasErrors() {
		t.Fatalf("expected no errors, got %+v", report.Checks)
	}
}
