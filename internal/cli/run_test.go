package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/jaa/pullguard/internal/config"
	"github.com/jaa/pullguard/internal/engine"
	"github.com/jaa/pullguard/internal/exitcode"
)

type testStreams struct {
	in  *bytes.Buffer
	out *bytes.Buffer
	err *bytes.Buffer
}

func newTestStreams(stdin string) (IOStreams, testStreams) {
	s := testStreams{in: bytes.NewBufferString(stdin), out: &bytes.Buffer{}, err: &bytes.Buffer{}}
	return IOStreams{In: s.in, Out: s.out, ErrOut: s.err}, s
}

func runCLI(t *testing.T, stdin string, args ...string) (int, testStreams) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	streams, buffers := newTestStreams(stdin)
	code := ExecuteArgs(BuildInfo{Version: "test"}, streams, args)
	return code, buffers
}

func fakeChild(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell test is POSIX-specific")
	}
	path := filepath.Join(t.TempDir(), "fake-ollama")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write fake child: %v", err)
	}
	return path
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pullguard.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

var fastRunFlags = []string{"--cooldown", "0s", "--poll", "20ms", "--progress", "never"}

func TestRunCompletesWhenProgressReachesHundred(t *testing.T) {
	child := fakeChild(t, `printf 'pulling manifest\n'
printf 'pulling 6e4c38e1172f... 50%% 1.2 GB/2.4 GB 12 MB/s 1m\r'
printf 'pulling 6e4c38e1172f... 100%% 2.4 GB/2.4 GB 12 MB/s\n'
printf 'success\n'
`)
	args := append([]string{"run"}, fastRunFlags...)
	args = append(args, "--", child)

	code, out := runCLI(t, "", args...)
	if code != exitcode.Success {
		t.Fatalf("exit = %d, stderr:\n%s", code, out.err.String())
	}
	stdout := out.out.String()
	if !strings.Contains(stdout, "transfer complete after 1 attempt(s)") {
		t.Fatalf("missing completion message:\n%s", stdout)
	}
	if !strings.Contains(stdout, "100%") {
		t.Fatalf("child output was not rendered:\n%s", stdout)
	}
}

func TestRunCompactProgressPrintsStatusLines(t *testing.T) {
	child := fakeChild(t, `printf 'pulling 6e4c38e1172f... 50%% 1.2 GB/2.4 GB 12 MB/s 1m\r'
printf 'pulling 6e4c38e1172f... 100%% 2.4 GB/2.4 GB 12 MB/s\n'
`)
	code, out := runCLI(t, "", "run", "--cooldown", "0s", "--poll", "20ms", "--progress", "compact", "--", child)
	if code != exitcode.Success {
		t.Fatalf("exit = %d, stderr:\n%s", code, out.err.String())
	}
	stdout := out.out.String()
	if !strings.Contains(stdout, "[attempt 1] [##########----------]  50%") {
		t.Fatalf("missing compact status line:\n%s", stdout)
	}
	if strings.Contains(stdout, "\033[2K") {
		t.Fatalf("compact output redrew in place on a non-terminal:\n%q", stdout)
	}
}

func TestRunJSONEmitsEventStream(t *testing.T) {
	child := fakeChild(t, "printf '100%%\\n'\n")
	args := append([]string{"--json", "run"}, fastRunFlags...)
	args = append(args, "--", child)

	code, out := runCLI(t, "", args...)
	if code != exitcode.Success {
		t.Fatalf("exit = %d, stderr:\n%s", code, out.err.String())
	}

	var names []string
	runIDs := map[string]struct{}{}
	for _, line := range strings.Split(strings.TrimSpace(out.out.String()), "\n") {
		var event struct {
			Event string `json:"event"`
			RunID string `json:"run_id"`
		}
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Fatalf("stdout line is not JSON: %q (%v)", line, err)
		}
		names = append(names, event.Event)
		runIDs[event.RunID] = struct{}{}
	}
	want := []string{"run_started", "attempt_started", "completed"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("events = %v, want %v", names, want)
	}
	if len(runIDs) != 1 {
		t.Fatalf("events carry %d run ids, want 1", len(runIDs))
	}
	if !strings.Contains(out.err.String(), "100%") {
		t.Fatalf("child output should move to stderr in JSON mode:\n%s", out.err.String())
	}
}

func TestRunRestartsUntilMaxAttempts(t *testing.T) {
	child := fakeChild(t, "printf 'pulling manifest\\n'\nexit 3\n")
	args := append([]string{"run", "--max-attempts", "2"}, fastRunFlags...)
	args = append(args, "--", child)

	code, out := runCLI(t, "", args...)
	if code != exitcode.RuntimeFailure {
		t.Fatalf("exit = %d, want %d", code, exitcode.RuntimeFailure)
	}
	if got := strings.Count(out.err.String(), "child exited with code 3"); got != 2 {
		t.Fatalf("restart warnings = %d, want 2:\n%s", got, out.err.String())
	}
	if !strings.Contains(out.err.String(), "maximum attempts reached") {
		t.Fatalf("missing final error:\n%s", out.err.String())
	}
}

func TestRunMissingBinaryIsLaunchFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-ollama")
	args := append([]string{"run", "--launch-retries", "1"}, fastRunFlags...)
	args = append(args, "--", missing)

	code, out := runCLI(t, "", args...)
	if code != exitcode.LaunchFailure {
		t.Fatalf("exit = %d, want %d\nstderr:\n%s", code, exitcode.LaunchFailure, out.err.String())
	}
	if got := strings.Count(out.err.String(), "could not launch"); got != 2 {
		t.Fatalf("launch warnings = %d, want 2:\n%s", got, out.err.String())
	}
}

func TestRunPassesEnvFileToChild(t *testing.T) {
	child := fakeChild(t, "printf 'host=%s\\n' \"$OLLAMA_HOST\"\nprintf '100%%\\n'\n")
	envFile := filepath.Join(t.TempDir(), "child.env")
	if err := os.WriteFile(envFile, []byte("OLLAMA_HOST=10.0.0.5:11434\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	args := append([]string{"run", "--env-file", envFile}, fastRunFlags...)
	args = append(args, "--", child)

	code, out := runCLI(t, "", args...)
	if code != exitcode.Success {
		t.Fatalf("exit = %d, stderr:\n%s", code, out.err.String())
	}
	if !strings.Contains(out.out.String(), "host=10.0.0.5:11434") {
		t.Fatalf("child did not see env file value:\n%s", out.out.String())
	}
}

func TestRunUsesConfiguredCommand(t *testing.T) {
	child := fakeChild(t, "printf 'args=%s\\n' \"$*\"\nprintf '100%%\\n'\n")
	cfgPath := writeConfig(t, "version: 1\ncommand:\n  bin: "+child+"\n  args: [pull, llama3.1:8b]\n")

	args := append([]string{"--config", cfgPath, "run"}, fastRunFlags...)
	code, out := runCLI(t, "", args...)
	if code != exitcode.Success {
		t.Fatalf("exit = %d, stderr:\n%s", code, out.err.String())
	}
	if !strings.Contains(out.out.String(), "args=pull llama3.1:8b") {
		t.Fatalf("unexpected child args:\n%s", out.out.String())
	}

	args = append([]string{"--config", cfgPath, "run", "--model", "qwen2.5:14b"}, fastRunFlags...)
	code, out = runCLI(t, "", args...)
	if code != exitcode.Success {
		t.Fatalf("exit = %d, stderr:\n%s", code, out.err.String())
	}
	if !strings.Contains(out.out.String(), "args=pull qwen2.5:14b") {
		t.Fatalf("--model did not replace args:\n%s", out.out.String())
	}
}

func TestRunRejectsModelWithExplicitCommand(t *testing.T) {
	code, _ := runCLI(t, "", "run", "--model", "llama3", "--", "ollama", "pull", "qwen")
	if code != exitcode.InvalidUsage {
		t.Fatalf("exit = %d, want %d", code, exitcode.InvalidUsage)
	}
}

func TestRunRejectsInvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "negative cooldown", args: []string{"run", "--cooldown", "-1s", "--", "true"}, want: exitcode.InvalidUsage},
		{name: "poll too small", args: []string{"run", "--poll", "1ms", "--", "true"}, want: exitcode.InvalidUsage},
		{name: "zero low speed", args: []string{"run", "--low-speed", "0", "--", "true"}, want: exitcode.InvalidConfig},
		{name: "bad progress mode", args: []string{"run", "--progress", "sometimes", "--", "true"}, want: exitcode.InvalidConfig},
		{name: "unknown flag", args: []string{"run", "--bogus"}, want: exitcode.InvalidUsage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if code, out := runCLI(t, "", tc.args...); code != tc.want {
				t.Fatalf("exit = %d, want %d\nstderr:\n%s", code, tc.want, out.err.String())
			}
		})
	}
}

func TestRunWritesEventsFile(t *testing.T) {
	child := fakeChild(t, "printf '100%%\\n'\n")
	events := filepath.Join(t.TempDir(), "events.ndjson")
	args := append([]string{"run", "--events-file", events}, fastRunFlags...)
	args = append(args, "--", child)

	if code, out := runCLI(t, "", args...); code != exitcode.Success {
		t.Fatalf("exit = %d, stderr:\n%s", code, out.err.String())
	}
	payload, err := os.ReadFile(events)
	if err != nil {
		t.Fatalf("read events file: %v", err)
	}
	if !strings.Contains(string(payload), `"event":"completed"`) {
		t.Fatalf("events file missing completion:\n%s", payload)
	}
}

func TestWatchOptionsMatchEngineDefaults(t *testing.T) {
	got := watchOptions(config.DefaultConfig().Watch)
	if want := engine.DefaultWatchOptions(); got != want {
		t.Fatalf("watchOptions(defaults) = %+v, want %+v", got, want)
	}
}
