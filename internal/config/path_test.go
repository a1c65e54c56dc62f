package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestUserConfigPathHonoursXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	got, err := UserConfigPath()
	if err != nil {
		t.Fatalf("user config path: %v", err)
	}
	want := filepath.Join("/tmp/xdg", "pullguard", "config.yaml")
	if got != want {
		t.Fatalf("unexpected user config path. got=%q want=%q", got, want)
	}
}

func TestExpandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	for raw, want := range map[string]string{
		"~":            filepath.Clean(home),
		"~/bin":        filepath.Join(home, "bin"),
		"/usr/bin/":    filepath.Clean("/usr/bin"),
		"  ":           "",
		"relative/dir": filepath.Clean("relative/dir"),
	} {
		got, err := ExpandPath(raw)
		if err != nil {
			t.Fatalf("expand %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("unexpected expansion of %q. got=%q want=%q", raw, got, want)
		}
	}
}
