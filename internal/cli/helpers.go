package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jaa/pullguard/internal/config"
	"github.com/jaa/pullguard/internal/engine"
	"github.com/mattn/go-isatty"
)

func loadConfig(app *AppContext) (config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return config.Config{}, fmt.Errorf("resolve working directory: %w", err)
	}

	cfg, err := config.Load(config.LoadOptions{
		ExplicitPath: strings.TrimSpace(app.Opts.ConfigPath),
		WorkingDir:   wd,
	})
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func isTTY(r any) bool {
	file, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

func colorEnabled(app *AppContext, w io.Writer) bool {
	if app.Opts.NoColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isTTY(w)
}

func watchOptions(w config.Watch) engine.WatchOptions {
	return engine.WatchOptions{
		LowSpeed:        w.LowSpeedMBps,
		ArmSpeed:        w.ArmSpeedMBps,
		MinRunTime:      time.Duration(w.MinRunSeconds) * time.Second,
		ProgressTimeout: time.Duration(w.ProgressTimeoutSeconds) * time.Second,
		Cooldown:        time.Duration(w.CooldownSeconds) * time.Second,
		PollInterval:    time.Duration(w.PollIntervalMS) * time.Millisecond,
		LowSpeedSamples: w.LowSpeedSamples,
		LaunchRetries:   w.LaunchRetries,
		MaxAttempts:     w.MaxAttempts,
		HeaderMarker:    w.HeaderMarker,
	}
}

func execSpec(cmd config.Command, env []string) engine.ExecSpec {
	return engine.ExecSpec{
		Bin:  cmd.Bin,
		Args: append([]string{}, cmd.Args...),
		Dir:  cmd.Dir,
		Env:  env,
	}
}
