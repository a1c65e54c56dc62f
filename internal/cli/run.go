package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/jaa/pullguard/internal/config"
	"github.com/jaa/pullguard/internal/engine"
	"github.com/jaa/pullguard/internal/exitcode"
	"github.com/jaa/pullguard/internal/logging"
	"github.com/jaa/pullguard/internal/output"
	"github.com/spf13/cobra"
)

type runFlags struct {
	lowSpeed        float64
	armSpeed        float64
	minRun          time.Duration
	progressTimeout time.Duration
	cooldown        time.Duration
	poll            time.Duration
	lowSpeedSamples int
	launchRetries   int
	maxAttempts     int
	progressMode    string
	extraPath       []string
	envFile         string
	model           string
	eventsFile      string
}

func newRunCommand(app *AppContext) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [flags] [-- bin args...]",
		Short: "Run the transfer command and restart it when it stalls",
		Example: "  pullguard run --model llama3.1:8b\n" +
			"  pullguard run --low-speed 2 --min-run 30s -- ollama pull qwen2.5:14b",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			if err := applyCommandOverrides(cmd, flags, args, &cfg); err != nil {
				return withExitCode(exitcode.InvalidUsage, err)
			}
			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			opts, err := applyWatchOverrides(cmd, flags, watchOptions(cfg.Watch))
			if err != nil {
				return withExitCode(exitcode.InvalidUsage, err)
			}
			mode, err := output.ParseProgressMode(cfg.Output.Progress)
			if err != nil {
				return withExitCode(exitcode.InvalidUsage, err)
			}

			env, err := readEnvFile(cfg.Command.EnvFile, os.LookupEnv)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			renderer := selectRenderer(app, mode, opts.HeaderMarker)
			emitter, closeEvents, err := selectEmitter(app, renderer, flags.eventsFile)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			defer closeEvents()

			log := logging.Logger()
			log.Debugf("watch options: %+v", opts)

			supervisor := engine.NewSupervisor(engine.NewSubprocessLauncher(cfg.Command.ExtraPath), opts, emitter, renderer, log)

			ctx, stop := signal.NotifyContext(context.Background(), interruptSignals()...)
			defer stop()

			result, runErr := supervisor.Run(ctx, execSpec(cfg.Command, env))
			log.Debugf("run %s finished: attempts=%d restarts=%d reason=%s", result.RunID, result.Attempts, result.Restarts, result.Reason)
			if runErr != nil {
				return withExitCode(runExitCode(runErr), runErr)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&flags.lowSpeed, "low-speed", 0, "Restart when throughput drops below this many MB/s")
	f.Float64Var(&flags.armSpeed, "arm-speed", 0, "Throughput in MB/s that arms speed monitoring")
	f.DurationVar(&flags.minRun, "min-run", 0, "Warm-up time before low throughput can trigger a restart")
	f.DurationVar(&flags.progressTimeout, "progress-timeout", 0, "Restart when progress has not advanced for this long (0 disables)")
	f.DurationVar(&flags.cooldown, "cooldown", 0, "Pause between a kill and the next launch")
	f.DurationVar(&flags.poll, "poll", 0, "Maximum wait for output before re-checking timers")
	f.IntVar(&flags.lowSpeedSamples, "low-speed-samples", 0, "Consecutive slow samples required before a restart")
	f.IntVar(&flags.launchRetries, "launch-retries", 0, "Extra launch attempts when the child cannot be spawned")
	f.IntVar(&flags.maxAttempts, "max-attempts", 0, "Stop after this many launched attempts (0 means unlimited)")
	f.StringVar(&flags.progressMode, "progress", "", "Progress rendering mode: auto, always, never, or compact")
	f.StringArrayVar(&flags.extraPath, "path", nil, "Extra directory searched for the binary and prepended to the child PATH (repeatable)")
	f.StringVar(&flags.envFile, "env-file", "", "File of KEY=VALUE lines added to the child environment")
	f.StringVar(&flags.model, "model", "", "Model to pull; shorthand for -- <bin> pull <model>")
	f.StringVar(&flags.eventsFile, "events-file", "", "Also append JSON events to this file")
	return cmd
}

// applyCommandOverrides folds the child command, PATH and output flags into cfg
// so that config validation sees the effective values.
func applyCommandOverrides(cmd *cobra.Command, flags *runFlags, args []string, cfg *config.Config) error {
	if len(args) > 0 && strings.TrimSpace(flags.model) != "" {
		return fmt.Errorf("--model cannot be combined with an explicit command")
	}
	if len(args) > 0 {
		cfg.Command.Bin = args[0]
		cfg.Command.Args = append([]string{}, args[1:]...)
	}
	if model := strings.TrimSpace(flags.model); model != "" {
		cfg.Command.Args = []string{"pull", model}
	}

	f := cmd.Flags()
	if f.Changed("path") {
		paths := make([]string, 0, len(flags.extraPath))
		for _, raw := range flags.extraPath {
			expanded, err := config.ExpandPath(raw)
			if err != nil {
				return err
			}
			paths = append(paths, expanded)
		}
		cfg.Command.ExtraPath = append(paths, cfg.Command.ExtraPath...)
	}
	if f.Changed("env-file") {
		expanded, err := config.ExpandPath(flags.envFile)
		if err != nil {
			return err
		}
		cfg.Command.EnvFile = expanded
	}
	if f.Changed("progress") {
		cfg.Output.Progress = strings.ToLower(strings.TrimSpace(flags.progressMode))
	}
	if f.Changed("low-speed") {
		cfg.Watch.LowSpeedMBps = flags.lowSpeed
	}
	if f.Changed("arm-speed") {
		cfg.Watch.ArmSpeedMBps = flags.armSpeed
	}
	if f.Changed("low-speed-samples") {
		cfg.Watch.LowSpeedSamples = flags.lowSpeedSamples
	}
	if f.Changed("launch-retries") {
		cfg.Watch.LaunchRetries = flags.launchRetries
	}
	if f.Changed("max-attempts") {
		cfg.Watch.MaxAttempts = flags.maxAttempts
	}
	return nil
}

// applyWatchOverrides handles the duration flags, which keep sub-second
// precision that the config file's integer fields cannot hold.
func applyWatchOverrides(cmd *cobra.Command, flags *runFlags, opts engine.WatchOptions) (engine.WatchOptions, error) {
	durations := []struct {
		name string
		src  time.Duration
		dest *time.Duration
	}{
		{name: "min-run", src: flags.minRun, dest: &opts.MinRunTime},
		{name: "progress-timeout", src: flags.progressTimeout, dest: &opts.ProgressTimeout},
		{name: "cooldown", src: flags.cooldown, dest: &opts.Cooldown},
		{name: "poll", src: flags.poll, dest: &opts.PollInterval},
	}
	for _, d := range durations {
		if !cmd.Flags().Changed(d.name) {
			continue
		}
		if d.src < 0 {
			return opts, fmt.Errorf("--%s must be >= 0", d.name)
		}
		*d.dest = d.src
	}
	if cmd.Flags().Changed("poll") && (opts.PollInterval < 10*time.Millisecond || opts.PollInterval > 10*time.Second) {
		return opts, fmt.Errorf("--poll must be between 10ms and 10s")
	}
	return opts, nil
}

func selectRenderer(app *AppContext, mode output.ProgressMode, headerMarker string) output.Renderer {
	switch {
	case app.Opts.Quiet:
		return output.NopRenderer{}
	case app.Opts.JSON:
		// stdout carries the event stream; child output moves to stderr.
		return output.NewPlainRenderer(app.IO.ErrOut)
	case app.Opts.Verbose:
		return output.NewPlainRenderer(app.IO.Out)
	default:
		return output.NewRenderer(app.IO.Out, output.RendererOptions{Mode: mode, HeaderMarker: headerMarker})
	}
}

func selectEmitter(app *AppContext, renderer output.Renderer, eventsFile string) (output.EventEmitter, func(), error) {
	var emitter output.EventEmitter
	if app.Opts.JSON {
		emitter = output.NewJSONEmitter(app.IO.Out)
	} else {
		human := output.NewHumanEmitter(app.IO.Out, app.IO.ErrOut, output.HumanOptions{
			Quiet:   app.Opts.Quiet,
			Verbose: app.Opts.Verbose,
			Color:   colorEnabled(app, app.IO.Out),
		})
		emitter = output.NewObservingEmitter(renderer, human)
	}

	path := strings.TrimSpace(eventsFile)
	if path == "" {
		return emitter, func() {}, nil
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(expanded, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open events file: %w", err)
	}
	return output.NewMultiEmitter(emitter, output.NewJSONEmitter(file)), func() { _ = file.Close() }, nil
}

func runExitCode(err error) int {
	switch {
	case errors.Is(err, engine.ErrInterrupted):
		return exitcode.Interrupted
	case errors.Is(err, engine.ErrLaunchExhausted):
		return exitcode.LaunchFailure
	default:
		return exitcode.RuntimeFailure
	}
}
