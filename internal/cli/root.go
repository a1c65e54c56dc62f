package cli

import (
	"fmt"
	"os"

	"github.com/jaa/pullguard/internal/exitcode"
	"github.com/jaa/pullguard/internal/logging"
	"github.com/spf13/cobra"
)

func Execute(build BuildInfo, streams IOStreams) int {
	return ExecuteArgs(build, streams, os.Args[1:])
}

// ExecuteArgs runs the command tree against args instead of os.Args.
func ExecuteArgs(build BuildInfo, streams IOStreams, args []string) int {
	app := &AppContext{Build: build, IO: streams}
	root := newRootCommand(app)
	root.SetArgs(args)
	root.SetOut(streams.Out)
	root.SetErr(streams.ErrOut)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(streams.ErrOut, "ERROR:", err)
		return mapExitCode(err)
	}
	return exitcode.Success
}

func newRootCommand(app *AppContext) *cobra.Command {
	showVersion := false

	root := &cobra.Command{
		Use:   "pullguard",
		Short: "Supervise a long-running download and restart it when it stalls",
		Long: "pullguard runs a transfer command such as `ollama pull`, watches its progress output, " +
			"and restarts it when throughput drops or progress stops advancing.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelFor(app.Opts.Quiet, app.Opts.Verbose)
			if err := logging.Init(app.IO.ErrOut, level); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion(app)
				return nil
			}
			return cmd.Help()
		},
		SilenceErrors:     true,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}

	defaultConfigPath := os.Getenv("PULLGUARD_CONFIG")
	root.PersistentFlags().StringVarP(&app.Opts.ConfigPath, "config", "c", defaultConfigPath, "Path to config file")
	root.PersistentFlags().BoolVar(&app.Opts.JSON, "json", false, "Emit newline-delimited JSON events")
	root.PersistentFlags().BoolVarP(&app.Opts.Quiet, "quiet", "q", false, "Reduce output to errors and summary")
	root.PersistentFlags().BoolVarP(&app.Opts.Verbose, "verbose", "v", false, "Increase diagnostic output")
	root.PersistentFlags().BoolVar(&app.Opts.NoColor, "no-color", false, "Disable color output")
	root.PersistentFlags().BoolVar(&app.Opts.NoInput, "no-input", false, "Disable interactive prompts")
	root.Flags().BoolVar(&showVersion, "version", false, "Print version info")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withExitCode(exitcode.InvalidUsage, err)
	})

	root.AddCommand(newInitCommand(app))
	root.AddCommand(newValidateCommand(app))
	root.AddCommand(newDoctorCommand(app))
	root.AddCommand(newRunCommand(app))
	root.AddCommand(newInspectCommand(app))
	root.AddCommand(newVersionCommand(app))

	return root
}

func printVersion(app *AppContext) {
	version := app.Build.Version
	if version == "" {
		version = "dev"
	}
	commit := app.Build.Commit
	if commit == "" {
		commit = "unknown"
	}
	date := app.Build.Date
	if date == "" {
		date = "unknown"
	}

	fmt.Fprintf(app.IO.Out, "pullguard version %s\ncommit: %s\nbuild_date: %s\n", version, commit, date)
}
