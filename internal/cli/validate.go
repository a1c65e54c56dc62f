package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jaa/pullguard/internal/config"
	"github.com/jaa/pullguard/internal/exitcode"
	"github.com/spf13/cobra"
)

func newValidateCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the merged configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			if app.Opts.JSON {
				payload := map[string]any{
					"valid":   true,
					"command": append([]string{cfg.Command.Bin}, cfg.Command.Args...),
				}
				encoded, _ := json.Marshal(payload)
				fmt.Fprintln(app.IO.Out, string(encoded))
			} else {
				fmt.Fprintf(app.IO.Out, "Config is valid. Command: %s\n", strings.Join(append([]string{cfg.Command.Bin}, cfg.Command.Args...), " "))
			}
			return nil
		},
	}
}
