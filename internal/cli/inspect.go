package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jaa/pullguard/internal/engine"
	"github.com/jaa/pullguard/internal/exitcode"
	"github.com/jaa/pullguard/internal/signals"
	"github.com/spf13/cobra"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

type inspectRecord struct {
	Line       int            `json:"line"`
	Text       string         `json:"text"`
	Signal     signals.Signal `json:"signal"`
	Suppressed bool           `json:"suppressed,omitempty"`
}

type inspectSummary struct {
	Lines        int      `json:"lines"`
	WithSignal   int      `json:"with_signal"`
	Suppressed   int      `json:"suppressed"`
	BestProgress int      `json:"best_progress"`
	LastSpeed    *float64 `json:"last_throughput_mbps,omitempty"`
}

func newInspectCommand(app *AppContext) *cobra.Command {
	var file string
	var all bool
	headerMarker := engine.DefaultWatchOptions().HeaderMarker

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the progress signals found in captured transfer output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = app.IO.In
			if strings.TrimSpace(file) != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return withExitCode(exitcode.InvalidUsage, fmt.Errorf("open input: %w", err))
				}
				defer f.Close()
				in = f
			}

			summary, err := inspectStream(in, app.IO.Out, app.Opts.JSON, all, headerMarker)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			if app.Opts.JSON {
				return json.NewEncoder(app.IO.Out).Encode(map[string]any{"summary": summary})
			}
			fmt.Fprintf(app.IO.Out, "%d lines, %d with signals, %d suppressed, best progress %d%%\n",
				summary.Lines, summary.WithSignal, summary.Suppressed, summary.BestProgress)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read output from this file instead of stdin")
	cmd.Flags().BoolVar(&all, "all", false, "Also list lines without signals")
	cmd.Flags().StringVar(&headerMarker, "header-marker", headerMarker, "Text of the header line whose repeats are hidden")
	return cmd
}

func inspectStream(in io.Reader, out io.Writer, asJSON bool, all bool, headerMarker string) (inspectSummary, error) {
	summary := inspectSummary{}
	session := engine.NewSession(0, time.Now())
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	// Decode and split exactly as the live child pipe is.
	scanner := bufio.NewScanner(transform.NewReader(in, unicode.UTF8.NewDecoder()))
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	scanner.Split(engine.ScanTerminalLines)
	for scanner.Scan() {
		summary.Lines++
		text := signals.Clean(scanner.Text())
		record := inspectRecord{
			Line:       summary.Lines,
			Text:       text,
			Signal:     signals.Extract(text),
			Suppressed: session.ObserveHeader(text, headerMarker),
		}
		if record.Suppressed {
			summary.Suppressed++
		}
		if !record.Signal.Empty() {
			summary.WithSignal++
		}
		if record.Signal.Progress != nil {
			session.RecordProgress(*record.Signal.Progress, time.Now())
		}
		if record.Signal.Throughput != nil {
			speed := *record.Signal.Throughput
			summary.LastSpeed = &speed
		}
		if record.Signal.Empty() && !all {
			continue
		}

		if asJSON {
			if err := enc.Encode(record); err != nil {
				return summary, err
			}
			continue
		}
		marker := ""
		if record.Suppressed {
			marker = " (suppressed)"
		}
		if _, err := fmt.Fprintf(out, "%5d  %-44s %s%s\n", record.Line, record.Signal.String(), text, marker); err != nil {
			return summary, err
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("read input: %w", err)
	}
	summary.BestProgress = session.BestProgress
	return summary, nil
}
