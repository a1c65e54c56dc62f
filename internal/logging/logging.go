package logging

import (
	"io"
	"os"

	gologging "github.com/op/go-logging"
)

const Module = "pullguard"

const (
	LevelDebug   = "DEBUG"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

var format = gologging.MustStringFormatter(
	`%{time:2006-01-02 15:04:05.000} %{level:.5s} %{module} %{message}`,
)

// Init installs the process-wide diagnostics backend. level is a go-logging
// level name such as DEBUG or WARNING.
func Init(w io.Writer, level string) error {
	if w == nil {
		w = os.Stderr
	}
	backend := gologging.NewLogBackend(w, "", 0)
	formatted := gologging.NewBackendFormatter(backend, format)

	leveled := gologging.AddModuleLevel(formatted)
	code, err := gologging.LogLevel(level)
	if err != nil {
		return err
	}
	leveled.SetLevel(code, "")

	gologging.SetBackend(leveled)
	return nil
}

func LevelFor(quiet, verbose bool) string {
	switch {
	case verbose:
		return LevelDebug
	case quiet:
		return LevelError
	default:
		return LevelWarning
	}
}

func Logger() *gologging.Logger {
	return gologging.MustGetLogger(Module)
}
