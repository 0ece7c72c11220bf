package cli

import (
	"io"
	"log/slog"

	"acquire/pkg/config"
	"acquire/pkg/display"
)

// ExecutionResult is what a command asks the process to do on exit.
type ExecutionResult struct {
	ExitCode int
}

// Action runs a bound command.
type Action func() (*ExecutionResult, error)

// Managers carries the shared services a command runs against.
type Managers struct {
	Cfg    config.ReadOnly
	Disp   display.Display
	Logger *slog.Logger
	Out    io.Writer
}

type globalParams struct {
	Verbose bool
	Root    string
}

type versionParams struct{}

type runParams struct {
	Manifest string
	Metrics  string
}

type statusParams struct {
	Query string
}

type diskInfoParams struct{}

type diskCleanParams struct{}
