package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"acquire/pkg/config"
	"acquire/pkg/display"

	"github.com/spf13/cobra"
)

// Execute parses args, runs the selected command and returns the exit code
// it asks for. Errors are returned for the caller to print.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) (*ExecutionResult, error) {
	res := &ExecutionResult{}
	root := newRootCommand(stdout, stderr, res)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

func newRootCommand(stdout, stderr io.Writer, res *ExecutionResult) *cobra.Command {
	global := &globalParams{}

	root := &cobra.Command{
		Use:           "acquire",
		Short:         "Download, patch and install games",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&global.Verbose, "verbose", "v", false, "Show detailed logs")
	root.PersistentFlags().StringVar(&global.Root, "root", "", "Keep all state under this directory instead of the XDG locations")

	bind := func(build func(h *DefaultHandlers) Action) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			mgr, err := newManagers(global, stdout, stderr)
			if err != nil {
				return err
			}
			defer mgr.Disp.Close()

			h := &DefaultHandlers{Ctx: cmd.Context(), Mgr: mgr}
			r, err := build(h)()
			if err != nil {
				return err
			}
			*res = *r
			return nil
		}
	}

	version := &versionParams{}
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h := &DefaultHandlers{Ctx: cmd.Context(), Mgr: &Managers{Out: stdout}}
			r, err := h.Version(version)()
			if err != nil {
				return err
			}
			*res = *r
			return nil
		},
	})

	run := &runParams{}
	runCmd := &cobra.Command{
		Use:   "run <manifest.yaml>",
		Short: "Download and install everything listed in a manifest",
		Example: `  acquire run downloads.yaml
  acquire run --metrics /tmp/acquire.prom downloads.yaml`,
		Args: cobra.ExactArgs(1),
		PreRun: func(_ *cobra.Command, args []string) {
			run.Manifest = args[0]
		},
		RunE: bind(func(h *DefaultHandlers) Action { return h.Run(run) }),
	}
	runCmd.Flags().StringVar(&run.Metrics, "metrics", "", "Write Prometheus metrics to this file when done")
	root.AddCommand(runCmd)

	status := &statusParams{}
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the recorded state of every download",
		Example: `  acquire status
  acquire status --query '.[] | select(.state == "failed") | .title'`,
		Args: cobra.NoArgs,
		RunE: bind(func(h *DefaultHandlers) Action { return h.Status(status) }),
	}
	statusCmd.Flags().StringVarP(&status.Query, "query", "q", "", "Filter the journal with a jq expression")
	root.AddCommand(statusCmd)

	diskCmd := &cobra.Command{
		Use:   "disk",
		Short: "Inspect and reclaim local storage",
	}
	diskInfo := &diskInfoParams{}
	diskCmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show space used by downloads and installs",
		Args:  cobra.NoArgs,
		RunE:  bind(func(h *DefaultHandlers) Action { return h.DiskInfo(diskInfo) }),
	})
	diskClean := &diskCleanParams{}
	diskCmd.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Remove downloaded archives and leftovers of interrupted installs",
		Args:  cobra.NoArgs,
		RunE:  bind(func(h *DefaultHandlers) Action { return h.DiskClean(diskClean) }),
	})
	root.AddCommand(diskCmd)

	return root
}

func newManagers(global *globalParams, stdout, stderr io.Writer) (*Managers, error) {
	var (
		cfg config.ReadOnly
		err error
	)
	if global.Root != "" {
		cfg, err = config.InitAt(global.Root)
	} else {
		cfg, err = config.Init()
	}
	if err != nil {
		return nil, fmt.Errorf("error initializing config: %w", err)
	}

	disp := display.NewWriterDisplay(stderr)
	disp.SetVerbose(global.Verbose)

	level := slog.LevelError
	if global.Verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	return &Managers{
		Cfg:    cfg,
		Disp:   disp,
		Logger: logger,
		Out:    stdout,
	}, nil
}
