package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/morphc/internal/config"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <assets-dir>",
		Short: "Re-import assets whenever a CUE file changes",
		Long: `Import the assets once, then watch the directory and run a new
import session after every change. Failed imports are reported and the
previous drivers stay attached. Stop with Ctrl+C.

Example:
  morphc watch ./assets --db scene.db --scene scene.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Scene, "scene", "", "scene YAML to merge into the database first")
	cmd.Flags().StringSliceVar(&opts.Rest, "rest", nil, "joints whose rest offsets are imported")
	cmd.Flags().BoolVar(&opts.AllRest, "all-rest", false, "import every rest offset")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runWatch(ctx context.Context, opts *ImportOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "loading config", err)
	}
	st, err := openStore(opts.Database, cfg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "opening database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if opts.Scene != "" {
		if err := importScene(ctx, st, opts.Scene, cfg); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeScene, "importing scene", err)
		}
	}

	reimport := func() error {
		report, err := importAssets(ctx, st, cfg, dir, opts, formatter)
		if err != nil {
			return err
		}
		return formatter.Report(report)
	}
	if err := reimport(); err != nil {
		slog.Error("initial import failed", "dir", dir, "error", err)
	}

	if err := config.WatchDir(ctx, dir, ".cue", reimport); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "watching assets", err)
	}
	return nil
}
