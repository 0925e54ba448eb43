package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/morphc/internal/asset"
	"github.com/roach88/morphc/internal/compiler"
	"github.com/roach88/morphc/internal/config"
	"github.com/roach88/morphc/internal/scene"
	"github.com/roach88/morphc/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database string
	Scene    string
	Rest     []string
	AllRest  bool

	// IDGenerator overrides the session id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator compiler.SessionIDGenerator
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <assets-dir>",
		Short: "Compile morph assets into the scene database",
		Long: `Import every morph declared by the CUE files in a directory.

Drivers already attached by earlier imports are recovered and merged, so
importing the same assets twice leaves the scene unchanged. The database
is created if it doesn't exist.

Exit codes:
  0 - Every target compiled
  1 - One or more targets overflowed and kept their previous driver
  2 - Command error (invalid paths, asset errors, etc.)

Examples:
  morphc import ./assets --db scene.db --scene scene.yaml
  morphc import ./assets --db scene.db --rest lShldrBend,rShldrBend`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Scene, "scene", "", "scene YAML to merge into the database first")
	cmd.Flags().StringSliceVar(&opts.Rest, "rest", nil, "joints whose rest offsets are imported")
	cmd.Flags().BoolVar(&opts.AllRest, "all-rest", false, "import every rest offset")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runImport(ctx context.Context, opts *ImportOptions, dir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
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
		formatter.VerboseLog("Merged scene %s", opts.Scene)
	}

	report, err := importAssets(ctx, st, cfg, dir, opts, formatter)
	if err != nil {
		return err
	}
	if err := formatter.Report(report); err != nil {
		return err
	}
	if failed := report.Failed(); len(failed) > 0 {
		return WrapExitError(ExitFailure,
			fmt.Sprintf("%s: %d target(s) not compiled", ErrCodeImportFailed, len(failed)), report.Err())
	}
	return nil
}

// importAssets loads dir and runs one compiler session over it. The
// session report is logged to the database.
func importAssets(ctx context.Context, st *store.Store, cfg *config.Config, dir string, opts *ImportOptions, formatter *OutputFormatter) (*compiler.Report, error) {
	res, errs := asset.LoadDir(dir, asset.LoadModeCollectAll)
	if len(errs) > 0 {
		return nil, outputLoadErrors(formatter, errs)
	}
	formatter.VerboseLog("Found %d CUE file(s), %d morph(s) in %s", res.FileCount, len(res.Assets), dir)

	copts := compiler.OptionsFromConfig(cfg)
	copts.RestJoints = opts.Rest
	copts.AllRest = opts.AllRest

	var sessionOpts []compiler.SessionOption
	if opts.IDGenerator != nil {
		sessionOpts = append(sessionOpts, compiler.WithIDGenerator(opts.IDGenerator))
	}
	session := compiler.NewSession(st, copts, sessionOpts...)
	if err := session.Ingest(ctx, res.Assets...); err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeDatabase, "ingesting assets", err)
	}
	report, err := session.Compile(ctx)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeDatabase, "compiling session", err)
	}
	if err := st.WriteSession(ctx, report); err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeDatabase, "logging session", err)
	}
	return report, nil
}

func openStore(path string, cfg *config.Config) (*store.Store, error) {
	if path == "" {
		return nil, errors.New("--db is required")
	}
	return store.Open(path, store.WithUnits(cfg.Units))
}

func importScene(ctx context.Context, st *store.Store, path string, cfg *config.Config) error {
	mem, err := scene.LoadFile(path, cfg.Units)
	if err != nil {
		return err
	}
	return st.ImportScene(ctx, mem.Export())
}

// outputLoadErrors reports asset loading errors. Asset errors are
// command-level errors (exit code 2).
func outputLoadErrors(formatter *OutputFormatter, errs []error) error {
	cliErrors := make([]CLIError, len(errs))
	for i, err := range errs {
		cliErrors[i] = CLIError{Code: ErrCodeGeneric, Message: err.Error()}
		var loadErr *asset.LoadError
		if errors.As(err, &loadErr) {
			cliErrors[i] = CLIError{Code: loadErr.Code, Message: loadErr.Error()}
		}
	}

	if formatter.Format == "json" {
		_ = formatter.Error(cliErrors[0].Code, cliErrors[0].Message, cliErrors)
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Asset loading failed")
		for _, e := range cliErrors {
			fmt.Fprintf(formatter.Writer, "  %s\n", e.Message)
		}
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("asset loading failed with %d error(s): %s",
		len(errs), strings.TrimSpace(cliErrors[0].Message)))
}
