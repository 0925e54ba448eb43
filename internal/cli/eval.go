package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/morphc/internal/harness"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Database string
	Set      []string // name=value assignments
}

// EvalValue is one evaluated target.
type EvalValue struct {
	Target string  `json:"target"`
	Value  float64 `json:"value"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <target>...",
		Short: "Evaluate targets with the attached drivers",
		Long: `Evaluate channels or joint components against the scene database.

Channel values given with --set replace the stored ones for this
evaluation only; nothing is written back.

Examples:
  morphc eval --db scene.db --set eCTRLSmile=1 "Smile_L(fin)"
  morphc eval --db scene.db --set lForearmBend=1.2 "lForearmBend:?rotation/x"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "channel value as name=value (repeatable)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runEval(ctx context.Context, opts *EvalOptions, targets []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	assignments, err := parseAssignments(opts.Set)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadAssignment, "parsing --set", err)
	}

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

	mem, err := st.Snapshot(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "loading scene", err)
	}
	for _, a := range assignments {
		mem.SetValue(a.Target, a.Value)
	}

	frame := mem.Frame()
	values := make([]EvalValue, 0, len(targets))
	for _, name := range targets {
		t, err := harness.ParseTarget(mem, name)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadTarget, fmt.Sprintf("target %s", name), err)
		}
		v, err := frame.Value(t)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadTarget, fmt.Sprintf("evaluating %s", name), err)
		}
		values = append(values, EvalValue{Target: name, Value: v})
	}

	if formatter.Format == "json" {
		return formatter.Success(values)
	}
	for _, v := range values {
		fmt.Fprintf(formatter.Writer, "%s = %s\n", v.Target, strconv.FormatFloat(v.Value, 'g', -1, 64))
	}
	return nil
}

// parseAssignments parses name=value pairs. The last assignment to a name wins.
func parseAssignments(set []string) ([]EvalValue, error) {
	out := make([]EvalValue, 0, len(set))
	for _, s := range set {
		name, raw, ok := strings.Cut(s, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%q: expected name=value", s)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
		out = append(out, EvalValue{Target: name, Value: v})
	}
	return out, nil
}
