package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/morphc/internal/harness"
	"github.com/roach88/morphc/internal/ir"
	"github.com/roach88/morphc/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
	Sessions bool
}

// BindingView is one bound variable in show output.
type BindingView struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Role   string `json:"role"`
}

// DriverView is one attached driver in show output.
type DriverView struct {
	Target   string        `json:"target"`
	Kind     string        `json:"kind"`
	Text     string        `json:"text"`
	Bindings []BindingView `json:"bindings"`
	Hash     string        `json:"hash"`
	Seq      int64         `json:"seq"`
}

// SessionView is one logged import in show output.
type SessionView struct {
	ID      string `json:"id"`
	Seq     int64  `json:"seq"`
	Targets int    `json:"targets"`
	Failed  int    `json:"failed"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show [target...]",
		Short: "Show the drivers attached in the scene database",
		Long: `Show rendered drivers and their bindings.

Targets are channel names or joint components written "joint:?kind/axis".
Without arguments every driver is listed.

Examples:
  morphc show --db scene.db
  morphc show --db scene.db "Smile_L(fin)" "lForearmBend:?rotation/x"
  morphc show --db scene.db --sessions`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().BoolVar(&opts.Sessions, "sessions", false, "list logged import sessions instead of drivers")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runShow(ctx context.Context, opts *ShowOptions, targets []string, cmd *cobra.Command) error {
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

	if opts.Sessions {
		return showSessions(ctx, st, formatter)
	}

	views, err := driverViews(ctx, st)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "reading drivers", err)
	}
	if len(targets) > 0 {
		byTarget := make(map[string]DriverView, len(views))
		for _, v := range views {
			byTarget[v.Target] = v
		}
		selected := make([]DriverView, 0, len(targets))
		for _, t := range targets {
			v, ok := byTarget[t]
			if !ok {
				return formatter.Fail(ExitCommandError, ErrCodeBadTarget, fmt.Sprintf("no driver attached to %s", t), nil)
			}
			selected = append(selected, v)
		}
		views = selected
	}

	if formatter.Format == "json" {
		return formatter.Success(views)
	}
	for _, v := range views {
		fmt.Fprintf(formatter.Writer, "%s [%s] = %s\n", v.Target, v.Kind, v.Text)
		for _, b := range v.Bindings {
			fmt.Fprintf(formatter.Writer, "    %s: %s (%s)\n", b.Name, b.Source, b.Role)
		}
	}
	if len(views) == 0 {
		fmt.Fprintln(formatter.Writer, "No drivers attached.")
	}
	return nil
}

// driverViews lists the stored drivers with joint names spelled out.
func driverViews(ctx context.Context, st *store.Store) ([]DriverView, error) {
	h, err := st.Hierarchy(ctx)
	if err != nil {
		return nil, err
	}
	records, err := st.Drivers(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]DriverView, 0, len(records))
	for _, rec := range records {
		views = append(views, driverView(h, rec))
	}
	return views, nil
}

func driverView(h *ir.Hierarchy, rec store.DriverRecord) DriverView {
	v := DriverView{
		Target:   harness.TargetName(h, rec.Target),
		Kind:     string(rec.Driver.Kind()),
		Text:     rec.Driver.Render(),
		Bindings: []BindingView{},
		Hash:     rec.Hash,
		Seq:      rec.Seq,
	}
	for _, b := range rec.Driver.Bindings() {
		v.Bindings = append(v.Bindings, BindingView{
			Name:   b.Name,
			Source: harness.SourceName(h, b.Source),
			Role:   string(b.Role),
		})
	}
	return v
}

func showSessions(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	records, err := st.Sessions(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "reading sessions", err)
	}
	views := make([]SessionView, 0, len(records))
	for _, r := range records {
		views = append(views, SessionView{ID: r.ID, Seq: r.Seq, Targets: r.Targets, Failed: r.Failed})
	}
	if formatter.Format == "json" {
		return formatter.Success(views)
	}
	for _, v := range views {
		fmt.Fprintf(formatter.Writer, "%s seq=%d targets=%d failed=%d\n", v.ID, v.Seq, v.Targets, v.Failed)
	}
	if len(views) == 0 {
		fmt.Fprintln(formatter.Writer, "No sessions logged.")
	}
	return nil
}
