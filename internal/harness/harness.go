package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/morphc/internal/asset"
	"github.com/roach88/morphc/internal/compiler"
	"github.com/roach88/morphc/internal/config"
	"github.com/roach88/morphc/internal/scene"
	"github.com/roach88/morphc/internal/store"
	"github.com/roach88/morphc/internal/testutil"
)

// Run executes a scenario against a fresh in-memory store.
//
// Each pass is one compiler session. Session ids and the store clock are
// deterministic, so two runs of the same scenario produce the same store.
// The returned snapshot reflects the store after the last pass.
func Run(ctx context.Context, s *Scenario) (*Result, *scene.Memory, error) {
	cfg := config.Default()
	if s.Limits.MaxTerms > 0 {
		cfg.MaxTerms = s.Limits.MaxTerms
	}
	if s.Limits.MaxExprLen > 0 {
		cfg.MaxExprLen = s.Limits.MaxExprLen
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	st, err := store.Open(":memory:",
		store.WithUnits(cfg.Units),
		store.WithClock(testutil.NewDeterministicClock()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	file, err := scenarioScene(s, cfg.Units)
	if err != nil {
		return nil, nil, err
	}
	if err := st.ImportScene(ctx, file); err != nil {
		return nil, nil, fmt.Errorf("failed to import scene: %w", err)
	}

	ids := testutil.NewSessionIDs(s.Name)
	result := NewResult()
	for i, p := range s.Passes {
		assets, err := passAssets(s.Name, i, p)
		if err != nil {
			return nil, nil, err
		}

		opts := compiler.OptionsFromConfig(cfg)
		opts.RestJoints = p.Rest
		session := compiler.NewSession(st, opts, compiler.WithIDGenerator(ids))
		if err := session.Ingest(ctx, assets...); err != nil {
			return nil, nil, fmt.Errorf("pass %d: %w", i, err)
		}
		report, err := session.Compile(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("pass %d: %w", i, err)
		}
		if err := st.WriteSession(ctx, report); err != nil {
			return nil, nil, fmt.Errorf("pass %d: %w", i, err)
		}
		slog.Debug("scenario pass complete", "scenario", s.Name, "pass", i, "targets", len(report.Targets))
		result.Reports = append(result.Reports, report)
	}

	mem, err := st.Snapshot(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to snapshot store: %w", err)
	}

	for _, msg := range EvaluateAssertions(mem, result.Last(), s.Assertions) {
		result.AddError(msg)
	}
	return result, mem, nil
}

func scenarioScene(s *Scenario, units config.Units) (scene.File, error) {
	if s.Scene != "" {
		mem, err := scene.LoadFile(s.Scene, units)
		if err != nil {
			return scene.File{}, fmt.Errorf("failed to load scene: %w", err)
		}
		return mem.Export(), nil
	}
	if s.Inline != nil {
		// Build validates the inline scene the same way LoadFile does.
		if _, err := scene.Build(*s.Inline, units); err != nil {
			return scene.File{}, fmt.Errorf("invalid inline scene: %w", err)
		}
		return *s.Inline, nil
	}
	return scene.File{}, nil
}

func passAssets(name string, index int, p Pass) ([]asset.Asset, error) {
	var assets []asset.Asset
	for _, path := range p.Assets {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("pass %d: %w", index, err)
		}
		res, errs := asset.LoadString(filepath.Base(path), string(data))
		if len(errs) > 0 {
			return nil, fmt.Errorf("pass %d: %s: %w", index, path, errs[0])
		}
		assets = append(assets, res.Assets...)
	}
	if p.Source != "" {
		res, errs := asset.LoadString(fmt.Sprintf("%s-pass%d.cue", name, index), p.Source)
		if len(errs) > 0 {
			return nil, fmt.Errorf("pass %d: inline source: %w", index, errs[0])
		}
		assets = append(assets, res.Assets...)
	}
	return assets, nil
}
