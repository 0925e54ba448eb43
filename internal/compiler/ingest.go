package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/morphc/internal/asset"
	"github.com/roach88/morphc/internal/ir"
)

// NormalizeJointName canonicalizes an asset joint name: NFC, trimmed, the
// first matching configured suffix stripped, then aliased.
func NormalizeJointName(name string, opts Options) string {
	n := norm.NFC.String(strings.TrimSpace(name))
	for _, suffix := range opts.JointSuffixes {
		if s, ok := strings.CutSuffix(n, suffix); ok && s != "" {
			n = strings.TrimSpace(s)
			break
		}
	}
	if alias, ok := opts.JointAliases[n]; ok {
		n = alias
	}
	return n
}

// FinalChannel returns the derived channel name of a control.
func FinalChannel(name string, opts Options) string {
	return norm.NFC.String(strings.TrimSpace(name)) + opts.FinalSuffix
}

// resolvedRef is a reference bound to the store.
type resolvedRef struct {
	target ir.TargetRef
	source ir.Source
	unit   float64
	rest   bool
}

// ingestAsset adds one asset's formulas to the session.
// Unresolvable references are reported and skipped; only store failures
// are returned.
func (s *Session) ingestAsset(ctx context.Context, a asset.Asset) error {
	slog.Debug("ingesting asset", "asset", a.Name, "formulas", len(a.Formulas))

	// The asset's own control is exposed even without formulas.
	if _, err := s.ensureFinal(ctx, a.Name); err != nil {
		return err
	}

	for i, f := range a.Formulas {
		if err := s.ingestFormula(ctx, a.Name, i, f); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) ingestFormula(ctx context.Context, assetName string, index int, f asset.Formula) error {
	out, err := s.resolve(ctx, f.Output)
	if err != nil {
		return s.unresolved(assetName, index, f.Output, err)
	}

	for _, in := range f.Inputs {
		if in.Ref.Kind == asset.RefRest {
			s.report.add(NewUnresolvedError(in.Ref.String(), errors.New("rest offsets cannot be formula inputs")))
			continue
		}
		src, err := s.resolve(ctx, in.Ref)
		if err != nil {
			if err := s.unresolved(assetName, index, in.Ref, err); err != nil {
				return err
			}
			continue
		}

		switch {
		case f.Stage == asset.StageMult:
			if out.rest {
				s.rest.terms.AddAdjuster(out.target, src.source)
			} else {
				s.collector.AddAdjuster(out.target, src.source)
			}
		case len(in.Points) > 0:
			if out.rest {
				s.report.add(NewUnresolvedError(in.Ref.String(), errors.New("rest offsets cannot use control points")))
				continue
			}
			// x is in source units; y and the factor in target units.
			pts := make([]ir.Point, len(in.Points))
			for i, p := range in.Points {
				pts[i] = ir.Point{X: p.X * src.unit, Y: p.Y * in.Factor * out.unit}
			}
			s.collector.AddSpline(out.target, SplineContribution{Source: src.source, Points: pts})
		default:
			term := ir.Term{Source: src.source, Factor: in.Factor * out.unit / src.unit}
			if out.rest {
				s.rest.Add(out.target, term)
			} else {
				s.collector.Add(out.target, term)
			}
		}
	}
	return nil
}

// resolve binds a reference. Value references resolve to final channels,
// which are created and seeded on first use.
func (s *Session) resolve(ctx context.Context, r asset.Ref) (resolvedRef, error) {
	switch r.Kind {
	case asset.RefValue:
		final, err := s.ensureFinal(ctx, r.Name)
		if err != nil {
			return resolvedRef{}, err
		}
		return resolvedRef{target: ir.ChannelRef(final), source: ir.Prop(final), unit: 1}, nil
	}

	j, err := s.store.ResolveJoint(ctx, NormalizeJointName(r.Name, s.opts))
	if err != nil {
		return resolvedRef{}, err
	}
	unit := s.store.UnitFactor(r.Transform)
	return resolvedRef{
		target: ir.JointRef(j, r.Transform, r.Axis),
		source: ir.JointAxis(j, r.Transform, r.Axis, unit),
		unit:   unit,
		rest:   r.Kind == asset.RefRest,
	}, nil
}

// ensureFinal creates the raw and final channels of a control and seeds the
// final target with the raw channel at unit weight.
func (s *Session) ensureFinal(ctx context.Context, name string) (ir.ChannelID, error) {
	raw, err := s.store.ResolveChannel(ctx, norm.NFC.String(strings.TrimSpace(name)))
	if err != nil {
		return "", fmt.Errorf("resolve channel %q: %w", name, err)
	}
	final, err := s.store.ResolveChannel(ctx, FinalChannel(name, s.opts))
	if err != nil {
		return "", fmt.Errorf("resolve channel %q: %w", FinalChannel(name, s.opts), err)
	}
	s.collector.Seed(ir.ChannelRef(final), ir.Term{Source: ir.Prop(raw), Factor: 1})
	return final, nil
}

// unresolved records a reference that could not be bound. A store failure
// that is not a lookup miss is returned instead.
func (s *Session) unresolved(assetName string, index int, r asset.Ref, err error) error {
	if !IsNotFound(err) {
		return fmt.Errorf("%s: formulas[%d]: %w", assetName, index, err)
	}
	e := NewUnresolvedError(r.String(), err)
	e.Message = fmt.Sprintf("%s: formulas[%d]: %s", assetName, index, e.Message)
	s.report.add(e)
	slog.Warn("unresolved reference dropped", "asset", assetName, "formula", index, "ref", r.String())
	return nil
}

// IsNotFound reports whether err is a store lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ir.ErrNotFound)
}
