package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/morphc/internal/ir"
)

// Helper channel naming. Every helper of a target is "<base>#<tag>".
const (
	helperSep    = "#"
	batchTag     = "b"
	splineTag    = "s"
	remainderTag = "rem"
	restTag      = "rest"
)

// HelperChannel returns the name of a numbered helper channel, e.g. "Smile(fin)#b2".
func HelperChannel(base, tag string, n int) ir.ChannelID {
	return ir.ChannelID(fmt.Sprintf("%s%s%s%d", base, helperSep, tag, n))
}

// RemainderChannel returns the channel holding a target's preserved legacy driver.
func RemainderChannel(base string) ir.ChannelID {
	return ir.ChannelID(base + helperSep + remainderTag)
}

// RestChannel returns the channel holding a target's compiled rest contributions.
func RestChannel(base string) ir.ChannelID {
	return ir.ChannelID(base + helperSep + restTag)
}

func isHelperOf(ch ir.ChannelID, base string) bool {
	rest, ok := strings.CutPrefix(string(ch), base+helperSep)
	if !ok {
		return false
	}
	return strings.HasPrefix(rest, batchTag) || strings.HasPrefix(rest, splineTag)
}

// Recovered is what an attached driver contributes back to the collector.
type Recovered struct {
	Terms     []ir.Term
	Splines   []SplineContribution
	Adjusters []ir.Source

	// Remainder is a foreign driver to move to the target's #rem channel.
	Remainder ir.CompiledDriver

	// KeepRemainder and KeepRest mark existing #rem / #rest inputs.
	KeepRemainder bool
	KeepRest      bool

	// Helpers are the batch and spline channels the driver currently uses.
	Helpers []ir.ChannelID

	Notes []*Error
}

// Merger recovers terms from drivers already attached in the store.
// Recovery only reads; calling it twice gives the same result.
type Merger struct {
	Store ChannelStore
}

// Recover decomposes the driver attached to target. base is the target's
// helper channel prefix.
func (m Merger) Recover(ctx context.Context, target ir.TargetRef, base string) (*Recovered, error) {
	rec := &Recovered{}
	d, ok, err := m.Store.AttachedDriver(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("recover %s: %w", base, err)
	}
	if !ok {
		return rec, nil
	}

	switch x := d.(type) {
	case *ir.Batch:
		rec.Terms = append(rec.Terms, x.Terms()...)
		rec.Adjusters = append(rec.Adjusters, adjustersOf(x.Variables)...)
	case *ir.SplineDriver:
		rec.Splines = append(rec.Splines, SplineContribution{Source: x.Source, Points: x.Points})
	case *ir.SumNode:
		if err := m.recoverSum(ctx, x, base, rec); err != nil {
			return nil, err
		}
	case *ir.Opaque:
		rec.Remainder = x
		rec.Notes = append(rec.Notes, &Error{
			Code:    ErrCodeRecoveryAmbiguous,
			Target:  base,
			Message: fmt.Sprintf("driver %q preserved as remainder", x.Text),
		})
		slog.Warn("foreign driver preserved as remainder", "target", base, "text", x.Text)
	}
	return rec, nil
}

func (m Merger) recoverSum(ctx context.Context, s *ir.SumNode, base string, rec *Recovered) error {
	weights := ir.FactorsOf(s.Expr)
	rec.Adjusters = append(rec.Adjusters, adjustersOf(s.Inputs)...)

	for _, in := range s.Inputs {
		w := weights[in.Name]
		switch in.Role {
		case ir.RoleAdjuster, ir.RoleLocation:
			continue
		case ir.RoleRemainder:
			rec.KeepRemainder = true
			continue
		case ir.RoleRest:
			rec.KeepRest = true
			continue
		}

		if in.Source.Kind != ir.SourceProp || !isHelperOf(in.Source.Channel, base) || w != 1 {
			rec.Terms = append(rec.Terms, ir.Term{Source: in.Source, Factor: w})
			continue
		}

		helper, ok, err := m.Store.AttachedDriver(ctx, ir.ChannelRef(in.Source.Channel))
		if err != nil {
			return fmt.Errorf("recover %s: %w", in.Source.Channel, err)
		}
		switch h := helper.(type) {
		case *ir.Batch:
			rec.Terms = append(rec.Terms, h.Terms()...)
			rec.Helpers = append(rec.Helpers, in.Source.Channel)
		case *ir.SplineDriver:
			rec.Splines = append(rec.Splines, SplineContribution{Source: h.Source, Points: h.Points})
			rec.Helpers = append(rec.Helpers, in.Source.Channel)
		default:
			// Unresolvable helper: keep it as an ordinary input.
			if ok {
				slog.Debug("helper channel kept as term", "target", base, "channel", in.Source.Channel, "kind", helper.Kind())
			}
			rec.Terms = append(rec.Terms, ir.Term{Source: in.Source, Factor: w})
		}
	}
	return nil
}

func adjustersOf(bindings []ir.Binding) []ir.Source {
	var out []ir.Source
	for _, b := range bindings {
		if b.Role == ir.RoleAdjuster {
			out = append(out, b.Source)
		}
	}
	return out
}
